package cli

import (
	"github.com/spf13/cobra"

	"delphi/internal/app/bootstrap"
)

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Start the outbox relay and refund-window watcher",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := bootstrap.BuildWorker()
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()
			return app.Run(cmd.Context())
		},
	}
}
