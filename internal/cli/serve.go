package cli

import (
	"github.com/spf13/cobra"

	"delphi/internal/app/bootstrap"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the question market API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := bootstrap.BuildAPI()
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()
			return app.Run(cmd.Context())
		},
	}
}
