package cli

import (
	"log"

	"github.com/spf13/cobra"

	"delphi/internal/app/bootstrap"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the service tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := bootstrap.MigrateDatabase(cmd.Context()); err != nil {
				return err
			}
			log.Printf("migrations applied")
			return nil
		},
	}
}
