package accountctl

import (
	"github.com/dmitrijs2005/gophaccounts/internal/server"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cmd.Println("Connecting to database and running migrations...")
			storage, err := server.OpenStorage(ctx, opts.databaseURL)
			if err != nil {
				return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
			}
			storage.Close()

			cmd.Println("Migrations completed successfully")
			return nil
		},
	}
}
