// Package accountctl implements the administrative command line for the
// account service.
package accountctl

import (
	"os"

	"github.com/spf13/cobra"
)

type options struct {
	databaseURL string
}

// NewRootCmd creates the root command of accountctl.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:          "accountctl",
		Short:        "Administer the account service",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.databaseURL, "database-url", os.Getenv("DATABASE_URL"),
		`PostgreSQL DSN, or "memory" (defaults to $DATABASE_URL)`)

	cmd.AddCommand(NewMigrateCmd(opts))
	cmd.AddCommand(NewCreateSuperuserCmd(opts))

	return cmd
}
