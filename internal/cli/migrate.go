package cli

import (
	"fmt"

	"github.com/corray333/backend-labs/fulfillment/internal/app"
	"github.com/spf13/cobra"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations to the configured store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts, cmd)
			if err != nil {
				return err
			}
			cfg.Storage.Migrate = false

			store, err := app.OpenStorage(commandContext(cmd), cfg.Storage)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Migrate(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "migrations applied (%s)\n", cfg.Storage.Driver)

			return nil
		},
	}
}
