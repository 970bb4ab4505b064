package cli

import (
	"github.com/corray333/backend-labs/fulfillment/internal/app"
	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and gRPC servers and the outbox worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts, cmd)
			if err != nil {
				return err
			}

			ctx := commandContext(cmd)

			a, err := app.NewApp(ctx, cfg)
			if err != nil {
				return err
			}

			return a.Run(ctx)
		},
	}
}
