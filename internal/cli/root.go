package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/corray333/backend-labs/fulfillment/internal/app"
	"github.com/corray333/backend-labs/fulfillment/internal/config"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Format     string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the fulfillment service CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "fulfillment",
		Short: "Transactional order fulfillment service",
		Long: `Transactional order fulfillment service.

Run the HTTP and gRPC servers with "serve", or operate on the configured
store directly: seed products, restock, reconcile the inventory ledger,
inspect and ship orders.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to config.yaml")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "json", "output format (json|text)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewProductCommand(opts))
	cmd.AddCommand(NewOrderCommand(opts))

	return cmd
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := NewRootCommand().ExecuteContext(context.Background()); err != nil {
		slog.Error("command failed", "error", err)
		return 1
	}
	return 0
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// loadConfig reads the configuration and sends logs to stderr so command
// output on stdout stays machine readable.
func loadConfig(opts *RootOptions, cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	config.SetupLogger(cfg.Log, cmd.ErrOrStderr())

	return cfg, nil
}

// withCore opens the store, runs fn and closes the store.
func withCore(opts *RootOptions, cmd *cobra.Command, fn func(ctx context.Context, core *app.Core) error) error {
	cfg, err := loadConfig(opts, cmd)
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)

	core, err := app.NewCore(ctx, cfg)
	if err != nil {
		return err
	}
	defer core.Close()

	return fn(ctx, core)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}

	return context.Background()
}

// emit writes v as indented JSON, or through text when --format=text.
func emit(opts *RootOptions, w io.Writer, v any, text func(w io.Writer)) error {
	if opts.Format == "text" && text != nil {
		text(w)
		return nil
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}
