package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/corray333/backend-labs/fulfillment/internal/app"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/product"
	"github.com/spf13/cobra"
)

// NewProductCommand creates the product command group.
func NewProductCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "product",
		Short: "Manage products and stock",
	}

	cmd.AddCommand(newProductAddCommand(rootOpts))
	cmd.AddCommand(newStockCommand(rootOpts))
	cmd.AddCommand(newStockChangeCommand(rootOpts, "restock", "Add delivered stock"))
	cmd.AddCommand(newStockChangeCommand(rootOpts, "adjust", "Restore stock after a manual correction"))
	cmd.AddCommand(newReconcileCommand(rootOpts))
	cmd.AddCommand(newLowStockCommand(rootOpts))

	return cmd
}

type productAddOptions struct {
	Name             string
	UnitPriceCents   int64
	Stock            int64
	ReorderThreshold int64
}

func newProductAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &productAddOptions{}

	cmd := &cobra.Command{
		Use:     "add <product-id>",
		Short:   "Seed a new product",
		Example: `  fulfillment product add P-100 --name "Widget" --price 2000 --stock 10`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCore(rootOpts, cmd, func(ctx context.Context, core *app.Core) error {
				p, err := core.Inventory.CreateProduct(ctx, product.Product{
					ID:               args[0],
					Name:             opts.Name,
					UnitPriceCents:   opts.UnitPriceCents,
					Stock:            opts.Stock,
					ReorderThreshold: opts.ReorderThreshold,
				})
				if err != nil {
					return err
				}

				return emit(rootOpts, cmd.OutOrStdout(), p, func(w io.Writer) {
					fmt.Fprintf(w, "%s\t%s\tstock=%d\n", p.ID, p.Name, p.Stock)
				})
			})
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "product name")
	cmd.Flags().Int64Var(&opts.UnitPriceCents, "price", 0, "unit price in cents")
	cmd.Flags().Int64Var(&opts.Stock, "stock", 0, "initial stock")
	cmd.Flags().Int64Var(&opts.ReorderThreshold, "reorder-threshold", 0, "stock level that triggers a reorder")

	return cmd
}

type stockResult struct {
	ProductID string `json:"productId"`
	Stock     int64  `json:"stock"`
}

func newStockCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stock <product-id>",
		Short: "Show current stock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCore(rootOpts, cmd, func(ctx context.Context, core *app.Core) error {
				stock, err := core.Inventory.GetStock(ctx, args[0])
				if err != nil {
					return err
				}

				res := stockResult{ProductID: args[0], Stock: stock}
				return emit(rootOpts, cmd.OutOrStdout(), res, func(w io.Writer) {
					fmt.Fprintf(w, "%s\t%d\n", res.ProductID, res.Stock)
				})
			})
		},
	}
}

func newStockChangeCommand(rootOpts *RootOptions, use, short string) *cobra.Command {
	var quantity int64

	cmd := &cobra.Command{
		Use:   use + " <product-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCore(rootOpts, cmd, func(ctx context.Context, core *app.Core) error {
				change := core.Inventory.Restock
				if use == "adjust" {
					change = core.Inventory.RestoreStock
				}

				stock, err := change(ctx, args[0], quantity)
				if err != nil {
					return err
				}

				res := stockResult{ProductID: args[0], Stock: stock}
				return emit(rootOpts, cmd.OutOrStdout(), res, func(w io.Writer) {
					fmt.Fprintf(w, "%s\t%d\n", res.ProductID, res.Stock)
				})
			})
		},
	}

	cmd.Flags().Int64VarP(&quantity, "quantity", "q", 0, "quantity to add (required)")
	_ = cmd.MarkFlagRequired("quantity")

	return cmd
}

func newReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile <product-id>...",
		Short: "Check initial stock plus ledger deltas against current stock",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCore(rootOpts, cmd, func(ctx context.Context, core *app.Core) error {
				results := make([]product.Reconciliation, 0, len(args))
				unbalanced := 0
				for _, id := range args {
					rec, err := core.Inventory.Reconcile(ctx, id)
					if err != nil {
						return fmt.Errorf("reconcile %s: %w", id, err)
					}
					if !rec.Balanced {
						unbalanced++
					}
					results = append(results, rec)
				}

				err := emit(rootOpts, cmd.OutOrStdout(), results, func(w io.Writer) {
					for _, r := range results {
						fmt.Fprintf(w, "%s\texpected=%d\tactual=%d\tbalanced=%t\n",
							r.ProductID, r.Expected, r.Actual, r.Balanced)
					}
				})
				if err != nil {
					return err
				}

				if unbalanced > 0 {
					return fmt.Errorf("%d product(s) out of balance", unbalanced)
				}

				return nil
			})
		},
	}
}

func newLowStockCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "low-stock",
		Short: "List products at or below their reorder threshold",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCore(rootOpts, cmd, func(ctx context.Context, core *app.Core) error {
				list, err := core.Inventory.LowStock(ctx)
				if err != nil {
					return err
				}

				return emit(rootOpts, cmd.OutOrStdout(), list, func(w io.Writer) {
					for _, p := range list {
						fmt.Fprintf(w, "%s\tstock=%d\tthreshold=%d\n", p.ID, p.Stock, p.ReorderThreshold)
					}
				})
			})
		},
	}
}
