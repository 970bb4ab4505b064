package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/corray333/backend-labs/fulfillment/internal/app"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/fulfillment"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/order"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// NewOrderCommand creates the order command group.
func NewOrderCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Fulfill, inspect and ship orders",
	}

	cmd.AddCommand(newOrderFulfillCommand(rootOpts))
	cmd.AddCommand(newOrderGetCommand(rootOpts))
	cmd.AddCommand(newOrderShipCommand(rootOpts))

	return cmd
}

// parseLine parses "product:quantity[:unit-price-cents[:discount]]".
func parseLine(s string) (fulfillment.Line, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 4 {
		return fulfillment.Line{}, fmt.Errorf("invalid line %q: want product:quantity[:price[:discount]]", s)
	}

	line := fulfillment.Line{ProductID: parts[0]}

	qty, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return fulfillment.Line{}, fmt.Errorf("invalid quantity in %q: %w", s, err)
	}
	line.Quantity = qty

	if len(parts) > 2 {
		price, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			return fulfillment.Line{}, fmt.Errorf("invalid price in %q: %w", s, err)
		}
		line.UnitPriceCents = price
	}

	if len(parts) > 3 {
		discount, err := decimal.NewFromString(parts[3])
		if err != nil {
			return fulfillment.Line{}, fmt.Errorf("invalid discount in %q: %w", s, err)
		}
		line.Discount = discount
	}

	return line, nil
}

func printOrder(w io.Writer, v order.View) {
	fmt.Fprintf(w, "%s\t%s\t%s\ttotal=%d\n", v.ID, v.CustomerID, v.Status, v.TotalCents)
	for _, l := range v.Lines {
		fmt.Fprintf(w, "  #%d\t%s\tx%d\t@%d\tdiscount=%s\n",
			l.LineNo, l.ProductID, l.Quantity, l.UnitPriceCents, l.Discount.String())
	}
}

func newOrderFulfillCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		customerID string
		address    string
		freight    int64
		lines      []string
	)

	cmd := &cobra.Command{
		Use:     "fulfill",
		Short:   "Fulfill an order against the store",
		Example: `  fulfillment order fulfill --customer cust1 --line P-100:5:2000:0.1 --line P-200:1`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := fulfillment.Request{
				CustomerID:      customerID,
				ShippingAddress: address,
				FreightCents:    freight,
			}
			for _, s := range lines {
				l, err := parseLine(s)
				if err != nil {
					return err
				}
				req.Lines = append(req.Lines, l)
			}

			return withCore(rootOpts, cmd, func(ctx context.Context, core *app.Core) error {
				view, err := core.Fulfillment.Fulfill(ctx, req)
				if err != nil {
					return err
				}

				return emit(rootOpts, cmd.OutOrStdout(), view, func(w io.Writer) {
					printOrder(w, view)
				})
			})
		},
	}

	cmd.Flags().StringVar(&customerID, "customer", "", "customer id (required)")
	cmd.Flags().StringVar(&address, "address", "", "shipping address")
	cmd.Flags().Int64Var(&freight, "freight", 0, "freight in cents")
	cmd.Flags().StringArrayVar(&lines, "line", nil, "order line product:quantity[:price[:discount]] (repeatable)")
	_ = cmd.MarkFlagRequired("customer")

	return cmd
}

func newOrderGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <order-id>",
		Short: "Show an order with its lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCore(rootOpts, cmd, func(ctx context.Context, core *app.Core) error {
				view, err := core.Orders.GetOrder(ctx, args[0])
				if err != nil {
					return err
				}

				return emit(rootOpts, cmd.OutOrStdout(), view, func(w io.Writer) {
					printOrder(w, view)
				})
			})
		},
	}
}

func newOrderShipCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ship <order-id>",
		Short: "Mark a fulfilled order as shipped",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCore(rootOpts, cmd, func(ctx context.Context, core *app.Core) error {
				view, err := core.Orders.MarkShipped(ctx, args[0])
				if err != nil {
					return err
				}

				return emit(rootOpts, cmd.OutOrStdout(), view, func(w io.Writer) {
					printOrder(w, view)
				})
			})
		},
	}
}
