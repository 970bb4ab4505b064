package orderline

import (
	"github.com/shopspring/decimal"
)

// DiscountScale is the number of fractional digits a stored discount keeps.
const DiscountScale = 5

var one = decimal.NewFromInt(1)

// ValidDiscount reports whether d lies in [0, 1) and is stored without rounding.
func ValidDiscount(d decimal.Decimal) bool {
	return !d.IsNegative() && d.LessThan(one) && d.Equal(d.Truncate(DiscountScale))
}

// OrderLine represents one product line within an order.
// UnitPriceCents and Discount are snapshotted when the order is placed.
type OrderLine struct {
	ID             int64           `json:"id"`
	OrderID        string          `json:"orderId"`
	LineNo         int             `json:"lineNo"`
	ProductID      string          `json:"productId"`
	Quantity       int64           `json:"quantity"`
	UnitPriceCents int64           `json:"unitPriceCents"`
	Discount       decimal.Decimal `json:"discount"`
}

// TotalCents returns quantity * unit price * (1 - discount), rounded to whole cents.
func (l OrderLine) TotalCents() int64 {
	gross := decimal.NewFromInt(l.UnitPriceCents).Mul(decimal.NewFromInt(l.Quantity))
	net := gross.Mul(one.Sub(l.Discount))

	return net.Round(0).IntPart()
}
