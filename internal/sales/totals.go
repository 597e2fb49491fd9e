package sales

import "github.com/shopspring/decimal"

// TaxRate is applied to every sale subtotal.
var TaxRate = decimal.RequireFromString("0.17")

type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax_amount"`
	Discount decimal.Decimal `json:"discount_amount"`
	Total    decimal.Decimal `json:"total_amount"`
}

// ComputeTotals derives sale totals from line totals and a flat discount.
// Every amount is rounded to two places.
func ComputeTotals(items []LineItem, discount decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.LineTotal)
	}
	subtotal = subtotal.Round(2)
	tax := subtotal.Mul(TaxRate).Round(2)
	discount = discount.Round(2)
	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Discount: discount,
		Total:    subtotal.Add(tax).Sub(discount).Round(2),
	}
}

// lineTotalMatches reports whether the client-computed line total equals quantity * unit price.
func lineTotalMatches(it LineItem) bool {
	return it.UnitPrice.Mul(decimal.NewFromInt(it.Quantity)).Round(2).Equal(it.LineTotal.Round(2))
}
