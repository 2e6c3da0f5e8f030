package models

import "github.com/shopspring/decimal"

// OrderTotals are the order-level amounts divided across its packages.
type OrderTotals struct {
	ItemRevenue  decimal.NullDecimal
	TotalCOGS    decimal.NullDecimal
	ShippingPaid decimal.NullDecimal
}

// Splits is what every non-voided shipment of an order carries.
type Splits struct {
	PackageCount   int
	IsMultiPackage bool
	Revenue        decimal.NullDecimal
	COGS           decimal.NullDecimal
	ShippingPaid   decimal.NullDecimal
}

// ComputeSplits divides each non-null total evenly over packageCount non-voided shipments.
// With no active packages every split is null.
func ComputeSplits(t OrderTotals, packageCount int) Splits {
	s := Splits{
		PackageCount:   packageCount,
		IsMultiPackage: packageCount > 1,
	}
	if packageCount <= 0 {
		return s
	}
	n := decimal.NewFromInt(int64(packageCount))
	div := func(v decimal.NullDecimal) decimal.NullDecimal {
		if !v.Valid {
			return decimal.NullDecimal{}
		}
		return decimal.NewNullDecimal(v.Decimal.Div(n))
	}
	s.Revenue = div(t.ItemRevenue)
	s.COGS = div(t.TotalCOGS)
	s.ShippingPaid = div(t.ShippingPaid)
	return s
}
