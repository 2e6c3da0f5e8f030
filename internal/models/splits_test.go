package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestComputeSplits(t *testing.T) {
	totals := OrderTotals{
		ItemRevenue:  decimal.NewNullDecimal(decimal.RequireFromString("90.00")),
		ShippingPaid: decimal.NewNullDecimal(decimal.RequireFromString("12.00")),
	}

	s := ComputeSplits(totals, 3)
	require.True(t, s.IsMultiPackage)
	require.Equal(t, "30.00", s.Revenue.Decimal.StringFixed(2))
	require.Equal(t, "4.00", s.ShippingPaid.Decimal.StringFixed(2))
	require.False(t, s.COGS.Valid)

	s = ComputeSplits(totals, 2)
	require.Equal(t, "45.00", s.Revenue.Decimal.StringFixed(2))

	s = ComputeSplits(totals, 1)
	require.False(t, s.IsMultiPackage)
	require.Equal(t, "90.00", s.Revenue.Decimal.StringFixed(2))
}

func TestComputeSplits_NoActivePackages(t *testing.T) {
	s := ComputeSplits(OrderTotals{ItemRevenue: decimal.NewNullDecimal(decimal.NewFromInt(10))}, 0)
	require.Equal(t, 0, s.PackageCount)
	require.False(t, s.Revenue.Valid)
}

func TestComputeSplits_SumsBackToTotal(t *testing.T) {
	total := decimal.RequireFromString("100.00")
	s := ComputeSplits(OrderTotals{ItemRevenue: decimal.NewNullDecimal(total)}, 3)
	sum := s.Revenue.Decimal.Mul(decimal.NewFromInt(3))
	require.True(t, sum.Sub(total).Abs().LessThan(decimal.RequireFromString("0.0001")))
}

func TestShipmentState(t *testing.T) {
	var absent *Shipment
	require.Equal(t, ShipmentStateAbsent, absent.State())
	require.Equal(t, DeliveryStatusPending, (&Shipment{}).State())
	require.Equal(t, ShipmentStateVoided, (&Shipment{IsVoided: true, DeliveryStatus: DeliveryStatusInTransit}).State())
	require.True(t, (&Shipment{DeliveryStatus: DeliveryStatusReturned}).IsTerminal())
	require.False(t, (&Shipment{DeliveryStatus: DeliveryStatusException}).IsTerminal())
}

func TestIsLate(t *testing.T) {
	promised := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	// afterInstant is what a plain actual.After(promised) check would say. The two differ
	// for deliveries later on the promised day.
	cases := []struct {
		name         string
		actual       time.Time
		late         bool
		afterInstant bool
	}{
		{"day before", time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC), false, false},
		{"midnight of promised day", promised, false, false},
		{"evening of promised day", time.Date(2025, 3, 10, 19, 30, 0, 0, time.UTC), false, true},
		{"last second of promised day", time.Date(2025, 3, 10, 23, 59, 59, 0, time.UTC), false, true},
		{"next day midnight", time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC), true, true},
		{"next day in UTC, evening in New York", time.Date(2025, 3, 10, 21, 0, 0, 0, time.FixedZone("EDT", -4*3600)), true, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := IsLate(&tc.actual, &promised)
			require.NotNil(t, got)
			require.Equal(t, tc.late, *got)
			require.Equal(t, tc.afterInstant, tc.actual.After(promised))
		})
	}

	sameDay := time.Date(2025, 3, 10, 19, 30, 0, 0, time.UTC)
	require.Nil(t, IsLate(nil, &promised))
	require.Nil(t, IsLate(&sameDay, nil))
}
