package fake

import (
	"context"
	"testing"

	"github.com/BearBump/ShipRecon/internal/integrations/carrier"
	"github.com/stretchr/testify/require"
)

func TestFakeClient_GetTracking(t *testing.T) {
	c := New()
	res, err := c.GetTracking(context.Background(), "1ZR1833C0001234567")
	require.NoError(t, err)
	require.Equal(t, carrier.LookupOK, res.Status)
	require.NotEmpty(t, res.DeliveryStatus)
	require.NotNil(t, res.ScheduledDelivery)
	require.NotNil(t, res.LastActivity)

	again, err := c.GetTracking(context.Background(), "1ZR1833C0001234567")
	require.NoError(t, err)
	require.Equal(t, res.DeliveryStatus, again.DeliveryStatus)
}

func TestFakeClient_NonUPSNotFound(t *testing.T) {
	res, err := New().GetTracking(context.Background(), "9400100000000000000000")
	require.NoError(t, err)
	require.Equal(t, carrier.LookupNotFound, res.Status)
	require.False(t, res.HasDeliveryData())
}
