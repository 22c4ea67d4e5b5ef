package payment

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMethodRequiresAuthorization(t *testing.T) {
	assert.False(t, Cash().RequiresAuthorization())
	assert.False(t, Method{Kind: KindCard}.RequiresAuthorization())
	assert.False(t, Method{Kind: KindUPI}.RequiresAuthorization())
	assert.True(t, ThirdParty("acme-pay").RequiresAuthorization())
}

func TestSimulatorAuthorize(t *testing.T) {
	sim := NewSimulator(10*time.Millisecond, time.Second)

	auth, err := sim.Authorize(context.Background(), "acme-pay", decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.Equal(t, "acme-pay", auth.Provider)
	assert.Equal(t, "authorized", auth.Status)
	assert.NotEmpty(t, auth.TransactionID)
	assert.False(t, auth.AuthorizedAt.IsZero())
}

func TestSimulatorAuthorize_Cancelled(t *testing.T) {
	sim := NewSimulator(time.Minute, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	auth, err := sim.Authorize(ctx, "acme-pay", decimal.NewFromInt(100))
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, auth)
}

func TestSimulatorAuthorize_Timeout(t *testing.T) {
	sim := NewSimulator(time.Minute, 10*time.Millisecond)

	auth, err := sim.Authorize(context.Background(), "acme-pay", decimal.NewFromInt(100))
	require.ErrorIs(t, err, ErrAuthorizationTimeout)
	assert.Nil(t, auth)
}

func TestSimulatorAuthorize_FreshTransactionIDs(t *testing.T) {
	sim := NewSimulator(0, time.Second)

	a, err := sim.Authorize(context.Background(), "acme-pay", decimal.NewFromInt(1))
	require.NoError(t, err)
	b, err := sim.Authorize(context.Background(), "acme-pay", decimal.NewFromInt(1))
	require.NoError(t, err)

	assert.NotEqual(t, a.TransactionID, b.TransactionID)
}
