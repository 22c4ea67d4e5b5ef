package register

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tillcraft/pos/internal/domain/customer"
	"github.com/tillcraft/pos/internal/domain/money"
	"github.com/tillcraft/pos/internal/domain/offer"
	"github.com/tillcraft/pos/internal/domain/payment"
	"github.com/tillcraft/pos/internal/domain/sale"
)

func TestCheckout(t *testing.T) {
	s := newTestSession(t, &sessionDeps{active: true})
	ctx := context.Background()
	tabID := s.ActiveTab().ID

	_, err := s.Checkout(tabID)
	require.ErrorIs(t, err, ErrEmptyCart)

	_, err = s.Checkout("nope")
	require.ErrorIs(t, err, ErrUnknownTab)

	require.NoError(t, s.AddToCart(ctx, tabID, product("p1", "Masala Dosa", "80")))
	step, err := s.Checkout(tabID)
	require.NoError(t, err)
	assert.Equal(t, StepConfirm, step)

	require.NoError(t, s.SetPayment(ctx, tabID, payment.ThirdParty("acme-pay")))
	step, err = s.Checkout(tabID)
	require.NoError(t, err)
	assert.Equal(t, StepPayment, step)
}

func TestConfirmThirdPartyPayment(t *testing.T) {
	auth := &mockAuthorizer{}
	s := newTestSession(t, &sessionDeps{active: true, authorizer: auth})
	ctx := context.Background()
	tabID := s.ActiveTab().ID

	require.ErrorIs(t, s.ConfirmThirdPartyPayment(ctx, tabID), ErrEmptyCart)

	require.NoError(t, s.AddToCart(ctx, tabID, product("p1", "Masala Dosa", "80")))
	require.Error(t, s.ConfirmThirdPartyPayment(ctx, tabID), "cash does not authorize")
	assert.Zero(t, auth.calls)

	require.NoError(t, s.SetPayment(ctx, tabID, payment.ThirdParty("acme-pay")))
	require.NoError(t, s.ConfirmThirdPartyPayment(ctx, tabID))
	assert.Equal(t, 1, auth.calls)
}

func TestConfirmThirdPartyPayment_ProviderFailure(t *testing.T) {
	auth := &mockAuthorizer{err: payment.ErrAuthorizationTimeout}
	s := newTestSession(t, &sessionDeps{active: true, authorizer: auth})
	ctx := context.Background()
	tabID := s.ActiveTab().ID

	require.NoError(t, s.AddToCart(ctx, tabID, product("p1", "Masala Dosa", "80")))
	require.NoError(t, s.SetPayment(ctx, tabID, payment.ThirdParty("acme-pay")))

	require.ErrorIs(t, s.ConfirmThirdPartyPayment(ctx, tabID), payment.ErrAuthorizationTimeout)

	// Without a stored authorization the sale cannot finalize.
	_, err := s.FinalizeSale(ctx, tabID, customer.Info{})
	require.ErrorIs(t, err, ErrNoAuthorization)
}

func TestCompleteSale_DefersToCustomerInfo(t *testing.T) {
	recorder := &mockRecorder{}
	s := newTestSession(t, &sessionDeps{active: true, recorder: recorder})
	ctx := context.Background()
	tabID := s.ActiveTab().ID

	require.NoError(t, s.AddToCart(ctx, tabID, product("p1", "Masala Dosa", "80")))

	step, rec, err := s.CompleteSale(ctx, tabID, true)
	require.NoError(t, err)
	assert.Equal(t, StepCustomerInfo, step)
	assert.Nil(t, rec)
	assert.Empty(t, recorder.commits, "deferring must not finalize")

	step, rec, err = s.CompleteSale(ctx, tabID, false)
	require.NoError(t, err)
	assert.Equal(t, StepConfirm, step)
	require.NotNil(t, rec)
	assert.True(t, rec.Customer.Anonymous())
}

func TestFinalizeSale(t *testing.T) {
	recorder := &mockRecorder{}
	mirror := newMockMirror()
	s := newTestSession(t, &sessionDeps{active: true, recorder: recorder, mirror: mirror})
	ctx := context.Background()
	tabID := s.ActiveTab().ID
	s.SetOffers([]offer.Offer{
		{ID: "weekend", Kind: offer.KindSeasonal, DiscountKind: money.DiscountPercentage, DiscountValue: d("10")},
	})

	require.NoError(t, s.AddToCart(ctx, tabID, product("p1", "Masala Dosa", "80")))
	require.NoError(t, s.AddToCart(ctx, tabID, product("p2", "Filter Coffee", "30")))
	require.NoError(t, s.ApplyOffer(ctx, tabID, "weekend"))
	require.NoError(t, s.ChangeCurrency(ctx, tabID, "USD"))

	rec, err := s.FinalizeSale(ctx, tabID, customer.Info{Name: "Asha", Phone: "9876543210"})
	require.NoError(t, err)
	require.Len(t, recorder.commits, 1)

	assert.NotEmpty(t, rec.TransactionID)
	assert.Equal(t, "user-1", rec.UserID)
	assert.Equal(t, sale.StatusCompleted, rec.Status)
	assert.Equal(t, "USD", rec.CurrencyCode)
	assert.True(t, rec.ExchangeRate.Equal(d("0.012")))
	assert.Equal(t, []string{"weekend"}, rec.AppliedOffers)
	// Line prices are recorded in the base currency regardless of display.
	require.Len(t, rec.Lines, 2)
	assert.True(t, rec.Lines[0].Price.Equal(d("80")))

	// The tab is cleared in place, marked completed, and its mirror dropped.
	tab, err := s.Tab(tabID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, tab.Status)
	assert.Empty(t, tab.Lines)
	assert.Empty(t, tab.AppliedOffers)
	assert.Contains(t, mirror.deletes, tabID)

	// The in-session customer profile reflects the purchase.
	assert.Equal(t, 1, s.Customer().PurchaseCount)

	// A completed tab refuses a second finalize until new items arrive.
	_, err = s.FinalizeSale(ctx, tabID, customer.Info{})
	require.ErrorIs(t, err, ErrTabCompleted)

	// Adding a product starts a fresh cart under the same tab id.
	require.NoError(t, s.AddToCart(ctx, tabID, product("p1", "Masala Dosa", "80")))
	tab, err = s.Tab(tabID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, tab.Status)
	require.Len(t, tab.Lines, 1)
}

func TestFinalizeSale_OnlyTouchesAddressedTab(t *testing.T) {
	recorder := &mockRecorder{}
	s := newTestSession(t, &sessionDeps{active: true, recorder: recorder})
	ctx := context.Background()

	first := s.ActiveTab()
	require.NoError(t, s.AddToCart(ctx, first.ID, product("p1", "Masala Dosa", "80")))

	// A second register interleaves: it opens a tab, selects it, and fills
	// its cart while the first tab's finalize request is on the way.
	second := s.AddTab(ctx)
	require.NoError(t, s.SelectTab(second.ID))
	require.NoError(t, s.AddToCart(ctx, second.ID, product("p2", "Filter Coffee", "30")))

	rec, err := s.FinalizeSale(ctx, first.ID, customer.Info{})
	require.NoError(t, err)

	// The record holds the addressed tab's cart, not the selected one's.
	require.Len(t, rec.Lines, 1)
	assert.Equal(t, "p1", rec.Lines[0].ProductID)

	got, err := s.Tab(first.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Empty(t, got.Lines)

	// The other tab is untouched and still interactive.
	got, err = s.Tab(second.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, got.Status)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, "p2", got.Lines[0].ProductID)
}

func TestFinalizeSale_RejectsMutationsMidCommit(t *testing.T) {
	recorder := &mockRecorder{
		enter:   make(chan struct{}),
		release: make(chan struct{}),
	}
	s := newTestSession(t, &sessionDeps{active: true, recorder: recorder})
	ctx := context.Background()
	tabID := s.ActiveTab().ID
	other := s.AddTab(ctx)

	require.NoError(t, s.AddToCart(ctx, tabID, product("p1", "Masala Dosa", "80")))

	var (
		rec    *sale.Record
		recErr error
		done   = make(chan struct{})
	)
	go func() {
		defer close(done)
		rec, recErr = s.FinalizeSale(ctx, tabID, customer.Info{})
	}()
	<-recorder.enter

	// The commit is in flight: edits to the tab are refused instead of
	// being silently destroyed by the post-commit reset.
	require.ErrorIs(t, s.AddToCart(ctx, tabID, product("p2", "Filter Coffee", "30")), ErrFinalizeInFlight)
	require.ErrorIs(t, s.ClearTab(ctx, tabID), ErrFinalizeInFlight)
	require.ErrorIs(t, s.RemoveTab(ctx, tabID), ErrFinalizeInFlight)
	_, err := s.FinalizeSale(ctx, tabID, customer.Info{})
	require.ErrorIs(t, err, ErrFinalizeInFlight)

	// Other tabs stay fully interactive.
	require.NoError(t, s.AddToCart(ctx, other.ID, product("p3", "Idli", "40")))

	close(recorder.release)
	<-done
	require.NoError(t, recErr)
	require.Len(t, rec.Lines, 1)
	assert.Equal(t, "p1", rec.Lines[0].ProductID)

	// The commit settled: the tab is editable again.
	require.NoError(t, s.AddToCart(ctx, tabID, product("p2", "Filter Coffee", "30")))
}

func TestFinalizeSale_CommitFailurePreservesTab(t *testing.T) {
	recorder := &mockRecorder{err: errors.New("db unavailable")}
	s := newTestSession(t, &sessionDeps{active: true, recorder: recorder})
	ctx := context.Background()
	tabID := s.ActiveTab().ID

	require.NoError(t, s.AddToCart(ctx, tabID, product("p1", "Masala Dosa", "80")))
	require.NoError(t, s.SetDiscount(ctx, tabID, money.ManualDiscount{Kind: money.DiscountPercentage, Value: d("5")}))

	_, err := s.FinalizeSale(ctx, tabID, customer.Info{})
	require.Error(t, err)

	// Everything survives for a retry.
	tab, err := s.Tab(tabID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, tab.Status)
	require.Len(t, tab.Lines, 1)
	assert.True(t, tab.Discount.Value.Equal(d("5")))

	recorder.err = nil
	_, err = s.FinalizeSale(ctx, tabID, customer.Info{})
	require.NoError(t, err)
}

func TestFinalizeSale_Guards(t *testing.T) {
	t.Run("account disabled", func(t *testing.T) {
		s := newTestSession(t, &sessionDeps{active: false})
		ctx := context.Background()
		tabID := s.ActiveTab().ID
		require.NoError(t, s.AddToCart(ctx, tabID, product("p1", "Masala Dosa", "80")))

		_, err := s.FinalizeSale(ctx, tabID, customer.Info{})
		require.ErrorIs(t, err, ErrAccountDisabled)
	})

	t.Run("empty cart", func(t *testing.T) {
		s := newTestSession(t, &sessionDeps{active: true})

		_, err := s.FinalizeSale(context.Background(), s.ActiveTab().ID, customer.Info{})
		require.ErrorIs(t, err, ErrEmptyCart)
	})

	t.Run("negative total", func(t *testing.T) {
		s := newTestSession(t, &sessionDeps{active: true})
		ctx := context.Background()
		tabID := s.ActiveTab().ID
		require.NoError(t, s.AddToCart(ctx, tabID, product("p1", "Masala Dosa", "80")))
		require.NoError(t, s.SetDiscount(ctx, tabID, money.ManualDiscount{Kind: money.DiscountFlat, Value: d("500")}))

		_, err := s.FinalizeSale(ctx, tabID, customer.Info{})
		require.ErrorIs(t, err, ErrNegativeTotal)

		// The tab survives so the cashier can fix the discount.
		assert.Len(t, s.ActiveTab().Lines, 1)
	})
}
