package register

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tillcraft/pos/internal/domain/customer"
	"github.com/tillcraft/pos/internal/domain/sale"
)

// Step tells the UI layer what comes after a checkout request.
type Step string

const (
	// StepConfirm goes straight to the confirmation dialog.
	StepConfirm Step = "confirm"
	// StepPayment routes through third-party payment authorization first.
	StepPayment Step = "payment"
	// StepCustomerInfo defers to the customer-info capture dialog; its
	// result feeds back in through FinalizeSale.
	StepCustomerInfo Step = "customer_info"
)

// Checkout validates that the tab can begin checkout and decides the next
// step. An empty cart is rejected with no state change.
func (s *Session) Checkout(tabID string) (Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.mutableTabLocked(tabID)
	if err != nil {
		return "", err
	}
	if len(t.Lines) == 0 {
		return "", ErrEmptyCart
	}
	if t.Payment.RequiresAuthorization() {
		return StepPayment, nil
	}
	return StepConfirm, nil
}

// ConfirmThirdPartyPayment runs the provider authorization for the tab's
// payment method and stashes the result for finalize. The simulated
// provider call is cancelable through ctx (closing the dialog) and subject
// to the authorizer's timeout. Other tabs stay fully interactive while an
// authorization is in flight.
func (s *Session) ConfirmThirdPartyPayment(ctx context.Context, tabID string) error {
	s.mu.Lock()
	t, err := s.mutableTabLocked(tabID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if len(t.Lines) == 0 {
		s.mu.Unlock()
		return ErrEmptyCart
	}
	if !t.Payment.RequiresAuthorization() {
		s.mu.Unlock()
		return errors.New("payment method does not use a third-party provider")
	}
	provider := t.Payment.Provider
	total := s.totalsLocked(t).Total
	s.mu.Unlock()

	// The provider call runs unlocked so concurrent tabs are not blocked.
	auth, err := s.authorizer.Authorize(ctx, provider, total)
	if err != nil {
		return errors.Wrap(err, "authorize payment")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// The tab may have been closed while the authorization was in flight.
	idx := s.indexLocked(tabID)
	if idx < 0 {
		return ErrUnknownTab
	}
	s.tabs[idx].pendingAuth = auth
	return nil
}

// CompleteSale finishes checkout for the tab. When collectCustomerInfo is
// set it defers to the customer-info capture step and finalizes nothing;
// otherwise the sale is finalized immediately with an anonymous customer.
func (s *Session) CompleteSale(ctx context.Context, tabID string, collectCustomerInfo bool) (Step, *sale.Record, error) {
	if collectCustomerInfo {
		return StepCustomerInfo, nil, nil
	}
	rec, err := s.FinalizeSale(ctx, tabID, customer.Info{})
	if err != nil {
		return "", nil, err
	}
	return StepConfirm, rec, nil
}

// FinalizeSale is the only operation that writes a sale record. It
// snapshots the cart at base-currency prices, commits the record (all
// indexes, counters, and the customer profile update in one atomic write),
// and only then clears the tab and drops its mirror copy.
//
// While the commit is in flight the tab is marked finalizing: mutations,
// removal, and reconciliation against it are refused, so nothing added
// mid-commit can be silently destroyed by the post-commit reset. Any
// persistence error clears the mark and leaves the tab exactly as it was
// so the user can retry; the retry will carry a fresh transaction id,
// which is fine because the failed attempt persisted nothing.
func (s *Session) FinalizeSale(ctx context.Context, tabID string, info customer.Info) (*sale.Record, error) {
	if !s.active() {
		return nil, ErrAccountDisabled
	}

	s.mu.Lock()
	t, err := s.mutableTabLocked(tabID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if t.Status == StatusCompleted {
		s.mu.Unlock()
		return nil, ErrTabCompleted
	}
	if len(t.Lines) == 0 {
		s.mu.Unlock()
		return nil, ErrEmptyCart
	}
	if t.Payment.RequiresAuthorization() && t.pendingAuth == nil {
		s.mu.Unlock()
		return nil, ErrNoAuthorization
	}

	totals := s.totalsLocked(t)
	if totals.Total.IsNegative() {
		s.mu.Unlock()
		return nil, ErrNegativeTotal
	}

	lines := make([]sale.Line, len(t.Lines))
	for i, l := range t.Lines {
		lines[i] = sale.Line{
			ProductID: l.ProductID,
			Name:      l.Name,
			Price:     l.BasePrice,
			Quantity:  l.Quantity,
		}
	}
	applied := make([]string, len(t.AppliedOffers))
	copy(applied, t.AppliedOffers)

	rec := &sale.Record{
		TransactionID: uuid.New().String(),
		UserID:        s.cfg.UserID,
		Timestamp:     s.now(),
		Customer:      info,
		Lines:         lines,
		Subtotal:      totals.Subtotal,
		Tax:           totals.Tax,
		Discount:      totals.Discount,
		Total:         totals.Total,
		Payment:       t.Payment,
		Authorization: t.pendingAuth,
		CurrencyCode:  t.Currency.Code,
		ExchangeRate:  t.Currency.Rate,
		AppliedOffers: applied,
		Status:        sale.StatusCompleted,
	}
	t.finalizing = true
	s.mu.Unlock()

	if err := s.recorder.Commit(ctx, rec); err != nil {
		s.mu.Lock()
		t.finalizing = false
		s.mu.Unlock()
		return nil, errors.Wrap(err, "commit sale")
	}

	s.mu.Lock()
	// The finalizing mark kept the tab pointer valid across the commit; it
	// transitions to completed with an empty cart and no applied offers.
	t.finalizing = false
	t.reset()
	t.Status = StatusCompleted
	if !info.Anonymous() {
		// Refresh the in-session profile so a newly-regular customer
		// qualifies for regular offers on the next tab.
		s.cust.Info = info
		s.cust.PurchaseCount++
		s.cust.LastPurchaseDate = rec.Timestamp
	}
	s.mu.Unlock()

	if err := s.mirror.DeleteTab(ctx, tabID); err != nil {
		s.lg.Warn("mirror delete after finalize failed",
			zap.String("tab_id", tabID), zap.Error(err))
	}
	return rec, nil
}
