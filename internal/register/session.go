// Package register implements the point-of-sale transaction engine: the
// multi-tab register state machine and the checkout orchestrator that turns
// an in-progress tab into a durable sale record.
package register

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tillcraft/pos/internal/domain/catalog"
	"github.com/tillcraft/pos/internal/domain/currency"
	"github.com/tillcraft/pos/internal/domain/customer"
	"github.com/tillcraft/pos/internal/domain/money"
	"github.com/tillcraft/pos/internal/domain/offer"
	"github.com/tillcraft/pos/internal/domain/payment"
	"github.com/tillcraft/pos/internal/domain/sale"
	"github.com/tillcraft/pos/internal/privacy"
)

// Validation sentinels. These are rejected synchronously with no state
// mutation and map to specific user-visible messages.
var (
	ErrEmptyCart        = errors.New("cart is empty")
	ErrUnknownTab       = errors.New("unknown tab")
	ErrTabCompleted     = errors.New("tab already completed")
	ErrNegativeTotal    = errors.New("discounts exceed the sale total")
	ErrAccountDisabled  = errors.New("account is disabled")
	ErrNoAuthorization  = errors.New("third-party payment not authorized")
	ErrFinalizeInFlight = errors.New("finalize already in progress")
)

// Mirror receives live-tab snapshots for cross-device recovery. Both
// operations are best-effort from the session's perspective: a failed
// mirror write is logged, never surfaced.
type Mirror interface {
	PutTab(ctx context.Context, tabID string, snapshot []byte) error
	DeleteTab(ctx context.Context, tabID string) error
}

// Config carries the per-user business configuration the session needs.
type Config struct {
	UserID         string
	TaxRatePercent decimal.Decimal
}

// Session is one user's register session: the set of open tabs, the active
// tab pointer, and the collaborators needed to price, authorize, and
// finalize sales.
//
// All exported methods are safe for concurrent use; a single mutex guards
// the tab list. Every tab-scoped operation takes the tab id explicitly and
// resolves it under one lock acquisition, so concurrent requests against
// different tabs never redirect each other. The active pointer is pure UI
// state: SelectTab moves it, nothing else consults it.
type Session struct {
	cfg        Config
	currencies *currency.Table
	customers  customer.Store
	recorder   sale.Recorder
	mirror     Mirror
	authorizer payment.Authorizer
	codec      privacy.Codec
	active     func() bool
	now        func() time.Time
	lg         *zap.Logger

	mu       sync.Mutex
	tabs     []*Tab
	activeID string
	tabSeq   int
	offers   map[string]offer.Offer
	cust     customer.Profile
}

// NewSession creates a session with a single empty tab, which becomes the
// active tab. userActive reports the account-enabled flag; finalize refuses
// when it returns false.
func NewSession(
	cfg Config,
	currencies *currency.Table,
	customers customer.Store,
	recorder sale.Recorder,
	mirror Mirror,
	authorizer payment.Authorizer,
	userActive func() bool,
	lg *zap.Logger,
) *Session {
	s := &Session{
		cfg:        cfg,
		currencies: currencies,
		customers:  customers,
		recorder:   recorder,
		mirror:     mirror,
		authorizer: authorizer,
		active:     userActive,
		now:        time.Now,
		lg:         lg,
		tabSeq:     1,
		offers:     make(map[string]offer.Offer),
	}
	t := newTab("Tab 1", currencies.Default())
	s.tabs = []*Tab{t}
	s.activeID = t.ID
	return s
}

// SetOffers replaces the known offer set. Offers are defined externally;
// the session only reads them. Applied ids pointing at removed offers stop
// contributing to totals but stay on their tabs.
func (s *Session) SetOffers(offers []offer.Offer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := make(map[string]offer.Offer, len(offers))
	for _, o := range offers {
		m[o.ID] = o
	}
	s.offers = m
}

// IdentifyCustomer loads the purchase profile for the given customer so
// regular-only offers can be evaluated. A lookup failure is surfaced; the
// previous identification is kept.
func (s *Session) IdentifyCustomer(ctx context.Context, info customer.Info) error {
	profile := customer.Profile{Info: info}
	if info.Phone != "" {
		found, err := s.customers.Find(ctx, info.Phone)
		if err != nil {
			return errors.Wrap(err, "find customer")
		}
		found.Info = info
		profile = found
	}
	s.mu.Lock()
	s.cust = profile
	s.mu.Unlock()
	return nil
}

// Customer returns the currently identified customer profile.
func (s *Session) Customer() customer.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cust
}

// AddTab opens a new empty tab with default settings and makes it active.
// Names come from a monotonic counter so they stay unique for the life of
// the session regardless of removals.
func (s *Session) AddTab(ctx context.Context) *Tab {
	s.mu.Lock()
	s.tabSeq++
	t := newTab("Tab "+strconv.Itoa(s.tabSeq), s.currencies.Default())
	s.tabs = append(s.tabs, t)
	s.activeID = t.ID
	snap := s.snapshotLocked(t)
	s.mu.Unlock()

	s.mirrorPut(ctx, t.ID, snap)
	return t
}

// RemoveTab closes the tab. The tab list is never empty: removing the last
// remaining tab clears it in place instead. When the removed tab was
// active, the last remaining tab becomes active. The mirrored copy is
// deleted best-effort. A tab with a finalize in flight cannot be removed.
func (s *Session) RemoveTab(ctx context.Context, tabID string) error {
	s.mu.Lock()
	idx := s.indexLocked(tabID)
	if idx < 0 {
		s.mu.Unlock()
		return ErrUnknownTab
	}
	if s.tabs[idx].finalizing {
		s.mu.Unlock()
		return ErrFinalizeInFlight
	}

	if len(s.tabs) == 1 {
		t := s.tabs[0]
		t.reset()
		snap := s.snapshotLocked(t)
		s.mu.Unlock()
		s.mirrorPut(ctx, t.ID, snap)
		return nil
	}

	s.tabs = append(s.tabs[:idx], s.tabs[idx+1:]...)
	if s.activeID == tabID {
		s.activeID = s.tabs[len(s.tabs)-1].ID
	}
	s.mu.Unlock()

	if err := s.mirror.DeleteTab(ctx, tabID); err != nil {
		s.lg.Warn("mirror delete failed", zap.String("tab_id", tabID), zap.Error(err))
	}
	return nil
}

// SelectTab makes the given tab active. Selection only affects what the UI
// shows by default; it never redirects operations already addressed at a
// tab.
func (s *Session) SelectTab(tabID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexLocked(tabID) < 0 {
		return ErrUnknownTab
	}
	s.activeID = tabID
	return nil
}

// Tabs returns the open tabs in display order along with the active tab id.
func (s *Session) Tabs() ([]Tab, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Tab, len(s.tabs))
	for i, t := range s.tabs {
		out[i] = *t
	}
	return out, s.activeID
}

// ActiveTab returns a copy of the active tab.
func (s *Session) ActiveTab() Tab {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.tabs[s.indexLocked(s.activeID)]
}

// Tab returns a copy of the given tab.
func (s *Session) Tab(tabID string) (Tab, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.tabLocked(tabID)
	if err != nil {
		return Tab{}, err
	}
	return *t, nil
}

// AddToCart adds one unit of the product to the tab's cart.
func (s *Session) AddToCart(ctx context.Context, tabID string, p catalog.Product) error {
	s.mu.Lock()
	t, err := s.mutableTabLocked(tabID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	t.addProduct(p)
	snap := s.snapshotLocked(t)
	s.mu.Unlock()

	s.mirrorPut(ctx, t.ID, snap)
	return nil
}

// UpdateQuantity sets the quantity of the product's line on the tab.
// Quantities <= 0 remove the line.
func (s *Session) UpdateQuantity(ctx context.Context, tabID, productID string, qty int) error {
	s.mu.Lock()
	t, err := s.mutableTabLocked(tabID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if !t.setQuantity(productID, qty) {
		s.mu.Unlock()
		return errors.Wrapf(catalog.ErrNotFound, "product %s", productID)
	}
	snap := s.snapshotLocked(t)
	s.mu.Unlock()

	s.mirrorPut(ctx, t.ID, snap)
	return nil
}

// RemoveFromCart removes the product's line from the tab.
func (s *Session) RemoveFromCart(ctx context.Context, tabID, productID string) error {
	return s.UpdateQuantity(ctx, tabID, productID, 0)
}

// ClearTab resets the tab to a fresh empty state.
func (s *Session) ClearTab(ctx context.Context, tabID string) error {
	s.mu.Lock()
	t, err := s.mutableTabLocked(tabID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	t.reset()
	snap := s.snapshotLocked(t)
	s.mu.Unlock()

	s.mirrorPut(ctx, t.ID, snap)
	return nil
}

// SetDiscount configures the manual discount on the tab. Negative values
// are a validation error caught here at the boundary; the calculator itself
// never fails.
func (s *Session) SetDiscount(ctx context.Context, tabID string, d money.ManualDiscount) error {
	if d.Value.IsNegative() {
		return errors.New("discount value must not be negative")
	}
	s.mu.Lock()
	t, err := s.mutableTabLocked(tabID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	t.Discount = d
	snap := s.snapshotLocked(t)
	s.mu.Unlock()

	s.mirrorPut(ctx, t.ID, snap)
	return nil
}

// SetPayment selects the payment method on the tab.
func (s *Session) SetPayment(ctx context.Context, tabID string, m payment.Method) error {
	s.mu.Lock()
	t, err := s.mutableTabLocked(tabID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	t.Payment = m
	t.pendingAuth = nil
	snap := s.snapshotLocked(t)
	s.mu.Unlock()

	s.mirrorPut(ctx, t.ID, snap)
	return nil
}

// ChangeCurrency switches the tab's display currency. Every line's price is
// recomputed from its base price; applied offer discounts are recomputed on
// the next totals pass, never cached.
func (s *Session) ChangeCurrency(ctx context.Context, tabID, code string) error {
	cur := s.currencies.Lookup(code)
	s.mu.Lock()
	t, err := s.mutableTabLocked(tabID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	t.setCurrency(cur)
	snap := s.snapshotLocked(t)
	s.mu.Unlock()

	s.mirrorPut(ctx, t.ID, snap)
	return nil
}

// ApplyOffer applies the named offer to the tab after checking eligibility.
// Rejections leave the tab unchanged.
func (s *Session) ApplyOffer(ctx context.Context, tabID, offerID string) error {
	s.mu.Lock()
	t, err := s.mutableTabLocked(tabID)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	if t.hasOffer(offerID) {
		s.mu.Unlock()
		return offer.ErrAlreadyApplied
	}
	o, ok := s.offers[offerID]
	if !ok {
		s.mu.Unlock()
		return offer.ErrUnknownOffer
	}

	lines := t.moneyLines()
	if err := offer.Check(o, lines, s.cust, money.Subtotal(lines), s.now()); err != nil {
		s.mu.Unlock()
		return err
	}

	t.AppliedOffers = append(t.AppliedOffers, offerID)
	snap := s.snapshotLocked(t)
	s.mu.Unlock()

	s.mirrorPut(ctx, t.ID, snap)
	return nil
}

// RemoveOffer removes the offer from the tab. Removing an offer that is
// applied always succeeds.
func (s *Session) RemoveOffer(ctx context.Context, tabID, offerID string) error {
	s.mu.Lock()
	t, err := s.mutableTabLocked(tabID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	for i, applied := range t.AppliedOffers {
		if applied != offerID {
			continue
		}
		t.AppliedOffers = append(t.AppliedOffers[:i], t.AppliedOffers[i+1:]...)
		snap := s.snapshotLocked(t)
		s.mu.Unlock()
		s.mirrorPut(ctx, t.ID, snap)
		return nil
	}
	s.mu.Unlock()
	return offer.ErrUnknownOffer
}

// Totals derives the tab's totals. Offer contributions are resolved fresh
// on every call; combo offers whose required products left the cart
// contribute nothing.
func (s *Session) Totals(tabID string) (money.Totals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.tabLocked(tabID)
	if err != nil {
		return money.Totals{}, err
	}
	return s.totalsLocked(t), nil
}

func (s *Session) totalsLocked(t *Tab) money.Totals {
	lines := t.moneyLines()
	subtotal := money.Subtotal(lines)
	convert := func(base decimal.Decimal) decimal.Decimal {
		return currency.Convert(base, t.Currency)
	}

	applied := make([]offer.Offer, 0, len(t.AppliedOffers))
	for _, id := range t.AppliedOffers {
		if o, ok := s.offers[id]; ok {
			applied = append(applied, o)
		}
	}
	discounts := offer.ActiveDiscounts(applied, lines, subtotal, convert)

	return money.Compute(lines, s.cfg.TaxRatePercent, t.Discount, discounts)
}

// tabLocked resolves the tab id. Callers must hold s.mu.
func (s *Session) tabLocked(tabID string) (*Tab, error) {
	if idx := s.indexLocked(tabID); idx >= 0 {
		return s.tabs[idx], nil
	}
	return nil, ErrUnknownTab
}

// mutableTabLocked resolves the tab id for a mutation, refusing tabs whose
// finalize commit is in flight so mid-commit edits are never silently
// destroyed by the post-commit reset. Callers must hold s.mu.
func (s *Session) mutableTabLocked(tabID string) (*Tab, error) {
	t, err := s.tabLocked(tabID)
	if err != nil {
		return nil, err
	}
	if t.finalizing {
		return nil, ErrFinalizeInFlight
	}
	return t, nil
}

func (s *Session) indexLocked(tabID string) int {
	for i, t := range s.tabs {
		if t.ID == tabID {
			return i
		}
	}
	return -1
}

func (s *Session) mirrorPut(ctx context.Context, tabID string, snapshot []byte) {
	if err := s.mirror.PutTab(ctx, tabID, snapshot); err != nil {
		s.lg.Warn("mirror write failed", zap.String("tab_id", tabID), zap.Error(err))
	}
}

// tabNumber extracts the N from a "Tab N" display name, 0 when the name
// does not follow the scheme.
func tabNumber(name string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(name, "Tab "))
	if err != nil {
		return 0
	}
	return n
}
