package register

import (
	"encoding/json"
	"sort"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tillcraft/pos/internal/domain/currency"
	"github.com/tillcraft/pos/internal/domain/money"
	"github.com/tillcraft/pos/internal/domain/payment"
)

// tabSnapshot is the wire form of a live tab mirrored for cross-device
// recovery. Product names pass through the privacy codec before leaving the
// process and are decoded on the way back in.
type tabSnapshot struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Lines         []lineSnapshot  `json:"lines"`
	DiscountKind  string          `json:"discount_kind"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	PaymentKind   string          `json:"payment_kind"`
	Provider      string          `json:"provider,omitempty"`
	CurrencyCode  string          `json:"currency_code"`
	AppliedOffers []string        `json:"applied_offers,omitempty"`
	Status        string          `json:"status"`
}

type lineSnapshot struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	BasePrice decimal.Decimal `json:"base_price"`
	Quantity  int             `json:"quantity"`
}

// snapshotLocked serializes a tab for mirroring. Callers must hold s.mu.
func (s *Session) snapshotLocked(t *Tab) []byte {
	snap := tabSnapshot{
		ID:            t.ID,
		Name:          t.Name,
		DiscountKind:  string(t.Discount.Kind),
		DiscountValue: t.Discount.Value,
		PaymentKind:   string(t.Payment.Kind),
		Provider:      t.Payment.Provider,
		CurrencyCode:  t.Currency.Code,
		AppliedOffers: t.AppliedOffers,
		Status:        string(t.Status),
	}
	snap.Lines = make([]lineSnapshot, len(t.Lines))
	for i, l := range t.Lines {
		snap.Lines[i] = lineSnapshot{
			ProductID: l.ProductID,
			Name:      s.codec.Encode(l.Name),
			BasePrice: l.BasePrice,
			Quantity:  l.Quantity,
		}
	}
	data, err := json.Marshal(snap)
	if err != nil {
		// The snapshot is a plain value type; marshalling cannot fail on
		// well-formed data, but mirroring is best-effort anyway.
		s.lg.Warn("snapshot marshal failed", zap.String("tab_id", t.ID), zap.Error(err))
		return nil
	}
	return data
}

func (s *Session) decodeSnapshot(data []byte) (*Tab, error) {
	var snap tabSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, errors.Wrap(err, "unmarshal tab snapshot")
	}
	cur := s.currencies.Lookup(snap.CurrencyCode)
	t := &Tab{
		ID:   snap.ID,
		Name: snap.Name,
		Discount: money.ManualDiscount{
			Kind:  money.DiscountKind(snap.DiscountKind),
			Value: snap.DiscountValue,
		},
		Payment:       payment.Method{Kind: payment.MethodKind(snap.PaymentKind), Provider: snap.Provider},
		Currency:      cur,
		AppliedOffers: snap.AppliedOffers,
		Status:        Status(snap.Status),
	}
	t.Lines = make([]CartLine, len(snap.Lines))
	for i, l := range snap.Lines {
		t.Lines[i] = CartLine{
			ProductID: l.ProductID,
			Name:      s.codec.Decode(l.Name),
			Price:     currency.Convert(l.BasePrice, cur),
			BasePrice: l.BasePrice,
			Quantity:  l.Quantity,
		}
	}
	return t, nil
}

// Reconcile applies a remote tab-set update from another device.
// Reconciliation is identity-based: when the remote set of tab ids matches
// the local one the update is ignored, otherwise the remote state replaces
// the local tabs wholesale. Concurrent field-level edits from two devices
// can therefore overwrite each other; that is a deliberate carry-over for
// the single-user-multi-device case rather than a merge strategy.
func (s *Session) Reconcile(snapshots map[string][]byte) error {
	if len(snapshots) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// A finalize holds its tab pointer across the commit; adopting the
	// remote set now would orphan it. The next watch update catches up.
	for _, t := range s.tabs {
		if t.finalizing {
			return nil
		}
	}

	same := len(snapshots) == len(s.tabs)
	if same {
		for _, t := range s.tabs {
			if _, ok := snapshots[t.ID]; !ok {
				same = false
				break
			}
		}
	}
	if same {
		return nil
	}

	tabs := make([]*Tab, 0, len(snapshots))
	for id, data := range snapshots {
		t, err := s.decodeSnapshot(data)
		if err != nil {
			return errors.Wrapf(err, "decode tab %s", id)
		}
		tabs = append(tabs, t)
	}
	// Map order is random; keep display order stable across devices.
	sort.Slice(tabs, func(i, j int) bool {
		if tabs[i].Name != tabs[j].Name {
			return tabs[i].Name < tabs[j].Name
		}
		return tabs[i].ID < tabs[j].ID
	})
	s.tabs = tabs
	if s.indexLocked(s.activeID) < 0 {
		s.activeID = s.tabs[0].ID
	}
	// Re-seed the name counter past the adopted names so new tabs never
	// duplicate a display name.
	seq := len(tabs)
	for _, t := range tabs {
		if n := tabNumber(t.Name); n > seq {
			seq = n
		}
	}
	if seq > s.tabSeq {
		s.tabSeq = seq
	}
	return nil
}
