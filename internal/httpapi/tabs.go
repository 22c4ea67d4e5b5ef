package httpapi

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/tillcraft/pos/internal/domain/money"
	"github.com/tillcraft/pos/internal/domain/payment"
	"github.com/tillcraft/pos/internal/register"
)

func encodeTab(e *jx.Encoder, t register.Tab) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(t.ID)
	e.FieldStart("name")
	e.Str(t.Name)
	e.FieldStart("status")
	e.Str(string(t.Status))
	e.FieldStart("currency")
	e.Str(t.Currency.Code)
	e.FieldStart("payment")
	e.Str(string(t.Payment.Kind))
	if t.Payment.Provider != "" {
		e.FieldStart("provider")
		e.Str(t.Payment.Provider)
	}
	e.FieldStart("discount_kind")
	e.Str(string(t.Discount.Kind))
	encodeDecimal(e, "discount_value", t.Discount.Value)
	e.FieldStart("applied_offers")
	e.ArrStart()
	for _, id := range t.AppliedOffers {
		e.Str(id)
	}
	e.ArrEnd()
	e.FieldStart("lines")
	e.ArrStart()
	for _, l := range t.Lines {
		e.ObjStart()
		e.FieldStart("product_id")
		e.Str(l.ProductID)
		e.FieldStart("name")
		e.Str(l.Name)
		encodeDecimal(e, "price", l.Price)
		encodeDecimal(e, "original_price", l.BasePrice)
		e.FieldStart("quantity")
		e.Int(l.Quantity)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
}

func (a *API) listTabs(w http.ResponseWriter, _ *http.Request) {
	tabs, activeID := a.session.Tabs()
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("active_tab_id")
		e.Str(activeID)
		e.FieldStart("tabs")
		e.ArrStart()
		for _, t := range tabs {
			encodeTab(e, t)
		}
		e.ArrEnd()
		e.ObjEnd()
	})
}

func (a *API) addTab(w http.ResponseWriter, r *http.Request) {
	t := a.session.AddTab(r.Context())
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		encodeTab(e, *t)
	})
}

func (a *API) removeTab(w http.ResponseWriter, r *http.Request) {
	if err := a.session.RemoveTab(r.Context(), r.PathValue("id")); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) selectTab(w http.ResponseWriter, r *http.Request) {
	if err := a.session.SelectTab(r.PathValue("id")); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) addToCart(w http.ResponseWriter, r *http.Request) {
	tabID := r.PathValue("id")
	var req struct {
		ProductID string `json:"product_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	p, err := a.catalog.GetProduct(r.Context(), req.ProductID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.session.AddToCart(r.Context(), tabID, *p); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeTab(w, r, tabID)
}

func (a *API) updateQuantity(w http.ResponseWriter, r *http.Request) {
	tabID := r.PathValue("id")
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := decodeBody(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.session.UpdateQuantity(r.Context(), tabID, r.PathValue("productID"), req.Quantity); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeTab(w, r, tabID)
}

func (a *API) removeFromCart(w http.ResponseWriter, r *http.Request) {
	tabID := r.PathValue("id")
	if err := a.session.RemoveFromCart(r.Context(), tabID, r.PathValue("productID")); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeTab(w, r, tabID)
}

func (a *API) clearTab(w http.ResponseWriter, r *http.Request) {
	tabID := r.PathValue("id")
	if err := a.session.ClearTab(r.Context(), tabID); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeTab(w, r, tabID)
}

func (a *API) changeCurrency(w http.ResponseWriter, r *http.Request) {
	tabID := r.PathValue("id")
	var req struct {
		Code string `json:"code"`
	}
	if err := decodeBody(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.session.ChangeCurrency(r.Context(), tabID, req.Code); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeTab(w, r, tabID)
}

func (a *API) setDiscount(w http.ResponseWriter, r *http.Request) {
	tabID := r.PathValue("id")
	var req struct {
		Kind  string          `json:"kind"`
		Value decimal.Decimal `json:"value"`
	}
	if err := decodeBody(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	d := money.ManualDiscount{Kind: money.DiscountKind(req.Kind), Value: req.Value}
	if err := a.session.SetDiscount(r.Context(), tabID, d); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeTab(w, r, tabID)
}

func (a *API) setPayment(w http.ResponseWriter, r *http.Request) {
	tabID := r.PathValue("id")
	var req struct {
		Kind     string `json:"kind"`
		Provider string `json:"provider"`
	}
	if err := decodeBody(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	m := payment.Method{Kind: payment.MethodKind(req.Kind), Provider: req.Provider}
	if err := a.session.SetPayment(r.Context(), tabID, m); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeTab(w, r, tabID)
}

func (a *API) applyOffer(w http.ResponseWriter, r *http.Request) {
	tabID := r.PathValue("id")
	if err := a.session.ApplyOffer(r.Context(), tabID, r.PathValue("offerID")); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeTab(w, r, tabID)
}

func (a *API) removeOffer(w http.ResponseWriter, r *http.Request) {
	tabID := r.PathValue("id")
	if err := a.session.RemoveOffer(r.Context(), tabID, r.PathValue("offerID")); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeTab(w, r, tabID)
}

func (a *API) totals(w http.ResponseWriter, r *http.Request) {
	totals, err := a.session.Totals(r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeTotals(e, totals)
	})
}

// writeTab responds with the addressed tab and its totals.
func (a *API) writeTab(w http.ResponseWriter, r *http.Request, tabID string) {
	t, err := a.session.Tab(tabID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	totals, err := a.session.Totals(tabID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("tab")
		encodeTab(e, t)
		e.FieldStart("totals")
		encodeTotals(e, totals)
		e.ObjEnd()
	})
}
