package httpapi

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/tillcraft/pos/internal/domain/customer"
)

func (a *API) checkout(w http.ResponseWriter, r *http.Request) {
	step, err := a.session.Checkout(r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("next_step")
		e.Str(string(step))
		e.ObjEnd()
	})
}

func (a *API) confirmPayment(w http.ResponseWriter, r *http.Request) {
	if err := a.session.ConfirmThirdPartyPayment(r.Context(), r.PathValue("id")); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("status")
		e.Str("authorized")
		e.ObjEnd()
	})
}

type customerReq struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email,omitempty"`
}

func (a *API) finalize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Customer *customerReq `json:"customer,omitempty"`
	}
	if err := decodeBody(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	info := customer.Info{}
	if req.Customer != nil {
		info = customer.Info{
			Name:  req.Customer.Name,
			Phone: req.Customer.Phone,
			Email: req.Customer.Email,
		}
	}
	rec, err := a.session.FinalizeSale(r.Context(), r.PathValue("id"), info)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("transaction_id")
		e.Str(rec.TransactionID)
		e.FieldStart("timestamp")
		e.Str(rec.Timestamp.UTC().Format("2006-01-02T15:04:05Z07:00"))
		encodeDecimal(e, "subtotal", rec.Subtotal)
		encodeDecimal(e, "tax", rec.Tax)
		encodeDecimal(e, "discount", rec.Discount)
		encodeDecimal(e, "total", rec.Total)
		e.FieldStart("currency")
		e.Str(rec.CurrencyCode)
		encodeDecimal(e, "exchange_rate", rec.ExchangeRate)
		e.FieldStart("payment")
		e.Str(string(rec.Payment.Kind))
		if rec.Authorization != nil {
			e.FieldStart("payment_transaction_id")
			e.Str(rec.Authorization.TransactionID)
		}
		e.FieldStart("status")
		e.Str(rec.Status)
		e.ObjEnd()
	})
}

func (a *API) identifyCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerReq
	if err := decodeBody(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	info := customer.Info{Name: req.Name, Phone: req.Phone, Email: req.Email}
	if err := a.session.IdentifyCustomer(r.Context(), info); err != nil {
		a.writeError(w, r, err)
		return
	}
	profile := a.session.Customer()
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("name")
		e.Str(profile.Name)
		e.FieldStart("phone")
		e.Str(profile.Phone)
		e.FieldStart("is_regular")
		e.Bool(profile.IsRegular())
		e.FieldStart("purchase_count")
		e.Int(profile.PurchaseCount)
		e.ObjEnd()
	})
}
