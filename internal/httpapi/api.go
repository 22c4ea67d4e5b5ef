// Package httpapi exposes the register session to the UI layer over HTTP.
// Handlers are thin: decode, delegate to the orchestrator, encode. All
// business rules live in the register and domain packages.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tillcraft/pos/internal/domain/catalog"
	"github.com/tillcraft/pos/internal/domain/currency"
	"github.com/tillcraft/pos/internal/domain/money"
	"github.com/tillcraft/pos/internal/domain/offer"
	"github.com/tillcraft/pos/internal/domain/payment"
	"github.com/tillcraft/pos/internal/register"
)

// API wires the HTTP surface to the session and the read-only repositories.
type API struct {
	session    *register.Session
	catalog    catalog.Repository
	offers     offer.Repository
	currencies *currency.Table
}

// New constructs the API.
func New(session *register.Session, cat catalog.Repository, offers offer.Repository, currencies *currency.Table) *API {
	return &API{session: session, catalog: cat, offers: offers, currencies: currencies}
}

// Register attaches all routes to the mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/products", a.listProducts)
	mux.HandleFunc("GET /api/categories", a.listCategories)
	mux.HandleFunc("GET /api/offers", a.listOffers)
	mux.HandleFunc("GET /api/currencies", a.listCurrencies)

	mux.HandleFunc("GET /api/tabs", a.listTabs)
	mux.HandleFunc("POST /api/tabs", a.addTab)
	mux.HandleFunc("DELETE /api/tabs/{id}", a.removeTab)
	mux.HandleFunc("POST /api/tabs/{id}/select", a.selectTab)

	mux.HandleFunc("POST /api/tabs/{id}/cart", a.addToCart)
	mux.HandleFunc("PUT /api/tabs/{id}/cart/{productID}", a.updateQuantity)
	mux.HandleFunc("DELETE /api/tabs/{id}/cart/{productID}", a.removeFromCart)
	mux.HandleFunc("POST /api/tabs/{id}/clear", a.clearTab)

	mux.HandleFunc("PUT /api/tabs/{id}/currency", a.changeCurrency)
	mux.HandleFunc("PUT /api/tabs/{id}/discount", a.setDiscount)
	mux.HandleFunc("PUT /api/tabs/{id}/payment", a.setPayment)

	mux.HandleFunc("POST /api/tabs/{id}/offers/{offerID}", a.applyOffer)
	mux.HandleFunc("DELETE /api/tabs/{id}/offers/{offerID}", a.removeOffer)

	mux.HandleFunc("GET /api/tabs/{id}/totals", a.totals)
	mux.HandleFunc("POST /api/tabs/{id}/checkout", a.checkout)
	mux.HandleFunc("POST /api/tabs/{id}/payment/confirm", a.confirmPayment)
	mux.HandleFunc("POST /api/tabs/{id}/finalize", a.finalize)

	mux.HandleFunc("POST /api/customer", a.identifyCustomer)
}

// errMalformedBody marks JSON decode failures so they surface as 400 rather
// than the generic transient-failure response.
var errMalformedBody = errors.New("malformed request body")

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.Wrapf(errMalformedBody, "%v", err)
	}
	return nil
}

// writeError maps domain errors onto the {code,message} error shape.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusUnprocessableEntity
	msg := err.Error()

	switch {
	case errors.Is(err, register.ErrEmptyCart),
		errors.Is(err, errMalformedBody):
		status = http.StatusBadRequest
	case errors.Is(err, register.ErrUnknownTab),
		errors.Is(err, offer.ErrUnknownOffer),
		errors.Is(err, catalog.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, register.ErrAccountDisabled):
		status = http.StatusForbidden
	case errors.Is(err, offer.ErrAlreadyApplied),
		errors.Is(err, offer.ErrRegularOnly),
		errors.Is(err, offer.ErrMinPurchase),
		errors.Is(err, offer.ErrExpired),
		errors.Is(err, offer.ErrMissingProducts),
		errors.Is(err, register.ErrTabCompleted),
		errors.Is(err, register.ErrNegativeTotal),
		errors.Is(err, register.ErrNoAuthorization):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, register.ErrFinalizeInFlight):
		status = http.StatusConflict
	case errors.Is(err, payment.ErrAuthorizationTimeout):
		status = http.StatusGatewayTimeout
	default:
		// Transient I/O failures surface as one generic message; the
		// operation was not applied and the user can retry.
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		status = http.StatusBadGateway
		msg = "operation failed, please try again"
	}

	e := &jx.Encoder{}
	e.ObjStart()
	e.FieldStart("code")
	e.Int(status)
	e.FieldStart("message")
	e.Str(msg)
	e.ObjEnd()
	writeRaw(w, status, e.Bytes())
}

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	e := &jx.Encoder{}
	encode(e)
	writeRaw(w, status, e.Bytes())
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func encodeDecimal(e *jx.Encoder, field string, d decimal.Decimal) {
	e.FieldStart(field)
	e.Float64(d.InexactFloat64())
}

func encodeTotals(e *jx.Encoder, t money.Totals) {
	e.ObjStart()
	encodeDecimal(e, "subtotal", t.Subtotal)
	encodeDecimal(e, "tax", t.Tax)
	encodeDecimal(e, "discount", t.Discount)
	encodeDecimal(e, "total", t.Total)
	e.ObjEnd()
}
