package httpapi

import (
	"net/http"

	"github.com/go-faster/jx"
)

func (a *API) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := a.catalog.ListProducts(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for _, p := range products {
			e.ObjStart()
			e.FieldStart("id")
			e.Str(p.ID)
			e.FieldStart("name")
			e.Str(p.Name)
			e.FieldStart("category_id")
			e.Str(p.CategoryID)
			encodeDecimal(e, "price", p.Price)
			if p.ImageURL != "" {
				e.FieldStart("image_url")
				e.Str(p.ImageURL)
			}
			e.ObjEnd()
		}
		e.ArrEnd()
	})
}

func (a *API) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := a.catalog.ListCategories(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for _, c := range categories {
			e.ObjStart()
			e.FieldStart("id")
			e.Str(c.ID)
			e.FieldStart("name")
			e.Str(c.Name)
			e.ObjEnd()
		}
		e.ArrEnd()
	})
}

func (a *API) listCurrencies(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for _, c := range a.currencies.All() {
			e.ObjStart()
			e.FieldStart("code")
			e.Str(c.Code)
			e.FieldStart("name")
			e.Str(c.Name)
			e.FieldStart("symbol")
			e.Str(c.Symbol)
			encodeDecimal(e, "rate", c.Rate)
			e.ObjEnd()
		}
		e.ArrEnd()
	})
}

func (a *API) listOffers(w http.ResponseWriter, r *http.Request) {
	offers, err := a.offers.List(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for _, o := range offers {
			e.ObjStart()
			e.FieldStart("id")
			e.Str(o.ID)
			e.FieldStart("name")
			e.Str(o.Name)
			e.FieldStart("description")
			e.Str(o.Description)
			e.FieldStart("kind")
			e.Str(string(o.Kind))
			e.FieldStart("discount_kind")
			e.Str(string(o.DiscountKind))
			encodeDecimal(e, "discount_value", o.DiscountValue)
			if o.MinPurchase.IsPositive() {
				encodeDecimal(e, "min_purchase", o.MinPurchase)
			}
			if o.ValidUntil != nil {
				e.FieldStart("valid_until")
				e.Str(o.ValidUntil.UTC().Format("2006-01-02T15:04:05Z07:00"))
			}
			e.ObjEnd()
		}
		e.ArrEnd()
	})
}
