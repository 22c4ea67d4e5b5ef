// Package currency provides the static currency table and base-currency
// conversion used for display pricing. Catalog prices and persisted sale
// amounts are always anchored in the base currency; a display amount is
// derived by multiplying by the currency's exchange rate.
package currency

import (
	"github.com/shopspring/decimal"
)

// Currency describes one entry of the static currency table.
type Currency struct {
	Code   string
	Name   string
	Symbol string
	// Rate is the multiplier from the base currency to this currency.
	Rate decimal.Decimal
}

// Table is an ordered, read-only list of currencies with a configured
// business default. The zero Table is unusable; construct with NewTable.
type Table struct {
	entries []Currency
	byCode  map[string]int
	defCode string
}

// NewTable builds a lookup table over the given entries. defaultCode is the
// business-configured default; when empty or unknown the first entry acts as
// the default.
func NewTable(entries []Currency, defaultCode string) *Table {
	byCode := make(map[string]int, len(entries))
	for i, c := range entries {
		byCode[c.Code] = i
	}
	if _, ok := byCode[defaultCode]; !ok {
		defaultCode = ""
	}
	return &Table{entries: entries, byCode: byCode, defCode: defaultCode}
}

// Default returns the business default currency, falling back to the first
// table entry when no default is configured.
func (t *Table) Default() Currency {
	if t.defCode != "" {
		return t.entries[t.byCode[t.defCode]]
	}
	return t.entries[0]
}

// Lookup returns the currency for the given code. Unknown codes fall back to
// the first table entry rather than erroring; callers always get a usable
// currency.
func (t *Table) Lookup(code string) Currency {
	if i, ok := t.byCode[code]; ok {
		return t.entries[i]
	}
	return t.entries[0]
}

// All returns the table entries in declaration order.
func (t *Table) All() []Currency {
	out := make([]Currency, len(t.entries))
	copy(out, t.entries)
	return out
}

// Convert derives the display amount for a base-currency amount.
func Convert(base decimal.Decimal, c Currency) decimal.Decimal {
	return base.Mul(c.Rate)
}

// DefaultEntries is the seed currency list used when the business has not
// configured its own set. Rates are multipliers from the INR base.
func DefaultEntries() []Currency {
	return []Currency{
		{Code: "INR", Name: "Indian Rupee", Symbol: "₹", Rate: decimal.NewFromInt(1)},
		{Code: "USD", Name: "US Dollar", Symbol: "$", Rate: decimal.RequireFromString("0.012")},
		{Code: "EUR", Name: "Euro", Symbol: "€", Rate: decimal.RequireFromString("0.011")},
		{Code: "GBP", Name: "British Pound", Symbol: "£", Rate: decimal.RequireFromString("0.0095")},
		{Code: "AED", Name: "UAE Dirham", Symbol: "د.إ", Rate: decimal.RequireFromString("0.044")},
	}
}
