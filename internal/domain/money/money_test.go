package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestSubtotal(t *testing.T) {
	tests := []struct {
		name  string
		lines []Line
		want  decimal.Decimal
	}{
		{
			name: "empty cart",
			want: decimal.Zero,
		},
		{
			name: "single line",
			lines: []Line{
				{ProductID: "p1", Price: d("49.50"), Quantity: 2},
			},
			want: d("99.00"),
		},
		{
			name: "multiple lines",
			lines: []Line{
				{ProductID: "p1", Price: d("10.00"), Quantity: 3},
				{ProductID: "p2", Price: d("2.75"), Quantity: 1},
			},
			want: d("32.75"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, Subtotal(tt.lines).Equal(tt.want),
				"got %s want %s", Subtotal(tt.lines), tt.want)
		})
	}
}

func TestManualDiscountAmount(t *testing.T) {
	subtotal := d("200.00")

	flat := ManualDiscount{Kind: DiscountFlat, Value: d("15")}
	assert.True(t, flat.Amount(subtotal).Equal(d("15")))

	pct := ManualDiscount{Kind: DiscountPercentage, Value: d("10")}
	assert.True(t, pct.Amount(subtotal).Equal(d("20")))
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name    string
		lines   []Line
		taxRate decimal.Decimal
		manual  ManualDiscount
		offers  []decimal.Decimal
		want    Totals
	}{
		{
			name: "tax only",
			lines: []Line{
				{ProductID: "p1", Price: d("100.00"), Quantity: 1},
			},
			taxRate: d("18"),
			want: Totals{
				Subtotal: d("100.00"),
				Tax:      d("18.00"),
				Discount: d("0.00"),
				Total:    d("118.00"),
			},
		},
		{
			name: "percentage manual discount",
			lines: []Line{
				{ProductID: "p1", Price: d("50.00"), Quantity: 4},
			},
			taxRate: d("5"),
			manual:  ManualDiscount{Kind: DiscountPercentage, Value: d("10")},
			want: Totals{
				Subtotal: d("200.00"),
				Tax:      d("10.00"),
				Discount: d("20.00"),
				Total:    d("190.00"),
			},
		},
		{
			name: "manual discount plus offer contributions",
			lines: []Line{
				{ProductID: "p1", Price: d("120.00"), Quantity: 1},
				{ProductID: "p2", Price: d("30.00"), Quantity: 2},
			},
			taxRate: d("12"),
			manual:  ManualDiscount{Kind: DiscountFlat, Value: d("5")},
			offers:  []decimal.Decimal{d("18.00"), d("9.00")},
			want: Totals{
				Subtotal: d("180.00"),
				Tax:      d("21.60"),
				Discount: d("32.00"),
				Total:    d("169.60"),
			},
		},
		{
			name: "discounts exceeding subtotal go negative",
			lines: []Line{
				{ProductID: "p1", Price: d("10.00"), Quantity: 1},
			},
			taxRate: d("0"),
			manual:  ManualDiscount{Kind: DiscountFlat, Value: d("25")},
			want: Totals{
				Subtotal: d("10.00"),
				Tax:      d("0.00"),
				Discount: d("25.00"),
				Total:    d("-15.00"),
			},
		},
		{
			name: "fractional prices round half up",
			lines: []Line{
				{ProductID: "p1", Price: d("33.335"), Quantity: 3},
			},
			taxRate: d("7.5"),
			want: Totals{
				Subtotal: d("100.01"),
				Tax:      d("7.50"),
				Discount: d("0.00"),
				Total:    d("107.51"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(tt.lines, tt.taxRate, tt.manual, tt.offers)
			assert.True(t, got.Subtotal.Equal(tt.want.Subtotal), "subtotal %s", got.Subtotal)
			assert.True(t, got.Tax.Equal(tt.want.Tax), "tax %s", got.Tax)
			assert.True(t, got.Discount.Equal(tt.want.Discount), "discount %s", got.Discount)
			assert.True(t, got.Total.Equal(tt.want.Total), "total %s", got.Total)
		})
	}
}

// Totals must always satisfy the identity total == subtotal + tax - discount
// on the rounded component values, regardless of rounding in the inputs.
func TestComputeAdditivity(t *testing.T) {
	carts := [][]Line{
		{{ProductID: "a", Price: d("0.01"), Quantity: 7}},
		{{ProductID: "a", Price: d("19.99"), Quantity: 3}, {ProductID: "b", Price: d("7.77"), Quantity: 9}},
		{{ProductID: "a", Price: d("123.456"), Quantity: 2}},
	}
	rates := []decimal.Decimal{d("0"), d("5"), d("18"), d("12.5")}

	for _, lines := range carts {
		for _, rate := range rates {
			got := Compute(lines, rate,
				ManualDiscount{Kind: DiscountPercentage, Value: d("3.33")},
				[]decimal.Decimal{d("1.005")},
			)
			sum := got.Subtotal.Add(got.Tax).Sub(got.Discount)
			assert.True(t, got.Total.Equal(sum),
				"total %s != subtotal %s + tax %s - discount %s",
				got.Total, got.Subtotal, got.Tax, got.Discount)
		}
	}
}
