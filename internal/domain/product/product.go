package product

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Source identifies the upstream catalog a product was loaded from.
type Source string

const (
	// SourceDummyJSON tags products from the DummyJSON-shaped source.
	SourceDummyJSON Source = "dummy"
	// SourceFakeStore tags products from the FakeStore-shaped source.
	SourceFakeStore Source = "fakestore"
)

// Product is a normalized catalog item. Values are immutable once loaded.
type Product struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Price    decimal.Decimal `json:"price"`
	Image    string          `json:"image"`
	Category string          `json:"category"`
	Rating   Rating          `json:"rating"`
	Source   Source          `json:"source"`
}

// Rating is the review summary shown next to a product.
type Rating struct {
	Rate  float64 `json:"rate"`
	Count int     `json:"count"`
}

// MaxStars is the upper bound of the star scale.
const MaxStars = 5

// Stars returns the number of filled and empty stars for the rating. The rate
// is rounded to the nearest integer, not truncated. NaN counts as zero and
// rates outside the scale are clamped.
func (r Rating) Stars() (filled, empty int) {
	switch rate := r.Rate; {
	case math.IsNaN(rate), rate <= 0:
		filled = 0
	case rate >= MaxStars:
		filled = MaxStars
	default:
		filled = int(roundHalfUp(rate))
	}
	return filled, MaxStars - filled
}

func roundHalfUp(v float64) float64 {
	return decimal.NewFromFloat(v).Round(0).InexactFloat64()
}

// ID builds a catalog-wide product id from a source prefix and the
// source-local id.
func ID(prefix, localID string) string {
	return prefix + "-" + localID
}

// MatchesCategory reports whether the product category contains tag as a
// case-insensitive substring.
func (p Product) MatchesCategory(tag string) bool {
	return strings.Contains(strings.ToLower(p.Category), strings.ToLower(tag))
}
