// Package render projects catalog and cart state into view models and
// renders them as HTML. Projections are pure; rendering always rebuilds the
// whole fragment.
package render

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/product"
)

// Placeholder texts.
const (
	LoadingMessage    = "Loading products..."
	ErrorMessage      = "Failed to load products. Please try again later."
	NoProductsMessage = "No products found in this category."
	EmptyCartMessage  = "Your cart is empty"
)

// CatalogStatus is the outcome of the most recent catalog load.
type CatalogStatus int

const (
	CatalogLoading CatalogStatus = iota
	CatalogReady
	CatalogFailed
)

// GridStatus selects what the product grid shows.
type GridStatus string

const (
	GridLoading  GridStatus = "loading"
	GridError    GridStatus = "error"
	GridEmpty    GridStatus = "empty"
	GridProducts GridStatus = "products"
)

// Grid is the product grid view model.
type Grid struct {
	Status     GridStatus
	Message    string
	Categories []CategoryButton
	Cards      []ProductCard
}

// CategoryButton is one filter button. Exactly one button is active.
type CategoryButton struct {
	Value  string
	Label  string
	Active bool
}

// ProductCard is one product in the grid.
type ProductCard struct {
	ID          string
	Title       string
	Image       string
	Price       string
	FilledStars int
	EmptyStars  int
	RatingCount int
}

// Stars renders the rating as filled and empty star glyphs.
func (c ProductCard) Stars() string {
	return strings.Repeat("★", c.FilledStars) + strings.Repeat("☆", c.EmptyStars)
}

// Cart is the cart panel view model.
type Cart struct {
	Open        bool
	Empty       bool
	Placeholder string
	Lines       []CartLine
	Count       int
	Total       string
}

// CartLine is one row of the cart panel.
type CartLine struct {
	ID       string
	Title    string
	Image    string
	Price    string
	Quantity int
}

// ToastTiming controls the add-to-cart confirmation. HideAfter is measured
// from creation; RemoveAfter from the start of the hide transition.
type ToastTiming struct {
	ShowDelay   time.Duration
	HideAfter   time.Duration
	RemoveAfter time.Duration
}

// DefaultToastTiming matches the stock stylesheet transitions.
var DefaultToastTiming = ToastTiming{
	ShowDelay:   10 * time.Millisecond,
	HideAfter:   3 * time.Second,
	RemoveAfter: 300 * time.Millisecond,
}

// Toast is a transient confirmation message.
type Toast struct {
	Message string
	Timing  ToastTiming
}

func (t Toast) ShowDelayMS() int64   { return t.Timing.ShowDelay.Milliseconds() }
func (t Toast) HideAfterMS() int64   { return t.Timing.HideAfter.Milliseconds() }
func (t Toast) RemoveAfterMS() int64 { return t.Timing.RemoveAfter.Milliseconds() }

// BackToTop configures the scroll-to-top affordance.
type BackToTop struct {
	Threshold int
}

// Page is the full storefront view model.
type Page struct {
	Title     string
	Grid      Grid
	Cart      Cart
	Toast     *Toast
	BackToTop BackToTop
}

// ProjectGrid builds the grid for the visible products. categories are the
// catalog categories without "all".
func ProjectGrid(status CatalogStatus, visible []product.Product, categories []string, selected string) Grid {
	g := Grid{Categories: projectCategories(categories, selected)}

	switch {
	case status == CatalogLoading:
		g.Status, g.Message = GridLoading, LoadingMessage
	case status == CatalogFailed:
		g.Status, g.Message = GridError, ErrorMessage
	case len(visible) == 0:
		g.Status, g.Message = GridEmpty, NoProductsMessage
	default:
		g.Status = GridProducts
		g.Cards = make([]ProductCard, len(visible))
		for i, p := range visible {
			g.Cards[i] = projectCard(p)
		}
	}
	return g
}

func projectCategories(categories []string, selected string) []CategoryButton {
	buttons := make([]CategoryButton, 0, len(categories)+1)
	buttons = append(buttons, CategoryButton{Value: catalog.All, Label: "All"})

	found := false
	for _, c := range categories {
		if c == catalog.All {
			continue
		}
		active := c == selected
		found = found || active
		buttons = append(buttons, CategoryButton{Value: c, Label: c, Active: active})
	}
	if !found && selected != "" && selected != catalog.All {
		// A category that is not in the catalog stays selectable and active.
		buttons = append(buttons, CategoryButton{Value: selected, Label: selected, Active: true})
		found = true
	}
	if !found {
		buttons[0].Active = true
	}
	return buttons
}

func projectCard(p product.Product) ProductCard {
	filled, empty := p.Rating.Stars()
	return ProductCard{
		ID:          p.ID,
		Title:       p.Title,
		Image:       p.Image,
		Price:       FormatPrice(p.Price),
		FilledStars: filled,
		EmptyStars:  empty,
		RatingCount: p.Rating.Count,
	}
}

// ProjectCart builds the cart panel.
func ProjectCart(lines []cart.Line, open bool) Cart {
	c := Cart{
		Open:  open,
		Count: cart.TotalItemCount(lines),
	}
	if len(lines) == 0 {
		c.Empty = true
		c.Placeholder = EmptyCartMessage
		c.Total = FormatPrice(decimal.Zero)
		return c
	}

	c.Lines = make([]CartLine, len(lines))
	for i, l := range lines {
		c.Lines[i] = CartLine{
			ID:       l.ID,
			Title:    l.Title,
			Image:    l.Image,
			Price:    FormatPrice(l.Price),
			Quantity: l.Quantity,
		}
	}
	c.Total = FormatPrice(cart.TotalPrice(lines))
	return c
}

// NewToast returns the add-to-cart confirmation for a product title.
func NewToast(title string, timing ToastTiming) *Toast {
	return &Toast{Message: title + " added to cart", Timing: timing}
}

// FormatPrice formats an amount as dollars with two decimals.
func FormatPrice(v decimal.Decimal) string {
	return "$" + v.StringFixed(2)
}
