package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/product"
)

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer()
	require.NoError(t, err)
	return r
}

func TestRenderer_Page(t *testing.T) {
	r := newTestRenderer(t)
	page := Page{
		Title: "Storefront",
		Grid: ProjectGrid(CatalogReady, []product.Product{testProduct("fake-1", "Backpack <XL>", "109.95", 3.9, 120)},
			[]string{"men's clothing"}, "all"),
		Cart:      ProjectCart(nil, false),
		BackToTop: BackToTop{Threshold: 300},
	}

	var buf bytes.Buffer
	require.NoError(t, r.Page(&buf, page))
	html := buf.String()

	assert.Contains(t, html, `data-id="fake-1"`)
	assert.Contains(t, html, "Backpack &lt;XL&gt;")
	assert.Contains(t, html, "$109.95")
	assert.Contains(t, html, "★★★★☆ (120)")
	assert.Contains(t, html, `class="category-btn active" data-category="all"`)
	assert.Contains(t, html, `class="empty-cart">Your cart is empty`)
	assert.Contains(t, html, `<span id="cart-total">$0.00</span>`)
	assert.Contains(t, html, `data-threshold="300"`)
	assert.NotContains(t, html, "cart-notification\" data-show-delay")
}

func TestRenderer_GridPlaceholders(t *testing.T) {
	r := newTestRenderer(t)

	for status, want := range map[CatalogStatus]string{
		CatalogLoading: `class="loading-spinner"`,
		CatalogFailed:  `class="error-message">` + ErrorMessage,
		CatalogReady:   `class="no-products">` + NoProductsMessage,
	} {
		var buf bytes.Buffer
		require.NoError(t, r.Grid(&buf, ProjectGrid(status, nil, nil, "all")))
		assert.Contains(t, buf.String(), want)
		assert.NotContains(t, buf.String(), "product-card")
	}
}

func TestRenderer_CartPartial(t *testing.T) {
	r := newTestRenderer(t)
	lines := []cart.Line{{Product: testProduct("dummy-1", "Mascara", "9.99", 5, 5), Quantity: 2}}

	var buf bytes.Buffer
	require.NoError(t, r.Cart(&buf, ProjectCart(lines, true), NewToast("Mascara", DefaultToastTiming)))
	html := buf.String()

	assert.Contains(t, html, `class="cart-sidebar open"`)
	assert.Contains(t, html, `<span id="cart-count" hx-swap-oob="true">2</span>`)
	assert.Contains(t, html, `<span id="cart-total">$19.98</span>`)
	assert.Equal(t, 3, strings.Count(html, `value="dummy-1"`), "decrease, increase and remove carry the id")
	assert.Contains(t, html, `action="/cart/decrease"`)
	assert.Contains(t, html, `action="/cart/increase"`)
	assert.Contains(t, html, `action="/cart/remove"`)
	assert.Contains(t, html, "Mascara added to cart")
	assert.Contains(t, html, `data-show-delay="10" data-hide-after="3000" data-remove-after="300"`)
}

func TestRenderer_CartWithoutToast(t *testing.T) {
	r := newTestRenderer(t)

	var buf bytes.Buffer
	require.NoError(t, r.Cart(&buf, ProjectCart(nil, false), nil))
	assert.NotContains(t, buf.String(), "cart-notification")
	assert.Contains(t, buf.String(), `class="cart-sidebar"`)
}
