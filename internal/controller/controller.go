// Package controller maps storefront UI events onto catalog and cart
// mutations and returns the view models to re-render.
package controller

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/events"
	"github.com/xenking/storefront/internal/render"
)

// CatalogLoader fetches a complete catalog.
type CatalogLoader interface {
	LoadCatalog(ctx context.Context) ([]product.Product, error)
}

// Config holds presentation settings.
type Config struct {
	Title              string
	Toast              render.ToastTiming
	BackToTopThreshold int
	// EventTimeout bounds a single cart event publish.
	EventTimeout time.Duration
}

// Controller owns the UI-only state (catalog load status, cart panel
// visibility) and delegates everything else to the stores.
type Controller struct {
	loader    CatalogLoader
	catalog   *catalog.Store
	cart      *cart.Store
	publisher events.Publisher
	cfg       Config

	mu       sync.Mutex
	status   render.CatalogStatus
	cartOpen bool
}

// New returns a Controller. A nil publisher discards events.
func New(
	loader CatalogLoader,
	catalogStore *catalog.Store,
	cartStore *cart.Store,
	publisher events.Publisher,
	cfg Config,
) *Controller {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if cfg.Title == "" {
		cfg.Title = "Storefront"
	}
	if cfg.Toast == (render.ToastTiming{}) {
		cfg.Toast = render.DefaultToastTiming
	}
	if cfg.EventTimeout <= 0 {
		cfg.EventTimeout = 2 * time.Second
	}
	return &Controller{
		loader:    loader,
		catalog:   catalogStore,
		cart:      cartStore,
		publisher: publisher,
		cfg:       cfg,
		status:    render.CatalogLoading,
	}
}

// LoadCatalog fetches the catalog and installs it. On failure the grid
// switches to the error placeholder; the cart is never touched.
func (c *Controller) LoadCatalog(ctx context.Context) error {
	products, err := c.loader.LoadCatalog(ctx)
	if err != nil {
		zctx.From(ctx).Error("Error fetching products", zap.Error(err))
		c.setStatus(render.CatalogFailed)
		return err
	}
	c.catalog.SetCatalog(products)
	c.setStatus(render.CatalogReady)
	return nil
}

// Page returns the full page view model.
func (c *Controller) Page() render.Page {
	return render.Page{
		Title:     c.cfg.Title,
		Grid:      c.Grid(),
		Cart:      c.Cart(),
		BackToTop: render.BackToTop{Threshold: c.cfg.BackToTopThreshold},
	}
}

// PageFor returns the full page filtered by category for this view only.
// The active selection is left untouched.
func (c *Controller) PageFor(category string) render.Page {
	page := c.Page()
	category = catalog.Normalize(category)
	page.Grid = render.ProjectGrid(c.getStatus(), c.catalog.Filter(category), c.catalog.Categories(), category)
	return page
}

// Grid returns the product grid for the active category.
func (c *Controller) Grid() render.Grid {
	return render.ProjectGrid(c.getStatus(), c.catalog.Visible(), c.catalog.Categories(), c.catalog.Selected())
}

// SelectCategory activates category and returns the re-filtered grid.
func (c *Controller) SelectCategory(category string) render.Grid {
	visible := c.catalog.Select(category)
	return render.ProjectGrid(c.getStatus(), visible, c.catalog.Categories(), c.catalog.Selected())
}

// Cart returns the cart panel.
func (c *Controller) Cart() render.Cart {
	return render.ProjectCart(c.cart.Lines(), c.isCartOpen())
}

// AddToCart adds one unit of productID. The toast is nil when the id is
// unknown and nothing was added.
func (c *Controller) AddToCart(ctx context.Context, productID string) (render.Cart, *render.Toast) {
	lines := c.cart.Add(ctx, c.catalog, productID)

	line, ok := findLine(lines, productID)
	if !ok {
		return render.ProjectCart(lines, c.isCartOpen()), nil
	}
	c.publish(ctx, events.TypeAdd, productID, line.Quantity)
	return render.ProjectCart(lines, c.isCartOpen()), render.NewToast(line.Title, c.cfg.Toast)
}

// IncreaseQuantity adds one unit to an existing line.
func (c *Controller) IncreaseQuantity(ctx context.Context, productID string) render.Cart {
	lines := c.cart.Increase(ctx, productID)
	if line, ok := findLine(lines, productID); ok {
		c.publish(ctx, events.TypeIncrease, productID, line.Quantity)
	}
	return render.ProjectCart(lines, c.isCartOpen())
}

// DecreaseQuantity removes one unit, dropping the line at zero.
func (c *Controller) DecreaseQuantity(ctx context.Context, productID string) render.Cart {
	_, existed := c.cart.Line(productID)
	lines := c.cart.Decrease(ctx, productID)
	if existed {
		line, _ := findLine(lines, productID)
		c.publish(ctx, events.TypeDecrease, productID, line.Quantity)
	}
	return render.ProjectCart(lines, c.isCartOpen())
}

// RemoveFromCart deletes the line for productID.
func (c *Controller) RemoveFromCart(ctx context.Context, productID string) render.Cart {
	_, existed := c.cart.Line(productID)
	lines := c.cart.Remove(ctx, productID)
	if existed {
		c.publish(ctx, events.TypeRemove, productID, 0)
	}
	return render.ProjectCart(lines, c.isCartOpen())
}

// ToggleCart flips the cart panel between open and closed.
func (c *Controller) ToggleCart() render.Cart {
	c.mu.Lock()
	c.cartOpen = !c.cartOpen
	c.mu.Unlock()
	return c.Cart()
}

// Products returns the visible products for category, or for the active
// category when category is empty. The selection is not changed.
func (c *Controller) Products(category string) ([]product.Product, bool) {
	if c.getStatus() != render.CatalogReady {
		return nil, false
	}
	if category == "" {
		return c.catalog.Visible(), true
	}
	return c.catalog.Filter(category), true
}

// CartLines returns the current cart lines.
func (c *Controller) CartLines() []cart.Line {
	return c.cart.Lines()
}

func (c *Controller) publish(ctx context.Context, typ events.Type, productID string, quantity int) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.EventTimeout)
	defer cancel()

	if err := c.publisher.Publish(ctx, events.New(typ, productID, quantity)); err != nil {
		zctx.From(ctx).Warn("Publish cart event failed",
			zap.String("type", string(typ)),
			zap.String("product_id", productID),
			zap.Error(err),
		)
	}
}

func (c *Controller) setStatus(s render.CatalogStatus) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
}

func (c *Controller) getStatus() render.CatalogStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Controller) isCartOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cartOpen
}

func findLine(lines []cart.Line, productID string) (cart.Line, bool) {
	for _, l := range lines {
		if l.ID == productID {
			return l, true
		}
	}
	return cart.Line{}, false
}
