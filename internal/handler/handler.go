// Package handler serves the storefront over HTTP: a server-rendered page,
// htmx fragment endpoints for every UI event, and a small JSON API.
package handler

import (
	"bytes"
	"context"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/controller"
	"github.com/xenking/storefront/internal/render"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

// Options customizes a Handler.
type Options struct {
	// ReloadGuard wraps the catalog reload route, typically a throttle.
	ReloadGuard httpmiddleware.Middleware
}

// Handler routes UI events to the controller and renders the result.
type Handler struct {
	ctrl     *controller.Controller
	renderer *render.Renderer
	opts     Options
}

// New constructs a Handler.
func New(ctrl *controller.Controller, renderer *render.Renderer, opts Options) *Handler {
	return &Handler{ctrl: ctrl, renderer: renderer, opts: opts}
}

// Register adds the storefront routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.index)
	mux.HandleFunc("POST /category", h.selectCategory)
	mux.Handle("POST /catalog/reload", h.guardReload(http.HandlerFunc(h.reloadCatalog)))
	mux.HandleFunc("POST /cart/add", h.addToCart)
	mux.HandleFunc("POST /cart/increase", h.cartOp(h.ctrl.IncreaseQuantity))
	mux.HandleFunc("POST /cart/decrease", h.cartOp(h.ctrl.DecreaseQuantity))
	mux.HandleFunc("POST /cart/remove", h.cartOp(h.ctrl.RemoveFromCart))
	mux.HandleFunc("POST /cart/toggle", h.toggleCart)
	mux.HandleFunc("GET /api/products", h.listProducts)
	mux.HandleFunc("GET /api/cart", h.getCart)
}

// index renders the full page. ?category= selects a category first so that
// filtered views can be linked.
func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	page := h.ctrl.Page()
	if category := r.URL.Query().Get("category"); category != "" {
		page = h.ctrl.PageFor(category)
	}
	h.html(w, r, func(buf *bytes.Buffer) error {
		return h.renderer.Page(buf, page)
	})
}

func (h *Handler) selectCategory(w http.ResponseWriter, r *http.Request) {
	grid := h.ctrl.SelectCategory(r.PostFormValue("category"))
	if !isHTMX(r) {
		redirectHome(w, r)
		return
	}
	h.html(w, r, func(buf *bytes.Buffer) error {
		return h.renderer.Grid(buf, grid)
	})
}

// reloadCatalog refetches both sources. A failed load still answers 200 so
// that the error placeholder is swapped in.
func (h *Handler) reloadCatalog(w http.ResponseWriter, r *http.Request) {
	_ = h.ctrl.LoadCatalog(r.Context())
	if !isHTMX(r) {
		redirectHome(w, r)
		return
	}
	grid := h.ctrl.Grid()
	h.html(w, r, func(buf *bytes.Buffer) error {
		return h.renderer.Grid(buf, grid)
	})
}

func (h *Handler) guardReload(next http.Handler) http.Handler {
	if h.opts.ReloadGuard == nil {
		return next
	}
	return h.opts.ReloadGuard(next)
}

func (h *Handler) addToCart(w http.ResponseWriter, r *http.Request) {
	c, toast := h.ctrl.AddToCart(r.Context(), r.PostFormValue("id"))
	h.cartResponse(w, r, c, toast)
}

func (h *Handler) cartOp(op func(ctx context.Context, productID string) render.Cart) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := op(r.Context(), r.PostFormValue("id"))
		h.cartResponse(w, r, c, nil)
	}
}

func (h *Handler) toggleCart(w http.ResponseWriter, r *http.Request) {
	h.cartResponse(w, r, h.ctrl.ToggleCart(), nil)
}

func (h *Handler) cartResponse(w http.ResponseWriter, r *http.Request, c render.Cart, toast *render.Toast) {
	if !isHTMX(r) {
		redirectHome(w, r)
		return
	}
	h.html(w, r, func(buf *bytes.Buffer) error {
		return h.renderer.Cart(buf, c, toast)
	})
}

// html renders into a buffer first so a template failure yields a clean 500.
func (h *Handler) html(w http.ResponseWriter, r *http.Request, fn func(buf *bytes.Buffer) error) {
	var buf bytes.Buffer
	if err := fn(&buf); err != nil {
		zctx.From(r.Context()).Error("Render failed", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// redirectHome answers plain form posts with a redirect back to the page.
func redirectHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
