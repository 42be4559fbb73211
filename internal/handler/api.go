package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/product"
)

// listProducts returns the products of ?category=, or of the active
// category. It answers 503 until a catalog load has succeeded.
func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, ok := h.ctrl.Products(r.URL.Query().Get("category"))
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "catalog not loaded")
		return
	}

	var e jx.Encoder
	e.ArrStart()
	for _, p := range products {
		encodeProduct(&e, p)
	}
	e.ArrEnd()
	writeJSON(w, http.StatusOK, e.Bytes())
}

func (h *Handler) getCart(w http.ResponseWriter, _ *http.Request) {
	lines := h.ctrl.CartLines()

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("items")
	e.ArrStart()
	for _, l := range lines {
		encodeLine(&e, l)
	}
	e.ArrEnd()
	e.FieldStart("count")
	e.Int(cart.TotalItemCount(lines))
	e.FieldStart("total")
	e.Str(cart.TotalPrice(lines).StringFixed(2))
	e.ObjEnd()
	writeJSON(w, http.StatusOK, e.Bytes())
}

func encodeProduct(e *jx.Encoder, p product.Product) {
	e.ObjStart()
	encodeProductFields(e, p)
	e.ObjEnd()
}

func encodeLine(e *jx.Encoder, l cart.Line) {
	e.ObjStart()
	encodeProductFields(e, l.Product)
	e.FieldStart("quantity")
	e.Int(l.Quantity)
	e.FieldStart("subtotal")
	e.Str(l.Subtotal().StringFixed(2))
	e.ObjEnd()
}

func encodeProductFields(e *jx.Encoder, p product.Product) {
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("title")
	e.Str(p.Title)
	e.FieldStart("price")
	e.Str(p.Price.StringFixed(2))
	e.FieldStart("image")
	e.Str(p.Image)
	e.FieldStart("category")
	e.Str(p.Category)
	e.FieldStart("source")
	e.Str(string(p.Source))
	e.FieldStart("rating")
	e.ObjStart()
	e.FieldStart("rate")
	e.Float64(p.Rating.Rate)
	e.FieldStart("count")
	e.Int(p.Rating.Count)
	e.ObjEnd()
}

func writeError(w http.ResponseWriter, status int, msg string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("error")
	e.Str(msg)
	e.ObjEnd()
	writeJSON(w, status, e.Bytes())
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
