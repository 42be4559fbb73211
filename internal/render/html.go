package render

import (
	"embed"
	"html/template"
	"io"

	"github.com/go-faster/errors"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Renderer writes view models as HTML.
type Renderer struct {
	t *template.Template
}

// cartAction is a per-line cart button posting the product id to Path.
type cartAction struct {
	Path  string
	ID    string
	Label string
	Class string
}

var funcs = template.FuncMap{
	"action": func(path, id, label, class string) cartAction {
		return cartAction{Path: path, ID: id, Label: label, Class: class}
	},
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	t, err := template.New("storefront").Funcs(funcs).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, errors.Wrap(err, "parse templates")
	}
	return &Renderer{t: t}, nil
}

// Page renders the full document.
func (r *Renderer) Page(w io.Writer, p Page) error {
	return r.exec(w, "page", p)
}

// Grid renders the catalog section (category buttons and product grid).
func (r *Renderer) Grid(w io.Writer, g Grid) error {
	return r.exec(w, "catalog", g)
}

// cartPartial is the data for a cart swap: the panel, the out-of-band badge
// and an optional toast.
type cartPartial struct {
	Cart  Cart
	Toast *Toast
}

// Cart renders the cart panel together with the out-of-band item count
// badge and, if non-nil, the toast.
func (r *Renderer) Cart(w io.Writer, c Cart, toast *Toast) error {
	return r.exec(w, "cart-partial", cartPartial{Cart: c, Toast: toast})
}

func (r *Renderer) exec(w io.Writer, name string, data any) error {
	if err := r.t.ExecuteTemplate(w, name, data); err != nil {
		return errors.Wrapf(err, "render %s", name)
	}
	return nil
}
