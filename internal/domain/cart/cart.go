package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/product"
)

// ErrSnapshotNotFound is returned by a SnapshotRepository when nothing has
// been stored under the requested key.
var ErrSnapshotNotFound = errors.New("cart snapshot not found")

// DefaultKey is the storage key the cart snapshot is kept under.
const DefaultKey = "cart"

// Line is one cart entry. Product fields are copied when the line is created
// and are not refreshed by later catalog loads.
type Line struct {
	product.Product
	Quantity int `json:"quantity"`
}

// Subtotal returns price times quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// SnapshotRepository stores the serialized cart as a single string value.
type SnapshotRepository interface {
	Load(ctx context.Context, key string) (string, error)
	Save(ctx context.Context, key, value string) error
}

// ProductLookup resolves product ids against the current catalog.
type ProductLookup interface {
	Lookup(id string) (product.Product, bool)
}
