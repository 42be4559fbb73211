package cart

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Store holds the cart lines in insertion order. Every mutation re-persists
// the full line sequence before returning. Unknown product ids are ignored
// and storage failures are logged, so no operation returns an error.
type Store struct {
	mu    sync.Mutex
	lines []Line

	repo SnapshotRepository
	key  string
}

// Load hydrates a Store from the snapshot stored under key. A missing or
// malformed snapshot yields an empty cart.
func Load(ctx context.Context, repo SnapshotRepository, key string) *Store {
	if key == "" {
		key = DefaultKey
	}
	s := &Store{repo: repo, key: key}

	lg := zctx.From(ctx).With(zap.String("key", key))
	raw, err := repo.Load(ctx, key)
	switch {
	case errors.Is(err, ErrSnapshotNotFound):
		return s
	case err != nil:
		lg.Warn("Read cart snapshot failed, starting empty", zap.Error(err))
		return s
	}

	lines, err := DecodeSnapshot(raw)
	if err != nil {
		lg.Warn("Malformed cart snapshot, starting empty", zap.Error(err))
		return s
	}
	s.lines = lines
	lg.Debug("Cart hydrated", zap.Int("lines", len(lines)))
	return s
}

// Lines returns a copy of the current lines.
func (s *Store) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Line returns the line for productID.
func (s *Store) Line(productID string) (Line, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(productID); i >= 0 {
		return s.lines[i], true
	}
	return Line{}, false
}

// Add increments the quantity of the line for productID, or appends a new
// line with quantity 1 copied from the catalog. It is a no-op when the id is
// not in the catalog and not already in the cart.
func (s *Store) Add(ctx context.Context, catalog ProductLookup, productID string) []Line {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(productID); i >= 0 {
		s.lines[i].Quantity++
		return s.commit(ctx)
	}

	p, ok := catalog.Lookup(productID)
	if !ok {
		zctx.From(ctx).Debug("Add ignored, unknown product", zap.String("product_id", productID))
		return s.snapshot()
	}
	s.lines = append(s.lines, Line{Product: p, Quantity: 1})
	return s.commit(ctx)
}

// Increase increments the quantity of an existing line.
func (s *Store) Increase(ctx context.Context, productID string) []Line {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(productID)
	if i < 0 {
		return s.ignore(ctx, "increase", productID)
	}
	s.lines[i].Quantity++
	return s.commit(ctx)
}

// Decrease decrements the quantity of an existing line, removing the line
// instead of leaving it at zero.
func (s *Store) Decrease(ctx context.Context, productID string) []Line {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(productID)
	if i < 0 {
		return s.ignore(ctx, "decrease", productID)
	}
	if s.lines[i].Quantity > 1 {
		s.lines[i].Quantity--
	} else {
		s.lines = append(s.lines[:i], s.lines[i+1:]...)
	}
	return s.commit(ctx)
}

// Remove deletes the line for productID if present.
func (s *Store) Remove(ctx context.Context, productID string) []Line {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(productID)
	if i < 0 {
		return s.ignore(ctx, "remove", productID)
	}
	s.lines = append(s.lines[:i], s.lines[i+1:]...)
	return s.commit(ctx)
}

// TotalItemCount returns the sum of all line quantities.
func (s *Store) TotalItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return TotalItemCount(s.lines)
}

// TotalPrice returns the sum of price times quantity rounded to 2 places.
func (s *Store) TotalPrice() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return TotalPrice(s.lines)
}

// TotalItemCount returns the sum of quantities in lines.
func TotalItemCount(lines []Line) int {
	var n int
	for _, l := range lines {
		n += l.Quantity
	}
	return n
}

// TotalPrice returns the rounded sum of line subtotals.
func TotalPrice(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total.Round(2)
}

func (s *Store) indexOf(productID string) int {
	for i, l := range s.lines {
		if l.ID == productID {
			return i
		}
	}
	return -1
}

func (s *Store) ignore(ctx context.Context, op, productID string) []Line {
	zctx.From(ctx).Debug("Cart operation ignored, no such line",
		zap.String("op", op),
		zap.String("product_id", productID),
	)
	return s.snapshot()
}

// saveTimeout bounds a single snapshot write.
const saveTimeout = 5 * time.Second

// commit persists the current lines. Must be called with s.mu held.
// The write ignores ctx cancellation so the snapshot always follows the
// in-memory lines.
func (s *Store) commit(ctx context.Context) []Line {
	lines := s.snapshot()

	raw, err := EncodeSnapshot(lines)
	if err != nil {
		zctx.From(ctx).Warn("Encode cart snapshot failed", zap.Error(err))
		return lines
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()
	if err := s.repo.Save(saveCtx, s.key, raw); err != nil {
		zctx.From(ctx).Warn("Persist cart snapshot failed",
			zap.String("key", s.key),
			zap.Error(err),
		)
	}
	return lines
}

func (s *Store) snapshot() []Line {
	out := make([]Line, len(s.lines))
	copy(out, s.lines)
	return out
}
