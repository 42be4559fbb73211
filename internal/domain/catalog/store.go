// Package catalog holds the loaded product list and the active category
// filter.
package catalog

import (
	"strings"
	"sync"

	"github.com/xenking/storefront/internal/domain/product"
)

// All is the category value that disables filtering.
const All = "all"

// Store is the in-memory catalog. It is rebuilt on every load and never
// persisted.
type Store struct {
	mu       sync.RWMutex
	products []product.Product
	byID     map[string]int
	selected string
}

// NewStore returns an empty Store with the "all" category selected.
func NewStore() *Store {
	return &Store{selected: All}
}

// SetCatalog replaces the catalog with products. Nothing from the previous
// load is kept.
func (s *Store) SetCatalog(products []product.Product) {
	list := make([]product.Product, len(products))
	copy(list, products)

	byID := make(map[string]int, len(list))
	for i, p := range list {
		if _, ok := byID[p.ID]; !ok {
			byID[p.ID] = i
		}
	}

	s.mu.Lock()
	s.products = list
	s.byID = byID
	s.mu.Unlock()
}

// Products returns the full catalog in load order.
func (s *Store) Products() []product.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.products)
}

// Len returns the number of loaded products.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.products)
}

// Lookup returns the product with the given id.
func (s *Store) Lookup(id string) (product.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byID[id]
	if !ok {
		return product.Product{}, false
	}
	return s.products[i], true
}

// Filter returns the products whose category contains category as a
// case-insensitive substring. "all" returns the whole catalog. The stored
// catalog is never modified.
func (s *Store) Filter(category string) []product.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filter(s.products, category)
}

// Select makes category the active filter and returns the filtered list.
// An empty category selects "all".
func (s *Store) Select(category string) []product.Product {
	category = Normalize(category)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = category
	return filter(s.products, category)
}

// Selected returns the active category.
func (s *Store) Selected() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// Visible returns the catalog filtered by the active category.
func (s *Store) Visible() []product.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filter(s.products, s.selected)
}

// Categories returns the distinct lower-cased categories of the catalog in
// first-seen order.
func (s *Store) Categories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{}, len(s.products))
	var out []string
	for _, p := range s.products {
		c := strings.ToLower(strings.TrimSpace(p.Category))
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

func filter(products []product.Product, category string) []product.Product {
	category = Normalize(category)
	if category == All {
		return clone(products)
	}
	out := make([]product.Product, 0, len(products))
	for _, p := range products {
		if p.MatchesCategory(category) {
			out = append(out, p)
		}
	}
	return out
}

// Normalize lower-cases and trims category. An empty category means All.
func Normalize(category string) string {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		return All
	}
	return category
}

func clone(products []product.Product) []product.Product {
	out := make([]product.Product, len(products))
	copy(out, products)
	return out
}
