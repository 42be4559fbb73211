// Command catalog-snapshot fetches the merged catalog from both upstream
// sources and writes it as gzip-compressed JSON, or summarizes an existing
// snapshot with -inspect.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"

	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/upstream"
)

func main() {
	var (
		out          string
		inspect      string
		category     string
		dummyJSONURL string
		fakeStoreURL string
		timeout      time.Duration
	)

	flag.StringVar(&out, "out", "catalog.json.gz", "output file")
	flag.StringVar(&inspect, "inspect", "", "summarize an existing snapshot instead of fetching")
	flag.StringVar(&category, "category", catalog.All, "only keep products whose category contains this value")
	flag.StringVar(&dummyJSONURL, "dummyjson-url", "https://dummyjson.com/products", "DummyJSON-shaped product list endpoint")
	flag.StringVar(&fakeStoreURL, "fakestore-url", "https://fakestoreapi.com/products", "FakeStore-shaped product list endpoint")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "upstream request timeout")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	var err error
	if inspect != "" {
		err = runInspect(inspect)
	} else {
		err = runFetch(ctx, out, category, timeout,
			upstream.DummyJSON{Endpoint: dummyJSONURL},
			upstream.FakeStore{Endpoint: fakeStoreURL},
		)
	}
	if err != nil {
		slog.Error("catalog snapshot failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func runFetch(ctx context.Context, out, category string, timeout time.Duration, sources ...upstream.Source) error {
	fetcher, err := upstream.NewFetcher(&http.Client{Timeout: timeout}, nil, sources...)
	if err != nil {
		return errors.Wrap(err, "create fetcher")
	}

	slog.Info("fetching catalog", slog.Int("sources", len(sources)))
	products, err := fetcher.LoadCatalog(ctx)
	if err != nil {
		return errors.Wrap(err, "load catalog")
	}

	store := catalog.NewStore()
	store.SetCatalog(products)
	products = store.Filter(category)

	f, err := os.Create(out)
	if err != nil {
		return errors.Wrapf(err, "create %s", out)
	}
	defer func() { _ = f.Close() }()

	if err := writeSnapshot(f, products); err != nil {
		return errors.Wrapf(err, "write %s", out)
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "close %s", out)
	}

	slog.Info("snapshot written",
		slog.String("file", out),
		slog.Int("products", len(products)),
		slog.String("category", category),
	)
	return nil
}

func runInspect(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	products, err := readSnapshot(f)
	if err != nil {
		return errors.Wrapf(err, "read %s", path)
	}

	for _, c := range summarize(products) {
		slog.Info("category", slog.String("name", c.name), slog.Int("products", c.count))
	}
	slog.Info("snapshot", slog.String("file", path), slog.Int("products", len(products)))
	return nil
}

// writeSnapshot gzips products as a JSON array.
func writeSnapshot(w io.Writer, products []product.Product) error {
	if products == nil {
		products = []product.Product{}
	}
	gz := pgzip.NewWriter(w)
	if err := json.NewEncoder(gz).Encode(products); err != nil {
		_ = gz.Close()
		return errors.Wrap(err, "encode products")
	}
	if err := gz.Close(); err != nil {
		return errors.Wrap(err, "flush gzip")
	}
	return nil
}

// readSnapshot is the inverse of writeSnapshot.
func readSnapshot(r io.Reader) ([]product.Product, error) {
	gz, err := pgzip.NewReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "create gzip reader")
	}
	defer func() { _ = gz.Close() }()

	var products []product.Product
	if err := json.NewDecoder(gz).Decode(&products); err != nil {
		return nil, errors.Wrap(err, "decode products")
	}
	return products, nil
}

type categoryCount struct {
	name  string
	count int
}

// summarize counts products per lower-cased category, largest first.
func summarize(products []product.Product) []categoryCount {
	counts := make(map[string]int)
	for _, p := range products {
		counts[strings.ToLower(p.Category)]++
	}
	out := make([]categoryCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, categoryCount{name: name, count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].name < out[j].name
	})
	return out
}
