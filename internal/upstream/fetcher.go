// Package upstream loads the merged product catalog from the remote
// sources.
package upstream

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/product"
)

const meterName = "github.com/xenking/storefront/internal/upstream"

// Fetcher loads every configured source concurrently and concatenates the
// results in source order. It performs no retries.
type Fetcher struct {
	client  *http.Client
	sources []Source

	loads    metric.Int64Counter
	duration metric.Float64Histogram
}

// NewFetcher returns a Fetcher for sources. A nil client uses
// http.DefaultClient and a nil meter provider disables metrics.
func NewFetcher(client *http.Client, mp metric.MeterProvider, sources ...Source) (*Fetcher, error) {
	if len(sources) == 0 {
		return nil, errors.New("at least one source is required")
	}
	if client == nil {
		client = http.DefaultClient
	}
	if mp == nil {
		mp = noop.NewMeterProvider()
	}

	meter := mp.Meter(meterName)
	loads, err := meter.Int64Counter("storefront.catalog.loads",
		metric.WithDescription("Catalog load attempts by outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create loads counter")
	}
	duration, err := meter.Float64Histogram("storefront.catalog.load_duration",
		metric.WithDescription("Catalog load duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create duration histogram")
	}

	return &Fetcher{
		client:   client,
		sources:  sources,
		loads:    loads,
		duration: duration,
	}, nil
}

// LoadCatalog fetches all sources in parallel. Either every source succeeds
// and the concatenation is returned, or the first *FetchError is.
func (f *Fetcher) LoadCatalog(ctx context.Context) ([]product.Product, error) {
	start := time.Now()
	results := make([][]product.Product, len(f.sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range f.sources {
		g.Go(func() error {
			products, err := f.fetch(gctx, src)
			if err != nil {
				return &FetchError{Source: src.Tag(), URL: src.URL(), Err: err}
			}
			results[i] = products
			return nil
		})
	}

	err := g.Wait()
	f.record(ctx, start, err)
	if err != nil {
		return nil, err
	}

	var n int
	for _, r := range results {
		n += len(r)
	}
	merged := make([]product.Product, 0, n)
	for _, r := range results {
		merged = append(merged, r...)
	}

	zctx.From(ctx).Info("Catalog loaded",
		zap.Int("products", len(merged)),
		zap.Duration("took", time.Since(start)),
	)
	return merged, nil
}

func (f *Fetcher) fetch(ctx context.Context, src Source) ([]product.Product, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "do request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	return src.Decode(resp.Body)
}

func (f *Fetcher) record(ctx context.Context, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	f.loads.Add(ctx, 1, attrs)
	f.duration.Record(ctx, time.Since(start).Seconds(), attrs)
}
