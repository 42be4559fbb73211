//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/storefront/internal/domain/cart"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:17-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "storefront",
				"POSTGRES_PASSWORD": "storefront",
				"POSTGRES_DB":       "storefront",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = c.Terminate(context.Background())
	})

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://storefront:storefront@%s:%s/storefront?sslmode=disable", host, port.Port())
}

func TestSnapshotRepository(t *testing.T) {
	ctx := context.Background()
	pool, err := NewPool(ctx, startPostgres(t))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	// Migrations are idempotent.
	require.NoError(t, RunMigrations(ctx, pool))

	repo := NewSnapshotRepository(pool)
	require.NoError(t, repo.Ping(ctx))

	_, err = repo.Load(ctx, cart.DefaultKey)
	require.ErrorIs(t, err, cart.ErrSnapshotNotFound)

	require.NoError(t, repo.Save(ctx, cart.DefaultKey, `[{"id":"dummy-1","quantity":1}]`))
	require.NoError(t, repo.Save(ctx, cart.DefaultKey, `[{"id":"dummy-1","quantity":2}]`))

	got, err := repo.Load(ctx, cart.DefaultKey)
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"dummy-1","quantity":2}]`, got)
}

func TestSnapshotRepository_CartRoundTrip(t *testing.T) {
	ctx := context.Background()
	pool, err := NewPool(ctx, startPostgres(t))
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, RunMigrations(ctx, pool))

	repo := NewSnapshotRepository(pool)
	require.NoError(t, repo.Save(ctx, "cart",
		`[{"id":"fake-3","title":"Jacket","price":"55.99","quantity":2}]`))

	s := cart.Load(ctx, repo, "cart")
	assert.Equal(t, 2, s.TotalItemCount())
	assert.Equal(t, "111.98", s.TotalPrice().StringFixed(2))

	items, total, err := repo.Totals(ctx, "cart")
	require.NoError(t, err)
	assert.Equal(t, 2, items)
	assert.Equal(t, "111.98", total.StringFixed(2))
}

func TestSnapshotRepository_TotalsMissing(t *testing.T) {
	ctx := context.Background()
	pool, err := NewPool(ctx, startPostgres(t))
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, RunMigrations(ctx, pool))

	repo := NewSnapshotRepository(pool)
	_, _, err = repo.Totals(ctx, "nobody")
	require.ErrorIs(t, err, cart.ErrSnapshotNotFound)

	// Unparseable values are still stored, with zero totals.
	require.NoError(t, repo.Save(ctx, "junk", "not json"))
	items, total, err := repo.Totals(ctx, "junk")
	require.NoError(t, err)
	assert.Zero(t, items)
	assert.True(t, total.IsZero())
}
