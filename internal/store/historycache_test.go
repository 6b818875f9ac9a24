package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/timeagnostic/internal/ir"
)

func openTestCache(t *testing.T, cfg HistoryCacheConfig) *HistoryCache {
	t.Helper()
	c, err := OpenHistoryCache(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func historyGraphs() []*ir.Graph {
	c := testComposite()
	return []*ir.Graph{c.Moments[0].Graph, c.Moments[1].Graph, ir.EmptyGraph()}
}

func TestHistoryCacheMiss(t *testing.T) {
	c := openTestCache(t, InMemoryHistoryCacheConfig())

	graphs, ok, err := c.Load(context.Background(), "br/1|se/3|3|abc")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, graphs)
}

func TestHistoryCacheStoreLoad(t *testing.T) {
	c := openTestCache(t, InMemoryHistoryCacheConfig())
	ctx := context.Background()
	want := historyGraphs()

	require.NoError(t, c.Store(ctx, "k", want))
	got, ok, err := c.Load(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, len(want))
	for i := range want {
		assert.True(t, want[i].Equal(got[i]), "graph %d", i)
	}

	n, err := c.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestHistoryCachePersists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	ctx := context.Background()
	cfg := DefaultHistoryCacheConfig(dir)
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	c, err := OpenHistoryCache(cfg)
	require.NoError(t, err)
	require.NoError(t, c.Store(ctx, "k", historyGraphs()))
	require.NoError(t, c.Close())

	c = openTestCache(t, cfg)
	got, ok, err := c.Load(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, got, 3)
}

func TestHistoryCacheRequiresPath(t *testing.T) {
	_, err := OpenHistoryCache(HistoryCacheConfig{})
	assert.Error(t, err)
}

func TestHistoryCacheCancelled(t *testing.T) {
	c := openTestCache(t, InMemoryHistoryCacheConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, c.Store(ctx, "k", historyGraphs()), context.Canceled)
	_, _, err := c.Load(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}
