package delta

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/roach88/timeagnostic/internal/ir"
)

// Invert swaps the inserted and deleted sets. Applying Invert(d) to the
// state after d restores the state before it.
func Invert(d ir.Delta) ir.Delta {
	return d.Inverted()
}

// Apply returns (g − d.Deleted) ∪ d.Inserted. g is not modified.
func Apply(g *ir.Graph, d ir.Delta) *ir.Graph {
	return g.Apply(d)
}

// DefaultCacheSize is the number of parsed deltas kept by a Cache.
const DefaultCacheSize = 4096

// Cache memoizes parsed deltas by the content of their update query.
// Provenance is append-only, so a given query text always decodes to the
// same delta. Failures are not cached.
//
// Thread-safety: Cache is safe for concurrent use.
type Cache struct {
	parser *Parser
	lru    *lru.Cache[string, ir.Delta]
	hits   atomic.Int64
	misses atomic.Int64
}

// NewCache wraps parser with an LRU of the given size.
func NewCache(parser *Parser, size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	l, err := lru.New[string, ir.Delta](size)
	if err != nil {
		return nil, err
	}
	return &Cache{parser: parser, lru: l}, nil
}

// ParseSnapshot returns the cached delta for text, parsing it on a miss.
func (c *Cache) ParseSnapshot(snapshotID, text string) (ir.Delta, error) {
	key := ir.DeltaKey(text)
	if d, ok := c.lru.Get(key); ok {
		c.hits.Add(1)
		return d, nil
	}
	c.misses.Add(1)

	d, err := c.parser.ParseSnapshot(snapshotID, text)
	if err != nil {
		return ir.Delta{}, err
	}
	c.lru.Add(key, d)
	return d, nil
}

// Stats returns the number of cache hits and misses so far.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
