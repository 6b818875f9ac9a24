package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/roach88/timeagnostic/internal/ir"
)

// historyPrefix namespaces history entries in the Badger keyspace.
const historyPrefix = "history/"

// HistoryCacheConfig holds configuration for a HistoryCache.
type HistoryCacheConfig struct {
	// Path is the directory for BadgerDB files.
	// Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	InMemory bool

	// TTL expires entries after the given duration. Zero keeps them
	// until the database is removed.
	TTL time.Duration

	// Logger receives BadgerDB's own log lines and cache warnings.
	// If nil, BadgerDB's internal logging is disabled.
	Logger *slog.Logger
}

// DefaultHistoryCacheConfig returns a persistent configuration at path.
func DefaultHistoryCacheConfig(path string) HistoryCacheConfig {
	return HistoryCacheConfig{Path: path}
}

// InMemoryHistoryCacheConfig returns configuration for tests.
func InMemoryHistoryCacheConfig() HistoryCacheConfig {
	return HistoryCacheConfig{InMemory: true}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// HistoryCache keeps reconstructed entity histories in BadgerDB. It
// implements engine.HistoryCache.
//
// Thread-safety: HistoryCache is safe for concurrent use.
type HistoryCache struct {
	db  *badger.DB
	ttl time.Duration
}

// OpenHistoryCache opens the cache described by cfg. Path is required
// unless InMemory is set; its directory is created when missing.
func OpenHistoryCache(cfg HistoryCacheConfig) (*HistoryCache, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent history cache")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create history cache directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open history cache: %w", err)
	}
	return &HistoryCache{db: db, ttl: cfg.TTL}, nil
}

// Close closes the database.
func (c *HistoryCache) Close() error {
	return c.db.Close()
}

// Load returns the graphs stored under key, oldest state first.
func (c *HistoryCache) Load(ctx context.Context, key string) ([]*ir.Graph, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	var data []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(historyPrefix + key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load history %s: %w", key, err)
	}

	graphs, err := unmarshalGraphs(data)
	if err != nil {
		return nil, false, fmt.Errorf("load history %s: %w", key, err)
	}
	return graphs, true, nil
}

// Store saves graphs under key, replacing any previous entry.
func (c *HistoryCache) Store(ctx context.Context, key string, graphs []*ir.Graph) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := marshalGraphs(graphs)
	if err != nil {
		return fmt.Errorf("store history %s: %w", key, err)
	}

	err = c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(historyPrefix+key), data)
		if c.ttl > 0 {
			e = e.WithTTL(c.ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("store history %s: %w", key, err)
	}
	return nil
}

// Len returns the number of cached histories.
func (c *HistoryCache) Len() (int, error) {
	n := 0
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(historyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count histories: %w", err)
	}
	return n, nil
}
