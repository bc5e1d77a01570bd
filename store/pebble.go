package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/karthikraju391/pairchat/logger"
)

// PebbleTree is the embedded Tree driver. A multi-path Update is a single
// pebble batch, which commits atomically.
type PebbleTree struct {
	mu     sync.RWMutex
	db     *pebble.DB
	closed bool
}

// OpenPebble opens (or creates) a pebble database at path. opts may be nil.
func OpenPebble(path string, opts *pebble.Options) (*PebbleTree, error) {
	if opts == nil {
		opts = &pebble.Options{}
	}
	logger.Info("opening_pebble_db", "path", path)
	db, err := pebble.Open(path, opts)
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return nil, fmt.Errorf("open pebble at %s: %w", path, err)
	}
	return &PebbleTree{db: db}, nil
}

func (t *PebbleTree) Update(ctx context.Context, values map[string][]byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return ErrClosed
	}

	batch := t.db.NewBatch()
	defer batch.Close()
	for _, p := range sortedPaths(values) {
		if err := batch.Set([]byte(p), values[p], nil); err != nil {
			return fmt.Errorf("stage %s: %w", p, err)
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

func (t *PebbleTree) Get(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return nil, ErrClosed
	}

	data, closer, err := t.db.Get([]byte(path))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	defer closer.Close()
	// pebble owns data until closer is called
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (t *PebbleTree) Scan(ctx context.Context, prefix string, fn func(path string, value []byte) error) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return ErrClosed
	}

	iter, err := t.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: prefixEnd([]byte(prefix)),
	})
	if err != nil {
		return fmt.Errorf("create iterator: %w", err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		value := make([]byte, len(iter.Value()))
		copy(value, iter.Value())
		if err := fn(string(iter.Key()), value); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (t *PebbleTree) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return ErrClosed
	}
	return nil
}

func (t *PebbleTree) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if err := t.db.Close(); err != nil {
		return err
	}
	logger.Info("pebble_closed")
	return nil
}
