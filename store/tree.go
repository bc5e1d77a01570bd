package store

import (
	"context"
	"sort"
)

// Tree is a path-addressable key/value store. Paths are slash separated
// ("chats/u1/u2/<id>"); Scan visits keys in byte order.
type Tree interface {
	// Update writes every path in values atomically: all or none.
	Update(ctx context.Context, values map[string][]byte) error
	// Get returns ErrNotFound when path holds no value.
	Get(ctx context.Context, path string) ([]byte, error)
	// Scan calls fn for each path starting with prefix, in key order.
	Scan(ctx context.Context, prefix string, fn func(path string, value []byte) error) error
	Ping(ctx context.Context) error
	Close() error
}

func sortedPaths(values map[string][]byte) []string {
	paths := make([]string, 0, len(values))
	for p := range values {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// prefixEnd returns the smallest key greater than every key with the prefix,
// or nil when no such key exists.
func prefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
