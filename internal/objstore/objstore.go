// Package objstore is the durable holding area for extract files.
package objstore

import (
	"context"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"
	"sync"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errors.New("objstore: not found")

// Store reads and writes objects in one bucket.
type Store interface {
	Put(ctx context.Context, key string, data []byte, meta map[string]string) error
	Get(ctx context.Context, key string) ([]byte, error)
	// List returns every key below prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Join builds an object key from path segments.
func Join(parts ...string) string {
	return strings.TrimPrefix(path.Join(parts...), "/")
}

// Memory is an in-process Store.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte
	meta    map[string]map[string]string
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-process store.
func NewMemory() *Memory {
	return &Memory{
		objects: make(map[string][]byte),
		meta:    make(map[string]map[string]string),
	}
}

func (m *Memory) Put(ctx context.Context, key string, data []byte, meta map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = slices.Clone(data)
	m.meta[key] = meta
	return nil
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return slices.Clone(data), nil
}

func (m *Memory) List(ctx context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

// Metadata returns the user metadata stored with key.
func (m *Memory) Metadata(key string) map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.meta[key]
}
