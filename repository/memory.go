package repository

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/reoring/jsnorm/internal/logger"
	"github.com/reoring/jsnorm/schemadoc"
)

// Memory is an in-process Store.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

func NewMemory() *Memory {
	return &Memory{entries: map[string]*Entry{}}
}

func (m *Memory) Find(ctx context.Context, collection string) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	e, ok := m.entries[collection]
	m.mu.RUnlock()
	if !ok {
		logger.FromContext(ctx).Debug("schema not found", "collection", collection)
		return nil, ErrNotFound
	}
	return e, nil
}

func (m *Memory) Put(ctx context.Context, doc schemadoc.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateCollection(doc.CollectionName); err != nil {
		return err
	}
	e := NewEntry(doc)
	m.mu.Lock()
	m.entries[doc.CollectionName] = e
	m.mu.Unlock()
	logger.FromContext(ctx).Info("schema registered", "collection", doc.CollectionName, "model", doc.ModelName)
	return nil
}

func (m *Memory) Delete(ctx context.Context, collection string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[collection]; !ok {
		return ErrNotFound
	}
	delete(m.entries, collection)
	return nil
}

// List returns the registered collection names in sorted order.
func (m *Memory) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.entries)), nil
}

// replace swaps the whole index at once.
func (m *Memory) replace(entries map[string]*Entry) {
	m.mu.Lock()
	m.entries = entries
	m.mu.Unlock()
}
