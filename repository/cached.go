package repository

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/reoring/jsnorm/schemadoc"
)

// Cached keeps recently used entries of another Repository in an LRU cache.
// Misses are not cached.
type Cached struct {
	inner Repository
	cache *lru.Cache[string, *Entry]
}

func NewCached(inner Repository, size int) (*Cached, error) {
	if size <= 0 {
		return nil, errors.New("repository: cache size must be positive")
	}
	c, err := lru.New[string, *Entry](size)
	if err != nil {
		return nil, fmt.Errorf("repository: create cache: %w", err)
	}
	return &Cached{inner: inner, cache: c}, nil
}

func (c *Cached) Find(ctx context.Context, collection string) (*Entry, error) {
	if e, ok := c.cache.Get(collection); ok {
		return e, nil
	}
	e, err := c.inner.Find(ctx, collection)
	if err != nil {
		return nil, err
	}
	c.cache.Add(collection, e)
	return e, nil
}

func (c *Cached) Invalidate(collection string) { c.cache.Remove(collection) }

func (c *Cached) Purge() { c.cache.Purge() }

func (c *Cached) Len() int { return c.cache.Len() }

func (c *Cached) writer() (Writer, error) {
	w, ok := c.inner.(Writer)
	if !ok {
		return nil, ErrReadOnly
	}
	return w, nil
}

func (c *Cached) Put(ctx context.Context, doc schemadoc.Document) error {
	w, err := c.writer()
	if err != nil {
		return err
	}
	defer c.Invalidate(doc.CollectionName)
	return w.Put(ctx, doc)
}

func (c *Cached) Delete(ctx context.Context, collection string) error {
	w, err := c.writer()
	if err != nil {
		return err
	}
	defer c.Invalidate(collection)
	return w.Delete(ctx, collection)
}

func (c *Cached) List(ctx context.Context) ([]string, error) {
	w, err := c.writer()
	if err != nil {
		return nil, err
	}
	return w.List(ctx)
}
