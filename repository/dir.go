package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	json "github.com/goccy/go-json"

	"github.com/reoring/jsnorm/internal/logger"
	"github.com/reoring/jsnorm/schemadoc"
)

// Dir serves schema documents from *.json, *.yaml and *.yml files in a single
// directory. A document without collectionName is keyed by its file base name.
type Dir struct {
	path string
	opts schemadoc.Options
	mem  *Memory

	mu       sync.Mutex
	files    map[string]string // collection -> file
	onReload []func()
}

// NewDir loads every schema file under path.
func NewDir(ctx context.Context, path string, opts schemadoc.Options) (*Dir, error) {
	d := &Dir{path: path, opts: opts, mem: NewMemory(), files: map[string]string{}}
	if err := d.Reload(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

// OnReload registers fn to run after every successful Reload.
func (d *Dir) OnReload(fn func()) {
	d.mu.Lock()
	d.onReload = append(d.onReload, fn)
	d.mu.Unlock()
}

// Reload rescans the directory and atomically replaces the index. On error
// the previous index stays in place.
func (d *Dir) Reload(ctx context.Context) error {
	ents, err := os.ReadDir(d.path)
	if err != nil {
		return fmt.Errorf("repository: read dir: %w", err)
	}
	log := logger.FromContext(ctx)
	entries := map[string]*Entry{}
	files := map[string]string{}
	for _, de := range ents {
		if de.IsDir() || !isSchemaFile(de.Name()) {
			continue
		}
		file := filepath.Join(d.path, de.Name())
		docs, err := d.loadFile(file)
		if err != nil {
			return err
		}
		for _, doc := range docs {
			if prev, dup := files[doc.CollectionName]; dup {
				log.Warn("duplicate collection in schema directory", "collection", doc.CollectionName, "file", file, "previous", prev)
			}
			entries[doc.CollectionName] = NewEntry(doc)
			files[doc.CollectionName] = file
		}
	}
	d.mem.replace(entries)
	d.mu.Lock()
	d.files = files
	hooks := append([]func(){}, d.onReload...)
	d.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
	log.Info("schema directory loaded", "dir", d.path, "collections", len(entries))
	return nil
}

func (d *Dir) loadFile(file string) ([]schemadoc.Document, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("repository: read %s: %w", file, err)
	}
	var docs []schemadoc.Document
	if strings.HasSuffix(file, ".json") {
		doc, _, err := schemadoc.Import(data, d.opts)
		if err != nil {
			return nil, fmt.Errorf("repository: %s: %w", file, err)
		}
		docs = []schemadoc.Document{doc}
	} else {
		docs, _, err = schemadoc.ImportYAML(data, d.opts)
		if err != nil {
			return nil, fmt.Errorf("repository: %s: %w", file, err)
		}
	}
	if len(docs) == 1 && docs[0].CollectionName == "" {
		docs[0].CollectionName = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	}
	for _, doc := range docs {
		if doc.CollectionName == "" {
			return nil, fmt.Errorf("repository: %s: %w", file, ErrNoCollection)
		}
	}
	return docs, nil
}

func (d *Dir) Find(ctx context.Context, collection string) (*Entry, error) {
	return d.mem.Find(ctx, collection)
}

func (d *Dir) List(ctx context.Context) ([]string, error) {
	return d.mem.List(ctx)
}

// Put writes doc to <collection>.json and indexes it. Collections loaded from
// YAML or sharing a file with another collection are read-only.
func (d *Dir) Put(ctx context.Context, doc schemadoc.Document) error {
	if err := ValidateCollection(doc.CollectionName); err != nil {
		return err
	}
	raw := doc.Raw
	if raw == nil {
		raw = map[string]any{"collectionName": doc.CollectionName, "properties": map[string]any{}}
	}
	b, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("repository: encode %s: %w", doc.CollectionName, err)
	}
	file, err := d.target(doc.CollectionName)
	if err != nil {
		return err
	}
	if err := os.WriteFile(file, b, 0o644); err != nil {
		return fmt.Errorf("repository: write %s: %w", file, err)
	}
	if err := d.mem.Put(ctx, doc); err != nil {
		return err
	}
	d.mu.Lock()
	d.files[doc.CollectionName] = file
	d.mu.Unlock()
	return nil
}

// target picks the file Put writes for collection.
func (d *Dir) target(collection string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	file, ok := d.files[collection]
	if !ok {
		file = filepath.Join(d.path, collection+".json")
		if rel, err := filepath.Rel(d.path, file); err != nil || rel != filepath.Base(file) {
			return "", fmt.Errorf("%w: %q", ErrInvalidCollection, collection)
		}
	}
	if !strings.HasSuffix(file, ".json") {
		return "", fmt.Errorf("repository: %s is defined in %s: %w", collection, file, ErrReadOnly)
	}
	for other, f := range d.files {
		if f == file && other != collection {
			return "", fmt.Errorf("repository: %s also holds %s: %w", file, other, ErrReadOnly)
		}
	}
	return file, nil
}

// Delete removes the file backing collection. Files that hold several
// collections cannot be deleted this way.
func (d *Dir) Delete(ctx context.Context, collection string) error {
	d.mu.Lock()
	file, ok := d.files[collection]
	shared := 0
	for _, f := range d.files {
		if f == file {
			shared++
		}
	}
	d.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	if shared > 1 {
		return fmt.Errorf("repository: %s holds %d collections: %w", file, shared, ErrReadOnly)
	}
	if err := os.Remove(file); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("repository: remove %s: %w", file, err)
	}
	d.mu.Lock()
	delete(d.files, collection)
	d.mu.Unlock()
	return d.mem.Delete(ctx, collection)
}

// Watch reloads the directory whenever a schema file changes, until ctx is
// done. It returns once the watcher is installed.
func (d *Dir) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("repository: create watcher: %w", err)
	}
	if err := w.Add(d.path); err != nil {
		_ = w.Close()
		return fmt.Errorf("repository: watch %s: %w", d.path, err)
	}
	log := logger.FromContext(ctx)
	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if !isSchemaFile(ev.Name) || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				if err := d.Reload(ctx); err != nil {
					log.Error("schema directory reload failed", "error", err)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Error("schema directory watcher error", "error", err)
			}
		}
	}()
	return nil
}

func isSchemaFile(name string) bool {
	switch filepath.Ext(name) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}
