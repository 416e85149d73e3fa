package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/jsnorm/internal/logger"
	"github.com/reoring/jsnorm/schemadoc"
)

const peopleJSON = `{
	"collectionName": "people",
	"modelName": "person",
	"properties": {
		"name": {"type": "string"},
		"status": {"type": "string", "readOnly": true, "default": "new"}
	}
}`

func testCtx(t *testing.T) context.Context {
	return logger.ContextWithLogger(t.Context(), logger.NewForTests())
}

func mustDoc(t *testing.T, s string) schemadoc.Document {
	t.Helper()
	doc, _, err := schemadoc.Import([]byte(s), schemadoc.Options{})
	require.NoError(t, err)
	return doc
}

func assertPeoplePlan(t *testing.T, e *Entry) {
	t.Helper()
	require.NotNil(t, e)
	out := e.Plan.Normalize(map[string]any{"name": "wilson", "status": "single"})
	assert.Equal(t, map[string]any{"name": "wilson", "status": "new"}, out)
}

func TestMemory(t *testing.T) {
	t.Run("Should store, find, list and delete documents", func(t *testing.T) {
		ctx := testCtx(t)
		m := NewMemory()
		require.NoError(t, m.Put(ctx, mustDoc(t, peopleJSON)))

		e, err := m.Find(ctx, "people")
		require.NoError(t, err)
		assertPeoplePlan(t, e)

		names, err := m.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"people"}, names)

		require.NoError(t, m.Delete(ctx, "people"))
		_, err = m.Find(ctx, "people")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, m.Delete(ctx, "people"), ErrNotFound)
	})
	t.Run("Should reject documents without collection name", func(t *testing.T) {
		err := NewMemory().Put(testCtx(t), schemadoc.Document{})
		assert.ErrorIs(t, err, ErrNoCollection)
	})
	t.Run("Should honor canceled contexts", func(t *testing.T) {
		ctx, cancel := context.WithCancel(testCtx(t))
		cancel()
		_, err := NewMemory().Find(ctx, "people")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestValidateCollection(t *testing.T) {
	t.Run("Should accept plain names", func(t *testing.T) {
		for _, name := range []string{"people", "json-schemas", "a.b", "user_42"} {
			assert.NoError(t, ValidateCollection(name), name)
		}
	})
	t.Run("Should reject names that escape a directory or path segment", func(t *testing.T) {
		for _, name := range []string{"../escaped", "a/b", `a\b`, "..", ".hidden", "a..b", "nul\x00"} {
			assert.ErrorIs(t, ValidateCollection(name), ErrInvalidCollection, name)
		}
		assert.ErrorIs(t, ValidateCollection(""), ErrNoCollection)
	})
	t.Run("Should guard every store", func(t *testing.T) {
		doc := mustDoc(t, `{"collectionName":"../escaped","properties":{}}`)
		assert.ErrorIs(t, NewMemory().Put(testCtx(t), doc), ErrInvalidCollection)

		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		assert.ErrorIs(t, NewRedis(client).Put(testCtx(t), doc), ErrInvalidCollection)
		assert.Empty(t, mr.Keys())
	})
}

func TestDir(t *testing.T) {
	t.Run("Should load json and yaml files keyed by collection or file name", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "people.json", peopleJSON)
		writeFile(t, dir, "orders.yaml", "properties:\n  id: {type: string, readOnly: true}\n")
		writeFile(t, dir, "bundle.yml", "collectionName: a\nproperties: {}\n---\ncollectionName: b\nproperties: {}\n")
		writeFile(t, dir, "notes.txt", "ignored")

		d, err := NewDir(testCtx(t), dir, schemadoc.Options{})
		require.NoError(t, err)
		names, err := d.List(testCtx(t))
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "orders", "people"}, names)

		e, err := d.Find(testCtx(t), "people")
		require.NoError(t, err)
		assertPeoplePlan(t, e)
	})
	t.Run("Should fail on a malformed file", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "bad.json", `{"properties":`)
		_, err := NewDir(testCtx(t), dir, schemadoc.Options{})
		require.Error(t, err)
	})
	t.Run("Should write and delete documents as files", func(t *testing.T) {
		dir := t.TempDir()
		d, err := NewDir(testCtx(t), dir, schemadoc.Options{})
		require.NoError(t, err)
		require.NoError(t, d.Put(testCtx(t), mustDoc(t, peopleJSON)))
		assert.FileExists(t, filepath.Join(dir, "people.json"))

		require.NoError(t, d.Reload(testCtx(t)))
		e, err := d.Find(testCtx(t), "people")
		require.NoError(t, err)
		assertPeoplePlan(t, e)

		require.NoError(t, d.Delete(testCtx(t), "people"))
		assert.NoFileExists(t, filepath.Join(dir, "people.json"))
		_, err = d.Find(testCtx(t), "people")
		assert.ErrorIs(t, err, ErrNotFound)
	})
	t.Run("Should never write outside the directory", func(t *testing.T) {
		root := t.TempDir()
		dir := filepath.Join(root, "schemas")
		require.NoError(t, os.Mkdir(dir, 0o755))
		d, err := NewDir(testCtx(t), dir, schemadoc.Options{})
		require.NoError(t, err)

		err = d.Put(testCtx(t), mustDoc(t, `{"collectionName":"../escaped","properties":{}}`))
		assert.ErrorIs(t, err, ErrInvalidCollection)
		assert.NoFileExists(t, filepath.Join(root, "escaped.json"))
		names, err := d.List(testCtx(t))
		require.NoError(t, err)
		assert.Empty(t, names)
	})
	t.Run("Should refuse to overwrite collections defined in yaml", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "orders.yaml", "properties:\n  id: {type: string, readOnly: true}\n")
		d, err := NewDir(testCtx(t), dir, schemadoc.Options{})
		require.NoError(t, err)

		err = d.Put(testCtx(t), mustDoc(t, `{"collectionName":"orders","properties":{"id":{"type":"string"}}}`))
		assert.ErrorIs(t, err, ErrReadOnly)
		assert.NoFileExists(t, filepath.Join(dir, "orders.json"))

		require.NoError(t, d.Reload(testCtx(t)))
		e, err := d.Find(testCtx(t), "orders")
		require.NoError(t, err)
		assert.Empty(t, e.Plan.Normalize(map[string]any{"id": "x"}))
	})
	t.Run("Should refuse to write into a file holding another collection", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "people.json", `{"collectionName":"humans","properties":{}}`)
		d, err := NewDir(testCtx(t), dir, schemadoc.Options{})
		require.NoError(t, err)
		assert.ErrorIs(t, d.Put(testCtx(t), mustDoc(t, peopleJSON)), ErrReadOnly)
		_, err = d.Find(testCtx(t), "humans")
		require.NoError(t, err)
	})
	t.Run("Should overwrite a collection's own json file", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "people.json", `{"collectionName":"people","properties":{}}`)
		d, err := NewDir(testCtx(t), dir, schemadoc.Options{})
		require.NoError(t, err)
		require.NoError(t, d.Put(testCtx(t), mustDoc(t, peopleJSON)))
		require.NoError(t, d.Reload(testCtx(t)))
		e, err := d.Find(testCtx(t), "people")
		require.NoError(t, err)
		assertPeoplePlan(t, e)
	})
	t.Run("Should refuse to delete one collection of a shared file", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "bundle.yml", "collectionName: a\nproperties: {}\n---\ncollectionName: b\nproperties: {}\n")
		d, err := NewDir(testCtx(t), dir, schemadoc.Options{})
		require.NoError(t, err)
		assert.ErrorIs(t, d.Delete(testCtx(t), "a"), ErrReadOnly)
	})
	t.Run("Should reload when files change while watching", func(t *testing.T) {
		dir := t.TempDir()
		d, err := NewDir(testCtx(t), dir, schemadoc.Options{})
		require.NoError(t, err)
		reloaded := make(chan struct{}, 16)
		d.OnReload(func() {
			select {
			case reloaded <- struct{}{}:
			default:
			}
		})

		ctx, cancel := context.WithCancel(testCtx(t))
		defer cancel()
		require.NoError(t, d.Watch(ctx))

		writeFile(t, dir, "people.json", peopleJSON)
		require.Eventually(t, func() bool {
			_, err := d.Find(ctx, "people")
			return err == nil
		}, 5*time.Second, 20*time.Millisecond)
		assert.NotEmpty(t, reloaded)
	})
}

func TestRedis(t *testing.T) {
	setup := func(t *testing.T) (*Redis, *miniredis.Miniredis) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		return NewRedis(client, WithPrefix("test")), mr
	}
	t.Run("Should round-trip documents through redis", func(t *testing.T) {
		s, mr := setup(t)
		ctx := testCtx(t)
		require.NoError(t, s.Put(ctx, mustDoc(t, peopleJSON)))
		assert.True(t, mr.Exists("test:people"))

		e, err := s.Find(ctx, "people")
		require.NoError(t, err)
		assertPeoplePlan(t, e)
		assert.Equal(t, "person", e.Document.ModelName)
	})
	t.Run("Should report missing collections", func(t *testing.T) {
		s, _ := setup(t)
		_, err := s.Find(testCtx(t), "nope")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.Delete(testCtx(t), "nope"), ErrNotFound)
	})
	t.Run("Should list collections under the prefix only", func(t *testing.T) {
		s, mr := setup(t)
		ctx := testCtx(t)
		require.NoError(t, mr.Set("other:x", "{}"))
		require.NoError(t, s.Put(ctx, mustDoc(t, `{"collectionName":"b","properties":{}}`)))
		require.NoError(t, s.Put(ctx, mustDoc(t, `{"collectionName":"a","properties":{}}`)))
		names, err := s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, names)

		require.NoError(t, s.Delete(ctx, "a"))
		assert.False(t, mr.Exists("test:a"))
	})
	t.Run("Should match glob characters in the prefix literally", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		s := NewRedis(client, WithPrefix("t*[x]"))
		ctx := testCtx(t)
		require.NoError(t, mr.Set("tx:other", "{}"))
		require.NoError(t, mr.Set("tabc:other", "{}"))
		require.NoError(t, s.Put(ctx, mustDoc(t, `{"collectionName":"a","properties":{}}`)))
		names, err := s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, names)
	})
	t.Run("Should surface corrupt stored documents", func(t *testing.T) {
		s, mr := setup(t)
		require.NoError(t, mr.Set("test:broken", "not json"))
		_, err := s.Find(testCtx(t), "broken")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotFound)
	})
	t.Run("Should fall back to the key for documents without collection name", func(t *testing.T) {
		s, mr := setup(t)
		require.NoError(t, mr.Set("test:plain", `{"properties":{"a":{"default":1}}}`))
		e, err := s.Find(testCtx(t), "plain")
		require.NoError(t, err)
		assert.Equal(t, "plain", e.Document.CollectionName)
	})
}

type countingRepo struct {
	Repository
	finds int
}

func (c *countingRepo) Find(ctx context.Context, collection string) (*Entry, error) {
	c.finds++
	return c.Repository.Find(ctx, collection)
}

func TestCached(t *testing.T) {
	t.Run("Should serve repeated lookups from the cache", func(t *testing.T) {
		ctx := testCtx(t)
		mem := NewMemory()
		require.NoError(t, mem.Put(ctx, mustDoc(t, peopleJSON)))
		inner := &countingRepo{Repository: mem}
		c, err := NewCached(inner, 8)
		require.NoError(t, err)

		for range 3 {
			e, err := c.Find(ctx, "people")
			require.NoError(t, err)
			assertPeoplePlan(t, e)
		}
		assert.Equal(t, 1, inner.finds)
		assert.Equal(t, 1, c.Len())

		c.Invalidate("people")
		_, err = c.Find(ctx, "people")
		require.NoError(t, err)
		assert.Equal(t, 2, inner.finds)
	})
	t.Run("Should not cache misses", func(t *testing.T) {
		inner := &countingRepo{Repository: NewMemory()}
		c, err := NewCached(inner, 8)
		require.NoError(t, err)
		_, err = c.Find(testCtx(t), "nope")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, 0, c.Len())
	})
	t.Run("Should invalidate on writes through to a store", func(t *testing.T) {
		ctx := testCtx(t)
		mem := NewMemory()
		c, err := NewCached(mem, 8)
		require.NoError(t, err)
		require.NoError(t, c.Put(ctx, mustDoc(t, peopleJSON)))
		_, err = c.Find(ctx, "people")
		require.NoError(t, err)

		require.NoError(t, c.Put(ctx, mustDoc(t, `{"collectionName":"people","properties":{}}`)))
		e, err := c.Find(ctx, "people")
		require.NoError(t, err)
		assert.Empty(t, e.Document.Properties)

		require.NoError(t, c.Delete(ctx, "people"))
		_, err = c.Find(ctx, "people")
		assert.ErrorIs(t, err, ErrNotFound)

		c.Purge()
		assert.Equal(t, 0, c.Len())
	})
	t.Run("Should report read-only inner repositories", func(t *testing.T) {
		c, err := NewCached(&countingRepo{Repository: NewMemory()}, 1)
		require.NoError(t, err)
		_, err = c.List(testCtx(t))
		assert.ErrorIs(t, err, ErrReadOnly)
	})
	t.Run("Should reject a non-positive size", func(t *testing.T) {
		_, err := NewCached(NewMemory(), 0)
		require.Error(t, err)
	})
}
