package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/reoring/jsnorm/internal/logger"
	"github.com/reoring/jsnorm/schemadoc"
)

// Redis stores schema documents as JSON strings under <prefix>:<collection>.
// Find compiles on every call; wrap it in Cached for hot paths.
type Redis struct {
	r      redis.Cmdable
	prefix string
	opts   schemadoc.Options
}

// RedisOption configures Redis.
type RedisOption func(*Redis)

// WithPrefix sets the key prefix (default "jsnorm:schema").
func WithPrefix(p string) RedisOption {
	return func(s *Redis) { s.prefix = p }
}

// WithImportOptions sets the options used when decoding stored documents.
func WithImportOptions(o schemadoc.Options) RedisOption {
	return func(s *Redis) { s.opts = o }
}

func NewRedis(client redis.Cmdable, opts ...RedisOption) *Redis {
	s := &Redis{r: client, prefix: "jsnorm:schema"}
	for _, o := range opts {
		o(s)
	}
	return s
}

var globEscaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`)

func (s *Redis) keyFor(collection string) string { return s.prefix + ":" + collection }

func (s *Redis) Find(ctx context.Context, collection string) (*Entry, error) {
	bs, err := s.r.Get(ctx, s.keyFor(collection)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			logger.FromContext(ctx).Debug("schema not found", "collection", collection)
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: redis get %s: %w", collection, err)
	}
	doc, _, err := schemadoc.Import(bs, s.opts)
	if err != nil {
		return nil, fmt.Errorf("repository: stored schema %s: %w", collection, err)
	}
	if doc.CollectionName == "" {
		doc.CollectionName = collection
	}
	return NewEntry(doc), nil
}

func (s *Redis) Put(ctx context.Context, doc schemadoc.Document) error {
	if err := ValidateCollection(doc.CollectionName); err != nil {
		return err
	}
	raw := doc.Raw
	if raw == nil {
		raw = map[string]any{"collectionName": doc.CollectionName, "properties": map[string]any{}}
	}
	bs, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("repository: encode %s: %w", doc.CollectionName, err)
	}
	if err := s.r.Set(ctx, s.keyFor(doc.CollectionName), bs, 0).Err(); err != nil {
		return fmt.Errorf("repository: redis set %s: %w", doc.CollectionName, err)
	}
	logger.FromContext(ctx).Info("schema registered", "collection", doc.CollectionName, "model", doc.ModelName)
	return nil
}

func (s *Redis) Delete(ctx context.Context, collection string) error {
	n, err := s.r.Del(ctx, s.keyFor(collection)).Result()
	if err != nil {
		return fmt.Errorf("repository: redis del %s: %w", collection, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// List scans the prefix and returns sorted collection names.
func (s *Redis) List(ctx context.Context) ([]string, error) {
	var out []string
	iter := s.r.Scan(ctx, 0, globEscaper.Replace(s.prefix)+":*", 100).Iterator()
	for iter.Next(ctx) {
		out = append(out, strings.TrimPrefix(iter.Val(), s.prefix+":"))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("repository: redis scan: %w", err)
	}
	slices.Sort(out)
	return out, nil
}
