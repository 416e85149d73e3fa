package server

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/reoring/jsnorm/internal/config"
	"github.com/reoring/jsnorm/internal/logger"
	"github.com/reoring/jsnorm/repository"
	"github.com/reoring/jsnorm/schemadoc"
)

// NewStore builds the repository selected by cfg, wrapped in an LRU cache when
// cache_size > 0. The returned close func releases clients and watchers.
func NewStore(ctx context.Context, cfg config.RepositoryConfig) (repository.Store, func(), error) {
	opts := schemadoc.Options{ValidateDocument: cfg.ValidateDocuments}
	closeFn := func() {}
	var (
		store repository.Store
		dir   *repository.Dir
	)
	switch cfg.Kind {
	case "memory":
		store = repository.NewMemory()
	case "dir":
		d, err := repository.NewDir(ctx, cfg.Dir, opts)
		if err != nil {
			return nil, nil, err
		}
		store, dir = d, d
	case "redis":
		ropt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid redis url: %w", err)
		}
		client := redis.NewClient(ropt)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		closeFn = func() { _ = client.Close() }
		store = repository.NewRedis(client, repository.WithPrefix(cfg.RedisPrefix), repository.WithImportOptions(opts))
	default:
		return nil, nil, fmt.Errorf("unknown repository kind %q", cfg.Kind)
	}

	if cfg.CacheSize > 0 {
		cached, err := repository.NewCached(store, cfg.CacheSize)
		if err != nil {
			closeFn()
			return nil, nil, err
		}
		if dir != nil {
			dir.OnReload(cached.Purge)
		}
		store = cached
	}

	if dir != nil && cfg.Watch {
		wctx, cancel := context.WithCancel(ctx)
		if err := dir.Watch(wctx); err != nil {
			cancel()
			closeFn()
			return nil, nil, err
		}
		prev := closeFn
		closeFn = func() { cancel(); prev() }
	}
	logger.FromContext(ctx).Info("schema repository ready", "kind", cfg.Kind, "cache_size", cfg.CacheSize)
	return store, closeFn, nil
}
