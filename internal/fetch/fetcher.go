package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"clinicsync/internal/cache"
	"clinicsync/internal/model"
	"clinicsync/internal/retry"
	"clinicsync/pkg/syncerror"
)

// RemoteFunc loads fresh data from the remote service.
type RemoteFunc func(ctx context.Context) ([]byte, error)

// Options tune one fetch.
type Options struct {
	// ForceRefresh skips nothing on the remote side but guarantees the
	// attempt is made even when a cached value exists.
	ForceRefresh bool

	// TTL overrides the fetcher's default cache TTL.
	TTL time.Duration
}

// CacheFallbackSink is notified when a read was served from cache instead
// of the remote service. Satisfied by the signal hub.
type CacheFallbackSink interface {
	NotifyCacheFallback()
}

// Config holds fetcher settings.
type Config struct {
	// DefaultTTL applies when a fetch does not override the TTL.
	// Default: 10m.
	DefaultTTL time.Duration

	// Retry bounds the remote attempt in tier one.
	Retry retry.Options
}

// Fetcher is the single read path: prefer fresh data, fall back to the TTL
// cache, and only fail when neither can serve.
type Fetcher struct {
	cache   cache.Cache
	exec    *retry.Executor
	monitor retry.StatusSource
	signals CacheFallbackSink
	cfg     Config
	logger  *zap.Logger
}

// New creates a fetcher. signals may be nil.
func New(c cache.Cache, exec *retry.Executor, monitor retry.StatusSource, signals CacheFallbackSink, cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.DefaultTTL == 0 {
		cfg.DefaultTTL = 10 * time.Minute
	}
	return &Fetcher{
		cache:   c,
		exec:    exec,
		monitor: monitor,
		signals: signals,
		cfg:     cfg,
		logger:  logger,
	}
}

// Fetch loads the data under key with a three-tier policy:
//
//  1. While not offline, call remoteFn through the retry executor; on
//     success cache the result and return it.
//  2. On any failure, serve the cached value if one exists, flagging
//     "using cached data".
//  3. With no cached value: offline fails with ErrNoDataOffline; online
//     makes one last direct remoteFn call and propagates its error
//     verbatim, since a non-connectivity failure (e.g. validation) is
//     something the caller must see.
//
// Two concurrent fetches for the same key are not deduplicated; cache
// writes are last-write-wins, which keeps that race harmless.
func (f *Fetcher) Fetch(ctx context.Context, key string, remoteFn RemoteFunc, opts Options) ([]byte, error) {
	ttl := opts.TTL
	if ttl == 0 {
		ttl = f.cfg.DefaultTTL
	}

	var remoteErr error
	if f.monitor.Status().State != model.StateOffline {
		var data []byte
		remoteErr = f.exec.DoWithOptions(ctx, f.cfg.Retry, func(ctx context.Context) error {
			var err error
			data, err = remoteFn(ctx)
			return err
		})
		if remoteErr == nil {
			if err := f.cache.Set(ctx, key, data, ttl); err != nil {
				f.logger.Warn("failed to cache fetched data",
					zap.String("key", key), zap.Error(err))
			}
			return data, nil
		}
		f.logger.Debug("remote fetch failed, trying cache",
			zap.String("key", key), zap.Error(remoteErr))
	}

	if !opts.ForceRefresh {
		if cached, err := f.cache.Get(ctx, key); err == nil {
			if f.signals != nil {
				f.signals.NotifyCacheFallback()
			}
			return cached, nil
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			f.logger.Warn("cache fallback failed", zap.String("key", key), zap.Error(err))
		}
	}

	if f.monitor.Status().State == model.StateOffline {
		return nil, syncerror.ErrNoDataOffline
	}

	// Last resort: one direct attempt so a caller-facing error (e.g. a
	// validation rejection) survives with its original message.
	data, err := remoteFn(ctx)
	if err != nil {
		return nil, err
	}
	if cacheErr := f.cache.Set(ctx, key, data, ttl); cacheErr != nil {
		f.logger.Warn("failed to cache fetched data",
			zap.String("key", key), zap.Error(cacheErr))
	}
	return data, nil
}

// JSON fetches through f and unmarshals the result into a value of type T.
// remoteFn returns the typed value; it is stored in the cache in its JSON
// form.
func JSON[T any](ctx context.Context, f *Fetcher, key string, remoteFn func(ctx context.Context) (T, error), opts Options) (T, error) {
	var zero T
	data, err := f.Fetch(ctx, key, func(ctx context.Context) ([]byte, error) {
		v, err := remoteFn(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	}, opts)
	if err != nil {
		return zero, err
	}

	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		// A cached payload that no longer decodes is corrupt data, not a
		// caller error: purge it and report the offline taxonomy.
		_ = f.cache.Remove(ctx, key)
		return zero, syncerror.ErrNoDataOffline
	}
	return out, nil
}
