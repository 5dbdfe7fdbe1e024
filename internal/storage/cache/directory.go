// Package cache provides a Redis read-aside decorator for the user directory.
package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/tinywideclouds/go-notification-dispatcher/pkg/dispatch"
	"github.com/tinywideclouds/go-notification-dispatcher/pkg/notification"
)

// CacheClient defines the subset of Redis commands we need.
type CacheClient interface {
	// Get returns the value or an error if not found.
	Get(ctx context.Context, key string, dest interface{}) error
	// Set stores the value with a TTL.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

const (
	userKeyPrefix = "notify:user:"
	allUsersKey   = "notify:users:all"
)

// cachedUser records misses too, so unknown ids do not hit Firestore every time.
type cachedUser struct {
	Found  bool                    `json:"found"`
	Record notification.UserRecord `json:"record"`
}

// CachedDirectory is a decorator that adds read-aside caching to a UserDirectory.
// Only directory documents are cached; recipient sets are still computed per request.
type CachedDirectory struct {
	realStore dispatch.UserDirectory
	cache     CacheClient
	ttl       time.Duration
	logger    *slog.Logger
}

// NewCachedDirectory creates the decorator.
func NewCachedDirectory(realStore dispatch.UserDirectory, cache CacheClient, ttl time.Duration, logger *slog.Logger) *CachedDirectory {
	return &CachedDirectory{
		realStore: realStore,
		cache:     cache,
		ttl:       ttl,
		logger:    logger.With("component", "CachedDirectory"),
	}
}

// Get serves from cache when possible and falls back to the real store.
func (d *CachedDirectory) Get(ctx context.Context, id string) (*notification.UserRecord, error) {
	key := userKeyPrefix + id

	var hit cachedUser
	if err := d.cache.Get(ctx, key, &hit); err == nil {
		if !hit.Found {
			return nil, nil
		}
		return &hit.Record, nil
	}

	record, err := d.realStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	entry := cachedUser{Found: record != nil}
	if record != nil {
		entry.Record = *record
	}
	// Caching is an optimization; a Redis failure still serves from Firestore.
	if err := d.cache.Set(ctx, key, entry, d.ttl); err != nil {
		d.logger.Warn("Failed to populate user cache", "key", key, "err", err)
	}
	return record, nil
}

// All serves the full listing from cache when possible.
func (d *CachedDirectory) All(ctx context.Context) ([]notification.UserRecord, error) {
	var hit []notification.UserRecord
	if err := d.cache.Get(ctx, allUsersKey, &hit); err == nil {
		return hit, nil
	}

	records, err := d.realStore.All(ctx)
	if err != nil {
		return nil, err
	}
	if err := d.cache.Set(ctx, allUsersKey, records, d.ttl); err != nil {
		d.logger.Warn("Failed to populate directory cache", "key", allUsersKey, "err", err)
	}
	return records, nil
}
