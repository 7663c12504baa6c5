package grantcache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/sentra-authz/sentra/internal/directory"
	"github.com/sentra-authz/sentra/internal/observability"
	"github.com/sentra-authz/sentra/internal/override"
)

const keyPrefix = "authz:user:"

// Snapshot holds one user's raw grant inputs. It never contains resolved
// decisions or catalog status.
type Snapshot struct {
	UserID       int64            `json:"user_id"`
	DepartmentID int64            `json:"department_id"`
	RoleCode     string           `json:"role_code"`
	RoleGrants   []string         `json:"role_grants"`
	Overrides    []override.Grant `json:"overrides"`
	CachedAt     time.Time        `json:"cached_at"`
}

// Cache provides best-effort snapshot caching. Read failures fall through to
// recomputation; write failures are logged and never fail the caller.
type Cache struct {
	store   Store
	ttl     time.Duration
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewCache builds the cache helper. The TTL is a backstop against missed
// invalidations.
func NewCache(store Store, ttl time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Cache {
	return &Cache{store: store, ttl: ttl, logger: logger, metrics: metrics}
}

// GetSnapshot returns the cached snapshot, or false on a miss or any error.
func (c *Cache) GetSnapshot(ctx context.Context, userID int64) (Snapshot, bool) {
	if c == nil || c.store == nil {
		return Snapshot{}, false
	}
	raw, err := c.store.Get(ctx, userKey(userID))
	if err != nil {
		if errors.Is(err, ErrMiss) {
			c.metrics.CacheEvent("miss")
		} else {
			c.metrics.CacheEvent("error")
			c.logger.Warn("grant cache read failed", slog.Int64("user_id", userID), slog.Any("error", err))
		}
		return Snapshot{}, false
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		c.metrics.CacheEvent("error")
		c.logger.Warn("grant cache decode failed", slog.Int64("user_id", userID), slog.Any("error", err))
		return Snapshot{}, false
	}
	c.metrics.CacheEvent("hit")
	return snap, true
}

// PutSnapshot stores the snapshot with the backstop TTL.
func (c *Cache) PutSnapshot(ctx context.Context, snap Snapshot) {
	if c == nil || c.store == nil {
		return
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		c.metrics.CacheEvent("write_error")
		c.logger.Warn("grant cache encode failed", slog.Int64("user_id", snap.UserID), slog.Any("error", err))
		return
	}
	if err := c.store.SetWithTTL(ctx, userKey(snap.UserID), raw, c.ttl); err != nil {
		c.metrics.CacheEvent("write_error")
		c.logger.Warn("grant cache write failed", slog.Int64("user_id", snap.UserID), slog.Any("error", err))
	}
}

// InvalidateUser drops one user's snapshot.
func (c *Cache) InvalidateUser(ctx context.Context, userID int64) {
	if c == nil || c.store == nil {
		return
	}
	if err := c.store.Delete(ctx, userKey(userID)); err != nil {
		c.logger.Warn("grant cache invalidate failed", slog.Int64("user_id", userID), slog.Any("error", err))
	}
}

// InvalidateAllUsers drops every snapshot; the fallback when the set of
// affected users cannot be determined.
func (c *Cache) InvalidateAllUsers(ctx context.Context) {
	if c == nil || c.store == nil {
		return
	}
	if err := c.store.DeleteByPrefix(ctx, keyPrefix); err != nil {
		c.logger.Warn("grant cache full invalidate failed", slog.Any("error", err))
	}
}

func userKey(userID int64) string {
	return keyPrefix + strconv.FormatInt(userID, 10)
}

// RoleInvalidator invalidates every user holding a role after a matrix
// mutation. Listing failures degrade to a prefix-wide invalidation.
type RoleInvalidator struct {
	cache  *Cache
	dir    directory.Directory
	logger *slog.Logger
}

// NewRoleInvalidator builds a RoleInvalidator.
func NewRoleInvalidator(cache *Cache, dir directory.Directory, logger *slog.Logger) *RoleInvalidator {
	return &RoleInvalidator{cache: cache, dir: dir, logger: logger}
}

// InvalidateRole drops the snapshot of every user currently holding the role.
func (r *RoleInvalidator) InvalidateRole(ctx context.Context, roleCode string) {
	userIDs, err := r.dir.UserIDsByRole(ctx, roleCode)
	if err != nil {
		r.logger.Warn("list role users for invalidation failed",
			slog.String("role_code", roleCode), slog.Any("error", err))
		r.cache.InvalidateAllUsers(ctx)
		return
	}
	for _, id := range userIDs {
		r.cache.InvalidateUser(ctx, id)
	}
}
