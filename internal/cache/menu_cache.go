package cache

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"pbgui-console/internal/catalog"
	"pbgui-console/internal/logging"
	"pbgui-console/internal/menu"
)

// Store is the part of CacheService used by the menu cache and the
// revocation list
type Store interface {
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	DeletePattern(ctx context.Context, pattern string) (int, error)
}

var _ Store = (*CacheService)(nil)

// MenuCache serves composed forests. Entries are keyed by catalog version,
// role set and access codes, so a reload never serves a stale forest.
// Without Redis, or while it is down, every call composes directly.
type MenuCache struct {
	registry *catalog.Registry
	cache    Store
	ttl      time.Duration
	logger   *logging.Logger
}

// NewMenuCache creates a menu cache. Pass a nil Store, not a nil
// *CacheService, to run without Redis.
func NewMenuCache(registry *catalog.Registry, cache Store, ttl time.Duration) *MenuCache {
	if ttl <= 0 {
		ttl = DefaultMenuTTL
	}
	return &MenuCache{
		registry: registry,
		cache:    cache,
		ttl:      ttl,
		logger:   logging.WithComponent("menu-cache"),
	}
}

// Compose returns the forest for roles gated by codes. A nil codes slice
// disables gating.
func (m *MenuCache) Compose(ctx context.Context, roles []string, codes []string) ([]*menu.Node, error) {
	snap := m.registry.Current()
	key := MenuKey(snap.Version, identityKey(roles, codes))

	if m.cache != nil {
		var specs []menu.NodeSpec
		err := m.cache.GetJSON(ctx, key, &specs)
		switch {
		case err == nil:
			forest, buildErr := menu.BuildForest(specs)
			if buildErr == nil {
				return forest, nil
			}
			m.logger.WithError(buildErr).Warn("Discarding unreadable cached menu", "key", key)
		case !errors.Is(err, ErrMiss) && !errors.Is(err, ErrUnavailable):
			m.logger.WithError(err).Debug("Menu cache read failed", "key", key)
		}
	}

	var set menu.AccessCodes
	if codes != nil {
		set = menu.NewAccessCodes(codes...)
	}
	forest, err := snap.Composer.ComposeRoles(roles, set)
	if err != nil {
		return nil, err
	}

	if m.cache != nil {
		if err := m.cache.SetJSON(ctx, key, menu.Specs(forest), m.ttl); err != nil && !errors.Is(err, ErrUnavailable) {
			m.logger.WithError(err).Debug("Menu cache write failed", "key", key)
		}
	}
	return forest, nil
}

// Invalidate drops every cached menu. Versioned keys already keep reloads
// correct; this only frees memory early.
func (m *MenuCache) Invalidate(ctx context.Context) {
	if m.cache == nil {
		return
	}
	deleted, err := m.cache.DeletePattern(ctx, PrefixMenuAll)
	if err != nil && !errors.Is(err, ErrUnavailable) {
		m.logger.WithError(err).Warn("Failed to invalidate menu cache")
		return
	}
	m.logger.Debug("Menu cache invalidated", "keys", deleted)
}

// identityKey renders roles in request order, since overlay order follows
// role order, and codes sorted. "*" marks ungated composition.
func identityKey(roles []string, codes []string) string {
	codePart := "*"
	if codes != nil {
		sorted := slices.Clone(codes)
		slices.Sort(sorted)
		codePart = strings.Join(slices.Compact(sorted), ",")
	}
	return strings.Join(roles, ",") + "|" + codePart
}
