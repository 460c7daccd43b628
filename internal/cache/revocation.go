package cache

import (
	"context"
	"errors"
	"time"

	"pbgui-console/internal/auth"
)

// RevocationList stores revoked token ids in Redis so logouts survive a
// restart and are shared between instances. Entries expire together with
// the token they revoke. Every revocation is also kept locally, which is
// what answers while the circuit breaker is open.
type RevocationList struct {
	cache Store
	local *auth.MemoryRevocationList
}

var _ auth.RevocationList = (*RevocationList)(nil)

// NewRevocationList creates a Redis-backed revocation list
func NewRevocationList(cache Store) *RevocationList {
	return &RevocationList{cache: cache, local: auth.NewMemoryRevocationList()}
}

// Revoke marks id as revoked until the given time
func (r *RevocationList) Revoke(ctx context.Context, id string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	if err := r.local.Revoke(ctx, id, until); err != nil {
		return err
	}
	err := r.cache.Set(ctx, RevokedKey(id), "1", ttl)
	if errors.Is(err, ErrUnavailable) {
		return nil
	}
	return err
}

// IsRevoked reports whether id has been revoked
func (r *RevocationList) IsRevoked(ctx context.Context, id string) (bool, error) {
	if revoked, _ := r.local.IsRevoked(ctx, id); revoked {
		return true, nil
	}
	revoked, err := r.cache.Exists(ctx, RevokedKey(id))
	if errors.Is(err, ErrUnavailable) {
		return false, nil
	}
	return revoked, err
}
