package cache

import (
	"context"
	"encoding/json"
	"errors"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"pbgui-console/config"
	"pbgui-console/internal/catalog"
	"pbgui-console/internal/menu"
)

// ============================================================================
// MOCK TYPES
// ============================================================================

// MockCacheService is an in-memory Store
type MockCacheService struct {
	mu        sync.Mutex
	healthy   bool
	data      map[string]string
	getCalls  int
	setCalls  int
	lastTTL   time.Duration
	setErr    error
	deleteErr error
}

func NewMockCacheService() *MockCacheService {
	return &MockCacheService{healthy: true, data: make(map[string]string)}
}

func (m *MockCacheService) GetJSON(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	if !m.healthy {
		return ErrUnavailable
	}
	data, ok := m.data[key]
	if !ok {
		return ErrMiss
	}
	return json.Unmarshal([]byte(data), dest)
}

func (m *MockCacheService) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return m.Set(ctx, key, value, ttl)
}

func (m *MockCacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCalls++
	m.lastTTL = ttl
	if !m.healthy {
		return ErrUnavailable
	}
	if m.setErr != nil {
		return m.setErr
	}
	if s, ok := value.(string); ok {
		m.data[key] = s
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = string(data)
	return nil
}

func (m *MockCacheService) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.healthy {
		return false, ErrUnavailable
	}
	_, ok := m.data[key]
	return ok, nil
}

func (m *MockCacheService) DeletePattern(ctx context.Context, pattern string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.healthy {
		return 0, ErrUnavailable
	}
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	deleted := 0
	for key := range m.data {
		if ok, _ := path.Match(pattern, key); ok {
			delete(m.data, key)
			deleted++
		}
	}
	return deleted, nil
}

func (m *MockCacheService) setHealthy(healthy bool) {
	m.mu.Lock()
	m.healthy = healthy
	m.mu.Unlock()
}

func newRegistry(t *testing.T) *catalog.Registry {
	t.Helper()
	r, err := catalog.NewRegistry(context.Background(), catalog.NewBuiltinSource(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	return r
}

func rootIDs(forest []*menu.Node) []int64 {
	ids := make([]int64, len(forest))
	for i, n := range forest {
		ids[i] = n.ID()
	}
	return ids
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ============================================================================
// KEYS
// ============================================================================

func TestKeys(t *testing.T) {
	if got := MenuKey(3, "admin|*"); got != "pbgui:menu:v3:admin|*" {
		t.Errorf("Expected pbgui:menu:v3:admin|*, got %s", got)
	}
	if got := RevokedKey("abc"); got != "pbgui:revoked:abc" {
		t.Errorf("Expected pbgui:revoked:abc, got %s", got)
	}
	if ok, _ := path.Match(PrefixMenuAll, MenuKey(1, "super|")); !ok {
		t.Error("Expected menu keys to match the invalidation pattern")
	}
}

func TestIdentityKey(t *testing.T) {
	tests := []struct {
		name  string
		roles []string
		codes []string
		want  string
	}{
		{"ungated", []string{"super"}, nil, "super|*"},
		{"no codes", []string{"super"}, []string{}, "super|"},
		{"sorted codes", []string{"admin"}, []string{"B", "A", "B"}, "admin|A,B"},
		{"role order kept", []string{"user", "admin"}, nil, "user,admin|*"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := identityKey(tt.roles, tt.codes); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

// ============================================================================
// MENU CACHE
// ============================================================================

func TestMenuCacheWithoutRedis(t *testing.T) {
	mc := NewMenuCache(newRegistry(t), nil, 0)
	if mc.ttl != DefaultMenuTTL {
		t.Errorf("Expected default TTL %v, got %v", DefaultMenuTTL, mc.ttl)
	}

	forest, err := mc.Compose(context.Background(), []string{"admin"}, nil)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if want := []int64{100, 1020}; !equalIDs(rootIDs(forest), want) {
		t.Errorf("Expected roots %v, got %v", want, rootIDs(forest))
	}

	mc.Invalidate(context.Background())
}

func TestMenuCacheHit(t *testing.T) {
	store := NewMockCacheService()
	mc := NewMenuCache(newRegistry(t), store, time.Minute)
	ctx := context.Background()

	first, err := mc.Compose(ctx, []string{"super"}, []string{"AC_100100"})
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if store.setCalls != 1 {
		t.Fatalf("Expected one cache write, got %d", store.setCalls)
	}
	if store.lastTTL != time.Minute {
		t.Errorf("Expected TTL 1m, got %v", store.lastTTL)
	}

	second, err := mc.Compose(ctx, []string{"super"}, []string{"AC_100100"})
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if store.setCalls != 1 {
		t.Errorf("Expected cache hit without a second write, got %d writes", store.setCalls)
	}
	if !equalIDs(menu.FlattenIDs(first), menu.FlattenIDs(second)) {
		t.Errorf("Expected cached forest to match, got %v and %v", menu.FlattenIDs(first), menu.FlattenIDs(second))
	}

	n, ok := menu.Find(second, 1001)
	if !ok {
		t.Fatal("Expected node 1001 in cached forest")
	}
	if pid, ok := n.ParentID(); !ok || pid != 1000 {
		t.Errorf("Expected parent 1000, got %d", pid)
	}
}

func TestMenuCacheVersionedKeys(t *testing.T) {
	store := NewMockCacheService()
	registry := newRegistry(t)
	mc := NewMenuCache(registry, store, time.Minute)
	ctx := context.Background()

	if _, err := mc.Compose(ctx, []string{"user"}, nil); err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if _, err := registry.Reload(ctx); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if _, err := mc.Compose(ctx, []string{"user"}, nil); err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if store.setCalls != 2 {
		t.Errorf("Expected a fresh entry after reload, got %d writes", store.setCalls)
	}

	mc.Invalidate(ctx)
	if len(store.data) != 0 {
		t.Errorf("Expected invalidation to drop every menu key, %d left", len(store.data))
	}
}

func TestMenuCacheDegraded(t *testing.T) {
	store := NewMockCacheService()
	store.setHealthy(false)
	mc := NewMenuCache(newRegistry(t), store, time.Minute)

	forest, err := mc.Compose(context.Background(), []string{"user"}, nil)
	if err != nil {
		t.Fatalf("Expected compose to fall back, got %v", err)
	}
	if want := []int64{100, 1040}; !equalIDs(rootIDs(forest), want) {
		t.Errorf("Expected roots %v, got %v", want, rootIDs(forest))
	}

	store.setErr = errors.New("boom")
	store.setHealthy(true)
	if _, err := mc.Compose(context.Background(), []string{"user"}, nil); err != nil {
		t.Errorf("Expected write failures to be ignored, got %v", err)
	}
}

func TestMenuCacheDiscardsCorruptEntry(t *testing.T) {
	store := NewMockCacheService()
	registry := newRegistry(t)
	mc := NewMenuCache(registry, store, time.Minute)

	key := MenuKey(registry.Version(), identityKey([]string{"admin"}, nil))
	store.data[key] = `[{"id":1,"type":"button","children":[{"id":2}]}]`

	forest, err := mc.Compose(context.Background(), []string{"admin"}, nil)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if want := []int64{100, 1020}; !equalIDs(rootIDs(forest), want) {
		t.Errorf("Expected recomposed roots %v, got %v", want, rootIDs(forest))
	}
}

// ============================================================================
// REVOCATION LIST
// ============================================================================

func TestRevocationList(t *testing.T) {
	store := NewMockCacheService()
	rl := NewRevocationList(store)
	ctx := context.Background()

	if err := rl.Revoke(ctx, "jti-1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if _, ok := store.data[RevokedKey("jti-1")]; !ok {
		t.Error("Expected revocation to be written to redis")
	}

	revoked, err := rl.IsRevoked(ctx, "jti-1")
	if err != nil || !revoked {
		t.Errorf("Expected jti-1 revoked, got %v (%v)", revoked, err)
	}

	// revoked by another instance
	store.data[RevokedKey("jti-2")] = "1"
	if revoked, _ := rl.IsRevoked(ctx, "jti-2"); !revoked {
		t.Error("Expected jti-2 revoked through redis")
	}

	if err := rl.Revoke(ctx, "old", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if _, ok := store.data[RevokedKey("old")]; ok {
		t.Error("Expected expired token not to be stored")
	}
}

func TestRevocationListDegraded(t *testing.T) {
	store := NewMockCacheService()
	store.setHealthy(false)
	rl := NewRevocationList(store)
	ctx := context.Background()

	if err := rl.Revoke(ctx, "jti-1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Expected revoke to succeed locally, got %v", err)
	}
	revoked, err := rl.IsRevoked(ctx, "jti-1")
	if err != nil || !revoked {
		t.Errorf("Expected local revocation, got %v (%v)", revoked, err)
	}
	revoked, err = rl.IsRevoked(ctx, "other")
	if err != nil || revoked {
		t.Errorf("Expected unknown token to pass, got %v (%v)", revoked, err)
	}
}

// ============================================================================
// CIRCUIT BREAKER
// ============================================================================

func TestCircuitBreaker(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer client.Close()

	cs := newCacheService(client, config.RedisConfig{Address: "127.0.0.1:1", PoolSize: 4})
	cs.lastCheck = time.Now()

	if cs.IsHealthy() {
		t.Fatal("Expected new service to start unhealthy")
	}
	if _, err := cs.Get(context.Background(), "k"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable, got %v", err)
	}

	cs.recordSuccess()
	if !cs.IsHealthy() {
		t.Fatal("Expected success to close the breaker")
	}

	for i := 0; i < cs.maxFailures; i++ {
		cs.recordFailure()
	}
	if cs.IsHealthy() {
		t.Error("Expected breaker to open after max failures")
	}

	stats := cs.GetStats()
	if stats.FailureCount != cs.maxFailures || stats.Healthy || stats.PoolSize != 4 {
		t.Errorf("Unexpected stats %+v", stats)
	}
}

func TestNewCacheServiceDisabled(t *testing.T) {
	if _, err := NewCacheService(config.RedisConfig{Enabled: false}); err == nil {
		t.Error("Expected error when redis is disabled")
	}
}
