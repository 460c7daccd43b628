// Package mockdata provides the in-memory backend used when the console
// runs without postgres. It mirrors the repository methods of the database
// package and is seeded with the console's demo accounts.
package mockdata

import (
	"cmp"
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"pbgui-console/internal/auth"
	"pbgui-console/internal/database"
)

// DefaultUsers are the demo accounts of the console. Every one of them
// uses the password 123456.
func DefaultUsers() []auth.SeedUser {
	return []auth.SeedUser{
		{
			Username: "vben",
			Password: "123456",
			RealName: "Vben",
			Roles:    []string{"super"},
			Codes:    []string{"AC_100100", "AC_100110", "AC_100120", "AC_100010"},
		},
		{
			Username: "admin",
			Password: "123456",
			RealName: "Admin",
			Roles:    []string{"admin"},
			HomePath: "/workspace",
			Codes:    []string{"AC_100010", "AC_100020", "AC_100030"},
		},
		{
			Username: "jack",
			Password: "123456",
			RealName: "Jack",
			Roles:    []string{"user"},
			HomePath: "/analytics",
			Codes:    []string{"AC_1000001", "AC_1000002"},
		},
	}
}

// Store is a concurrency-safe in-memory repository. Values handed out are
// copies; callers cannot mutate the stored state.
type Store struct {
	mu sync.RWMutex

	users      map[string]*database.User
	codes      map[int64][]string
	nextUserID int64

	preferences database.Preferences
	coinmarket  database.CoinMarketConfig

	exchangeKeys map[int64]database.ExchangeAPIKey
	nextKeyID    int64

	now func() time.Time
}

// NewStore creates an empty store. User ids start at 0 like the demo data.
func NewStore() *Store {
	return &Store{
		users:        make(map[string]*database.User),
		codes:        make(map[int64][]string),
		coinmarket:   database.DefaultCoinMarketConfig(),
		exchangeKeys: make(map[int64]database.ExchangeAPIKey),
		nextKeyID:    1,
		now:          time.Now,
	}
}

// NewSeededStore creates a store holding DefaultUsers
func NewSeededStore(ctx context.Context, passwords *auth.PasswordManager) (*Store, error) {
	s := NewStore()
	if err := auth.SeedUsers(ctx, s, passwords, DefaultUsers()); err != nil {
		return nil, err
	}
	return s, nil
}

// HealthCheck always succeeds
func (s *Store) HealthCheck(ctx context.Context) error {
	return nil
}

// ============================================================================
// USERS
// ============================================================================

func copyUser(u *database.User) *database.User {
	out := *u
	out.Roles = slices.Clone(u.Roles)
	return &out
}

// GetUserByUsername returns nil, nil when the user does not exist
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*database.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[username]
	if !ok {
		return nil, nil
	}
	return copyUser(user), nil
}

// CreateUser stores a user and assigns its id
func (s *Store) CreateUser(ctx context.Context, user *database.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.Username]; exists {
		return database.ErrDuplicate
	}

	now := s.now()
	user.ID = s.nextUserID
	user.CreatedAt = now
	user.UpdatedAt = now
	s.nextUserID++

	s.users[user.Username] = copyUser(user)
	return nil
}

// GetAccessCodes lists the codes of a user in sorted order
func (s *Store) GetAccessCodes(ctx context.Context, username string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[username]
	if !ok {
		return nil, nil
	}
	codes := slices.Clone(s.codes[user.ID])
	sort.Strings(codes)
	return codes, nil
}

// GrantAccessCodes adds codes to a user, ignoring codes already held
func (s *Store) GrantAccessCodes(ctx context.Context, userID int64, codes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, code := range codes {
		if !slices.Contains(s.codes[userID], code) {
			s.codes[userID] = append(s.codes[userID], code)
		}
	}
	return nil
}

// ============================================================================
// SETTINGS
// ============================================================================

// GetPreferences returns the stored preferences
func (s *Store) GetPreferences(ctx context.Context) (*database.Preferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefs := s.preferences
	return &prefs, nil
}

// SavePreferences replaces the stored preferences
func (s *Store) SavePreferences(ctx context.Context, prefs *database.Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.preferences = *prefs
	return nil
}

// GetCoinMarketConfig returns the stored coinmarket settings
func (s *Store) GetCoinMarketConfig(ctx context.Context) (*database.CoinMarketConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg := s.coinmarket
	return &cfg, nil
}

// SaveCoinMarketConfig replaces the stored coinmarket settings
func (s *Store) SaveCoinMarketConfig(ctx context.Context, cfg *database.CoinMarketConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.coinmarket = *cfg
	return nil
}

// ============================================================================
// EXCHANGE API KEYS
// ============================================================================

func copyKey(k database.ExchangeAPIKey) database.ExchangeAPIKey {
	if k.Status != nil {
		status := *k.Status
		k.Status = &status
	}
	return k
}

// accountTaken reports whether another key uses accountName; callers hold mu
func (s *Store) accountTaken(accountName string, exceptID int64) bool {
	for id, key := range s.exchangeKeys {
		if id != exceptID && key.AccountName == accountName {
			return true
		}
	}
	return false
}

// ListExchangeKeys returns every key ordered by id
func (s *Store) ListExchangeKeys(ctx context.Context) ([]database.ExchangeAPIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]database.ExchangeAPIKey, 0, len(s.exchangeKeys))
	for _, key := range s.exchangeKeys {
		keys = append(keys, copyKey(key))
	}
	slices.SortFunc(keys, func(a, b database.ExchangeAPIKey) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return keys, nil
}

// GetExchangeKey returns nil, nil when the key does not exist
func (s *Store) GetExchangeKey(ctx context.Context, id int64) (*database.ExchangeAPIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key, ok := s.exchangeKeys[id]
	if !ok {
		return nil, nil
	}
	out := copyKey(key)
	return &out, nil
}

// CreateExchangeKey stores a key and assigns its id and timestamps
func (s *Store) CreateExchangeKey(ctx context.Context, key *database.ExchangeAPIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.accountTaken(key.AccountName, 0) {
		return database.ErrDuplicate
	}

	now := s.now().UTC()
	key.ID = s.nextKeyID
	key.CreatedAt = now
	key.LastUpdatedAt = now
	s.nextKeyID++

	s.exchangeKeys[key.ID] = copyKey(*key)
	return nil
}

// UpdateExchangeKey applies the non-nil fields of update
func (s *Store) UpdateExchangeKey(ctx context.Context, id int64, update database.ExchangeAPIKeyUpdate) (*database.ExchangeAPIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.exchangeKeys[id]
	if !ok {
		return nil, database.ErrNotFound
	}

	if update.Exchange != nil {
		key.Exchange = *update.Exchange
	}
	if update.ExchangeCategory != nil {
		key.ExchangeCategory = *update.ExchangeCategory
	}
	if update.AccountName != nil {
		if s.accountTaken(*update.AccountName, id) {
			return nil, database.ErrDuplicate
		}
		key.AccountName = *update.AccountName
	}
	if update.APIKey != nil {
		key.APIKey = *update.APIKey
	}
	if update.Status != nil {
		status := *update.Status
		key.Status = &status
	}
	key.LastUpdatedAt = s.now().UTC()

	s.exchangeKeys[id] = key
	out := copyKey(key)
	return &out, nil
}

// DeleteExchangeKey removes a key
func (s *Store) DeleteExchangeKey(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.exchangeKeys[id]; !ok {
		return database.ErrNotFound
	}
	delete(s.exchangeKeys, id)
	return nil
}
