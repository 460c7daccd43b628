package mockdata

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"pbgui-console/internal/auth"
	"pbgui-console/internal/database"
)

func seeded(t *testing.T) *Store {
	t.Helper()
	s, err := NewSeededStore(context.Background(), auth.NewPasswordManager(bcrypt.MinCost))
	require.NoError(t, err)
	return s
}

func TestSeededUsers(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	passwords := auth.NewPasswordManager(bcrypt.MinCost)

	for i, name := range []string{"vben", "admin", "jack"} {
		user, err := s.GetUserByUsername(ctx, name)
		require.NoError(t, err)
		require.NotNil(t, user, name)
		assert.Equal(t, int64(i), user.ID)
		assert.True(t, passwords.VerifyPassword("123456", user.PasswordHash))
	}

	missing, err := s.GetUserByUsername(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSeedingIsIdempotent(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	require.NoError(t, auth.SeedUsers(ctx, s, auth.NewPasswordManager(bcrypt.MinCost), DefaultUsers()))

	codes, err := s.GetAccessCodes(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, []string{"AC_100010", "AC_100020", "AC_100030"}, codes)
}

func TestAccessCodesSorted(t *testing.T) {
	s := seeded(t)
	codes, err := s.GetAccessCodes(context.Background(), "vben")
	require.NoError(t, err)
	assert.Equal(t, []string{"AC_100010", "AC_100100", "AC_100110", "AC_100120"}, codes)

	none, err := s.GetAccessCodes(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestUsersAreCopies(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	user, err := s.GetUserByUsername(ctx, "jack")
	require.NoError(t, err)
	user.Roles[0] = "super"
	user.RealName = "changed"

	again, err := s.GetUserByUsername(ctx, "jack")
	require.NoError(t, err)
	assert.Equal(t, []string{"user"}, again.Roles)
	assert.Equal(t, "Jack", again.RealName)
}

func TestCreateUserDuplicate(t *testing.T) {
	s := seeded(t)
	err := s.CreateUser(context.Background(), &database.User{Username: "vben"})
	assert.ErrorIs(t, err, database.ErrDuplicate)
}

func TestSettingsDefaults(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	cfg, err := s.GetCoinMarketConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.FetchLimit)
	assert.Equal(t, 24, cfg.FetchInterval)
	assert.Equal(t, 1, cfg.MetadataInterval)

	prefs, err := s.GetPreferences(ctx)
	require.NoError(t, err)
	assert.Equal(t, database.Preferences{}, *prefs)

	require.NoError(t, s.SavePreferences(ctx, &database.Preferences{PBv7Path: "/opt/pb7"}))
	prefs, err = s.GetPreferences(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/opt/pb7", prefs.PBv7Path)

	cfg.APIKey = "cmc"
	require.NoError(t, s.SaveCoinMarketConfig(ctx, cfg))
	cfg, err = s.GetCoinMarketConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, "cmc", cfg.APIKey)
}

func TestExchangeKeyCRUD(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	active := database.ExchangeKeyActive

	first := &database.ExchangeAPIKey{Exchange: "binance", AccountName: "main", APIKey: "k1", Status: &active}
	second := &database.ExchangeAPIKey{Exchange: "okx", AccountName: "hedge", APIKey: "k2", Status: &active}
	require.NoError(t, s.CreateExchangeKey(ctx, first))
	require.NoError(t, s.CreateExchangeKey(ctx, second))
	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(2), second.ID)
	assert.False(t, first.CreatedAt.IsZero())

	dup := &database.ExchangeAPIKey{Exchange: "bybit", AccountName: "main"}
	assert.ErrorIs(t, s.CreateExchangeKey(ctx, dup), database.ErrDuplicate)

	keys, err := s.ListExchangeKeys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, "main", keys[0].AccountName)
	assert.Equal(t, "hedge", keys[1].AccountName)

	inactive := database.ExchangeKeyInactive
	name := "primary"
	updated, err := s.UpdateExchangeKey(ctx, 1, database.ExchangeAPIKeyUpdate{AccountName: &name, Status: &inactive})
	require.NoError(t, err)
	assert.Equal(t, "primary", updated.AccountName)
	assert.Equal(t, database.ExchangeKeyInactive, *updated.Status)
	assert.Equal(t, "binance", updated.Exchange)

	taken := "hedge"
	_, err = s.UpdateExchangeKey(ctx, 1, database.ExchangeAPIKeyUpdate{AccountName: &taken})
	assert.ErrorIs(t, err, database.ErrDuplicate)

	_, err = s.UpdateExchangeKey(ctx, 99, database.ExchangeAPIKeyUpdate{AccountName: &name})
	assert.ErrorIs(t, err, database.ErrNotFound)

	require.NoError(t, s.DeleteExchangeKey(ctx, 1))
	assert.ErrorIs(t, s.DeleteExchangeKey(ctx, 1), database.ErrNotFound)

	gone, err := s.GetExchangeKey(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestExchangeKeysAreCopies(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	active := database.ExchangeKeyActive

	key := &database.ExchangeAPIKey{Exchange: "binance", AccountName: "main", Status: &active}
	require.NoError(t, s.CreateExchangeKey(ctx, key))

	got, err := s.GetExchangeKey(ctx, key.ID)
	require.NoError(t, err)
	*got.Status = database.ExchangeKeyInactive

	again, err := s.GetExchangeKey(ctx, key.ID)
	require.NoError(t, err)
	assert.Equal(t, database.ExchangeKeyActive, *again.Status)
}
