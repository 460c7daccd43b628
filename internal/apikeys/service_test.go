package apikeys

import (
	"context"
	"errors"
	"testing"

	"pbgui-console/internal/database"
	"pbgui-console/internal/mockdata"
	"pbgui-console/internal/vault"
)

type failingSecrets struct {
	*vault.Client
}

func (f failingSecrets) StoreSecret(ctx context.Context, keyID int64, secret vault.ExchangeSecret) error {
	return errors.New("vault sealed")
}

func newTestService() (*Service, *mockdata.Store, *vault.Client) {
	store := mockdata.NewStore()
	secrets := vault.NewMockClient()
	return NewService(store, secrets), store, secrets
}

func TestCreateMasksSecrets(t *testing.T) {
	svc, _, secrets := newTestService()
	ctx := context.Background()

	key, err := svc.Create(ctx, CreateRequest{
		Exchange:    " Binance ",
		AccountName: "main",
		APIKey:      "key-1",
		APISecret:   "secret-1",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if key.Exchange != "binance" {
		t.Errorf("Expected normalized exchange binance, got %s", key.Exchange)
	}
	if key.APISecret != maskedValue {
		t.Errorf("Expected masked secret, got %s", key.APISecret)
	}
	if key.Passphrase != "" {
		t.Errorf("Expected empty passphrase, got %s", key.Passphrase)
	}
	if key.Status == nil || *key.Status != database.ExchangeKeyActive {
		t.Errorf("Expected active status, got %v", key.Status)
	}

	stored, err := secrets.GetSecret(ctx, key.ID)
	if err != nil {
		t.Fatalf("GetSecret failed: %v", err)
	}
	if stored.APISecret != "secret-1" {
		t.Errorf("Expected secret-1 in the secret store, got %s", stored.APISecret)
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	tests := []struct {
		name string
		req  CreateRequest
		want error
	}{
		{"unsupported", CreateRequest{Exchange: "mtgox", AccountName: "a", APIKey: "k", APISecret: "s"}, ErrUnsupportedExchange},
		{"no exchange", CreateRequest{AccountName: "a", APIKey: "k", APISecret: "s"}, ErrMissingField},
		{"no account", CreateRequest{Exchange: "bybit", APIKey: "k", APISecret: "s"}, ErrMissingField},
		{"no key", CreateRequest{Exchange: "bybit", AccountName: "a", APISecret: "s"}, ErrMissingField},
		{"no secret", CreateRequest{Exchange: "bybit", AccountName: "a", APIKey: "k"}, ErrMissingField},
		{"okx passphrase", CreateRequest{Exchange: "okx", AccountName: "a", APIKey: "k", APISecret: "s"}, ErrMissingField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, tt.req); !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestCreateDuplicateAccount(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	req := CreateRequest{Exchange: "bybit", AccountName: "main", APIKey: "k", APISecret: "s"}
	if _, err := svc.Create(ctx, req); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := svc.Create(ctx, req); !errors.Is(err, ErrDuplicateAccount) {
		t.Errorf("Expected ErrDuplicateAccount, got %v", err)
	}
}

func TestCreateRollsBackOnSecretFailure(t *testing.T) {
	store := mockdata.NewStore()
	svc := NewService(store, failingSecrets{vault.NewMockClient()})
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateRequest{Exchange: "bybit", AccountName: "main", APIKey: "k", APISecret: "s"})
	if err == nil {
		t.Fatal("Expected error when the secret cannot be stored")
	}

	keys, _ := store.ListExchangeKeys(ctx)
	if len(keys) != 0 {
		t.Errorf("Expected the row to be rolled back, found %d keys", len(keys))
	}
}

func TestUpdateKeepsMaskedSecret(t *testing.T) {
	svc, _, secrets := newTestService()
	ctx := context.Background()

	key, err := svc.Create(ctx, CreateRequest{
		Exchange: "okx", AccountName: "main", APIKey: "k", APISecret: "s1", Passphrase: "p1",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	masked := maskedValue
	newPass := "p2"
	status := "inactive"
	updated, err := svc.Update(ctx, key.ID, UpdateRequest{APISecret: &masked, Passphrase: &newPass, Status: &status})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if *updated.Status != database.ExchangeKeyInactive {
		t.Errorf("Expected inactive, got %s", *updated.Status)
	}
	if updated.Passphrase != maskedValue {
		t.Errorf("Expected masked passphrase, got %s", updated.Passphrase)
	}

	stored, _ := secrets.GetSecret(ctx, key.ID)
	if stored.APISecret != "s1" {
		t.Errorf("Expected secret to stay s1, got %s", stored.APISecret)
	}
	if stored.Passphrase != "p2" {
		t.Errorf("Expected passphrase p2, got %s", stored.Passphrase)
	}
}

func TestUpdateErrors(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	name := "x"
	if _, err := svc.Update(ctx, 42, UpdateRequest{AccountName: &name}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	bad := "paused"
	if _, err := svc.Update(ctx, 42, UpdateRequest{Status: &bad}); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("Expected ErrInvalidStatus, got %v", err)
	}

	exchange := "ftx"
	if _, err := svc.Update(ctx, 42, UpdateRequest{Exchange: &exchange}); !errors.Is(err, ErrUnsupportedExchange) {
		t.Errorf("Expected ErrUnsupportedExchange, got %v", err)
	}
}

func TestDeleteRemovesSecret(t *testing.T) {
	svc, _, secrets := newTestService()
	ctx := context.Background()

	key, err := svc.Create(ctx, CreateRequest{Exchange: "bybit", AccountName: "main", APIKey: "k", APISecret: "s"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := svc.Delete(ctx, key.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := secrets.GetSecret(ctx, key.ID); !errors.Is(err, vault.ErrSecretNotFound) {
		t.Errorf("Expected secret to be deleted, got %v", err)
	}
	if _, err := svc.Get(ctx, key.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if err := svc.Delete(ctx, key.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}
}
