package apikeys

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"pbgui-console/internal/database"
	"pbgui-console/internal/logging"
	"pbgui-console/internal/vault"
)

// maskedValue replaces secrets in every response
const maskedValue = "********"

// SupportedExchanges lists the exchanges passivbot can trade on
var SupportedExchanges = []string{"binance", "bybit", "bitget", "gateio", "hyperliquid", "kucoin", "okx"}

// passphraseExchanges require a passphrase next to key and secret
var passphraseExchanges = []string{"bitget", "kucoin", "okx"}

// Common service errors
var (
	ErrNotFound            = errors.New("exchange key not found")
	ErrUnsupportedExchange = errors.New("unsupported exchange")
	ErrMissingField        = errors.New("missing required field")
	ErrInvalidStatus       = errors.New("invalid status")
	ErrDuplicateAccount    = errors.New("account name already in use")
)

// Repository is the persistence side of exchange keys. The postgres
// repository and the mock store both implement it.
type Repository interface {
	ListExchangeKeys(ctx context.Context) ([]database.ExchangeAPIKey, error)
	GetExchangeKey(ctx context.Context, id int64) (*database.ExchangeAPIKey, error)
	CreateExchangeKey(ctx context.Context, key *database.ExchangeAPIKey) error
	UpdateExchangeKey(ctx context.Context, id int64, update database.ExchangeAPIKeyUpdate) (*database.ExchangeAPIKey, error)
	DeleteExchangeKey(ctx context.Context, id int64) error
}

// SecretStore keeps the confidential half of each key
type SecretStore interface {
	StoreSecret(ctx context.Context, keyID int64, secret vault.ExchangeSecret) error
	GetSecret(ctx context.Context, keyID int64) (*vault.ExchangeSecret, error)
	DeleteSecret(ctx context.Context, keyID int64) error
}

// ExchangeKey is an exchange key as returned to the console
type ExchangeKey struct {
	database.ExchangeAPIKey
	APISecret  string `json:"apiSecret"`
	Passphrase string `json:"passphrase,omitempty"`
}

// CreateRequest is the body of a create call
type CreateRequest struct {
	Exchange         string `json:"exchange"`
	ExchangeCategory string `json:"exchangeCategory"`
	AccountName      string `json:"accountName"`
	APIKey           string `json:"apiKey"`
	APISecret        string `json:"apiSecret"`
	Passphrase       string `json:"passphrase"`
}

// UpdateRequest is the body of a partial update
type UpdateRequest struct {
	Exchange         *string `json:"exchange"`
	ExchangeCategory *string `json:"exchangeCategory"`
	AccountName      *string `json:"accountName"`
	APIKey           *string `json:"apiKey"`
	APISecret        *string `json:"apiSecret"`
	Passphrase       *string `json:"passphrase"`
	Status           *string `json:"status"`
}

// Service manages exchange API keys. Metadata goes to the repository and
// secrets to the secret store; secrets never leave the service unmasked.
type Service struct {
	repo    Repository
	secrets SecretStore
	logger  *logging.Logger
}

// NewService creates a new exchange key service
func NewService(repo Repository, secrets SecretStore) *Service {
	return &Service{
		repo:    repo,
		secrets: secrets,
		logger:  logging.WithComponent("apikeys"),
	}
}

// List returns every key with secrets masked
func (s *Service) List(ctx context.Context) ([]ExchangeKey, error) {
	keys, err := s.repo.ListExchangeKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list exchange keys: %w", err)
	}

	result := make([]ExchangeKey, 0, len(keys))
	for _, key := range keys {
		result = append(result, s.masked(ctx, key))
	}
	return result, nil
}

// Get returns one key with secrets masked
func (s *Service) Get(ctx context.Context, id int64) (*ExchangeKey, error) {
	key, err := s.repo.GetExchangeKey(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get exchange key: %w", err)
	}
	if key == nil {
		return nil, ErrNotFound
	}
	masked := s.masked(ctx, *key)
	return &masked, nil
}

// Create stores a new key. If the secret cannot be stored the metadata row
// is removed again.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*ExchangeKey, error) {
	exchange, err := normalizeExchange(req.Exchange)
	if err != nil {
		return nil, err
	}
	switch {
	case strings.TrimSpace(req.AccountName) == "":
		return nil, fmt.Errorf("%w: accountName", ErrMissingField)
	case strings.TrimSpace(req.APIKey) == "":
		return nil, fmt.Errorf("%w: apiKey", ErrMissingField)
	case req.APISecret == "":
		return nil, fmt.Errorf("%w: apiSecret", ErrMissingField)
	case needsPassphrase(exchange) && req.Passphrase == "":
		return nil, fmt.Errorf("%w: passphrase is required for %s", ErrMissingField, exchange)
	}

	status := database.ExchangeKeyActive
	key := &database.ExchangeAPIKey{
		Exchange:         exchange,
		ExchangeCategory: req.ExchangeCategory,
		AccountName:      strings.TrimSpace(req.AccountName),
		APIKey:           strings.TrimSpace(req.APIKey),
		Status:           &status,
	}
	err = s.repo.CreateExchangeKey(ctx, key)
	if errors.Is(err, database.ErrDuplicate) {
		return nil, ErrDuplicateAccount
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create exchange key: %w", err)
	}

	secret := vault.ExchangeSecret{APISecret: req.APISecret, Passphrase: req.Passphrase}
	if err := s.secrets.StoreSecret(ctx, key.ID, secret); err != nil {
		if delErr := s.repo.DeleteExchangeKey(ctx, key.ID); delErr != nil {
			s.logger.For(ctx).WithError(delErr).Error("Failed to roll back exchange key", "id", key.ID)
		}
		return nil, fmt.Errorf("failed to store exchange secret: %w", err)
	}

	s.logger.For(ctx).Info("Exchange key created", "id", key.ID, "exchange", exchange, "account", key.AccountName)
	return &ExchangeKey{ExchangeAPIKey: *key, APISecret: maskedValue, Passphrase: maskIfSet(req.Passphrase)}, nil
}

// Update applies a partial update. Secret fields are merged with the
// stored secret; a masked value sent back by the console leaves the
// stored secret unchanged.
func (s *Service) Update(ctx context.Context, id int64, req UpdateRequest) (*ExchangeKey, error) {
	update := database.ExchangeAPIKeyUpdate{
		ExchangeCategory: req.ExchangeCategory,
		AccountName:      req.AccountName,
		APIKey:           req.APIKey,
	}
	if req.Exchange != nil {
		exchange, err := normalizeExchange(*req.Exchange)
		if err != nil {
			return nil, err
		}
		update.Exchange = &exchange
	}
	if req.Status != nil {
		status := database.ExchangeKeyStatus(*req.Status)
		if status != database.ExchangeKeyActive && status != database.ExchangeKeyInactive {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, *req.Status)
		}
		update.Status = &status
	}

	key, err := s.repo.UpdateExchangeKey(ctx, id, update)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrNotFound
	}
	if errors.Is(err, database.ErrDuplicate) {
		return nil, ErrDuplicateAccount
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update exchange key: %w", err)
	}

	if changed(req.APISecret) || changed(req.Passphrase) {
		secret, err := s.secrets.GetSecret(ctx, id)
		if err != nil && !errors.Is(err, vault.ErrSecretNotFound) {
			return nil, fmt.Errorf("failed to read exchange secret: %w", err)
		}
		if secret == nil {
			secret = &vault.ExchangeSecret{}
		}
		if changed(req.APISecret) {
			secret.APISecret = *req.APISecret
		}
		if changed(req.Passphrase) {
			secret.Passphrase = *req.Passphrase
		}
		if err := s.secrets.StoreSecret(ctx, id, *secret); err != nil {
			return nil, fmt.Errorf("failed to store exchange secret: %w", err)
		}
	}

	s.logger.For(ctx).Info("Exchange key updated", "id", id)
	masked := s.masked(ctx, *key)
	return &masked, nil
}

// Delete removes a key and its secret
func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.repo.DeleteExchangeKey(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete exchange key: %w", err)
	}

	if err := s.secrets.DeleteSecret(ctx, id); err != nil {
		// The row is gone; an orphaned secret is unreachable and only logged
		s.logger.For(ctx).WithError(err).Warn("Failed to delete exchange secret", "id", id)
	}

	s.logger.For(ctx).Info("Exchange key deleted", "id", id)
	return nil
}

func (s *Service) masked(ctx context.Context, key database.ExchangeAPIKey) ExchangeKey {
	out := ExchangeKey{ExchangeAPIKey: key, APISecret: maskedValue}
	secret, err := s.secrets.GetSecret(ctx, key.ID)
	switch {
	case err == nil:
		out.APISecret = maskIfSet(secret.APISecret)
		out.Passphrase = maskIfSet(secret.Passphrase)
	case !errors.Is(err, vault.ErrSecretNotFound):
		s.logger.For(ctx).WithError(err).Warn("Failed to read exchange secret", "id", key.ID)
	}
	return out
}

func normalizeExchange(exchange string) (string, error) {
	exchange = strings.ToLower(strings.TrimSpace(exchange))
	if exchange == "" {
		return "", fmt.Errorf("%w: exchange", ErrMissingField)
	}
	if !slices.Contains(SupportedExchanges, exchange) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedExchange, exchange)
	}
	return exchange, nil
}

func needsPassphrase(exchange string) bool {
	return slices.Contains(passphraseExchanges, exchange)
}

func maskIfSet(value string) string {
	if value == "" {
		return ""
	}
	return maskedValue
}

func changed(value *string) bool {
	return value != nil && *value != maskedValue
}
