package vault

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"pbgui-console/config"

	"github.com/hashicorp/vault/api"
)

// ErrSecretNotFound is returned when no secret is stored for a key
var ErrSecretNotFound = errors.New("exchange secret not found")

// ExchangeSecret is the confidential part of an exchange API key
type ExchangeSecret struct {
	APISecret  string `json:"api_secret"`
	Passphrase string `json:"passphrase,omitempty"`
}

// Client wraps the HashiCorp Vault client. With Vault disabled secrets
// live in the in-memory cache only, which is enough for development.
type Client struct {
	client       *api.Client
	config       config.VaultConfig
	mu           sync.RWMutex
	cache        map[int64]ExchangeSecret // exchange key id -> secret
	cacheEnabled bool
}

// NewClient creates a new Vault client
func NewClient(cfg config.VaultConfig) (*Client, error) {
	if !cfg.Enabled {
		return &Client{
			config:       cfg,
			cache:        make(map[int64]ExchangeSecret),
			cacheEnabled: true,
		}, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	if cfg.TLSEnabled && cfg.CACert != "" {
		tlsConfig := &api.TLSConfig{
			CACert: cfg.CACert,
		}
		if err := vaultConfig.ConfigureTLS(tlsConfig); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	client.SetToken(cfg.Token)

	return &Client{
		client:       client,
		config:       cfg,
		cache:        make(map[int64]ExchangeSecret),
		cacheEnabled: true,
	}, nil
}

// StoreSecret writes the secret of an exchange key
func (c *Client) StoreSecret(ctx context.Context, keyID int64, secret ExchangeSecret) error {
	if !c.config.Enabled {
		// Store in local cache only (for development/testing)
		c.mu.Lock()
		c.cache[keyID] = secret
		c.mu.Unlock()
		return nil
	}

	secretData := map[string]interface{}{
		"data": map[string]interface{}{
			"api_secret": secret.APISecret,
			"passphrase": secret.Passphrase,
		},
	}

	_, err := c.client.Logical().WriteWithContext(ctx, c.secretPath(keyID), secretData)
	if err != nil {
		return fmt.Errorf("failed to store exchange secret in vault: %w", err)
	}

	// Update cache
	if c.cacheEnabled {
		c.mu.Lock()
		c.cache[keyID] = secret
		c.mu.Unlock()
	}

	return nil
}

// GetSecret reads the secret of an exchange key
func (c *Client) GetSecret(ctx context.Context, keyID int64) (*ExchangeSecret, error) {
	// Check cache first
	if c.cacheEnabled || !c.config.Enabled {
		c.mu.RLock()
		cached, ok := c.cache[keyID]
		c.mu.RUnlock()
		if ok {
			return &cached, nil
		}
	}

	if !c.config.Enabled {
		return nil, ErrSecretNotFound
	}

	secret, err := c.client.Logical().ReadWithContext(ctx, c.secretPath(keyID))
	if err != nil {
		return nil, fmt.Errorf("failed to read exchange secret from vault: %w", err)
	}

	if secret == nil || secret.Data == nil {
		return nil, ErrSecretNotFound
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid secret format")
	}

	result := ExchangeSecret{
		APISecret:  getString(data, "api_secret"),
		Passphrase: getString(data, "passphrase"),
	}

	// Update cache
	if c.cacheEnabled {
		c.mu.Lock()
		c.cache[keyID] = result
		c.mu.Unlock()
	}

	return &result, nil
}

// DeleteSecret removes every version of an exchange key's secret
func (c *Client) DeleteSecret(ctx context.Context, keyID int64) error {
	// Remove from cache
	c.mu.Lock()
	delete(c.cache, keyID)
	c.mu.Unlock()

	if !c.config.Enabled {
		return nil
	}

	_, err := c.client.Logical().DeleteWithContext(ctx, c.metadataPath(keyID))
	if err != nil {
		return fmt.Errorf("failed to delete exchange secret from vault: %w", err)
	}

	return nil
}

// ClearCache clears the in-memory cache. With Vault disabled this drops
// every stored secret.
func (c *Client) ClearCache() {
	c.mu.Lock()
	c.cache = make(map[int64]ExchangeSecret)
	c.mu.Unlock()
}

// SetCacheEnabled enables or disables caching of Vault reads
func (c *Client) SetCacheEnabled(enabled bool) {
	c.mu.Lock()
	c.cacheEnabled = enabled
	c.mu.Unlock()
}

// IsEnabled returns whether Vault is enabled
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// Health checks the Vault connection
func (c *Client) Health(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	health, err := c.client.Sys().HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}

	if health.Sealed {
		return fmt.Errorf("vault is sealed")
	}

	return nil
}

// secretPath returns the KV v2 data path of a key's secret
func (c *Client) secretPath(keyID int64) string {
	return fmt.Sprintf("%s/data/%s/%d", c.config.MountPath, c.config.SecretPath, keyID)
}

// metadataPath returns the KV v2 metadata path of a key's secret
func (c *Client) metadataPath(keyID int64) string {
	return fmt.Sprintf("%s/metadata/%s/%d", c.config.MountPath, c.config.SecretPath, keyID)
}

// Helper functions
func getString(data map[string]interface{}, key string) string {
	if val, ok := data[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// NewMockClient creates a client backed only by the in-memory cache
func NewMockClient() *Client {
	return &Client{
		config: config.VaultConfig{
			Enabled:    false,
			MountPath:  "secret",
			SecretPath: "pbgui/exchanges",
		},
		cache:        make(map[int64]ExchangeSecret),
		cacheEnabled: true,
	}
}
