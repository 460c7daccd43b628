package database

import (
	"encoding/json"
	"time"
)

// User represents a console user
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // Never serialize
	RealName     string    `json:"realName"`
	Roles        []string  `json:"roles"`
	HomePath     string    `json:"homePath,omitempty"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
}

// MenuNodeRow is one row of the menu_nodes table
type MenuNodeRow struct {
	ID        int64
	ParentID  *int64
	Role      *string // nil for base forest roots and for every descendant
	Kind      string
	Status    int
	AuthCode  *string
	Name      string
	Path      string
	Component string
	Redirect  string
	Meta      json.RawMessage
	SortIndex int
}

// Preferences holds the local paths of the passivbot installations
type Preferences struct {
	PBv6Path            string `json:"pbv6_path"`
	PBv6InterpreterPath string `json:"pbv6_interpreter_path"`
	PBv7Path            string `json:"pbv7_path"`
	PBv7InterpreterPath string `json:"pbv7_interpreter_path"`
}

// CoinMarketConfig holds the CoinMarketCap fetcher settings
type CoinMarketConfig struct {
	APIKey           string `json:"coin_market_cap_api_key"`
	FetchLimit       int    `json:"fetch_limit"`
	FetchInterval    int    `json:"fetch_interval"`
	MetadataInterval int    `json:"metadata_interval"`
}

// DefaultCoinMarketConfig is used until the settings are saved once
func DefaultCoinMarketConfig() CoinMarketConfig {
	return CoinMarketConfig{FetchLimit: 5000, FetchInterval: 24, MetadataInterval: 1}
}

// ExchangeKeyStatus is the activation state of an exchange key
type ExchangeKeyStatus string

const (
	ExchangeKeyActive   ExchangeKeyStatus = "active"
	ExchangeKeyInactive ExchangeKeyStatus = "inactive"
)

// ExchangeAPIKey is the stored metadata of an exchange credential. The
// secret and passphrase are kept in Vault and never stored here.
type ExchangeAPIKey struct {
	ID               int64              `json:"id"`
	Exchange         string             `json:"exchange"`
	ExchangeCategory string             `json:"exchangeCategory"`
	AccountName      string             `json:"accountName"`
	APIKey           string             `json:"apiKey"`
	Status           *ExchangeKeyStatus `json:"status"`
	CreatedAt        time.Time          `json:"createdAt"`
	LastUpdatedAt    time.Time          `json:"lastUpdatedAt"`
}

// ExchangeAPIKeyUpdate carries the fields of a partial update
type ExchangeAPIKeyUpdate struct {
	Exchange         *string
	ExchangeCategory *string
	AccountName      *string
	APIKey           *string
	Status           *ExchangeKeyStatus
}
