package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool   *pgxpool.Pool
	logger zerolog.Logger
}

// Config holds database configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// DSN renders the libpq connection string
func (c Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// NewDB creates a new database connection
func NewDB(ctx context.Context, cfg Config, logger zerolog.Logger) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	// Configure connection pool
	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	logger = logger.With().Str("component", "database").Logger()
	logger.Info().Str("database", cfg.Database).Msg("Connected to PostgreSQL")

	return &DB{Pool: pool, logger: logger}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		db.logger.Info().Msg("Database connection closed")
	}
}

// HealthCheck pings the pool
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// RunMigrations executes database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	db.logger.Info().Msg("Running database migrations")

	migrations := []string{
		// Console users and their roles
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			username VARCHAR(64) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			real_name VARCHAR(128) NOT NULL DEFAULT '',
			roles TEXT[] NOT NULL DEFAULT '{}',
			home_path VARCHAR(255),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		// Fine-grained permission codes granted per user
		`CREATE TABLE IF NOT EXISTS user_access_codes (
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			code VARCHAR(128) NOT NULL,
			PRIMARY KEY (user_id, code)
		)`,

		// Navigation catalog, maintained by the configuration backend.
		// role NULL marks the base forest.
		`CREATE TABLE IF NOT EXISTS menu_nodes (
			id BIGINT PRIMARY KEY,
			parent_id BIGINT REFERENCES menu_nodes(id) ON DELETE CASCADE,
			role VARCHAR(64),
			kind VARCHAR(16) NOT NULL,
			status SMALLINT NOT NULL DEFAULT 1,
			auth_code VARCHAR(128),
			name VARCHAR(128) NOT NULL DEFAULT '',
			path VARCHAR(255) NOT NULL DEFAULT '',
			component VARCHAR(255) NOT NULL DEFAULT '',
			redirect VARCHAR(255) NOT NULL DEFAULT '',
			meta JSONB NOT NULL DEFAULT '{}',
			sort_index INTEGER NOT NULL DEFAULT 0,
			CHECK (kind IN ('catalog', 'menu', 'button', 'embedded', 'link')),
			CHECK (status IN (0, 1))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_menu_nodes_parent ON menu_nodes(parent_id)`,
		`CREATE INDEX IF NOT EXISTS idx_menu_nodes_role ON menu_nodes(role)`,

		// Single-row settings tables
		`CREATE TABLE IF NOT EXISTS preferences (
			id SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
			pbv6_path TEXT NOT NULL DEFAULT '',
			pbv6_interpreter_path TEXT NOT NULL DEFAULT '',
			pbv7_path TEXT NOT NULL DEFAULT '',
			pbv7_interpreter_path TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS coinmarket_config (
			id SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
			api_key TEXT NOT NULL DEFAULT '',
			fetch_limit INTEGER NOT NULL DEFAULT 5000,
			fetch_interval INTEGER NOT NULL DEFAULT 24,
			metadata_interval INTEGER NOT NULL DEFAULT 1,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		// Exchange API key metadata. Secrets live in Vault.
		`CREATE TABLE IF NOT EXISTS exchange_api_keys (
			id BIGSERIAL PRIMARY KEY,
			exchange VARCHAR(32) NOT NULL,
			exchange_category VARCHAR(32) NOT NULL DEFAULT '',
			account_name VARCHAR(128) NOT NULL UNIQUE,
			api_key TEXT NOT NULL,
			status VARCHAR(16),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			last_updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_exchange_api_keys_exchange ON exchange_api_keys(exchange)`,
	}

	for _, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	db.logger.Info().Int("statements", len(migrations)).Msg("Database migrations completed")
	return nil
}
