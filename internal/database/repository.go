package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned by updates and deletes that matched no row
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a write violates a unique constraint
	ErrDuplicate = errors.New("duplicate record")
)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Repository provides data access methods
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// HealthCheck performs a database health check
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}

// ============================================================================
// USERS
// ============================================================================

// GetUserByUsername returns nil, nil when the user does not exist
func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	query := `
		SELECT id, username, password_hash, real_name, roles, COALESCE(home_path, ''), created_at, updated_at
		FROM users WHERE username = $1
	`
	user := &User{}
	err := r.db.Pool.QueryRow(ctx, query, username).Scan(
		&user.ID, &user.Username, &user.PasswordHash, &user.RealName,
		&user.Roles, &user.HomePath, &user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}
	return user, nil
}

// CreateUser inserts a user and fills in its generated fields
func (r *Repository) CreateUser(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (username, password_hash, real_name, roles, home_path)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''))
		RETURNING id, created_at, updated_at
	`
	err := r.db.Pool.QueryRow(ctx, query,
		user.Username, user.PasswordHash, user.RealName, user.Roles, user.HomePath,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetAccessCodes lists the permission codes granted to a user
func (r *Repository) GetAccessCodes(ctx context.Context, username string) ([]string, error) {
	query := `
		SELECT c.code
		FROM user_access_codes c
		JOIN users u ON u.id = c.user_id
		WHERE u.username = $1
		ORDER BY c.code
	`
	rows, err := r.db.Pool.Query(ctx, query, username)
	if err != nil {
		return nil, fmt.Errorf("failed to query access codes: %w", err)
	}
	codes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to read access codes: %w", err)
	}
	return codes, nil
}

// GrantAccessCodes adds codes to a user, ignoring codes already held
func (r *Repository) GrantAccessCodes(ctx context.Context, userID int64, codes []string) error {
	batch := &pgx.Batch{}
	for _, code := range codes {
		batch.Queue(`INSERT INTO user_access_codes (user_id, code) VALUES ($1, $2) ON CONFLICT DO NOTHING`, userID, code)
	}
	if err := r.db.Pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to grant access codes: %w", err)
	}
	return nil
}

// ============================================================================
// MENU CATALOG
// ============================================================================

// ListMenuNodes returns every catalog row ordered for assembly: parents
// before children is not guaranteed, sibling order is sort_index then id.
func (r *Repository) ListMenuNodes(ctx context.Context) ([]MenuNodeRow, error) {
	query := `
		SELECT id, parent_id, role, kind, status, auth_code, name, path, component, redirect, meta, sort_index
		FROM menu_nodes
		ORDER BY sort_index, id
	`
	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query menu nodes: %w", err)
	}
	defer rows.Close()

	var nodes []MenuNodeRow
	for rows.Next() {
		var n MenuNodeRow
		if err := rows.Scan(
			&n.ID, &n.ParentID, &n.Role, &n.Kind, &n.Status, &n.AuthCode,
			&n.Name, &n.Path, &n.Component, &n.Redirect, &n.Meta, &n.SortIndex,
		); err != nil {
			return nil, fmt.Errorf("failed to scan menu node: %w", err)
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// ============================================================================
// SETTINGS
// ============================================================================

// GetPreferences returns empty preferences until they are saved once
func (r *Repository) GetPreferences(ctx context.Context) (*Preferences, error) {
	query := `
		SELECT pbv6_path, pbv6_interpreter_path, pbv7_path, pbv7_interpreter_path
		FROM preferences WHERE id = 1
	`
	prefs := &Preferences{}
	err := r.db.Pool.QueryRow(ctx, query).Scan(
		&prefs.PBv6Path, &prefs.PBv6InterpreterPath, &prefs.PBv7Path, &prefs.PBv7InterpreterPath,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return &Preferences{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}
	return prefs, nil
}

// SavePreferences upserts the preferences row
func (r *Repository) SavePreferences(ctx context.Context, prefs *Preferences) error {
	query := `
		INSERT INTO preferences (id, pbv6_path, pbv6_interpreter_path, pbv7_path, pbv7_interpreter_path, updated_at)
		VALUES (1, $1, $2, $3, $4, NOW())
		ON CONFLICT (id) DO UPDATE SET
			pbv6_path = EXCLUDED.pbv6_path,
			pbv6_interpreter_path = EXCLUDED.pbv6_interpreter_path,
			pbv7_path = EXCLUDED.pbv7_path,
			pbv7_interpreter_path = EXCLUDED.pbv7_interpreter_path,
			updated_at = NOW()
	`
	_, err := r.db.Pool.Exec(ctx, query,
		prefs.PBv6Path, prefs.PBv6InterpreterPath, prefs.PBv7Path, prefs.PBv7InterpreterPath,
	)
	if err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}

// GetCoinMarketConfig returns the defaults until the settings are saved once
func (r *Repository) GetCoinMarketConfig(ctx context.Context) (*CoinMarketConfig, error) {
	query := `
		SELECT api_key, fetch_limit, fetch_interval, metadata_interval
		FROM coinmarket_config WHERE id = 1
	`
	cfg := &CoinMarketConfig{}
	err := r.db.Pool.QueryRow(ctx, query).Scan(
		&cfg.APIKey, &cfg.FetchLimit, &cfg.FetchInterval, &cfg.MetadataInterval,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		defaults := DefaultCoinMarketConfig()
		return &defaults, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get coinmarket config: %w", err)
	}
	return cfg, nil
}

// SaveCoinMarketConfig upserts the coinmarket settings row
func (r *Repository) SaveCoinMarketConfig(ctx context.Context, cfg *CoinMarketConfig) error {
	query := `
		INSERT INTO coinmarket_config (id, api_key, fetch_limit, fetch_interval, metadata_interval, updated_at)
		VALUES (1, $1, $2, $3, $4, NOW())
		ON CONFLICT (id) DO UPDATE SET
			api_key = EXCLUDED.api_key,
			fetch_limit = EXCLUDED.fetch_limit,
			fetch_interval = EXCLUDED.fetch_interval,
			metadata_interval = EXCLUDED.metadata_interval,
			updated_at = NOW()
	`
	_, err := r.db.Pool.Exec(ctx, query, cfg.APIKey, cfg.FetchLimit, cfg.FetchInterval, cfg.MetadataInterval)
	if err != nil {
		return fmt.Errorf("failed to save coinmarket config: %w", err)
	}
	return nil
}

// ============================================================================
// EXCHANGE API KEYS
// ============================================================================

const exchangeKeyColumns = `id, exchange, exchange_category, account_name, api_key, status, created_at, last_updated_at`

func scanExchangeKey(row pgx.Row) (*ExchangeAPIKey, error) {
	key := &ExchangeAPIKey{}
	var status *string
	err := row.Scan(
		&key.ID, &key.Exchange, &key.ExchangeCategory, &key.AccountName, &key.APIKey,
		&status, &key.CreatedAt, &key.LastUpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if status != nil {
		s := ExchangeKeyStatus(*status)
		key.Status = &s
	}
	return key, nil
}

// ListExchangeKeys returns every stored exchange key ordered by id
func (r *Repository) ListExchangeKeys(ctx context.Context) ([]ExchangeAPIKey, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT `+exchangeKeyColumns+` FROM exchange_api_keys ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query exchange keys: %w", err)
	}
	defer rows.Close()

	var keys []ExchangeAPIKey
	for rows.Next() {
		key, err := scanExchangeKey(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan exchange key: %w", err)
		}
		keys = append(keys, *key)
	}
	return keys, rows.Err()
}

// GetExchangeKey returns nil, nil when the key does not exist
func (r *Repository) GetExchangeKey(ctx context.Context, id int64) (*ExchangeAPIKey, error) {
	key, err := scanExchangeKey(r.db.Pool.QueryRow(ctx,
		`SELECT `+exchangeKeyColumns+` FROM exchange_api_keys WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get exchange key: %w", err)
	}
	return key, nil
}

// CreateExchangeKey inserts a key and fills in its generated fields
func (r *Repository) CreateExchangeKey(ctx context.Context, key *ExchangeAPIKey) error {
	query := `
		INSERT INTO exchange_api_keys (exchange, exchange_category, account_name, api_key, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, last_updated_at
	`
	var status *string
	if key.Status != nil {
		s := string(*key.Status)
		status = &s
	}
	err := r.db.Pool.QueryRow(ctx, query,
		key.Exchange, key.ExchangeCategory, key.AccountName, key.APIKey, status,
	).Scan(&key.ID, &key.CreatedAt, &key.LastUpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to create exchange key: %w", err)
	}
	return nil
}

// UpdateExchangeKey applies the non-nil fields of update
func (r *Repository) UpdateExchangeKey(ctx context.Context, id int64, update ExchangeAPIKeyUpdate) (*ExchangeAPIKey, error) {
	var status *string
	if update.Status != nil {
		s := string(*update.Status)
		status = &s
	}
	query := `
		UPDATE exchange_api_keys SET
			exchange = COALESCE($2, exchange),
			exchange_category = COALESCE($3, exchange_category),
			account_name = COALESCE($4, account_name),
			api_key = COALESCE($5, api_key),
			status = COALESCE($6, status),
			last_updated_at = $7
		WHERE id = $1
		RETURNING ` + exchangeKeyColumns
	key, err := scanExchangeKey(r.db.Pool.QueryRow(ctx, query,
		id, update.Exchange, update.ExchangeCategory, update.AccountName, update.APIKey, status, time.Now().UTC(),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update exchange key: %w", err)
	}
	return key, nil
}

// DeleteExchangeKey removes a key
func (r *Repository) DeleteExchangeKey(ctx context.Context, id int64) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM exchange_api_keys WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete exchange key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
