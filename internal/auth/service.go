package auth

import (
	"context"
	"fmt"
	"time"

	"pbgui-console/internal/database"
	"pbgui-console/internal/logging"
)

// UserStore is the read side of the user repository the service needs.
// Both the postgres repository and the mock store implement it.
type UserStore interface {
	GetUserByUsername(ctx context.Context, username string) (*database.User, error)
	GetAccessCodes(ctx context.Context, username string) ([]string, error)
}

// Service handles authentication operations
type Service struct {
	users           UserStore
	jwtManager      *JWTManager
	passwordManager *PasswordManager
	revoked         RevocationList
	logger          *logging.Logger
}

// NewService creates a new authentication service. A nil revocation list
// falls back to an in-memory one.
func NewService(users UserStore, config Config, revoked RevocationList) (*Service, error) {
	if config.JWTSecret == "" {
		return nil, fmt.Errorf("JWT secret is required")
	}
	if config.AccessTokenDuration == 0 {
		config.AccessTokenDuration = DefaultConfig().AccessTokenDuration
	}
	if revoked == nil {
		revoked = NewMemoryRevocationList()
	}

	return &Service{
		users:           users,
		jwtManager:      NewJWTManager(config.JWTSecret, config.AccessTokenDuration),
		passwordManager: NewPasswordManager(config.BcryptCost),
		revoked:         revoked,
		logger:          logging.WithComponent("auth"),
	}, nil
}

// GetJWTManager returns the JWT manager for use in middleware
func (s *Service) GetJWTManager() *JWTManager {
	return s.jwtManager
}

// GetRevocationList returns the revocation list for use in middleware
func (s *Service) GetRevocationList() RevocationList {
	return s.revoked
}

// GetPasswordManager returns the password manager used for seeding users
func (s *Service) GetPasswordManager() *PasswordManager {
	return s.passwordManager
}

// Login checks the credentials and issues an access token
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	user, err := s.users.GetUserByUsername(ctx, req.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil || !s.passwordManager.VerifyPassword(req.Password, user.PasswordHash) {
		s.logger.For(ctx).Warn("Login rejected", "username", req.Username)
		return nil, ErrInvalidCredentials
	}

	token, err := s.jwtManager.GenerateAccessToken(UserClaims{
		UserID:   user.ID,
		Username: user.Username,
		Roles:    user.Roles,
	})
	if err != nil {
		return nil, err
	}

	s.logger.For(ctx).Info("User logged in", "username", user.Username, "roles", user.Roles)
	return &LoginResponse{AccessToken: token}, nil
}

// Logout revokes the session behind the given token claims
func (s *Service) Logout(ctx context.Context, claims *Claims) error {
	if claims == nil || claims.ID == "" {
		return nil
	}

	until := time.Now().Add(s.jwtManager.accessTokenDuration)
	if claims.ExpiresAt != nil {
		until = claims.ExpiresAt.Time
	}

	if err := s.revoked.Revoke(ctx, claims.ID, until); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	s.logger.For(ctx).Info("User logged out", "username", claims.Username)
	return nil
}

// AccessCodes returns the permission codes held by a user
func (s *Service) AccessCodes(ctx context.Context, username string) ([]string, error) {
	codes, err := s.users.GetAccessCodes(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to get access codes: %w", err)
	}
	if codes == nil {
		codes = []string{}
	}
	return codes, nil
}

// UserInfo returns the profile of a user
func (s *Service) UserInfo(ctx context.Context, username string) (*UserInfo, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	return &UserInfo{
		ID:       user.ID,
		RealName: user.RealName,
		Roles:    user.Roles,
		Username: user.Username,
		HomePath: user.HomePath,
	}, nil
}
