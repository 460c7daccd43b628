package auth

import (
	"context"
	"fmt"

	"pbgui-console/internal/database"
	"pbgui-console/internal/logging"
)

// SeedUser describes a console account created at startup
type SeedUser struct {
	Username string
	Password string
	RealName string
	Roles    []string
	HomePath string
	Codes    []string
}

// SeedRepository is the write side of the user repository used by SeedUsers
type SeedRepository interface {
	GetUserByUsername(ctx context.Context, username string) (*database.User, error)
	CreateUser(ctx context.Context, user *database.User) error
	GrantAccessCodes(ctx context.Context, userID int64, codes []string) error
}

// SeedUsers ensures every listed user exists. Existing users keep their
// password; missing access codes are granted either way.
func SeedUsers(ctx context.Context, repo SeedRepository, passwords *PasswordManager, users []SeedUser) error {
	logger := logging.WithComponent("auth-seeder")

	for _, seed := range users {
		user, err := repo.GetUserByUsername(ctx, seed.Username)
		if err != nil {
			return fmt.Errorf("failed to check for user %s: %w", seed.Username, err)
		}

		if user == nil {
			logger.Info("Seed user not found, creating", "username", seed.Username)

			hash, err := passwords.HashPassword(seed.Password)
			if err != nil {
				return fmt.Errorf("failed to hash password for %s: %w", seed.Username, err)
			}

			user = &database.User{
				Username:     seed.Username,
				PasswordHash: hash,
				RealName:     seed.RealName,
				Roles:        seed.Roles,
				HomePath:     seed.HomePath,
			}
			if err := repo.CreateUser(ctx, user); err != nil {
				return fmt.Errorf("failed to create user %s: %w", seed.Username, err)
			}
		}

		if len(seed.Codes) > 0 {
			if err := repo.GrantAccessCodes(ctx, user.ID, seed.Codes); err != nil {
				return fmt.Errorf("failed to grant codes to %s: %w", seed.Username, err)
			}
		}
	}

	logger.Info("Seed users ensured", "count", len(users))
	return nil
}
