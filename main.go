package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pbgui-console/config"
	"pbgui-console/internal/api"
	"pbgui-console/internal/apikeys"
	"pbgui-console/internal/auth"
	"pbgui-console/internal/cache"
	"pbgui-console/internal/catalog"
	"pbgui-console/internal/database"
	"pbgui-console/internal/events"
	"pbgui-console/internal/logging"
	"pbgui-console/internal/mockdata"
	"pbgui-console/internal/vault"
)

// devJWTSecret signs tokens of the mock backend when no secret is configured
const devJWTSecret = "pbgui-console-dev-secret"

// backend is everything the HTTP layer reads and writes. It is served by
// postgres or by the in-memory mock store.
type backend interface {
	auth.UserStore
	auth.SeedRepository
	api.SettingsStore
	apikeys.Repository
}

func main() {
	sampleConfig := flag.String("sample-config", "", "write a config file with the defaults to this path and exit")
	flag.Parse()

	if *sampleConfig != "" {
		if err := config.GenerateSampleConfig(*sampleConfig); err != nil {
			log.Fatalf("Failed to write sample config: %v", err)
		}
		fmt.Printf("Sample config written to %s\n", *sampleConfig)
		return
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logger := logging.New(&logging.Config{
		Level:       cfg.LoggingConfig.Level,
		Output:      cfg.LoggingConfig.Output,
		JSONFormat:  cfg.LoggingConfig.JSONFormat,
		IncludeFile: cfg.LoggingConfig.IncludeFile,
		Component:   "main",
	})
	logging.SetDefault(logger)
	logger.Info("Structured logging initialized")

	ctx := context.Background()

	// Initialize database
	var db *database.DB
	var repo *database.Repository
	if cfg.DatabaseConfig.Enabled {
		db, err = database.NewDB(ctx, database.Config{
			Host:     cfg.DatabaseConfig.Host,
			Port:     cfg.DatabaseConfig.Port,
			User:     cfg.DatabaseConfig.User,
			Password: cfg.DatabaseConfig.Password,
			Database: cfg.DatabaseConfig.Database,
			SSLMode:  cfg.DatabaseConfig.SSLMode,
		}, logger.Zerolog())
		if err != nil {
			logger.Fatal("Failed to connect to database", "error", err)
		}
		defer db.Close()

		if err := db.RunMigrations(ctx); err != nil {
			logger.Fatal("Failed to run migrations", "error", err)
		}
		repo = database.NewRepository(db)
	}

	passwords := auth.NewPasswordManager(cfg.AuthConfig.BcryptCost)

	var store backend
	if cfg.MockConfig.Enabled {
		mock, err := mockdata.NewSeededStore(ctx, passwords)
		if err != nil {
			logger.Fatal("Failed to seed mock backend", "error", err)
		}
		store = mock
		logger.Warn("Using the in-memory mock backend; nothing is persisted")
	} else {
		store = repo
		if cfg.AuthConfig.SeedUsers {
			if err := auth.SeedUsers(ctx, repo, passwords, mockdata.DefaultUsers()); err != nil {
				logger.Fatal("Failed to seed users", "error", err)
			}
			logger.Info("Default users seeded")
		}
	}

	// Exchange secrets
	vaultClient, err := vault.NewClient(cfg.VaultConfig)
	if err != nil {
		logger.Fatal("Failed to create vault client", "error", err)
	}
	if !vaultClient.IsEnabled() {
		logger.Warn("Vault disabled; exchange secrets are kept in memory only")
	}

	// Navigation catalog
	source, err := catalogSource(cfg.MenuConfig, repo)
	if err != nil {
		logger.Fatal("Failed to configure menu catalog", "error", err)
	}
	registry, err := catalog.NewRegistry(ctx, source, logging.WithComponent("catalog").Zerolog())
	if err != nil {
		logger.Fatal("Failed to load menu catalog", "source", source.Name(), "error", err)
	}

	// Redis is optional; without it menus are composed on every request
	var cacheService *cache.CacheService
	var menuStore cache.Store
	var revoked auth.RevocationList
	if cfg.RedisConfig.Enabled {
		cacheService, err = cache.NewCacheService(cfg.RedisConfig)
		if err != nil {
			logger.Fatal("Failed to create cache service", "error", err)
		}
		defer cacheService.Close()
		menuStore = cacheService
		revoked = cache.NewRevocationList(cacheService)
	}
	menus := cache.NewMenuCache(registry, menuStore, cfg.MenuConfig.CacheTTL)

	// Authentication
	authConfig := auth.Config{
		JWTSecret:           cfg.AuthConfig.JWTSecret,
		AccessTokenDuration: cfg.AuthConfig.AccessTokenDuration,
		BcryptCost:          cfg.AuthConfig.BcryptCost,
	}
	if authConfig.JWTSecret == "" && cfg.MockConfig.Enabled {
		authConfig.JWTSecret = devJWTSecret
		logger.Warn("AUTH_JWT_SECRET not set; using the development secret")
	}
	authService, err := auth.NewService(store, authConfig, revoked)
	if err != nil {
		logger.Fatal("Failed to create auth service", "error", err)
	}

	eventBus := events.NewEventBus()

	server, err := api.NewServer(api.ServerConfig{
		Port:           cfg.ServerConfig.Port,
		Host:           cfg.ServerConfig.Host,
		ProductionMode: cfg.ServerConfig.ProductionMode,
		AllowedOrigins: api.SplitOrigins(cfg.ServerConfig.AllowedOrigins),
		ReadTimeout:    time.Duration(cfg.ServerConfig.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.ServerConfig.WriteTimeout) * time.Second,
		LoginRateLimit: cfg.ServerConfig.LoginRateLimit,
	}, api.Dependencies{
		Settings:    store,
		AuthService: authService,
		Registry:    registry,
		Menus:       menus,
		APIKeys:     apikeys.NewService(store, vaultClient),
		Vault:       vaultClient,
		Cache:       cacheService,
		EventBus:    eventBus,
	})
	if err != nil {
		logger.Fatal("Failed to create web server", "error", err)
	}

	// Start web server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("Failed to start web server", "error", err)
		}
	}()
	logger.Info("Console API listening",
		"address", fmt.Sprintf("%s:%d", cfg.ServerConfig.Host, cfg.ServerConfig.Port),
		"menu_source", source.Name(),
		"mock", cfg.MockConfig.Enabled)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.ServerConfig.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Error shutting down web server")
	}

	logger.Info("Shutdown complete")
}

// catalogSource builds the configured catalog source
func catalogSource(cfg config.MenuConfig, repo *database.Repository) (catalog.Source, error) {
	opts := catalog.Options{Validate: cfg.Validate}

	switch cfg.Source {
	case config.MenuSourceBuiltin:
		return catalog.NewBuiltinSource(), nil
	case config.MenuSourceFile:
		return catalog.NewFileSource(cfg.CatalogPath, opts), nil
	case config.MenuSourcePostgres:
		if repo == nil {
			return nil, fmt.Errorf("menu source %q requires the database", cfg.Source)
		}
		return catalog.NewPostgresSource(repo, opts), nil
	default:
		return nil, fmt.Errorf("unknown menu source %q", cfg.Source)
	}
}
