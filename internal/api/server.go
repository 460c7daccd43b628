package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"pbgui-console/internal/apikeys"
	"pbgui-console/internal/auth"
	"pbgui-console/internal/cache"
	"pbgui-console/internal/catalog"
	"pbgui-console/internal/database"
	"pbgui-console/internal/events"
	"pbgui-console/internal/logging"
	"pbgui-console/internal/vault"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader carries the per-request trace id
const RequestIDHeader = "X-Request-ID"

const contextKeyRequestID = "request_id"

// RateLimiter provides simple in-memory rate limiting per key
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	limit    int           // max requests
	window   time.Duration // time window
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow checks if a request is allowed for the given key
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-r.window)

	// Filter out old requests
	var recent []time.Time
	for _, t := range r.requests[key] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}

	r.requests[key] = append(recent, now)
	return true
}

// SettingsStore persists the console's system settings. Both the postgres
// repository and the mock store implement it.
type SettingsStore interface {
	HealthCheck(ctx context.Context) error
	GetPreferences(ctx context.Context) (*database.Preferences, error)
	SavePreferences(ctx context.Context, prefs *database.Preferences) error
	GetCoinMarketConfig(ctx context.Context) (*database.CoinMarketConfig, error)
	SaveCoinMarketConfig(ctx context.Context, cfg *database.CoinMarketConfig) error
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Host           string
	ProductionMode bool
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	LoginRateLimit int // per client IP and minute
}

// Dependencies are the services the server routes to
type Dependencies struct {
	Settings    SettingsStore
	AuthService *auth.Service
	Registry    *catalog.Registry
	Menus       *cache.MenuCache
	APIKeys     *apikeys.Service
	Vault       *vault.Client       // optional, health only
	Cache       *cache.CacheService // optional, health only
	EventBus    *events.EventBus
}

// Server represents the HTTP API server
type Server struct {
	router       *gin.Engine
	httpServer   *http.Server
	config       ServerConfig
	deps         Dependencies
	authHandlers *auth.Handlers
	loginLimiter *RateLimiter
	hub          *WSHub
	logger       *logging.Logger
	startedAt    time.Time
}

// NewServer creates a new API server
func NewServer(config ServerConfig, deps Dependencies) (*Server, error) {
	switch {
	case deps.Settings == nil:
		return nil, errors.New("settings store is required")
	case deps.AuthService == nil:
		return nil, errors.New("auth service is required")
	case deps.Registry == nil || deps.Menus == nil:
		return nil, errors.New("menu registry and cache are required")
	case deps.APIKeys == nil:
		return nil, errors.New("exchange key service is required")
	}
	if deps.EventBus == nil {
		deps.EventBus = events.NewEventBus()
	}
	if config.LoginRateLimit <= 0 {
		config.LoginRateLimit = 20
	}

	// Set Gin mode
	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	server := &Server{
		router:       router,
		config:       config,
		deps:         deps,
		authHandlers: auth.NewHandlers(deps.AuthService, deps.EventBus),
		loginLimiter: NewRateLimiter(config.LoginRateLimit, time.Minute),
		logger:       logging.WithComponent("api"),
		startedAt:    time.Now(),
	}

	// Middleware
	router.Use(server.requestIDMiddleware())
	router.Use(server.requestLogger())
	router.Use(gin.Recovery())

	// CORS middleware
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = config.AllowedOrigins
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowOrigins = []string{"http://localhost:5666"}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", RequestIDHeader}
	corsConfig.ExposeHeaders = []string{"Content-Length", RequestIDHeader}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	server.hub = NewWSHub()
	go server.hub.Run()
	server.hub.Subscribe(deps.EventBus)

	server.setupRoutes()

	return server, nil
}

// requestIDMiddleware tags every request with a trace id, reusing the
// caller's id when one is sent
func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(contextKeyRequestID, requestID)
		c.Request = c.Request.WithContext(logging.WithTraceContext(c.Request.Context(), requestID))
		c.Header(RequestIDHeader, requestID)
		c.Next()
	}
}

// requestLogger logs every request through the structured logger
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger := s.logger.For(c.Request.Context()).WithDuration(time.Since(start))
		args := []interface{}{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"client_ip", c.ClientIP(),
		}
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			logger.Error("Request failed", args...)
		case c.Writer.Status() >= http.StatusBadRequest:
			logger.Warn("Request rejected", args...)
		default:
			logger.Debug("Request served", args...)
		}
	}
}

// loginRateLimit throttles login attempts per client IP
func (s *Server) loginRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.loginLimiter.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   auth.ErrRateLimited.Code,
				"message": auth.ErrRateLimited.Message,
			})
			return
		}
		c.Next()
	}
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	// Health check
	s.router.GET("/health", s.handleHealth)

	jwtManager := s.deps.AuthService.GetJWTManager()
	revoked := s.deps.AuthService.GetRevocationList()

	// Auth routes (public)
	s.router.POST("/api/auth/login", s.loginRateLimit(), s.authHandlers.Login)

	// API routes (authenticated)
	api := s.router.Group("/api")
	api.Use(auth.Middleware(jwtManager, revoked))
	{
		api.POST("/auth/logout", s.authHandlers.Logout)
		api.GET("/auth/codes", s.authHandlers.Codes)
		api.GET("/user/info", s.authHandlers.UserInfo)

		// Navigation
		api.GET("/menu/all", s.handleGetAllMenus)

		// Realtime events
		api.GET("/ws", s.handleWebSocket)

		system := api.Group("/system")
		{
			system.GET("/menu/list", s.handleGetMenuList)
			system.GET("/menu/ids", s.handleGetMenuIDs)

			admin := system.Group("")
			admin.Use(auth.RequireRole("super", "admin"))
			{
				admin.GET("/menu/roles", s.handleGetMenuRoles)
				admin.POST("/menu/reload", s.handleReloadMenus)

				admin.GET("/preferences/", s.handleGetPreferences)
				admin.POST("/preferences/", s.handleSavePreferences)

				admin.GET("/coinmarket", s.handleGetCoinMarket)
				admin.POST("/coinmarket", s.handleSaveCoinMarket)

				admin.GET("/exchanges", s.handleListExchangeKeys)
				admin.POST("/exchanges", s.handleCreateExchangeKey)
				admin.GET("/exchanges/:id", s.handleGetExchangeKey)
				admin.PUT("/exchanges/:id", s.handleUpdateExchangeKey)
				admin.DELETE("/exchanges/:id", s.handleDeleteExchangeKey)
			}
		}
	}
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the websocket hub
func (s *Server) Hub() *WSHub {
	return s.hub
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "addr", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	s.hub.Stop()

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

// handleHealth returns server health status
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	body := gin.H{
		"status":          "healthy",
		"database":        "healthy",
		"catalog_version": s.deps.Registry.Version(),
		"ws_clients":      s.hub.GetClientCount(),
		"uptime":          time.Since(s.startedAt).Round(time.Second).String(),
	}

	if err := s.deps.Settings.HealthCheck(ctx); err != nil {
		status = http.StatusServiceUnavailable
		body["status"] = "unhealthy"
		body["database"] = "unhealthy"
	}

	if s.deps.Vault != nil {
		body["vault"] = "healthy"
		if err := s.deps.Vault.Health(ctx); err != nil {
			body["vault"] = "unhealthy"
		}
	}

	if s.deps.Cache != nil {
		// Redis is optional; a degraded cache does not fail the check
		body["cache"] = s.deps.Cache.GetStats()
	}

	c.JSON(status, body)
}

// successResponse writes the envelope the console frontend unwraps
func successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"data":    data,
		"message": "ok",
	})
}

// errorResponse is a helper to send error responses
func errorResponse(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, gin.H{
		"error":   code,
		"message": message,
	})
}

// requestLog returns the api logger tagged with the request's trace id
func (s *Server) requestLog(c *gin.Context) *logging.Logger {
	return s.logger.For(c.Request.Context())
}

// SplitOrigins parses the comma separated origins setting
func SplitOrigins(origins string) []string {
	var out []string
	for _, origin := range strings.Split(origins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			out = append(out, origin)
		}
	}
	return out
}
