package api

import (
	"net/http"

	"pbgui-console/internal/auth"
	"pbgui-console/internal/database"
	"pbgui-console/internal/events"

	"github.com/gin-gonic/gin"
)

// ==================== PREFERENCES ====================

// handleGetPreferences returns the passivbot installation paths
// GET /api/system/preferences/
func (s *Server) handleGetPreferences(c *gin.Context) {
	prefs, err := s.deps.Settings.GetPreferences(c.Request.Context())
	if err != nil {
		s.requestLog(c).WithError(err).Error("Failed to get preferences")
		errorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to get preferences")
		return
	}
	successResponse(c, prefs)
}

// handleSavePreferences replaces the passivbot installation paths
// POST /api/system/preferences/
func (s *Server) handleSavePreferences(c *gin.Context) {
	var prefs database.Preferences
	if err := c.ShouldBindJSON(&prefs); err != nil {
		errorResponse(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}

	if err := s.deps.Settings.SavePreferences(c.Request.Context(), &prefs); err != nil {
		s.requestLog(c).WithError(err).Error("Failed to save preferences")
		errorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to save preferences")
		return
	}

	s.deps.EventBus.PublishSettingsUpdated(events.EventPreferencesUpdated, auth.GetUsername(c))
	successResponse(c, prefs)
}

// ==================== COINMARKETCAP ====================

// handleGetCoinMarket returns the CoinMarketCap fetcher settings
// GET /api/system/coinmarket
func (s *Server) handleGetCoinMarket(c *gin.Context) {
	cfg, err := s.deps.Settings.GetCoinMarketConfig(c.Request.Context())
	if err != nil {
		s.requestLog(c).WithError(err).Error("Failed to get coinmarket settings")
		errorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to get coinmarket settings")
		return
	}
	successResponse(c, cfg)
}

// handleSaveCoinMarket replaces the CoinMarketCap fetcher settings
// POST /api/system/coinmarket
func (s *Server) handleSaveCoinMarket(c *gin.Context) {
	var cfg database.CoinMarketConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		errorResponse(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}
	if cfg.FetchLimit <= 0 || cfg.FetchInterval <= 0 || cfg.MetadataInterval <= 0 {
		errorResponse(c, http.StatusBadRequest, "VALIDATION_ERROR",
			"fetch_limit, fetch_interval and metadata_interval must be positive")
		return
	}

	if err := s.deps.Settings.SaveCoinMarketConfig(c.Request.Context(), &cfg); err != nil {
		s.requestLog(c).WithError(err).Error("Failed to save coinmarket settings")
		errorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to save coinmarket settings")
		return
	}

	s.deps.EventBus.PublishSettingsUpdated(events.EventCoinMarketUpdated, auth.GetUsername(c))
	successResponse(c, cfg)
}
