package api

import (
	"errors"
	"net/http"
	"strconv"

	"pbgui-console/internal/apikeys"

	"github.com/gin-gonic/gin"
)

// exchangeKeyError maps service errors to HTTP responses
func (s *Server) exchangeKeyError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, apikeys.ErrNotFound):
		errorResponse(c, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, apikeys.ErrDuplicateAccount):
		errorResponse(c, http.StatusConflict, "DUPLICATE_ACCOUNT", err.Error())
	case errors.Is(err, apikeys.ErrUnsupportedExchange),
		errors.Is(err, apikeys.ErrMissingField),
		errors.Is(err, apikeys.ErrInvalidStatus):
		errorResponse(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	default:
		s.requestLog(c).WithError(err).Error(fallback)
		errorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", fallback)
	}
}

func parseKeyID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		errorResponse(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid exchange key id")
		return 0, false
	}
	return id, true
}

// handleListExchangeKeys returns every exchange key with secrets masked
// GET /api/system/exchanges
func (s *Server) handleListExchangeKeys(c *gin.Context) {
	keys, err := s.deps.APIKeys.List(c.Request.Context())
	if err != nil {
		s.exchangeKeyError(c, err, "failed to list exchange keys")
		return
	}
	successResponse(c, keys)
}

// GET /api/system/exchanges/:id
func (s *Server) handleGetExchangeKey(c *gin.Context) {
	id, ok := parseKeyID(c)
	if !ok {
		return
	}
	key, err := s.deps.APIKeys.Get(c.Request.Context(), id)
	if err != nil {
		s.exchangeKeyError(c, err, "failed to get exchange key")
		return
	}
	successResponse(c, key)
}

// POST /api/system/exchanges
func (s *Server) handleCreateExchangeKey(c *gin.Context) {
	var req apikeys.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}

	key, err := s.deps.APIKeys.Create(c.Request.Context(), req)
	if err != nil {
		s.exchangeKeyError(c, err, "failed to create exchange key")
		return
	}

	s.deps.EventBus.PublishExchangeKeyChanged("created", key.ID, key.Exchange, key.AccountName)
	successResponse(c, key)
}

// PUT /api/system/exchanges/:id
func (s *Server) handleUpdateExchangeKey(c *gin.Context) {
	id, ok := parseKeyID(c)
	if !ok {
		return
	}

	var req apikeys.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}

	key, err := s.deps.APIKeys.Update(c.Request.Context(), id, req)
	if err != nil {
		s.exchangeKeyError(c, err, "failed to update exchange key")
		return
	}

	s.deps.EventBus.PublishExchangeKeyChanged("updated", key.ID, key.Exchange, key.AccountName)
	successResponse(c, key)
}

// DELETE /api/system/exchanges/:id
func (s *Server) handleDeleteExchangeKey(c *gin.Context) {
	id, ok := parseKeyID(c)
	if !ok {
		return
	}

	if err := s.deps.APIKeys.Delete(c.Request.Context(), id); err != nil {
		s.exchangeKeyError(c, err, "failed to delete exchange key")
		return
	}

	s.deps.EventBus.PublishExchangeKeyChanged("deleted", id, "", "")
	successResponse(c, nil)
}
