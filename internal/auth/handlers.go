package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"pbgui-console/internal/events"
)

// Handlers contains the auth HTTP handlers
type Handlers struct {
	service  *Service
	eventBus *events.EventBus
}

// NewHandlers creates a new Handlers instance. eventBus may be nil.
func NewHandlers(service *Service, eventBus *events.EventBus) *Handlers {
	return &Handlers{service: service, eventBus: eventBus}
}

// respondOK writes the response envelope the console frontend unwraps
func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"data":    data,
		"message": "ok",
	})
}

func respondError(c *gin.Context, err error, fallback string) {
	var authErr AuthError
	if errors.As(err, &authErr) {
		status := http.StatusUnauthorized
		switch authErr.Code {
		case ErrForbidden.Code:
			status = http.StatusForbidden
		case ErrUserNotFound.Code:
			status = http.StatusNotFound
		case ErrRateLimited.Code:
			status = http.StatusTooManyRequests
		}
		c.JSON(status, gin.H{
			"error":   authErr.Code,
			"message": authErr.Message,
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "INTERNAL_ERROR",
		"message": fallback,
	})
}

// Login handles console login
// POST /api/auth/login
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "VALIDATION_ERROR",
			"message": "username and password are required",
		})
		return
	}

	response, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "failed to login")
		return
	}

	if h.eventBus != nil {
		h.eventBus.PublishUserLogin(req.Username, c.ClientIP())
	}
	respondOK(c, response)
}

// Logout revokes the current session
// POST /api/auth/logout
func (h *Handlers) Logout(c *gin.Context) {
	claims := GetTokenClaims(c)
	if err := h.service.Logout(c.Request.Context(), claims); err != nil {
		respondError(c, err, "failed to logout")
		return
	}

	if h.eventBus != nil && claims != nil {
		h.eventBus.PublishUserLogout(claims.Username)
	}
	respondOK(c, "")
}

// Codes returns the access codes of the current user
// GET /api/auth/codes
func (h *Handlers) Codes(c *gin.Context) {
	codes, err := h.service.AccessCodes(c.Request.Context(), GetUsername(c))
	if err != nil {
		respondError(c, err, "failed to get access codes")
		return
	}
	respondOK(c, codes)
}

// UserInfo returns the current user's profile
// GET /api/user/info
func (h *Handlers) UserInfo(c *gin.Context) {
	info, err := h.service.UserInfo(c.Request.Context(), GetUsername(c))
	if err != nil {
		respondError(c, err, "failed to get user info")
		return
	}
	respondOK(c, info)
}
