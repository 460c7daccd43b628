package auth

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// Context keys for user data
	ContextKeyUserID   = "user_id"
	ContextKeyUsername = "user_name"
	ContextKeyRoles    = "user_roles"
	ContextKeyClaims   = "user_claims"
	ContextKeyToken    = "user_token"
)

// bearerToken extracts the token from the Authorization header. Browsers
// cannot set headers on websocket upgrades, so a token query parameter is
// accepted as well.
func bearerToken(c *gin.Context) (string, string) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if token := c.Query("token"); token != "" {
			return token, ""
		}
		return "", "missing authorization header"
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", "invalid authorization header format"
	}
	return parts[1], ""
}

// Middleware creates a JWT authentication middleware. Tokens revoked by
// logout are rejected.
func Middleware(jwtManager *JWTManager, revoked RevocationList) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, problem := bearerToken(c)
		if problem != "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   ErrUnauthorized.Code,
				"message": problem,
			})
			return
		}

		// Validate token
		claims, err := jwtManager.ValidateAccessToken(tokenString)
		if err != nil {
			authErr, ok := err.(AuthError)
			if !ok {
				authErr = ErrInvalidToken
			}

			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   authErr.Code,
				"message": authErr.Message,
			})
			return
		}

		if revoked != nil && claims.ID != "" {
			isRevoked, err := revoked.IsRevoked(c.Request.Context(), claims.ID)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
					"error":   "INTERNAL_ERROR",
					"message": "failed to check session",
				})
				return
			}
			if isRevoked {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error":   ErrSessionRevoked.Code,
					"message": ErrSessionRevoked.Message,
				})
				return
			}
		}

		// Set user context
		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyUsername, claims.Username)
		c.Set(ContextKeyRoles, claims.Roles)
		c.Set(ContextKeyClaims, &claims.UserClaims)
		c.Set(ContextKeyToken, claims)

		c.Next()
	}
}

// RequireRole middleware ensures the user holds at least one of roles
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, role := range roles {
			if HasRole(c, role) {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error":   ErrForbidden.Code,
			"message": strings.Join(roles, " or ") + " role required",
		})
	}
}

// GetUserID extracts the user ID from the Gin context
func GetUserID(c *gin.Context) int64 {
	if userID, exists := c.Get(ContextKeyUserID); exists {
		return userID.(int64)
	}
	return 0
}

// GetUsername extracts the username from the Gin context
func GetUsername(c *gin.Context) string {
	return c.GetString(ContextKeyUsername)
}

// GetRoles extracts the user's roles from the Gin context
func GetRoles(c *gin.Context) []string {
	return c.GetStringSlice(ContextKeyRoles)
}

// HasRole checks if the current user holds role
func HasRole(c *gin.Context, role string) bool {
	return slices.Contains(GetRoles(c), role)
}

// GetUserClaims extracts the user claims from the Gin context
func GetUserClaims(c *gin.Context) *UserClaims {
	if claims, exists := c.Get(ContextKeyClaims); exists {
		return claims.(*UserClaims)
	}
	return nil
}

// GetTokenClaims extracts the full token claims, including the token id
// and expiry, from the Gin context
func GetTokenClaims(c *gin.Context) *Claims {
	if claims, exists := c.Get(ContextKeyToken); exists {
		return claims.(*Claims)
	}
	return nil
}
