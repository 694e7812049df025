package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/stemsi/quizly-backend/internal/model"
	"github.com/stemsi/quizly-backend/internal/response"
	"github.com/stemsi/quizly-backend/internal/service"
)

const (
	// ContextKeyClaims is the Gin context key for JWT claims.
	ContextKeyClaims = "claims"
	// ContextKeyUser is the Gin context key for the resolved user.
	ContextKeyUser = "user"

	// CookieName is the session cookie carrying the token.
	CookieName = "token"
)

// RequireAuth rejects the request unless a valid token resolves to a user.
func RequireAuth(authService *service.AuthService) gin.HandlerFunc {
	return authenticate(authService, false, false)
}

// OptionalAuth attaches the user when a valid token is present and lets
// anonymous or badly authenticated requests through as anonymous.
func OptionalAuth(authService *service.AuthService) gin.HandlerFunc {
	return authenticate(authService, true, false)
}

// OptionalWSAuth is OptionalAuth that also reads ?token=, for WebSocket
// upgrades where browsers cannot set headers.
func OptionalWSAuth(authService *service.AuthService) gin.HandlerFunc {
	return authenticate(authService, true, true)
}

func authenticate(authService *service.AuthService, optional, allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := ExtractToken(c, allowQuery)
		if tokenStr == "" {
			if optional {
				c.Next()
				return
			}
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		user, claims, err := authService.Authenticate(c.Request.Context(), tokenStr)
		if err != nil {
			if optional {
				c.Next()
				return
			}
			code, status := authErrorCode(err)
			if status == http.StatusInternalServerError {
				_ = c.Error(err)
			}
			response.AbortFail(c, status, code)
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Set(ContextKeyUser, user)
		c.Next()
	}
}

func authErrorCode(err error) (response.ErrCode, int) {
	switch {
	case errors.Is(err, service.ErrTokenExpired):
		return response.ErrTokenExpired, http.StatusUnauthorized
	case errors.Is(err, service.ErrTokenRevoked):
		return response.ErrTokenRevoked, http.StatusUnauthorized
	case errors.Is(err, service.ErrTokenInvalid), errors.Is(err, service.ErrUserNotFound):
		return response.ErrTokenInvalid, http.StatusUnauthorized
	default:
		return response.ErrInternal, http.StatusInternalServerError
	}
}

// ExtractToken reads the bearer header, then the session cookie and,
// when allowQuery is set, the token query parameter.
func ExtractToken(c *gin.Context, allowQuery bool) string {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			if tok := strings.TrimSpace(parts[1]); tok != "" {
				return tok
			}
		}
	}

	if cookie, err := c.Cookie(CookieName); err == nil && cookie != "" {
		return cookie
	}

	if allowQuery {
		return c.Query("token")
	}
	return ""
}

// GetClaims retrieves the JWT claims from the Gin context.
func GetClaims(c *gin.Context) *service.Claims {
	val, exists := c.Get(ContextKeyClaims)
	if !exists {
		return nil
	}
	claims, ok := val.(*service.Claims)
	if !ok {
		return nil
	}
	return claims
}

// GetUser retrieves the authenticated user, or nil for anonymous requests.
func GetUser(c *gin.Context) *model.User {
	val, exists := c.Get(ContextKeyUser)
	if !exists {
		return nil
	}
	user, ok := val.(*model.User)
	if !ok {
		return nil
	}
	return user
}
