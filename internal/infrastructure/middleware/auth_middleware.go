package middleware

import (
	"errors"
	"strings"

	"livetranslate/internal/core/domain"
	"livetranslate/internal/core/services"
	apperrors "livetranslate/pkg/errors"
	"livetranslate/pkg/logger"
	"livetranslate/pkg/tracing"

	"github.com/gin-gonic/gin"
)

const userContextKey = "user"

var (
	errMissingAuthHeader = errors.New("authorization header required")
	errMalformedHeader   = errors.New("invalid authorization header format")
)

// AuthMiddleware resolves the bearer token to a stored user and places it in the gin context.
func AuthMiddleware(authService services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := BearerToken(c.GetHeader("Authorization"))
		if err != nil {
			_ = c.Error(apperrors.NewUnauthorizedError(err.Error()))
			c.Abort()
			return
		}

		user, err := authService.Authenticate(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, domain.ErrUnauthenticated) {
				_ = c.Error(apperrors.NewUnauthorizedError("invalid or expired token"))
			} else {
				_ = c.Error(err)
			}
			c.Abort()
			return
		}

		ctx := logger.WithUserID(c.Request.Context(), string(user.ID))
		tracing.AddSpanAttributes(ctx, tracing.UserIDKey.String(string(user.ID)))
		c.Request = c.Request.WithContext(ctx)
		c.Set(userContextKey, user)
		c.Next()
	}
}

// RequireHost rejects callers whose current role is not HOST. It must run after AuthMiddleware.
func RequireHost(authService services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, _ := CurrentUser(c)
		if err := authService.RequireHost(user); err != nil {
			if errors.Is(err, domain.ErrHostRequired) {
				_ = c.Error(apperrors.NewForbiddenError("Host role required"))
			} else {
				_ = c.Error(apperrors.NewUnauthorizedError("authentication required"))
			}
			c.Abort()
			return
		}
		c.Next()
	}
}

// CurrentUser returns the user stored by AuthMiddleware.
func CurrentUser(c *gin.Context) (*domain.User, bool) {
	v, ok := c.Get(userContextKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*domain.User)
	return user, ok && user != nil
}

// SetCurrentUser is used by handlers that authenticate on their own, like the websocket upgrade.
func SetCurrentUser(c *gin.Context, user *domain.User) {
	c.Set(userContextKey, user)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", errMissingAuthHeader
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", errMalformedHeader
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errMalformedHeader
	}
	return token, nil
}
