package httpapi

import (
	"context"
	"net/http"
	"strings"

	"cart-service/internal/auth"
	"cart-service/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type TokenVerifier interface {
	ParseAndValidateAccess(ctx context.Context, token string) (*auth.Claims, error)
}

// AuthRequired проверяет Bearer токен и кладёт Identity в контекст запроса.
func AuthRequired(tokens TokenVerifier, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, NewUnauthorizedError("missing Authorization header"))
			return
		}
		token, ok := ExtractBearerToken(authz)
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, NewUnauthorizedError("invalid Authorization header"))
			return
		}

		claims, err := tokens.ParseAndValidateAccess(c.Request.Context(), token)
		if err != nil {
			log.Debug("token rejected", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, NewUnauthorizedError("invalid token"))
			return
		}

		c.Request = c.Request.WithContext(service.WithIdentity(c.Request.Context(), claims.Identity()))
		c.Next()
	}
}

// OptionalAuth кладёт Identity, если пришёл валидный токен; иначе запрос идёт анонимно.
func OptionalAuth(tokens TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := ExtractBearerToken(c.GetHeader("Authorization")); ok && token != "" {
			if claims, err := tokens.ParseAndValidateAccess(c.Request.Context(), token); err == nil {
				c.Request = c.Request.WithContext(service.WithIdentity(c.Request.Context(), claims.Identity()))
			}
		}
		c.Next()
	}
}

// AdminRequired ставится после AuthRequired.
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !identity(c).IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, NewForbiddenError("admin role required"))
			return
		}
		c.Next()
	}
}

func identity(c *gin.Context) service.Identity {
	return service.IdentityFromContext(c.Request.Context())
}

// ExtractBearerToken достаёт токен из "Bearer <token>", снимая кавычки по краям.
func ExtractBearerToken(authz string) (string, bool) {
	parts := strings.SplitN(authz, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return strings.Trim(strings.TrimSpace(parts[1]), "\"'"), true
}
