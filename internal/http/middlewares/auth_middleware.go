package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/taskhub/taskhub/internal/actorctx"
	"github.com/taskhub/taskhub/internal/auth"
	"github.com/taskhub/taskhub/internal/authz"
)

// Keep this small interface so tests can fake it easily.
type TokenVerifier interface {
	VerifyAccessToken(token string) (*auth.Claims, error)
}

type AuthMiddleware struct {
	jwt TokenVerifier
}

func NewAuthMiddleware(jwt TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt}
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")

		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "unauthorized",
					"message": "Missing or invalid Authorization header",
				},
			})
			return
		}

		raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))

		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "unauthorized",
					"message": "Missing or invalid access token",
				},
			})
			return
		}

		claims, err := m.jwt.VerifyAccessToken(raw)

		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "unauthorized",
					"message": "Invalid or expired access token",
				},
			})
			return
		}

		SetPrincipal(c, authz.Principal{ID: claims.UserID, Roles: claims.Roles}, claims.Email)

		c.Next()
	}
}

// SetPrincipal stashes identity bits on the gin context and on the
// underlying request context for log attribution. Exported so handler
// tests can install a caller without minting real tokens.
func SetPrincipal(c *gin.Context, p authz.Principal, email string) {
	c.Set(ctxUserIDKey, p.ID)
	c.Set(ctxEmailKey, email)
	c.Set(ctxRolesKey, p.Roles)

	c.Request = c.Request.WithContext(actorctx.WithPrincipal(c.Request.Context(), p))
}

// Helpers so handlers don't need to know the magic keys.

func PrincipalFromContext(c *gin.Context) (authz.Principal, bool) {
	id, ok := UserIDFromContext(c)

	if !ok || id == "" {
		return authz.Principal{}, false
	}

	roles, _ := RolesFromContext(c)

	return authz.Principal{ID: id, Roles: roles}, true
}

func UserIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxUserIDKey)

	if !ok {
		return "", false
	}

	id, ok := v.(string)

	return id, ok
}

func RolesFromContext(c *gin.Context) ([]string, bool) {
	v, ok := c.Get(ctxRolesKey)

	if !ok {
		return nil, false
	}

	roles, ok := v.([]string)

	return roles, ok
}
