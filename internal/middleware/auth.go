package middleware

import (
	"errors"
	"net/http"
	"strings"

	pkgAuth "party-service/pkg/auth"

	"github.com/gin-gonic/gin"
)

const (
	ContextSessionIDKey = "sessionID"
	ContextPlayerIDKey  = "playerID"
)

// PlayerAuthRequired accepts a player token from the Authorization header or
// the token query parameter. When the route carries :id it must match the
// token's session.
func PlayerAuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := ExtractToken(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		claims, err := pkgAuth.ParsePlayerToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if id := c.Param("id"); id != "" && id != claims.SessionID {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "token is for another session"})
			return
		}

		c.Set(ContextSessionIDKey, claims.SessionID)
		c.Set(ContextPlayerIDKey, claims.PlayerID)
		c.Next()
	}
}

func ExtractToken(c *gin.Context) (string, error) {
	if token := strings.TrimSpace(c.Query("token")); token != "" {
		return token, nil
	}
	return extractBearerToken(c.GetHeader("Authorization"))
}

func extractBearerToken(authHeader string) (string, error) {
	if strings.TrimSpace(authHeader) == "" {
		return "", errors.New("missing authorization header")
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header")
	}
	return strings.TrimSpace(parts[1]), nil
}
