package middlewares

import (
	"net/http"
	"strings"

	"bitbucket.org/greenops/fieldops_backend/config"
	"bitbucket.org/greenops/fieldops_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const CorrelationIdHeader = "X-Correlation-Id"

const sessionTokenPrefix = "Token:"

// SessionTokenKey is the Redis key of a dashboard session token.
func SessionTokenKey(token string) string {
	return sessionTokenPrefix + token
}

// SessionMiddleware resolves an opaque dashboard session token (header
// "token") through Redis into the bearer token it was issued for. An explicit
// Authorization header wins.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Request.Header.Get("token")
		if token == "" || c.Request.Header.Get("Authorization") != "" {
			c.Next()
			return
		}
		bearer, exists, err := config.GetRedisValue(SessionTokenKey(token))
		if err != nil || !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		c.Request.Header.Set("Authorization", "Bearer "+bearer)
		c.Request = c.Request.WithContext(utils.SetTokenInContext(c.Request.Context(), token))
		c.Next()
	}
}

// CorrelationMiddleware tags every request with a correlation id, taken from
// the request header when present.
func CorrelationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.Request.Header.Get(CorrelationIdHeader))
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Header(CorrelationIdHeader, id)
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), id))
		c.Next()
	}
}

// SiteContextMiddleware makes the :siteId route parameter the selected site
// of the request. It is the only place the selected site is set.
func SiteContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		siteId := strings.TrimSpace(c.Param("siteId"))
		if siteId == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ErrorSiteRequired.Error()})
			c.Abort()
			return
		}
		c.Request = c.Request.WithContext(utils.SetSiteIdInContext(c.Request.Context(), siteId))
		c.Next()
	}
}
