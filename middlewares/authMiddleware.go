package middlewares

import (
	"context"
	"net/http"
	"strings"

	"bitbucket.org/greenops/fieldops_backend/utils"
	"github.com/gin-gonic/gin"
)

type authString string

const roleAdmin = "admin"

// AuthMiddleware reads the bearer token and puts the operator and their
// client into the request context. Requests without a token pass through;
// RequireAuth rejects them where needed.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.Request.Header.Get("Authorization")

		if auth == "" {
			c.Next()
			return
		}

		bearer := "Bearer "
		if !strings.HasPrefix(auth, bearer) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		auth = auth[len(bearer):]

		validate, err := utils.JwtValidate(auth)
		if err != nil || !validate.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		customClaim, _ := validate.Claims.(*utils.JwtCustomClaim)

		ctx := context.WithValue(c.Request.Context(), authString("auth"), customClaim)
		ctx = utils.SetUserIdInContext(ctx, customClaim.ID)
		ctx = utils.SetUsernameInContext(ctx, customClaim.Username)
		ctx = utils.SetUserNameInContext(ctx, customClaim.Name)
		ctx = utils.SetClientIdInContext(ctx, customClaim.ClientId)
		ctx = utils.SetIsAdminInContext(ctx, customClaim.Role == roleAdmin)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireAuth aborts requests that carry no valid token.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CtxValue(c.Request.Context()) == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func CtxValue(ctx context.Context) *utils.JwtCustomClaim {
	raw, _ := ctx.Value(authString("auth")).(*utils.JwtCustomClaim)
	return raw
}
