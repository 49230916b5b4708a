package identity

import (
	"net/http"
	"strings"

	"github.com/beka-birhanu/vinom-treasure/service/i"
	"github.com/gin-gonic/gin"
)

const (
	// ContextUserClaims is the key used to store user claims in the Gin context.
	ContextUserClaims = "userClaims"

	roleClaim = "role"
)

// Authoriz admits requests carrying a valid bearer token whose role claim is role.
func Authoriz(ts i.Tokenizer, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		// Split the "Bearer" prefix from the token.
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		claims, err := ts.Decode(parts[1])
		if err != nil {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		if got, _ := claims[roleClaim].(string); got != role {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}

		c.Set(ContextUserClaims, claims)
		c.Next()
	}
}
