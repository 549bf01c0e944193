package middlewares

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/table-points/utils"
)

// RequireRole lets the request through only for the listed roles. It must
// run after AuthMiddleware.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(c *gin.Context) {
		role, exists := c.Get(ContextRole)
		if !exists {
			utils.RespondError(c, http.StatusUnauthorized, errors.New("Autenticazione richiesta"))
			c.Abort()
			return
		}
		if r, _ := role.(string); !allowed[r] {
			utils.RespondError(c, http.StatusForbidden, errors.New("Permessi insufficienti"))
			c.Abort()
			return
		}
		c.Next()
	}
}
