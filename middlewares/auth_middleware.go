package middlewares

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/table-points/models"
	"github.com/yeremiapane/table-points/utils"
	"gorm.io/gorm"
)

// Keys stored on the gin context by AuthMiddleware.
const (
	ContextUserID       = "user_id"
	ContextRole         = "role"
	ContextToken        = "token"
	ContextTokenExpires = "token_expires"
)

// AuthMiddleware accepts "Authorization: Bearer <token>" and rejects
// tokens that were logged out. The user is reloaded on every request: a
// missing or deactivated account is rejected and the stored role wins over
// the one in the token.
func AuthMiddleware(db *gorm.DB, tokens *utils.TokenService, blacklist *utils.TokenBlacklist) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			utils.RespondError(c, http.StatusUnauthorized, errors.New("Token di accesso mancante"))
			c.Abort()
			return
		}
		if !strings.HasPrefix(header, "Bearer ") {
			utils.RespondError(c, http.StatusUnauthorized, errors.New("Formato token non valido"))
			c.Abort()
			return
		}

		tokenString := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		claims, err := tokens.ParseToken(tokenString)
		if err != nil {
			utils.RespondError(c, http.StatusUnauthorized, errors.New("Token non valido o scaduto"))
			c.Abort()
			return
		}
		if blacklist != nil && blacklist.Contains(tokenString) {
			utils.RespondError(c, http.StatusUnauthorized, errors.New("Token revocato"))
			c.Abort()
			return
		}

		var user models.User
		if err := db.WithContext(c.Request.Context()).First(&user, claims.UserID).Error; err != nil {
			utils.RespondError(c, http.StatusUnauthorized, errors.New("Utente non trovato"))
			c.Abort()
			return
		}
		if !user.IsActive {
			utils.RespondError(c, http.StatusUnauthorized, errors.New("Account disattivato. Contattare l'amministratore."))
			c.Abort()
			return
		}

		expires := time.Now().Add(time.Hour)
		if claims.ExpiresAt != nil {
			expires = claims.ExpiresAt.Time
		}

		c.Set(ContextUserID, user.ID)
		c.Set(ContextRole, user.Role)
		c.Set(ContextToken, tokenString)
		c.Set(ContextTokenExpires, expires)
		c.Next()
	}
}

// CurrentUserID -> id set by AuthMiddleware, 0 when absent
func CurrentUserID(c *gin.Context) uint {
	return c.GetUint(ContextUserID)
}

func CurrentRole(c *gin.Context) string {
	return c.GetString(ContextRole)
}
