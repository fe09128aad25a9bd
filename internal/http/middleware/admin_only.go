package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/orderdesk-backend/internal/interface/http/response"
	"github.com/ignatzorin/orderdesk-backend/internal/logger"
)

// AdminOnly пропускает только роли admin, sub_admin и super_admin.
// Ставится после AuthMiddleware.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFromContext(c)
		if !ok {
			response.Unauthorized(c, "требуется авторизация")
			c.Abort()
			return
		}
		if !actor.IsAdmin() {
			logger.Log.WithFields(logrus.Fields{
				"user_id": actor.ID,
				"role":    actor.Role,
				"path":    c.Request.URL.Path,
			}).Warn("auth: попытка доступа к админскому маршруту")
			response.Forbidden(c, "требуются права администратора")
			c.Abort()
			return
		}
		c.Next()
	}
}
