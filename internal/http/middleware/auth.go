package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/orderdesk-backend/internal/domain/valueobject"
	"github.com/ignatzorin/orderdesk-backend/internal/interface/http/response"
	"github.com/ignatzorin/orderdesk-backend/internal/logger"
)

// Context ключи для gin.Context.
const (
	ContextUserIDKey = "userID"
	ContextRoleKey   = "role"
)

// AccessTokenParser извлекает пользователя и роль из access токена.
type AccessTokenParser interface {
	ParseAccess(token string) (uuid.UUID, string, error)
}

// AuthMiddleware проверяет JWT из заголовка Authorization.
func AuthMiddleware(tokens AccessTokenParser) gin.HandlerFunc {
	return authenticate(tokens, func(c *gin.Context) string {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			return ""
		}
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	})
}

// QueryTokenAuth принимает токен из параметра token: браузер не может передать
// заголовок при открытии WebSocket. Заголовок Authorization тоже поддерживается.
func QueryTokenAuth(tokens AccessTokenParser) gin.HandlerFunc {
	return authenticate(tokens, func(c *gin.Context) string {
		if t := c.Query("token"); t != "" {
			return t
		}
		auth := c.GetHeader("Authorization")
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	})
}

func authenticate(tokens AccessTokenParser, extract func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := extract(c)
		if raw == "" {
			response.Unauthorized(c, "требуется авторизация")
			c.Abort()
			return
		}

		userID, role, err := tokens.ParseAccess(raw)
		if err != nil || userID == uuid.Nil {
			if err != nil {
				logger.Log.WithFields(logrus.Fields{
					"path":  c.Request.URL.Path,
					"error": err.Error(),
				}).Debug("auth: токен отклонён")
			}
			response.Unauthorized(c, "токен невалиден")
			c.Abort()
			return
		}

		c.Set(ContextUserIDKey, userID)
		c.Set(ContextRoleKey, role)
		c.Next()
	}
}

// ActorFromContext возвращает пользователя, установленного AuthMiddleware.
func ActorFromContext(c *gin.Context) (valueobject.Actor, bool) {
	v, ok := c.Get(ContextUserIDKey)
	if !ok {
		return valueobject.Actor{}, false
	}
	userID, ok := v.(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return valueobject.Actor{}, false
	}
	return valueobject.Actor{ID: userID, Role: c.GetString(ContextRoleKey)}, true
}
