package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/orderdesk-backend/internal/interface/http/response"
	"github.com/ignatzorin/orderdesk-backend/internal/logger"
	"github.com/ignatzorin/orderdesk-backend/internal/pkg/apperror"
)

// ErrorHandler обрабатывает ошибки, добавленные через c.Error, если обработчик
// сам не записал ответ. Детали инфраструктурных ошибок клиенту не отдаются.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		LogRequestError(c, err)
		response.Error(c, err)
	}
}

// LogRequestError пишет в лог ошибку запроса. Ошибки клиента пишутся на уровне Info,
// ошибки хранилищ и неизвестные ошибки на уровне Error.
func LogRequestError(c *gin.Context, err error) {
	fields := logrus.Fields{
		"path":   c.Request.URL.Path,
		"method": c.Request.Method,
		"error":  err.Error(),
	}
	if actor, ok := ActorFromContext(c); ok {
		fields["user_id"] = actor.ID
	}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) && !apperror.IsInfrastructure(err) {
		logger.Log.WithFields(fields).Info("request: отклонён")
		return
	}
	logger.Log.WithFields(fields).Error("request: ошибка")
}

// Recovery перехватывает панику обработчика и отвечает 500.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Log.WithFields(logrus.Fields{
					"path":  c.Request.URL.Path,
					"panic": r,
					"stack": string(debug.Stack()),
				}).Error("request: паника в обработчике")
				if !c.Writer.Written() {
					response.Error(c, apperror.New(apperror.ErrCodeInternal, "внутренняя ошибка сервера"))
				}
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}

// RequestLogger пишет одну строку на запрос.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.Log.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     c.Writer.Status(),
			"ip":         c.ClientIP(),
			"latency_ms": time.Since(start).Milliseconds(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("http запрос")
			return
		}
		entry.Debug("http запрос")
	}
}
