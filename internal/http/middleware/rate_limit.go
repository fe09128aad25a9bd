package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/ignatzorin/orderdesk-backend/internal/interface/http/response"
	"github.com/ignatzorin/orderdesk-backend/internal/logger"
)

// RateLimitMiddleware ограничивает число запросов с одного IP.
// name разделяет счётчики разных групп маршрутов.
func RateLimitMiddleware(name string, limit int64, period time.Duration) gin.HandlerFunc {
	if limit <= 0 {
		limit = 100
	}
	if period <= 0 {
		period = time.Minute
	}

	store := memory.NewStoreWithOptions(limiter.StoreOptions{
		Prefix:          "orderdesk:" + name,
		CleanUpInterval: period,
	})
	instance := limiter.New(store, limiter.Rate{Period: period, Limit: limit})

	return func(c *gin.Context) {
		state, err := instance.Get(c.Request.Context(), c.ClientIP())
		if err != nil {
			// Ошибка хранилища лимитов не должна блокировать запросы.
			logger.Log.WithField("error", err.Error()).Error("rate limit: ошибка хранилища")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(state.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(state.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(state.Reset, 10))

		if state.Reached {
			logger.Log.WithFields(logrus.Fields{
				"ip":    c.ClientIP(),
				"group": name,
			}).Info("rate limit: превышен")
			response.TooManyRequests(c, "слишком много запросов, попробуйте позже")
			c.Abort()
			return
		}
		c.Next()
	}
}
