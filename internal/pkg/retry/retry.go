package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/orderdesk-backend/internal/logger"
)

const maxInterval = 10 * time.Second

// Connect повторяет fn с экспоненциальной задержкой, пока она не вернёт nil,
// не закончатся попытки или не отменят ctx. Используется при подключении к брокеру и базам.
func Connect[T any](ctx context.Context, name string, attempts int, fn func(ctx context.Context) (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.MaxInterval = maxInterval

	var zero T
	for attempt := 1; ; attempt++ {
		res, err := fn(ctx)
		if err == nil {
			return res, nil
		}
		if attempt >= attempts {
			return zero, err
		}

		sleep := b.NextBackOff()
		if sleep == backoff.Stop {
			sleep = maxInterval
		}
		logger.Log.WithFields(logrus.Fields{
			"target":  name,
			"attempt": attempt,
			"retry":   sleep.String(),
			"error":   err.Error(),
		}).Warn("не удалось подключиться, повторяем")

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(sleep):
		}
	}
}
