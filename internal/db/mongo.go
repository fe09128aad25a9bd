package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/ignatzorin/orderdesk-backend/internal/pkg/retry"
)

const mongoPingTimeout = 5 * time.Second

// NewMongo подключается к MongoDB и проверяет соединение ping'ом.
func NewMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: некорректные параметры подключения: %w", err)
	}

	_, err = retry.Connect(ctx, "mongo", connectAttempts, func(ctx context.Context) (struct{}, error) {
		pingCtx, cancel := context.WithTimeout(ctx, mongoPingTimeout)
		defer cancel()
		return struct{}{}, client.Ping(pingCtx, readpref.Primary())
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: не удалось подключиться: %w", err)
	}
	return client, nil
}
