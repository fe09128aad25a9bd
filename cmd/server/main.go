package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/ignatzorin/orderdesk-backend/internal/config"
	"github.com/ignatzorin/orderdesk-backend/internal/db"
	"github.com/ignatzorin/orderdesk-backend/internal/domain/repository"
	"github.com/ignatzorin/orderdesk-backend/internal/events"
	httpRouter "github.com/ignatzorin/orderdesk-backend/internal/http/router"
	"github.com/ignatzorin/orderdesk-backend/internal/http/middleware"
	"github.com/ignatzorin/orderdesk-backend/internal/infrastructure/mongostore"
	"github.com/ignatzorin/orderdesk-backend/internal/infrastructure/persistence"
	"github.com/ignatzorin/orderdesk-backend/internal/interface/http/handler"
	"github.com/ignatzorin/orderdesk-backend/internal/logger"
	"github.com/ignatzorin/orderdesk-backend/internal/metrics"
	"github.com/ignatzorin/orderdesk-backend/internal/service"
	"github.com/ignatzorin/orderdesk-backend/internal/storage"
	"github.com/ignatzorin/orderdesk-backend/internal/usecase/chat"
	"github.com/ignatzorin/orderdesk-backend/internal/usecase/order"
	"github.com/ignatzorin/orderdesk-backend/internal/ws"
)

const (
	readHeaderTimeout     = 10 * time.Second
	serverShutdownTimeout = 10 * time.Second
	stepShutdownTimeout   = 5 * time.Second
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	logger.Init(logger.Options{
		Level:      cfg.LogLevel,
		JSON:       cfg.IsProduction(),
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})

	// PostgreSQL: заказы, итоговые записи, каталог.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL, db.PoolOptions{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: 30 * time.Minute,
	})
	if err != nil {
		logger.Log.WithError(err).Fatal("main: ошибка подключения к PostgreSQL")
	}
	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		logger.Log.WithError(err).Fatal("main: ошибка миграций")
	}

	// MongoDB: сообщения чатов с TTL.
	mongoClient, err := db.NewMongo(ctx, cfg.MongoURI)
	if err != nil {
		logger.Log.WithError(err).Fatal("main: ошибка подключения к MongoDB")
	}
	chatStore := mongostore.NewChatStore(mongoClient.Database(cfg.MongoDBName))
	if err := chatStore.EnsureIndexes(ctx); err != nil {
		logger.Log.WithError(err).Fatal("main: не удалось создать индексы чата")
	}

	objects, err := storage.NewObjectStorage(cfg.ObjectStoragePath, cfg.ObjectStorageBaseURL)
	if err != nil {
		logger.Log.WithError(err).Fatal("main: не удалось подготовить файловое хранилище")
	}

	appMetrics := metrics.New(nil)
	publisher, closePublisher := buildPublisher(ctx, cfg, appMetrics)

	// Репозитории.
	orderRepo := persistence.NewOrderRepository(dbConn)
	finalizedRepo := persistence.NewFinalizedOrderRepository(dbConn)
	catalogRepo := persistence.NewCatalogRepository(dbConn)
	finalizer := persistence.NewFinalizer(dbConn)

	// Чат.
	hub := ws.NewHub(appMetrics.ChatConnections)
	chatService := chat.NewService(orderRepo, finalizedRepo, chatStore)
	pipeline := chat.NewPipeline(chatStore, objects, hub, appMetrics, cfg.MaxUploadBytes())

	// Сценарии заказов.
	orderHandler := handler.NewOrderHandler(handler.OrderUseCases{
		Create:          order.NewCreateOrderUseCase(orderRepo, catalogRepo, publisher),
		Get:             order.NewGetOrderUseCase(orderRepo),
		ListMine:        order.NewListMyOrdersUseCase(orderRepo),
		List:            order.NewListOrdersUseCase(orderRepo),
		ListFinalized:   order.NewListFinalizedUseCase(finalizedRepo),
		StartProcessing: order.NewStartProcessingUseCase(orderRepo, publisher),
		Complete:        order.NewCompleteOrderUseCase(orderRepo, publisher),
		PatchStatuses:   order.NewPatchStatusesUseCase(orderRepo, publisher),
		History:         order.NewGetStatusHistoryUseCase(orderRepo),
		UpdateOcr:       order.NewUpdateOcrDataUseCase(orderRepo),
		Approve:         order.NewApproveOrderUseCase(finalizer, publisher),
		Finalize:        order.NewFinalizeOrderUseCase(finalizer, publisher),
		Delete:          order.NewDeleteOrderUseCase(orderRepo, publisher),
		UploadDocument:  order.NewUploadDocumentUseCase(orderRepo, objects, cfg.MaxUploadBytes()),
	}, cfg.MaxUploadBytes())

	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL)

	engine := httpRouter.SetupRouter(cfg, httpRouter.Handlers{
		Order: orderHandler,
		Chat:  handler.NewChatHandler(chatService, pipeline, cfg.MaxUploadBytes()),
		WS: handler.NewWSHandler(hub, chatService, pipeline, handler.WSOptions{
			CheckOrigin: middleware.OriginAllowed(cfg.AllowedOrigins),
			RatePerSec:  cfg.ChatRatePerSecond,
			RateBurst:   cfg.ChatRateBurst,
		}),
		Health: handler.NewHealthHandler(map[string]handler.HealthCheck{
			"postgres": dbConn.PingContext,
			"mongo": func(ctx context.Context) error {
				return mongoClient.Ping(ctx, readpref.Primary())
			},
		}),
		Metrics: promhttp.Handler(),
	}, tokenManager, objects.Root())

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	var lifecycle conc.WaitGroup
	lifecycle.Go(func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.WithError(err).Error("main: HTTP сервер завершился с ошибкой")
			stop()
		}
	})
	logger.Log.WithFields(logrus.Fields{"port": cfg.HTTPPort, "env": cfg.Env}).Info("main: HTTP сервер запущен")

	<-ctx.Done()
	logger.Log.Info("main: получен сигнал остановки")

	shutdown(shutdownDeps{
		server:         server,
		lifecycle:      &lifecycle,
		hub:            hub,
		closePublisher: closePublisher,
		db:             dbConn,
		mongo:          mongoClient,
	})
}

// buildPublisher подключает RabbitMQ. Без RABBIT_URL события не отправляются.
func buildPublisher(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (repository.EventPublisher, func() error) {
	if cfg.RabbitURL == "" {
		logger.Log.Info("main: RABBIT_URL не задан, события заказов не публикуются")
		return metrics.InstrumentPublisher(events.NopPublisher{}, m), func() error { return nil }
	}

	rabbit, err := events.NewRabbitPublisher(ctx, cfg.RabbitURL, cfg.OrderEventsExchange)
	if err != nil {
		logger.Log.WithError(err).Fatal("main: ошибка подключения к RabbitMQ")
	}
	return metrics.InstrumentPublisher(rabbit, m), rabbit.Close
}

type shutdownDeps struct {
	server         *http.Server
	lifecycle      *conc.WaitGroup
	hub            *ws.Hub
	closePublisher func() error
	db             *sqlx.DB
	mongo          *mongo.Client
}

func shutdown(deps shutdownDeps) {
	step := func(name string, timeout time.Duration, fn func(context.Context) error) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			logger.Log.WithError(err).Warnf("shutdown: %s не удалось", name)
			return
		}
		logger.Log.Infof("shutdown: %s выполнено", name)
	}

	step("остановка HTTP сервера", serverShutdownTimeout, deps.server.Shutdown)

	// WebSocket соединения перехвачены у сервера, Shutdown их не закрывает.
	step("закрытие соединений чата", stepShutdownTimeout, func(context.Context) error {
		deps.hub.CloseAll()
		return nil
	})

	step("ожидание фоновых горутин", stepShutdownTimeout, func(ctx context.Context) error {
		done := make(chan struct{})
		go func() {
			deps.lifecycle.Wait()
			close(done)
		}()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return fmt.Errorf("горутины не завершились: %w", ctx.Err())
		}
	})

	step("закрытие RabbitMQ", stepShutdownTimeout, func(context.Context) error {
		return deps.closePublisher()
	})
	step("отключение MongoDB", stepShutdownTimeout, deps.mongo.Disconnect)
	step("закрытие PostgreSQL", stepShutdownTimeout, func(context.Context) error {
		return deps.db.Close()
	})
}
