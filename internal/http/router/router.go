package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/orderdesk-backend/internal/config"
	"github.com/ignatzorin/orderdesk-backend/internal/http/middleware"
	"github.com/ignatzorin/orderdesk-backend/internal/interface/http/handler"
)

// Handlers groups the handlers mounted by SetupRouter.
type Handlers struct {
	Order   *handler.OrderHandler
	Chat    *handler.ChatHandler
	WS      *handler.WSHandler
	Health  *handler.HealthHandler
	Metrics http.Handler
}

func SetupRouter(cfg *config.Config, h Handlers, tokens middleware.AccessTokenParser, mediaRoot string) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", h.Health.Health)
	if h.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.Metrics))
	}
	if mediaRoot != "" {
		r.StaticFS("/media", http.Dir(mediaRoot))
	}

	api := r.Group("/api")

	// Токен WebSocket приходит в query, поэтому у маршрута своя авторизация.
	api.GET("/chat/ws", middleware.QueryTokenAuth(tokens), h.WS.Connect)

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(tokens))
	protected.Use(middleware.RateLimitMiddleware("api", cfg.RateLimitLimit, cfg.RateLimitPeriod))

	orders := protected.Group("/orders")
	{
		orders.POST("", h.Order.CreateOrder)
		orders.GET("/mine", h.Order.ListMyOrders)
		orders.GET("/finalized/mine", h.Order.ListMyFinalized)
		orders.GET("/:id", middleware.UUIDValidator("id"), h.Order.GetOrder)
		orders.GET("/:id/history", middleware.UUIDValidator("id"), h.Order.GetStatusHistory)
		orders.GET("/:id/chat", middleware.UUIDValidator("id"), h.Chat.History)
		orders.POST("/:id/documents", middleware.UUIDValidator("id"), h.Order.UploadDocument)
		orders.POST("/:id/finalize", middleware.UUIDValidator("id"), h.Order.FinalizeOrder)
	}

	admin := protected.Group("/admin")
	admin.Use(middleware.AdminOnly())
	{
		admin.GET("/orders", h.Order.ListOrders)
		admin.GET("/orders/finalized", h.Order.ListFinalized)
		admin.POST("/orders/:id/start", middleware.UUIDValidator("id"), h.Order.StartProcessing)
		admin.POST("/orders/:id/complete", middleware.UUIDValidator("id"), h.Order.CompleteOrder)
		admin.PATCH("/orders/:id/status", middleware.UUIDValidator("id"), h.Order.PatchStatus)
		admin.PATCH("/orders/:id/ocr", middleware.UUIDValidator("id"), h.Order.UpdateOcrData)
		admin.POST("/orders/:id/approve", middleware.UUIDValidator("id"), h.Order.ApproveOrder)
		admin.DELETE("/orders/:id", middleware.UUIDValidator("id"), h.Order.DeleteOrder)

		admin.POST("/chat/:orderId/upload", middleware.UUIDValidator("orderId"), h.Chat.Upload)
		admin.GET("/chat/messages", h.Chat.AllMessages)
		admin.GET("/chat/active", h.Chat.ActiveRooms)
		admin.DELETE("/chat/messages/:messageId", h.Chat.DeleteMessage)
	}

	return r
}
