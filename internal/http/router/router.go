package router

import (
	"github.com/gin-gonic/gin"

	"github.com/pmorev/giglance-backend/internal/config"
	"github.com/pmorev/giglance-backend/internal/http/handlers"
	"github.com/pmorev/giglance-backend/internal/http/middleware"
	"github.com/pmorev/giglance-backend/internal/service"
)

func SetupRouter(
	cfg *config.Config,
	conversationHandler *handlers.ConversationHandler,
	paymentHandler *handlers.PaymentHandler,
	walletHandler *handlers.WalletHandler,
	withdrawalHandler *handlers.WithdrawalHandler,
	gigHandler *handlers.GigHandler,
	notificationHandler *handlers.NotificationHandler,
	wsHandler *handlers.WSHandler,
	healthHandler *handlers.HealthHandler,
	tokenManager *service.TokenManager,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)

	api := r.Group("/api")

	// Публичные маршруты
	api.GET("/ws", wsHandler.Handle)

	// Вебхук шлюза аутентифицируется подписью в теле, не JWT.
	webhookRateLimit := middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod)
	api.POST("/payments/webhook", webhookRateLimit, paymentHandler.GatewayWebhook)

	// Защищённые маршруты
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	{
		protected.POST("/conversations", conversationHandler.StartConversation)
		protected.GET("/conversations/my", conversationHandler.ListMyConversations)
		protected.GET("/conversations/:id", middleware.UUIDValidator("id"), conversationHandler.GetConversation)
		protected.POST("/conversations/:id/proposals", middleware.UUIDValidator("id"), conversationHandler.Propose)
		protected.GET("/conversations/:id/proposals", middleware.UUIDValidator("id"), conversationHandler.History)
		protected.POST("/conversations/:id/proposals/accept", middleware.UUIDValidator("id"), conversationHandler.Accept)
		protected.POST("/conversations/:id/proposals/reject", middleware.UUIDValidator("id"), conversationHandler.Reject)
		protected.GET("/conversations/:id/payments", middleware.UUIDValidator("id"), paymentHandler.ListConversationPayments)
		protected.GET("/conversations/:id/payments/quote", middleware.UUIDValidator("id"), paymentHandler.Quote)

		protected.POST("/payments", paymentHandler.InitiatePayment)
		protected.GET("/payments/:id", middleware.UUIDValidator("id"), paymentHandler.GetPayment)
		protected.POST("/payments/:id/refund", middleware.UUIDValidator("id"), paymentHandler.Refund)
		protected.POST("/payments/:id/release", middleware.UUIDValidator("id"), paymentHandler.Release)

		protected.GET("/wallet", walletHandler.GetWallet)
		protected.GET("/wallet/transactions", walletHandler.ListTransactions)

		protected.POST("/withdrawals", withdrawalHandler.CreateWithdrawal)
		protected.GET("/withdrawals", withdrawalHandler.ListWithdrawals)
		protected.POST("/withdrawals/:id/complete", middleware.UUIDValidator("id"), withdrawalHandler.CompleteWithdrawal)
		protected.POST("/withdrawals/:id/reject", middleware.UUIDValidator("id"), withdrawalHandler.RejectWithdrawal)

		protected.POST("/gigs", gigHandler.CreateGig)
		protected.POST("/gigs/:id/applications", middleware.UUIDValidator("id"), gigHandler.Apply)
		protected.GET("/gigs/:id/applications", middleware.UUIDValidator("id"), gigHandler.ListApplications)
		protected.GET("/applications/:id", middleware.UUIDValidator("id"), gigHandler.GetApplication)
		protected.POST("/applications/:id/accept", middleware.UUIDValidator("id"), gigHandler.AcceptApplication)
		protected.POST("/applications/:id/reject", middleware.UUIDValidator("id"), gigHandler.RejectApplication)
		protected.POST("/applications/:id/deliveries", middleware.UUIDValidator("id"), gigHandler.SubmitDelivery)

		protected.GET("/notifications", notificationHandler.ListNotifications)
		protected.GET("/notifications/unread/count", notificationHandler.CountUnread)
		protected.GET("/notifications/:id", middleware.UUIDValidator("id"), notificationHandler.GetNotification)
		protected.PUT("/notifications/:id/read", middleware.UUIDValidator("id"), notificationHandler.MarkAsRead)
		protected.PUT("/notifications/read-all", notificationHandler.MarkAllAsRead)
	}

	return r
}
