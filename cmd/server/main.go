package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/pmorev/giglance-backend/internal/config"
	"github.com/pmorev/giglance-backend/internal/db"
	"github.com/pmorev/giglance-backend/internal/events"
	"github.com/pmorev/giglance-backend/internal/gateway"
	httpHandlers "github.com/pmorev/giglance-backend/internal/http/handlers"
	httpRouter "github.com/pmorev/giglance-backend/internal/http/router"
	"github.com/pmorev/giglance-backend/internal/logger"
	"github.com/pmorev/giglance-backend/internal/repository"
	"github.com/pmorev/giglance-backend/internal/service"
	"github.com/pmorev/giglance-backend/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	// Инициализация логгера
	logLevel := "info"
	if cfg.Env == "development" {
		logLevel = "debug"
		logger.Init(logLevel)
		logger.SetTextFormatter()
	} else {
		logger.Init(logLevel)
	}

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: ошибка миграций: %v", err)
	}

	tokenManager := service.NewTokenManager(cfg.JWTSecret)
	gw := gateway.NewClient(cfg.GatewayBaseURL, cfg.GatewayKeyID, cfg.GatewayKeySecret, cfg.GatewayTimeout)

	// Репозитории.
	conversationRepo := repository.NewConversationRepository(dbConn)
	paymentRepo := repository.NewPaymentRepository(dbConn)
	walletRepo := repository.NewWalletRepository(dbConn)
	applicationRepo := repository.NewApplicationRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn)

	// Вебсокеты и публикация событий.
	notificationService := service.NewNotificationService(notificationRepo)
	hub := ws.NewHub(ctx)
	hub.SetNotificationSaver(ws.NewNotificationServiceAdapter(notificationService))
	go hub.Run()
	publisher := events.NewHubPublisher(hub)

	// Сервисы.
	negotiationService := service.NewNegotiationService(conversationRepo, publisher)
	walletService := service.NewWalletService(walletRepo, gw, publisher,
		cfg.Currency, cfg.PlatformAccountID, cfg.MinWithdrawalAmount)
	escrowService := service.NewEscrowService(paymentRepo, conversationRepo, walletService, gw, publisher,
		cfg.Currency, cfg.PlatformFeeRate, cfg.CommissionRate)
	applicationService := service.NewApplicationService(applicationRepo, publisher)

	// Фоновая очистка просроченных предложений.
	sweeper := service.NewNegotiationSweeper(negotiationService, cfg.NegotiationTTL, cfg.SweepInterval)
	sweeper.Run(ctx)

	// HTTP хэндлеры.
	conversationHandler := httpHandlers.NewConversationHandler(negotiationService)
	paymentHandler := httpHandlers.NewPaymentHandler(escrowService)
	walletHandler := httpHandlers.NewWalletHandler(walletService)
	withdrawalHandler := httpHandlers.NewWithdrawalHandler(walletService)
	gigHandler := httpHandlers.NewGigHandler(applicationService)
	notificationHandler := httpHandlers.NewNotificationHandler(notificationService)
	wsHandler := httpHandlers.NewWSHandler(hub, tokenManager)
	healthHandler := httpHandlers.NewHealthHandler(dbConn)

	// Роутер.
	engine := httpRouter.SetupRouter(cfg, conversationHandler, paymentHandler, walletHandler,
		withdrawalHandler, gigHandler, notificationHandler, wsHandler, healthHandler, tokenManager)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: engine,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: ошибка остановки http сервера: %v", err)
		}
	}()

	log.Printf("main: HTTP сервер запущен на порту %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: ошибка закрытия базы: %v", err)
	}
}
