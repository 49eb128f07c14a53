package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	redisClient "github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"autobidder/internal/api/handlers"
	"autobidder/internal/auction"
	"autobidder/internal/config"
	"autobidder/internal/domain"
	"autobidder/internal/infrastructure/mysql"
	redisInfra "autobidder/internal/infrastructure/redis"
	ws "autobidder/internal/infrastructure/websocket"
	"autobidder/internal/notification"
	"autobidder/internal/seo"
	"autobidder/internal/services"
	"autobidder/pkg/logger"
	"autobidder/pkg/utils"
)

func main() {
	log := logger.New()
	log.Info("Starting Autobidder Service")

	cfg, err := config.Load()
	if err != nil {
		log.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize Redis
	rdb := redisClient.NewClient(&redisClient.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to Redis", "address", cfg.Redis.Address)

	// Initialize MySQL
	db := utils.InitializeMysql(cfg, log, ctx)
	defer db.Close()

	// Repositories
	domainRepo := mysql.NewMySQLDomainRepository(db)
	betRepo := mysql.NewMySQLBetRepository(db)
	seoRepo := mysql.NewMySQLSeoMetricsRepository(db)

	// Redis based components
	sweepLock := redisInfra.NewRedisSweepLock(rdb, cfg.Bidding.SweepLockTTL)
	escalationCache := redisInfra.NewRedisEscalationCache(rdb, cfg.Bidding.EscalationTTL)
	eventPublisher := redisInfra.NewEventPublisher(rdb)
	eventSubscriber := redisInfra.NewRedisEventSubscriber(rdb, log)

	biddingRules := services.NewBiddingRuleDao(rdb)
	if err := biddingRules.LoadRules(ctx); err != nil {
		log.Error("Failed to load bidding rules", "error", err)
		os.Exit(1)
	}

	// Auction site gateway, one shared authenticated session
	voodooClient := auction.NewClient(cfg.Voodoo, log)
	pageParser := auction.NewParser(log)

	// Operator channel; disabled when no token is configured
	var notifier domain.EscalationNotifier
	telegramNotifier := notification.NewTelegramNotifier(cfg.Telegram, biddingRules, log)
	if telegramNotifier != nil {
		notifier = telegramNotifier
	}

	processor, err := services.NewBidProcessor(
		betRepo,
		voodooClient,
		pageParser,
		notifier,
		eventPublisher,
		escalationCache,
		biddingRules,
		sweepLock,
		cfg.Bidding,
		log,
	)
	if err != nil {
		log.Error("Failed to initialize bid processor", "error", err)
		os.Exit(1)
	}

	catalog, err := services.NewCatalogParser(voodooClient, domainRepo, sweepLock, cfg.Bidding, log)
	if err != nil {
		log.Error("Failed to initialize catalog parser", "error", err)
		os.Exit(1)
	}

	ahrefsClient := seo.NewClient(seo.DefaultBaseURL, cfg.Ahrefs.Token, log)
	seoUpdater := seo.NewUpdater(ahrefsClient, domainRepo, seoRepo, cfg.Ahrefs.Concurrency, log)

	scheduler := services.NewSweepScheduler(processor, catalog, seoUpdater, cfg.Bidding, log)

	// Live decision feed: redis pub/sub in, websocket clients out
	feed := ws.NewDecisionFeed(log)

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	go func() {
		err := eventSubscriber.SubscribeToDecisionEvents(rootCtx, func(event *domain.DecisionEvent) error {
			return feed.Broadcast(event)
		})
		if err != nil {
			log.Error("Decision event subscription ended", "error", err)
		}
	}()

	// Operator answers come in over Telegram long polling
	dispatcher := notification.NewDispatcher(cfg.Telegram, betRepo, escalationCache, processor, log)
	if dispatcher != nil {
		go dispatcher.Run(rootCtx)
	}

	if err := scheduler.Start(rootCtx); err != nil {
		log.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			echo.GET, echo.HEAD, echo.PUT, echo.PATCH,
			echo.POST, echo.DELETE, echo.OPTIONS,
		},
	}))

	betHandler := handlers.NewBetHandler(betRepo, domainRepo, processor, catalog, log)
	wsHandler := handlers.NewWebSocketHandler(feed, log)

	api := e.Group("/api/v1")
	api.POST("/bets", betHandler.ClaimBet)
	api.GET("/bets", betHandler.ListBets)
	api.PUT("/bets/:domain_id", betHandler.UpdateMaxBet)
	api.DELETE("/bets/:domain_id", betHandler.DeleteBet)
	api.POST("/sweeps", betHandler.TriggerSweep)
	api.POST("/catalog/refresh", betHandler.RefreshCatalog)

	e.GET("/ws/decisions", wsHandler.HandleFeed)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":    "ok",
			"service":   "autobidder",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("Starting autobidder server", "address", serverAddr)

	go func() {
		if err := e.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down autobidder service...")
	rootCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := scheduler.Stop(); err != nil {
		log.Error("Failed to stop scheduler", "error", err)
	}
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Autobidder service stopped")
}
