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

	"lotbid/internal/api/handlers"
	"lotbid/internal/config"
	"lotbid/internal/infrastructure/mysql"
	"lotbid/internal/infrastructure/redis"
	"lotbid/internal/infrastructure/websocket"
	"lotbid/internal/services"
	"lotbid/pkg/logger"
	"lotbid/pkg/utils"

	redisClient "github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewWithLevel(cfg.Log.Level)
	log.Info("Starting lot service", "config", cfg.String())

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
	db := utils.InitializeMysql(ctx, cfg, log)
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close MySQL connection", "error", err)
		}
	}()
	log.Info("Connected to MySQL")

	// Repositories
	lotRepo := mysql.NewMySQLLotRepository(db)
	bidRepo := mysql.NewMySQLBidRepository(db)
	historyRepo := mysql.NewMySQLBidHistoryRepository(db)
	bandRepo := mysql.NewMySQLIncrementBandRepository(db)
	passedRepo := mysql.NewMySQLPassedLotRepository(db)
	schedulerRepo := mysql.NewMySQLSchedulerRepository(db)
	ledger := mysql.NewMySQLResolutionLedger(db)

	// Redis based components
	stateCache := redis.NewRedisStateCache(rdb)
	eventPublisher := redis.NewEventPublisher(rdb)
	eventSubscriber := redis.NewRedisEventSubscriber(rdb, log)
	lotLocker := redis.NewRedisLotLocker(rdb, cfg.Lock.TTL)

	// Services
	lotManager := services.NewLotManager(lotRepo, stateCache, nil, log)
	settlement := services.NewSettlementService(
		lotRepo, bidRepo, bandRepo, passedRepo,
		lotLocker, eventPublisher, stateCache,
		nil, // settlement leadership is the settlement service's concern
		cfg.Instance.ID, log,
	)
	scheduler := services.NewCronLotScheduler(schedulerRepo, lotManager, settlement, log)
	lotManager.SetScheduler(scheduler)

	bidService := services.NewBidService(
		lotRepo, bidRepo, historyRepo, bandRepo,
		ledger, stateCache, lotLocker, eventPublisher, scheduler,
		cfg.Auction.SoftCloseWindow, log,
	)

	// WebSocket fan-out
	connManager := websocket.NewConnectionManager(log)
	broadcaster := websocket.NewWebSocketNotifier(connManager)
	eventListener := services.NewEventListener(connManager, broadcaster, log)

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestID())
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: `{"time":"${time_rfc3339}","id":"${id}","remote_ip":"${remote_ip}","host":"${host}","method":"${method}","uri":"${uri}","user_agent":"${user_agent}","status":${status},"error":"${error}","latency":${latency},"latency_human":"${latency_human}","bytes_in":${bytes_in},"bytes_out":${bytes_out}}` + "\n",
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			echo.GET, echo.HEAD, echo.PUT, echo.PATCH,
			echo.POST, echo.DELETE, echo.OPTIONS,
		},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			echo.HeaderXRequestedWith,
		},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Handlers
	lotHandler := handlers.NewLotHandler(lotManager, bidService, log)
	incrementHandler := handlers.NewIncrementHandler(bandRepo, log)
	wsHandlers := handlers.NewWebSocketHandlers(bidService, lotRepo, connManager, log)

	api := e.Group("/api/v1")
	api.POST("/lots", lotHandler.CreateLot)
	api.GET("/lots/:id", lotHandler.GetLot)
	api.GET("/lots/:id/price", lotHandler.GetLotPrice)
	api.GET("/lots/:id/history", lotHandler.GetLotHistory)
	api.POST("/lots/:id/bids", lotHandler.PlaceBid)
	api.DELETE("/lots/:id/bids/:bidID", lotHandler.CancelBid)
	api.POST("/lots/:id/reset", lotHandler.ResetLot)
	api.GET("/stores/:storeID/increments", incrementHandler.GetBands)
	api.PUT("/stores/:storeID/increments", incrementHandler.ReplaceBands)

	e.GET("/ws/lots/:id", wsHandlers.HandleConnection)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":    "ok",
			"service":   "lot-service",
			"timestamp": time.Now().Format(time.RFC3339),
			"port":      cfg.Server.Port,
			"version":   "1.0.0",
		})
	})

	// Background services
	listenerCtx, stopListener := context.WithCancel(context.Background())
	defer stopListener()
	go func() {
		if err := eventListener.Start(listenerCtx, eventSubscriber); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Event listener stopped", "error", err)
		}
	}()
	go func() {
		if err := scheduler.Start(context.Background()); err != nil {
			log.Error("Failed to start scheduler", "error", err)
		}
	}()

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("Starting lot service server", "address", serverAddr)

	go func() {
		if err := e.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down lot service...")

	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stopListener()
	if err := scheduler.Stop(); err != nil {
		log.Error("Failed to stop scheduler", "error", err)
	}
	if err := e.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Lot service stopped")
}
