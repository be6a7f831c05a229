package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lotbid/internal/config"
	"lotbid/internal/infrastructure/leader"
	"lotbid/internal/infrastructure/mysql"
	"lotbid/internal/infrastructure/redis"
	"lotbid/internal/services"
	"lotbid/pkg/logger"
	"lotbid/pkg/utils"

	redisClient "github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
)

// The settlement sweep runs on every instance but only the elected leader
// actually settles, so running replicas is safe.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewWithLevel(cfg.Log.Level)
	log.Info("Starting settlement service", "instance_id", cfg.Instance.ID)

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

	db := utils.InitializeMysql(ctx, cfg, log)
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close MySQL connection", "error", err)
		}
	}()
	log.Info("Connected to MySQL")

	lotRepo := mysql.NewMySQLLotRepository(db)
	bidRepo := mysql.NewMySQLBidRepository(db)
	bandRepo := mysql.NewMySQLIncrementBandRepository(db)
	passedRepo := mysql.NewMySQLPassedLotRepository(db)

	stateCache := redis.NewRedisStateCache(rdb)
	eventPublisher := redis.NewEventPublisher(rdb)
	lotLocker := redis.NewRedisLotLocker(rdb, cfg.Lock.TTL)
	leaderElection := leader.NewRedisLeaderElection(rdb, cfg.Leader.TTL)

	settlement := services.NewSettlementService(
		lotRepo, bidRepo, bandRepo, passedRepo,
		lotLocker, eventPublisher, stateCache, leaderElection,
		cfg.Instance.ID, log,
	)

	runCtx, stop := context.WithCancel(context.Background())
	defer stop()

	// Keep trying for leadership; BecomeLeader maintains its own heartbeat
	// once acquired.
	go func() {
		for {
			select {
			case <-runCtx.Done():
				return
			default:
			}

			became, err := leaderElection.BecomeLeader(runCtx, cfg.Instance.ID)
			if err != nil {
				log.Error("Failed to attempt leadership", "error", err)
				time.Sleep(5 * time.Second)
				continue
			}
			if became {
				log.Info("Became settlement leader", "instance_id", cfg.Instance.ID)
			}
			time.Sleep(10 * time.Second)
		}
	}()

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := settlement.SettleEndedLots(runCtx, cfg.Auction.StoreID); err != nil {
					log.Error("Settlement sweep failed", "error", err)
				}
			case <-runCtx.Done():
				return
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down settlement service...")
	stop()

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := leaderElection.ReleaseLeadership(ctx, cfg.Instance.ID); err != nil {
		log.Error("Failed to release leadership", "error", err)
	}

	log.Info("Settlement service stopped")
}
