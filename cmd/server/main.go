package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trogers1052/portfolio-ledger/internal/api"
	"github.com/trogers1052/portfolio-ledger/internal/config"
	"github.com/trogers1052/portfolio-ledger/internal/database"
	"github.com/trogers1052/portfolio-ledger/internal/flexquery"
	"github.com/trogers1052/portfolio-ledger/internal/kafka"
	"github.com/trogers1052/portfolio-ledger/internal/models"
	"github.com/trogers1052/portfolio-ledger/internal/pricing"
	"github.com/trogers1052/portfolio-ledger/internal/secrets"
	syncer "github.com/trogers1052/portfolio-ledger/internal/sync"
)

func main() {
	cfg := config.Load()

	// Database
	db, err := database.New(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.RunMigrations("db/migrations"); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations applied")

	// Credential store
	creds, err := secrets.NewAESStore(cfg.Secrets.EncryptionKey)
	if err != nil {
		log.Fatalf("Failed to initialize credential store: %v", err)
	}

	// Price source with Redis cache
	var prices pricing.Source
	if cfg.Polygon.APIKey != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		prices = pricing.NewCachedSource(
			pricing.NewPolygonSource(cfg.Polygon.APIKey),
			redisClient,
			cfg.Redis.PriceTTL,
		)
	} else {
		log.Println("No market data API key configured, positions will not be marked")
	}

	// Broker adapters
	flexClient := flexquery.NewClient(
		cfg.Flex.BaseURL,
		cfg.Flex.Token,
		cfg.Flex.QueryID,
		flexquery.WithPolling(cfg.Flex.PollInterval, cfg.Flex.PollAttempts),
	)
	adapters := map[string]syncer.Adapter{
		models.BrokerIBKR:      syncer.NewStatementAdapter(flexClient, db, prices),
		models.BrokerRobinhood: syncer.NewSnapshotAdapter(syncer.NewHTTPLiveClient("https://api.robinhood.com", nil), db, creds),
	}

	// Kafka producer for sync results
	producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.ResultsTopic)
	defer producer.Close()

	orchestrator := syncer.NewOrchestrator(db, adapters, producer, cfg.Sync.Timeout, cfg.Sync.MaxConcurrency)

	// Kafka consumer for sync requests
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.SyncTopic, cfg.Kafka.GroupID, orchestrator)
	go func() {
		if err := consumer.Start(ctx); err != nil {
			log.Printf("Kafka consumer stopped: %v", err)
		}
	}()

	// HTTP server
	handler := api.NewHandler(db, orchestrator, creds)
	router := api.SetupRoutes(handler)

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("Server stopped")
}
