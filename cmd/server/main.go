package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/parley/chat-relay/internal/clock"
	"github.com/parley/chat-relay/internal/config"
	"github.com/parley/chat-relay/internal/httpapi"
	"github.com/parley/chat-relay/internal/message"
	"github.com/parley/chat-relay/internal/messaging"
	"github.com/parley/chat-relay/internal/participant"
	"github.com/parley/chat-relay/internal/relay"
	"github.com/parley/chat-relay/internal/sweep"
)

func main() {
	log.Println("Starting chat relay...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	clk := clock.System{}

	// --- Participant registry ---
	var registry participant.Registry
	if cfg.RedisAddr != "" {
		redisRegistry, err := participant.NewRedisRegistry(cfg.RedisAddr, clk)
		if err != nil {
			log.Fatalf("failed to connect to Redis: %v", err)
		}
		defer redisRegistry.Close()
		registry = redisRegistry
	} else {
		log.Println("[server] REDIS_ADDR not set, using in-memory registry")
		registry = participant.NewMemoryRegistry(clk)
	}

	// --- Message log ---
	var msgLog message.Log
	if cfg.DatabaseURL != "" {
		db, err := message.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to connect to Postgres: %v", err)
		}
		defer db.Close()
		if err := message.Migrate(db); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
		msgLog = message.NewPostgresLog(db, clk)
	} else {
		log.Println("[server] DATABASE_URL not set, using in-memory log")
		msgLog = message.NewMemoryLog(clk)
	}

	// --- Presence events ---
	var events *messaging.Publisher
	if cfg.NATSURL != "" {
		natsConfig := messaging.DefaultConfig()
		natsConfig.URL = cfg.NATSURL
		events, err = messaging.NewPublisher(natsConfig)
		if err != nil {
			log.Fatalf("failed to connect to NATS: %v", err)
		}
		defer events.Close()
	}

	svc := relay.NewService(registry, msgLog, events)

	sweeper := sweep.New(registry, msgLog, events, clk, cfg.SweepInterval, cfg.StaleThreshold)
	sweeper.Start()

	server := httpapi.New(cfg.ListenAddr, svc)

	log.Printf("Chat relay running")
	log.Printf("  listen_addr:     %s", cfg.ListenAddr)
	log.Printf("  redis_addr:      %s", orMemory(cfg.RedisAddr))
	log.Printf("  database_url:    %s", orMemory(cfg.DatabaseURL))
	log.Printf("  nats_url:        %s", orDisabled(cfg.NATSURL))
	log.Printf("  sweep_interval:  %s", cfg.SweepInterval)
	log.Printf("  stale_threshold: %s", cfg.StaleThreshold)

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("received signal %v, shutting down...", sig)

		sweeper.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Printf("shutdown error: %v", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}

func orMemory(v string) string {
	if v == "" {
		return "(in-memory)"
	}
	return v
}

func orDisabled(v string) string {
	if v == "" {
		return "(disabled)"
	}
	return v
}
