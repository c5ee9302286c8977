package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"

	"github.com/wadjakorntonsri/go-link-analytics/pkg/adapters/cache"
	"github.com/wadjakorntonsri/go-link-analytics/pkg/adapters/handler"
	"github.com/wadjakorntonsri/go-link-analytics/pkg/adapters/repository"
	"github.com/wadjakorntonsri/go-link-analytics/pkg/config"
	"github.com/wadjakorntonsri/go-link-analytics/pkg/core/services"
)

func main() {
	cfg := config.Load()

	// Initialize Repository
	repo, err := repository.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if repo == nil {
		log.Println("DATABASE_URL=memory: links will not survive a restart")
	}

	// Snapshot cache: Redis when configured, otherwise in-process
	snapshots, closeCache := cache.Open(cfg.RedisURL, cfg.CacheTTL)

	// Initialize Service
	service := services.NewLinkService(repo, services.Options{
		Cache:       snapshots,
		CodeLength:  cfg.CodeLength,
		BucketWidth: cfg.BucketWidth,
	})
	if err := service.Recover(context.Background()); err != nil {
		log.Fatalf("Failed to load links: %v", err)
	}

	// Initialize Router
	mux := handler.NewRouter(cfg, service)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handlers.CombinedLoggingHandler(os.Stdout, mux),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %s (%s)", cfg.Port, cfg.AppEnv)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("server shutdown: %v", err)
	}

	closeCache()
	if repo != nil {
		_ = repo.Close()
	}
	log.Println("server gracefully stopped")
}
