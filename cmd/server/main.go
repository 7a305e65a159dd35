package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/painscout/painscout/internal/config"
	"github.com/painscout/painscout/internal/identity"
	"github.com/painscout/painscout/internal/notifications"
	"github.com/painscout/painscout/internal/reports"
	"github.com/painscout/painscout/internal/scheduler"
	"github.com/painscout/painscout/internal/search"
	"github.com/painscout/painscout/internal/server"
	"github.com/painscout/painscout/internal/storage"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Info("Starting PainScout server")

	store, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		logrus.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	provider := search.NewSerpClient(cfg.SerpAPIKey, cfg.SerpEndpoint, cfg.SearchTimeout)
	dispatcher := search.NewDispatcher(provider)
	searchService := search.NewService(cfg, store, store, dispatcher)

	var reportService *reports.Service
	if cfg.OpenAIAPIKey != "" {
		llm := reports.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		reportService = reports.NewService(llm, store, notifications.NewService(cfg))
	} else {
		logrus.Warn("OPENAI_API_KEY not set, report generation disabled")
	}

	schedulerService := scheduler.NewService(store)
	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer schedulerService.Stop()

	handler := server.NewHandler(identity.NewStoreResolver(store), searchService, reportService)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      handler.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}
