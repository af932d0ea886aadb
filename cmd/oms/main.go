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
	"go.uber.org/zap"

	"github.com/finclear/oms/internal/admission"
	"github.com/finclear/oms/internal/config"
	"github.com/finclear/oms/internal/database"
	"github.com/finclear/oms/internal/events"
	"github.com/finclear/oms/internal/orders"
	"github.com/finclear/oms/internal/server"
	"github.com/finclear/oms/internal/venue"
	"github.com/finclear/oms/pkg/logger"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Create logger
	var zapLogger *zap.Logger
	if cfg.Log.File != "" {
		zapLogger, err = logger.NewFileLogger(cfg.Log.Level, cfg.Log.File, cfg.Log.MaxSizeMB, cfg.Log.MaxBackups)
	} else {
		zapLogger, err = logger.NewLogger(cfg.Log.Level)
	}
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	// Connect to PostgreSQL
	db, err := database.NewPostgresDB(cfg.Database.DSN, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		zapLogger.Fatal("Failed to migrate schema", zap.Error(err))
	}

	// Report pool gauges periodically
	poolTicker := time.NewTicker(15 * time.Second)
	defer poolTicker.Stop()
	go func() {
		for range poolTicker.C {
			database.ReportPoolStats(db)
		}
	}()

	// Create the overload detector wired to the live process and pool
	detector := admission.NewDetector(cfg.Admission, db, zapLogger)

	// Create the venue client
	venueClient := venue.NewClient(cfg.Venue.BaseURL, cfg.Venue.Timeout, zapLogger)

	// Create the batch event publisher
	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.Kafka.Enabled {
		kafkaPublisher := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, zapLogger)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	}

	// Create the order service
	ordersSvc := orders.NewService(zapLogger, orders.NewRepository(db), venueClient, publisher)

	// Create and start the HTTP server
	srv := server.NewServer(zapLogger, ordersSvc, detector)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      srv.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		zapLogger.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		zapLogger.Error("Server shutdown failed", zap.Error(err))
	}
}
