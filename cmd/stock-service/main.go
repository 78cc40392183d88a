package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/hospilog/hospilog-backend/internal/stock/consumers"
	"github.com/hospilog/hospilog-backend/internal/stock/events"
	"github.com/hospilog/hospilog-backend/internal/stock/handler"
	"github.com/hospilog/hospilog-backend/internal/stock/repository"
	"github.com/hospilog/hospilog-backend/internal/stock/service"
	"github.com/hospilog/hospilog-backend/pkg/config"
	"github.com/hospilog/hospilog-backend/pkg/database"
	"github.com/hospilog/hospilog-backend/pkg/httputil"
	"github.com/hospilog/hospilog-backend/pkg/logger"
	"github.com/hospilog/hospilog-backend/pkg/messaging"
)

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation("stock-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("stock-service", cfg.Server.Environment)
	log.Info().Msg("starting Stock Service")

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Connect to RabbitMQ
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	// Initialize event publisher
	publisher, err := events.NewStockEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	// Initialize repositories
	itemRepo := repository.NewItemRepository(db)
	locationRepo := repository.NewLocationRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	moveRepo := repository.NewMoveRepository(db)
	issueRepo := repository.NewIssueRepository(db)
	transferRepo := repository.NewTransferRepository(db)
	thresholdRepo := repository.NewThresholdRepository(db)
	alertRepo := repository.NewAlertRepository(db)

	// Initialize services
	ledgerService := service.NewLedgerService(db, moveRepo, batchRepo, itemRepo, locationRepo, publisher, log)
	allocatorService := service.NewAllocatorService(db, batchRepo, moveRepo, issueRepo, transferRepo, itemRepo, locationRepo, publisher, log)
	levelsService := service.NewLevelsService(batchRepo, moveRepo, itemRepo, log)
	catalogService := service.NewCatalogService(itemRepo, locationRepo, thresholdRepo, log)
	monitorService := service.NewMonitorService(itemRepo, batchRepo, moveRepo, thresholdRepo, alertRepo, publisher, log, cfg.Monitor.ExpiryHorizonDays)

	// Initialize handlers
	moveHandler := handler.NewMoveHandler(ledgerService, log)
	issueHandler := handler.NewIssueHandler(allocatorService, log)
	transferHandler := handler.NewTransferHandler(allocatorService, log)
	levelHandler := handler.NewLevelHandler(levelsService, log)
	itemHandler := handler.NewItemHandler(catalogService, log)
	locationHandler := handler.NewLocationHandler(catalogService, log)
	thresholdHandler := handler.NewThresholdHandler(catalogService, log)
	alertHandler := handler.NewAlertHandler(monitorService, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start receipt event consumer
	receiptConsumer, err := consumers.NewReceiptEventConsumer(rmq, ledgerService, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create receipt event consumer")
	}
	if err := receiptConsumer.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start receipt event consumer")
	}

	// Start the low-stock / expiry monitor
	var scheduler *service.MonitorScheduler
	if cfg.Monitor.Enabled {
		scheduler = service.NewMonitorScheduler(monitorService, cfg.Monitor.ScanInterval, log)
		scheduler.Start(ctx)
	}

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "stock-service",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})

	// API routes
	r.Route("/api/v1/stock", func(r chi.Router) {
		r.Route("/moves", func(r chi.Router) {
			r.Get("/", moveHandler.List)
			r.Post("/", moveHandler.Record)
			r.Get("/{id}", moveHandler.Get)
		})

		r.Route("/issues", func(r chi.Router) {
			r.Get("/", issueHandler.List)
			r.Post("/", issueHandler.Create)
			r.Get("/{id}", issueHandler.Get)
		})

		r.Route("/transfers", func(r chi.Router) {
			r.Get("/", transferHandler.List)
			r.Post("/", transferHandler.Create)
			r.Get("/{id}", transferHandler.Get)
		})

		r.Get("/levels", levelHandler.List)
		r.Get("/batches/expiring", levelHandler.Expiring)

		r.Route("/items", func(r chi.Router) {
			r.Get("/", itemHandler.List)
			r.Post("/", itemHandler.Create)
			r.Get("/{id}", itemHandler.Get)
			r.Put("/{id}", itemHandler.Update)
			r.Delete("/{id}", itemHandler.Delete)
			r.Get("/{id}/batches", levelHandler.ListBatches)
			r.Get("/{id}/audit", levelHandler.Audit)
		})

		r.Route("/locations", func(r chi.Router) {
			r.Get("/", locationHandler.List)
			r.Post("/", locationHandler.Create)
			r.Get("/{id}", locationHandler.Get)
			r.Put("/{id}", locationHandler.Update)
			r.Delete("/{id}", locationHandler.Delete)
		})

		r.Route("/thresholds", func(r chi.Router) {
			r.Get("/", thresholdHandler.List)
			r.Post("/", thresholdHandler.Create)
			r.Get("/{id}", thresholdHandler.Get)
			r.Put("/{id}", thresholdHandler.Update)
			r.Delete("/{id}", thresholdHandler.Delete)
		})

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", alertHandler.List)
			r.Post("/scan", alertHandler.Scan)
			r.Put("/{id}/resolve", alertHandler.Resolve)
		})
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Stop the monitor and consumers
	if scheduler != nil {
		scheduler.Stop()
	}
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
