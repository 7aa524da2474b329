package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ksbdigital/be-spend-approvals/internal/client"
	"github.com/ksbdigital/be-spend-approvals/internal/config"
	"github.com/ksbdigital/be-spend-approvals/internal/database"
	"github.com/ksbdigital/be-spend-approvals/internal/handler"
	"github.com/ksbdigital/be-spend-approvals/internal/logger"
	"github.com/ksbdigital/be-spend-approvals/internal/repository"
	"github.com/ksbdigital/be-spend-approvals/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Environment: cfg.Service.Environment,
		ServiceName: cfg.Service.Name,
		Version:     cfg.Service.Version,
	})

	log.Info().
		Str("service", cfg.Service.Name).
		Str("version", cfg.Service.Version).
		Str("environment", cfg.Service.Environment).
		Msg("Starting Spend Approvals Service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := database.New(ctx, database.Config{
		DSN:      cfg.Database.DSN(),
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("Database connection established")

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	departmentRepo := repository.NewDepartmentRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	vendorRepo := repository.NewVendorRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	redirectionRepo := repository.NewRedirectionRepository(db)
	regionalRepo := repository.NewRegionalRepository(db)
	adjudicationRepo := repository.NewAdjudicationRepository(db)

	// Initialize notification publisher when NATS is configured
	var notifier service.EventPublisher
	if cfg.NATS.URL != "" {
		publisher, err := client.Connect(cfg.NATS.URL, cfg.Service.Name, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to NATS")
		}
		defer publisher.Close()
		notifier = publisher
		log.Info().Str("url", cfg.NATS.URL).Msg("NATS notification publisher initialized")
	}

	// Initialize services
	resolver := service.NewApproverResolver(userRepo, regionalRepo)
	visibility := service.NewVisibilityFilter(regionalRepo)
	denormalizer := service.NewDenormalizer(vendorRepo, log)
	workflow := service.NewWorkflowService(
		requestRepo, userRepo, departmentRepo, auditRepo, redirectionRepo,
		adjudicationRepo, resolver, visibility, denormalizer, notifier, log,
	)
	directory := service.NewDirectoryService(userRepo, departmentRepo, vendorRepo, log)

	// Setup HTTP server
	httpHandler := handler.NewHTTPHandler(workflow, directory, log)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("Server stopped")
}
