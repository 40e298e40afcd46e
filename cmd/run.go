package cmd

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"shgcolumns/config"
	"shgcolumns/database"
	"shgcolumns/events"
	"shgcolumns/infrastructure"
	"shgcolumns/infrastructure/observability"
	"shgcolumns/report"
	"shgcolumns/repository"
	"shgcolumns/schema"
	"shgcolumns/service"
)

// Run initializes and starts the application
func Run(ctx context.Context) error {
	cfg := config.Get()
	cfg.ApplyLogLevel()

	log.WithField("environment", cfg.Environment).Info("Starting SHG custom columns service...")

	if cfg.OTelEnabled {
		log.Info("Initializing metrics...")
		if err := observability.InitializeGlobalMetrics(ctx, cfg); err != nil {
			return fmt.Errorf("failed to initialize metrics: %w", err)
		}
	}

	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	eventBus := events.NewBus()
	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)

	formatter, err := report.NewFormatter(cfg.FormatLocale, cfg.CurrencySymbol)
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to create formatter: %w", err)
	}

	log.Info("Initializing services...")
	registry := schema.NewRegistry()
	metrics := observability.GetMetrics()
	schemaService := service.NewSchemaService(uowFactory, registry, metrics)
	calculationService := service.NewCalculationService(uowFactory, registry, formatter, metrics)

	log.Info("Connecting to NATS...")
	natsClient := infrastructure.NewNATSClient(cfg.NATSServers)
	if err := natsClient.Connect(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	subjects := []string{cfg.ImportSubject, cfg.SchemaEventsSubject + ".>"}
	if err := natsClient.EnsureStream(cfg.NATSStream, subjects); err != nil {
		natsClient.Close()
		db.Close()
		return fmt.Errorf("failed to ensure stream: %w", err)
	}

	infrastructure.NewEventForwarder(natsClient, cfg.SchemaEventsSubject).Register(eventBus)

	importHandler := infrastructure.NewMemberImportHandler(schemaService, calculationService, cfg.ImportSubject)
	if err := natsClient.Subscribe(cfg.ImportSubject, cfg.ImportConsumer, importHandler.Handle); err != nil {
		natsClient.Close()
		db.Close()
		return fmt.Errorf("failed to subscribe to member imports: %w", err)
	}

	log.WithFields(log.Fields{
		"importSubject": cfg.ImportSubject,
		"eventsSubject": cfg.SchemaEventsSubject,
	}).Info("Service is running")
	<-ctx.Done()

	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := natsClient.Close(); err != nil {
		log.WithError(err).Error("Error closing NATS connection")
	}

	log.Info("Closing database connection...")
	db.Close()

	if err := observability.ShutdownGlobalMetrics(shutdownCtx); err != nil {
		log.WithError(err).Error("Error shutting down metrics")
	}

	log.Info("Shutdown completed")
	return nil
}
