package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/dstam/smart-import/internal/batch"
	"github.com/dstam/smart-import/internal/config"
	"github.com/dstam/smart-import/internal/export"
	"github.com/dstam/smart-import/internal/extraction"
	"github.com/dstam/smart-import/internal/importer"
	"github.com/dstam/smart-import/internal/ledger"
	"github.com/dstam/smart-import/internal/pdftext"
	"github.com/dstam/smart-import/internal/rates"
	"github.com/dstam/smart-import/internal/recurring"
	"github.com/dstam/smart-import/internal/repository"
	"github.com/dstam/smart-import/internal/resolver"
	"github.com/dstam/smart-import/internal/server"
	"github.com/dstam/smart-import/internal/storage"
	"github.com/dstam/smart-import/pkg/database"
	"github.com/dstam/smart-import/pkg/logger"
)

func main() {
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting smart-import",
		zap.String("home_country", cfg.Home.Country),
		zap.String("home_currency", cfg.Home.Currency),
		zap.Int("port", cfg.Server.Port))

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, log)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		log.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Repositories
	counterpartyRepo := repository.NewCounterpartyRepository(db, log)
	ledgerRepo := repository.NewLedgerRepository(db, log)
	subscriptionRepo := repository.NewSubscriptionRepository(db, log)
	templateRepo := repository.NewRecurringTemplateRepository(db, log)
	rateRepo := repository.NewRateRepository(db, log)
	postingRepo := repository.NewPostingRepository(db, log)
	batchRepo := repository.NewBatchJobRepository(db, log)

	// Resolution layer
	matcher := resolver.NewCounterpartyResolver(counterpartyRepo, log)
	taxRules := resolver.NewTaxRules(cfg.Home.Country, cfg.Home.StandardRate)
	normalizer := resolver.NewCurrencyNormalizer(cfg.Home.Currency)

	// Intake pipeline
	fileStore, err := storage.New(cfg.Storage.BasePath, cfg.Storage.MaxFileSize, log)
	if err != nil {
		log.Fatal("Failed to initialize file storage", zap.Error(err))
	}
	pdfReader := pdftext.NewReader(log)
	extractor := extraction.NewExtractor(cfg.Extraction, cfg.Home.Currency, log)
	rateProvider := rates.NewProvider(cfg.Rates, rateRepo, log)

	// Filing
	postingService := ledger.NewPostingService(postingRepo, log)
	tracker := recurring.NewTracker(subscriptionRepo, templateRepo, log)
	router := ledger.NewRouter(db, counterpartyRepo, ledgerRepo, postingService, tracker, taxRules, normalizer, log)

	session := importer.NewSession(fileStore, pdfReader, extractor, matcher,
		taxRules, normalizer, rateProvider, router, log)

	batchRunner := batch.NewRunner(batchRepo, ledgerRepo, postingRepo, postingService,
		cfg.Batch.ItemDelay, log)

	exporter := export.NewExporter(ledgerRepo, cfg.Home.Currency, log)

	handlers := server.NewHandlers(session, batchRunner, subscriptionRepo, exporter,
		cfg.Storage.MaxFileSize, log)
	srv := server.NewServer(cfg.Server, handlers, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		log.Fatal("Server error", zap.Error(err))
	}

	log.Info("Server exited successfully")
}
