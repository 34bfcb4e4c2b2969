package cmd

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/konaken73/Loan-Portfolio-Analysis-Dashboard/config"
	"github.com/konaken73/Loan-Portfolio-Analysis-Dashboard/database"
	"github.com/konaken73/Loan-Portfolio-Analysis-Dashboard/etl"
	"github.com/konaken73/Loan-Portfolio-Analysis-Dashboard/events"
	"github.com/konaken73/Loan-Portfolio-Analysis-Dashboard/repository"
	"github.com/konaken73/Loan-Portfolio-Analysis-Dashboard/server"
	"github.com/konaken73/Loan-Portfolio-Analysis-Dashboard/service"

	"github.com/redis/go-redis/v9"
)

// PipelineFlags are the command-line overrides for one pipeline run
type PipelineFlags struct {
	Source     string
	SampleSize int
	BatchSize  int
}

type app struct {
	db        *database.DB
	eventBus  *events.Bus
	pipeline  *service.PipelineService
	analytics *service.AnalyticsService
	loans     *repository.LoanRepository
	runs      *repository.PipelineRunRepository
	cache     *redis.Client
}

// setup wires configuration, storage, rules and services. The caller owns the
// returned app and must call close.
func setup(ctx context.Context) (*app, error) {
	cfg := config.Get()

	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	rules := etl.DefaultRules()
	if cfg.RulesFile != "" {
		rules, err = etl.LoadRules(cfg.RulesFile)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to load rules file: %w", err)
		}
		log.WithField("rules_file", cfg.RulesFile).Info("Loaded transformation rules")
	}

	var cache *redis.Client
	if cfg.RedisAddr != "" {
		cache = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := cache.Ping(ctx).Err(); err != nil {
			log.WithError(err).Warn("Redis unreachable, analytics cache disabled")
			cache = nil
		}
	}

	eventBus := events.NewBus()

	loanRepo := repository.NewLoanRepository(db)
	runRepo := repository.NewPipelineRunRepository(db)
	kpiRepo := repository.NewKpiRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)

	analyticsService := service.NewAnalyticsService(analyticsRepo, kpiRepo, cache)
	analyticsService.SubscribeToPipelineEvents(eventBus)

	pipelineService := service.NewPipelineService(loanRepo, runRepo, rules, eventBus)

	return &app{
		db:        db,
		eventBus:  eventBus,
		pipeline:  pipelineService,
		analytics: analyticsService,
		loans:     loanRepo,
		runs:      runRepo,
		cache:     cache,
	}, nil
}

func (a *app) close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			log.WithError(err).Warn("Error closing Redis client")
		}
	}
	a.db.Close()
}

// RunPipeline executes one full extract-transform-load pass
func RunPipeline(ctx context.Context, flags PipelineFlags) error {
	cfg := config.Get()

	source := flags.Source
	if source == "" {
		source = cfg.RawDataFile
	}
	if source == "" {
		return fmt.Errorf("no source file: pass --source or set RAW_DATA_FILE")
	}

	sampleSize := cfg.SampleSize
	if flags.SampleSize >= 0 {
		sampleSize = flags.SampleSize
	}
	batchSize := cfg.BatchSize
	if flags.BatchSize > 0 {
		batchSize = flags.BatchSize
	}

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	result, err := a.pipeline.Run(ctx, service.RunOptions{
		SourcePath: source,
		SampleSize: sampleSize,
		BatchSize:  batchSize,
	})
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"execution_id":   result.ExecutionID,
		"rows_processed": result.RowsProcessed,
		"inserted":       result.Inserted,
		"updated":        result.Updated,
		"duration":       result.Duration.String(),
	}).Info("Pipeline run finished")

	// Let async subscribers (KPI snapshot, cache invalidation) drain
	time.Sleep(500 * time.Millisecond)

	return nil
}

// Serve runs the HTTP API until the context is cancelled
func Serve(ctx context.Context) error {
	cfg := config.Get()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	srv := server.New(cfg.Port, a.analytics, a.loans, a.runs)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down HTTP API...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}

	return nil
}

// Snapshot writes today's KPI snapshot without running the pipeline
func Snapshot(ctx context.Context) error {
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.analytics.SnapshotKPIs(ctx, time.Now().UTC()); err != nil {
		return err
	}

	log.Info("KPI snapshot written")
	return nil
}
