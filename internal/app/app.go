package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/common"
	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/interfaces"
	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/queue"
	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/services/addons"
	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/services/llm"
	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/services/scheduler"
	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/storage"
	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/workers/analysis"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	// LLM stack
	ProviderFactory   *llm.ProviderFactory
	CompletionService *llm.CompletionService

	// Analysis pipeline
	AddonPipeline *addons.Pipeline // nil when add-ons are disabled
	Processor     *analysis.Processor
	Worker        *queue.Worker

	SchedulerService *scheduler.Service
}

// New validates cfg and builds the full worker. A ConfigurationError is
// returned before any store connection is attempted.
func New(ctx context.Context, cfg *common.Config, logger arbor.ILogger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		Logger: logger,
	}

	storageManager, err := storage.NewStorageManager(ctx, logger, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	app.StorageManager = storageManager

	app.initServices()

	logger.Info().
		Str("storage_type", cfg.Storage.Type).
		Bool("addons_enabled", cfg.Analysis.AddonsEnabled).
		Int("max_jobs", cfg.Queue.MaxJobs).
		Msg("Application initialized")

	return app, nil
}

// initServices initializes the pipeline in dependency order.
func (a *App) initServices() {
	cfg := a.Config

	a.ProviderFactory = llm.NewProviderFactory(&cfg.Gemini, &cfg.Claude, &cfg.LLM, a.Logger)
	a.CompletionService = llm.NewCompletionService(a.ProviderFactory, a.Logger)

	analyzer := analysis.NewDeepDiveAnalyzer(a.CompletionService, cfg.Analysis.Question, cfg.Analysis.Timeframe, a.Logger)

	var runner analysis.AddonRunner
	if cfg.Analysis.AddonsEnabled {
		opts := addons.Options{
			Timeframe:     cfg.Analysis.Timeframe,
			ExcerptLength: cfg.Analysis.ExcerptLength,
		}
		catalogue := addons.DefaultCatalogue()
		selector := addons.NewSelector(a.CompletionService, catalogue, opts, a.Logger)
		registry := addons.NewCatalogueRegistry(catalogue, a.CompletionService, opts, a.Logger)
		a.AddonPipeline = addons.NewPipeline(selector, registry, a.Logger)
		runner = a.AddonPipeline

		a.Logger.Debug().
			Strs("modules", registry.IDs()).
			Msg("Add-on modules registered")
	}

	a.Processor = analysis.NewProcessor(
		a.StorageManager.AnalysisQueueStorage(),
		a.StorageManager.UniverseStorage(),
		analyzer,
		runner,
		analysis.ProcessorConfig{
			MaxAttempts:     cfg.Queue.MaxAttempts,
			ErrorMaxLength:  cfg.Queue.ErrorMaxLength,
			AddonsEnabled:   cfg.Analysis.AddonsEnabled,
			DefaultProvider: cfg.Analysis.DefaultProvider,
			DefaultModel:    cfg.Analysis.DefaultModel,
		},
		a.Logger,
	)

	a.Worker = queue.NewWorker(
		a.StorageManager.AnalysisQueueStorage(),
		a.Processor,
		queue.ConfigFromCommon(cfg.Queue),
		a.Logger,
	)

	a.SchedulerService = scheduler.NewService(a.Worker, cfg.Queue.MaxJobs, a.Logger)
}

// Close releases the LLM clients and the store
func (a *App) Close() error {
	if a.SchedulerService != nil {
		if err := a.SchedulerService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler")
		}
	}
	if a.ProviderFactory != nil {
		if err := a.ProviderFactory.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close LLM clients")
		}
	}
	if a.StorageManager != nil {
		return a.StorageManager.Close()
	}
	return nil
}
