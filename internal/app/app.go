// Package app is the composition root: it wires the Job Store, Dataset
// Store, Worker Pool, Subscription Hub, Dataset Builder, and their external
// collaborators into one App used by cmd/orchestratord (cmd/orchestratorctl
// talks to it over HTTP instead). Constructor injection replaces the dynamic
// route-manager registration pattern the distilled spec flagged for
// re-architecture.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/foundryml/forge/internal/common"
	"github.com/foundryml/forge/internal/dataset"
	"github.com/foundryml/forge/internal/datasetbuilder"
	"github.com/foundryml/forge/internal/hub"
	"github.com/foundryml/forge/internal/jobs"
	"github.com/foundryml/forge/internal/pool"
	"github.com/foundryml/forge/internal/searchbackend"
	"github.com/foundryml/forge/internal/storage"
	"github.com/foundryml/forge/internal/store"
	"github.com/foundryml/forge/internal/trainer"
)

// App holds every initialized component and is the core run by
// cmd/orchestratord.
type App struct {
	Config *common.Config
	Logger *common.Logger

	Blobs storage.BlobStore

	JobStore     *store.Store[jobs.Job]
	DatasetStore *store.Store[dataset.Record]

	JobHub *hub.Hub[jobs.ProgressEvent]

	Pool    *pool.Pool
	Builder *datasetbuilder.Builder

	QueryExpander *searchbackend.QueryExpander

	StartupTime time.Time
}

// NewApp initializes every component. configPath may be empty, in which
// case FORGE_CONFIG (then a development-relative default) is used.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	if configPath == "" {
		configPath = os.Getenv("FORGE_CONFIG")
	}
	if configPath == "" {
		configPath = "config/forge.toml"
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := common.NewLogger(config.Logging.Level)

	blobs, err := storage.NewBlobStore(logger, &storage.BlobStoreConfig{
		Backend: config.Storage.Backend,
		File:    storage.FileBlobConfig{BasePath: config.Storage.File.Path},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize blob store: %w", err)
	}

	jobStore := store.New(jobs.Job.Clone)
	datasetStore := store.New(dataset.Record.Clone)

	jobHub := hub.New[jobs.ProgressEvent](config.Orchestrator.GetSubscriberSendTimeout())

	tr := &trainer.Simulated{}

	workerPool := pool.New(jobStore, jobHub, tr, logger, pool.Config{
		MaxConcurrent:   config.Orchestrator.MaxConcurrentJobs,
		GracePeriod:     config.Orchestrator.GetWorkerGracePeriod(),
		ContinuousLimit: config.Orchestrator.ContinuousJobLimit,
	})

	backend := &searchbackend.Simulated{RatePerSecond: 20}

	var expander *searchbackend.QueryExpander
	if config.Clients.Gemini.APIKey != "" {
		expander, err = searchbackend.NewQueryExpander(context.Background(), config.Clients.Gemini.APIKey, config.Clients.Gemini.Model, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to initialize Gemini query expander; continuing without it")
		}
	}

	builder := datasetbuilder.New(backend, datasetStore, blobs, logger, datasetbuilder.Config{
		BatchSize:          config.Dataset.PipelineBatchSize,
		EnableHistogram:    config.Dataset.EnableHistogram,
		Expander:           expander,
		QueryExpansionSize: config.Clients.Gemini.QueryExpansionVariants,
	})

	a := &App{
		Config:        config,
		Logger:        logger,
		Blobs:         blobs,
		JobStore:      jobStore,
		DatasetStore:  datasetStore,
		JobHub:        jobHub,
		Pool:          workerPool,
		Builder:       builder,
		QueryExpander: expander,
		StartupTime:   startupStart,
	}

	logger.Info().Dur("startup", time.Since(startupStart)).Msg("app initialized")
	return a, nil
}

// Start launches the worker pool's background goroutines.
func (a *App) Start() error {
	return a.Pool.Start()
}

// Close releases all resources held by the App. Shutdown order: stop the
// worker pool (honoring its grace period), then close the blob store.
func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Stop()
	}
	if a.Blobs != nil {
		a.Blobs.Close()
	}
}
