// Package container provides dependency injection for the recon-ledger
// application. It centralizes the creation and wiring of all application
// dependencies, making them explicit and testable.
package container

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fjacquet/recon-ledger/internal/accounts"
	"fjacquet/recon-ledger/internal/classifier"
	"fjacquet/recon-ledger/internal/common"
	"fjacquet/recon-ledger/internal/config"
	"fjacquet/recon-ledger/internal/ledger"
	"fjacquet/recon-ledger/internal/logging"
	"fjacquet/recon-ledger/internal/metrics"
	"fjacquet/recon-ledger/internal/normalize"
	"fjacquet/recon-ledger/internal/reconciliation"
	"fjacquet/recon-ledger/internal/reference"
	"fjacquet/recon-ledger/internal/report"
	"fjacquet/recon-ledger/internal/repository"
	"fjacquet/recon-ledger/internal/store"
	"fjacquet/recon-ledger/internal/tax"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Container holds all application dependencies and provides methods to access them.
//
// Container is immutable after creation - all fields are private and can only
// be accessed through getter methods.
type Container struct {
	logger       logging.Logger
	config       *config.Config
	store        repository.Store
	mappings     *store.MappingStore
	aiClient     *classifier.GeminiClient
	classifier   *classifier.Classifier
	splitter     *tax.Splitter
	normalizer   *normalize.Normalizer
	ledger       *ledger.Service
	orchestrator *reconciliation.Orchestrator
	references   *reference.Generator
	codec        *common.Codec
	reports      *report.Generator
	metrics      *metrics.Metrics
}

// Option adjusts how NewContainer builds dependencies.
type Option func(*buildOptions)

type buildOptions struct {
	logger   logging.Logger
	registry *prometheus.Registry
	store    repository.Store
}

// WithLogger uses logger instead of one built from the configuration.
func WithLogger(logger logging.Logger) Option {
	return func(o *buildOptions) { o.logger = logger }
}

// WithRegistry registers metrics on reg instead of a fresh registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *buildOptions) { o.registry = reg }
}

// WithStore uses st instead of opening the configured backend.
func WithStore(st repository.Store) Option {
	return func(o *buildOptions) { o.store = st }
}

// NewContainer creates and wires all application dependencies.
// This is the main entry point for dependency injection in the application.
func NewContainer(cfg *config.Config, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}

	// Create logger first as it's needed by other components
	logger := o.logger
	if logger == nil {
		logger = logging.NewLogrusAdapter(cfg.Log.Level, cfg.Log.Format)
	}

	registry := o.registry
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	m := metrics.New(registry)

	mappings := store.NewMappingStore(cfg.Mappings.OverridesFile, cfg.Mappings.KeywordGroupsFile, logger)

	st := o.store
	if st == nil {
		var err error
		st, err = openStore(cfg, mappings, logger)
		if err != nil {
			return nil, err
		}
	}

	groups, err := mappings.LoadKeywordGroups()
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to load keyword groups: %w", err)
	}

	classifierOpts := []classifier.Option{
		classifier.WithLogger(logger),
		classifier.WithKeywordGroups(groups),
		classifier.WithOverrideCache(cfg.Mappings.CacheTTL, nil),
		classifier.WithFixedAssetThreshold(cfg.FixedAssetThreshold()),
	}
	var aiClient *classifier.GeminiClient
	if cfg.AI.Enabled {
		aiClient = classifier.NewGeminiClient(cfg.AI.APIKey, cfg.AI.Model, time.Duration(cfg.AI.TimeoutSeconds)*time.Second, logger)
		classifierOpts = append(classifierOpts, classifier.WithAI(aiClient))
		logger.Info("AI classification enabled", logging.F("model", cfg.AI.Model))
	} else {
		logger.Info("AI classification disabled")
	}
	cl := classifier.New(accounts.DefaultChart(), st.Overrides(), classifierOpts...)

	splitter := tax.NewSplitter(logger, cfg.Tolerance())

	ledgerService := ledger.NewService(st, cl, splitter,
		ledger.WithAccounts(cfg.Ledger.VATAccount, cfg.Ledger.PayablesAccount),
		ledger.WithDefaultCurrency(cfg.Ledger.DefaultCurrency),
		ledger.WithRetry(cfg.RetryPolicy()),
		ledger.WithMetrics(m),
		ledger.WithLogger(logger),
	)

	orchestrator, err := reconciliation.New(st,
		reconciliation.WithThresholds(cfg.Reconciliation.AutoThreshold, cfg.Reconciliation.SuggestThreshold),
		reconciliation.WithBatchLimit(cfg.Reconciliation.BatchLimit),
		reconciliation.WithRetry(cfg.RetryPolicy()),
		reconciliation.WithMetrics(m),
		reconciliation.WithLogger(logger),
	)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}

	logger.Info("Container initialized successfully",
		logging.F("storage_driver", cfg.Storage.Driver),
		logging.F("mappings_backend", cfg.Mappings.Backend),
		logging.F("ai_enabled", cfg.AI.Enabled))

	codec := common.NewCodec(cfg.Delimiter(), cfg.Ledger.DefaultCurrency, logger)

	return &Container{
		logger:       logger,
		config:       cfg,
		store:        st,
		mappings:     mappings,
		aiClient:     aiClient,
		classifier:   cl,
		splitter:     splitter,
		normalizer:   normalize.New(cfg.Normalize, cfg.Ledger.DefaultCurrency, logger),
		ledger:       ledgerService,
		orchestrator: orchestrator,
		references:   reference.NewGenerator(),
		codec:        codec,
		reports:      report.NewGenerator(codec, logger),
		metrics:      m,
	}, nil
}

// openStore opens the configured backend. With the yaml mappings backend
// the store's override port is served by the YAML files.
func openStore(cfg *config.Config, mappings *store.MappingStore, logger logging.Logger) (repository.Store, error) {
	var external repository.OverrideRepository
	if cfg.Mappings.Backend == config.MappingsYAML {
		external = mappings
	}

	switch cfg.Storage.Driver {
	case config.DriverMemory:
		logger.Warn("Using in-memory storage, data is lost on exit")
		return store.NewMemoryStore(external), nil
	case config.DriverSQLite, config.DriverPostgres:
		sqlStore, err := store.OpenSQL(context.Background(), cfg.Storage.Driver, cfg.Storage.DSN, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s store: %w", cfg.Storage.Driver, err)
		}
		if external != nil {
			sqlStore.UseMappings(external)
		}
		return sqlStore, nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.Storage.Driver)
	}
}

// GetLogger returns the container's logger instance.
func (c *Container) GetLogger() logging.Logger {
	return c.logger
}

// GetConfig returns the container's configuration instance.
func (c *Container) GetConfig() *config.Config {
	return c.config
}

// GetStore returns the record store.
func (c *Container) GetStore() repository.Store {
	return c.store
}

// GetMappingStore returns the YAML mapping store.
func (c *Container) GetMappingStore() *store.MappingStore {
	return c.mappings
}

// GetAIClient returns the Gemini client, or nil when AI is disabled.
func (c *Container) GetAIClient() *classifier.GeminiClient {
	return c.aiClient
}

// GetClassifier returns the account classifier.
func (c *Container) GetClassifier() *classifier.Classifier {
	return c.classifier
}

// GetSplitter returns the VAT splitter.
func (c *Container) GetSplitter() *tax.Splitter {
	return c.splitter
}

// GetNormalizer returns the invoice record normalizer.
func (c *Container) GetNormalizer() *normalize.Normalizer {
	return c.normalizer
}

// GetLedger returns the ledger posting service.
func (c *Container) GetLedger() *ledger.Service {
	return c.ledger
}

// GetOrchestrator returns the reconciliation orchestrator.
func (c *Container) GetOrchestrator() *reconciliation.Orchestrator {
	return c.orchestrator
}

// GetReferenceGenerator returns the structured reference generator.
func (c *Container) GetReferenceGenerator() *reference.Generator {
	return c.references
}

// GetCSVCodec returns the CSV import/export codec.
func (c *Container) GetCSVCodec() *common.Codec {
	return c.codec
}

// GetReportGenerator returns the report renderer.
func (c *Container) GetReportGenerator() *report.Generator {
	return c.reports
}

// GetMetrics returns the Prometheus instruments.
func (c *Container) GetMetrics() *metrics.Metrics {
	return c.metrics
}

// Close releases the store and the AI client.
func (c *Container) Close() error {
	var errs []error
	if c.aiClient != nil {
		errs = append(errs, c.aiClient.Close())
	}
	errs = append(errs, c.store.Close())
	c.logger.Info("Container closed")
	return errors.Join(errs...)
}
