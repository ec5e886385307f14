package discovery

import (
	"fmt"
	"log/slog"

	"github.com/casegraph/discovery/bus"
	"github.com/casegraph/discovery/facts"
	"github.com/casegraph/discovery/llm"
	"github.com/casegraph/discovery/orchestrator"
	"github.com/casegraph/discovery/registry"
	"github.com/casegraph/discovery/vectorstore"
)

// Services is the single value the process wires once at startup and
// passes explicitly to every consumer (spec §9: "no package-level
// singletons; a Services value built once in main and threaded through").
type Services struct {
	Config Config
	Logger *slog.Logger

	Store        *vectorstore.Store
	Registry     *registry.Registry
	Bus          *bus.Bus
	Facts        *facts.Extractor
	Orchestrator *orchestrator.Orchestrator

	ClassifierProvider llm.Provider
	EmbeddingProvider  llm.Provider
}

// NewServices constructs every component and wires them together in
// dependency order: store -> registry/facts -> orchestrator. access may be
// nil, in which case the orchestrator falls back to its permissive
// single-tenant default.
func NewServices(cfg Config, logger *slog.Logger, access orchestrator.AccessOracle) (*Services, error) {
	if logger == nil {
		logger = slog.Default()
	}

	store := vectorstore.New(vectorstore.Config{
		StorageDir:        cfg.StorageDir,
		EmbeddingDim:      cfg.Encode.EmbeddingDim,
		SharedCollections: cfg.SharedCollections,
	})

	classifierProvider, err := llm.NewProvider(llm.Config{
		Provider: cfg.Classifier.Provider,
		Model:    cfg.Classifier.Model,
		BaseURL:  cfg.Classifier.BaseURL,
		APIKey:   cfg.Classifier.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("discovery: building classifier provider: %w", err)
	}

	embeddingProvider, err := llm.NewProvider(llm.Config{
		Provider: cfg.Embedding.Provider,
		Model:    cfg.Embedding.Model,
		BaseURL:  cfg.Embedding.BaseURL,
		APIKey:   cfg.Embedding.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("discovery: building embedding provider: %w", err)
	}

	reg := registry.New(store)
	progressBus := bus.New(cfg.ProgressBusBuffer)

	classifier := llm.ClassifierAdapter{Provider: classifierProvider, Model: cfg.Classifier.Model}
	factExtractor := facts.New(
		llm.FactExtractorAdapter{Provider: classifierProvider, Model: cfg.Classifier.Model},
		embeddingProvider,
		store,
		cfg.FactDedup,
	)

	orch := orchestrator.New(cfg, store, reg, progressBus, classifier, embeddingProvider, factExtractor, access)

	return &Services{
		Config:             cfg,
		Logger:             logger,
		Store:              store,
		Registry:           reg,
		Bus:                progressBus,
		Facts:              factExtractor,
		Orchestrator:       orch,
		ClassifierProvider: classifierProvider,
		EmbeddingProvider:  embeddingProvider,
	}, nil
}

// Close releases every resource Services opened.
func (s *Services) Close() error {
	return s.Store.Close()
}
