package cmd

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "modernc.org/sqlite"

	"github.com/odslabs/ridebot/internal/agent"
	"github.com/odslabs/ridebot/internal/config"
	"github.com/odslabs/ridebot/internal/contextcache"
	"github.com/odslabs/ridebot/internal/db"
	"github.com/odslabs/ridebot/internal/embeddings"
	"github.com/odslabs/ridebot/internal/llm"
	"github.com/odslabs/ridebot/internal/retrieval"
	"github.com/odslabs/ridebot/internal/riders"
	"github.com/odslabs/ridebot/internal/session"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `ridebot init` to create a config file", err)
	}
	return cfg, nil
}

// createEmbedderFromConfig creates an embeddings.Embedder based on config.
// Shared by the serve, chat, ingest and mcp commands.
func createEmbedderFromConfig(cfg *config.Config) (embeddings.Embedder, error) {
	provider := cfg.EmbeddingProvider
	if provider == "" {
		provider = cfg.Provider
	}

	switch provider {
	case config.ProviderOllama:
		return embeddings.NewEmbedder("ollama", cfg.EmbeddingModel)
	default:
		// OpenRouter has no embeddings endpoint; OpenAI covers it.
		return embeddings.NewEmbedder("openai", cfg.EmbeddingModel)
	}
}

// createProviderFromConfig creates the decision provider, rate limited when
// the config asks for it.
func createProviderFromConfig(cfg *config.Config) (llm.Provider, error) {
	provider, err := llm.NewProvider(string(cfg.Provider), cfg.Model)
	if err != nil {
		return nil, err
	}
	if cfg.RateLimitRPM > 0 {
		provider = llm.NewRateLimitedProvider(provider, cfg.RateLimitRPM)
	}
	return provider, nil
}

// createSourceFromConfig builds the rider context source and trip manager for
// the configured source mode.
func createSourceFromConfig(cfg *config.Config) (riders.ContextSource, riders.TripManager, func() error, error) {
	switch cfg.SourceMode {
	case config.SourceSQL:
		fleet, err := sql.Open("sqlite", cfg.FleetDSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("opening fleet database: %w", err)
		}
		src := riders.NewSQLSource(fleet)
		return src, src, fleet.Close, nil
	default:
		src := riders.NewMockSource(time.Now)
		return src, src, func() error { return nil }, nil
	}
}

// appRuntime bundles the wired components the serve and chat commands share.
type appRuntime struct {
	orch    *agent.Orchestrator
	indexes *retrieval.Cache
	close   func()
}

// buildRuntime wires the full conversation stack from config: embedder,
// retrieval cache, rider source, checkpoint store, context cache, tool set
// and orchestrator.
func buildRuntime(cfg *config.Config) (*appRuntime, error) {
	embedder, err := createEmbedderFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	provider, err := createProviderFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating provider: %w", err)
	}

	indexes := retrieval.NewCache(cfg.RetrievalCacheSize)
	loader := func(corpus string) (*retrieval.Index, error) {
		return retrieval.OpenIndex(cfg.DataDir, corpus, embedder)
	}

	source, trips, closeSource, err := createSourceFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		closeSource()
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	database, err := db.Open(cfg.SessionDBPath())
	if err != nil {
		closeSource()
		return nil, fmt.Errorf("opening session database: %w", err)
	}
	store := session.NewStore(database)

	contexts := contextcache.New(source, contextcache.Policy{
		Threshold:        time.Duration(cfg.StalenessThresholdMinutes) * time.Minute,
		BackoffOnFailure: cfg.RefreshBackoffOnFailure,
	}, contextcache.WithFetchTimeout(time.Duration(cfg.FetchTimeoutSeconds)*time.Second))

	tools := agent.NewToolSet(source, trips, indexes, loader, store, cfg.Corpus)

	orch := agent.New(provider, tools, store, contexts, agent.Config{
		Model:            cfg.Model,
		Temperature:      cfg.Temperature,
		EnableObserver:   cfg.EnableObserver,
		MaxDecisionSteps: cfg.MaxDecisionSteps,
		DecisionTimeout:  cfg.DecisionTimeoutSeconds,
	})

	return &appRuntime{
		orch:    orch,
		indexes: indexes,
		close: func() {
			if err := database.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: closing session database: %v\n", err)
			}
			if err := closeSource(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: closing fleet source: %v\n", err)
			}
		},
	}, nil
}
