package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/manifoldco/promptui"
)

// defaultModelFor suggests a decision model for each provider.
func defaultModelFor(p ProviderType) string {
	switch p {
	case ProviderOpenRouter:
		return "anthropic/claude-3.5-sonnet"
	case ProviderOllama:
		return "llama3.1"
	default:
		return "gpt-4-turbo"
	}
}

// embeddingProviderFor returns the default embedding provider for a given
// decision provider. OpenAI embeddings are used for all cloud providers.
func embeddingProviderFor(p ProviderType) ProviderType {
	if p == ProviderOllama {
		return ProviderOllama
	}
	return ProviderOpenAI
}

// RunWizard runs an interactive configuration wizard and saves the resulting
// Config to the given path.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to ridebot! Let's configure the support agent.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Provider selection.
	providerPrompt := promptui.Select{
		Label: "Select LLM provider",
		Items: []string{"openai", "openrouter", "ollama"},
	}
	_, providerStr, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	cfg.Provider = ProviderType(providerStr)
	cfg.EmbeddingProvider = embeddingProviderFor(cfg.Provider)

	// 2. Model.
	modelPrompt := promptui.Prompt{
		Label:   "Decision model",
		Default: defaultModelFor(cfg.Provider),
	}
	if cfg.Model, err = modelPrompt.Run(); err != nil {
		return nil, fmt.Errorf("model: %w", err)
	}

	// 3. Rider data source.
	sourcePrompt := promptui.Select{
		Label: "Rider data source",
		Items: []string{
			"mock — deterministic synthetic riders (local development)",
			"sql  — read replica of the fleet database",
		},
	}
	sourceIdx, _, err := sourcePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("source selection: %w", err)
	}
	if sourceIdx == 1 {
		cfg.SourceMode = SourceSQL
		dsnPrompt := promptui.Prompt{Label: "Fleet replica DSN"}
		if cfg.FleetDSN, err = dsnPrompt.Run(); err != nil {
			return nil, fmt.Errorf("fleet DSN: %w", err)
		}
	} else {
		cfg.SourceMode = SourceMock
	}

	// 4. Corpus id.
	corpusPrompt := promptui.Prompt{
		Label:   "Policy corpus id",
		Default: cfg.Corpus,
	}
	if cfg.Corpus, err = corpusPrompt.Run(); err != nil {
		return nil, fmt.Errorf("corpus: %w", err)
	}

	// 5. Staleness threshold.
	stalenessPrompt := promptui.Prompt{
		Label:   "Context staleness threshold (minutes)",
		Default: strconv.Itoa(cfg.StalenessThresholdMinutes),
		Validate: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				return fmt.Errorf("must be a non-negative integer")
			}
			return nil
		},
	}
	stalenessStr, err := stalenessPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("staleness threshold: %w", err)
	}
	cfg.StalenessThresholdMinutes, _ = strconv.Atoi(stalenessStr)

	// 6. Observer.
	observerPrompt := promptui.Select{
		Label: "Extract long-term insights from conversations (observer)",
		Items: []string{"enabled", "disabled"},
	}
	observerIdx, _, err := observerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("observer selection: %w", err)
	}
	cfg.EnableObserver = observerIdx == 0

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Check for API key.
	if envVar := APIKeyEnvVar(cfg.Provider); envVar != "" && os.Getenv(envVar) == "" {
		fmt.Printf("\nNote: Set %s in your environment before running ridebot serve.\n", envVar)
	}

	if err := cfg.Save(path); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	fmt.Println("Next: run `ridebot ingest docs/**/*.md` to build the policy corpus.")
	return cfg, nil
}
