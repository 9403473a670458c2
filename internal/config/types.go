package config

// ProviderType identifies an LLM or embedding provider.
type ProviderType string

const (
	ProviderOpenAI     ProviderType = "openai"
	ProviderOpenRouter ProviderType = "openrouter"
	ProviderOllama     ProviderType = "ollama"
)

// SourceMode selects how operational rider data is fetched.
type SourceMode string

const (
	// SourceSQL reads from a relational replica of the fleet database.
	SourceSQL SourceMode = "sql"
	// SourceMock serves deterministic synthetic data, for evaluation runs
	// and local development.
	SourceMock SourceMode = "mock"
)

// Config is the top-level ridebot configuration, corresponding to .ridebot.yml.
type Config struct {
	Provider          ProviderType `yaml:"provider" koanf:"provider"`
	Model             string       `yaml:"model" koanf:"model"`
	Temperature       float64      `yaml:"temperature" koanf:"temperature"`
	EmbeddingProvider ProviderType `yaml:"embedding_provider" koanf:"embedding_provider"`
	EmbeddingModel    string       `yaml:"embedding_model" koanf:"embedding_model"`

	DataDir string `yaml:"data_dir" koanf:"data_dir"`

	// Corpus is the corpus id the document-search tool queries.
	Corpus string `yaml:"corpus" koanf:"corpus"`
	// RetrievalCacheSize bounds how many corpus indices stay loaded at once.
	RetrievalCacheSize int `yaml:"retrieval_cache_size" koanf:"retrieval_cache_size"`

	// StalenessThresholdMinutes is the maximum context snapshot age before a
	// refresh is attempted.
	StalenessThresholdMinutes int `yaml:"staleness_threshold_minutes" koanf:"staleness_threshold_minutes"`
	// RefreshBackoffOnFailure advances the refresh clock even when every
	// fetch in a cycle failed, throttling retries against failing sources.
	RefreshBackoffOnFailure bool `yaml:"refresh_backoff_on_failure" koanf:"refresh_backoff_on_failure"`
	// FetchTimeoutSeconds bounds each individual context fetch.
	FetchTimeoutSeconds int `yaml:"fetch_timeout_seconds" koanf:"fetch_timeout_seconds"`

	EnableObserver         bool `yaml:"enable_observer" koanf:"enable_observer"`
	MaxDecisionSteps       int  `yaml:"max_decision_steps" koanf:"max_decision_steps"`
	DecisionTimeoutSeconds int  `yaml:"decision_timeout_seconds" koanf:"decision_timeout_seconds"`
	RateLimitRPM           int  `yaml:"rate_limit_rpm" koanf:"rate_limit_rpm"`

	SourceMode SourceMode `yaml:"source_mode" koanf:"source_mode"`
	// FleetDSN is the connection string for the operational fleet replica,
	// required when source_mode is "sql".
	FleetDSN string `yaml:"fleet_dsn" koanf:"fleet_dsn"`

	Server ServerConfig `yaml:"server" koanf:"server"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int  `yaml:"port" koanf:"port"`
	AllowAllOrigins bool `yaml:"allow_all_origins" koanf:"allow_all_origins"`
}
