package config

// DefaultConfig returns the configuration used when no file or environment
// overrides are present.
func DefaultConfig() *Config {
	return &Config{
		Provider:          ProviderOpenAI,
		Model:             "gpt-4-turbo",
		Temperature:       0.3,
		EmbeddingProvider: ProviderOpenAI,
		EmbeddingModel:    "text-embedding-3-small",

		DataDir: ".ridebot",

		Corpus:             "rider_handbook",
		RetrievalCacheSize: 3,

		StalenessThresholdMinutes: 5,
		RefreshBackoffOnFailure:   true,
		FetchTimeoutSeconds:       10,

		EnableObserver:         true,
		MaxDecisionSteps:       10,
		DecisionTimeoutSeconds: 60,

		SourceMode: SourceMock,

		Server: ServerConfig{
			Port: 8321,
		},
	}
}
