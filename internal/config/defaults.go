package config

import "time"

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig() Config {
	return Config{
		AWSRegion: "us-east-1",
		Log:       LogConfig{Level: "info", Format: "json"},
		Store: StoreConfig{
			Backend: "sqlite",
			Table:   "echojam-narration",
			DSN:     "echojam.db",
		},
		Storage: StorageConfig{
			Backend: "inline",
		},
		Script: ScriptConfig{
			Provider: "claude",
			Model:    "haiku",
		},
		TTS: TTSConfig{
			Provider: "openai",
		},
		Generation: GenerationConfig{
			ModeFile:       "generation-mode.json",
			Personas:       []string{"adult"},
			CallTimeout:    90 * time.Second,
			RetryAttempts:  3,
			RetryBaseDelay: 500 * time.Millisecond,
			MaxJobs:        5,
		},
		Server: ServerConfig{
			Port:        8000,
			MetricsAddr: ":9090",
			Environment: "development",
		},
	}
}
