// Package config loads echojam settings from defaults, an optional YAML file
// and ECHOJAM_ environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration. cfgFile may be empty, in which case echojam.yaml
// is looked up in the working directory and $HOME/.echojam; a missing file
// is not an error.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// ECHOJAM_STORE_BACKEND overrides store.backend, and so on.
	v.SetEnvPrefix("ECHOJAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Conventional provider variables work as fallbacks.
	_ = v.BindEnv("keys.anthropic", "ECHOJAM_KEYS_ANTHROPIC", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("keys.openai", "ECHOJAM_KEYS_OPENAI", "OPENAI_API_KEY")
	_ = v.BindEnv("keys.elevenlabs", "ECHOJAM_KEYS_ELEVENLABS", "ELEVENLABS_API_KEY")
	_ = v.BindEnv("aws_region", "ECHOJAM_AWS_REGION", "AWS_REGION")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("echojam")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.echojam")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("aws_region", d.AWSRegion)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("store.backend", d.Store.Backend)
	v.SetDefault("store.table", d.Store.Table)
	v.SetDefault("store.dsn", d.Store.DSN)
	v.SetDefault("storage.backend", d.Storage.Backend)
	v.SetDefault("storage.bucket", d.Storage.Bucket)
	v.SetDefault("storage.region", d.Storage.Region)
	v.SetDefault("storage.cdn_base_url", d.Storage.CDNBaseURL)
	v.SetDefault("script.provider", d.Script.Provider)
	v.SetDefault("script.model", d.Script.Model)
	v.SetDefault("script.base_url", d.Script.BaseURL)
	v.SetDefault("tts.provider", d.TTS.Provider)
	v.SetDefault("tts.adult_voice", d.TTS.AdultVoice)
	v.SetDefault("tts.preteen_voice", d.TTS.PreteenVoice)
	v.SetDefault("tts.models", d.TTS.Models)
	v.SetDefault("tts.base_url", d.TTS.BaseURL)
	v.SetDefault("generation.mode_file", d.Generation.ModeFile)
	v.SetDefault("generation.personas", d.Generation.Personas)
	v.SetDefault("generation.call_timeout", d.Generation.CallTimeout)
	v.SetDefault("generation.retry_attempts", d.Generation.RetryAttempts)
	v.SetDefault("generation.retry_base_delay", d.Generation.RetryBaseDelay)
	v.SetDefault("generation.max_jobs", d.Generation.MaxJobs)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.metrics_addr", d.Server.MetricsAddr)
	v.SetDefault("server.environment", d.Server.Environment)
	v.SetDefault("secrets.prefix", d.Secrets.Prefix)
	v.SetDefault("keys.anthropic", "")
	v.SetDefault("keys.openai", "")
	v.SetDefault("keys.elevenlabs", "")
}

// Validate checks backend and provider names.
func (c *Config) Validate() error {
	var errs []error
	check := func(field, value string, allowed ...string) {
		for _, a := range allowed {
			if value == a {
				return
			}
		}
		errs = append(errs, fmt.Errorf("%s: unknown value %q (want one of %s)", field, value, strings.Join(allowed, ", ")))
	}
	check("store.backend", c.Store.Backend, "dynamodb", "postgres", "sqlite", "memory")
	check("storage.backend", c.Storage.Backend, "s3", "gcs", "inline", "none")
	check("script.provider", c.Script.Provider, "claude", "openai", "nova")
	check("tts.provider", c.TTS.Provider, "openai", "elevenlabs", "polly", "google")

	if (c.Store.Backend == "postgres" || c.Store.Backend == "sqlite") && c.Store.DSN == "" {
		errs = append(errs, fmt.Errorf("store.dsn is required for the %s backend", c.Store.Backend))
	}
	if (c.Storage.Backend == "s3" || c.Storage.Backend == "gcs") && c.Storage.Bucket == "" {
		errs = append(errs, fmt.Errorf("storage.bucket is required for the %s backend", c.Storage.Backend))
	}
	if c.Generation.RetryAttempts < 1 {
		errs = append(errs, errors.New("generation.retry_attempts must be at least 1"))
	}
	return errors.Join(errs...)
}

// ScriptAPIKey returns the key the configured script provider needs, if any.
func (c *Config) ScriptAPIKey() string {
	switch c.Script.Provider {
	case "claude":
		return c.Keys.Anthropic
	case "openai":
		return c.Keys.OpenAI
	}
	return ""
}

// SpeechAPIKey returns the key the configured TTS provider needs, if any.
func (c *Config) SpeechAPIKey() string {
	switch c.TTS.Provider {
	case "openai":
		return c.Keys.OpenAI
	case "elevenlabs":
		return c.Keys.ElevenLabs
	}
	return ""
}
