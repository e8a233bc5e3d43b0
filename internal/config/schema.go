package config

import "time"

// Config holds echojam configuration.
type Config struct {
	AWSRegion  string           `mapstructure:"aws_region" yaml:"aws_region"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
	Store      StoreConfig      `mapstructure:"store" yaml:"store"`
	Storage    StorageConfig    `mapstructure:"storage" yaml:"storage"`
	Script     ScriptConfig     `mapstructure:"script" yaml:"script"`
	TTS        TTSConfig        `mapstructure:"tts" yaml:"tts"`
	Generation GenerationConfig `mapstructure:"generation" yaml:"generation"`
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
	Secrets    SecretsConfig    `mapstructure:"secrets" yaml:"secrets"`
	Keys       KeysConfig       `mapstructure:"keys" yaml:"keys"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" yaml:"format"` // json, text
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"` // dynamodb, postgres, sqlite, memory
	Table   string `mapstructure:"table" yaml:"table"`     // DynamoDB table
	DSN     string `mapstructure:"dsn" yaml:"dsn"`         // SQL backends
}

// StorageConfig selects where narration audio is uploaded.
type StorageConfig struct {
	Backend    string `mapstructure:"backend" yaml:"backend"` // s3, gcs, inline, none
	Bucket     string `mapstructure:"bucket" yaml:"bucket"`
	Region     string `mapstructure:"region" yaml:"region"`
	CDNBaseURL string `mapstructure:"cdn_base_url" yaml:"cdn_base_url"`
}

// ScriptConfig selects the script generation provider.
type ScriptConfig struct {
	Provider string `mapstructure:"provider" yaml:"provider"` // claude, openai, nova
	Model    string `mapstructure:"model" yaml:"model"`
	BaseURL  string `mapstructure:"base_url" yaml:"base_url"`
}

// TTSConfig selects the speech provider and its voices.
type TTSConfig struct {
	Provider     string   `mapstructure:"provider" yaml:"provider"` // openai, elevenlabs, polly, google
	AdultVoice   string   `mapstructure:"adult_voice" yaml:"adult_voice"`
	PreteenVoice string   `mapstructure:"preteen_voice" yaml:"preteen_voice"`
	Models       []string `mapstructure:"models" yaml:"models"` // tried in order
	BaseURL      string   `mapstructure:"base_url" yaml:"base_url"`
}

// GenerationConfig tunes job runs.
type GenerationConfig struct {
	ModeFile       string        `mapstructure:"mode_file" yaml:"mode_file"`
	Personas       []string      `mapstructure:"personas" yaml:"personas"`
	CallTimeout    time.Duration `mapstructure:"call_timeout" yaml:"call_timeout"`
	RetryAttempts  int           `mapstructure:"retry_attempts" yaml:"retry_attempts"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay" yaml:"retry_base_delay"`
	MaxJobs        int           `mapstructure:"max_jobs" yaml:"max_jobs"`
}

// ServerConfig configures narration-server.
type ServerConfig struct {
	Port        int    `mapstructure:"port" yaml:"port"`
	MetricsAddr string `mapstructure:"metrics_addr" yaml:"metrics_addr"`
	Environment string `mapstructure:"environment" yaml:"environment"`
}

// SecretsConfig points at API keys in AWS Secrets Manager.
type SecretsConfig struct {
	Prefix string `mapstructure:"prefix" yaml:"prefix"` // e.g. "/echojam/"
}

// KeysConfig holds provider API keys. Empty keys may be filled from Secrets Manager.
type KeysConfig struct {
	Anthropic  string `mapstructure:"anthropic" yaml:"anthropic"`
	OpenAI     string `mapstructure:"openai" yaml:"openai"`
	ElevenLabs string `mapstructure:"elevenlabs" yaml:"elevenlabs"`
}
