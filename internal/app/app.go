// Package app wires configuration into the store, uploader and providers
// shared by the echojam CLI and narration-server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	gcs "cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"

	"github.com/rheath/echojam/internal/config"
	"github.com/rheath/echojam/internal/metrics"
	"github.com/rheath/echojam/internal/persona"
	"github.com/rheath/echojam/internal/pipeline"
	"github.com/rheath/echojam/internal/progress"
	"github.com/rheath/echojam/internal/script"
	"github.com/rheath/echojam/internal/storage"
	"github.com/rheath/echojam/internal/store"
	"github.com/rheath/echojam/internal/tts"
)

// App holds the components built from one configuration.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	AWS      aws.Config
	Store    store.Store
	Uploader storage.Uploader
	Scripts  script.Generator
	Speech   *tts.Synthesizer
	Metrics  *metrics.Metrics

	closers []func() error
}

// New builds every component. On error, anything already opened is closed.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger, Metrics: metrics.New()}

	awsCfg, err := loadAWS(ctx, cfg.AWSRegion)
	if err != nil {
		return nil, err
	}
	a.AWS = awsCfg

	if cfg.Secrets.Prefix != "" {
		config.LoadSecrets(ctx, secretsmanager.NewFromConfig(awsCfg), cfg.Secrets.Prefix, &cfg.Keys, logger)
	}

	if err := a.build(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.Config

	st, err := openStore(cfg.Store, a.AWS)
	if err != nil {
		return err
	}
	a.Store = st
	a.closers = append(a.closers, st.Close)

	a.Uploader, err = a.openUploader(ctx, cfg.Storage)
	if err != nil {
		return err
	}

	a.Scripts, err = script.NewGenerator(cfg.Script.Provider, cfg.Script.Model, cfg.Script.BaseURL, a.AWS)
	if err != nil {
		return err
	}

	provider, err := tts.NewProvider(ctx, cfg.TTS.Provider, tts.ProviderConfig{
		AdultVoice:   cfg.TTS.AdultVoice,
		PreteenVoice: cfg.TTS.PreteenVoice,
		Models:       cfg.TTS.Models,
		BaseURL:      cfg.TTS.BaseURL,
		AWS:          a.AWS,
	})
	if err != nil {
		return err
	}
	a.Speech = tts.NewSynthesizer(provider, a.Logger)
	a.closers = append(a.closers, a.Speech.Close)
	return nil
}

// loadAWS loads the default AWS config with tracing middleware on every client.
func loadAWS(ctx context.Context, region string) (aws.Config, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	otelaws.AppendMiddlewares(&cfg.APIOptions)
	return cfg, nil
}

func openStore(cfg config.StoreConfig, awsCfg aws.Config) (store.Store, error) {
	switch cfg.Backend {
	case "dynamodb":
		return store.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.Table), nil
	case "postgres", "sqlite":
		return store.OpenSQL(cfg.Backend, cfg.DSN)
	case "memory":
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func (a *App) openUploader(ctx context.Context, cfg config.StorageConfig) (storage.Uploader, error) {
	switch cfg.Backend {
	case "s3":
		region := cfg.Region
		if region == "" {
			region = a.AWS.Region
		}
		return storage.NewS3(s3.NewFromConfig(a.AWS), cfg.Bucket, region, cfg.CDNBaseURL), nil
	case "gcs":
		client, err := gcs.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		u := storage.NewGCS(client, cfg.Bucket, cfg.CDNBaseURL)
		a.closers = append(a.closers, u.Close)
		return u, nil
	case "inline":
		return storage.Inline{}, nil
	case "none":
		return storage.Unconfigured{}, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// Orchestrator returns a pipeline orchestrator over the app's components.
func (a *App) Orchestrator(onProgress progress.Callback) *pipeline.Orchestrator {
	g := a.Config.Generation
	return pipeline.New(pipeline.Deps{
		Store:    a.Store,
		Scripts:  a.Scripts,
		Speech:   a.Speech,
		Uploader: a.Uploader,
		Logger:   a.Logger,
		Metrics:  a.Metrics,
		Progress: onProgress,
	}, pipeline.Options{
		CallTimeout:    g.CallTimeout,
		RetryAttempts:  g.RetryAttempts,
		RetryBaseDelay: g.RetryBaseDelay,
	})
}

// Personas returns the configured default personas.
func (a *App) Personas() ([]persona.Name, error) {
	return persona.ParseList(strings.Join(a.Config.Generation.Personas, ","))
}

// Close releases every opened component.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
