package app

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rheath/echojam/internal/config"
	"github.com/rheath/echojam/internal/persona"
	"github.com/rheath/echojam/internal/storage"
	"github.com/rheath/echojam/internal/store"
)

func TestNewWiresLocalComponents(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Store.Backend = "memory"
	cfg.Storage.Backend = "inline"
	cfg.Script.Provider = "openai"
	cfg.TTS.Provider = "elevenlabs"
	cfg.Generation.Personas = []string{"preteen", "adult"}

	a, err := New(context.Background(), &cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &store.MemoryStore{}, a.Store)
	assert.Equal(t, storage.Inline{}, a.Uploader)
	assert.Equal(t, "openai", a.Scripts.Name())
	assert.Equal(t, "elevenlabs", a.Speech.Name())
	assert.NotNil(t, a.Orchestrator(nil))

	personas, err := a.Personas()
	require.NoError(t, err)
	assert.Equal(t, []persona.Name{persona.Preteen, persona.Adult}, personas)
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Store.Backend = "memory"
	cfg.Script.Provider = "gemini"

	_, err := New(context.Background(), &cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}

func TestOpenStoreSQLite(t *testing.T) {
	st, err := openStore(config.StoreConfig{Backend: "sqlite", DSN: "file:apptest?mode=memory&cache=shared"}, aws.Config{Region: "us-east-1"})
	require.NoError(t, err)
	defer st.Close()

	job, err := st.GetJob(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, job)
}
