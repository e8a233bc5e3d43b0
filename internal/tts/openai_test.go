package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rheath/echojam/internal/persona"
)

func TestOpenAIProviderSynthesize(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/speech", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3speech"))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(ProviderConfig{BaseURL: srv.URL + "/"})
	per, _ := persona.Lookup(persona.Adult)
	data, err := p.Synthesize(context.Background(), "sk-test", "gpt-4o-mini-tts", p.Voices().For(persona.Adult), per, "Look up.")
	require.NoError(t, err)
	assert.Equal(t, "ID3speech", string(data))
	assert.Equal(t, "onyx", body["voice"])
	assert.Equal(t, "mp3", body["response_format"])
	assert.Equal(t, per.SpeechInstructions, body["instructions"])
}

func TestOpenAIProviderNoInstructionsForLegacyModels(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte("ID3"))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(ProviderConfig{BaseURL: srv.URL + "/"})
	per, _ := persona.Lookup(persona.Preteen)
	_, err := p.Synthesize(context.Background(), "sk-test", "tts-1", p.Voices().For(persona.Preteen), per, "Hi.")
	require.NoError(t, err)
	_, has := body["instructions"]
	assert.False(t, has)
	assert.Equal(t, "nova", body["voice"])
}
