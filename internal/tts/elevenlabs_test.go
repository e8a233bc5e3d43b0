package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rheath/echojam/internal/persona"
)

func TestElevenLabsVariantFallback(t *testing.T) {
	var models []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "xi-test", r.Header.Get("xi-api-key"))
		assert.True(t, strings.HasPrefix(r.URL.Path, "/pFZP5JQG7iQjIQuC4Bku"), r.URL.Path)
		var req elevenLabsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		models = append(models, req.ModelID)
		if req.ModelID == "eleven_multilingual_v2" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3audio"))
	}))
	defer srv.Close()

	p := NewElevenLabsProvider(ProviderConfig{BaseURL: srv.URL})
	data, err := NewSynthesizer(p, discard()).Synthesize(context.Background(), "xi-test", persona.Preteen, "Look up.")
	require.NoError(t, err)
	assert.Equal(t, "ID3audio", string(data))
	assert.Equal(t, []string{"eleven_multilingual_v2", "eleven_turbo_v2_5"}, models)
}

func TestElevenLabsClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"invalid key"}`))
	}))
	defer srv.Close()

	p := NewElevenLabsProvider(ProviderConfig{BaseURL: srv.URL, Models: []string{"eleven_flash_v2_5"}})
	_, err := p.Synthesize(context.Background(), "bad", "eleven_flash_v2_5", p.Voices().For(persona.Adult), persona.Persona{}, "x")
	var ce *ClientError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, http.StatusUnauthorized, ce.StatusCode)
}
