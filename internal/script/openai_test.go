package script

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rheath/echojam/internal/persona"
)

func chatServer(t *testing.T, content string, gotAuth *string, gotBody *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, gotBody)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
	}))
}

func TestOpenAIGenerator(t *testing.T) {
	var auth string
	var body map[string]any
	srv := chatServer(t, "```\nLook up at the gables.\n```", &auth, &body)
	defer srv.Close()

	p, _ := persona.Lookup(persona.Adult)
	g := NewOpenAIGenerator("", srv.URL+"/")
	text, err := g.Generate(context.Background(), "sk-test", Input{
		City: "Salem", TransportMode: "walk", LengthMinutes: 30, Persona: p,
		StopTitle: "House of the Seven Gables", StopIndex: 1, TotalStops: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, "Look up at the gables.", text)
	assert.Equal(t, "Bearer sk-test", auth)
	assert.Equal(t, openAIDefaultModel, body["model"])
	assert.Len(t, body["messages"], 2)
}

func TestOpenAIGeneratorEmpty(t *testing.T) {
	var auth string
	var body map[string]any
	srv := chatServer(t, "   ", &auth, &body)
	defer srv.Close()

	g := NewOpenAIGenerator("gpt-4o", srv.URL+"/")
	_, err := g.Generate(context.Background(), "sk-test", Input{StopTitle: "x", TotalStops: 1})
	assert.ErrorIs(t, err, ErrEmptyScript)
}
