// Package tts synthesizes narration audio through pluggable speech providers.
package tts

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/rheath/echojam/internal/persona"
)

// Voice holds a provider-specific voice identifier.
type Voice struct {
	ID   string // Provider-specific voice identifier
	Name string // Human-readable label
}

// VoiceMap maps personas to voices.
type VoiceMap map[persona.Name]Voice

// For returns the voice for p, falling back to the adult voice.
func (m VoiceMap) For(p persona.Name) Voice {
	if v, ok := m[p]; ok && v.ID != "" {
		return v
	}
	return m[persona.Adult]
}

// Provider synthesizes MP3 speech for one model variant at a time.
type Provider interface {
	Name() string
	RequiresAPIKey() bool
	// Models returns the model variants to try, in priority order.
	Models() []string
	Synthesize(ctx context.Context, apiKey, model string, voice Voice, p persona.Persona, text string) ([]byte, error)
	Voices() VoiceMap
	Close() error
}

// VoiceInfo describes an available voice for display in the registry.
type VoiceInfo struct {
	ID          string
	Name        string
	Gender      string // "male" or "female"
	Description string
	DefaultFor  string // persona name or ""
}

// AvailableVoices returns the voice catalog for the named provider.
func AvailableVoices(providerName string) ([]VoiceInfo, error) {
	switch providerName {
	case "openai":
		return openAIAvailableVoices(), nil
	case "elevenlabs":
		return elevenLabsAvailableVoices(), nil
	case "google":
		return googleAvailableVoices(), nil
	case "polly":
		return pollyAvailableVoices(), nil
	default:
		return nil, fmt.Errorf("unknown TTS provider %q", providerName)
	}
}

// Providers lists the supported provider names.
func Providers() []string {
	return []string{"openai", "elevenlabs", "polly", "google"}
}

// ProviderConfig holds optional overrides shared by all providers.
type ProviderConfig struct {
	AdultVoice   string
	PreteenVoice string
	Models       []string   // overrides the provider's default variant order
	BaseURL      string     // HTTP providers only (tests)
	AWS          aws.Config // polly only
}

// NewProvider creates a TTS provider by name.
func NewProvider(ctx context.Context, name string, cfg ProviderConfig) (Provider, error) {
	switch name {
	case "openai", "":
		return NewOpenAIProvider(cfg), nil
	case "elevenlabs":
		return NewElevenLabsProvider(cfg), nil
	case "polly":
		return NewPollyProvider(cfg), nil
	case "google":
		return NewGoogleProvider(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown TTS provider %q: choose openai, elevenlabs, polly, or google", name)
	}
}

// voiceMap applies config overrides on top of a provider's defaults.
func voiceMap(defaults VoiceMap, cfg ProviderConfig) VoiceMap {
	out := make(VoiceMap, len(defaults))
	for k, v := range defaults {
		out[k] = v
	}
	if v := strings.TrimSpace(cfg.AdultVoice); v != "" {
		out[persona.Adult] = Voice{ID: v, Name: v}
	}
	if v := strings.TrimSpace(cfg.PreteenVoice); v != "" {
		out[persona.Preteen] = Voice{ID: v, Name: v}
	}
	return out
}

func modelsOr(cfg ProviderConfig, defaults []string) []string {
	var out []string
	for _, m := range cfg.Models {
		if m = strings.TrimSpace(m); m != "" {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return defaults
	}
	return out
}

// ClientError is a non-retryable rejection from a provider (4xx other than 429).
type ClientError struct {
	StatusCode int
	Body       string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Body)
}
