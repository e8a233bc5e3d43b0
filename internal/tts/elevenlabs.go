package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rheath/echojam/internal/persona"
)

const (
	elevenLabsBaseURL      = "https://api.elevenlabs.io/v1/text-to-speech"
	elevenLabsOutputFormat = "mp3_44100_128"
)

var elevenLabsDefaultModels = []string{"eleven_multilingual_v2", "eleven_turbo_v2_5", "eleven_flash_v2_5"}

var elevenLabsDefaultVoices = VoiceMap{
	persona.Adult:   {ID: "JBFqnCBsd6RMkjVDRZzb", Name: "George"},
	persona.Preteen: {ID: "pFZP5JQG7iQjIQuC4Bku", Name: "Lily"},
}

type elevenLabsRequest struct {
	Text          string                 `json:"text"`
	ModelID       string                 `json:"model_id"`
	VoiceSettings *elevenLabsVoiceParams `json:"voice_settings,omitempty"`
}

type elevenLabsVoiceParams struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
	Speed           float64 `json:"speed"`
}

// ElevenLabsProvider implements Provider using the ElevenLabs TTS API.
type ElevenLabsProvider struct {
	voices     VoiceMap
	models     []string
	baseURL    string
	httpClient *http.Client
}

func NewElevenLabsProvider(cfg ProviderConfig) *ElevenLabsProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = elevenLabsBaseURL
	}
	return &ElevenLabsProvider{
		voices:     voiceMap(elevenLabsDefaultVoices, cfg),
		models:     modelsOr(cfg, elevenLabsDefaultModels),
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (p *ElevenLabsProvider) Name() string { return "elevenlabs" }

func (p *ElevenLabsProvider) RequiresAPIKey() bool { return true }

func (p *ElevenLabsProvider) Models() []string { return p.models }

func (p *ElevenLabsProvider) Voices() VoiceMap { return p.voices }

func (p *ElevenLabsProvider) Synthesize(ctx context.Context, apiKey, model string, voice Voice, per persona.Persona, text string) ([]byte, error) {
	speed := per.SpeakingRate
	if speed <= 0 {
		speed = 1.0
	}
	reqBody := elevenLabsRequest{
		Text:    text,
		ModelID: model,
		VoiceSettings: &elevenLabsVoiceParams{
			Stability:       0.5,
			SimilarityBoost: 0.75,
			Style:           0.0,
			UseSpeakerBoost: true,
			Speed:           speed,
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s?output_format=%s", p.baseURL, voice.ID, elevenLabsOutputFormat)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("xi-api-key", apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	res, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
		if res.StatusCode >= 400 && res.StatusCode < 500 && res.StatusCode != http.StatusTooManyRequests {
			return nil, &ClientError{StatusCode: res.StatusCode, Body: string(errBody)}
		}
		return nil, fmt.Errorf("ElevenLabs API error (status %d): %s", res.StatusCode, string(errBody))
	}

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return data, nil
}

func (p *ElevenLabsProvider) Close() error { return nil }

func elevenLabsAvailableVoices() []VoiceInfo {
	return []VoiceInfo{
		{ID: "JBFqnCBsd6RMkjVDRZzb", Name: "George", Gender: "male", Description: "Warm British male, clear and authoritative", DefaultFor: "adult"},
		{ID: "pFZP5JQG7iQjIQuC4Bku", Name: "Lily", Gender: "female", Description: "British female, warm storyteller", DefaultFor: "preteen"},
		{ID: "EXAVITQu4vr4xnSDxMaL", Name: "Sarah", Gender: "female", Description: "Soft American female, friendly and engaging"},
		{ID: "pNInz6obpgDQGcFmaJgB", Name: "Adam", Gender: "male", Description: "Deep American male, confident narrator"},
		{ID: "MF3mGyEYCl7XYWbV9V6O", Name: "Elli", Gender: "female", Description: "Young American female, bright and expressive"},
		{ID: "onwK4e9ZLuTAKqWW03F9", Name: "Daniel", Gender: "male", Description: "British male, authoritative news anchor"},
	}
}
