package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/rheath/echojam/internal/persona"
)

var openAIDefaultModels = []string{"gpt-4o-mini-tts", "tts-1-hd", "tts-1"}

var openAIDefaultVoices = VoiceMap{
	persona.Adult:   {ID: "onyx", Name: "Onyx"},
	persona.Preteen: {ID: "nova", Name: "Nova"},
}

// OpenAIProvider implements Provider using the OpenAI speech API.
type OpenAIProvider struct {
	voices  VoiceMap
	models  []string
	baseURL string
}

func NewOpenAIProvider(cfg ProviderConfig) *OpenAIProvider {
	return &OpenAIProvider{
		voices:  voiceMap(openAIDefaultVoices, cfg),
		models:  modelsOr(cfg, openAIDefaultModels),
		baseURL: cfg.BaseURL,
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) RequiresAPIKey() bool { return true }

func (p *OpenAIProvider) Models() []string { return p.models }

func (p *OpenAIProvider) Voices() VoiceMap { return p.voices }

func (p *OpenAIProvider) Synthesize(ctx context.Context, apiKey, model string, voice Voice, per persona.Persona, text string) ([]byte, error) {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if p.baseURL != "" {
		opts = append(opts, option.WithBaseURL(p.baseURL))
	}
	client := openai.NewClient(opts...)

	params := openai.AudioSpeechNewParams{
		Input:          text,
		Model:          openai.SpeechModel(model),
		Voice:          openai.AudioSpeechNewParamsVoice(voice.ID),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	}
	if per.SpeakingRate > 0 {
		params.Speed = openai.Float(per.SpeakingRate)
	}
	if per.SpeechInstructions != "" && supportsInstructions(model) {
		params.Instructions = openai.String(per.SpeechInstructions)
	}

	resp, err := client.Audio.Speech.New(ctx, params)
	if err != nil {
		return nil, mapOpenAIError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read openai audio response: %w", err)
	}
	return data, nil
}

func (p *OpenAIProvider) Close() error { return nil }

func supportsInstructions(model string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(model)), "gpt-4o-mini-tts")
}

func mapOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 && apiErr.StatusCode != http.StatusTooManyRequests {
			return &ClientError{StatusCode: apiErr.StatusCode, Body: apiErr.Message}
		}
		return fmt.Errorf("OpenAI API error (status %d): %w", apiErr.StatusCode, err)
	}
	return fmt.Errorf("OpenAI speech: %w", err)
}

func openAIAvailableVoices() []VoiceInfo {
	return []VoiceInfo{
		{ID: "onyx", Name: "Onyx", Gender: "male", Description: "Deep, steady narrator", DefaultFor: "adult"},
		{ID: "nova", Name: "Nova", Gender: "female", Description: "Bright, friendly and clear", DefaultFor: "preteen"},
		{ID: "sage", Name: "Sage", Gender: "female", Description: "Calm, measured"},
		{ID: "coral", Name: "Coral", Gender: "female", Description: "Warm, upbeat"},
		{ID: "ash", Name: "Ash", Gender: "male", Description: "Conversational"},
		{ID: "fable", Name: "Fable", Gender: "male", Description: "Expressive storyteller"},
		{ID: "alloy", Name: "Alloy", Gender: "female", Description: "Neutral, balanced"},
	}
}
