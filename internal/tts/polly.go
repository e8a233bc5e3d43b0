package tts

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"

	"github.com/rheath/echojam/internal/persona"
)

// Polly model variants are engines.
var pollyDefaultModels = []string{string(types.EngineGenerative), string(types.EngineNeural)}

var pollyDefaultVoices = VoiceMap{
	persona.Adult:   {ID: "Matthew", Name: "Matthew"},
	persona.Preteen: {ID: "Ivy", Name: "Ivy"},
}

// pollyVoiceLang maps voice IDs to their language codes.
var pollyVoiceLang = map[string]types.LanguageCode{
	"Matthew":  types.LanguageCodeEnUs,
	"Ruth":     types.LanguageCodeEnUs,
	"Ivy":      types.LanguageCodeEnUs,
	"Kevin":    types.LanguageCodeEnUs,
	"Danielle": types.LanguageCodeEnUs,
	"Amy":      types.LanguageCodeEnGb,
	"Olivia":   types.LanguageCodeEnAu,
}

// PollyProvider implements Provider using AWS Polly. It authenticates with
// AWS credentials, not an API key.
type PollyProvider struct {
	voices VoiceMap
	models []string
	client *polly.Client
}

func NewPollyProvider(cfg ProviderConfig) *PollyProvider {
	return &PollyProvider{
		voices: voiceMap(pollyDefaultVoices, cfg),
		models: modelsOr(cfg, pollyDefaultModels),
		client: polly.NewFromConfig(cfg.AWS),
	}
}

func (p *PollyProvider) Name() string { return "polly" }

func (p *PollyProvider) RequiresAPIKey() bool { return false }

func (p *PollyProvider) Models() []string { return p.models }

func (p *PollyProvider) Voices() VoiceMap { return p.voices }

func (p *PollyProvider) Synthesize(ctx context.Context, _, model string, voice Voice, _ persona.Persona, text string) ([]byte, error) {
	lang, ok := pollyVoiceLang[voice.ID]
	if !ok {
		lang = types.LanguageCodeEnUs
	}

	input := &polly.SynthesizeSpeechInput{
		Engine:       types.Engine(model),
		OutputFormat: types.OutputFormatMp3,
		SampleRate:   aws.String("24000"),
		Text:         aws.String(text),
		TextType:     types.TextTypeText,
		VoiceId:      types.VoiceId(voice.ID),
		LanguageCode: lang,
	}

	resp, err := p.client.SynthesizeSpeech(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("Polly synthesize: %w", err)
	}
	defer resp.AudioStream.Close()

	data, err := io.ReadAll(resp.AudioStream)
	if err != nil {
		return nil, fmt.Errorf("Polly read audio: %w", err)
	}
	return data, nil
}

func (p *PollyProvider) Close() error { return nil }

func pollyAvailableVoices() []VoiceInfo {
	return []VoiceInfo{
		{ID: "Matthew", Name: "Matthew", Gender: "male", Description: "en-US, Generative", DefaultFor: "adult"},
		{ID: "Ivy", Name: "Ivy", Gender: "female", Description: "en-US child voice, Neural", DefaultFor: "preteen"},
		{ID: "Kevin", Name: "Kevin", Gender: "male", Description: "en-US child voice, Neural"},
		{ID: "Ruth", Name: "Ruth", Gender: "female", Description: "en-US, Generative"},
		{ID: "Danielle", Name: "Danielle", Gender: "female", Description: "en-US, Generative"},
		{ID: "Amy", Name: "Amy", Gender: "female", Description: "en-GB, Generative"},
		{ID: "Olivia", Name: "Olivia", Gender: "female", Description: "en-AU, Generative"},
	}
}
