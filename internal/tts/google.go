package tts

import (
	"context"
	"fmt"
	"strings"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	texttospeechpb "cloud.google.com/go/texttospeech/apiv1/texttospeechpb"

	"github.com/rheath/echojam/internal/persona"
)

// Google model variants are voice families; a voice ID names only the
// speaker within the family.
var googleDefaultModels = []string{"Chirp3-HD", "Chirp-HD"}

var googleDefaultVoices = VoiceMap{
	persona.Adult:   {ID: "Charon", Name: "Charon"},
	persona.Preteen: {ID: "Leda", Name: "Leda"},
}

// googleFamilySpeakers maps a Chirp3 speaker to its closest Chirp-HD letter.
var googleFamilySpeakers = map[string]map[string]string{
	"Chirp-HD": {"Charon": "D", "Leda": "F", "Fenrir": "D", "Kore": "O", "Aoede": "F", "Puck": "D"},
}

// GoogleProvider implements Provider using Google Cloud TTS with
// application default credentials.
type GoogleProvider struct {
	voices VoiceMap
	models []string
	client *texttospeech.Client
}

func NewGoogleProvider(ctx context.Context, cfg ProviderConfig) (*GoogleProvider, error) {
	client, err := texttospeech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create Google TTS client: %w", err)
	}
	return &GoogleProvider{
		voices: voiceMap(googleDefaultVoices, cfg),
		models: modelsOr(cfg, googleDefaultModels),
		client: client,
	}, nil
}

func (p *GoogleProvider) Name() string { return "google" }

func (p *GoogleProvider) RequiresAPIKey() bool { return false }

func (p *GoogleProvider) Models() []string { return p.models }

func (p *GoogleProvider) Voices() VoiceMap { return p.voices }

func (p *GoogleProvider) Synthesize(ctx context.Context, _, model string, voice Voice, per persona.Persona, text string) ([]byte, error) {
	req := &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: "en-US",
			Name:         googleVoiceName(model, voice.ID),
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding: texttospeechpb.AudioEncoding_MP3,
			SpeakingRate:  per.SpeakingRate,
		},
	}

	resp, err := p.client.SynthesizeSpeech(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Google TTS synthesize: %w", err)
	}
	return resp.AudioContent, nil
}

func (p *GoogleProvider) Close() error { return p.client.Close() }

// googleVoiceName builds a full voice name such as en-US-Chirp3-HD-Charon.
// Full names are passed through unchanged.
func googleVoiceName(model, speaker string) string {
	if strings.HasPrefix(speaker, "en-") {
		return speaker
	}
	if mapped, ok := googleFamilySpeakers[model][speaker]; ok {
		speaker = mapped
	}
	return "en-US-" + model + "-" + speaker
}

func googleAvailableVoices() []VoiceInfo {
	return []VoiceInfo{
		{ID: "Charon", Name: "Charon", Gender: "male", Description: "Informative, clear male narrator", DefaultFor: "adult"},
		{ID: "Leda", Name: "Leda", Gender: "female", Description: "Youthful, bright female voice", DefaultFor: "preteen"},
		{ID: "Fenrir", Name: "Fenrir", Gender: "male", Description: "Deep, resonant male voice"},
		{ID: "Kore", Name: "Kore", Gender: "female", Description: "Firm, confident female voice"},
		{ID: "Aoede", Name: "Aoede", Gender: "female", Description: "Bright, expressive female voice"},
		{ID: "Puck", Name: "Puck", Gender: "male", Description: "Upbeat, energetic male voice"},
	}
}
