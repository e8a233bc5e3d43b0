package tts

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rheath/echojam/internal/persona"
)

type fakeProvider struct {
	models  []string
	results map[string]func() ([]byte, error)
	calls   []string
	voices  []Voice
}

func (f *fakeProvider) Name() string         { return "fake" }
func (f *fakeProvider) RequiresAPIKey() bool { return true }
func (f *fakeProvider) Models() []string     { return f.models }
func (f *fakeProvider) Voices() VoiceMap {
	return VoiceMap{persona.Adult: {ID: "adult-voice"}, persona.Preteen: {ID: "kid-voice"}}
}
func (f *fakeProvider) Close() error { return nil }

func (f *fakeProvider) Synthesize(_ context.Context, _, model string, voice Voice, _ persona.Persona, _ string) ([]byte, error) {
	f.calls = append(f.calls, model)
	f.voices = append(f.voices, voice)
	return f.results[model]()
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func returns(b string) func() ([]byte, error) { return func() ([]byte, error) { return []byte(b), nil } }
func fails(err error) func() ([]byte, error) { return func() ([]byte, error) { return nil, err } }

func TestSynthesizerFirstVariantWins(t *testing.T) {
	p := &fakeProvider{models: []string{"a", "b"}, results: map[string]func() ([]byte, error){"a": returns("mp3"), "b": returns("other")}}
	data, err := NewSynthesizer(p, discard()).Synthesize(context.Background(), "k", persona.Preteen, "hello")
	require.NoError(t, err)
	assert.Equal(t, "mp3", string(data))
	assert.Equal(t, []string{"a"}, p.calls)
	assert.Equal(t, "kid-voice", p.voices[0].ID)
}

func TestSynthesizerEmptyBytesFallsThrough(t *testing.T) {
	p := &fakeProvider{models: []string{"a", "b"}, results: map[string]func() ([]byte, error){"a": returns(""), "b": returns("mp3")}}
	data, err := NewSynthesizer(p, discard()).Synthesize(context.Background(), "k", persona.Adult, "hello")
	require.NoError(t, err)
	assert.Equal(t, "mp3", string(data))
	assert.Equal(t, []string{"a", "b"}, p.calls)
}

func TestSynthesizerAllVariantsFail(t *testing.T) {
	boom := errors.New("boom")
	p := &fakeProvider{models: []string{"a", "b"}, results: map[string]func() ([]byte, error){"a": fails(boom), "b": returns("")}}
	_, err := NewSynthesizer(p, discard()).Synthesize(context.Background(), "k", persona.Adult, "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, ErrEmptyAudio)
}

func TestSynthesizerRejectsBadInput(t *testing.T) {
	p := &fakeProvider{models: []string{"a"}}
	s := NewSynthesizer(p, discard())
	_, err := s.Synthesize(context.Background(), "k", persona.Name("robot"), "hello")
	assert.Error(t, err)
	_, err = s.Synthesize(context.Background(), "k", persona.Adult, "   ")
	assert.Error(t, err)
	assert.Empty(t, p.calls)
}

func TestVoiceMapFallsBackToAdult(t *testing.T) {
	m := VoiceMap{persona.Adult: {ID: "a"}}
	assert.Equal(t, "a", m.For(persona.Preteen).ID)
}

func TestVoiceOverrides(t *testing.T) {
	p := NewOpenAIProvider(ProviderConfig{PreteenVoice: "coral", Models: []string{" ", "tts-1"}})
	assert.Equal(t, "coral", p.Voices()[persona.Preteen].ID)
	assert.Equal(t, "onyx", p.Voices()[persona.Adult].ID)
	assert.Equal(t, []string{"tts-1"}, p.Models())
	assert.Equal(t, "onyx", openAIDefaultVoices[persona.Adult].ID, "defaults are not mutated")
}

func TestGoogleVoiceName(t *testing.T) {
	assert.Equal(t, "en-US-Chirp3-HD-Charon", googleVoiceName("Chirp3-HD", "Charon"))
	assert.Equal(t, "en-US-Chirp-HD-F", googleVoiceName("Chirp-HD", "Leda"))
	assert.Equal(t, "en-GB-Neural2-A", googleVoiceName("Chirp3-HD", "en-GB-Neural2-A"))
}

func TestAvailableVoices(t *testing.T) {
	for _, name := range Providers() {
		voices, err := AvailableVoices(name)
		require.NoError(t, err, name)
		assert.NotEmpty(t, voices, name)
	}
	_, err := AvailableVoices("nope")
	assert.Error(t, err)
}
