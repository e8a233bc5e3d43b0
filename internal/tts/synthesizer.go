package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rheath/echojam/internal/persona"
	"github.com/rheath/echojam/internal/retry"
)

// ErrEmptyAudio is recorded when a model variant returns zero bytes.
var ErrEmptyAudio = errors.New("empty audio")

// Synthesizer turns a persona's narration into audio by trying a provider's
// model variants in priority order.
type Synthesizer struct {
	provider Provider
	voices   VoiceMap
	logger   *slog.Logger
}

// NewSynthesizer wraps provider.
func NewSynthesizer(provider Provider, logger *slog.Logger) *Synthesizer {
	return &Synthesizer{provider: provider, voices: provider.Voices(), logger: logger}
}

func (s *Synthesizer) Name() string { return s.provider.Name() }

func (s *Synthesizer) RequiresAPIKey() bool { return s.provider.RequiresAPIKey() }

// Synthesize returns MP3 bytes for text. An empty result counts as a failed
// variant; exhausting every variant is an error that joins each failure.
// When every variant was rejected as a client error the result is marked
// permanent for retry.
func (s *Synthesizer) Synthesize(ctx context.Context, apiKey string, name persona.Name, text string) ([]byte, error) {
	p, ok := persona.Lookup(name)
	if !ok {
		return nil, retry.Permanent(fmt.Errorf("unknown persona %q", name))
	}
	if strings.TrimSpace(text) == "" {
		return nil, retry.Permanent(errors.New("nothing to synthesize"))
	}
	voice := s.voices.For(name)

	var errs []error
	allClient := true
	for _, model := range s.provider.Models() {
		data, err := s.provider.Synthesize(ctx, apiKey, model, voice, p, text)
		if err == nil && len(data) == 0 {
			err = ErrEmptyAudio
		}
		if err == nil {
			return data, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var ce *ClientError
		if !errors.As(err, &ce) {
			allClient = false
		}
		s.logger.Warn("speech model variant failed",
			"provider", s.provider.Name(), "model", model, "persona", string(name), "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", model, err))
	}

	err := fmt.Errorf("%s: all model variants failed: %w", s.provider.Name(), errors.Join(errs...))
	if allClient && len(errs) > 0 {
		return nil, retry.Permanent(err)
	}
	return nil, err
}

func (s *Synthesizer) Close() error { return s.provider.Close() }
