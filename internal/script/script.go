// Package script generates per-stop narration scripts with an LLM.
package script

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/rheath/echojam/internal/persona"
)

// ErrEmptyScript is returned when a provider answers with no usable text.
var ErrEmptyScript = errors.New("script provider returned empty text")

// Input describes one stop to narrate.
type Input struct {
	City          string
	TransportMode string
	LengthMinutes int
	Persona       persona.Persona
	StopTitle     string
	StopIndex     int // zero-based position in the tour
	TotalStops    int
}

// Generator produces narration text for a single stop.
type Generator interface {
	Name() string
	// RequiresAPIKey reports whether Generate needs a non-empty apiKey.
	RequiresAPIKey() bool
	Generate(ctx context.Context, apiKey string, in Input) (string, error)
}

const (
	temperature = 0.7
	maxTokens   = 1024
)

// NewGenerator creates a script generator by provider name. baseURL is
// optional and ignored by nova.
func NewGenerator(name, model, baseURL string, awsCfg aws.Config) (Generator, error) {
	switch name {
	case "claude", "":
		g := NewClaudeGenerator(model)
		g.baseURL = baseURL
		return g, nil
	case "openai":
		return NewOpenAIGenerator(model, baseURL), nil
	case "nova":
		return NewNovaGenerator(model, awsCfg), nil
	default:
		return nil, fmt.Errorf("unknown script provider %q: choose claude, openai, or nova", name)
	}
}

// Providers lists the supported generator names.
func Providers() []string {
	return []string{"claude", "openai", "nova"}
}

var (
	fenceRe     = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*\n?(.*?)\n?```$")
	directionRe = regexp.MustCompile(`\[[^\]]*\]|\*[^*\n]+\*`)
	headingRe   = regexp.MustCompile(`(?m)^\s*(#+|[-*•]|\d+\.)\s+`)
	labelRe     = regexp.MustCompile(`(?i)^(narrator|script|narration)\s*:\s*`)
)

// Clean strips the formatting LLMs like to add around spoken narration and
// collapses whitespace. An empty result means the provider produced nothing usable.
func Clean(text string) string {
	text = strings.TrimSpace(text)
	if m := fenceRe.FindStringSubmatch(text); len(m) > 1 {
		text = m[1]
	}
	text = headingRe.ReplaceAllString(text, "")
	text = directionRe.ReplaceAllString(text, "")
	text = strings.Join(strings.Fields(text), " ")
	text = labelRe.ReplaceAllString(text, "")
	text = strings.Trim(text, `"“”`)
	return strings.TrimSpace(text)
}

// finish cleans raw provider output and rejects empty results.
func finish(raw string) (string, error) {
	text := Clean(raw)
	if text == "" {
		return "", ErrEmptyScript
	}
	return text, nil
}

func truncate(s string, maxLen int) string {
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}
