// Package persona holds the narration persona catalog: the per-audience style,
// length and speech settings consumed by script generation and synthesis.
package persona

import (
	"fmt"
	"strings"
)

// Name identifies a persona. It is also the persona key of a narration asset.
type Name string

const (
	Adult   Name = "adult"
	Preteen Name = "preteen"
)

// Persona defines a narrator's audience, length targets and behavioral rules.
type Persona struct {
	Name     Name
	Label    string // Human-readable label for CLI and tool output
	Audience string // Who the narration is written for

	// Length targets for a single stop's script.
	MinSentences int
	MaxSentences int
	MinWords     int
	MaxWords     int

	StyleGuidelines []string
	BannedPatterns  []string // Phrases or habits the script must never contain

	// Speech settings applied by synthesis providers that support them.
	SpeechInstructions string
	SpeakingRate       float64
}

var adultPersona = Persona{
	Name:         Adult,
	Label:        "Adult",
	Audience:     "curious adults exploring the city at their own pace",
	MinSentences: 5,
	MaxSentences: 8,
	MinWords:     110,
	MaxWords:     170,
	StyleGuidelines: []string{
		"Open with a concrete detail the listener can see or hear from where they stand.",
		"Tell one story well rather than listing facts. Names, dates and numbers only when they earn their place.",
		"Use a warm, conversational register, like a knowledgeable local walking alongside.",
		"End with a single line that connects this place to the wider city.",
	},
	BannedPatterns: []string{
		"Welcome to",
		"Did you know",
		"Nestled",
		"hidden gem",
		"rich history",
		"stands as a testament",
		"Markdown, bullet points, headings or stage directions",
		"References to being an AI, a guide app or an audio tour",
	},
	SpeechInstructions: "Warm, unhurried documentary narrator. Natural pauses between sentences.",
	SpeakingRate:       1.0,
}

var preteenPersona = Persona{
	Name:         Preteen,
	Label:        "Preteen",
	Audience:     "kids aged 9 to 12 exploring with their family",
	MinSentences: 4,
	MaxSentences: 7,
	MinWords:     80,
	MaxWords:     130,
	StyleGuidelines: []string{
		"Start with a question or an image that makes a kid look up.",
		"Use short sentences and everyday words. Explain any unusual word right after using it.",
		"Include one surprising or funny true detail.",
		"Invite the listener to spot, count or imagine something at the stop.",
	},
	BannedPatterns: []string{
		"Welcome to",
		"Hey kids",
		"boring",
		"scary violence or gore",
		"Markdown, bullet points, headings or stage directions",
		"References to being an AI, a guide app or an audio tour",
	},
	SpeechInstructions: "Bright, friendly storyteller for young listeners. Clear and lively without shouting.",
	SpeakingRate:       1.05,
}

var catalog = map[Name]Persona{
	Adult:   adultPersona,
	Preteen: preteenPersona,
}

// All returns every persona in a stable order.
func All() []Persona {
	return []Persona{adultPersona, preteenPersona}
}

// Lookup returns the persona for name.
func Lookup(name Name) (Persona, bool) {
	p, ok := catalog[name]
	return p, ok
}

// Parse resolves a user-supplied persona name.
func Parse(s string) (Name, error) {
	n := Name(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := catalog[n]; !ok {
		return "", fmt.Errorf("unknown persona %q: choose adult or preteen", s)
	}
	return n, nil
}

// ParseList resolves a comma-separated persona list, dropping duplicates.
// An empty list yields the adult persona.
func ParseList(s string) ([]Name, error) {
	var out []Name
	seen := make(map[Name]bool)
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		n, err := Parse(part)
		if err != nil {
			return nil, err
		}
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	if len(out) == 0 {
		out = []Name{Adult}
	}
	return out, nil
}

// LengthInstruction renders the persona's length targets as prompt text.
func (p Persona) LengthInstruction() string {
	return fmt.Sprintf("Write %d to %d sentences, about %d to %d words in total.",
		p.MinSentences, p.MaxSentences, p.MinWords, p.MaxWords)
}
