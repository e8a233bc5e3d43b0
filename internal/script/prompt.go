package script

import (
	"fmt"
	"strings"

	"github.com/rheath/echojam/internal/persona"
)

func buildSystemPrompt(p persona.Persona) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a tour narrator writing spoken audio for %s.\n\n", p.Audience)

	b.WriteString("STYLE:\n")
	for i, g := range p.StyleGuidelines {
		fmt.Fprintf(&b, "%d. %s\n", i+1, g)
	}

	b.WriteString("\nLENGTH:\n")
	b.WriteString(p.LengthInstruction())
	b.WriteString("\n\nNEVER USE:\n")
	for _, banned := range p.BannedPatterns {
		fmt.Fprintf(&b, "- %s\n", banned)
	}

	b.WriteString(`
RULES:
1. Only state facts you are confident are true of this exact place. If unsure, describe what the listener can observe instead.
2. Write for the ear: plain sentences, no lists, no parenthetical asides.
3. Do not greet the listener or announce the stop number.

OUTPUT FORMAT:
Return ONLY the narration text. No title, no quotes, no markdown, no text before or after it.`)
	return b.String()
}

func buildUserPrompt(in Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CITY: %s\n", in.City)
	fmt.Fprintf(&b, "TOUR: %d-minute %s tour\n", in.LengthMinutes, transportPhrase(in.TransportMode))
	fmt.Fprintf(&b, "STOP: %s\n", in.StopTitle)
	fmt.Fprintf(&b, "POSITION: stop %d of %d\n\n", in.StopIndex+1, in.TotalStops)
	b.WriteString(positionDirective(in.StopIndex, in.TotalStops))
	b.WriteString("\n\nWrite the narration for this stop.")
	return b.String()
}

func transportPhrase(mode string) string {
	switch strings.ToLower(mode) {
	case "drive", "driving":
		return "driving"
	default:
		return "walking"
	}
}

func positionDirective(index, total int) string {
	switch {
	case total <= 1:
		return "This is the only stop, so the narration should stand on its own."
	case index == 0:
		return "This is the first stop. Set the scene for the city without a formal welcome."
	case index == total-1:
		return "This is the final stop. Leave the listener with a closing thought about the tour."
	default:
		return "This is a middle stop. You may hint that more of the city is still ahead."
	}
}
