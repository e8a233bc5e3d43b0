package script

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rheath/echojam/internal/persona"
)

// ReviewIssue describes a quality problem found in a generated script.
type ReviewIssue struct {
	Category string // "length", "sentences", "banned"
	Message  string
}

// lengthTolerance widens the persona's word and sentence targets.
const lengthTolerance = 0.25

var sentenceEndRe = regexp.MustCompile(`[.!?]+(\s|$)`)

// Review runs fast heuristic checks of text against the persona's targets.
// Issues are advisory: callers log them, they never reject a script.
func Review(text string, p persona.Persona) []ReviewIssue {
	var issues []ReviewIssue

	words := len(strings.Fields(text))
	minWords := int(float64(p.MinWords) * (1 - lengthTolerance))
	maxWords := int(float64(p.MaxWords) * (1 + lengthTolerance))
	if words < minWords || words > maxWords {
		issues = append(issues, ReviewIssue{
			Category: "length",
			Message:  fmt.Sprintf("script has %d words, target is %d-%d", words, p.MinWords, p.MaxWords),
		})
	}

	sentences := len(sentenceEndRe.FindAllStringIndex(text, -1))
	if sentences < p.MinSentences-1 || sentences > p.MaxSentences+2 {
		issues = append(issues, ReviewIssue{
			Category: "sentences",
			Message:  fmt.Sprintf("script has %d sentences, target is %d-%d", sentences, p.MinSentences, p.MaxSentences),
		})
	}

	lower := strings.ToLower(text)
	for _, banned := range p.BannedPatterns {
		if strings.Contains(lower, strings.ToLower(banned)) {
			issues = append(issues, ReviewIssue{
				Category: "banned",
				Message:  fmt.Sprintf("script contains banned phrase %q", banned),
			})
		}
	}
	return issues
}
