package script

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

var claudeModels = map[string]string{
	"haiku":  "claude-haiku-4-5-20251001",
	"sonnet": "claude-sonnet-4-5-20250929",
}

// ClaudeGenerator writes narration with the Anthropic Messages API.
type ClaudeGenerator struct {
	model   string
	baseURL string // optional (tests)
}

func NewClaudeGenerator(model string) *ClaudeGenerator {
	return &ClaudeGenerator{model: model}
}

func (g *ClaudeGenerator) Name() string { return "claude" }

func (g *ClaudeGenerator) RequiresAPIKey() bool { return true }

func (g *ClaudeGenerator) Generate(ctx context.Context, apiKey string, in Input) (string, error) {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if g.baseURL != "" {
		opts = append(opts, option.WithBaseURL(g.baseURL))
	}
	client := anthropic.NewClient(opts...)

	modelID := claudeModels[g.model]
	if modelID == "" {
		modelID = claudeModels["haiku"]
	}

	message, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(modelID),
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(temperature),
		System: []anthropic.TextBlockParam{
			{Text: buildSystemPrompt(in.Persona)},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildUserPrompt(in))),
		},
	})
	if err != nil {
		return "", fmt.Errorf("Claude API error: %w", err)
	}
	return finish(extractText(message))
}

func extractText(msg *anthropic.Message) string {
	var parts []string
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			parts = append(parts, tb.Text)
		}
	}
	return strings.Join(parts, "")
}
