package script

import (
	"context"
	"fmt"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const openAIDefaultModel = "gpt-4o-mini"

// OpenAIGenerator writes narration with the OpenAI Chat Completions API.
type OpenAIGenerator struct {
	model   string
	baseURL string
}

// NewOpenAIGenerator creates a generator. baseURL is optional.
func NewOpenAIGenerator(model, baseURL string) *OpenAIGenerator {
	if model == "" {
		model = openAIDefaultModel
	}
	return &OpenAIGenerator{model: model, baseURL: baseURL}
}

func (g *OpenAIGenerator) Name() string { return "openai" }

func (g *OpenAIGenerator) RequiresAPIKey() bool { return true }

func (g *OpenAIGenerator) Generate(ctx context.Context, apiKey string, in Input) (string, error) {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if g.baseURL != "" {
		opts = append(opts, option.WithBaseURL(g.baseURL))
	}
	client := openai.NewClient(opts...)

	completion, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(buildSystemPrompt(in.Persona)),
			openai.UserMessage(buildUserPrompt(in)),
		},
		Temperature:         openai.Float(temperature),
		MaxCompletionTokens: openai.Int(maxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", ErrEmptyScript
	}
	return finish(completion.Choices[0].Message.Content)
}
