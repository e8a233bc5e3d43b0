package script

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

var novaModels = map[string]string{
	"nova-lite": "us.amazon.nova-2-lite-v1:0",
}

// NovaGenerator writes narration with Amazon Nova through the Bedrock
// Converse API. It authenticates with AWS credentials, not an API key.
type NovaGenerator struct {
	model  string
	client *bedrockruntime.Client
}

func NewNovaGenerator(model string, cfg aws.Config) *NovaGenerator {
	return &NovaGenerator{
		model:  model,
		client: bedrockruntime.NewFromConfig(cfg),
	}
}

func (g *NovaGenerator) Name() string { return "nova" }

func (g *NovaGenerator) RequiresAPIKey() bool { return false }

func (g *NovaGenerator) Generate(ctx context.Context, _ string, in Input) (string, error) {
	modelID := novaModels[g.model]
	if modelID == "" {
		modelID = novaModels["nova-lite"]
	}

	resp, err := g.client.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(modelID),
		System: []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: buildSystemPrompt(in.Persona)},
		},
		Messages: []types.Message{
			{
				Role: types.ConversationRoleUser,
				Content: []types.ContentBlock{
					&types.ContentBlockMemberText{Value: buildUserPrompt(in)},
				},
			},
		},
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(maxTokens),
			Temperature: aws.Float32(temperature),
		},
	})
	if err != nil {
		return "", fmt.Errorf("Bedrock Converse error: %w", err)
	}
	return finish(extractNovaText(resp))
}

func extractNovaText(resp *bedrockruntime.ConverseOutput) string {
	if resp.Output == nil {
		return ""
	}
	msg, ok := resp.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return ""
	}
	for _, block := range msg.Value.Content {
		if tb, ok := block.(*types.ContentBlockMemberText); ok {
			return tb.Value
		}
	}
	return ""
}
