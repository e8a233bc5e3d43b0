package config

import (
	"context"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// SecretsAPI is the subset of the Secrets Manager client used here.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// LoadSecrets fills empty API keys from Secrets Manager, reading
// <prefix>ANTHROPIC_API_KEY and friends. Missing secrets are logged and
// skipped; keys already configured are never replaced.
func LoadSecrets(ctx context.Context, client SecretsAPI, prefix string, keys *KeysConfig, logger *slog.Logger) {
	if prefix == "" {
		return
	}
	secrets := []struct {
		name string
		dst  *string
	}{
		{"ANTHROPIC_API_KEY", &keys.Anthropic},
		{"OPENAI_API_KEY", &keys.OpenAI},
		{"ELEVENLABS_API_KEY", &keys.ElevenLabs},
	}

	for _, s := range secrets {
		if *s.dst != "" {
			continue
		}
		secretID := prefix + s.name
		result, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
			SecretId: &secretID,
		})
		if err != nil {
			logger.Info("Secret not found", "secret_id", secretID, "error", err)
			continue
		}
		if result.SecretString != nil {
			*s.dst = *result.SecretString
			logger.Info("Loaded secret", "secret_id", secretID)
		}
	}
}
