package voice

import (
	"context"
	"fmt"

	"wikimind/internal/common/aws"
	"wikimind/internal/common/config"
)

func openAIOptions(cfg config.VoiceConfig) OpenAIOptions {
	return OpenAIOptions{
		APIKey:     cfg.OpenAI.APIKey,
		BaseURL:    cfg.OpenAI.BaseURL,
		Timeout:    config.GetDuration(cfg.OpenAI.Timeout),
		MaxRetries: cfg.OpenAI.MaxRetries,
	}
}

// NewRecognizer picks the backend named by cfg.Recognition.Backend.
func NewRecognizer(cfg config.VoiceConfig) (Recognizer, error) {
	switch cfg.Recognition.Backend {
	case "", "openai":
		return NewOpenAIRecognizer(openAIOptions(cfg), cfg.Recognition.Model), nil
	default:
		return nil, fmt.Errorf("unknown recognition backend %q", cfg.Recognition.Backend)
	}
}

// NewSynthesizer picks the backend named by cfg.Synthesis.Backend.
func NewSynthesizer(ctx context.Context, cfg config.VoiceConfig) (Synthesizer, error) {
	switch cfg.Synthesis.Backend {
	case "", "openai":
		return NewOpenAISynthesizer(openAIOptions(cfg), cfg.Synthesis.Model, cfg.Synthesis.Voice), nil
	case "polly":
		client, err := aws.NewPollyClient(ctx, cfg.Synthesis.Region)
		if err != nil {
			return nil, fmt.Errorf("create polly client: %w", err)
		}
		return NewPollySynthesizer(client), nil
	default:
		return nil, fmt.Errorf("unknown synthesis backend %q", cfg.Synthesis.Backend)
	}
}
