package inference

import (
	"fmt"

	"wikimind/internal/common/config"
)

// NewLoader picks the backend named by cfg.Backend.
func NewLoader(cfg config.InferenceConfig, logger Logger) (Loader, error) {
	switch cfg.Backend {
	case "", "extractive":
		return NewExtractiveLoader(cfg.VocabularyPath), nil
	case "huggingface":
		return NewHuggingFaceLoader(
			cfg.HuggingFace.Endpoint,
			cfg.HuggingFace.APIToken,
			config.GetDuration(cfg.HuggingFace.Timeout),
			logger,
		), nil
	case "anthropic":
		return NewAnthropicLoader(
			cfg.Anthropic.APIKey,
			cfg.Anthropic.BaseURL,
			cfg.Anthropic.Model,
			cfg.Anthropic.MaxTokens,
			config.GetDuration(cfg.Anthropic.Timeout),
		), nil
	default:
		return nil, fmt.Errorf("unknown inference backend %q", cfg.Backend)
	}
}

// NewEngineFromConfig wires the configured backend into an engine.
func NewEngineFromConfig(cfg config.InferenceConfig, logger Logger, observer Observer) (*Engine, error) {
	loader, err := NewLoader(cfg, logger)
	if err != nil {
		return nil, err
	}
	return NewEngine(loader, Options{
		MaxContextChars: cfg.MaxContextChars,
		LoadTimeout:     config.GetDuration(cfg.LoadTimeout),
		Logger:          logger,
		Observer:        observer,
	}), nil
}
