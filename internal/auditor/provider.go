package auditor

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/valterpcjria-cloud/doi-smart/internal/config"
)

// ModelCompleter adapts a langchaingo model to Completer.
type ModelCompleter struct {
	Model llms.Model
}

func (m ModelCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m.Model, prompt, llms.WithTemperature(0))
}

// Disabled is the Completer used when no provider is configured.
type Disabled struct{}

func (Disabled) Complete(context.Context, string) (string, error) {
	return "", ErrAuditorDisabled
}

// NewCompleter builds the Completer for the configured provider.
func NewCompleter(ctx context.Context, cfg config.AI) (Completer, error) {
	switch cfg.Provider {
	case "none":
		return Disabled{}, nil
	case "gemini":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: gemini", ErrMissingAPIKey)
		}
		model, err := googleai.New(ctx,
			googleai.WithAPIKey(cfg.APIKey),
			googleai.WithDefaultModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("creating gemini client: %w", err)
		}
		return ModelCompleter{Model: model}, nil
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: openai", ErrMissingAPIKey)
		}
		opts := []openai.Option{
			openai.WithToken(cfg.APIKey),
			openai.WithModel(cfg.Model),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		model, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("creating openai client: %w", err)
		}
		return ModelCompleter{Model: model}, nil
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}
}
