package ai

import (
	"context"
	"fmt"
	"strings"
)

// Provider names accepted by NewProvider.
const (
	ProviderOpenAI = "openai"
	ProviderArk    = "ark"
	ProviderMock   = "mock"
)

// ProviderConfig selects and configures one provider.
type ProviderConfig struct {
	Name          string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	Ark           ArkConfig
}

// NewProvider builds the provider named in cfg.
func NewProvider(ctx context.Context, cfg ProviderConfig) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Name)) {
	case "", ProviderOpenAI:
		return NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
	case ProviderArk:
		return NewArkProvider(ctx, cfg.Ark)
	case ProviderMock:
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrProviderUnavailable, cfg.Name)
	}
}
