// Package advice produces nutrition replies for a single user message, either
// from a hosted model or through the nutrichat backend.
package advice

import (
	"context"
	"errors"
	"fmt"

	"nutrichat/internal/apiclient"
	"nutrichat/internal/config"
)

// ErrMalformedResponse marks a reply that arrived but carried no usable text.
var ErrMalformedResponse = errors.New("malformed advice response")

// Generator produces one reply for one user message.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// New picks the generator configured in cfg.Advice. api is only used by the
// backend provider and must carry the user's token.
func New(ctx context.Context, cfg *config.Config, api *apiclient.Client) (Generator, error) {
	provider := cfg.Provider()
	var (
		gen Generator
		err error
	)
	switch cfg.Advice.Provider {
	case "backend":
		if api == nil {
			return nil, fmt.Errorf("backend provider needs an api client")
		}
		return NewClient(api), nil
	case "gemini":
		if cfg.Advice.Engine == "eino" {
			gen, err = NewEino(ctx, "gemini", provider)
		} else {
			gen, err = NewGemini(ctx, provider.APIKey, provider.Model)
		}
	case "openai", "claude":
		gen, err = NewEino(ctx, cfg.Advice.Provider, provider)
	default:
		return nil, fmt.Errorf("invalid provider: %s", cfg.Advice.Provider)
	}
	if err != nil {
		return nil, err
	}
	return gen, nil
}
