package advice

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"nutrichat/internal/config"
)

// Eino generates replies through an eino chat model.
type Eino struct {
	chatModel model.BaseChatModel
}

// NewEino builds the chat model for provider (openai, claude or gemini).
func NewEino(ctx context.Context, provider string, provCfg config.ProviderConfig) (*Eino, error) {
	var (
		chatModel model.ToolCallingChatModel
		err       error
	)
	switch provider {
	case "openai":
		chatModel, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: provCfg.BaseURL,
			Model:   provCfg.Model,
			APIKey:  provCfg.APIKey,
		})
	case "gemini":
		var client *genai.Client
		client, err = genai.NewClient(ctx, &genai.ClientConfig{APIKey: provCfg.APIKey})
		if err != nil {
			return nil, fmt.Errorf("create gemini client: %w", err)
		}
		modelName := provCfg.Model
		if modelName == "" {
			modelName = DefaultGeminiModel
		}
		chatModel, err = gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  modelName,
		})
	case "claude":
		var baseURL *string
		if provCfg.BaseURL != "" {
			baseURL = &provCfg.BaseURL
		}
		chatModel, err = claude.NewChatModel(ctx, &claude.Config{
			APIKey:    provCfg.APIKey,
			Model:     provCfg.Model,
			BaseURL:   baseURL,
			MaxTokens: 3000,
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", provider)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s chat model: %w", provider, err)
	}
	return &Eino{chatModel: chatModel}, nil
}

func (e *Eino) Generate(ctx context.Context, query string) (string, error) {
	msgs := []*schema.Message{
		schema.SystemMessage(Persona),
		schema.UserMessage(strings.TrimSpace(query)),
	}
	out, err := e.chatModel.Generate(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("generate advice: %w", err)
	}
	if out == nil || strings.TrimSpace(out.Content) == "" {
		return "", fmt.Errorf("eino: %w: empty message", ErrMalformedResponse)
	}
	return out.Content, nil
}
