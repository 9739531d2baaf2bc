// Package chat proxies research-chat requests to a configured chat model.
// History is client-supplied and passed through verbatim; the server keeps no
// conversation state.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"vidsentry/internal/config"
	"vidsentry/internal/models"
)

// ErrEmptyText is returned when a chat request carries no text.
var ErrEmptyText = errors.New("text is required")

// Generation parameters match the video analysis call.
const (
	chatMaxTokens   = 8192
	chatTemperature = float32(1.0)
	chatTopP        = float32(0.95)
	chatTopK        = int32(40)
)

type generator interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// Service answers one chat turn per call, optionally through a react agent
// with web-search tools for research questions.
type Service struct {
	model generator
	agent *react.Agent
}

// NewService builds the chat model for the configured provider.
func NewService(ctx context.Context, cfg *config.Config) (*Service, error) {
	provider := cfg.BasicConfig.ChatProvider
	provCfg, ok := cfg.Providers[provider]
	if !ok {
		return nil, fmt.Errorf("provider %s not configured", provider)
	}

	var chatModel model.ToolCallingChatModel
	var err error
	switch provider {
	case "gemini":
		var client *genai.Client
		client, err = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  provCfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("create gemini client: %w", err)
		}
		chatModel, err = gemini.NewChatModel(ctx, &gemini.Config{
			Client:      client,
			Model:       provCfg.Model,
			MaxTokens:   ptr(chatMaxTokens),
			Temperature: ptr(chatTemperature),
			TopP:        ptr(chatTopP),
			TopK:        ptr(chatTopK),
		})
	case "openai":
		chatModel, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL:     provCfg.BaseURL,
			Model:       provCfg.Model,
			APIKey:      provCfg.APIKey,
			MaxTokens:   ptr(chatMaxTokens),
			Temperature: ptr(chatTemperature),
			TopP:        ptr(chatTopP),
		})
	case "claude":
		var baseURL *string
		if provCfg.BaseURL != "" {
			baseURL = &provCfg.BaseURL
		}
		chatModel, err = claude.NewChatModel(ctx, &claude.Config{
			APIKey:      provCfg.APIKey,
			Model:       provCfg.Model,
			BaseURL:     baseURL,
			MaxTokens:   chatMaxTokens,
			Temperature: ptr(chatTemperature),
			TopP:        ptr(chatTopP),
			TopK:        ptr(chatTopK),
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", provider)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s chat model: %w", provider, err)
	}

	svc := &Service{model: chatModel}
	if tools := initTools(ctx); len(tools) > 0 {
		agent, err := react.NewAgent(ctx, &react.AgentConfig{
			ToolCallingModel: chatModel,
			ToolsConfig: compose.ToolsNodeConfig{
				Tools: tools,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("init react agent: %w", err)
		}
		svc.agent = agent
	}
	log.Info().Str("provider", provider).Str("model", provCfg.Model).Bool("tools", svc.agent != nil).Msg("chat service ready")
	return svc, nil
}

// Respond sends the history plus the new turn and returns the model's raw
// text. The history order is preserved exactly as the client supplied it.
func (s *Service) Respond(ctx context.Context, text string, history []models.ChatTurn) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}

	messages := make([]*schema.Message, 0, len(history)+1)
	for _, turn := range history {
		role := schema.User
		if turn.Role == models.ChatRoleModel {
			role = schema.Assistant
		}
		messages = append(messages, &schema.Message{Role: role, Content: turn.Content})
	}
	messages = append(messages, &schema.Message{Role: schema.User, Content: text})

	var reply *schema.Message
	var err error
	if s.agent != nil {
		reply, err = s.agent.Generate(ctx, messages)
	} else {
		reply, err = s.model.Generate(ctx, messages)
	}
	if err != nil {
		return "", fmt.Errorf("generate chat response: %w", err)
	}
	if reply == nil {
		return "", errors.New("empty chat response")
	}
	return reply.Content, nil
}

func ptr[T any](v T) *T {
	return &v
}
