package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/praxislabs/praxis/backend/internal/config"
	"github.com/praxislabs/praxis/backend/internal/model/chat"
)

// Service generates tutor replies. It composes a fixed chain: system
// instruction, prior turns, then the new user turn.
type Service struct {
	chatModel model.ChatModel
	cfg       config.AIConfig
	chain     compose.Runnable[map[string]any, *schema.Message]
}

// NewService creates the generation service backed by Vertex AI Gemini.
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := newGeminiChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		chatModel: chatModel,
		cfg:       cfg,
		chain:     runnable,
	}, nil
}

// StreamingEnabled reports whether replies are produced incrementally.
func (s *Service) StreamingEnabled() bool {
	return s.cfg.StreamResponse
}

// GenerateReply produces the complete reply in a single call.
func (s *Service) GenerateReply(ctx context.Context, system string, history []chat.Message, query string) (*schema.Message, error) {
	response, err := s.chain.Invoke(ctx, s.buildChainInput(system, history, query))
	if err != nil {
		return nil, fmt.Errorf("failed to run AI chain: %w", err)
	}
	return response, nil
}

// StreamReply starts an incremental reply. The returned stream is single-pass;
// concatenating its chunks in order yields the full response text.
func (s *Service) StreamReply(ctx context.Context, system string, history []chat.Message, query string) (*schema.StreamReader[*schema.Message], error) {
	stream, err := s.chain.Stream(ctx, s.buildChainInput(system, history, query))
	if err != nil {
		return nil, fmt.Errorf("failed to stream AI chain output: %w", err)
	}
	return stream, nil
}

func (s *Service) buildChainInput(system string, history []chat.Message, query string) map[string]any {
	return map[string]any{
		"system":  system,
		"history": buildHistoryMessages(history),
		"query":   query,
	}
}

// buildHistoryMessages maps stored prior turns onto the provider-neutral
// schema; the stored assistant role becomes the model turn.
func buildHistoryMessages(messages []chat.Message) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}

	history := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(msg.Content))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		}
	}

	return history
}
