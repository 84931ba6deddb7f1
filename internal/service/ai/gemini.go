package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/praxislabs/praxis/backend/internal/config"
)

// geminiChatModel adapts the Vertex AI Gemini API to the eino chat model
// contract so the chain stays provider-agnostic.
type geminiChatModel struct {
	client    *genai.Client
	modelName string
	cfg       config.AIConfig
}

var _ model.ChatModel = (*geminiChatModel)(nil)

func newGeminiChatModel(ctx context.Context, cfg config.AIConfig) (*geminiChatModel, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  cfg.ProjectID,
		Location: cfg.Location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Vertex AI client: %w", err)
	}

	return &geminiChatModel{
		client:    client,
		modelName: cfg.Model,
		cfg:       cfg,
	}, nil
}

// Generate produces the full reply in one call.
func (m *geminiChatModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	contents, genCfg := m.buildRequest(input)

	res, err := m.client.Models.GenerateContent(ctx, m.modelName, contents, genCfg)
	if err != nil {
		return nil, fmt.Errorf("vertex generate content: %w", err)
	}

	text := res.Text()
	if text == "" {
		return nil, fmt.Errorf("vertex returned empty text")
	}

	return schema.AssistantMessage(text, nil), nil
}

// Stream relays Vertex response chunks through an eino stream. Errors raised
// by the provider surface on the reader, never silently.
func (m *geminiChatModel) Stream(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	contents, genCfg := m.buildRequest(input)

	reader, writer := schema.Pipe[*schema.Message](8)
	go func() {
		defer writer.Close()
		for res, err := range m.client.Models.GenerateContentStream(ctx, m.modelName, contents, genCfg) {
			if err != nil {
				writer.Send(nil, fmt.Errorf("vertex stream content: %w", err))
				return
			}
			text := res.Text()
			if text == "" {
				continue
			}
			if closed := writer.Send(schema.AssistantMessage(text, nil), nil); closed {
				return
			}
		}
	}()

	return reader, nil
}

// BindTools satisfies the eino interface; the tutor makes no tool calls.
func (m *geminiChatModel) BindTools([]*schema.ToolInfo) error {
	return fmt.Errorf("tool binding not supported")
}

func (m *geminiChatModel) buildRequest(input []*schema.Message) ([]*genai.Content, *genai.GenerateContentConfig) {
	genCfg := &genai.GenerateContentConfig{}
	contents := make([]*genai.Content, 0, len(input))

	for _, msg := range input {
		switch msg.Role {
		case schema.System:
			// Vertex carries the system instruction in the request config,
			// not the conversation contents.
			genCfg.SystemInstruction = genai.NewContentFromText(msg.Content, genai.RoleUser)
		case schema.Assistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}

	if m.cfg.Temperature != nil {
		val := float32(*m.cfg.Temperature)
		genCfg.Temperature = &val
	}
	if m.cfg.TopP != nil {
		val := float32(*m.cfg.TopP)
		genCfg.TopP = &val
	}
	if m.cfg.MaxTokens != nil {
		genCfg.MaxOutputTokens = int32(*m.cfg.MaxTokens)
	}

	return contents, genCfg
}
