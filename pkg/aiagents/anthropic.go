package aiagents

import (
	"context"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicModel = "claude-3-5-haiku-latest"

// AnthropicWorker serves one role backed by the Anthropic Messages API.
type AnthropicWorker struct {
	name      string
	role      Role
	model     string
	client    sdk.Client
	connected bool
	memory    *npcMemory
}

// NewAnthropicWorker builds a worker for the given role. The model may be
// empty to use the default.
func NewAnthropicWorker(name string, role Role, apiKey, model string) *AnthropicWorker {
	if model == "" {
		model = defaultAnthropicModel
	}
	return &AnthropicWorker{
		name:   name,
		role:   role,
		model:  model,
		client: sdk.NewClient(option.WithAPIKey(apiKey)),
		memory: newNPCMemory(),
	}
}

func (w *AnthropicWorker) Name() string    { return w.name }
func (w *AnthropicWorker) Role() Role      { return w.role }
func (w *AnthropicWorker) Connected() bool { return w.connected }

// Connect validates the credentials with a minimal ping request.
func (w *AnthropicWorker) Connect(ctx context.Context) error {
	_, err := w.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(w.model),
		MaxTokens: 16,
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock("ping"))},
	})
	if err != nil {
		return fmt.Errorf("anthropic connect check: %w", err)
	}
	w.connected = true
	return nil
}

func (w *AnthropicWorker) Disconnect(ctx context.Context) error {
	w.connected = false
	return nil
}

// HandleRequest dispatches one action to the model.
func (w *AnthropicWorker) HandleRequest(ctx context.Context, req Request) (Response, error) {
	result, reasoning, err := dispatchAction(ctx, w, w.memory, req)
	if err != nil {
		return Response{}, err
	}
	return Response{
		RequestID: req.RequestID,
		Role:      w.role,
		Action:    req.Action,
		Success:   true,
		Result:    result,
		Reasoning: reasoning,
	}, nil
}

// complete sends one prompt with optional prior exchanges and returns the
// concatenated text blocks of the reply.
func (w *AnthropicWorker) complete(ctx context.Context, system, prompt string, history []memTurn) (string, error) {
	msgs := make([]sdk.MessageParam, 0, len(history)*2+1)
	for _, t := range history {
		msgs = append(msgs, sdk.NewUserMessage(sdk.NewTextBlock(t.user)))
		msgs = append(msgs, sdk.NewAssistantMessage(sdk.NewTextBlock(t.assistant)))
	}
	msgs = append(msgs, sdk.NewUserMessage(sdk.NewTextBlock(prompt)))

	msg, err := w.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(w.model),
		MaxTokens: 1024,
		System:    []sdk.TextBlockParam{{Text: system}},
		Messages:  msgs,
	})
	if err != nil {
		return "", fmt.Errorf("anthropic completion: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}
