package aiagents

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIWorker serves one role backed by the Chat Completions API.
type OpenAIWorker struct {
	name      string
	role      Role
	model     string
	client    openai.Client
	connected bool
	memory    *npcMemory
}

// NewOpenAIWorker builds a worker for the given role. The model may be
// empty to use the default.
func NewOpenAIWorker(name string, role Role, apiKey, model string) *OpenAIWorker {
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIWorker{
		name:   name,
		role:   role,
		model:  model,
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		memory: newNPCMemory(),
	}
}

func (w *OpenAIWorker) Name() string    { return w.name }
func (w *OpenAIWorker) Role() Role      { return w.role }
func (w *OpenAIWorker) Connected() bool { return w.connected }

// Connect validates the credentials with a minimal ping request.
func (w *OpenAIWorker) Connect(ctx context.Context) error {
	_, err := w.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(w.model),
		MaxCompletionTokens: openai.Int(16),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage("ping"),
		},
	})
	if err != nil {
		return fmt.Errorf("openai connect check: %w", err)
	}
	w.connected = true
	return nil
}

func (w *OpenAIWorker) Disconnect(ctx context.Context) error {
	w.connected = false
	return nil
}

// HandleRequest dispatches one action to the model.
func (w *OpenAIWorker) HandleRequest(ctx context.Context, req Request) (Response, error) {
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

func (w *OpenAIWorker) complete(ctx context.Context, system, prompt string, history []memTurn) (string, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)*2+2)
	msgs = append(msgs, openai.SystemMessage(system))
	for _, t := range history {
		msgs = append(msgs, openai.UserMessage(t.user))
		msgs = append(msgs, openai.AssistantMessage(t.assistant))
	}
	msgs = append(msgs, openai.UserMessage(prompt))

	resp, err := w.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(w.model),
		MaxCompletionTokens: openai.Int(1024),
		Messages:            msgs,
	})
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai completion: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}
