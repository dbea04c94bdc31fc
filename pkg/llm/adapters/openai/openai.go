package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"

	npcerrors "github.com/hexfall/npcmind/pkg/errors"
	"github.com/hexfall/npcmind/pkg/llm"
	"github.com/hexfall/npcmind/pkg/log"
)

var (
	// ErrEmptyAPIKey is returned when the API key is missing.
	ErrEmptyAPIKey = errors.New("API key cannot be empty")
)

// Config holds the configuration for the OpenAI adapter.
type Config struct {
	// APIKey is the OpenAI API key.
	APIKey string
	// ChatModel is the default model for chat completions.
	ChatModel string
	// EmbeddingModel is the model for embeddings, e.g. "text-embedding-ada-002".
	EmbeddingModel string
	// BaseURL overrides the API endpoint (proxies, testing).
	BaseURL string
	// RequestTimeout bounds each API call. Zero means 30s.
	RequestTimeout time.Duration
}

// Adapter implements the llm.Provider interface using the OpenAI API.
type Adapter struct {
	client         *openai.Client
	chatModel      string
	embeddingModel string
	requestTimeout time.Duration
}

// New creates a new OpenAI adapter.
func New(config Config) (*Adapter, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	if config.ChatModel == "" {
		config.ChatModel = openai.GPT3Dot5Turbo
	}
	if config.EmbeddingModel == "" {
		config.EmbeddingModel = "text-embedding-ada-002"
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 30 * time.Second
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &Adapter{
		client:         openai.NewClientWithConfig(clientConfig),
		chatModel:      config.ChatModel,
		embeddingModel: config.EmbeddingModel,
		requestTimeout: config.RequestTimeout,
	}, nil
}

// ChatCompletion sends the request to the OpenAI chat completions API.
func (a *Adapter) ChatCompletion(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = a.chatModel
	}

	log.Debug("Sending chat completion request",
		"model", model,
		"messages", len(req.Messages),
		"tools", len(req.Tools))

	request := openai.ChatCompletionRequest{
		Model:            model,
		Messages:         toOpenAIMessages(req.Messages),
		Temperature:      req.Temperature,
		MaxTokens:        req.MaxTokens,
		TopP:             req.TopP,
		FrequencyPenalty: req.FrequencyPenalty,
		PresencePenalty:  req.PresencePenalty,
	}
	if len(req.Tools) > 0 {
		request.Tools = toOpenAITools(req.Tools)
		if req.ToolChoice != "" {
			request.ToolChoice = req.ToolChoice
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, a.requestTimeout)
	defer cancel()

	response, err := a.client.CreateChatCompletion(callCtx, request)
	if err != nil {
		return llm.ChatResponse{}, wrapAPIError(err)
	}

	if len(response.Choices) == 0 {
		return llm.ChatResponse{}, npcerrors.Wrap(npcerrors.ErrProvider, "no response choices returned")
	}

	choice := response.Choices[0].Message
	return llm.ChatResponse{
		Content:   choice.Content,
		ToolCalls: fromOpenAIToolCalls(choice.ToolCalls),
	}, nil
}

// CreateEmbedding generates an embedding for the given text.
func (a *Adapter) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.requestTimeout)
	defer cancel()

	response, err := a.client.CreateEmbeddings(callCtx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(a.embeddingModel),
	})
	if err != nil {
		return nil, wrapAPIError(err)
	}

	if len(response.Data) == 0 {
		return nil, npcerrors.Wrap(npcerrors.ErrProvider, "no embedding data returned")
	}

	return response.Data[0].Embedding, nil
}

func toOpenAIMessages(messages []llm.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		out[i] = openai.ChatCompletionMessage{
			Role:       string(msg.Role),
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
			Name:       msg.Name,
		}
		for _, call := range msg.ToolCalls {
			out[i].ToolCalls = append(out[i].ToolCalls, openai.ToolCall{
				ID:   call.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      call.Function.Name,
					Arguments: call.Function.Arguments,
				},
			})
		}
	}
	return out
}

func toOpenAITools(tools []llm.Tool) []openai.Tool {
	out := make([]openai.Tool, len(tools))
	for i, tool := range tools {
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Function.Name,
				Description: tool.Function.Description,
				Parameters:  tool.Function.Parameters,
			},
		}
	}
	return out
}

func fromOpenAIToolCalls(calls []openai.ToolCall) []llm.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]llm.ToolCall, len(calls))
	for i, call := range calls {
		out[i] = llm.ToolCall{
			ID:   call.ID,
			Type: string(call.Type),
			Function: llm.FunctionCall{
				Name:      call.Function.Name,
				Arguments: call.Function.Arguments,
			},
		}
	}
	return out
}

// wrapAPIError converts go-openai errors into the provider error taxonomy,
// preserving the structured {message, type, code} payload when available.
func wrapAPIError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return npcerrors.Wrap(npcerrors.ErrProviderTimeout, "%v", err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		structured := &llm.APIError{
			Message: apiErr.Message,
			Type:    apiErr.Type,
			Code:    fmt.Sprintf("%v", apiErr.Code),
		}
		log.Error("OpenAI API error", "type", apiErr.Type, "code", apiErr.Code, "message", apiErr.Message)
		return npcerrors.Wrap(npcerrors.ErrProvider, "%s", structured.Error())
	}

	return npcerrors.Wrap(npcerrors.ErrProvider, "%v", err)
}
