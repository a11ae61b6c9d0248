package ai

import (
	"context"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIGenerator adapts the OpenAI chat API to the Generator contract. The
// model argument of Run names the chat model directly, e.g. gpt-4o-mini.
type OpenAIGenerator struct {
	Client *openai.Client
}

func NewOpenAIGenerator(apiKey string) *OpenAIGenerator {
	config := openai.DefaultConfig(apiKey)
	config.HTTPClient = &http.Client{Timeout: OPENAI_REQUEST_TIMEOUT}

	return &OpenAIGenerator{Client: openai.NewClientWithConfig(config)}
}

func (o *OpenAIGenerator) Run(ctx context.Context, model string, req Request) (string, error) {
	chatReq := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		chatReq.Temperature = float32(req.Temperature)
	}

	resp, err := o.Client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	return resp.Choices[0].Message.Content, nil
}
