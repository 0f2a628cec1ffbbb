package llm

import (
	"context"

	"github.com/liushuangls/go-anthropic/v2"
	"github.com/pkg/errors"
)

const defaultAnthropicMaxTokens = 1024

var errNoChoice = errors.New("response contained no message")

// AnthropicClient wraps the go-anthropic client. Image parts are
// flattened to their text segment; vision requests belong on the OpenAI
// client.
type AnthropicClient struct {
	client *anthropic.Client
}

func NewAnthropicClient(apiKey string) *AnthropicClient {
	return &AnthropicClient{client: anthropic.NewClient(apiKey)}
}

func (c *AnthropicClient) CreateChatCompletion(ctx context.Context, request *CreateChatCompletionRequest) (*ChatCompletion, error) {
	messages := make([]anthropic.Message, 0, len(request.Messages))
	for _, message := range request.Messages {
		switch message.Role {
		case UserRole, SystemRole:
			messages = append(messages, anthropic.NewUserTextMessage(message.Text()))
		case AssistantRole:
			messages = append(messages, anthropic.NewAssistantTextMessage(message.Text()))
		}
	}

	maxTokens := request.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	response, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(request.Model),
		Messages:  messages,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return nil, &ProviderError{Err: err}
	}
	if len(response.Content) == 0 {
		return nil, &ProviderError{Err: errNoChoice}
	}
	return &ChatCompletion{
		Message: NewTextMessage(AssistantRole, response.GetFirstContentText()),
		Usage: &Usage{
			PromptTokens:     response.Usage.InputTokens,
			CompletionTokens: response.Usage.OutputTokens,
			TotalTokens:      response.Usage.InputTokens + response.Usage.OutputTokens,
		},
	}, nil
}
