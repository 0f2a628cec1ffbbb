package llm

import (
	"context"

	"github.com/sashabaranov/go-openai"
)

// OpenAIClient for openai and openai-compatible hosts.
type OpenAIClient struct {
	client *openai.Client
}

func NewOpenAIClient(apiKey, apiHost string) *OpenAIClient {
	openAIConfig := openai.DefaultConfig(apiKey)
	if apiHost != "" {
		openAIConfig.BaseURL = apiHost
	}
	client := openai.NewClientWithConfig(openAIConfig)
	return &OpenAIClient{client: client}
}

func (c *OpenAIClient) CreateChatCompletion(ctx context.Context, request *CreateChatCompletionRequest) (*ChatCompletion, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(request.Messages))
	for _, message := range request.Messages {
		messages = append(messages, toOpenAIMessage(message))
	}
	openAIRequest := openai.ChatCompletionRequest{
		Model:       request.Model,
		Messages:    messages,
		Temperature: request.Temperature,
		MaxTokens:   request.MaxTokens,
	}
	response, err := c.client.CreateChatCompletion(ctx, openAIRequest)
	if err != nil {
		return nil, &ProviderError{Err: err}
	}
	if len(response.Choices) == 0 {
		return nil, &ProviderError{Err: errNoChoice}
	}
	return &ChatCompletion{
		Message: NewTextMessage(AssistantRole, response.Choices[0].Message.Content),
		Usage: &Usage{
			PromptTokens:     response.Usage.PromptTokens,
			CompletionTokens: response.Usage.CompletionTokens,
			TotalTokens:      response.Usage.TotalTokens,
		},
	}, nil
}

// toOpenAIMessage maps the three content shapes onto the vision API. The
// legacy single-image shape becomes a two-part array here; the scalar
// shape stays scalar.
func toOpenAIMessage(message *Message) openai.ChatCompletionMessage {
	switch {
	case message.Parts != nil:
		parts := make([]openai.ChatMessagePart, 0, len(message.Parts))
		for _, part := range message.Parts {
			switch part.Type {
			case ContentPartImageURL:
				parts = append(parts, openai.ChatMessagePart{
					Type:     openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{URL: part.ImageURL},
				})
			default:
				parts = append(parts, openai.ChatMessagePart{
					Type: openai.ChatMessagePartTypeText,
					Text: part.Text,
				})
			}
		}
		return openai.ChatCompletionMessage{Role: message.Role, MultiContent: parts}

	case message.ImageURL != "":
		return openai.ChatCompletionMessage{
			Role: message.Role,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: message.Content},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: message.ImageURL}},
			},
		}

	default:
		return openai.ChatCompletionMessage{Role: message.Role, Content: message.Content}
	}
}
