// Package llm is the boundary to the external completion provider.
package llm

import (
	"context"
	"fmt"
)

const (
	SystemRole    = "system"
	UserRole      = "user"
	AssistantRole = "assistant"
)

// ContentPart is one segment of an array-shaped message content.
type ContentPart struct {
	Type     string `json:"type"` // "text" | "image_url"
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

const (
	ContentPartText     = "text"
	ContentPartImageURL = "image_url"
)

// Message is a provider-bound message. Its content takes exactly one of
// three shapes:
//   - scalar: Content alone;
//   - parts:  Parts non-nil (text first, then images), Content unused;
//   - legacy image: Content plus the side-channel ImageURL, kept for
//     wire compatibility with single-image requests.
type Message struct {
	Role     string
	Content  string
	Parts    []ContentPart
	ImageURL string
}

// NewTextMessage builds a scalar text message.
func NewTextMessage(role, content string) *Message {
	return &Message{Role: role, Content: content}
}

// Text returns the textual portion of the message under any shape.
func (m *Message) Text() string {
	if m.Parts == nil {
		return m.Content
	}
	for _, part := range m.Parts {
		if part.Type == ContentPartText {
			return part.Text
		}
	}
	return ""
}

// Usage is the provider-reported token accounting for one completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CreateChatCompletionRequest is a single, non-streaming completion call.
type CreateChatCompletionRequest struct {
	Model       string
	Messages    []*Message
	Temperature float32
	MaxTokens   int
}

// ChatCompletion is the provider's answer to a completion request.
type ChatCompletion struct {
	Message *Message
	Usage   *Usage
}

// Client is implemented per provider.
type Client interface {
	CreateChatCompletion(ctx context.Context, request *CreateChatCompletionRequest) (*ChatCompletion, error)
}

// ProviderError marks any failure crossing the provider boundary,
// including timeouts. Callers roll back optimistic state when they see
// one.
type ProviderError struct {
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("completion provider: %v", e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
