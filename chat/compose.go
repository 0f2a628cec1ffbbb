package chat

import (
	"github.com/dungnx/chathist/internal/attachment"
	"github.com/dungnx/chathist/internal/llm"
)

// Compose transforms the ephemeral message history into the provider's
// wire shape. Pure: no I/O, deterministic over any well-formed history.
// Loading placeholders and content-free messages are excluded; they have
// nothing to say.
func Compose(history []*Message) []*llm.Message {
	composed := make([]*llm.Message, 0, len(history))
	for _, message := range history {
		if message.IsLoading || empty(message) {
			continue
		}
		composed = append(composed, composeMessage(message))
	}
	return composed
}

func empty(message *Message) bool {
	return message.Content == "" && len(message.Images) == 0 &&
		message.File == nil && message.ImageURL == ""
}

// composeMessage applies the first matching rule:
//  1. pasted images -> parts array, text segment first, images in paste order;
//  2. non-image attachment -> scalar text with the extracted file content appended;
//  3. legacy image upload -> scalar text plus the image_url side channel;
//  4. plain text -> scalar text.
func composeMessage(message *Message) *llm.Message {
	role := string(message.Role)
	switch {
	case len(message.Images) > 0:
		parts := make([]llm.ContentPart, 0, len(message.Images)+1)
		parts = append(parts, llm.ContentPart{Type: llm.ContentPartText, Text: message.Content})
		for _, image := range message.Images {
			parts = append(parts, llm.ContentPart{Type: llm.ContentPartImageURL, ImageURL: image.Content})
		}
		return &llm.Message{Role: role, Parts: parts}

	case message.File != nil && message.File.Type != attachment.TypeImage:
		return llm.NewTextMessage(role, message.Content+"\n\nFile content:\n"+message.File.Content)

	case message.ImageURL != "":
		return &llm.Message{Role: role, Content: message.Content, ImageURL: message.ImageURL}

	default:
		return llm.NewTextMessage(role, message.Content)
	}
}
