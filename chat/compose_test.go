package chat_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dungnx/chathist/chat"
	"github.com/dungnx/chathist/internal/attachment"
	"github.com/dungnx/chathist/internal/llm"
	"github.com/dungnx/chathist/store"
)

func TestCompose_PlainText(t *testing.T) {
	composed := chat.Compose([]*chat.Message{
		{Role: store.RoleUser, Content: "hello"},
		{Role: store.RoleAssistant, Content: "hi there"},
	})

	require.Len(t, composed, 2)
	assert.Equal(t, llm.UserRole, composed[0].Role)
	assert.Equal(t, "hello", composed[0].Content)
	assert.Nil(t, composed[0].Parts)
	assert.Equal(t, llm.AssistantRole, composed[1].Role)
	assert.Equal(t, "hi there", composed[1].Content)
}

func TestCompose_PastedImages(t *testing.T) {
	composed := chat.Compose([]*chat.Message{{
		Role:    store.RoleUser,
		Content: "what are these?",
		Images: []*store.Image{
			{ID: "a", Content: "data:image/png;base64,first"},
			{ID: "b", Content: "data:image/png;base64,second"},
		},
	}})

	require.Len(t, composed, 1)
	parts := composed[0].Parts
	require.Len(t, parts, 3)
	// Text first, then images in paste order.
	assert.Equal(t, llm.ContentPartText, parts[0].Type)
	assert.Equal(t, "what are these?", parts[0].Text)
	assert.Equal(t, llm.ContentPartImageURL, parts[1].Type)
	assert.Equal(t, "data:image/png;base64,first", parts[1].ImageURL)
	assert.Equal(t, "data:image/png;base64,second", parts[2].ImageURL)
	assert.Empty(t, composed[0].Content)
}

func TestCompose_TextAttachment(t *testing.T) {
	composed := chat.Compose([]*chat.Message{{
		Role:    store.RoleUser,
		Content: "summarize this",
		File: &attachment.File{
			Type:    attachment.TypeText,
			Content: "notes line one",
		},
	}})

	require.Len(t, composed, 1)
	assert.Equal(t, "summarize this\n\nFile content:\n"+"notes line one", composed[0].Content)
	assert.Nil(t, composed[0].Parts)
}

func TestCompose_LegacyImageURL(t *testing.T) {
	composed := chat.Compose([]*chat.Message{{
		Role:     store.RoleUser,
		Content:  "describe",
		ImageURL: "data:image/jpeg;base64,photo",
	}})

	require.Len(t, composed, 1)
	assert.Equal(t, "describe", composed[0].Content)
	assert.Equal(t, "data:image/jpeg;base64,photo", composed[0].ImageURL)
	assert.Nil(t, composed[0].Parts)
}

func TestCompose_ImageAttachmentUsesLegacyChannel(t *testing.T) {
	// An uploaded image attachment is carried on the ImageURL side
	// channel, not the file rule; the file rule only covers extractable
	// text.
	composed := chat.Compose([]*chat.Message{{
		Role:     store.RoleUser,
		Content:  "uploaded image",
		File:     &attachment.File{Type: attachment.TypeImage, Content: "data:image/png;base64,x"},
		ImageURL: "data:image/png;base64,x",
	}})

	require.Len(t, composed, 1)
	assert.Equal(t, "uploaded image", composed[0].Content)
	assert.Equal(t, "data:image/png;base64,x", composed[0].ImageURL)
}

func TestCompose_SkipsLoadingAndEmpty(t *testing.T) {
	composed := chat.Compose([]*chat.Message{
		{Role: store.RoleUser, Content: "question"},
		{Role: store.RoleAssistant, IsLoading: true},
		{Role: store.RoleAssistant, Content: ""},
	})

	require.Len(t, composed, 1)
	assert.Equal(t, "question", composed[0].Content)
}

func TestCompose_ImagesTakePrecedenceOverFile(t *testing.T) {
	composed := chat.Compose([]*chat.Message{{
		Role:    store.RoleUser,
		Content: "both",
		Images:  []*store.Image{{Content: "data:image/png;base64,p"}},
		File:    &attachment.File{Type: attachment.TypeText, Content: "ignored"},
	}})

	require.Len(t, composed, 1)
	require.Len(t, composed[0].Parts, 2)
	assert.NotContains(t, composed[0].Parts[0].Text, "ignored")
}
