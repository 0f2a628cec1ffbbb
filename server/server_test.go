package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dungnx/chathist/configuration"
	"github.com/dungnx/chathist/internal/attachment"
	"github.com/dungnx/chathist/internal/llm"
	"github.com/dungnx/chathist/server"
	"github.com/dungnx/chathist/store"
	"github.com/dungnx/chathist/store/db/sqlite"
)

type stubProvider struct {
	reply string
	err   error
	// last request, for shape assertions.
	request *llm.CreateChatCompletionRequest
}

func (p *stubProvider) CreateChatCompletion(ctx context.Context, request *llm.CreateChatCompletionRequest) (*llm.ChatCompletion, error) {
	p.request = request
	if p.err != nil {
		return nil, p.err
	}
	return &llm.ChatCompletion{
		Message: llm.NewTextMessage(llm.AssistantRole, p.reply),
		Usage:   &llm.Usage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5},
	}, nil
}

func newTestServer(t *testing.T, provider llm.Client) *httptest.Server {
	t.Helper()
	driver, err := sqlite.New(filepath.Join(t.TempDir(), "chathist.db"))
	require.NoError(t, err)
	t.Cleanup(func() { driver.Close() })

	config := &configuration.Config{
		Provider: &configuration.ProviderConfig{
			Name:         "openai",
			DefaultModel: "gpt-4o-mini",
		},
		RequestTimeoutSeconds:    5,
		AttachmentTimeoutSeconds: 5,
	}
	s := server.New(config, store.New(driver), provider, attachment.NewLocal(), nil)
	testServer := httptest.NewServer(s.Handler())
	t.Cleanup(testServer.Close)
	return testServer
}

func doJSON(t *testing.T, method, url, session string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	request, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	request.Header.Set("Content-Type", "application/json")
	if session != "" {
		request.Header.Set("session-id", session)
	}
	response, err := http.DefaultClient.Do(request)
	require.NoError(t, err)
	defer response.Body.Close()
	var buffer bytes.Buffer
	_, err = buffer.ReadFrom(response.Body)
	require.NoError(t, err)
	return response, buffer.Bytes()
}

type conversationBody struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

func decodeConversations(t *testing.T, body []byte) []conversationBody {
	t.Helper()
	var listed struct {
		Conversations []conversationBody `json:"conversations"`
	}
	require.NoError(t, json.Unmarshal(body, &listed))
	return listed.Conversations
}

func TestConversationLifecycle(t *testing.T) {
	testServer := newTestServer(t, &stubProvider{})
	base := testServer.URL

	// Create.
	response, body := doJSON(t, http.MethodPost, base+"/api/conversations", "sess-1", map[string]string{"title": "My chat"})
	require.Equal(t, http.StatusCreated, response.StatusCode)
	var created struct {
		Conversation struct {
			ID    int64  `json:"id"`
			Title string `json:"title"`
		} `json:"conversation"`
	}
	require.NoError(t, json.Unmarshal(body, &created))
	conversation := created.Conversation
	assert.Equal(t, "My chat", conversation.Title)
	require.NotZero(t, conversation.ID)

	// Append two messages.
	response, _ = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/conversations/%d/messages", base, conversation.ID), "sess-1", map[string]any{
		"role":    "user",
		"content": "hello",
	})
	require.Equal(t, http.StatusCreated, response.StatusCode)
	response, _ = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/conversations/%d/messages", base, conversation.ID), "sess-1", map[string]any{
		"role":    "assistant",
		"content": "hi",
		"images":  []map[string]any{{"id": "img", "content": "data:image/png;base64,x", "filename": "a.png", "size": 1}},
	})
	require.Equal(t, http.StatusCreated, response.StatusCode)

	// List messages, oldest first.
	response, body = doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/conversations/%d/messages", base, conversation.ID), "sess-1", nil)
	require.Equal(t, http.StatusOK, response.StatusCode)
	var listed struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
			Images  []struct {
				ID string `json:"id"`
			} `json:"images"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(body, &listed))
	messages := listed.Messages
	require.Len(t, messages, 2)
	assert.Equal(t, "user", messages[0].Role)
	assert.Nil(t, messages[0].Images)
	require.Len(t, messages[1].Images, 1)
	assert.Equal(t, "img", messages[1].Images[0].ID)

	// Rename.
	response, body = doJSON(t, http.MethodPut, fmt.Sprintf("%s/api/conversations/%d", base, conversation.ID), "sess-1", map[string]string{"title": "Renamed"})
	require.Equal(t, http.StatusOK, response.StatusCode)
	var renamed struct {
		Conversation struct {
			Title string `json:"title"`
		} `json:"conversation"`
	}
	require.NoError(t, json.Unmarshal(body, &renamed))
	assert.Equal(t, "Renamed", renamed.Conversation.Title)

	// List conversations for this session.
	response, body = doJSON(t, http.MethodGet, base+"/api/conversations", "sess-1", nil)
	require.Equal(t, http.StatusOK, response.StatusCode)
	conversations := decodeConversations(t, body)
	require.Len(t, conversations, 1)
	assert.Equal(t, "Renamed", conversations[0].Title)
}

func TestSessionsAreIsolated(t *testing.T) {
	testServer := newTestServer(t, &stubProvider{})
	base := testServer.URL

	doJSON(t, http.MethodPost, base+"/api/conversations", "alice", map[string]string{"title": "Alice's"})
	doJSON(t, http.MethodPost, base+"/api/conversations", "bob", map[string]string{"title": "Bob's"})

	_, body := doJSON(t, http.MethodGet, base+"/api/conversations", "alice", nil)
	conversations := decodeConversations(t, body)
	require.Len(t, conversations, 1)
	assert.Equal(t, "Alice's", conversations[0].Title)
}

func TestMissingSessionDefaultsToAnonymous(t *testing.T) {
	testServer := newTestServer(t, &stubProvider{})
	base := testServer.URL

	// No session header on create; an explicit "anonymous" header on
	// list reaches the same shared bucket.
	response, _ := doJSON(t, http.MethodPost, base+"/api/conversations", "", map[string]string{"title": "shared"})
	require.Equal(t, http.StatusCreated, response.StatusCode)

	_, body := doJSON(t, http.MethodGet, base+"/api/conversations", "anonymous", nil)
	conversations := decodeConversations(t, body)
	require.Len(t, conversations, 1)
	assert.Equal(t, "shared", conversations[0].Title)
}

func TestErrorMapping(t *testing.T) {
	testServer := newTestServer(t, &stubProvider{})
	base := testServer.URL

	// Unknown conversation.
	response, body := doJSON(t, http.MethodGet, base+"/api/conversations/999/messages", "sess", nil)
	assert.Equal(t, http.StatusNotFound, response.StatusCode)
	var errorBody struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body, &errorBody))
	assert.NotEmpty(t, errorBody.Error)

	// Invalid role.
	doJSON(t, http.MethodPost, base+"/api/conversations", "sess", map[string]string{"title": "t"})
	response, _ = doJSON(t, http.MethodPost, base+"/api/conversations/1/messages", "sess", map[string]any{
		"role":    "system",
		"content": "nope",
	})
	assert.Equal(t, http.StatusBadRequest, response.StatusCode)

	// Malformed id segment.
	response, _ = doJSON(t, http.MethodPut, base+"/api/conversations/abc", "sess", map[string]string{"title": "t"})
	assert.Equal(t, http.StatusBadRequest, response.StatusCode)

	// Unrouted path.
	response, _ = doJSON(t, http.MethodGet, base+"/api/conversations/1/attachments", "sess", nil)
	assert.Equal(t, http.StatusNotFound, response.StatusCode)
}

func TestChat_ScalarContent(t *testing.T) {
	provider := &stubProvider{reply: "hello back"}
	testServer := newTestServer(t, provider)

	response, body := doJSON(t, http.MethodPost, testServer.URL+"/api/chat", "", map[string]any{
		"messages": []map[string]any{{"role": "user", "content": "hello"}},
	})
	require.Equal(t, http.StatusOK, response.StatusCode)

	var reply struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		Usage struct {
			TotalTokens int `json:"total_tokens"`
		} `json:"usage"`
	}
	require.NoError(t, json.Unmarshal(body, &reply))
	assert.Equal(t, "assistant", reply.Message.Role)
	assert.Equal(t, "hello back", reply.Message.Content)
	assert.Equal(t, 5, reply.Usage.TotalTokens)

	// The default model fills in when the request names none.
	require.NotNil(t, provider.request)
	assert.Equal(t, "gpt-4o-mini", provider.request.Model)
}

func TestChat_ArrayContent(t *testing.T) {
	provider := &stubProvider{reply: "described"}
	testServer := newTestServer(t, provider)

	response, _ := doJSON(t, http.MethodPost, testServer.URL+"/api/chat", "", map[string]any{
		"model": "gpt-4o",
		"messages": []map[string]any{{
			"role": "user",
			"content": []map[string]any{
				{"type": "text", "text": "what is this?"},
				{"type": "image_url", "image_url": map[string]string{"url": "data:image/png;base64,x"}},
			},
		}},
	})
	require.Equal(t, http.StatusOK, response.StatusCode)

	require.NotNil(t, provider.request)
	assert.Equal(t, "gpt-4o", provider.request.Model)
	require.Len(t, provider.request.Messages, 1)
	parts := provider.request.Messages[0].Parts
	require.Len(t, parts, 2)
	assert.Equal(t, "what is this?", parts[0].Text)
	assert.Equal(t, "data:image/png;base64,x", parts[1].ImageURL)
}

func TestChat_Validation(t *testing.T) {
	testServer := newTestServer(t, &stubProvider{})

	response, body := doJSON(t, http.MethodPost, testServer.URL+"/api/chat", "", map[string]any{
		"messages": []map[string]any{},
	})
	assert.Equal(t, http.StatusBadRequest, response.StatusCode)
	assert.Contains(t, string(body), "Messages array is required")
}

func TestChat_ProviderFailure(t *testing.T) {
	provider := &stubProvider{err: pkgerrors.New("upstream exploded")}
	testServer := newTestServer(t, provider)

	response, body := doJSON(t, http.MethodPost, testServer.URL+"/api/chat", "", map[string]any{
		"messages": []map[string]any{{"role": "user", "content": "hello"}},
	})
	assert.Equal(t, http.StatusBadGateway, response.StatusCode)
	// The upstream detail stays out of the response body.
	assert.NotContains(t, string(body), "exploded")
}

func TestUpload(t *testing.T) {
	testServer := newTestServer(t, &stubProvider{})

	var buffer bytes.Buffer
	writer := multipart.NewWriter(&buffer)
	part, err := writer.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("file body"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	response, err := http.Post(testServer.URL+"/api/upload", writer.FormDataContentType(), &buffer)
	require.NoError(t, err)
	defer response.Body.Close()
	require.Equal(t, http.StatusOK, response.StatusCode)

	var reply struct {
		Success bool `json:"success"`
		File    struct {
			OriginalName string `json:"originalname"`
			Type         string `json:"type"`
			Content      string `json:"content"`
		} `json:"file"`
	}
	require.NoError(t, json.NewDecoder(response.Body).Decode(&reply))
	assert.True(t, reply.Success)
	assert.Equal(t, "notes.txt", reply.File.OriginalName)
	assert.Equal(t, "text", reply.File.Type)
	assert.Equal(t, "file body", reply.File.Content)
}

func TestUpload_UnsupportedType(t *testing.T) {
	testServer := newTestServer(t, &stubProvider{})

	var buffer bytes.Buffer
	writer := multipart.NewWriter(&buffer)
	part, err := writer.CreateFormFile("file", "binary.exe")
	require.NoError(t, err)
	_, err = part.Write([]byte{0x4d, 0x5a})
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	response, err := http.Post(testServer.URL+"/api/upload", writer.FormDataContentType(), &buffer)
	require.NoError(t, err)
	defer response.Body.Close()
	assert.Equal(t, http.StatusBadRequest, response.StatusCode)
}

func TestHealth(t *testing.T) {
	testServer := newTestServer(t, &stubProvider{})

	response, err := http.Get(testServer.URL + "/api/health")
	require.NoError(t, err)
	defer response.Body.Close()
	assert.Equal(t, http.StatusOK, response.StatusCode)

	var health struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
	}
	require.NoError(t, json.NewDecoder(response.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	assert.NotEmpty(t, health.Timestamp)
}

func TestCORSPreflight(t *testing.T) {
	testServer := newTestServer(t, &stubProvider{})

	request, err := http.NewRequest(http.MethodOptions, testServer.URL+"/api/conversations", nil)
	require.NoError(t, err)
	response, err := http.DefaultClient.Do(request)
	require.NoError(t, err)
	defer response.Body.Close()

	assert.Equal(t, http.StatusNoContent, response.StatusCode)
	assert.Equal(t, "*", response.Header.Get("Access-Control-Allow-Origin"))
	assert.True(t, strings.Contains(response.Header.Get("Access-Control-Allow-Headers"), "session-id"))
}
