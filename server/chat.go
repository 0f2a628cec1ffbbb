package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/dungnx/chathist/internal/attachment"
	"github.com/dungnx/chathist/internal/llm"
)

// wireImageURL is the nested {"url": ...} object OpenAI-style clients
// send for image parts.
type wireImageURL struct {
	URL string `json:"url"`
}

type wireContentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *wireImageURL `json:"image_url,omitempty"`
}

// wireChatMessage accepts both content shapes clients send: a plain
// string, or an array of typed parts. The top-level image_url field is
// the legacy single-image form.
type wireChatMessage struct {
	Role     string          `json:"role"`
	Content  json.RawMessage `json:"content"`
	ImageURL *wireImageURL   `json:"image_url,omitempty"`
}

func (m *wireChatMessage) toMessage() (*llm.Message, error) {
	message := &llm.Message{Role: m.Role}
	if m.ImageURL != nil {
		message.ImageURL = m.ImageURL.URL
	}
	if len(m.Content) == 0 {
		return message, nil
	}

	var scalar string
	if err := json.Unmarshal(m.Content, &scalar); err == nil {
		message.Content = scalar
		return message, nil
	}

	var parts []wireContentPart
	if err := json.Unmarshal(m.Content, &parts); err != nil {
		return nil, pkgerrors.New("message content must be a string or an array of parts")
	}
	message.Parts = make([]llm.ContentPart, 0, len(parts))
	for _, part := range parts {
		converted := llm.ContentPart{Type: part.Type, Text: part.Text}
		if part.ImageURL != nil {
			converted.ImageURL = part.ImageURL.URL
		}
		message.Parts = append(message.Parts, converted)
	}
	return message, nil
}

// hasImages reports whether any request message carries image content.
// Image requests get the longer attachment timeout.
func hasImages(messages []*llm.Message) bool {
	for _, message := range messages {
		if message.ImageURL != "" {
			return true
		}
		for _, part := range message.Parts {
			if part.Type == llm.ContentPartImageURL {
				return true
			}
		}
	}
	return false
}

// handleChat forwards a completion request to the configured provider.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var request struct {
		Messages []*wireChatMessage `json:"messages"`
		Model    string             `json:"model,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return
	}
	if len(request.Messages) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Messages array is required"})
		return
	}

	messages := make([]*llm.Message, 0, len(request.Messages))
	for _, wireMessage := range request.Messages {
		message, err := wireMessage.toMessage()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		messages = append(messages, message)
	}

	model := request.Model
	if model == "" {
		model = s.defaultModel
	}
	timeout := s.requestTimeout
	if hasImages(messages) {
		timeout = s.attachmentTimeout
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()
	completion, err := s.provider.CreateChatCompletion(ctx, &llm.CreateChatCompletionRequest{
		Model:    model,
		Messages: messages,
	})
	if err != nil {
		var providerErr *llm.ProviderError
		if !pkgerrors.As(err, &providerErr) {
			err = &llm.ProviderError{Err: err}
		}
		writeError(w, s.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		Usage *llm.Usage `json:"usage,omitempty"`
	}{
		Message: struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		}{
			Role:    completion.Message.Role,
			Content: completion.Message.Text(),
		},
		Usage: completion.Usage,
	})
}

// handleUpload accepts one multipart file and returns its processed,
// inline representation. Nothing is written to disk.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "File too large or malformed upload"})
		return
	}
	formFile, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "No file uploaded"})
		return
	}
	defer formFile.Close()

	blob, err := io.ReadAll(formFile)
	if err != nil {
		writeError(w, s.logger, pkgerrors.Wrap(err, "reading upload"))
		return
	}

	file, err := s.processor.Process(r.Context(), header.Filename, blob)
	if err != nil {
		if pkgerrors.Is(err, attachment.ErrUnsupportedType) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Unsupported file type"})
			return
		}
		writeError(w, s.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Success bool             `json:"success"`
		File    *attachment.File `json:"file"`
	}{Success: true, File: file})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
	}{Status: "ok", Timestamp: time.Now().UTC().Format(time.RFC3339)})
}
