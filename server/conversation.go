package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/dungnx/chathist/store"
)

type conversationJSON struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type messageJSON struct {
	ID             int64          `json:"id"`
	ConversationID int64          `json:"conversation_id"`
	Role           store.Role     `json:"role"`
	Content        string         `json:"content"`
	Images         []*store.Image `json:"images,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

func toConversationJSON(conversation *store.Conversation) *conversationJSON {
	return &conversationJSON{
		ID:        conversation.ID,
		Title:     conversation.Title,
		CreatedAt: conversation.CreatedAt,
		UpdatedAt: conversation.UpdatedAt,
	}
}

func toMessageJSON(message *store.Message) *messageJSON {
	return &messageJSON{
		ID:             message.ID,
		ConversationID: message.ConversationID,
		Role:           message.Role,
		Content:        message.Content,
		Images:         message.Images,
		CreatedAt:      message.CreatedAt,
	}
}

// handleConversations serves GET (list) and POST (create) on the
// collection.
func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	user, err := s.resolveUser(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	switch r.Method {
	case http.MethodGet:
		conversations, err := s.store.ListConversations(r.Context(), user.ID)
		if err != nil {
			writeError(w, s.logger, err)
			return
		}
		out := make([]*conversationJSON, 0, len(conversations))
		for _, conversation := range conversations {
			out = append(out, toConversationJSON(conversation))
		}
		writeJSON(w, http.StatusOK, struct {
			Conversations []*conversationJSON `json:"conversations"`
		}{Conversations: out})

	case http.MethodPost:
		var request struct {
			Title string `json:"title"`
		}
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
			return
		}
		conversation, err := s.store.CreateConversation(r.Context(), user.ID, request.Title)
		if err != nil {
			writeError(w, s.logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, struct {
			Conversation *conversationJSON `json:"conversation"`
		}{Conversation: toConversationJSON(conversation)})

	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleRenameConversation(w http.ResponseWriter, r *http.Request, rawID string) {
	conversationID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid conversation id"})
		return
	}
	var request struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return
	}
	conversation, err := s.store.RenameConversation(r.Context(), conversationID, request.Title)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Conversation *conversationJSON `json:"conversation"`
	}{Conversation: toConversationJSON(conversation)})
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request, rawID string) {
	conversationID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid conversation id"})
		return
	}
	messages, err := s.store.ListMessages(r.Context(), conversationID)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	out := make([]*messageJSON, 0, len(messages))
	for _, message := range messages {
		out = append(out, toMessageJSON(message))
	}
	writeJSON(w, http.StatusOK, struct {
		Messages []*messageJSON `json:"messages"`
	}{Messages: out})
}

func (s *Server) handleAppendMessage(w http.ResponseWriter, r *http.Request, rawID string) {
	conversationID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid conversation id"})
		return
	}
	var request struct {
		Role    store.Role     `json:"role"`
		Content string         `json:"content"`
		Images  []*store.Image `json:"images,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return
	}
	message, err := s.store.AppendMessage(r.Context(), &store.AppendMessage{
		ConversationID: conversationID,
		Role:           request.Role,
		Content:        request.Content,
		Images:         request.Images,
	})
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		Message *messageJSON `json:"message"`
	}{Message: toMessageJSON(message)})
}
