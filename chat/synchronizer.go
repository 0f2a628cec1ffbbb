package chat

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/dungnx/chathist/internal/attachment"
	"github.com/dungnx/chathist/internal/llm"
	"github.com/dungnx/chathist/store"
)

// Store is the slice of the conversation store the synchronizer needs.
type Store interface {
	CreateConversation(ctx context.Context, userID int64, title string) (*store.Conversation, error)
	AppendMessage(ctx context.Context, append *store.AppendMessage) (*store.Message, error)
	ListMessages(ctx context.Context, conversationID int64) ([]*store.Message, error)
}

// State of the current turn.
type State int

const (
	StateIdle State = iota
	StateAwaitingCompletion
	StateCompleted
	StatePersistUser
	StatePersistAssistant
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingCompletion:
		return "awaiting_completion"
	case StateCompleted:
		return "completed"
	case StatePersistUser:
		return "persist_user"
	case StatePersistAssistant:
		return "persist_assistant"
	}
	return "unknown"
}

var (
	// ErrAlreadyLoading rejects a send while a turn is in flight.
	ErrAlreadyLoading = errors.New("already loading")
	// ErrEmptySend rejects a send with no text, file or images.
	ErrEmptySend = errors.New("nothing to send")
	// ErrSuperseded reports a completion that arrived after its
	// conversation was switched away from; the response is discarded.
	ErrSuperseded = errors.New("conversation switched before completion arrived")
)

const (
	// DefaultTextTimeout bounds text-only completion calls.
	DefaultTextTimeout = 30 * time.Second
	// DefaultAttachmentTimeout bounds attachment-bearing calls.
	DefaultAttachmentTimeout = 60 * time.Second

	titleWords = 6
)

// Options tune a Synchronizer.
type Options struct {
	Model             string
	TextTimeout       time.Duration
	AttachmentTimeout time.Duration
	Logger            *slog.Logger
}

// Synchronizer reconciles an optimistically rendered message list with
// the durable store, exactly once per completed turn. One synchronizer
// serves one browsing session; at most one send is in flight at a time.
type Synchronizer struct {
	store    Store
	provider llm.Client
	logger   *slog.Logger

	model             string
	textTimeout       time.Duration
	attachmentTimeout time.Duration

	mu           sync.Mutex
	userID       int64
	conversation *store.Conversation
	messages     []*Message
	state        State
	// generation increments on every conversation switch. A completion
	// returning under a stale generation is dropped instead of landing
	// in the wrong conversation.
	generation uint64
}

// NewSynchronizer builds a synchronizer for one user session.
func NewSynchronizer(s Store, provider llm.Client, userID int64, options Options) *Synchronizer {
	if options.TextTimeout == 0 {
		options.TextTimeout = DefaultTextTimeout
	}
	if options.AttachmentTimeout == 0 {
		options.AttachmentTimeout = DefaultAttachmentTimeout
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &Synchronizer{
		store:             s,
		provider:          provider,
		logger:            options.Logger.With("component", "chat.synchronizer"),
		model:             options.Model,
		textTimeout:       options.TextTimeout,
		attachmentTimeout: options.AttachmentTimeout,
		userID:            userID,
		state:             StateIdle,
	}
}

// Send runs one turn: append an optimistic user message and an assistant
// placeholder, call the provider, replace the placeholder with the real
// reply, then persist the pair. On provider failure both optimistic
// messages are rolled back and the caller must resend.
//
// Only valid from the idle state; a send while a completion is in flight
// returns ErrAlreadyLoading no matter how fast the triggers come.
func (s *Synchronizer) Send(ctx context.Context, text string, file *attachment.File, images []*store.Image) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrAlreadyLoading
	}

	content := strings.TrimSpace(text)
	if content == "" && file == nil && len(images) == 0 {
		s.mu.Unlock()
		return ErrEmptySend
	}
	if content == "" {
		if file != nil {
			content = "Uploaded: " + file.OriginalName
		} else {
			content = "Images pasted"
		}
	}

	// The durable conversation is created lazily, before the completion
	// call and before any optimistic append: a failed creation aborts
	// the turn leaving no trace.
	if s.conversation == nil {
		conversation, err := s.store.CreateConversation(ctx, s.userID, deriveTitle(text))
		if err != nil {
			s.mu.Unlock()
			return errors.Wrap(err, "creating conversation")
		}
		s.conversation = conversation
	}

	userMessage := &Message{
		ID:        uuid.New().String(),
		Role:      store.RoleUser,
		Content:   content,
		CreatedAt: time.Now(),
		File:      file,
		Images:    images,
	}
	if file != nil && file.Type == attachment.TypeImage {
		userMessage.ImageURL = file.Content
	}
	placeholder := &Message{
		ID:        uuid.New().String(),
		Role:      store.RoleAssistant,
		CreatedAt: time.Now(),
		IsLoading: true,
	}
	s.messages = append(s.messages, userMessage, placeholder)
	s.state = StateAwaitingCompletion

	generation := s.generation
	request := &llm.CreateChatCompletionRequest{
		Model:    s.model,
		Messages: Compose(s.messages),
	}
	timeout := s.textTimeout
	if file != nil || len(images) > 0 {
		timeout = s.attachmentTimeout
	}
	s.mu.Unlock()

	// The completion call is the turn's only suspension point; the lock
	// is not held across it.
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	completion, err := s.provider.CreateChatCompletion(callCtx, request)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != generation {
		s.logger.Warn("discarding stale completion", "generation", generation)
		return ErrSuperseded
	}

	if err != nil {
		// Roll back the optimistic pair; the user's text is not kept
		// for automatic retry.
		s.messages = s.messages[:len(s.messages)-2]
		s.state = StateIdle
		providerErr := &llm.ProviderError{}
		if !errors.As(err, &providerErr) {
			err = &llm.ProviderError{Err: err}
		}
		return err
	}

	placeholder.Content = completion.Message.Text()
	placeholder.IsLoading = false
	s.state = StateCompleted

	// A persistence failure after a successful completion keeps the
	// shown reply; the unsaved messages are retried on the next call to
	// Persist.
	if err := s.persistLocked(ctx); err != nil {
		s.logger.Warn("persisting turn failed, will retry", "error", err)
	}
	return nil
}

// Persist re-runs the persistence step for any unsaved messages. Safe to
// call any number of times: persistence is keyed off each message's
// Saved flag, not off a one-shot callback. While a completion is in
// flight the call is a no-op; the turn is not persistable until it
// completes, and touching the state here would disarm the in-flight
// guard.
func (s *Synchronizer) Persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conversation == nil {
		return nil
	}
	if s.state != StateCompleted && s.state != StateIdle {
		return nil
	}
	return s.persistLocked(ctx)
}

// persistLocked requires the state to be StateCompleted or StateIdle on
// entry; it always leaves the machine idle.
func (s *Synchronizer) persistLocked(ctx context.Context) error {
	defer func() { s.state = StateIdle }()

	for _, message := range s.messages {
		if message.Saved || message.IsLoading {
			continue
		}
		if message.Role == store.RoleUser {
			s.state = StatePersistUser
		} else {
			s.state = StatePersistAssistant
		}
		saved, err := s.store.AppendMessage(ctx, &store.AppendMessage{
			ConversationID: s.conversation.ID,
			Role:           message.Role,
			Content:        message.Content,
			Images:         message.Images,
		})
		if err != nil {
			return errors.Wrapf(err, "persisting %s message", message.Role)
		}
		message.Saved = true
		message.CreatedAt = saved.CreatedAt
	}
	return nil
}

// SelectConversation switches to an existing conversation, loading its
// durable history. Unsaved ephemeral state of the previous conversation
// is discarded, and any in-flight completion for it will be dropped on
// arrival.
func (s *Synchronizer) SelectConversation(ctx context.Context, conversation *store.Conversation) error {
	messages, err := s.store.ListMessages(ctx, conversation.ID)
	if err != nil {
		return errors.Wrap(err, "listing messages")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.conversation = conversation
	s.messages = make([]*Message, 0, len(messages))
	for _, message := range messages {
		s.messages = append(s.messages, &Message{
			ID:        uuid.New().String(),
			Role:      message.Role,
			Content:   message.Content,
			Images:    message.Images,
			CreatedAt: message.CreatedAt,
			Saved:     true,
		})
	}
	s.state = StateIdle
	return nil
}

// NewChat discards all ephemeral state and starts over with no durable
// conversation; one is created on the next send.
func (s *Synchronizer) NewChat() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.conversation = nil
	s.messages = nil
	s.state = StateIdle
}

// Conversation returns the current durable conversation, nil before the
// first send of a new chat.
func (s *Synchronizer) Conversation() *store.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversation
}

// Messages returns a snapshot of the ephemeral message list.
func (s *Synchronizer) Messages() []*Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make([]*Message, len(s.messages))
	copy(snapshot, s.messages)
	return snapshot
}

// State returns the current turn state.
func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// deriveTitle builds a conversation title from the first words of the
// first user message.
func deriveTitle(text string) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return store.DefaultTitle
	}
	if len(words) > titleWords {
		words = words[:titleWords]
	}
	return strings.Join(words, " ")
}
