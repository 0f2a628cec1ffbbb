// Package store persists users, conversations and messages behind a
// database-agnostic Driver. The SQLite driver is the default backend;
// the Postgres driver serves deployments with an external database.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// DefaultTitle is used when a conversation is created without one.
const DefaultTitle = "New Chat"

// Driver is implemented by each database backend.
type Driver interface {
	GetOrCreateUser(ctx context.Context, sessionToken string) (*User, error)
	CreateConversation(ctx context.Context, userID int64, title string) (*Conversation, error)
	ListConversations(ctx context.Context, userID int64) ([]*Conversation, error)
	RenameConversation(ctx context.Context, conversationID int64, title string) (*Conversation, error)
	AppendMessage(ctx context.Context, append *AppendMessage) (*Message, error)
	ListMessages(ctx context.Context, conversationID int64) ([]*Message, error)
	DeleteExpiredConversations(ctx context.Context, cutoff time.Time) (int64, error)
	Close() error
}

// Store is a thin facade over a Driver. It owns input validation and
// defaulting; ordering, atomicity and referential integrity live in the
// drivers.
type Store struct {
	driver Driver
}

// New store backed by the given driver.
func New(driver Driver) *Store {
	return &Store{driver: driver}
}

// GetOrCreateUser resolves a session token to a durable user, creating
// one on first sight. Safe under concurrent calls with the same token:
// the insert is guarded by a uniqueness constraint and a losing writer
// re-selects the winner's row. A conflict is retried once before it
// surfaces.
func (s *Store) GetOrCreateUser(ctx context.Context, sessionToken string) (*User, error) {
	if sessionToken == "" {
		return nil, errors.Wrap(ErrValidation, "session token is empty")
	}
	user, err := s.driver.GetOrCreateUser(ctx, sessionToken)
	if errors.Is(err, ErrConflict) {
		user, err = s.driver.GetOrCreateUser(ctx, sessionToken)
	}
	return user, err
}

// CreateConversation creates a new conversation for the user. An empty
// title defaults to "New Chat".
func (s *Store) CreateConversation(ctx context.Context, userID int64, title string) (*Conversation, error) {
	if title = strings.TrimSpace(title); title == "" {
		title = DefaultTitle
	}
	return s.driver.CreateConversation(ctx, userID, title)
}

// ListConversations returns the user's conversations, most recently
// active first.
func (s *Store) ListConversations(ctx context.Context, userID int64) ([]*Conversation, error) {
	return s.driver.ListConversations(ctx, userID)
}

// RenameConversation updates the title and bumps the activity timestamp.
func (s *Store) RenameConversation(ctx context.Context, conversationID int64, title string) (*Conversation, error) {
	if strings.TrimSpace(title) == "" {
		return nil, errors.Wrap(ErrValidation, "title is empty")
	}
	return s.driver.RenameConversation(ctx, conversationID, title)
}

// AppendMessage inserts the message and bumps the parent conversation's
// updated_at in a single transaction, so no reader observes one without
// the other.
func (s *Store) AppendMessage(ctx context.Context, append *AppendMessage) (*Message, error) {
	if !append.Role.Valid() {
		return nil, errors.Wrapf(ErrValidation, "invalid role %q", append.Role)
	}
	return s.driver.AppendMessage(ctx, append)
}

// ListMessages returns the conversation's messages oldest first.
func (s *Store) ListMessages(ctx context.Context, conversationID int64) ([]*Message, error) {
	return s.driver.ListMessages(ctx, conversationID)
}

// DeleteExpiredConversations removes conversations whose last activity
// is older than cutoff, together with their messages. Returns the number
// of conversations deleted; zero matches is not an error.
func (s *Store) DeleteExpiredConversations(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.driver.DeleteExpiredConversations(ctx, cutoff)
}

// Close closes the underlying driver.
func (s *Store) Close() error {
	return s.driver.Close()
}
