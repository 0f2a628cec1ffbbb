package chat

import (
	"time"

	"github.com/dungnx/chathist/internal/attachment"
	"github.com/dungnx/chathist/store"
)

// Message is the synchronizer's in-memory representation of one message:
// a superset of the durable store.Message carrying optimistic-state
// bookkeeping. The ID is client-local and never reaches the store.
type Message struct {
	ID        string
	Role      store.Role
	Content   string
	CreatedAt time.Time

	// File is an uploaded attachment processed into text or a data URL.
	File *attachment.File
	// Images are pasted images, in paste order.
	Images []*store.Image
	// ImageURL is the legacy single-image upload side channel.
	ImageURL string

	// IsLoading marks the assistant placeholder awaiting the provider.
	IsLoading bool
	// Saved flips to true exactly once, when the message has been
	// durably persisted. It is the sole idempotency guard for
	// persistence.
	Saved bool
}
