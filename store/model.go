package store

import "time"

// Role of a message author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether the role is one this store accepts.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// User anchors an anonymous session token to a durable identity.
type User struct {
	ID           int64
	SessionToken string
	CreatedAt    time.Time
}

// Conversation is a thread of messages owned by one user.
type Conversation struct {
	ID        int64
	UserID    int64
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Image is one pasted image attached to a message. Content is a base64
// data URL, exactly as received from the client.
type Image struct {
	ID       string `json:"id"`
	Content  string `json:"content"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// Message is one turn's content within a conversation.
type Message struct {
	ID             int64
	ConversationID int64
	Role           Role
	Content        string
	Images         []*Image
	CreatedAt      time.Time
}

// AppendMessage is the payload for Store.AppendMessage.
type AppendMessage struct {
	ConversationID int64
	Role           Role
	Content        string
	Images         []*Image
}
