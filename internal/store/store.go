// ABOUTME: Store interface and data types for mitra-client persistence
// ABOUTME: Defines Conversation, Message structs and the Store interface for session storage

package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested conversation does not exist
var ErrNotFound = errors.New("not found")

// RecentLimit is the maximum number of conversations surfaced in the
// recent partition. The underlying store is unbounded; this caps display only.
const RecentLimit = 15

// Role constants for message authorship
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single entry within a conversation. Messages are strictly
// insertion-ordered and never mutated after append.
type Message struct {
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	Confidence *float64  `json:"confidence,omitempty"`
	Sources    []string  `json:"sources,omitempty"`
}

// Conversation is one chat thread with the assistant. ID is assigned at
// creation and immutable. SessionID is the opaque identifier the remote
// backend uses to keep its own server-side context for this conversation.
type Conversation struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Messages    []*Message `json:"messages"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Starred     bool       `json:"starred"`
	Pinned      bool       `json:"pinned"`
	LastMessage string     `json:"lastMessage"`
	SessionID   string     `json:"session_id"`
}

// Partition is a convenience view over the stored collection: pinned
// conversations and a capped recent list that excludes them. A conversation
// never appears in both.
type Partition struct {
	Pinned []*Conversation
	Recent []*Conversation
}

// Store defines the interface for conversation persistence.
//
// List order is determined by upsert history: the most-recently-saved new
// conversation comes first, and saving an existing id keeps its position.
// The order is NOT re-derived from updated_at at read time. Callers depend
// on this; do not "fix" it by sorting.
type Store interface {
	List() ([]*Conversation, error)
	Get(id string) (*Conversation, error)
	Save(conv *Conversation) error
	Remove(id string) error
	Partition() (*Partition, error)

	// Close releases any resources held by the store
	Close() error
}

// TokenStore defines the interface for the locally persisted auth state:
// one compact token string plus a guest-mode flag.
type TokenStore interface {
	Token() (string, error)
	SetToken(token string) error
	GuestFlag() (bool, error)
	SetGuestFlag(on bool) error

	// ClearSession removes the token and the guest flag together.
	ClearSession() error
}
