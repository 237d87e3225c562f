// ABOUTME: ConversationEngine orchestrates the send/receive turn lifecycle
// ABOUTME: Owns the active conversation, title derivation, and persistence after each turn

package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/mitra/mitra-client/internal/client"
	"github.com/mitra/mitra-client/internal/format"
	"github.com/mitra/mitra-client/internal/store"
)

// Validation errors, rejected before any network call. The outgoing message
// and conversation state are untouched when these are returned.
var (
	ErrEmptyMessage   = errors.New("message is empty")
	ErrMessageTooLong = errors.New("message exceeds maximum length")
)

// ErrUnknownExportFormat is returned for export formats other than json/text.
var ErrUnknownExportFormat = errors.New("unknown export format")

// DefaultMaxMessageLength bounds outgoing message length (in characters).
const DefaultMaxMessageLength = 4000

// titleLimit is how many characters of the originating user message become
// the conversation title.
const titleLimit = 50

// IsValidationError reports whether err is a pre-flight validation failure.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrEmptyMessage) || errors.Is(err, ErrMessageTooLong)
}

// TurnState tracks where the active conversation is in a turn.
type TurnState int

const (
	StateIdle TurnState = iota
	StateSending
	StateAwaitingReply
)

// ChatSender defines what the engine needs from the gateway client.
type ChatSender interface {
	SendMessage(ctx context.Context, text, sessionID string) (*client.ChatReply, error)
}

// TurnResult is the outcome of one successful turn.
type TurnResult struct {
	Conversation *store.Conversation
	Reply        *store.Message
	Nodes        []format.Node // rendered reply, safe for presentation
}

// Engine orchestrates conversation turns. It owns the active in-memory
// conversation, appends messages, derives titles, and persists through the
// store after each successful turn.
//
// The engine runs turns on the caller's goroutine; the only suspension point
// is the gateway call. Only one outstanding turn per conversation is
// supported: callers must disable further sends until SendMessage settles.
// Concurrent SendMessage calls on one engine are a caller error and are not
// internally guarded. There is no cancellation of an in-flight turn beyond
// the passed context; if the active conversation is switched while a request
// is outstanding, the eventual reply still lands on the conversation that
// sent it.
type Engine struct {
	store    store.Store
	sender   ChatSender
	notifier *Notifier
	logger   *slog.Logger
	now      func() time.Time

	maxMessageLen int

	active *store.Conversation
	state  TurnState
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxMessageLength overrides the outgoing message length limit.
func WithMaxMessageLength(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxMessageLen = n
		}
	}
}

// WithClock overrides the time source (used by tests).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New creates a ConversationEngine. All collaborators are passed explicitly;
// nothing is reached through globals. Pass nil notifier to disable events
// and nil logger for default.
func New(st store.Store, sender ChatSender, notifier *Notifier, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		store:         st,
		sender:        sender,
		notifier:      notifier,
		logger:        logger.With("component", "engine"),
		now:           time.Now,
		maxMessageLen: DefaultMaxMessageLength,
		state:         StateIdle,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State returns the turn state of the active conversation.
func (e *Engine) State() TurnState {
	return e.state
}

// Active returns the active conversation, or nil before the first
// StartNewConversation/LoadConversation.
func (e *Engine) Active() *store.Conversation {
	return e.active
}

// StartNewConversation creates and activates a fresh, empty, untitled
// conversation with new conversation and session ids. The previous message
// buffer is discarded. Nothing is persisted until the first turn completes.
func (e *Engine) StartNewConversation() *store.Conversation {
	now := e.now()
	conv := &store.Conversation{
		ID:        uuid.New().String(),
		CreatedAt: now,
		UpdatedAt: now,
		SessionID: uuid.New().String(),
	}
	e.active = conv
	e.state = StateIdle

	e.logger.Debug("conversation started",
		"conversation_id", conv.ID,
		"session_id", conv.SessionID)
	e.publish(Event{Type: EventConversationLoaded, ConversationID: conv.ID})
	return conv
}

// SendMessage runs one turn: validate, append the user message
// optimistically, call the gateway, then append and persist the reply.
//
// Empty (after trimming) or oversize text fails validation before any
// network call. On gateway failure the user message is NOT rolled back, the
// error is returned for user-visible reporting, and no retry is attempted.
//
// Precondition: no turn is in flight. Callers disable their send input
// until the previous call settles.
func (e *Engine) SendMessage(ctx context.Context, text string) (*TurnResult, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(trimmed) > e.maxMessageLen {
		return nil, fmt.Errorf("%w (%d > %d)", ErrMessageTooLong, utf8.RuneCountInString(trimmed), e.maxMessageLen)
	}

	if e.active == nil {
		e.StartNewConversation()
	}
	conv := e.active

	userMsg := &store.Message{
		Role:      store.RoleUser,
		Content:   trimmed,
		Timestamp: e.now(),
	}
	conv.Messages = append(conv.Messages, userMsg)
	e.state = StateSending
	e.publish(Event{Type: EventUserMessage, ConversationID: conv.ID, Message: userMsg})

	reply, err := e.sender.SendMessage(ctx, trimmed, conv.SessionID)
	if err != nil {
		// The user message stays in the buffer; the caller reports the
		// failure and may resend manually.
		e.state = StateIdle
		e.logger.Warn("turn failed",
			"conversation_id", conv.ID,
			"error", err)
		e.publish(Event{Type: EventTurnFailed, ConversationID: conv.ID, Err: err})
		return nil, err
	}
	e.state = StateAwaitingReply

	nodes := format.Render(reply.Response)
	assistantMsg := &store.Message{
		Role:       store.RoleAssistant,
		Content:    reply.Response,
		Timestamp:  e.now(),
		Confidence: reply.Confidence,
		Sources:    reply.Sources,
	}
	conv.Messages = append(conv.Messages, assistantMsg)

	if err := e.updateConversation(conv, trimmed, reply.Response); err != nil {
		e.state = StateIdle
		return nil, err
	}
	e.state = StateIdle

	e.publish(Event{
		Type:           EventAssistantMessage,
		ConversationID: conv.ID,
		Message:        assistantMsg,
		Nodes:          nodes,
	})
	return &TurnResult{Conversation: conv, Reply: assistantMsg, Nodes: nodes}, nil
}

// LoadConversation replaces the active conversation with the stored one.
// An unknown id is a silent no-op. A session id is regenerated only when the
// stored conversation has none.
func (e *Engine) LoadConversation(id string) error {
	conv, err := e.store.Get(id)
	if errors.Is(err, store.ErrNotFound) {
		e.logger.Debug("load skipped, conversation not found", "conversation_id", id)
		return nil
	}
	if err != nil {
		return err
	}

	if conv.SessionID == "" {
		conv.SessionID = uuid.New().String()
	}
	e.active = conv
	e.state = StateIdle
	e.publish(Event{Type: EventConversationLoaded, ConversationID: conv.ID})
	return nil
}

// TogglePin flips the pinned flag. Pinning does not refresh updated_at;
// only successful turns do.
func (e *Engine) TogglePin(id string) error {
	return e.toggleFlag(id, func(c *store.Conversation) {
		c.Pinned = !c.Pinned
	})
}

// ToggleStar flips the starred flag.
func (e *Engine) ToggleStar(id string) error {
	return e.toggleFlag(id, func(c *store.Conversation) {
		c.Starred = !c.Starred
	})
}

// DeleteConversation permanently removes a conversation from the store.
// This is the only destructive operation. Deleting the active conversation
// clears the in-memory buffer as well.
func (e *Engine) DeleteConversation(id string) error {
	if err := e.store.Remove(id); err != nil {
		return err
	}
	if e.active != nil && e.active.ID == id {
		e.active = nil
		e.state = StateIdle
	}
	return nil
}

// ExportConversation renders a stored conversation as "json" or "text".
func (e *Engine) ExportConversation(id, exportFormat string) ([]byte, error) {
	conv, err := e.store.Get(id)
	if err != nil {
		return nil, err
	}

	switch exportFormat {
	case "json":
		return json.MarshalIndent(conv, "", "  ")
	case "text":
		var b strings.Builder
		title := conv.Title
		if title == "" {
			title = "Untitled conversation"
		}
		fmt.Fprintf(&b, "%s\n\n", title)
		for _, msg := range conv.Messages {
			role := "User"
			if msg.Role == store.RoleAssistant {
				role = "Assistant"
			}
			fmt.Fprintf(&b, "%s (%s):\n%s\n\n", role, msg.Timestamp.Format(time.RFC3339), msg.Content)
		}
		return []byte(b.String()), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownExportFormat, exportFormat)
	}
}

// updateConversation applies the post-turn bookkeeping: one-time title
// derivation, lastMessage, updated_at, then persistence.
func (e *Engine) updateConversation(conv *store.Conversation, userText, aiText string) error {
	// The title is set exactly once, when the first user/assistant pair
	// lands: the first 50 characters of the originating user message.
	if conv.Title == "" && len(conv.Messages) >= 2 {
		conv.Title = deriveTitle(userText)
	}
	conv.LastMessage = aiText
	conv.UpdatedAt = e.now()

	if err := e.store.Save(conv); err != nil {
		return fmt.Errorf("persisting conversation: %w", err)
	}
	e.logger.Debug("turn persisted",
		"conversation_id", conv.ID,
		"messages", len(conv.Messages))
	return nil
}

func (e *Engine) toggleFlag(id string, flip func(*store.Conversation)) error {
	conv, err := e.store.Get(id)
	if err != nil {
		return err
	}
	flip(conv)
	// Flip the active buffer in place rather than replacing it with the
	// stored copy, which may be missing a retained unsent message.
	if e.active != nil && e.active.ID == id {
		flip(e.active)
	}
	return e.store.Save(conv)
}

// deriveTitle truncates the originating user message to titleLimit
// characters, with an ellipsis only when something was cut.
func deriveTitle(userText string) string {
	runes := []rune(userText)
	if len(runes) <= titleLimit {
		return userText
	}
	return string(runes[:titleLimit]) + "..."
}

func (e *Engine) publish(event Event) {
	if e.notifier != nil {
		e.notifier.Publish(event)
	}
}
