// ABOUTME: In-memory fan-out of engine events to presentation subscribers
// ABOUTME: Keeps state transitions observable without the engine touching any view

package engine

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/mitra/mitra-client/internal/format"
	"github.com/mitra/mitra-client/internal/store"
)

// subscriberBufferSize is the channel buffer for each subscriber.
const subscriberBufferSize = 64

// EventType identifies what happened in the engine.
type EventType string

const (
	EventUserMessage        EventType = "user_message"
	EventAssistantMessage   EventType = "assistant_message"
	EventTurnFailed         EventType = "turn_failed"
	EventConversationLoaded EventType = "conversation_loaded"
)

// Event is one observable engine state change. Message is set for message
// events, Nodes carries the rendered reply for assistant messages, and Err
// is set for failed turns.
type Event struct {
	Type           EventType
	ConversationID string
	Message        *store.Message
	Nodes          []format.Node
	Err            error
}

// Notifier provides in-memory pub/sub for engine events. Subscribers
// register for a conversation id and receive events as turns progress,
// which lets list views and chat views update without the engine reaching
// into presentation code.
type Notifier struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]chan Event // conversationID -> subID -> ch
	logger      *slog.Logger
}

// NewNotifier creates a notifier. Pass nil logger for default.
func NewNotifier(logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		subscribers: make(map[string]map[string]chan Event),
		logger:      logger.With("component", "notifier"),
	}
}

// Subscribe registers for events on the given conversation id. Returns the
// event channel and a subscription id. The subscription is cleaned up when
// ctx is cancelled.
func (n *Notifier) Subscribe(ctx context.Context, conversationID string) (<-chan Event, string) {
	subID := uuid.New().String()
	ch := make(chan Event, subscriberBufferSize)

	n.mu.Lock()
	if _, ok := n.subscribers[conversationID]; !ok {
		n.subscribers[conversationID] = make(map[string]chan Event)
	}
	n.subscribers[conversationID][subID] = ch
	n.mu.Unlock()

	go func() {
		<-ctx.Done()
		n.Unsubscribe(conversationID, subID)
	}()

	return ch, subID
}

// Publish sends an event to all subscribers of its conversation id.
// Non-blocking: events are dropped for subscribers whose channels are full.
func (n *Notifier) Publish(event Event) {
	n.mu.RLock()
	subs := n.subscribers[event.ConversationID]
	targets := make([]chan Event, 0, len(subs))
	for _, ch := range subs {
		targets = append(targets, ch)
	}
	n.mu.RUnlock()

	for _, ch := range targets {
		select {
		case ch <- event:
		default:
			n.logger.Debug("dropped event for slow subscriber",
				"conversation_id", event.ConversationID,
				"type", string(event.Type))
		}
	}
}

// Unsubscribe removes a subscription and closes its channel.
func (n *Notifier) Unsubscribe(conversationID, subID string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	subs, ok := n.subscribers[conversationID]
	if !ok {
		return
	}
	ch, exists := subs[subID]
	if !exists {
		return
	}

	delete(subs, subID)
	close(ch)
	if len(subs) == 0 {
		delete(n.subscribers, conversationID)
	}
}

// Close shuts down the notifier and closes all subscriber channels.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()

	for convID, subs := range n.subscribers {
		for subID, ch := range subs {
			close(ch)
			delete(subs, subID)
		}
		delete(n.subscribers, convID)
	}
}
