// ABOUTME: Tests for the ConversationEngine turn lifecycle
// ABOUTME: Verifies validation, optimistic append, title rules, and persistence

package engine

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitra/mitra-client/internal/client"
	"github.com/mitra/mitra-client/internal/store"
)

// mockSender implements ChatSender for testing
type mockSender struct {
	reply    *client.ChatReply
	err      error
	lastText string
	lastSess string
	calls    int
}

func (m *mockSender) SendMessage(ctx context.Context, text, sessionID string) (*client.ChatReply, error) {
	m.calls++
	m.lastText = text
	m.lastSess = sessionID
	if m.err != nil {
		return nil, m.err
	}
	return m.reply, nil
}

func createTestStore(t *testing.T) *store.BoltStore {
	t.Helper()
	s, err := store.NewBoltStore(filepath.Join(t.TempDir(), "sessions.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEngine_SendMessage_EmptyAfterTrim(t *testing.T) {
	e := New(createTestStore(t), &mockSender{}, nil, nil)
	e.StartNewConversation()

	_, err := e.SendMessage(context.Background(), "   \n\t ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.True(t, IsValidationError(err))
	assert.Empty(t, e.Active().Messages, "validation failures leave no state change")
	assert.Equal(t, StateIdle, e.State())
}

func TestEngine_SendMessage_TooLong(t *testing.T) {
	sender := &mockSender{}
	e := New(createTestStore(t), sender, nil, nil, WithMaxMessageLength(10))
	e.StartNewConversation()

	_, err := e.SendMessage(context.Background(), strings.Repeat("x", 11))
	assert.ErrorIs(t, err, ErrMessageTooLong)
	assert.True(t, IsValidationError(err))
	assert.Zero(t, sender.calls, "rejected before any network call")
}

func TestEngine_SendMessage_SuccessfulTurn(t *testing.T) {
	st := createTestStore(t)
	confidence := 0.85
	sender := &mockSender{reply: &client.ChatReply{
		Response:   "The answer is **10**",
		Confidence: &confidence,
		Sources:    []string{"math.pdf"},
	}}
	e := New(st, sender, nil, nil)
	conv := e.StartNewConversation()

	result, err := e.SendMessage(context.Background(), "what is 5+5?")
	require.NoError(t, err)
	assert.Equal(t, StateIdle, e.State())
	assert.Equal(t, conv.SessionID, sender.lastSess)

	require.Len(t, conv.Messages, 2)
	assert.Equal(t, store.RoleUser, conv.Messages[0].Role)
	assert.Equal(t, "what is 5+5?", conv.Messages[0].Content)
	assert.Equal(t, store.RoleAssistant, conv.Messages[1].Role)
	assert.Equal(t, "The answer is **10**", conv.Messages[1].Content)
	require.NotNil(t, conv.Messages[1].Confidence)
	assert.InDelta(t, 0.85, *conv.Messages[1].Confidence, 0.001)
	assert.Equal(t, []string{"math.pdf"}, conv.Messages[1].Sources)

	assert.NotEmpty(t, result.Nodes, "reply is rendered for presentation")
	assert.Equal(t, "The answer is **10**", conv.LastMessage)

	// Persisted with the same content
	stored, err := st.Get(conv.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Messages, 2)
}

func TestEngine_SendMessage_FailureKeepsUserMessage(t *testing.T) {
	st := createTestStore(t)
	sender := &mockSender{err: &client.NetworkError{Op: "send_message", StatusCode: 503, Err: errors.New("unavailable")}}
	e := New(st, sender, nil, nil)
	conv := e.StartNewConversation()

	_, err := e.SendMessage(context.Background(), "hello?")

	var netErr *client.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, StateIdle, e.State())

	// User message is retained, not rolled back
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, "hello?", conv.Messages[0].Content)

	// Nothing persisted for a conversation with no completed turn
	_, err = st.Get(conv.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestEngine_TitleSetOnceAtTwoMessages(t *testing.T) {
	sender := &mockSender{reply: &client.ChatReply{Response: "hi"}}
	e := New(createTestStore(t), sender, nil, nil)
	conv := e.StartNewConversation()
	assert.Empty(t, conv.Title, "new conversations are untitled")

	_, err := e.SendMessage(context.Background(), "first question")
	require.NoError(t, err)
	assert.Equal(t, "first question", conv.Title)

	_, err = e.SendMessage(context.Background(), "second question")
	require.NoError(t, err)
	assert.Equal(t, "first question", conv.Title, "title never changes after it is set")
}

func TestEngine_TitleTruncatedAtFifty(t *testing.T) {
	sender := &mockSender{reply: &client.ChatReply{Response: "ok"}}
	e := New(createTestStore(t), sender, nil, nil)
	e.StartNewConversation()

	long := strings.Repeat("a", 60)
	_, err := e.SendMessage(context.Background(), long)
	require.NoError(t, err)

	title := e.Active().Title
	assert.Equal(t, strings.Repeat("a", 50)+"...", title)

	// Exactly at the limit: no ellipsis
	e.StartNewConversation()
	exact := strings.Repeat("b", 50)
	_, err = e.SendMessage(context.Background(), exact)
	require.NoError(t, err)
	assert.Equal(t, exact, e.Active().Title)
}

func TestEngine_StartNewConversation_FreshIDs(t *testing.T) {
	e := New(createTestStore(t), &mockSender{}, nil, nil)

	first := e.StartNewConversation()
	second := e.StartNewConversation()

	assert.NotEqual(t, first.ID, second.ID)
	assert.NotEqual(t, first.SessionID, second.SessionID)
	assert.NotEmpty(t, second.SessionID)
	assert.Empty(t, second.Messages)
	assert.Same(t, second, e.Active())
}

func TestEngine_LoadConversation_UnknownIDIsNoOp(t *testing.T) {
	e := New(createTestStore(t), &mockSender{}, nil, nil)
	active := e.StartNewConversation()

	require.NoError(t, e.LoadConversation("no-such-id"))
	assert.Same(t, active, e.Active(), "active conversation unchanged")
}

func TestEngine_LoadConversation_KeepsStoredSessionID(t *testing.T) {
	st := createTestStore(t)
	require.NoError(t, st.Save(&store.Conversation{ID: "c1", SessionID: "stable-session"}))
	require.NoError(t, st.Save(&store.Conversation{ID: "c2"}))

	e := New(st, &mockSender{}, nil, nil)

	require.NoError(t, e.LoadConversation("c1"))
	assert.Equal(t, "stable-session", e.Active().SessionID)

	// A stored conversation without a session id gets a fresh one.
	require.NoError(t, e.LoadConversation("c2"))
	assert.NotEmpty(t, e.Active().SessionID)
}

func TestEngine_SessionIDStableAcrossTurns(t *testing.T) {
	sender := &mockSender{reply: &client.ChatReply{Response: "ok"}}
	e := New(createTestStore(t), sender, nil, nil)
	conv := e.StartNewConversation()
	want := conv.SessionID

	for i := 0; i < 3; i++ {
		_, err := e.SendMessage(context.Background(), "again")
		require.NoError(t, err)
		assert.Equal(t, want, sender.lastSess)
	}
}

func TestEngine_EndToEnd_FivePlusFive(t *testing.T) {
	st := createTestStore(t)
	require.NoError(t, st.Save(&store.Conversation{ID: "older", SessionID: "s"}))

	sender := &mockSender{reply: &client.ChatReply{Response: "10"}}
	e := New(st, sender, nil, nil)
	conv := e.StartNewConversation()

	_, err := e.SendMessage(context.Background(), "5+5")
	require.NoError(t, err)

	assert.Equal(t, "5+5", conv.Title)
	assert.True(t, conv.UpdatedAt.After(conv.CreatedAt), "updated_at strictly after created_at")

	convs, err := st.List()
	require.NoError(t, err)
	require.NotEmpty(t, convs)
	assert.Equal(t, conv.ID, convs[0].ID, "new conversation is first in the list")
}

func TestEngine_TogglePinAndStar(t *testing.T) {
	st := createTestStore(t)
	require.NoError(t, st.Save(&store.Conversation{ID: "c1", SessionID: "s"}))

	e := New(st, &mockSender{}, nil, nil)

	require.NoError(t, e.TogglePin("c1"))
	conv, err := st.Get("c1")
	require.NoError(t, err)
	assert.True(t, conv.Pinned)
	assert.True(t, conv.UpdatedAt.IsZero(), "pinning does not refresh updated_at")

	require.NoError(t, e.TogglePin("c1"))
	conv, err = st.Get("c1")
	require.NoError(t, err)
	assert.False(t, conv.Pinned)

	require.NoError(t, e.ToggleStar("c1"))
	conv, err = st.Get("c1")
	require.NoError(t, err)
	assert.True(t, conv.Starred)
}

func TestEngine_TogglePin_KeepsUnsentMessageInActiveBuffer(t *testing.T) {
	st := createTestStore(t)
	sender := &mockSender{reply: &client.ChatReply{Response: "ok"}}
	e := New(st, sender, nil, nil)
	conv := e.StartNewConversation()

	_, err := e.SendMessage(context.Background(), "first")
	require.NoError(t, err)

	// A failed turn leaves an unsent user message in the buffer only.
	sender.err = errors.New("down")
	_, err = e.SendMessage(context.Background(), "unsent")
	require.Error(t, err)
	require.Len(t, conv.Messages, 3)

	require.NoError(t, e.TogglePin(conv.ID))

	assert.Same(t, conv, e.Active(), "active buffer is not replaced")
	assert.Len(t, e.Active().Messages, 3, "retained message survives the toggle")
	assert.True(t, e.Active().Pinned)

	stored, err := st.Get(conv.ID)
	require.NoError(t, err)
	assert.True(t, stored.Pinned)
	assert.Len(t, stored.Messages, 2, "the unsent message is still not persisted")
}

func TestEngine_DeleteConversation_ClearsActive(t *testing.T) {
	st := createTestStore(t)
	sender := &mockSender{reply: &client.ChatReply{Response: "ok"}}
	e := New(st, sender, nil, nil)
	conv := e.StartNewConversation()

	_, err := e.SendMessage(context.Background(), "hello")
	require.NoError(t, err)

	require.NoError(t, e.DeleteConversation(conv.ID))
	assert.Nil(t, e.Active())

	_, err = st.Get(conv.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestEngine_ExportConversation(t *testing.T) {
	st := createTestStore(t)
	sender := &mockSender{reply: &client.ChatReply{Response: "the reply"}}
	e := New(st, sender, nil, nil)
	conv := e.StartNewConversation()
	_, err := e.SendMessage(context.Background(), "the question")
	require.NoError(t, err)

	jsonOut, err := e.ExportConversation(conv.ID, "json")
	require.NoError(t, err)
	assert.Contains(t, string(jsonOut), `"the question"`)

	textOut, err := e.ExportConversation(conv.ID, "text")
	require.NoError(t, err)
	assert.Contains(t, string(textOut), "User (")
	assert.Contains(t, string(textOut), "Assistant (")
	assert.Contains(t, string(textOut), "the reply")

	_, err = e.ExportConversation(conv.ID, "xml")
	assert.ErrorIs(t, err, ErrUnknownExportFormat)
}

func TestEngine_PublishesTurnEvents(t *testing.T) {
	notifier := NewNotifier(nil)
	defer notifier.Close()

	sender := &mockSender{reply: &client.ChatReply{Response: "pong"}}
	e := New(createTestStore(t), sender, notifier, nil)
	conv := e.StartNewConversation()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _ := notifier.Subscribe(ctx, conv.ID)

	_, err := e.SendMessage(ctx, "ping")
	require.NoError(t, err)

	userEvt := <-events
	assert.Equal(t, EventUserMessage, userEvt.Type)
	assert.Equal(t, "ping", userEvt.Message.Content)

	assistantEvt := <-events
	assert.Equal(t, EventAssistantMessage, assistantEvt.Type)
	assert.Equal(t, "pong", assistantEvt.Message.Content)
	assert.NotEmpty(t, assistantEvt.Nodes)
}

func TestEngine_PublishesFailureEvent(t *testing.T) {
	notifier := NewNotifier(nil)
	defer notifier.Close()

	sender := &mockSender{err: errors.New("down")}
	e := New(createTestStore(t), sender, notifier, nil)
	conv := e.StartNewConversation()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _ := notifier.Subscribe(ctx, conv.ID)

	_, err := e.SendMessage(ctx, "anyone there?")
	require.Error(t, err)

	userEvt := <-events
	assert.Equal(t, EventUserMessage, userEvt.Type)
	failEvt := <-events
	assert.Equal(t, EventTurnFailed, failEvt.Type)
	assert.Error(t, failEvt.Err)
}
