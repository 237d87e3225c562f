// Package engine is the conversation core: it owns the active conversation,
// runs the send/receive turn lifecycle against the gateway, and keeps the
// session store consistent.
//
// # Turn lifecycle
//
//	Idle -> Sending -> AwaitingReply -> Idle   (success)
//	Idle -> Sending -> Idle                    (failure, user message kept)
//
// The user message is appended optimistically before the gateway call, so a
// failed turn never loses what the user typed. Failed turns are surfaced to
// the caller and never retried automatically.
//
// # Concurrency
//
// One turn per conversation at a time, enforced cooperatively: the caller
// disables its send input until SendMessage settles. The engine holds no
// internal lock. An in-flight turn is not cancelled when the active
// conversation changes; the eventual reply updates the conversation that
// initiated it, which may no longer be displayed.
//
// # Events
//
// State changes are published through a Notifier rather than by touching
// presentation objects, so any number of views can observe a conversation.
package engine
