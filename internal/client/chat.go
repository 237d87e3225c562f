// ABOUTME: Chat turn, rating, and suggestion calls against the gateway
// ABOUTME: Maps the /api/chat wire shape onto the ChatReply the engine consumes

package client

import (
	"context"
	"net/http"
	"net/url"
)

// ChatReply is the gateway's answer to one turn. Confidence and Sources are
// optional metadata passed through to the conversation history unmodified.
type ChatReply struct {
	Response   string
	SessionID  string
	Confidence *float64
	Sources    []string
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

type chatResponse struct {
	Response      string   `json:"response"`
	SessionID     string   `json:"session_id"`
	Confidence    *float64 `json:"confidence_score,omitempty"`
	ContextChunks []struct {
		Title string `json:"title"`
	} `json:"context_chunks,omitempty"`
}

// SendMessage submits one user message for the given backend session and
// returns the assistant reply. Returns *NetworkError on transport failure or
// a non-success status.
func (c *Client) SendMessage(ctx context.Context, text, sessionID string) (*ChatReply, error) {
	var resp chatResponse
	err := c.doJSON(ctx, "send_message", http.MethodPost, "/api/chat", chatRequest{
		Message:   text,
		SessionID: sessionID,
	}, &resp)
	if err != nil {
		return nil, err
	}

	reply := &ChatReply{
		Response:   resp.Response,
		SessionID:  resp.SessionID,
		Confidence: resp.Confidence,
	}
	for _, chunk := range resp.ContextChunks {
		if chunk.Title != "" {
			reply.Sources = append(reply.Sources, chunk.Title)
		}
	}
	return reply, nil
}

type rateRequest struct {
	ConversationID string `json:"conversation_id"`
	Rating         int    `json:"rating"`
	Comment        string `json:"comment,omitempty"`
}

// RateResponse records user feedback for a previous reply.
func (c *Client) RateResponse(ctx context.Context, conversationID string, rating int, comment string) error {
	return c.doJSON(ctx, "rate_response", http.MethodPost, "/api/chat/rate", rateRequest{
		ConversationID: conversationID,
		Rating:         rating,
		Comment:        comment,
	}, nil)
}

type suggestionsResponse struct {
	Suggestions []string `json:"suggestions"`
}

// Suggestions returns follow-up question suggestions for a backend session.
func (c *Client) Suggestions(ctx context.Context, sessionID string) ([]string, error) {
	path := "/api/chat/suggestions"
	if sessionID != "" {
		path += "?session_id=" + url.QueryEscape(sessionID)
	}
	var resp suggestionsResponse
	if err := c.doJSON(ctx, "suggestions", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Suggestions, nil
}
