// ABOUTME: Tests for the gateway HTTP client
// ABOUTME: Uses httptest servers to verify wire shapes and error mapping

package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_SendMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/chat", r.URL.Path)

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "what is 5+5", req["message"])
		assert.Equal(t, "sess-1", req["session_id"])

		json.NewEncoder(w).Encode(map[string]any{
			"response":         "10",
			"session_id":       "sess-1",
			"confidence_score": 0.9,
			"context_chunks": []map[string]any{
				{"title": "math.pdf", "snippet": "..."},
			},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	reply, err := c.SendMessage(context.Background(), "what is 5+5", "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "10", reply.Response)
	assert.Equal(t, "sess-1", reply.SessionID)
	require.NotNil(t, reply.Confidence)
	assert.InDelta(t, 0.9, *reply.Confidence, 0.001)
	assert.Equal(t, []string{"math.pdf"}, reply.Sources)
}

func TestClient_SendMessage_GatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"error": "Chat service temporarily unavailable"})
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	_, err := c.SendMessage(context.Background(), "hi", "")

	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, http.StatusServiceUnavailable, netErr.StatusCode)
	assert.Contains(t, netErr.Error(), "temporarily unavailable")
}

func TestClient_SendMessage_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // refuse connections

	c := New(srv.URL, nil)
	_, err := c.SendMessage(context.Background(), "hi", "")

	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Zero(t, netErr.StatusCode)
}

func TestClient_Login(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/login", r.URL.Path)
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ada@example.com", req["email"])
		json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-123"})
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	creds, err := c.Login(context.Background(), "ada@example.com", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "tok-123", creds.AccessToken)
}

func TestClient_Register(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/register", r.URL.Path)
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ada", req["username"])
		json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-456"})
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	creds, err := c.Register(context.Background(), "ada@example.com", "ada", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "tok-456", creds.AccessToken)
}

func TestClient_BearerTokenAttached(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	c.SetToken("tok-789")
	status, err := c.CheckHealth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", status)
	assert.Equal(t, "Bearer tok-789", gotAuth)
}

func TestClient_UploadDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/documents/upload", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "notes.txt", header.Filename)
		assert.Equal(t, "syllabus", r.FormValue("category"))

		json.NewEncoder(w).Encode(map[string]string{
			"document_id": "doc-1",
			"message":     "uploaded",
		})
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	ack, err := c.UploadDocument(context.Background(), "notes.txt",
		strings.NewReader("hello"), map[string]string{"category": "syllabus"})
	require.NoError(t, err)
	assert.Equal(t, "doc-1", ack.DocumentID)
}

func TestClient_RateAndSuggestions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/chat/rate":
			var req map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, float64(4), req["rating"])
			w.WriteHeader(http.StatusOK)
		case "/api/chat/suggestions":
			assert.Equal(t, "sess-1", r.URL.Query().Get("session_id"))
			json.NewEncoder(w).Encode(map[string]any{
				"suggestions": []string{"What subjects are there?"},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	require.NoError(t, c.RateResponse(context.Background(), "conv-1", 4, "helpful"))

	sugg, err := c.Suggestions(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"What subjects are there?"}, sugg)
}

func TestNetworkError_Unwrap(t *testing.T) {
	inner := errors.New("boom")
	err := &NetworkError{Op: "send_message", Err: inner}
	assert.ErrorIs(t, err, inner)
}
