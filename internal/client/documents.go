// ABOUTME: Health probing and document upload against the gateway
// ABOUTME: Upload is multipart; consumed opportunistically by the surrounding UI

package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

// CheckHealth probes gateway connectivity and returns its reported status.
func (c *Client) CheckHealth(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, "check_health", http.MethodGet, "/api/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// DocumentAck acknowledges an accepted upload.
type DocumentAck struct {
	DocumentID string `json:"document_id"`
	Message    string `json:"message"`
}

// UploadDocument sends a document to the gateway's knowledge base.
// Metadata fields (title, category, ...) are attached as form values.
func (c *Client) UploadDocument(ctx context.Context, filename string, content io.Reader, metadata map[string]string) (*DocumentAck, error) {
	const op = "upload_document"

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("%s: building form: %w", op, err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("%s: reading document: %w", op, err)
	}
	for key, value := range metadata {
		if err := w.WriteField(key, value); err != nil {
			return nil, fmt.Errorf("%s: building form: %w", op, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%s: building form: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/documents/upload", &buf)
	if err != nil {
		return nil, fmt.Errorf("%s: building request: %w", op, err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var ack DocumentAck
	if err := c.do(op, req, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}
