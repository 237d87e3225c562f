// ABOUTME: Login and registration calls against the gateway auth endpoints
// ABOUTME: Returns the compact access token; decoding it is the auth package's job

package client

import (
	"context"
	"net/http"
)

// Credentials is the gateway's answer to a successful login or registration.
type Credentials struct {
	AccessToken string `json:"access_token"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates with the gateway and returns an access token.
func (c *Client) Login(ctx context.Context, email, password string) (*Credentials, error) {
	var creds Credentials
	err := c.doJSON(ctx, "login", http.MethodPost, "/api/auth/login", loginRequest{
		Email:    email,
		Password: password,
	}, &creds)
	if err != nil {
		return nil, err
	}
	return &creds, nil
}

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register creates a new account and returns an access token.
func (c *Client) Register(ctx context.Context, email, username, password string) (*Credentials, error) {
	var creds Credentials
	err := c.doJSON(ctx, "register", http.MethodPost, "/api/auth/register", registerRequest{
		Email:    email,
		Username: username,
		Password: password,
	}, &creds)
	if err != nil {
		return nil, err
	}
	return &creds, nil
}
