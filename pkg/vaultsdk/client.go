package vaultsdk

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// Client talks to the vaultgate service. It covers the unauthenticated
// endpoints and creates Sessions and AdminClients.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Login checks the password and returns a Session waiting at the first
// pending login gate (see Session.Stage).
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	var resp LoginResponse
	if err := c.do(ctx, http.MethodPost, "/v1/login", "", LoginRequest{Email: email, Password: password}, &resp); err != nil {
		return nil, err
	}
	return &Session{client: c, token: resp.Token, id: resp.SessionID, stage: resp.Stage}, nil
}

// ResumeSession wraps an existing session token.
func (c *Client) ResumeSession(token string) *Session {
	return &Session{client: c, token: token}
}

// Admin returns a client for the operator endpoints.
func (c *Client) Admin(token string) *AdminClient {
	return &AdminClient{client: c, token: token}
}

// GetLiveness checks if the service is alive.
func (c *Client) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	var health HealthResponse
	if err := c.do(ctx, http.MethodGet, "/livez", "", nil, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// GetReadiness checks if the service is ready.
func (c *Client) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	var health HealthResponse
	if err := c.do(ctx, http.MethodGet, "/readyz", "", nil, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// GetJWKS fetches the public keys that verify withdrawal grants.
func (c *Client) GetJWKS(ctx context.Context) (*JWKSResponse, error) {
	var jwks JWKSResponse
	if err := c.do(ctx, http.MethodGet, "/.well-known/jwks.json", "", nil, &jwks); err != nil {
		return nil, err
	}
	return &jwks, nil
}
