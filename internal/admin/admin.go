// Package admin drives the Step Challenge admin API used to mint MCP tokens.
// Sessions are cookie based: a magic link logs the browser-less client in and
// a CSRF token guards writes.
package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"golang.org/x/net/publicsuffix"
)

const (
	DefaultPermissions = "read_write"
	DefaultScopes      = "steps:read,steps:write,profile:read"
	DefaultExpiryDays  = 30
)

// ErrNotAuthenticated is returned by admin calls made before Authenticate.
var ErrNotAuthenticated = errors.New("not authenticated as admin")

// Client is an admin session.
type Client struct {
	baseURL    string
	httpClient *http.Client
	csrfToken  string
}

// New creates a session against baseURL with its own cookie jar.
func New(baseURL string, timeout time.Duration) (*Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	httpClient := cleanhttp.DefaultClient()
	httpClient.Jar = jar
	if timeout > 0 {
		httpClient.Timeout = timeout
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}, nil
}

// SendMagicLink asks the service to email a login link.
func (c *Client) SendMagicLink(ctx context.Context, email string) error {
	_, err := c.do(ctx, http.MethodPost, "/send-magic-link", map[string]string{"email": email}, nil)
	return err
}

// ExtractLinkToken returns the token part of a magic link
// ("https://host/auth/<token>?x=y"). A bare token is returned unchanged.
func ExtractLinkToken(link string) (string, error) {
	link = strings.TrimSpace(link)
	if i := strings.LastIndex(link, "/auth/"); i >= 0 {
		link = link[i+len("/auth/"):]
	} else if strings.Contains(link, "/") {
		return "", fmt.Errorf("invalid magic link format")
	}
	if i := strings.IndexAny(link, "?#"); i >= 0 {
		link = link[:i]
	}
	if link == "" {
		return "", fmt.Errorf("invalid magic link format")
	}
	return link, nil
}

// Authenticate follows the magic link and fetches the CSRF token for the
// resulting session.
func (c *Client) Authenticate(ctx context.Context, link string) error {
	token, err := ExtractLinkToken(link)
	if err != nil {
		return err
	}

	if _, err := c.do(ctx, http.MethodGet, "/auth/"+token, nil, nil); err != nil {
		return fmt.Errorf("magic link rejected: %w", err)
	}

	var csrf struct {
		Token string `json:"token"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/api/csrf-token", nil, &csrf); err != nil {
		return fmt.Errorf("failed to get CSRF token: %w", err)
	}
	if csrf.Token == "" {
		return errors.New("failed to get CSRF token: empty response")
	}
	c.csrfToken = csrf.Token
	return nil
}

// Authenticated reports whether Authenticate succeeded.
func (c *Client) Authenticated() bool {
	return c.csrfToken != ""
}

// User is an account known to the admin API
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Token is an MCP token as listed or created by the admin API
type Token struct {
	ID          int64  `json:"id,omitempty"`
	Name        string `json:"name"`
	Token       string `json:"token,omitempty"`
	UserName    string `json:"user_name,omitempty"`
	UserEmail   string `json:"user_email,omitempty"`
	Permissions string `json:"permissions"`
	Scopes      string `json:"scopes"`
	ExpiresAt   string `json:"expires_at,omitempty"`
}

// Masked returns the first 20 characters of the token value.
func (t Token) Masked() string {
	if len(t.Token) <= 20 {
		return t.Token
	}
	return t.Token[:20] + "..."
}

// ListUsers returns every user.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	if !c.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	var out struct {
		Users []User `json:"users"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/api/admin/users", nil, &out); err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	return out.Users, nil
}

// ListTokens returns every MCP token. The endpoint answers with either a
// bare array or {"tokens": [...]}.
func (c *Client) ListTokens(ctx context.Context) ([]Token, error) {
	if !c.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	body, err := c.do(ctx, http.MethodGet, "/api/admin/mcp-tokens", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}

	body = bytes.TrimSpace(body)
	var tokens []Token
	if len(body) > 0 && body[0] == '[' {
		if err := json.Unmarshal(body, &tokens); err != nil {
			return nil, fmt.Errorf("failed to decode tokens: %w", err)
		}
		return tokens, nil
	}

	var wrapped struct {
		Tokens []Token `json:"tokens"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to decode tokens: %w", err)
	}
	return wrapped.Tokens, nil
}

// CreateTokenRequest is the body of a token creation. Zero fields take the
// package defaults.
type CreateTokenRequest struct {
	UserID      int64  `json:"user_id"`
	Name        string `json:"name"`
	Permissions string `json:"permissions"`
	Scopes      string `json:"scopes"`
	ExpiresDays int    `json:"expires_days"`
}

// CreateToken mints a token for a user.
func (c *Client) CreateToken(ctx context.Context, req CreateTokenRequest) (*Token, error) {
	if !c.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	if req.Name == "" {
		return nil, errors.New("token name is required")
	}
	if req.Permissions == "" {
		req.Permissions = DefaultPermissions
	}
	if req.Scopes == "" {
		req.Scopes = DefaultScopes
	}
	if req.ExpiresDays <= 0 {
		req.ExpiresDays = DefaultExpiryDays
	}

	var out struct {
		Token Token `json:"token"`
	}
	if _, err := c.do(ctx, http.MethodPost, "/api/admin/mcp-tokens", req, &out); err != nil {
		return nil, fmt.Errorf("failed to create token: %w", err)
	}
	return &out.Token, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.csrfToken != "" && method != http.MethodGet {
		req.Header.Set("X-CSRF-Token", c.csrfToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return data, nil
}
