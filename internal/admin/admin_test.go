package admin

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAdminAPI mimics the session flow: /auth/<token> sets a cookie, the
// other endpoints require it and writes require the CSRF header.
func fakeAdminAPI(t *testing.T) (*httptest.Server, *map[string]any) {
	t.Helper()
	var created map[string]any

	loggedIn := func(r *http.Request) bool {
		c, err := r.Cookie("session")
		return err == nil && c.Value == "admin"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/send-magic-link", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["email"] != "admin@example.com" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		io.WriteString(w, `{"ok":true}`)
	})
	mux.HandleFunc("/auth/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/magic123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "admin", Path: "/"})
		io.WriteString(w, "welcome")
	})
	mux.HandleFunc("/api/csrf-token", func(w http.ResponseWriter, r *http.Request) {
		if !loggedIn(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		io.WriteString(w, `{"token":"csrf-1"}`)
	})
	mux.HandleFunc("/api/admin/users", func(w http.ResponseWriter, r *http.Request) {
		if !loggedIn(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		io.WriteString(w, `{"users":[{"id":7,"name":"Ada","email":"ada@example.com"}]}`)
	})
	mux.HandleFunc("/api/admin/mcp-tokens", func(w http.ResponseWriter, r *http.Request) {
		if !loggedIn(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.Method {
		case http.MethodGet:
			io.WriteString(w, `[{"id":1,"name":"laptop","token":"mcp_abcdefghijklmnopqrstuvwxyz","permissions":"read_only","scopes":"steps:read"}]`)
		case http.MethodPost:
			if r.Header.Get("X-CSRF-Token") != "csrf-1" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&created))
			io.WriteString(w, `{"token":{"name":"desk","token":"mcp_new","permissions":"read_write","scopes":"steps:read,steps:write,profile:read","expires_at":"2025-09-01"}}`)
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &created
}

func TestSessionFlow(t *testing.T) {
	srv, created := fakeAdminAPI(t)
	ctx := context.Background()

	c, err := New(srv.URL, 5*time.Second)
	require.NoError(t, err)

	_, err = c.ListUsers(ctx)
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	require.NoError(t, c.SendMagicLink(ctx, "admin@example.com"))
	require.NoError(t, c.Authenticate(ctx, srv.URL+"/auth/magic123?redirect=/admin"))
	assert.True(t, c.Authenticated())

	users, err := c.ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []User{{ID: 7, Name: "Ada", Email: "ada@example.com"}}, users)

	tokens, err := c.ListTokens(ctx)
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, "mcp_abcdefghijklmnop...", tokens[0].Masked())

	tok, err := c.CreateToken(ctx, CreateTokenRequest{UserID: 7, Name: "desk"})
	require.NoError(t, err)
	assert.Equal(t, "mcp_new", tok.Token)

	assert.Equal(t, map[string]any{
		"user_id":      7.0,
		"name":         "desk",
		"permissions":  DefaultPermissions,
		"scopes":       DefaultScopes,
		"expires_days": 30.0,
	}, *created)
}

func TestAuthenticateRejectsBadLink(t *testing.T) {
	srv, _ := fakeAdminAPI(t)
	c, err := New(srv.URL, 5*time.Second)
	require.NoError(t, err)

	err = c.Authenticate(context.Background(), srv.URL+"/auth/wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 401")
	assert.False(t, c.Authenticated())
}

func TestExtractLinkToken(t *testing.T) {
	tests := map[string]string{
		"https://step-app-4x-yhw.fly.dev/auth/abc123":         "abc123",
		"https://step-app-4x-yhw.fly.dev/auth/abc123?next=/x": "abc123",
		"  abc123  ":                                          "abc123",
	}
	for in, want := range tests {
		got, err := ExtractLinkToken(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ExtractLinkToken("https://example.com/login/abc")
	assert.Error(t, err)
	_, err = ExtractLinkToken("https://example.com/auth/")
	assert.Error(t, err)
}
