package client

import (
	"encoding/json"
	"errors"
	"fmt"

	"step-bridge/internal/rpc"
)

// ErrMissingToken is returned for authenticated calls without a token
var ErrMissingToken = errors.New("step challenge token is not set")

// StatusError is returned for non-2xx HTTP responses
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// RemoteError is a JSON-RPC error reported by the remote service
type RemoteError struct {
	Code    int64
	Message string
	Data    string
}

func (e *RemoteError) Error() string {
	switch {
	case e.Data != "" && e.Message != "":
		return fmt.Sprintf("%s: %s", e.Message, e.Data)
	case e.Data != "":
		return e.Data
	case e.Message != "":
		return e.Message
	default:
		return fmt.Sprintf("remote error %d", e.Code)
	}
}

// decodeRemoteError accepts both a JSON-RPC error object and the bare
// string some endpoints return.
func decodeRemoteError(raw json.RawMessage) error {
	var obj rpc.Error
	if err := json.Unmarshal(raw, &obj); err == nil {
		return &RemoteError{Code: obj.Code, Message: obj.Message, Data: rpc.DataString(&obj)}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return &RemoteError{Code: rpc.CodeServerError, Message: s}
	}
	return &RemoteError{Code: rpc.CodeServerError, Message: string(raw)}
}

// ToolCallParams is the body of a tools/call request
type ToolCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// StepEntry is one day of step data
type StepEntry struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// StepsResult is the get_steps result
type StepsResult struct {
	Steps []StepEntry `json:"steps"`
}

// AddStepsResult is the add_steps result
type AddStepsResult struct {
	Date         string `json:"date"`
	Count        int    `json:"count"`
	WasOverwrite bool   `json:"was_overwrite,omitempty"`
	OldCount     *int   `json:"old_count,omitempty"`
}

// User is the profile owner
type User struct {
	ID    int64  `json:"id,omitempty"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Team  string `json:"team,omitempty"`
}

// TokenInfo describes the token making the call
type TokenInfo struct {
	Name        string `json:"name,omitempty"`
	Permissions string `json:"permissions,omitempty"`
	Scopes      any    `json:"scopes,omitempty"`
	ExpiresAt   string `json:"expires_at,omitempty"`
}

// Challenge is the active challenge period
type Challenge struct {
	Name      string `json:"name"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// Profile is the get_user_profile result
type Profile struct {
	User            User       `json:"user"`
	Token           TokenInfo  `json:"token"`
	ActiveChallenge *Challenge `json:"active_challenge"`
}

// ToolInfo is a tool entry in the capability document
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Capabilities is the GET /mcp/capabilities document
type Capabilities struct {
	Capabilities struct {
		Tools []ToolInfo `json:"tools"`
	} `json:"capabilities"`
	Raw json.RawMessage `json:"-"`
}

// ToolNames returns the advertised tool names
func (c *Capabilities) ToolNames() []string {
	names := make([]string, 0, len(c.Capabilities.Tools))
	for _, t := range c.Capabilities.Tools {
		names = append(names, t.Name)
	}
	return names
}
