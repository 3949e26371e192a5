package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-cleanhttp"

	"step-bridge/internal/rpc"
)

const (
	DefaultBaseURL      = "https://step-app-4x-yhw.fly.dev"
	DefaultEndpointPath = "/mcp"
	DefaultTimeout      = 30 * time.Second
	DefaultUserAgent    = "step-bridge/1.0"

	capabilitiesPath = "/mcp/capabilities"
	maxErrorBody     = 4096
)

// Client talks JSON-RPC 2.0 over HTTP to the Step Challenge service
type Client struct {
	baseURL       string
	endpointPath  string
	token         string
	tokenInParams bool
	timeout       time.Duration
	userAgent     string

	httpOnce   sync.Once
	httpClient *http.Client
}

// Option is a function that configures the client
type Option func(*Client)

// WithBaseURL sets a custom base URL
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithEndpointPath sets the JSON-RPC path, "/mcp" or "/mcp/rpc" in the
// deployments seen so far
func WithEndpointPath(path string) Option {
	return func(c *Client) {
		if path != "" && !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		c.endpointPath = path
	}
}

// WithTokenInParams also sends the token as params.token, which the
// "/mcp/rpc" endpoint expects
func WithTokenInParams(on bool) Option {
	return func(c *Client) {
		c.tokenInParams = on
	}
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithHTTPClient sets a custom HTTP client. It is used as given: WithTimeout
// does not change it.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithUserAgent overrides the User-Agent header
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// New creates a new API client
func New(token string, opts ...Option) *Client {
	c := &Client{
		baseURL:      DefaultBaseURL,
		endpointPath: DefaultEndpointPath,
		token:        token,
		timeout:      DefaultTimeout,
		userAgent:    DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.endpointPath == "" {
		c.endpointPath = DefaultEndpointPath
	}
	return c
}

// BaseURL returns the remote host
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Endpoint returns the JSON-RPC URL
func (c *Client) Endpoint() string {
	return c.baseURL + c.endpointPath
}

// HasToken reports whether a bearer token is configured
func (c *Client) HasToken() bool {
	return c.token != ""
}

// httpc returns the shared client, created on first use.
func (c *Client) httpc() *http.Client {
	c.httpOnce.Do(func() {
		if c.httpClient != nil {
			return
		}
		c.httpClient = cleanhttp.DefaultPooledClient()
		if c.timeout > 0 {
			c.httpClient.Timeout = c.timeout
		}
	})
	return c.httpClient
}

// Call sends one JSON-RPC request and returns the raw result member.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if c.token == "" {
		return nil, ErrMissingToken
	}

	rawParams, err := c.buildParams(params)
	if err != nil {
		return nil, err
	}

	requestID := uuid.New().String()
	id, _ := json.Marshal(requestID)
	body, err := json.Marshal(rpc.Request{
		JSONRPC: rpc.Version,
		ID:      id,
		Method:  method,
		Params:  rawParams,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("X-Request-ID", requestID)

	respBody, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(envelope.Error) > 0 && string(envelope.Error) != "null" {
		return nil, decodeRemoteError(envelope.Error)
	}
	if len(envelope.Result) == 0 {
		return json.RawMessage("null"), nil
	}
	return envelope.Result, nil
}

// buildParams marshals params to an object and injects the token when the
// endpoint expects it in the body.
func (c *Client) buildParams(params any) (json.RawMessage, error) {
	var raw json.RawMessage
	switch p := params.(type) {
	case nil:
		raw = json.RawMessage("{}")
	case json.RawMessage:
		raw = p
		if len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null" {
			raw = json.RawMessage("{}")
		}
	default:
		b, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal params: %w", err)
		}
		raw = b
	}

	if !c.tokenInParams {
		return raw, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("params must be an object to carry the token: %w", err)
	}
	if obj == nil {
		obj = map[string]json.RawMessage{}
	}
	token, _ := json.Marshal(c.token)
	obj["token"] = token
	return json.Marshal(obj)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpc().Do(req)
	if err != nil {
		return nil, fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(respBody) > maxErrorBody {
			respBody = respBody[:maxErrorBody]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}
	return respBody, nil
}

// Capabilities fetches the unauthenticated capability document
func (c *Client) Capabilities(ctx context.Context) (*Capabilities, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+capabilitiesPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)

	body, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}

	var caps Capabilities
	if err := json.Unmarshal(body, &caps); err != nil {
		return nil, fmt.Errorf("failed to decode capabilities: %w", err)
	}
	caps.Raw = body
	return &caps, nil
}

// AddSteps records a step count for date (YYYY-MM-DD)
func (c *Client) AddSteps(ctx context.Context, date string, count int, allowOverwrite bool) (*AddStepsResult, error) {
	var out AddStepsResult
	err := c.callInto(ctx, "add_steps", map[string]any{
		"date":            date,
		"count":           count,
		"allow_overwrite": allowOverwrite,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSteps returns step history, optionally bounded by start and end dates
func (c *Client) GetSteps(ctx context.Context, start, end string) (*StepsResult, error) {
	params := map[string]any{}
	if start != "" {
		params["start_date"] = start
	}
	if end != "" {
		params["end_date"] = end
	}

	var out StepsResult
	if err := c.callInto(ctx, "get_steps", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetUserProfile returns the user, token and active challenge information
func (c *Client) GetUserProfile(ctx context.Context) (*Profile, error) {
	var out Profile
	if err := c.callInto(ctx, "get_user_profile", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CallTool invokes an MCP tool on the remote side
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (json.RawMessage, error) {
	if args == nil {
		args = map[string]any{}
	}
	return c.Call(ctx, "tools/call", ToolCallParams{Name: name, Arguments: args})
}

// ListTools fetches the remote tools/list result
func (c *Client) ListTools(ctx context.Context) (json.RawMessage, error) {
	return c.Call(ctx, "tools/list", nil)
}

func (c *Client) callInto(ctx context.Context, method string, params any, out any) error {
	raw, err := c.Call(ctx, method, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return nil
}
