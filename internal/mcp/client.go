package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"

	"step-bridge/internal/rpc"
)

const maxStderr = 16 << 10

// Client is an MCP client driving a server process over its stdio.
type Client struct {
	name   string
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	stderr *tailBuffer

	mu        sync.Mutex
	requestID atomic.Int64

	serverInfo ServerInfo
}

// Start launches the server described by cfg. Its environment is the
// current one plus cfg.Env.
func Start(name string, cfg ServerConfig) (*Client, error) {
	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Env = os.Environ()
	for k, v := range cfg.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	return start(name, cmd)
}

func start(name string, cmd *exec.Cmd) (*Client, error) {
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdout pipe: %w", err)
	}

	stderr := &tailBuffer{max: maxStderr}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start MCP server: %w", err)
	}

	return &Client{
		name:   name,
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdout),
		stderr: stderr,
	}, nil
}

// Name returns the client name
func (c *Client) Name() string {
	return c.name
}

// Stderr returns the tail of what the server wrote to its stderr.
func (c *Client) Stderr() string {
	return c.stderr.String()
}

// Initialize performs the MCP initialization handshake
func (c *Client) Initialize(ctx context.Context, clientName, clientVersion string) (*InitializeResult, error) {
	params := InitializeParams{
		ProtocolVersion: ProtocolVersion,
		Capabilities: ClientCaps{
			Tools: &ToolsCaps{},
		},
		ClientInfo: ClientInfo{
			Name:    clientName,
			Version: clientVersion,
		},
	}

	var result InitializeResult
	if err := c.call(ctx, "initialize", params, &result); err != nil {
		return nil, fmt.Errorf("initialize failed: %w", err)
	}
	c.serverInfo = result.ServerInfo

	if err := c.notify("notifications/initialized", nil); err != nil {
		return nil, fmt.Errorf("initialized notification failed: %w", err)
	}
	return &result, nil
}

// ListTools retrieves available tools from the MCP server
func (c *Client) ListTools(ctx context.Context) ([]ToolDef, error) {
	var result ListToolsResult
	if err := c.call(ctx, "tools/list", nil, &result); err != nil {
		return nil, fmt.Errorf("tools/list failed: %w", err)
	}
	return result.Tools, nil
}

// CallTool invokes a tool on the MCP server
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*CallToolResult, error) {
	if args == nil {
		args = map[string]any{}
	}

	var result CallToolResult
	if err := c.call(ctx, "tools/call", CallToolParams{Name: name, Arguments: args}, &result); err != nil {
		return nil, fmt.Errorf("tools/call failed: %w", err)
	}
	return &result, nil
}

// Ping checks the server is still answering.
func (c *Client) Ping(ctx context.Context) error {
	return c.call(ctx, "ping", nil, nil)
}

// ServerInfo returns information about the connected server
func (c *Client) ServerInfo() ServerInfo {
	return c.serverInfo
}

// Close closes the server's stdin and waits for it to exit.
func (c *Client) Close() error {
	c.stdin.Close()
	return c.cmd.Wait()
}

// Kill stops the server without waiting for a clean exit.
func (c *Client) Kill() {
	if c.cmd.Process != nil {
		c.cmd.Process.Kill()
	}
}

// RPCError is an error response from the server.
type RPCError struct {
	Code    int64
	Message string
	Data    string
}

func (e *RPCError) Error() string {
	if e.Data != "" {
		return fmt.Sprintf("RPC error %d: %s (%s)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

func (c *Client) call(ctx context.Context, method string, params any, result any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := strconv.FormatInt(c.requestID.Add(1), 10)

	req := struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      json.RawMessage `json:"id"`
		Method  string          `json:"method"`
		Params  any             `json:"params,omitempty"`
	}{
		JSONRPC: rpc.Version,
		ID:      json.RawMessage(id),
		Method:  method,
		Params:  params,
	}

	reqBytes, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	if _, err := c.stdin.Write(append(reqBytes, '\n')); err != nil {
		return fmt.Errorf("failed to write request: %w", err)
	}

	resp, err := c.readResponse(ctx, id)
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return &RPCError{Code: resp.Error.Code, Message: resp.Error.Message, Data: rpc.DataString(resp.Error)}
	}
	if result != nil && len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("failed to unmarshal result: %w", err)
		}
	}
	return nil
}

// readResponse skips server notifications until the response carrying id
// arrives. If ctx ends first the server is killed, since its stdout can no
// longer be read in step.
func (c *Client) readResponse(ctx context.Context, id string) (*rpc.Envelope, error) {
	type readResult struct {
		resp *rpc.Envelope
		err  error
	}
	done := make(chan readResult, 1)

	go func() {
		for {
			line, err := c.stdout.ReadBytes('\n')
			if len(bytes.TrimSpace(line)) > 0 {
				var resp rpc.Envelope
				if jsonErr := json.Unmarshal(line, &resp); jsonErr != nil {
					done <- readResult{err: fmt.Errorf("failed to unmarshal response: %w", jsonErr)}
					return
				}
				if string(bytes.TrimSpace(resp.ID)) == id {
					done <- readResult{resp: &resp}
					return
				}
			}
			if err != nil {
				done <- readResult{err: fmt.Errorf("failed to read response: %w", err)}
				return
			}
		}
	}()

	select {
	case r := <-done:
		return r.resp, r.err
	case <-ctx.Done():
		c.Kill()
		return nil, ctx.Err()
	}
}

func (c *Client) notify(method string, params any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Notifications don't have an ID
	req := struct {
		JSONRPC string `json:"jsonrpc"`
		Method  string `json:"method"`
		Params  any    `json:"params,omitempty"`
	}{
		JSONRPC: rpc.Version,
		Method:  method,
		Params:  params,
	}

	reqBytes, err := json.Marshal(req)
	if err != nil {
		return err
	}

	_, err = c.stdin.Write(append(reqBytes, '\n'))
	return err
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.max {
		t.buf = t.buf[len(t.buf)-t.max:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
