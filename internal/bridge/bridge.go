// Package bridge relays line-delimited JSON-RPC 2.0 on a pair of streams to
// the remote Step Challenge service.
package bridge

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"step-bridge/internal/logging"
	"step-bridge/internal/rpc"
	"step-bridge/internal/tool"
)

const (
	DefaultServerName      = "Step Challenge MCP Bridge"
	DefaultServerVersion   = "1.0.0"
	DefaultProtocolVersion = "2025-03-26"
	DefaultCallTimeout     = 30 * time.Second

	notificationPrefix = "notifications/"
)

// Remote is the outbound side of the bridge.
type Remote interface {
	Call(ctx context.Context, method string, params any) (json.RawMessage, error)
}

// Config configures a Bridge.
type Config struct {
	Remote          Remote
	Tools           *tool.Registry
	Logger          *logging.Logger
	ServerName      string
	ServerVersion   string
	ProtocolVersion string
	// RemoteTools proxies tools/list instead of answering from Tools.
	RemoteTools bool
	CallTimeout time.Duration
	Now         func() time.Time
}

// Bridge answers one request line at a time. A response is written and
// flushed before the next line is read.
type Bridge struct {
	in       *bufio.Reader
	out      *bufio.Writer
	cfg      Config
	logger   *logging.Logger
	handlers map[Method]handler
}

// New creates a bridge reading requests from in and writing responses to out.
func New(in io.Reader, out io.Writer, cfg Config) *Bridge {
	if cfg.ServerName == "" {
		cfg.ServerName = DefaultServerName
	}
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = DefaultServerVersion
	}
	if cfg.ProtocolVersion == "" {
		cfg.ProtocolVersion = DefaultProtocolVersion
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.Tools == nil {
		cfg.Tools = tool.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}

	b := &Bridge{
		in:     bufio.NewReader(in),
		out:    bufio.NewWriter(out),
		cfg:    cfg,
		logger: cfg.Logger.WithComponent("bridge"),
	}
	b.handlers = b.handlerTable()
	return b
}

type readResult struct {
	line []byte
	err  error
}

// Serve runs until in reaches EOF, which returns nil, or ctx is cancelled,
// which returns ctx.Err() without writing anything further.
func (b *Bridge) Serve(ctx context.Context) error {
	b.logger.Info("bridge started", "protocol", b.cfg.ProtocolVersion)

	lines := make(chan readResult, 1)
	for {
		go func() {
			line, err := b.in.ReadBytes('\n')
			lines <- readResult{line: line, err: err}
		}()

		var rr readResult
		select {
		case <-ctx.Done():
			b.logger.Info("bridge stopped", "reason", ctx.Err().Error())
			return ctx.Err()
		case rr = <-lines:
		}

		if len(bytes.TrimSpace(rr.line)) > 0 {
			if err := b.handleLine(ctx, rr.line); err != nil {
				return err
			}
		}

		if rr.err != nil {
			if errors.Is(rr.err, io.EOF) {
				b.logger.Info("bridge input closed")
				return nil
			}
			return fmt.Errorf("failed to read request: %w", rr.err)
		}
	}
}

// handleLine answers a single input line. Only write failures and
// cancellation are returned; everything else becomes an error response.
func (b *Bridge) handleLine(ctx context.Context, line []byte) error {
	line = bytes.TrimSpace(line)
	started := time.Now()

	if !json.Valid(line) {
		b.logger.Warn("invalid JSON on input", "bytes", len(line))
		return b.write(rpc.NewFailure(rpc.NullID, rpc.ParseError("invalid JSON")))
	}

	var req rpc.Request
	if err := json.Unmarshal(line, &req); err != nil {
		return b.write(rpc.NewFailure(rpc.NullID, rpc.InvalidRequest(err.Error())))
	}
	// MCP notifications are never answered. Any other request without an
	// id still runs and is answered with a null id.
	if req.IsNotification() && strings.HasPrefix(req.Method, notificationPrefix) {
		b.logger.Debug("notification ignored", "method", req.Method)
		return nil
	}
	if req.JSONRPC != "" && req.JSONRPC != rpc.Version {
		return b.write(rpc.NewFailure(req.ID, rpc.InvalidRequest("jsonrpc must be \"2.0\"")))
	}
	if req.Method == "" {
		return b.write(rpc.NewFailure(req.ID, rpc.InvalidRequest("method is required")))
	}

	h, ok := b.handlers[ParseMethod(req.Method)]
	if !ok {
		b.logger.Warn("method not found", "method", req.Method)
		return b.write(rpc.NewFailure(req.ID, rpc.MethodNotFound(req.Method)))
	}

	result, rpcErr := h(ctx, req.Params)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var resp rpc.Response
	if rpcErr != nil {
		b.logger.Warn("request failed",
			"method", req.Method,
			"code", rpcErr.Code,
			"detail", rpc.DataString(rpcErr),
			"duration_ms", time.Since(started).Milliseconds(),
		)
		resp = rpc.NewFailure(req.ID, rpcErr)
	} else {
		var err error
		resp, err = rpc.NewSuccess(req.ID, result)
		if err != nil {
			resp = rpc.NewFailure(req.ID, rpc.ServerError(err.Error()))
		}
		b.logger.Debug("request handled",
			"method", req.Method,
			"duration_ms", time.Since(started).Milliseconds(),
		)
	}
	return b.write(resp)
}

func (b *Bridge) write(resp rpc.Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}
	if _, err := b.out.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write response: %w", err)
	}
	if err := b.out.Flush(); err != nil {
		return fmt.Errorf("failed to flush response: %w", err)
	}
	return nil
}
