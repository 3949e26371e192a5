package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	"step-bridge/internal/rpc"
	"step-bridge/internal/steps"
	"step-bridge/internal/tool"
)

// handler has one uniform shape: params in, result or error out.
type handler func(ctx context.Context, params json.RawMessage) (any, *rpc.Error)

func (b *Bridge) handlerTable() map[Method]handler {
	return map[Method]handler{
		MethodInitialize:     b.initialize,
		MethodPing:           b.ping,
		MethodToolsList:      b.toolsList,
		MethodToolsCall:      b.toolsCall,
		MethodResourcesList:  b.resourcesList,
		MethodResourcesRead:  b.resourcesRead,
		MethodAddSteps:       b.forward(MethodAddSteps),
		MethodGetSteps:       b.forward(MethodGetSteps),
		MethodGetUserProfile: b.forward(MethodGetUserProfile),
	}
}

type initializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      serverInfo     `json:"serverInfo"`
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

func (b *Bridge) initialize(_ context.Context, _ json.RawMessage) (any, *rpc.Error) {
	return initializeResult{
		ProtocolVersion: b.cfg.ProtocolVersion,
		Capabilities: map[string]any{
			"tools":     map[string]any{"listChanged": false},
			"resources": map[string]any{"subscribe": false, "listChanged": false},
		},
		ServerInfo: serverInfo{Name: b.cfg.ServerName, Version: b.cfg.ServerVersion},
	}, nil
}

func (b *Bridge) ping(_ context.Context, _ json.RawMessage) (any, *rpc.Error) {
	return struct{}{}, nil
}

func (b *Bridge) toolsList(ctx context.Context, _ json.RawMessage) (any, *rpc.Error) {
	if b.cfg.RemoteTools {
		return b.call(ctx, MethodToolsList.String(), nil)
	}
	return map[string]any{"tools": b.cfg.Tools.List()}, nil
}

type toolCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

func (b *Bridge) toolsCall(ctx context.Context, params json.RawMessage) (any, *rpc.Error) {
	var p toolCallParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.Name == "" {
		return nil, rpc.ServerError("Tool name is required")
	}
	if p.Arguments == nil {
		p.Arguments = map[string]any{}
	}
	return b.call(ctx, MethodToolsCall.String(), p)
}

func (b *Bridge) resourcesList(_ context.Context, _ json.RawMessage) (any, *rpc.Error) {
	return map[string]any{"resources": tool.Resources()}, nil
}

type resourceContent struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
}

func (b *Bridge) resourcesRead(ctx context.Context, params json.RawMessage) (any, *rpc.Error) {
	var p struct {
		URI string `json:"uri"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	var (
		raw    json.RawMessage
		rpcErr *rpc.Error
	)
	switch p.URI {
	case tool.ProfileURI:
		raw, rpcErr = b.call(ctx, tool.GetUserProfile, nil)
	case tool.RecentStepsURI:
		start, end := steps.SinceRange(b.cfg.Now(), steps.DefaultDays)
		raw, rpcErr = b.call(ctx, tool.GetSteps, map[string]string{"start_date": start, "end_date": end})
	case "":
		return nil, rpc.InvalidParams("Missing required parameter: uri")
	default:
		return nil, rpc.InvalidParams("Unknown resource: " + p.URI)
	}
	if rpcErr != nil {
		return nil, rpcErr
	}

	var text bytes.Buffer
	if err := json.Indent(&text, raw, "", "  "); err != nil {
		text.Reset()
		text.Write(raw)
	}
	return map[string]any{
		"contents": []resourceContent{{URI: p.URI, MimeType: "application/json", Text: text.String()}},
	}, nil
}

// forward relays a flat method with its params untouched.
func (b *Bridge) forward(m Method) handler {
	return func(ctx context.Context, params json.RawMessage) (any, *rpc.Error) {
		if err := requireObject(params); err != nil {
			return nil, err
		}
		return b.call(ctx, m.String(), params)
	}
}

// call performs one outbound request under the per-call timeout and maps
// every failure to a server error carrying the upstream detail.
func (b *Bridge) call(ctx context.Context, method string, params any) (json.RawMessage, *rpc.Error) {
	if b.cfg.Remote == nil {
		return nil, rpc.ServerError("no remote configured")
	}

	ctx, cancel := context.WithTimeout(ctx, b.cfg.CallTimeout)
	defer cancel()

	result, err := b.cfg.Remote.Call(ctx, method, params)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, rpc.ServerError("remote call timed out: " + err.Error())
		}
		return nil, rpc.ServerError(err.Error())
	}
	return result, nil
}

func requireObject(params json.RawMessage) *rpc.Error {
	trimmed := bytes.TrimSpace(params)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || trimmed[0] == '{' {
		return nil
	}
	return rpc.InvalidParams("params must be an object")
}

func decodeParams(params json.RawMessage, out any) *rpc.Error {
	if err := requireObject(params); err != nil {
		return err
	}
	trimmed := bytes.TrimSpace(params)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return rpc.InvalidParams(err.Error())
	}
	return nil
}
