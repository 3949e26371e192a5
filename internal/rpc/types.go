// Package rpc holds the JSON-RPC 2.0 envelope shared by the bridge and the
// remote client.
package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/sourcegraph/jsonrpc2"
)

const Version = "2.0"

// CodeServerError is the implementation-defined code used for any
// downstream failure.
const CodeServerError = -32000

// NullID is the id used when the request id cannot be recovered.
var NullID = json.RawMessage("null")

// Error is a JSON-RPC error object.
type Error = jsonrpc2.Error

// Request is an incoming or outgoing JSON-RPC request. ID is kept raw so
// numbers, strings and null round-trip untouched.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the request carried no id member.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0
}

// Response is either a success or a failure, never both. The zero value is
// not valid; build one with NewSuccess or NewFailure.
type Response struct {
	id     json.RawMessage
	result json.RawMessage
	err    *Error
}

// NewSuccess builds a success response carrying v as result.
func NewSuccess(id json.RawMessage, v any) (Response, error) {
	var raw json.RawMessage
	switch r := v.(type) {
	case json.RawMessage:
		raw = r
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return Response{}, fmt.Errorf("failed to marshal result: %w", err)
		}
		raw = b
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = json.RawMessage("null")
	}
	return Response{id: normalizeID(id), result: raw}, nil
}

// NewFailure builds an error response.
func NewFailure(id json.RawMessage, e *Error) Response {
	if e == nil {
		e = &Error{Code: jsonrpc2.CodeInternalError, Message: "Internal error"}
	}
	return Response{id: normalizeID(id), err: e}
}

func normalizeID(id json.RawMessage) json.RawMessage {
	if len(bytes.TrimSpace(id)) == 0 {
		return NullID
	}
	return id
}

// ID returns the response id.
func (r Response) ID() json.RawMessage { return r.id }

// Result returns the raw result, nil for failures.
func (r Response) Result() json.RawMessage { return r.result }

// Err returns the error object, nil for successes.
func (r Response) Err() *Error { return r.err }

type successWire struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	ID      json.RawMessage `json:"id"`
}

type failureWire struct {
	JSONRPC string          `json:"jsonrpc"`
	Error   *Error          `json:"error"`
	ID      json.RawMessage `json:"id"`
}

// MarshalJSON writes exactly one of result or error.
func (r Response) MarshalJSON() ([]byte, error) {
	id := normalizeID(r.id)
	if r.err != nil {
		return json.Marshal(failureWire{JSONRPC: Version, Error: r.err, ID: id})
	}
	if r.result == nil {
		return nil, fmt.Errorf("rpc: response has neither result nor error")
	}
	return json.Marshal(successWire{JSONRPC: Version, Result: r.result, ID: id})
}

// Envelope is the decoded form of a response read from a remote peer, where
// either member may be present.
type Envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}
