package rpc

import (
	"encoding/json"
	"fmt"

	"github.com/sourcegraph/jsonrpc2"
)

func withData(e *Error, data any) *Error {
	if data != nil {
		e.SetError(data)
	}
	return e
}

// ParseError is returned for lines that are not valid JSON.
func ParseError(detail string) *Error {
	return withData(&Error{Code: jsonrpc2.CodeParseError, Message: "Parse error"}, detail)
}

// InvalidRequest is returned for JSON that is not a request object.
func InvalidRequest(detail string) *Error {
	return withData(&Error{Code: jsonrpc2.CodeInvalidRequest, Message: "Invalid request"}, detail)
}

// MethodNotFound names the method that was requested.
func MethodNotFound(method string) *Error {
	return withData(&Error{
		Code:    jsonrpc2.CodeMethodNotFound,
		Message: fmt.Sprintf("Method not found: %s", method),
	}, fmt.Sprintf("Unknown method: %s", method))
}

// InvalidParams is returned when required params are missing or malformed.
func InvalidParams(detail string) *Error {
	return withData(&Error{Code: jsonrpc2.CodeInvalidParams, Message: "Invalid params"}, detail)
}

// ServerError wraps any downstream failure; detail carries the upstream
// message.
func ServerError(detail string) *Error {
	return withData(&Error{Code: CodeServerError, Message: "Server error"}, detail)
}

// DataString returns the error data when it is a JSON string, or its raw
// text otherwise.
func DataString(e *Error) string {
	if e == nil || e.Data == nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(*e.Data, &s); err == nil {
		return s
	}
	return string(*e.Data)
}
