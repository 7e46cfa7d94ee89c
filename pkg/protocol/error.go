package protocol

import (
	"encoding/json"
	"fmt"
)

// Well-known error codes the Designer may return. Codes outside this set are
// passed through to callers untouched.
const (
	CodeParseError     = -32700 // Peer could not parse our frame
	CodeInvalidRequest = -32600 // Envelope rejected by the peer
	CodeMethodNotFound = -32601 // Method unknown to the peer
	CodeInvalidParams  = -32602 // Params failed peer-side validation
	CodeInternalError  = -32603 // Peer-side failure
	CodeNotAuthorized  = -32000 // Request issued before a successful handshake
	CodeScriptError    = -32001 // script.execute raised in the Designer scope
	CodeProjectClosed  = -32002 // No project open in the Designer
)

// RPCError is an error object returned by the peer in a response envelope.
// Code, Message and Data are preserved verbatim from the wire.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	return fmt.Sprintf("protocol: remote error %d: %s", e.Code, e.Message)
}

// CodeName returns a short name for well-known codes, "Unknown" otherwise.
func (e *RPCError) CodeName() string {
	switch e.Code {
	case CodeParseError:
		return "ParseError"
	case CodeInvalidRequest:
		return "InvalidRequest"
	case CodeMethodNotFound:
		return "MethodNotFound"
	case CodeInvalidParams:
		return "InvalidParams"
	case CodeInternalError:
		return "InternalError"
	case CodeNotAuthorized:
		return "NotAuthorized"
	case CodeScriptError:
		return "ScriptError"
	case CodeProjectClosed:
		return "ProjectClosed"
	default:
		return "Unknown"
	}
}
