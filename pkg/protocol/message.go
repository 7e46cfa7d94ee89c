package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Version is the protocol version carried in every envelope.
const Version = "2.0"

// Decode errors. Both mean the frame must be logged and dropped; neither is
// fatal to the connection or to any pending request.
var (
	// ErrMalformedFrame is returned when an inbound frame is not valid JSON.
	ErrMalformedFrame = errors.New("protocol: malformed frame")

	// ErrInvalidEnvelope is returned when a frame parses as JSON but is
	// neither a response (has id) nor a notification (has method).
	ErrInvalidEnvelope = errors.New("protocol: invalid envelope")
)

// Request is an outbound call expecting a correlated response.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      uint64          `json:"id"`
}

// Notification is a message with no correlation id. It is never replied to.
type Notification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Kind classifies an inbound message.
type Kind uint8

const (
	KindResponse Kind = iota + 1
	KindNotification
)

// String returns the string representation of the message kind.
func (k Kind) String() string {
	switch k {
	case KindResponse:
		return "Response"
	case KindNotification:
		return "Notification"
	default:
		return "Unknown"
	}
}

// Message is a classified inbound frame.
//
// For KindResponse, ID is set and exactly one of Result/Err is meaningful.
// For KindNotification, Method is set and Params carries the payload.
type Message struct {
	Kind   Kind
	ID     uint64
	Method string
	Params json.RawMessage
	Result json.RawMessage
	Err    *RPCError
}

// envelope is the loose shape every inbound frame is parsed into before
// classification. ID is a pointer so that "id absent" is distinguishable
// from "id zero".
type envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *uint64         `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

// Decode parses and classifies a single inbound frame.
//
// A frame with an id is a Response regardless of any other fields. A frame
// with a method and no id is a Notification. Anything else is an error.
func Decode(data []byte) (*Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	switch {
	case env.ID != nil:
		return &Message{
			Kind:   KindResponse,
			ID:     *env.ID,
			Result: env.Result,
			Err:    env.Error,
		}, nil

	case env.Method != "":
		return &Message{
			Kind:   KindNotification,
			Method: env.Method,
			Params: env.Params,
		}, nil

	default:
		return nil, ErrInvalidEnvelope
	}
}

// EncodeRequest marshals a request envelope for the given method, params
// and correlation id. A nil params value omits the params field entirely.
func EncodeRequest(id uint64, method string, params any) ([]byte, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal params for %s: %w", method, err)
	}
	return json.Marshal(&Request{
		JSONRPC: Version,
		Method:  method,
		Params:  raw,
		ID:      id,
	})
}

// EncodeNotification marshals a notification envelope (no id).
func EncodeNotification(method string, params any) ([]byte, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal params for %s: %w", method, err)
	}
	return json.Marshal(&Notification{
		JSONRPC: Version,
		Method:  method,
		Params:  raw,
	})
}

func marshalParams(params any) (json.RawMessage, error) {
	if params == nil {
		return nil, nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	return raw, nil
}
