// Package protocol implements the JSON-RPC wire protocol spoken between
// StudioBridge and a running Designer instance.
//
// All messages travel as single text frames over one persistent WebSocket
// connection. There are exactly three envelope shapes:
//
//	Request      {"jsonrpc":"2.0","method":"...","params":{...},"id":N}
//	Response     {"jsonrpc":"2.0","id":N,"result":{...}}            or
//	             {"jsonrpc":"2.0","id":N,"error":{"code":C,"message":"...","data":...}}
//	Notification {"jsonrpc":"2.0","method":"...","params":{...}}
//
// The presence or absence of the "id" field is the sole discriminator
// between a response and a notification on the wire. A response carries
// exactly one of "result" or "error".
//
// Decode is the single classification point for inbound frames. Frames that
// are not valid JSON, or that carry neither an id nor a method, are reported
// as errors; the caller is expected to log and drop them without touching
// connection state.
//
// Method schemas are a closed set (methods.go). Unknown inbound notification
// methods are ignored, not treated as errors.
package protocol
