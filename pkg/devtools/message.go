// Package devtools implements the wire-level Chrome DevTools Protocol (CDP)
// transports: a NUL-framed byte-pipe transport and a WebSocket transport,
// both sharing the same request/response correlation and event-queue
// design. It deliberately does not implement a general-purpose CDP binding
// layer for every protocol domain — only the message shapes and commands
// the browser-control core in this module depends on (see the domain
// sub-packages: page, target, input, browser, runtime, network, emulation).
package devtools

import (
	"encoding/json"
	"fmt"
)

// Error is the error object CDP embeds in a response message.
type Error struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
}

// Error satisfies the error interface.
func (e *Error) Error() string {
	if e.Code == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (%d)", e.Message, e.Code)
}

// Message is a generic CDP message: an outbound request, or an inbound
// response or event.
type Message struct {
	ID        int64           `json:"id,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	Method    string          `json:"method,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *Error          `json:"error,omitempty"`
}

// IsEvent reports whether m is an unsolicited event rather than a command
// response (CDP distinguishes the two by the presence of "method").
func (m *Message) IsEvent() bool {
	return m.Method != ""
}

// EventMessage is an event queued for a subscriber: the decoded method name
// plus the raw bytes, so that callers that only care about a handful of
// event types never pay for parsing the rest.
type EventMessage struct {
	Method string
	Params json.RawMessage
	// SessionID is set when the event arrived on a session-scoped channel.
	SessionID string
}

// ResponseMessage is a correlated reply to a previously sent command.
type ResponseMessage struct {
	ID     int64
	Result json.RawMessage
	Error  *Error
}
