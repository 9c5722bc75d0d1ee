package devtools

import (
	"context"
	"encoding/json"
)

// Sender is the minimal interface a domain command package needs to issue
// a CDP command: marshal params, route it onto whichever transport the
// caller (the client facade) decides, and wait for the correlated
// response. *PipeTransport satisfies it directly; *WsTransport satisfies
// it through a thin adapter that fixes highPriority; see
// pkg/devtools/client.
type Sender interface {
	SendCommand(ctx context.Context, method string, params json.RawMessage, sessionID string) (json.RawMessage, error)
}
