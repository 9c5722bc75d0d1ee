// Package runtime implements the subset of the CDP Runtime domain this
// module depends on: event enablement and expression evaluation,
// trimmed from chrome-vision's full generated Runtime domain to exactly
// the commands spec.md names.
package runtime

import (
	"context"
	"encoding/json"

	"github.com/daabr/termweb-core/pkg/devtools"
)

// Enable contains the parameters for the CDP command `enable`.
//
// https://chromedevtools.github.io/devtools-protocol/tot/Runtime/#method-enable
type Enable struct{}

// NewEnable constructs a new Enable struct instance.
func NewEnable() *Enable { return &Enable{} }

// Do sends the Enable CDP command, turning on Runtime.consoleAPICalled
// and friends.
func (e *Enable) Do(ctx context.Context, sender devtools.Sender, sessionID string) error {
	_, err := sender.SendCommand(ctx, "Runtime.enable", nil, sessionID)
	return err
}

// RemoteObject is the evaluation result payload, trimmed to the fields
// this module reads (the full CDP type carries object handles and
// preview metadata this client never inspects).
//
// https://chromedevtools.github.io/devtools-protocol/tot/Runtime/#type-RemoteObject
type RemoteObject struct {
	Type        string          `json:"type"`
	Subtype     string          `json:"subtype,omitempty"`
	Description string          `json:"description,omitempty"`
	Value       json.RawMessage `json:"value,omitempty"`
}

// ExceptionDetails describes why an evaluation threw.
//
// https://chromedevtools.github.io/devtools-protocol/tot/Runtime/#type-ExceptionDetails
type ExceptionDetails struct {
	Text string `json:"text"`
	Line int64  `json:"lineNumber"`
}

// Evaluate contains the parameters for the CDP command `evaluate`.
//
// https://chromedevtools.github.io/devtools-protocol/tot/Runtime/#method-evaluate
type Evaluate struct {
	Expression    string `json:"expression"`
	ReturnByValue bool   `json:"returnByValue,omitempty"`
	AwaitPromise  bool   `json:"awaitPromise,omitempty"`
}

// NewEvaluate constructs a new Evaluate struct instance.
func NewEvaluate(expression string) *Evaluate { return &Evaluate{Expression: expression} }

// SetReturnByValue requests the result be sent by value rather than as
// an object handle.
func (e *Evaluate) SetReturnByValue(v bool) *Evaluate {
	e.ReturnByValue = v
	return e
}

// SetAwaitPromise awaits a returned promise before resolving.
func (e *Evaluate) SetAwaitPromise(v bool) *Evaluate {
	e.AwaitPromise = v
	return e
}

// EvaluateResult is the browser's response to Evaluate.
type EvaluateResult struct {
	Result           RemoteObject      `json:"result"`
	ExceptionDetails *ExceptionDetails `json:"exceptionDetails,omitempty"`
}

// Do sends the Evaluate CDP command.
func (e *Evaluate) Do(ctx context.Context, sender devtools.Sender, sessionID string) (*EvaluateResult, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	raw, err := sender.SendCommand(ctx, "Runtime.evaluate", b, sessionID)
	if err != nil {
		return nil, err
	}
	var result EvaluateResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
