// Package input implements the subset of the CDP Input domain this
// module depends on: synthetic mouse events, synthetic key events, and
// raw text insertion — trimmed from chrome-vision's full generated
// Input domain to exactly the commands spec.md names. These are the
// commands MouseEventBus and the key-normalization dispatcher in
// pkg/inputbus issue.
package input

import (
	"context"
	"encoding/json"

	"github.com/daabr/termweb-core/pkg/devtools"
)

// MouseEventType is the `type` parameter of DispatchMouseEvent.
//
// https://chromedevtools.github.io/devtools-protocol/tot/Input/#method-dispatchMouseEvent
type MouseEventType string

// MouseEventType valid values.
const (
	MousePressed  MouseEventType = "mousePressed"
	MouseReleased MouseEventType = "mouseReleased"
	MouseMoved    MouseEventType = "mouseMoved"
	MouseWheel    MouseEventType = "mouseWheel"
)

// MouseButton is the `button` parameter of DispatchMouseEvent.
type MouseButton string

// MouseButton valid values.
const (
	ButtonNone   MouseButton = "none"
	ButtonLeft   MouseButton = "left"
	ButtonMiddle MouseButton = "middle"
	ButtonRight  MouseButton = "right"
)

// DispatchMouseEvent contains the parameters for the CDP command
// `dispatchMouseEvent`.
//
// https://chromedevtools.github.io/devtools-protocol/tot/Input/#method-dispatchMouseEvent
type DispatchMouseEvent struct {
	Type       MouseEventType `json:"type"`
	X          float64        `json:"x"`
	Y          float64        `json:"y"`
	Modifiers  int64          `json:"modifiers,omitempty"`
	Button     MouseButton    `json:"button,omitempty"`
	Buttons    int64          `json:"buttons,omitempty"`
	ClickCount int64          `json:"clickCount,omitempty"`
	DeltaX     float64        `json:"deltaX,omitempty"`
	DeltaY     float64        `json:"deltaY,omitempty"`
}

// NewDispatchMouseEvent constructs a new DispatchMouseEvent struct
// instance.
func NewDispatchMouseEvent(typ MouseEventType, x, y float64) *DispatchMouseEvent {
	return &DispatchMouseEvent{Type: typ, X: x, Y: y}
}

// SetButton sets the button and buttons bitmask (bit 0 left, bit 1
// right, bit 2 middle) together, since CDP requires both to agree.
func (d *DispatchMouseEvent) SetButton(button MouseButton, buttons int64) *DispatchMouseEvent {
	d.Button, d.Buttons = button, buttons
	return d
}

// SetClickCount sets the clickCount parameter, used to distinguish
// single/double/triple clicks.
func (d *DispatchMouseEvent) SetClickCount(n int64) *DispatchMouseEvent {
	d.ClickCount = n
	return d
}

// SetWheelDelta sets the deltaX/deltaY parameters for a mouseWheel
// event.
func (d *DispatchMouseEvent) SetWheelDelta(dx, dy float64) *DispatchMouseEvent {
	d.DeltaX, d.DeltaY = dx, dy
	return d
}

// SetModifiers sets the modifiers bitmask (Alt=1, Ctrl=2, Meta/Cmd=4,
// Shift=8).
func (d *DispatchMouseEvent) SetModifiers(mods int64) *DispatchMouseEvent {
	d.Modifiers = mods
	return d
}

// Do sends the DispatchMouseEvent CDP command.
func (d *DispatchMouseEvent) Do(ctx context.Context, sender devtools.Sender, sessionID string) error {
	b, err := json.Marshal(d)
	if err != nil {
		return err
	}
	_, err = sender.SendCommand(ctx, "Input.dispatchMouseEvent", b, sessionID)
	return err
}

// KeyEventType is the `type` parameter of DispatchKeyEvent.
type KeyEventType string

// KeyEventType valid values.
const (
	KeyDown   KeyEventType = "keyDown"
	KeyUp     KeyEventType = "keyUp"
	KeyRawDown KeyEventType = "rawKeyDown"
	KeyChar   KeyEventType = "char"
)

// DispatchKeyEvent contains the parameters for the CDP command
// `dispatchKeyEvent`.
//
// https://chromedevtools.github.io/devtools-protocol/tot/Input/#method-dispatchKeyEvent
type DispatchKeyEvent struct {
	Type                  KeyEventType `json:"type"`
	Modifiers             int64        `json:"modifiers,omitempty"`
	Text                  string       `json:"text,omitempty"`
	UnmodifiedText        string       `json:"unmodifiedText,omitempty"`
	KeyIdentifier         string       `json:"keyIdentifier,omitempty"`
	Code                  string       `json:"code,omitempty"`
	Key                   string       `json:"key,omitempty"`
	WindowsVirtualKeyCode int64        `json:"windowsVirtualKeyCode,omitempty"`
	NativeVirtualKeyCode  int64        `json:"nativeVirtualKeyCode,omitempty"`
	AutoRepeat            bool         `json:"autoRepeat,omitempty"`
	IsKeypad              bool         `json:"isKeypad,omitempty"`
	IsSystemKey           bool         `json:"isSystemKey,omitempty"`
}

// NewDispatchKeyEvent constructs a new DispatchKeyEvent struct instance.
func NewDispatchKeyEvent(typ KeyEventType) *DispatchKeyEvent {
	return &DispatchKeyEvent{Type: typ}
}

// SetKey sets the key, code and windowsVirtualKeyCode parameters
// together, as spec.md 4.7's special-key dispatch rule requires.
func (d *DispatchKeyEvent) SetKey(key, code string, vkCode int64) *DispatchKeyEvent {
	d.Key, d.Code, d.WindowsVirtualKeyCode = key, code, vkCode
	return d
}

// SetText sets the text parameter carried by a "char" event.
func (d *DispatchKeyEvent) SetText(text string) *DispatchKeyEvent {
	d.Text = text
	return d
}

// SetModifiers sets the modifiers bitmask.
func (d *DispatchKeyEvent) SetModifiers(mods int64) *DispatchKeyEvent {
	d.Modifiers = mods
	return d
}

// Do sends the DispatchKeyEvent CDP command.
func (d *DispatchKeyEvent) Do(ctx context.Context, sender devtools.Sender, sessionID string) error {
	b, err := json.Marshal(d)
	if err != nil {
		return err
	}
	_, err = sender.SendCommand(ctx, "Input.dispatchKeyEvent", b, sessionID)
	return err
}

// InsertText contains the parameters for the CDP command `insertText`.
//
// https://chromedevtools.github.io/devtools-protocol/tot/Input/#method-insertText
type InsertText struct {
	Text string `json:"text"`
}

// NewInsertText constructs a new InsertText struct instance.
func NewInsertText(text string) *InsertText { return &InsertText{Text: text} }

// Do sends the InsertText CDP command.
func (i *InsertText) Do(ctx context.Context, sender devtools.Sender, sessionID string) error {
	b, err := json.Marshal(i)
	if err != nil {
		return err
	}
	_, err = sender.SendCommand(ctx, "Input.insertText", b, sessionID)
	return err
}
