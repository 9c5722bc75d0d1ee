package inputbus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/daabr/termweb-core/pkg/devtools/input"
	"github.com/daabr/termweb-core/pkg/devtools/runtime"
)

// Platform selects which modifier spec.md 4.7 treats as the "shortcut"
// modifier: Meta (Cmd) on macOS, Ctrl everywhere else.
type Platform int

// Platform values.
const (
	PlatformLinux Platform = iota
	PlatformMacOS
)

// CDP Input.dispatchKeyEvent modifier bits.
const (
	modAlt   = 1
	modCtrl  = 2
	modMeta  = 4
	modShift = 8
)

// RawKeyEvent is what the terminal's input reader captures for one
// keystroke, before platform-specific normalization.
type RawKeyEvent struct {
	// Base is the key identity: a single printable rune as a string
	// ("a"), or a name CDP recognizes ("Enter", "ArrowLeft", "Escape").
	Base string
	// Text is the text this key would insert, when Base is printable.
	// May differ from Base (e.g. shifted punctuation).
	Text string
	// ControlChar is non-zero when the terminal delivered this key as a
	// raw control character (1-26) rather than a named key or rune, the
	// form macOS terminals use to report Cmd+<letter> shortcuts.
	ControlChar byte
	Shift       bool
	Ctrl        bool
	Alt         bool
	Meta        bool
	// Special marks named non-printable keys (arrows, function keys,
	// Escape, Tab, Backspace, ...) that always dispatch by name.
	Special bool
	// InEditor is true when focus is believed to be inside a text
	// editor, which changes how Enter is dispatched.
	InEditor bool
	// VirtualKeyCode is the Windows virtual-key code CDP expects for
	// this key.
	VirtualKeyCode int64
	// Code is the CDP "code" field (e.g. "KeyX", "Enter", "ArrowLeft").
	// If empty for a shortcut dispatch, it's derived from Base.
	Code string
}

// NormalizedKeyEvent is RawKeyEvent resolved against a Platform: the
// macOS Cmd+<letter> control-character resynthesis has been applied and
// ShortcutMod reflects the platform's actual shortcut modifier.
type NormalizedKeyEvent struct {
	BaseKey     string
	Shift       bool
	Ctrl        bool
	Alt         bool
	Meta        bool
	ShortcutMod bool
	Printable   bool
}

// IsEnter reports whether this event is the Enter key.
func (e NormalizedKeyEvent) IsEnter() bool {
	return e.BaseKey == "Enter"
}

// CDPModifiers encodes the modifier state as the bitmask
// Input.dispatchKeyEvent expects.
func (e NormalizedKeyEvent) CDPModifiers() int64 {
	var m int64
	if e.Alt {
		m |= modAlt
	}
	if e.Ctrl {
		m |= modCtrl
	}
	if e.Meta {
		m |= modMeta
	}
	if e.Shift {
		m |= modShift
	}
	return m
}

// Normalize resolves raw against platform. On macOS, a delivered
// control character is resynthesized into the Cmd+<letter> shortcut it
// stands in for: terminals on macOS report Cmd+X as the control
// character ctrl-x (0x18) because the TTY layer has no other channel
// for Cmd-chords, so the base key becomes the letter and Meta is set
// instead of Ctrl.
func Normalize(platform Platform, raw RawKeyEvent) NormalizedKeyEvent {
	ne := NormalizedKeyEvent{
		BaseKey: raw.Base,
		Shift:   raw.Shift,
		Ctrl:    raw.Ctrl,
		Alt:     raw.Alt,
		Meta:    raw.Meta,
	}

	if platform == PlatformMacOS && raw.ControlChar != 0 && raw.ControlChar <= 26 {
		ne.BaseKey = string(rune('a' - 1 + int(raw.ControlChar)))
		ne.Meta = true
		ne.Ctrl = false
	}

	if platform == PlatformMacOS {
		ne.ShortcutMod = ne.Meta
	} else {
		ne.ShortcutMod = ne.Ctrl
	}

	ne.Printable = !raw.Special && isPrintable(ne.BaseKey)
	return ne
}

func isPrintable(key string) bool {
	r := []rune(key)
	if len(r) != 1 {
		return false
	}
	return unicode.IsPrint(r[0])
}

// KeyDispatcher is the narrow interface InputDispatch needs to put
// keyboard input and paste synthesis on the wire; *client.CdpClient
// satisfies it.
type KeyDispatcher interface {
	DispatchKeyEvent(ctx context.Context, e *input.DispatchKeyEvent) error
	InsertText(ctx context.Context, text string) error
	Evaluate(ctx context.Context, expression string) (*runtime.EvaluateResult, error)
}

// InputDispatch implements spec.md 4.7's five key-dispatch rules on top
// of a KeyDispatcher.
type InputDispatch struct {
	platform Platform
	keys     KeyDispatcher
}

// NewInputDispatch constructs an InputDispatch for platform, dispatching
// through keys.
func NewInputDispatch(platform Platform, keys KeyDispatcher) *InputDispatch {
	return &InputDispatch{platform: platform, keys: keys}
}

// DispatchKey normalizes raw and dispatches it according to spec.md
// 4.7's rules: a printable key with no shortcut modifier goes through
// Input.insertText; a printable key held with the shortcut modifier, a
// bare Enter inside an editor, and any special (named) key each
// dispatch as a keyDown/keyUp pair shaped for that case.
func (d *InputDispatch) DispatchKey(ctx context.Context, raw RawKeyEvent) error {
	ne := Normalize(d.platform, raw)

	switch {
	case ne.IsEnter() && raw.InEditor:
		return d.dispatchEnterInEditor(ctx, ne, raw)
	case raw.Special:
		return d.dispatchNamedKey(ctx, ne, raw, raw.Base, raw.Code)
	case ne.Printable && !ne.ShortcutMod:
		text := raw.Text
		if text == "" {
			text = ne.BaseKey
		}
		return d.keys.InsertText(ctx, text)
	case ne.Printable && ne.ShortcutMod:
		return d.dispatchShortcut(ctx, ne, raw)
	default:
		return d.dispatchNamedKey(ctx, ne, raw, ne.BaseKey, raw.Code)
	}
}

func (d *InputDispatch) dispatchEnterInEditor(ctx context.Context, ne NormalizedKeyEvent, raw RawKeyEvent) error {
	mods := ne.CDPModifiers()
	down := input.NewDispatchKeyEvent(input.KeyDown).SetKey("Enter", "Enter", raw.VirtualKeyCode).SetModifiers(mods)
	if err := d.keys.DispatchKeyEvent(ctx, down); err != nil {
		return err
	}
	char := input.NewDispatchKeyEvent(input.KeyChar).SetText("\r").SetModifiers(mods)
	if err := d.keys.DispatchKeyEvent(ctx, char); err != nil {
		return err
	}
	up := input.NewDispatchKeyEvent(input.KeyUp).SetKey("Enter", "Enter", raw.VirtualKeyCode).SetModifiers(mods)
	return d.keys.DispatchKeyEvent(ctx, up)
}

func (d *InputDispatch) dispatchNamedKey(ctx context.Context, ne NormalizedKeyEvent, raw RawKeyEvent, key, code string) error {
	if code == "" {
		code = key
	}
	mods := ne.CDPModifiers()
	down := input.NewDispatchKeyEvent(input.KeyDown).SetKey(key, code, raw.VirtualKeyCode).SetModifiers(mods)
	if err := d.keys.DispatchKeyEvent(ctx, down); err != nil {
		return err
	}
	up := input.NewDispatchKeyEvent(input.KeyUp).SetKey(key, code, raw.VirtualKeyCode).SetModifiers(mods)
	return d.keys.DispatchKeyEvent(ctx, up)
}

// dispatchShortcut sends a keyDown/keyUp pair for a printable key held
// with the platform's shortcut modifier (e.g. Cmd+X, Ctrl+C). No text
// field is sent: a shortcut chord must not also insert its letter.
func (d *InputDispatch) dispatchShortcut(ctx context.Context, ne NormalizedKeyEvent, raw RawKeyEvent) error {
	code := raw.Code
	if code == "" {
		code = "Key" + strings.ToUpper(ne.BaseKey)
	}
	return d.dispatchNamedKey(ctx, ne, raw, ne.BaseKey, code)
}

// DispatchPaste synthesizes a paste ClipboardEvent carrying text via
// Runtime.evaluate, for multi-line paste input the terminal can't
// plausibly replay as individual keystrokes.
func (d *InputDispatch) DispatchPaste(ctx context.Context, text string) error {
	encoded, err := json.Marshal(text)
	if err != nil {
		return err
	}
	expr := fmt.Sprintf(`(() => {
  const dt = new DataTransfer();
  dt.setData('text/plain', %s);
  const ev = new ClipboardEvent('paste', {clipboardData: dt, bubbles: true, cancelable: true});
  (document.activeElement || document.body).dispatchEvent(ev);
})()`, string(encoded))
	_, err = d.keys.Evaluate(ctx, expr)
	return err
}
