package inputbus

import (
	"context"
	"testing"

	"github.com/daabr/termweb-core/pkg/devtools/input"
	"github.com/daabr/termweb-core/pkg/devtools/runtime"
)

type fakeKeyDispatcher struct {
	keyEvents []*input.DispatchKeyEvent
	inserted  []string
	evaluated []string
}

func (f *fakeKeyDispatcher) DispatchKeyEvent(ctx context.Context, e *input.DispatchKeyEvent) error {
	f.keyEvents = append(f.keyEvents, e)
	return nil
}

func (f *fakeKeyDispatcher) InsertText(ctx context.Context, text string) error {
	f.inserted = append(f.inserted, text)
	return nil
}

func (f *fakeKeyDispatcher) Evaluate(ctx context.Context, expression string) (*runtime.EvaluateResult, error) {
	f.evaluated = append(f.evaluated, expression)
	return &runtime.EvaluateResult{}, nil
}

func TestNormalizeMacOSControlCharResynthesis(t *testing.T) {
	ne := Normalize(PlatformMacOS, RawKeyEvent{ControlChar: 24}) // ctrl-x = 0x18 = 24
	if ne.BaseKey != "x" {
		t.Fatalf("BaseKey = %q, want %q", ne.BaseKey, "x")
	}
	if !ne.Meta || ne.Ctrl {
		t.Fatalf("Meta=%v Ctrl=%v, want Meta=true Ctrl=false", ne.Meta, ne.Ctrl)
	}
	if !ne.ShortcutMod {
		t.Fatal("ShortcutMod = false, want true")
	}
	if got := ne.CDPModifiers(); got != 4 {
		t.Errorf("CDPModifiers() = %d, want 4", got)
	}
}

func TestNormalizeLinuxUsesCtrlAsShortcut(t *testing.T) {
	ne := Normalize(PlatformLinux, RawKeyEvent{Base: "c", Ctrl: true})
	if !ne.ShortcutMod {
		t.Fatal("ShortcutMod = false, want true for Ctrl on Linux")
	}
	if ne.Meta {
		t.Fatal("Meta should not be set on Linux")
	}
}

func TestNormalizePrintable(t *testing.T) {
	tests := []struct {
		raw  RawKeyEvent
		want bool
	}{
		{RawKeyEvent{Base: "a"}, true},
		{RawKeyEvent{Base: "Enter"}, false},
		{RawKeyEvent{Base: "ArrowLeft", Special: true}, false},
		{RawKeyEvent{Base: " "}, true},
	}
	for _, tt := range tests {
		ne := Normalize(PlatformLinux, tt.raw)
		if ne.Printable != tt.want {
			t.Errorf("Normalize(%+v).Printable = %v, want %v", tt.raw, ne.Printable, tt.want)
		}
	}
}

func TestDispatchKeyPrintableNoShortcutUsesInsertText(t *testing.T) {
	d := &fakeKeyDispatcher{}
	disp := NewInputDispatch(PlatformLinux, d)

	if err := disp.DispatchKey(context.Background(), RawKeyEvent{Base: "a", Text: "a"}); err != nil {
		t.Fatal(err)
	}
	if len(d.inserted) != 1 || d.inserted[0] != "a" {
		t.Errorf("inserted = %v, want [\"a\"]", d.inserted)
	}
	if len(d.keyEvents) != 0 {
		t.Errorf("got %d keyDown/keyUp events, want 0", len(d.keyEvents))
	}
}

func TestDispatchKeyShortcutSendsKeyDownUpNoText(t *testing.T) {
	d := &fakeKeyDispatcher{}
	disp := NewInputDispatch(PlatformMacOS, d)

	err := disp.DispatchKey(context.Background(), RawKeyEvent{ControlChar: 24}) // Cmd+X
	if err != nil {
		t.Fatal(err)
	}
	if len(d.inserted) != 0 {
		t.Fatalf("got InsertText calls for a shortcut, want none: %v", d.inserted)
	}
	if len(d.keyEvents) != 2 {
		t.Fatalf("got %d key events, want 2 (keyDown, keyUp)", len(d.keyEvents))
	}
	down, up := d.keyEvents[0], d.keyEvents[1]
	if down.Type != input.KeyDown || up.Type != input.KeyUp {
		t.Errorf("types = %v, %v, want keyDown, keyUp", down.Type, up.Type)
	}
	if down.Text != "" || up.Text != "" {
		t.Error("a shortcut chord must not carry a text field")
	}
	if down.Key != "x" || down.Modifiers != 4 {
		t.Errorf("down = %+v, want key=x modifiers=4", down)
	}
}

func TestDispatchKeyEnterInEditorSendsCharEvent(t *testing.T) {
	d := &fakeKeyDispatcher{}
	disp := NewInputDispatch(PlatformLinux, d)

	err := disp.DispatchKey(context.Background(), RawKeyEvent{Base: "Enter", InEditor: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(d.keyEvents) != 3 {
		t.Fatalf("got %d key events, want 3 (keyDown, char, keyUp)", len(d.keyEvents))
	}
	if d.keyEvents[0].Type != input.KeyDown || d.keyEvents[2].Type != input.KeyUp {
		t.Errorf("outer events = %v, %v, want keyDown, keyUp", d.keyEvents[0].Type, d.keyEvents[2].Type)
	}
	if d.keyEvents[1].Type != input.KeyChar || d.keyEvents[1].Text != "\r" {
		t.Errorf("middle event = %+v, want char{text:\"\\r\"}", d.keyEvents[1])
	}
}

func TestDispatchKeySpecialKeyByName(t *testing.T) {
	d := &fakeKeyDispatcher{}
	disp := NewInputDispatch(PlatformLinux, d)

	err := disp.DispatchKey(context.Background(), RawKeyEvent{Base: "ArrowLeft", Special: true, Code: "ArrowLeft"})
	if err != nil {
		t.Fatal(err)
	}
	if len(d.keyEvents) != 2 {
		t.Fatalf("got %d key events, want 2", len(d.keyEvents))
	}
	if d.keyEvents[0].Key != "ArrowLeft" || d.keyEvents[1].Key != "ArrowLeft" {
		t.Errorf("key = %q, %q, want ArrowLeft twice", d.keyEvents[0].Key, d.keyEvents[1].Key)
	}
}

func TestDispatchPasteSendsClipboardEventViaEvaluate(t *testing.T) {
	d := &fakeKeyDispatcher{}
	disp := NewInputDispatch(PlatformLinux, d)

	if err := disp.DispatchPaste(context.Background(), "line one\nline two"); err != nil {
		t.Fatal(err)
	}
	if len(d.evaluated) != 1 {
		t.Fatalf("got %d Evaluate calls, want 1", len(d.evaluated))
	}
	if !contains(d.evaluated[0], "ClipboardEvent") || !contains(d.evaluated[0], "line one\\nline two") {
		t.Errorf("evaluated expression missing expected paste synthesis: %s", d.evaluated[0])
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
