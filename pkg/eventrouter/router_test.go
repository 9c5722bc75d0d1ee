package eventrouter

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/daabr/termweb-core/pkg/devtools"
)

func sourceFromSlice(events []devtools.EventMessage) Source {
	i := 0
	return func() (devtools.EventMessage, bool) {
		if i >= len(events) {
			return devtools.EventMessage{}, false
		}
		e := events[i]
		i++
		return e, true
	}
}

func mustEvent(t *testing.T, method string, params any) devtools.EventMessage {
	t.Helper()
	b, err := json.Marshal(params)
	if err != nil {
		t.Fatal(err)
	}
	return devtools.EventMessage{Method: method, Params: b}
}

func TestRouterDispatchesByMethod(t *testing.T) {
	r := New(WithPollInterval(time.Millisecond))

	events := []devtools.EventMessage{
		mustEvent(t, "Page.navigatedWithinDocument", map[string]string{"frameId": "f1", "url": "https://example.com/#a"}),
		mustEvent(t, "Runtime.consoleAPICalled", map[string]any{"type": "log", "timestamp": 1.0}),
		mustEvent(t, "Browser.downloadWillBegin", map[string]string{"guid": "g1", "url": "https://example.com/x.zip"}),
		mustEvent(t, "Target.targetInfoChanged", map[string]any{"targetInfo": map[string]any{"targetId": "t1", "type": "page"}}),
		mustEvent(t, "Unknown.somethingElse", map[string]string{}),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	go r.Pump(ctx, sourceFromSlice(events))

	select {
	case ev := <-r.NavigatedWithinDocument:
		if ev.FrameID != "f1" || ev.URL != "https://example.com/#a" {
			t.Errorf("got %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for NavigatedWithinDocument")
	}

	select {
	case ev := <-r.ConsoleAPICalled:
		if ev.Type != "log" {
			t.Errorf("got %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for ConsoleAPICalled")
	}

	select {
	case ev := <-r.DownloadWillBegin:
		if ev.Guid != "g1" {
			t.Errorf("got %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for DownloadWillBegin")
	}

	select {
	case ev := <-r.TargetInfoChanged:
		if ev.TargetInfo.TargetID != "t1" {
			t.Errorf("got %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for TargetInfoChanged")
	}

	cancel()
	time.Sleep(10 * time.Millisecond)
	if got := r.UnhandledCount(); got != 1 {
		t.Errorf("UnhandledCount() = %d, want 1", got)
	}
}

func TestRouterDropsOnFullChannel(t *testing.T) {
	r := New(WithPollInterval(time.Millisecond))

	var events []devtools.EventMessage
	for i := 0; i < chanCapacity+5; i++ {
		events = append(events, mustEvent(t, "Target.targetCreated", map[string]any{"targetInfo": map[string]any{"targetId": "t"}}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	r.Pump(ctx, sourceFromSlice(events))

	if got := r.DroppedCount(); got != 5 {
		t.Errorf("DroppedCount() = %d, want 5 (channel never drained)", got)
	}
	if got := len(r.TargetCreated); got != chanCapacity {
		t.Errorf("len(TargetCreated) = %d, want %d", got, chanCapacity)
	}
}
