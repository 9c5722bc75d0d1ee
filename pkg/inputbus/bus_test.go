package inputbus

import (
	"context"
	"testing"
	"time"

	"github.com/daabr/termweb-core/pkg/devtools/input"
)

type recordedDispatch struct {
	ev *input.DispatchMouseEvent
}

type fakeMouseDispatcher struct {
	calls []recordedDispatch
}

func (f *fakeMouseDispatcher) DispatchMouseEvent(ctx context.Context, e *input.DispatchMouseEvent) error {
	f.calls = append(f.calls, recordedDispatch{ev: e})
	return nil
}

func TestMouseEventBusPressSequence(t *testing.T) {
	d := &fakeMouseDispatcher{}
	bus := New(d)

	bus.Record(context.Background(), Event{Kind: EventPress, X: 640, Y: 343, Button: input.ButtonLeft})

	if len(d.calls) != 3 {
		t.Fatalf("got %d dispatches, want 3 (arm-hover, arm-click, press)", len(d.calls))
	}
	arm1, arm2, press := d.calls[0].ev, d.calls[1].ev, d.calls[2].ev

	if arm1.Type != input.MouseMoved || arm1.Buttons != 0 {
		t.Errorf("first dispatch = %+v, want mouseMoved{buttons:0}", arm1)
	}
	if arm2.Type != input.MouseMoved || arm2.Buttons != 1 {
		t.Errorf("second dispatch = %+v, want mouseMoved{buttons:1}", arm2)
	}
	if press.Type != input.MousePressed || press.Buttons != 1 || press.ClickCount != 1 {
		t.Errorf("third dispatch = %+v, want mousePressed{buttons:1,clickCount:1}", press)
	}
}

func TestMouseEventBusDoubleAndTripleClick(t *testing.T) {
	d := &fakeMouseDispatcher{}
	bus := New(d)
	ctx := context.Background()

	press := func() int64 {
		before := len(d.calls)
		bus.Record(ctx, Event{Kind: EventPress, X: 100, Y: 100, Button: input.ButtonLeft})
		bus.Record(ctx, Event{Kind: EventRelease, X: 100, Y: 100, Button: input.ButtonLeft})
		// press dispatches 3 events, release dispatches 1.
		pressEv := d.calls[before+2].ev
		return pressEv.ClickCount
	}

	counts := []int64{press(), press(), press(), press()}
	want := []int64{1, 2, 3, 3}
	for i := range want {
		if counts[i] != want[i] {
			t.Errorf("click %d: clickCount = %d, want %d", i+1, counts[i], want[i])
		}
	}

	// Release always carries the same clickCount as the press it follows.
	for i, want := range []int64{1, 2, 3, 3} {
		releaseIdx := i*4 + 3
		rel := d.calls[releaseIdx].ev
		if rel.Type != input.MouseReleased || rel.ClickCount != want {
			t.Errorf("release %d: %+v, want clickCount %d", i+1, rel, want)
		}
	}
}

func TestMouseEventBusClickResetsOutsideRadius(t *testing.T) {
	d := &fakeMouseDispatcher{}
	bus := New(d)
	ctx := context.Background()

	bus.Record(ctx, Event{Kind: EventPress, X: 0, Y: 0, Button: input.ButtonLeft})
	bus.Record(ctx, Event{Kind: EventRelease, X: 0, Y: 0, Button: input.ButtonLeft})
	bus.Record(ctx, Event{Kind: EventPress, X: 200, Y: 200, Button: input.ButtonLeft})

	press2 := d.calls[len(d.calls)-1].ev
	if press2.ClickCount != 1 {
		t.Errorf("press far from the first click: clickCount = %d, want 1", press2.ClickCount)
	}
}

func TestMouseEventBusClickResetsOnDifferentButton(t *testing.T) {
	d := &fakeMouseDispatcher{}
	bus := New(d)
	ctx := context.Background()

	bus.Record(ctx, Event{Kind: EventPress, X: 10, Y: 10, Button: input.ButtonLeft})
	bus.Record(ctx, Event{Kind: EventRelease, X: 10, Y: 10, Button: input.ButtonLeft})
	bus.Record(ctx, Event{Kind: EventPress, X: 10, Y: 10, Button: input.ButtonRight})

	press2 := d.calls[len(d.calls)-1].ev
	if press2.ClickCount != 1 {
		t.Errorf("press with a different button: clickCount = %d, want 1", press2.ClickCount)
	}
}

func TestMouseEventBusMoveCoalescesAndSkipsUnchanged(t *testing.T) {
	d := &fakeMouseDispatcher{}
	bus := New(d, WithTickInterval(time.Millisecond))

	bus.Record(context.Background(), Event{Kind: EventMove, X: 1, Y: 1})
	bus.Record(context.Background(), Event{Kind: EventMove, X: 2, Y: 2})
	bus.Record(context.Background(), Event{Kind: EventMove, X: 50, Y: 50})
	bus.tick(context.Background())

	if len(d.calls) != 1 {
		t.Fatalf("got %d dispatches after coalescing, want 1", len(d.calls))
	}
	if d.calls[0].ev.X != 50 || d.calls[0].ev.Y != 50 {
		t.Errorf("dispatched move = (%v,%v), want last recorded (50,50)", d.calls[0].ev.X, d.calls[0].ev.Y)
	}

	// A second tick with no new move, and then one repeating the same
	// pixel, should dispatch nothing: at most one mouseMoved per
	// distinct coordinate.
	bus.tick(context.Background())
	bus.Record(context.Background(), Event{Kind: EventMove, X: 50, Y: 50})
	bus.tick(context.Background())

	if len(d.calls) != 1 {
		t.Errorf("got %d dispatches, want still 1 (repeated coordinate skipped)", len(d.calls))
	}
}

func TestMouseEventBusWheelLineAndPage(t *testing.T) {
	d := &fakeMouseDispatcher{}
	bus := New(d, WithTickInterval(time.Millisecond))

	bus.Record(context.Background(), Event{Kind: EventWheelLine, X: 5, Y: 5, Direction: 1})
	bus.tick(context.Background())
	if got := d.calls[0].ev.DeltaY; got != 20 {
		t.Errorf("line scroll deltaY = %v, want 20", got)
	}

	d.calls = nil
	bus.Record(context.Background(), Event{Kind: EventWheelPage, X: 5, Y: 5, Direction: -1, ViewportH: 800})
	bus.tick(context.Background())
	if got := d.calls[0].ev.DeltaY; got != -760 {
		t.Errorf("page scroll deltaY = %v, want -760", got)
	}
}

func TestMouseEventBusNaturalScrollInvertsDirection(t *testing.T) {
	d := &fakeMouseDispatcher{}
	bus := New(d, WithTickInterval(time.Millisecond), WithNaturalScroll(true))

	bus.Record(context.Background(), Event{Kind: EventWheelLine, X: 5, Y: 5, Direction: 1})
	bus.tick(context.Background())
	if got := d.calls[0].ev.DeltaY; got != -20 {
		t.Errorf("natural-scroll line deltaY = %v, want -20", got)
	}
}

func TestMouseEventBusMaybeTickRespectsInterval(t *testing.T) {
	d := &fakeMouseDispatcher{}
	bus := New(d, WithTickInterval(time.Hour))

	bus.Record(context.Background(), Event{Kind: EventMove, X: 1, Y: 1})
	bus.MaybeTick(context.Background())

	if len(d.calls) != 0 {
		t.Fatalf("got %d dispatches before the tick interval elapsed, want 0", len(d.calls))
	}
}
