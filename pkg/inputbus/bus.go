// Package inputbus implements MouseEventBus and InputDispatch: the
// priority-aware scheduling of synthetic mouse and keyboard events onto
// the CDP client, per spec.md 4.6-4.7. Both depend only on narrow
// interfaces a *client.CdpClient already satisfies, so this package
// never imports pkg/devtools/client directly and stays free of any
// transport concern.
package inputbus

import (
	"context"
	"log"
	"math"
	"os"
	"sync"
	"time"

	"github.com/daabr/termweb-core/pkg/devtools/input"
)

// defaultTickInterval matches the screencast frame cadence spec.md 4.6
// names (~66ms, roughly 15fps) so coalesced move/wheel events flush at
// the same pace frames arrive.
const defaultTickInterval = 66 * time.Millisecond

// doubleClickWindow and doubleClickRadius are the double/triple-click
// detection thresholds spec.md 4.6 specifies exactly.
const (
	doubleClickWindow = time.Second
	doubleClickRadius = 15.0
)

// wheelLineDelta is the deltaY magnitude for a line-scroll wheel event;
// page scrolls use viewportH-40 instead (set per-call, see Event).
const wheelLineDelta = 20.0

// EventKind is the kind of input captured by Record.
type EventKind int

// EventKind valid values.
const (
	EventMove EventKind = iota
	EventPress
	EventRelease
	EventWheelLine
	EventWheelPage
)

// Event is one piece of raw mouse input, already mapped into Chromium
// viewport pixel space (see pkg/coords.CoordinateMapper) by the caller.
type Event struct {
	Kind      EventKind
	X, Y      float64
	Button    input.MouseButton // set for Press/Release
	Direction float64           // +1 (down/forward) or -1 (up/back), for wheel events
	ViewportW float64
	ViewportH float64
}

// MouseDispatcher is the narrow interface MouseEventBus needs to put a
// mouse event on the wire; *client.CdpClient satisfies it.
type MouseDispatcher interface {
	DispatchMouseEvent(ctx context.Context, e *input.DispatchMouseEvent) error
}

type clickState struct {
	lastTime   time.Time
	lastX      float64
	lastY      float64
	lastButton input.MouseButton
	count      int64
}

type pendingKind int

const (
	pendingNone pendingKind = iota
	pendingMove
	pendingWheel
)

type pendingCell struct {
	kind           pendingKind
	x, y           float64
	deltaX, deltaY float64
}

// Option configures a MouseEventBus at construction time.
type Option func(*MouseEventBus)

// WithTickInterval overrides the default ~66ms coalescing tick.
func WithTickInterval(d time.Duration) Option {
	return func(b *MouseEventBus) { b.tickInterval = d }
}

// WithNaturalScroll inverts wheel delta direction to match macOS-style
// "natural" scrolling.
func WithNaturalScroll(natural bool) Option {
	return func(b *MouseEventBus) { b.naturalScroll = natural }
}

// WithLogger overrides the default stderr logger used to report
// swallowed dispatch errors (fire-and-forget sends never propagate
// failures to the caller, per spec.md 7).
func WithLogger(l *log.Logger) Option {
	return func(b *MouseEventBus) { b.logger = l }
}

// MouseEventBus implements spec.md 4.6's priority policy: presses and
// releases dispatch immediately; moves and wheel events coalesce into a
// single pending slot flushed by MaybeTick. It is not safe for
// concurrent use by more than one input reader, matching the
// single-threaded-with-respect-to-the-renderer's-event-loop scheduling
// contract spec.md 4.6 names.
type MouseEventBus struct {
	mu sync.Mutex

	dispatcher MouseDispatcher

	tickInterval  time.Duration
	naturalScroll bool
	logger        *log.Logger

	lastTick time.Time
	click    clickState
	pending  pendingCell

	hasDispatchedMove  bool
	lastMoveX, lastMoveY float64
}

// New constructs a MouseEventBus dispatching through d.
func New(d MouseDispatcher, opts ...Option) *MouseEventBus {
	b := &MouseEventBus{
		dispatcher:   d,
		tickInterval: defaultTickInterval,
		lastTick:     time.Now(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = log.New(os.Stderr, "inputbus: ", log.LstdFlags)
	}
	return b
}

// Record is called from the input reader for every captured mouse
// event. Press/release dispatch synchronously before Record returns;
// move/wheel events are buffered and only flushed by MaybeTick.
func (b *MouseEventBus) Record(ctx context.Context, ev Event) {
	switch ev.Kind {
	case EventPress:
		b.press(ctx, ev)
	case EventRelease:
		b.release(ctx, ev)
	case EventMove:
		b.mu.Lock()
		b.pending = pendingCell{kind: pendingMove, x: ev.X, y: ev.Y}
		b.mu.Unlock()
	case EventWheelLine, EventWheelPage:
		b.mu.Lock()
		b.pending = pendingCell{kind: pendingWheel, x: ev.X, y: ev.Y, deltaY: wheelDelta(ev, b.naturalScroll)}
		b.mu.Unlock()
	}
}

func wheelDelta(ev Event, natural bool) float64 {
	magnitude := wheelLineDelta
	if ev.Kind == EventWheelPage {
		magnitude = ev.ViewportH - 40
	}
	delta := magnitude * ev.Direction
	if natural {
		delta = -delta
	}
	return delta
}

// MaybeTick gates tick() behind the fixed coalescing interval; call it
// frequently (e.g. once per reader loop iteration) and it is a no-op
// except roughly every tickInterval.
func (b *MouseEventBus) MaybeTick(ctx context.Context) {
	b.mu.Lock()
	now := time.Now()
	if now.Sub(b.lastTick) < b.tickInterval {
		b.mu.Unlock()
		return
	}
	b.lastTick = now
	b.mu.Unlock()
	b.tick(ctx)
}

func (b *MouseEventBus) tick(ctx context.Context) {
	b.mu.Lock()
	pending := b.pending
	b.pending = pendingCell{}
	skip := pending.kind == pendingMove && b.hasDispatchedMove &&
		pending.x == b.lastMoveX && pending.y == b.lastMoveY
	b.mu.Unlock()

	switch pending.kind {
	case pendingNone:
		return
	case pendingMove:
		if skip {
			return
		}
		b.dispatch(ctx, input.NewDispatchMouseEvent(input.MouseMoved, pending.x, pending.y))
		b.mu.Lock()
		b.hasDispatchedMove = true
		b.lastMoveX, b.lastMoveY = pending.x, pending.y
		b.mu.Unlock()
	case pendingWheel:
		ev := input.NewDispatchMouseEvent(input.MouseWheel, pending.x, pending.y).
			SetWheelDelta(pending.deltaX, pending.deltaY)
		b.dispatch(ctx, ev)
	}
}

// press implements spec.md 4.6's press sequence: an implicit hover-arm
// mouseMoved with buttons=0, a second mouseMoved with the button already
// held (the "pre-click arm" the concrete scenario in spec.md 8
// describes), then mousePressed itself with the detected clickCount.
func (b *MouseEventBus) press(ctx context.Context, ev Event) {
	buttons := buttonBit(ev.Button)

	b.mu.Lock()
	count := b.registerPress(ev)
	b.mu.Unlock()

	b.dispatch(ctx, input.NewDispatchMouseEvent(input.MouseMoved, ev.X, ev.Y))
	b.dispatch(ctx, input.NewDispatchMouseEvent(input.MouseMoved, ev.X, ev.Y).SetButton(ev.Button, buttons))
	b.dispatch(ctx, input.NewDispatchMouseEvent(input.MousePressed, ev.X, ev.Y).SetButton(ev.Button, buttons).SetClickCount(count))

	b.mu.Lock()
	b.hasDispatchedMove = true
	b.lastMoveX, b.lastMoveY = ev.X, ev.Y
	b.mu.Unlock()
}

func (b *MouseEventBus) release(ctx context.Context, ev Event) {
	b.mu.Lock()
	count := b.click.count
	b.mu.Unlock()

	b.dispatch(ctx, input.NewDispatchMouseEvent(input.MouseReleased, ev.X, ev.Y).SetButton(ev.Button, 0).SetClickCount(count))
}

// registerPress updates the double/triple-click state machine and
// returns the clickCount this press carries. Caller holds b.mu.
func (b *MouseEventBus) registerPress(ev Event) int64 {
	now := time.Now()
	dx := ev.X - b.click.lastX
	dy := ev.Y - b.click.lastY
	withinWindow := b.click.count > 0 && now.Sub(b.click.lastTime) <= doubleClickWindow
	withinRadius := math.Hypot(dx, dy) <= doubleClickRadius
	sameButton := ev.Button == b.click.lastButton

	if withinWindow && withinRadius && sameButton {
		b.click.count++
		if b.click.count > 3 {
			b.click.count = 3
		}
	} else {
		b.click.count = 1
	}
	b.click.lastTime = now
	b.click.lastX, b.click.lastY = ev.X, ev.Y
	b.click.lastButton = ev.Button
	return b.click.count
}

func buttonBit(b input.MouseButton) int64 {
	switch b {
	case input.ButtonLeft:
		return 1
	case input.ButtonRight:
		return 2
	case input.ButtonMiddle:
		return 4
	default:
		return 0
	}
}

func (b *MouseEventBus) dispatch(ctx context.Context, ev *input.DispatchMouseEvent) {
	if err := b.dispatcher.DispatchMouseEvent(ctx, ev); err != nil {
		b.logger.Printf("mouse dispatch failed, dropping: %v", err)
	}
}
