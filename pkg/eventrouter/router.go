// Package eventrouter demuxes the CDP events a CdpClient queues (one
// eventQueue per transport, as pkg/devtools/queue.go's doc comment
// already anticipates: "awaiting a single consumer (one EventRouter per
// transport)") into typed, per-category channels: navigation, dialogs,
// file choosers, console output, downloads, and target discovery.
package eventrouter

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"sync/atomic"
	"time"

	"github.com/daabr/termweb-core/pkg/devtools"
	"github.com/daabr/termweb-core/pkg/devtools/browser"
	"github.com/daabr/termweb-core/pkg/devtools/page"
	"github.com/daabr/termweb-core/pkg/devtools/runtime"
	"github.com/daabr/termweb-core/pkg/devtools/target"
)

// chanCapacity bounds each category channel; Pump drops the newly
// decoded event on overflow rather than block (unlike pkg/devtools's
// response and event queues, which drop their oldest entry).
const chanCapacity = 64

// Source polls one transport's event queue. *client.CdpClient.NextNavEvent
// and NextBrowserEvent both satisfy this signature.
type Source func() (devtools.EventMessage, bool)

// Option configures a Router at construction time.
type Option func(*Router)

// WithLogger overrides the default stderr logger used to report
// undecodable events and dropped-on-overflow events.
func WithLogger(l *log.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// WithPollInterval overrides the default interval Pump polls its Source
// at when the queue is empty.
func WithPollInterval(d time.Duration) Option {
	return func(r *Router) { r.pollInterval = d }
}

// Router owns one typed channel per event category this module cares
// about. Every channel is buffered; a slow subscriber only loses new
// events of its own category while its channel is full, never blocks
// Pump, and never affects any other category.
type Router struct {
	FrameNavigated          chan page.FrameNavigated
	NavigatedWithinDocument chan page.NavigatedWithinDocument
	DialogOpening           chan page.JavascriptDialogOpening
	FileChooserOpened       chan page.FileChooserOpened
	ConsoleAPICalled        chan runtime.ConsoleAPICalled
	DownloadWillBegin       chan browser.DownloadWillBegin
	DownloadProgress        chan browser.DownloadProgress
	TargetCreated           chan target.TargetCreated
	TargetInfoChanged       chan target.TargetInfoChanged

	logger       *log.Logger
	pollInterval time.Duration
	dropped      uint64
	unhandled    uint64
}

// New constructs a Router with every category channel allocated.
func New(opts ...Option) *Router {
	r := &Router{
		FrameNavigated:          make(chan page.FrameNavigated, chanCapacity),
		NavigatedWithinDocument: make(chan page.NavigatedWithinDocument, chanCapacity),
		DialogOpening:           make(chan page.JavascriptDialogOpening, chanCapacity),
		FileChooserOpened:       make(chan page.FileChooserOpened, chanCapacity),
		ConsoleAPICalled:        make(chan runtime.ConsoleAPICalled, chanCapacity),
		DownloadWillBegin:       make(chan browser.DownloadWillBegin, chanCapacity),
		DownloadProgress:        make(chan browser.DownloadProgress, chanCapacity),
		TargetCreated:           make(chan target.TargetCreated, chanCapacity),
		TargetInfoChanged:       make(chan target.TargetInfoChanged, chanCapacity),
		pollInterval:            10 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = log.New(os.Stderr, "eventrouter: ", log.LstdFlags)
	}
	return r
}

// DroppedCount reports how many decoded events were discarded because
// their category channel was full.
func (r *Router) DroppedCount() uint64 { return atomic.LoadUint64(&r.dropped) }

// UnhandledCount reports how many events arrived with a method this
// router doesn't route anywhere.
func (r *Router) UnhandledCount() uint64 { return atomic.LoadUint64(&r.unhandled) }

// Pump drains src until ctx is done, dispatching every decoded event to
// its category channel. Call it once per transport's event queue (so
// typically twice: once for NextNavEvent, once for NextBrowserEvent) in
// its own goroutine.
func (r *Router) Pump(ctx context.Context, src Source) {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()
	for {
		for {
			ev, ok := src()
			if !ok {
				break
			}
			r.dispatch(ev)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (r *Router) dispatch(ev devtools.EventMessage) {
	switch ev.Method {
	case "Page.frameNavigated":
		decode(r, ev, r.FrameNavigated)
	case "Page.navigatedWithinDocument":
		decode(r, ev, r.NavigatedWithinDocument)
	case "Page.javascriptDialogOpening":
		decode(r, ev, r.DialogOpening)
	case "Page.fileChooserOpened":
		decode(r, ev, r.FileChooserOpened)
	case "Runtime.consoleAPICalled":
		decode(r, ev, r.ConsoleAPICalled)
	case "Browser.downloadWillBegin":
		decode(r, ev, r.DownloadWillBegin)
	case "Browser.downloadProgress":
		decode(r, ev, r.DownloadProgress)
	case "Target.targetCreated":
		decode(r, ev, r.TargetCreated)
	case "Target.targetInfoChanged":
		decode(r, ev, r.TargetInfoChanged)
	default:
		atomic.AddUint64(&r.unhandled, 1)
	}
}

// decode unmarshals ev.Params into a fresh T and offers it to ch,
// dropping it (and counting the drop) if ch is full.
func decode[T any](r *Router, ev devtools.EventMessage, ch chan T) {
	var v T
	if err := json.Unmarshal(ev.Params, &v); err != nil {
		r.logger.Printf("%s: %v", ev.Method, err)
		return
	}
	select {
	case ch <- v:
	default:
		atomic.AddUint64(&r.dropped, 1)
	}
}
