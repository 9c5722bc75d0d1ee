// Package framepool implements a triple-buffered, reference-counted arena
// for screencast frame payloads. One writer (a transport's reader thread)
// publishes decoded frames; one or more readers (a renderer polling at its
// own cadence) borrow the newest frame without blocking the writer.
//
// The pool never allocates on the steady-state write path: each of the
// three slots owns a fixed byte buffer sized once at construction, and
// writeFrame copies into whichever slot is free rather than handing out a
// new buffer per frame.
package framepool

import "sync/atomic"

// MinSlotCapacity is the minimum per-slot buffer size, matching the largest
// screencast frame Chromium is expected to emit at default quality settings.
const MinSlotCapacity = 512 * 1024

// numSlots decouples one writer from one reader while tolerating a brief
// second-reader overlap (e.g. a resize-triggered frame arriving mid-acquire).
const numSlots = 3

// FrameSlot is a fixed-capacity buffer plus the metadata a writer attaches
// to it. A slot is idle (refcount 0, not latest), written (refcount 0, the
// newest slot), or acquired (refcount >= 1); the writer never overwrites an
// acquired slot.
type FrameSlot struct {
	buf       []byte
	length    int
	sessionID string
	width     int
	height    int

	generation atomic.Uint64
	refcount   atomic.Int32
}

// Bytes returns the slot's current payload. Valid only while the caller
// holds a reference obtained from FramePool.AcquireLatestFrame.
func (s *FrameSlot) Bytes() []byte {
	return s.buf[:s.length]
}

// Generation returns the pool generation this slot's payload was written
// with.
func (s *FrameSlot) Generation() uint64 {
	return s.generation.Load()
}

// SessionID returns the writer-supplied session identifier associated with
// this slot's payload (the CDP routing sessionId of the Page.screencastFrame
// that produced it, not a frame sessionId).
func (s *FrameSlot) SessionID() string {
	return s.sessionID
}

// Dimensions returns the device width/height metadata attached at write time.
func (s *FrameSlot) Dimensions() (width, height int) {
	return s.width, s.height
}

// FramePool is an ordered sequence of three FrameSlots, a pool-wide
// monotonic generation counter, and an atomic index of the latest-written
// slot. At most one goroutine may call WriteFrame at a time; AcquireLatestFrame
// and Release may be called concurrently from any number of goroutines.
type FramePool struct {
	slots [numSlots]*FrameSlot

	generation atomic.Uint64
	latest     atomic.Int32 // index into slots, or -1 if nothing written yet
	dropped    atomic.Uint64
}

// New constructs a FramePool whose slots each have the given capacity.
// A capacity below MinSlotCapacity is rounded up to it.
func New(slotCapacity int) *FramePool {
	if slotCapacity < MinSlotCapacity {
		slotCapacity = MinSlotCapacity
	}
	p := &FramePool{}
	p.latest.Store(-1)
	for i := range p.slots {
		p.slots[i] = &FrameSlot{buf: make([]byte, slotCapacity)}
	}
	return p
}

// WriteFrame copies payload into a slot that is not the current latest and
// has refcount 0, publishes it as the new latest, and returns its
// generation. If every non-latest slot is currently acquired, the frame is
// dropped (dropped=true) and the generation counter still advances, so
// callers can detect skips from the sequence alone.
func (p *FramePool) WriteFrame(payload []byte, sessionID string, width, height int) (generation uint64, dropped bool) {
	latestIdx := p.latest.Load()

	candidate := -1
	for i, s := range p.slots {
		if int32(i) == latestIdx {
			continue
		}
		if s.refcount.Load() == 0 {
			candidate = i
			break
		}
	}

	gen := p.generation.Add(1)
	if candidate < 0 {
		p.dropped.Add(1)
		return gen, true
	}

	slot := p.slots[candidate]
	if cap(slot.buf) < len(payload) {
		slot.buf = make([]byte, len(payload))
	}
	slot.buf = slot.buf[:cap(slot.buf)]
	n := copy(slot.buf, payload)
	slot.length = n
	slot.sessionID = sessionID
	slot.width = width
	slot.height = height
	slot.generation.Store(gen)

	p.latest.Store(int32(candidate))
	return gen, false
}

// AcquireLatestFrame increments the refcount of the newest written slot and
// returns a reference to it, or ok=false if nothing has been written yet.
// It never blocks. If a newer frame is published in the narrow window
// between reading the latest index and incrementing its refcount, the
// acquire is retried (bounded) so the caller observes the actual latest
// generation rather than one that was immediately superseded.
func (p *FramePool) AcquireLatestFrame() (slot *FrameSlot, generation uint64, ok bool) {
	const maxRetries = 4
	for attempt := 0; attempt < maxRetries; attempt++ {
		idx := p.latest.Load()
		if idx < 0 {
			return nil, 0, false
		}
		s := p.slots[idx]
		s.refcount.Add(1)
		if p.latest.Load() == idx {
			return s, s.generation.Load(), true
		}
		s.refcount.Add(-1)
	}
	// Pathological churn: settle for whatever is latest now rather than
	// spin indefinitely. Once acquired, the reference is valid regardless
	// of further writes.
	idx := p.latest.Load()
	if idx < 0 {
		return nil, 0, false
	}
	s := p.slots[idx]
	s.refcount.Add(1)
	return s, s.generation.Load(), true
}

// Release decrements a slot's refcount. Once it reaches zero the slot is
// eligible to be overwritten by the next WriteFrame call.
func (p *FramePool) Release(slot *FrameSlot) {
	slot.refcount.Add(-1)
}

// DroppedFrames returns the number of WriteFrame calls that found every
// non-latest slot acquired and had to drop the frame. Drops are not errors;
// the renderer only ever needs the newest frame.
func (p *FramePool) DroppedFrames() uint64 {
	return p.dropped.Load()
}

// Generation returns the pool's current generation counter: the number of
// WriteFrame calls made so far, regardless of how many were dropped.
func (p *FramePool) Generation() uint64 {
	return p.generation.Load()
}
