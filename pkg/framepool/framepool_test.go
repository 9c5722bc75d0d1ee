package framepool_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/daabr/termweb-core/pkg/framepool"
)

func TestWriteFrameThenAcquireRoundTrips(t *testing.T) {
	p := framepool.New(0)
	payload := []byte("hello screencast frame")
	gen, dropped := p.WriteFrame(payload, "sess-1", 1280, 720)
	if dropped {
		t.Fatalf("WriteFrame() dropped the first write")
	}
	if gen != 1 {
		t.Fatalf("WriteFrame() generation = %d, want 1", gen)
	}

	slot, gotGen, ok := p.AcquireLatestFrame()
	if !ok {
		t.Fatal("AcquireLatestFrame() ok = false, want true")
	}
	defer p.Release(slot)
	if gotGen != gen {
		t.Errorf("AcquireLatestFrame() generation = %d, want %d", gotGen, gen)
	}
	if string(slot.Bytes()) != string(payload) {
		t.Errorf("AcquireLatestFrame() bytes = %q, want %q", slot.Bytes(), payload)
	}
	w, h := slot.Dimensions()
	if w != 1280 || h != 720 {
		t.Errorf("Dimensions() = (%d, %d), want (1280, 720)", w, h)
	}
	if slot.SessionID() != "sess-1" {
		t.Errorf("SessionID() = %q, want %q", slot.SessionID(), "sess-1")
	}
}

func TestAcquireLatestFrameEmptyPool(t *testing.T) {
	p := framepool.New(0)
	if _, _, ok := p.AcquireLatestFrame(); ok {
		t.Error("AcquireLatestFrame() on empty pool ok = true, want false")
	}
}

func TestGenerationCounterTracksAllWritesRegardlessOfDrops(t *testing.T) {
	p := framepool.New(0)

	// Acquire and hold references to two of the three slots. The first
	// extra write lands in the third slot, which then becomes latest, so
	// every write after it has nowhere to land and must drop.
	var held []*framepool.FrameSlot
	p.WriteFrame([]byte("f1"), "s", 1, 1)
	s1, _, _ := p.AcquireLatestFrame()
	held = append(held, s1)
	p.WriteFrame([]byte("f2"), "s", 1, 1)
	s2, _, _ := p.AcquireLatestFrame()
	held = append(held, s2)

	const extraWrites = 10
	for i := 0; i < extraWrites; i++ {
		p.WriteFrame([]byte(fmt.Sprintf("frame-%d", i)), "s", 1, 1)
	}

	wantGen := uint64(2 + extraWrites)
	if got := p.Generation(); got != wantGen {
		t.Errorf("Generation() = %d, want %d", got, wantGen)
	}
	if p.DroppedFrames() == 0 {
		t.Error("DroppedFrames() = 0, want > 0 once both non-latest slots are held")
	}

	for _, s := range held {
		p.Release(s)
	}
}

func TestConsumerPullFlowControl(t *testing.T) {
	// The pool side of spec.md scenario 3: 10 writes, reader acquires only
	// generations 3 and 8 — exactly two acquires should succeed at those
	// generations. Acknowledgement messages are not checked here; the pool
	// knows nothing about them.
	p := framepool.New(0)
	var acquiredGens []uint64
	for i := 1; i <= 10; i++ {
		p.WriteFrame([]byte(fmt.Sprintf("frame-%d", i)), fmt.Sprintf("routing-%d", i), 100, 100)
		if i == 3 || i == 8 {
			slot, gen, ok := p.AcquireLatestFrame()
			if !ok {
				t.Fatalf("AcquireLatestFrame() at write %d: ok = false", i)
			}
			acquiredGens = append(acquiredGens, gen)
			p.Release(slot)
		}
	}
	if len(acquiredGens) != 2 || acquiredGens[0] != 3 || acquiredGens[1] != 8 {
		t.Errorf("acquired generations = %v, want [3 8]", acquiredGens)
	}
}

func TestConcurrentWriterAndReadersNeverObserveATornPayload(t *testing.T) {
	p := framepool.New(0)
	const writes = 500
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := 0; i < writes; i++ {
			payload := []byte(fmt.Sprintf("payload-%06d", i))
			p.WriteFrame(payload, "s", 10, 10)
		}
	}()

	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				slot, _, ok := p.AcquireLatestFrame()
				if !ok {
					continue
				}
				b := slot.Bytes()
				if len(b) > 0 {
					var n int
					if _, err := fmt.Sscanf(string(b), "payload-%06d", &n); err != nil {
						t.Errorf("observed malformed/torn payload: %q", b)
					}
				}
				p.Release(slot)
			}
		}()
	}
	<-done
	wg.Wait()
}
