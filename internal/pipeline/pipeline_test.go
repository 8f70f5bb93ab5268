package pipeline

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/e7canasta/renderhooks/internal/hooks"
)

// fakeHost serves deterministic snapshots: the frame counter is written
// into the first color channel so block contents are verifiable.
type fakeHost struct {
	width, height int
	frame         uint64
	pixelsErr     error
}

func (f *fakeHost) Pixels() (*hooks.Pixels, error) {
	if f.pixelsErr != nil {
		return nil, f.pixelsErr
	}
	data := make([]byte, f.height*f.width*hooks.Channels)
	for i := 0; i < len(data); i += hooks.Channels {
		data[i] = 0xff
		data[i+1] = byte(f.frame)
		data[i+2] = byte(f.frame >> 8)
		data[i+3] = 0x42
	}
	return &hooks.Pixels{Width: f.width, Height: f.height, Data: data}, nil
}

func (f *fakeHost) FrameCount() uint64 { return f.frame }

func (f *fakeHost) SaveFrame(string, bool) error { return nil }

// driveToDone fires the hook (advancing the host frame each time) until
// it reports done, with a deadline so a wedged pipeline fails the test
// instead of hanging it.
func driveToDone(t *testing.T, h *BlockHook, host *fakeHost) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		status, err := h.Fire(host)
		if err != nil {
			t.Fatalf("Fire() failed: %v", err)
		}
		if status == hooks.StatusDone {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("pipeline did not complete; stats: %+v", h.Stats())
		}
		host.frame++
		time.Sleep(time.Millisecond)
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

// TestPipelineBlockOrderAndSizing verifies batch_size=4, limit=10
// produces exactly three blocks of sizes 4, 4, 2, in order, after which
// the hook reports done and the worker stops.
func TestPipelineBlockOrderAndSizing(t *testing.T) {
	var mu sync.Mutex
	var sizes []int

	h, err := New(Config{
		Limit:     10,
		BatchSize: 4,
		Process: func(b *Block) error {
			mu.Lock()
			sizes = append(sizes, b.Len())
			mu.Unlock()
			return nil
		},
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	host := &fakeHost{width: 3, height: 2}
	driveToDone(t, h, host)

	mu.Lock()
	got := append([]int(nil), sizes...)
	mu.Unlock()
	want := []int{4, 4, 2}
	if len(got) != len(want) {
		t.Fatalf("processed block sizes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("processed block sizes = %v, want %v", got, want)
		}
	}

	stats := h.Stats()
	if stats.FramesCaptured != 10 {
		t.Errorf("FramesCaptured = %d, want 10", stats.FramesCaptured)
	}
	if stats.BlocksSubmitted != 3 || stats.BlocksProcessed != 3 {
		t.Errorf("submitted/processed = %d/%d, want 3/3",
			stats.BlocksSubmitted, stats.BlocksProcessed)
	}

	waitFor(t, "worker stop", func() bool { return h.Stats().WorkerStopped })
}

// TestPipelineBlockContents verifies frames land in blocks in capture
// order with the snapshot's leading channel dropped.
func TestPipelineBlockContents(t *testing.T) {
	type captured struct {
		lead  []byte
		count int
	}
	var mu sync.Mutex
	var blocks []captured

	h, err := New(Config{
		Limit:     5,
		BatchSize: 2,
		Process: func(b *Block) error {
			c := captured{count: b.Len()}
			for i := 0; i < b.Len(); i++ {
				c.lead = append(c.lead, b.Frame(i)[0])
			}
			mu.Lock()
			blocks = append(blocks, c)
			mu.Unlock()
			return nil
		},
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	host := &fakeHost{width: 2, height: 2}
	driveToDone(t, h, host)

	mu.Lock()
	defer mu.Unlock()
	if len(blocks) != 3 {
		t.Fatalf("processed %d blocks, want 3", len(blocks))
	}
	// Frames 0..4 across blocks of 2, 2, 1.
	wantLead := [][]byte{{0, 1}, {2, 3}, {4}}
	for i, blk := range blocks {
		if blk.count != len(wantLead[i]) {
			t.Errorf("block %d length = %d, want %d", i, blk.count, len(wantLead[i]))
			continue
		}
		for j, lead := range wantLead[i] {
			if blk.lead[j] != lead {
				t.Errorf("block %d frame %d lead channel = %d, want %d",
					i, j, blk.lead[j], lead)
			}
		}
	}
}

// TestPipelineBufferReuse verifies the producer reuses recycled storage:
// once a block has been processed and returned, the next acquisition
// takes it instead of allocating.
func TestPipelineBufferReuse(t *testing.T) {
	h, err := New(Config{
		Limit:     12,
		BatchSize: 4,
		Process:   func(*Block) error { return nil },
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	host := &fakeHost{width: 3, height: 2}

	// Fill and submit the first block.
	for i := 0; i < 4; i++ {
		if _, err := h.Fire(host); err != nil {
			t.Fatalf("Fire() failed: %v", err)
		}
		host.frame++
	}
	waitFor(t, "first block processed", func() bool {
		return h.Stats().BlocksProcessed == 1
	})

	// The recycle queue now holds the processed block; the next
	// acquisition must take it rather than allocate.
	for i := 0; i < 4; i++ {
		if _, err := h.Fire(host); err != nil {
			t.Fatalf("Fire() failed: %v", err)
		}
		host.frame++
	}

	stats := h.Stats()
	if stats.BlocksAllocated != 1 {
		t.Errorf("BlocksAllocated = %d, want 1 (second block must reuse storage)",
			stats.BlocksAllocated)
	}
	if stats.BlocksReused != 1 {
		t.Errorf("BlocksReused = %d, want 1", stats.BlocksReused)
	}

	driveToDone(t, h, host)
}

// TestPipelineProcessorErrorTerminatesHook verifies the worker-side
// guard: a failing processing function stops the worker and surfaces the
// error through the producer hook instead of dying silently.
func TestPipelineProcessorErrorTerminatesHook(t *testing.T) {
	failure := errors.New("model exploded")
	h, err := New(Config{
		Limit:     8,
		BatchSize: 2,
		Process:   func(*Block) error { return failure },
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	host := &fakeHost{width: 2, height: 2}
	for i := 0; i < 2; i++ {
		if _, err := h.Fire(host); err != nil {
			t.Fatalf("Fire() failed: %v", err)
		}
		host.frame++
	}

	waitFor(t, "worker stop after failure", func() bool {
		return h.Stats().WorkerStopped
	})

	_, err = h.Fire(host)
	if err == nil || !errors.Is(err, failure) {
		t.Errorf("Fire() after worker failure = %v, want wrapped %v", err, failure)
	}
}

// TestPipelineProcessorPanicIsCaptured verifies a panicking processing
// function converts to an error rather than killing the worker goroutine.
func TestPipelineProcessorPanicIsCaptured(t *testing.T) {
	h, err := New(Config{
		Limit:     2,
		BatchSize: 2,
		Process:   func(*Block) error { panic("boom") },
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	host := &fakeHost{width: 2, height: 2}
	for i := 0; i < 2; i++ {
		if _, err := h.Fire(host); err != nil {
			t.Fatalf("Fire() failed: %v", err)
		}
		host.frame++
	}

	waitFor(t, "worker stop after panic", func() bool {
		return h.Stats().WorkerStopped
	})

	if _, err := h.Fire(host); err == nil {
		t.Error("Fire() must surface the captured panic as an error")
	}
}

// TestPipelineCompletionCallbackRunsOnce verifies the worker's completion
// callback fires exactly once, whatever the exit path.
func TestPipelineCompletionCallbackRunsOnce(t *testing.T) {
	var mu sync.Mutex
	completions := 0

	h, err := New(Config{
		Limit:     4,
		BatchSize: 2,
		Process:   func(*Block) error { return nil },
		OnComplete: func() {
			mu.Lock()
			completions++
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	host := &fakeHost{width: 2, height: 2}
	driveToDone(t, h, host)

	waitFor(t, "completion callback", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return completions == 1
	})

	// Close after normal completion must not re-run the callback.
	if err := h.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if completions != 1 {
		t.Errorf("completion callback ran %d times, want 1", completions)
	}
}

// TestPipelineCloseStopsWorker verifies teardown before completion:
// Close signals the worker and waits for it to exit.
func TestPipelineCloseStopsWorker(t *testing.T) {
	h, err := New(Config{
		Limit:     100,
		BatchSize: 10,
		Process:   func(*Block) error { return nil },
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	host := &fakeHost{width: 2, height: 2}
	if _, err := h.Fire(host); err != nil {
		t.Fatalf("Fire() failed: %v", err)
	}

	if err := h.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if !h.Stats().WorkerStopped {
		t.Error("worker must have exited after Close")
	}
	// Idempotent.
	if err := h.Close(); err != nil {
		t.Fatalf("second Close() failed: %v", err)
	}
}

// TestPipelineThrottles verifies the producer respects the capture
// period.
func TestPipelineThrottles(t *testing.T) {
	// Frozen clock: only the first invocation may pass the throttle.
	frozen := time.Unix(1000, 0)
	clock := func() time.Time { return frozen }

	h, err := New(Config{
		Period:    time.Second,
		Limit:     10,
		BatchSize: 5,
		Process:   func(*Block) error { return nil },
		Clock:     clock,
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer h.Close()

	host := &fakeHost{width: 2, height: 2}
	for i := 0; i < 5; i++ {
		if _, err := h.Fire(host); err != nil {
			t.Fatalf("Fire() failed: %v", err)
		}
		host.frame++
	}

	if got := h.Stats().FramesCaptured; got != 1 {
		t.Errorf("FramesCaptured = %d, want 1 (rapid invocations within period)", got)
	}
}

// TestPipelineConfigValidation exercises fail-fast construction.
func TestPipelineConfigValidation(t *testing.T) {
	if _, err := New(Config{Limit: 10, BatchSize: 4}); err == nil {
		t.Error("New must reject a nil process func")
	}
	if _, err := New(Config{Limit: 0, BatchSize: 4, Process: func(*Block) error { return nil }}); err == nil {
		t.Error("New must reject a non-positive limit")
	}
	if _, err := New(Config{Limit: 10, BatchSize: 0, Process: func(*Block) error { return nil }}); err == nil {
		t.Error("New must reject a non-positive batch size")
	}
}

// TestPipelineShapeMismatch verifies a host that changes snapshot shape
// mid-capture terminates the hook rather than corrupting a block.
func TestPipelineShapeMismatch(t *testing.T) {
	h, err := New(Config{
		Limit:     4,
		BatchSize: 4,
		Process:   func(*Block) error { return nil },
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer h.Close()

	host := &fakeHost{width: 2, height: 2}
	if _, err := h.Fire(host); err != nil {
		t.Fatalf("Fire() failed: %v", err)
	}

	host.width = 3
	if _, err := h.Fire(host); err == nil {
		t.Error("Fire() must reject a snapshot whose shape changed mid-block")
	}
}
