package pipeline

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/e7canasta/renderhooks/internal/hooks"
)

// stopTimeout bounds how long Close waits for the worker goroutine.
const stopTimeout = 3 * time.Second

// Config configures a queued block-processing pipeline.
type Config struct {
	// Period is the minimum wall-clock interval between captured frames.
	Period time.Duration

	// Limit is the total number of frames to capture across all blocks.
	Limit int

	// BatchSize is the number of frames per block.
	BatchSize int

	// Process is applied to each completed block on the worker goroutine.
	// It must respect Block.Len: a partial final block carries fewer
	// frames than its capacity. Required.
	Process func(*Block) error

	// OnComplete, when non-nil, runs exactly once when the worker
	// goroutine exits.
	OnComplete func()

	// Clock overrides the throttle clock. Nil means time.Now.
	Clock hooks.Clock
}

// Stats is a snapshot of pipeline operational state.
type Stats struct {
	// FramesCaptured is the number of frames copied into blocks so far.
	FramesCaptured uint64

	// BlocksSubmitted is the number of blocks handed to the work queue.
	BlocksSubmitted uint64

	// BlocksProcessed is the number of blocks the worker has finished
	// and returned through the recycle queue.
	BlocksProcessed uint64

	// BlocksAllocated counts fresh block allocations.
	BlocksAllocated uint64

	// BlocksReused counts blocks acquired from the recycle queue.
	// In steady state allocation stops and this counter grows instead.
	BlocksReused uint64

	// WorkerStopped reports whether the worker goroutine has exited.
	WorkerStopped bool
}

// BlockHook is the buffering producer of the batch pipeline. It runs on
// the render goroutine, accumulating throttled frame snapshots into
// reusable blocks and handing full blocks to the background worker.
//
// Decoupling the producer (tied to render cadence) from the consumer
// (tied to processing cost) through the two hand-off channels keeps user
// processing off the render loop; recycling blocks amortizes allocation
// to a handful of buffers for arbitrarily long captures.
type BlockHook struct {
	lc        hooks.Lifecycle
	throttle  hooks.Throttle
	limit     int
	batchSize int

	work    chan *Block
	recycle chan *Block
	w       *worker

	// Producer state, touched only on the render goroutine.
	current    *Block
	rows, cols int
	shapeSet   bool

	// Counters are atomic so Stats can snapshot from any goroutine.
	captured  atomic.Uint64
	submitted atomic.Uint64
	allocated atomic.Uint64
	reused    atomic.Uint64
}

// New creates a block-processing pipeline hook and starts its worker
// goroutine. The caller must ensure the hook reaches a terminal state or
// call Close, or the worker leaks.
func New(cfg Config) (*BlockHook, error) {
	if cfg.Process == nil {
		return nil, fmt.Errorf("renderhooks: pipeline process func is required")
	}
	if cfg.Limit <= 0 {
		return nil, fmt.Errorf("renderhooks: pipeline limit must be positive, got %d", cfg.Limit)
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("renderhooks: pipeline batch size must be positive, got %d", cfg.BatchSize)
	}

	// Capacity covers every block the pipeline can ever create: at most
	// ceil(limit/batch) distinct blocks exist, so channel sends on either
	// side can never block the render loop or the worker.
	maxBlocks := (cfg.Limit + cfg.BatchSize - 1) / cfg.BatchSize

	h := &BlockHook{
		lc:        hooks.NewLifecycle("block_pipeline"),
		throttle:  hooks.NewThrottle(cfg.Period, cfg.Clock),
		limit:     cfg.Limit,
		batchSize: cfg.BatchSize,
		work:      make(chan *Block, maxBlocks),
		recycle:   make(chan *Block, maxBlocks),
	}
	h.w = newWorker(h.work, h.recycle, cfg.Process, cfg.OnComplete)
	go h.w.run()

	slog.Debug("renderhooks: block pipeline started",
		"limit", cfg.Limit,
		"batch_size", cfg.BatchSize,
		"period", cfg.Period,
		"max_blocks", maxBlocks,
	)
	return h, nil
}

func (b *BlockHook) Name() string            { return b.lc.Name() }
func (b *BlockHook) State() *hooks.Lifecycle { return &b.lc }

// Stats returns a snapshot of pipeline counters. Thread-safe.
func (b *BlockHook) Stats() Stats {
	return Stats{
		FramesCaptured:  b.captured.Load(),
		BlocksSubmitted: b.submitted.Load(),
		BlocksProcessed: b.w.processed.Load(),
		BlocksAllocated: b.allocated.Load(),
		BlocksReused:    b.reused.Load(),
		WorkerStopped:   b.w.stopped(),
	}
}

// Fire captures one throttled frame into the current block, submits the
// block when it fills (or when the capture limit lands mid-block), and
// completes once the limit is reached and the worker has drained every
// submitted block.
func (b *BlockHook) Fire(h hooks.Host) (hooks.Status, error) {
	// A worker-side failure terminates the producer hook too: the same
	// capture-and-terminate discipline as the sampler hooks, surfaced on
	// the next invocation.
	if err := b.w.err(); err != nil {
		b.w.signalStop()
		return hooks.StatusDone, err
	}

	if !b.throttle.Allow() {
		return hooks.StatusContinue, nil
	}

	captured := int(b.captured.Load())
	if captured < b.limit {
		px, err := h.Pixels()
		if err != nil {
			b.w.signalStop()
			return hooks.StatusDone, fmt.Errorf("renderhooks: pipeline capture failed: %w", err)
		}
		if !b.shapeSet {
			b.rows, b.cols = px.Height, px.Width
			b.shapeSet = true
		}

		if b.current == nil {
			b.current = b.acquire()
		}
		if err := b.current.append(px); err != nil {
			b.w.signalStop()
			return hooks.StatusDone, err
		}
		captured++
		b.captured.Store(uint64(captured))

		if b.current.Len() == b.batchSize || captured == b.limit {
			if err := b.submit(b.current); err != nil {
				b.w.signalStop()
				return hooks.StatusDone, err
			}
			b.current = nil
		}
	}

	if captured == b.limit && b.drained() {
		b.w.signalStop()
		return hooks.StatusDone, nil
	}
	return hooks.StatusContinue, nil
}

// acquire returns the next block to fill: a recycled block when one is
// waiting (reuse - no allocation in steady state), else a fresh one.
func (b *BlockHook) acquire() *Block {
	select {
	case blk := <-b.recycle:
		blk.reset()
		b.reused.Add(1)
		return blk
	default:
		b.allocated.Add(1)
		return newBlock(b.batchSize, b.rows, b.cols)
	}
}

// submit hands a completed block to the work queue. Channel capacity
// covers every live block, so a full queue indicates a bookkeeping bug
// rather than backpressure.
func (b *BlockHook) submit(blk *Block) error {
	select {
	case b.work <- blk:
		b.submitted.Add(1)
		slog.Debug("renderhooks: block submitted",
			"trace_id", blk.TraceID,
			"frames", blk.Len(),
			"submitted", b.submitted.Load(),
		)
		return nil
	default:
		return fmt.Errorf("renderhooks: work queue full (%d blocks)", cap(b.work))
	}
}

// drained reports that the worker has processed every submitted block.
// Stronger than "queue empty": a block popped but still being processed
// counts as undrained.
func (b *BlockHook) drained() bool {
	return b.w.processed.Load() == b.submitted.Load()
}

// Close signals the worker to stop and waits for it to exit, bounded by a
// timeout. Called by the registry on removal or teardown. Idempotent.
func (b *BlockHook) Close() error {
	b.w.signalStop()
	select {
	case <-b.w.done:
		return nil
	case <-time.After(stopTimeout):
		slog.Warn("renderhooks: pipeline worker stop timeout",
			"timeout", stopTimeout,
		)
		return fmt.Errorf("renderhooks: pipeline worker did not stop within %v", stopTimeout)
	}
}
