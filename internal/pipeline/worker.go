package pipeline

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// worker drains completed blocks independently of the render-loop cadence.
//
// Goroutine topology: exactly one worker goroutine per pipeline instance,
// spawned at construction, running until the stop channel closes.
//
// The loop is a blocking wait on the work channel with a cancellation
// signal, not a busy-poll: zero CPU cost while idle, prompt exit on stop.
type worker struct {
	work    <-chan *Block
	recycle chan<- *Block
	stop    chan struct{}

	process  func(*Block) error
	complete func()

	processed atomic.Uint64
	failure   atomic.Pointer[error]

	stopOnce     sync.Once
	completeOnce sync.Once
	done         chan struct{}
}

func newWorker(work <-chan *Block, recycle chan<- *Block, process func(*Block) error, complete func()) *worker {
	return &worker{
		work:     work,
		recycle:  recycle,
		stop:     make(chan struct{}),
		process:  process,
		complete: complete,
		done:     make(chan struct{}),
	}
}

// run is the worker goroutine body.
//
// Loop: block on work or stop; for each received block, apply the user
// processing function, then return the same block through the recycle
// channel so its storage is reused. On a processing failure, capture the
// error for the producer side and exit - the capture-and-terminate
// discipline applies to the worker just as it does to sampler hooks; the
// goroutine never dies silently.
//
// The completion callback runs exactly once, on exit, whatever the exit
// reason.
func (w *worker) run() {
	defer close(w.done)
	defer w.completeOnce.Do(func() {
		if w.complete != nil {
			w.complete()
		}
	})

	for {
		select {
		case <-w.stop:
			return
		case blk := <-w.work:
			if err := w.safeProcess(blk); err != nil {
				w.failure.Store(&err)
				slog.Error("renderhooks: block processing failed",
					"trace_id", blk.TraceID,
					"frames", blk.Len(),
					"error", err,
				)
				return
			}

			// Ownership returns to the producer side. Capacity is sized
			// for every live block, so this send cannot block.
			w.recycle <- blk
			w.processed.Add(1)
		}
	}
}

// safeProcess guards the user processing function: a panic converts to an
// error instead of killing the worker goroutine.
func (w *worker) safeProcess(blk *Block) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("renderhooks: block processor panic: %v", r)
		}
	}()
	return w.process(blk)
}

// signalStop asks the loop to exit after its current check. Cooperative:
// there is no preemption and no bounded stop latency guarantee beyond the
// current block finishing. Idempotent.
func (w *worker) signalStop() {
	w.stopOnce.Do(func() { close(w.stop) })
}

// err returns the captured processing failure, if any.
func (w *worker) err() error {
	if p := w.failure.Load(); p != nil {
		return *p
	}
	return nil
}

// stopped reports whether the worker goroutine has exited.
func (w *worker) stopped() bool {
	select {
	case <-w.done:
		return true
	default:
		return false
	}
}
