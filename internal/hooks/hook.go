// Package hooks implements the per-frame hook lifecycle and the sampler hooks.
//
// This package is INTERNAL - clients MUST use the public API in the parent
// package. Reason: allows internal refactoring without breaking changes.
package hooks

// Host is the surface a hook consumes during an invocation.
//
// It is implemented by the rendering application (or by the offscreen
// package for tests and demos). All methods are called on the render
// goroutine, at most once per frame per hook.
type Host interface {
	// Pixels returns the current frame's pixel snapshot on demand.
	//
	// The snapshot is Height*Width*4 bytes; channel 0 is non-color and
	// must be dropped before storage or display (see Pixels.RGB).
	// The returned buffer is only valid until the next frame - hooks
	// copy what they keep.
	Pixels() (*Pixels, error)

	// FrameCount returns the monotonically increasing frame counter.
	FrameCount() uint64

	// SaveFrame writes the current frame to path. With background=true
	// the write happens on a background thread and the call returns
	// immediately; write failures are then surfaced by the host, not by
	// this call.
	SaveFrame(path string, background bool) error
}

// Status is the outcome of a single hook invocation.
type Status int

const (
	// StatusContinue keeps the hook attached for the next frame.
	StatusContinue Status = iota

	// StatusDone marks normal completion; the registry transitions the
	// hook to READY and removes it before the next frame.
	StatusDone
)

// Hook is a named unit of per-frame logic with a finished/terminated/active
// lifecycle.
//
// Contract:
//   - Fire is called once per rendered frame, on the render goroutine,
//     until it returns StatusDone or a non-nil error.
//   - Fire reports failure by returning an error; it never transitions
//     its own lifecycle. The registry records the outcome on State()
//     and removes the hook (capture-and-terminate discipline - no
//     failure ever reaches the render loop).
//   - After READY or TERMINATED a hook is never invoked again.
//
// Callers poll State().Ready() / State().Terminated() / State().Err()
// after attaching; there is no push-based completion notification.
type Hook interface {
	// Name identifies the hook in logs and diagnostics.
	Name() string

	// State exposes the lifecycle for polling.
	State() *Lifecycle

	// Fire performs one frame's worth of work.
	Fire(h Host) (Status, error)
}

// Closer is implemented by hooks that own background resources
// (goroutines, channels). The registry calls Close when the hook is
// removed or the loop is torn down, whichever comes first.
type Closer interface {
	Close() error
}
