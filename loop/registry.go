// Package loop implements the render-loop side of hook management: a
// registry the host's draw loop drives once per frame.
//
// The host owns the frame cadence; the registry owns hook bookkeeping.
// Attach returns a typed Handle used for removal - there is no name-keyed
// removal API, so two hooks with the same diagnostic name cannot detach
// each other.
package loop

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/e7canasta/renderhooks/internal/hooks"
)

// ErrClosed is returned by Attach after the registry has been torn down.
var ErrClosed = errors.New("renderhooks: loop registry is closed")

// Registry invokes attached hooks once per rendered frame, in attachment
// order, and transitions their lifecycles from each invocation's result.
//
// Thread-safety: Invoke runs on the render goroutine; Attach, Detach,
// Close and Stats are safe from any goroutine.
type Registry struct {
	mu      sync.Mutex
	entries []*entry
	closed  bool

	invocations uint64
	finished    uint64
	terminated  uint64
}

type entry struct {
	id      string
	hook    hooks.Hook
	removed bool
}

// Handle identifies one attachment. The zero value is not a valid handle.
type Handle struct {
	id   string
	reg  *Registry
	hook hooks.Hook
}

// ID returns the attachment's unique identifier, for log correlation.
func (h Handle) ID() string { return h.id }

// Hook returns the attached hook. Valid after removal too, so callers
// can poll terminal state through the handle. Nil for the zero handle.
func (h Handle) Hook() hooks.Hook { return h.hook }

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Attach adds a hook to the set invoked each frame. Hooks fire in
// attachment order. Returns ErrClosed after Close.
func (r *Registry) Attach(h hooks.Hook) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		// The loop is gone: there is nothing to unregister from, so the
		// hook is force-terminated instead of silently ignored.
		h.State().ForceTerminate()
		return Handle{}, ErrClosed
	}

	e := &entry{id: uuid.NewString(), hook: h}
	r.entries = append(r.entries, e)

	slog.Debug("renderhooks: hook attached",
		"hook", h.Name(),
		"handle", e.id,
	)
	return Handle{id: e.id, reg: r, hook: h}, nil
}

// Detach removes an attachment. Idempotent: detaching an already-removed
// or finished hook is a no-op. Takes effect before the next frame.
func (h Handle) Detach() {
	if h.reg == nil {
		return
	}
	h.reg.mu.Lock()
	defer h.reg.mu.Unlock()
	for _, e := range h.reg.entries {
		if e.id == h.id && !e.removed {
			h.reg.remove(e, "detached")
			return
		}
	}
}

// remove marks an entry removed and releases hook resources. Caller holds
// r.mu.
func (r *Registry) remove(e *entry, reason string) {
	e.removed = true
	if c, ok := e.hook.(hooks.Closer); ok {
		if err := c.Close(); err != nil {
			slog.Warn("renderhooks: hook close failed",
				"hook", e.hook.Name(),
				"error", err,
			)
		}
	}
	slog.Debug("renderhooks: hook removed",
		"hook", e.hook.Name(),
		"handle", e.id,
		"reason", reason,
	)
}

// Invoke runs every active hook once against the current frame, in
// attachment order, on the caller's goroutine.
//
// Result handling (the registry, not the hook, transitions state):
//   - (StatusContinue, nil): the hook stays attached
//   - (StatusDone, nil): READY, removed before the next frame
//   - (_, err) or panic: TERMINATED with the captured failure, removed
//
// No failure ever escapes to the render loop, and one hook's failure
// leaves every other attached hook unaffected.
func (r *Registry) Invoke(h hooks.Host) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	snapshot := make([]*entry, len(r.entries))
	copy(snapshot, r.entries)
	r.invocations++
	r.mu.Unlock()

	for _, e := range snapshot {
		r.mu.Lock()
		skip := e.removed
		r.mu.Unlock()
		if skip {
			continue
		}

		status, err := fire(e.hook, h)

		r.mu.Lock()
		switch {
		case err != nil:
			e.hook.State().Fail(err)
			r.terminated++
			if !e.removed {
				r.remove(e, "terminated")
			}
		case status == hooks.StatusDone:
			e.hook.State().Finish()
			r.finished++
			if !e.removed {
				r.remove(e, "finished")
			}
		}
		r.mu.Unlock()
	}

	r.compact()
}

// fire guards a single hook invocation: a panic converts to an error so
// the render loop never observes one.
func fire(hk hooks.Hook, h hooks.Host) (status hooks.Status, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			status = hooks.StatusDone
			err = fmt.Errorf("renderhooks: hook panic: %v", rec)
		}
	}()
	return hk.Fire(h)
}

// compact drops removed entries so long-lived registries do not grow.
func (r *Registry) compact() {
	r.mu.Lock()
	defer r.mu.Unlock()
	live := r.entries[:0]
	for _, e := range r.entries {
		if !e.removed {
			live = append(live, e)
		}
	}
	r.entries = live
}

// Close force-terminates every attached hook and rejects further
// attachments. Called when the host loop is being torn down; the loop is
// presumed already gone, so no unregistration is attempted on the hooks'
// behalf - they are marked TERMINATED directly. Idempotent.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true

	for _, e := range r.entries {
		if e.removed {
			continue
		}
		e.hook.State().ForceTerminate()
		r.remove(e, "loop closed")
	}
	r.entries = nil

	slog.Info("renderhooks: loop registry closed")
}

// Stats is a snapshot of registry activity.
type Stats struct {
	// Active is the number of currently attached hooks.
	Active int

	// Invocations counts Invoke calls (frames observed).
	Invocations uint64

	// Finished counts hooks that completed normally.
	Finished uint64

	// Terminated counts hooks removed after a captured failure.
	Terminated uint64
}

// Stats returns a snapshot of registry counters. Thread-safe.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	active := 0
	for _, e := range r.entries {
		if !e.removed {
			active++
		}
	}
	return Stats{
		Active:      active,
		Invocations: r.invocations,
		Finished:    r.finished,
		Terminated:  r.terminated,
	}
}
