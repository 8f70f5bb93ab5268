package hooks

import (
	"log/slog"
	"sync"
)

// lifecycle states. Exactly one of {active, ready, terminated} holds at
// any time; once ready or terminated a hook is never invoked again.
type state int

const (
	stateActive state = iota
	stateReady
	stateTerminated
)

// Lifecycle is the state machine shared by all hook variants.
//
// Transitions:
//   - Finish: ACTIVE -> READY (normal completion)
//   - Fail: ACTIVE -> TERMINATED (captured failure)
//   - ForceTerminate: ACTIVE -> TERMINATED (host teardown; cancellation,
//     not failure - Err() stays nil)
//
// Transitions are driven by the registry after each invocation, never by
// the hook body itself. Thread-safe: the render goroutine transitions,
// any goroutine may poll.
type Lifecycle struct {
	name string

	mu  sync.Mutex
	st  state
	err error
}

// NewLifecycle returns an ACTIVE lifecycle for a hook with the given name.
func NewLifecycle(name string) Lifecycle {
	return Lifecycle{name: name}
}

// Name returns the hook name the lifecycle was created with.
func (l *Lifecycle) Name() string { return l.name }

// Ready reports normal completion.
func (l *Lifecycle) Ready() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.st == stateReady
}

// Terminated reports completion via error or forced stop.
func (l *Lifecycle) Terminated() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.st == stateTerminated
}

// Active reports the hook is still attached and eligible for invocation.
func (l *Lifecycle) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.st == stateActive
}

// Err returns the captured failure, non-nil only after Fail.
func (l *Lifecycle) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Finish transitions ACTIVE -> READY. Valid only from ACTIVE; later calls
// are no-ops so the registry and a teardown path cannot double-transition.
func (l *Lifecycle) Finish() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.st != stateActive {
		return
	}
	l.st = stateReady
}

// Fail records err and transitions ACTIVE -> TERMINATED.
func (l *Lifecycle) Fail(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.st != stateActive {
		return
	}
	l.st = stateTerminated
	l.err = err
	slog.Error("renderhooks: hook terminated",
		"hook", l.name,
		"error", err,
	)
}

// ForceTerminate transitions to TERMINATED without recording an error.
// Called by the render loop during its own teardown, when there is no
// loop left to remove the hook from.
func (l *Lifecycle) ForceTerminate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.st != stateActive {
		return
	}
	l.st = stateTerminated
}
