package hooks

import (
	"fmt"
	"sync"
	"time"
)

// GrabConfig configures an in-memory frame grabber.
type GrabConfig struct {
	// Period is the minimum wall-clock interval between grabs.
	Period time.Duration

	// Limit is the number of frames to collect before completing.
	Limit int

	// Clock overrides the throttle clock. Nil means time.Now.
	Clock Clock
}

// Grab collects throttled 3-channel frame copies in memory and completes
// once Limit frames have been gathered.
//
// Every collected frame is an owned copy: memory grows by
// Height*Width*3 bytes per grab with no spill-to-disk or size cap.
// Bounding Limit is the caller's responsibility.
type Grab struct {
	lc       Lifecycle
	limit    int
	throttle Throttle

	mu     sync.Mutex
	frames []Image
}

// NewGrab returns an in-memory frame grabber hook.
func NewGrab(cfg GrabConfig) (*Grab, error) {
	if cfg.Limit <= 0 {
		return nil, fmt.Errorf("renderhooks: grab limit must be positive, got %d", cfg.Limit)
	}
	return &Grab{
		lc:       NewLifecycle("grab_frames"),
		limit:    cfg.Limit,
		throttle: NewThrottle(cfg.Period, cfg.Clock),
		frames:   make([]Image, 0, cfg.Limit),
	}, nil
}

func (g *Grab) Name() string      { return g.lc.Name() }
func (g *Grab) State() *Lifecycle { return &g.lc }

// Frames returns the frames collected so far (snapshot copy of the slice;
// the images themselves are shared).
func (g *Grab) Frames() []Image {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Image, len(g.frames))
	copy(out, g.frames)
	return out
}

// Fire appends one frame copy when past the throttle. Invocations after
// the limit is reached are no-ops.
func (g *Grab) Fire(h Host) (Status, error) {
	g.mu.Lock()
	full := len(g.frames) >= g.limit
	g.mu.Unlock()
	if full {
		return StatusDone, nil
	}

	if !g.throttle.Allow() {
		return StatusContinue, nil
	}

	px, err := h.Pixels()
	if err != nil {
		return StatusDone, fmt.Errorf("renderhooks: frame grab failed: %w", err)
	}

	g.mu.Lock()
	g.frames = append(g.frames, px.RGB())
	count := len(g.frames)
	g.mu.Unlock()

	if count == g.limit {
		return StatusDone, nil
	}
	return StatusContinue, nil
}
