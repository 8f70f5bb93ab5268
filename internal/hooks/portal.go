package hooks

import (
	"fmt"
	"time"
)

// Displayer receives captured frames from a Portal hook. It runs on the
// render goroutine: implementations that do slow work should hand the
// frame off rather than block.
type Displayer func(Image) error

// PortalConfig configures a live display portal.
type PortalConfig struct {
	// Displayer receives each captured frame. Required.
	Displayer Displayer

	// FrameRate is the target display rate in frames per second. The
	// throttle period is derived from it; 0 displays every frame.
	FrameRate float64

	// TimeLimit bounds the portal's total wall-clock lifetime. The hook
	// completes once the limit elapses, independent of frame count.
	// 0 means unlimited.
	TimeLimit time.Duration

	// Clock overrides the throttle clock. Nil means time.Now.
	Clock Clock
}

// Portal pushes each frame's pixel data to a user-supplied displayer at a
// bounded rate, for a bounded wall-clock duration.
type Portal struct {
	lc        Lifecycle
	displayer Displayer
	throttle  Throttle
	timeLimit time.Duration
	started   time.Time
}

// NewPortal returns a live display portal hook. The lifetime clock starts
// at construction, not at first invocation.
func NewPortal(cfg PortalConfig) (*Portal, error) {
	if cfg.Displayer == nil {
		return nil, fmt.Errorf("renderhooks: portal displayer is required")
	}
	var period time.Duration
	if cfg.FrameRate > 0 {
		period = time.Duration(float64(time.Second) / cfg.FrameRate)
	}
	t := NewThrottle(period, cfg.Clock)
	return &Portal{
		lc:        NewLifecycle("portal"),
		displayer: cfg.Displayer,
		throttle:  t,
		timeLimit: cfg.TimeLimit,
		started:   t.Now(),
	}, nil
}

func (p *Portal) Name() string      { return p.lc.Name() }
func (p *Portal) State() *Lifecycle { return &p.lc }

// Fire delivers the current frame to the displayer when past the
// throttle, and completes once the time limit has elapsed.
func (p *Portal) Fire(h Host) (Status, error) {
	if p.timeLimit > 0 && p.throttle.Now().After(p.started.Add(p.timeLimit)) {
		return StatusDone, nil
	}
	if !p.throttle.Allow() {
		return StatusContinue, nil
	}

	px, err := h.Pixels()
	if err != nil {
		return StatusDone, fmt.Errorf("renderhooks: portal capture failed: %w", err)
	}
	if err := p.displayer(px.RGB()); err != nil {
		return StatusDone, fmt.Errorf("renderhooks: portal display failed: %w", err)
	}
	return StatusContinue, nil
}
