package hooks

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"
)

// SequenceConfig configures a sequential frame saver.
type SequenceConfig struct {
	// Dir is the output directory.
	Dir string

	// Template is the filename template containing one contiguous run of
	// '#' characters (see InsertFrameNumber).
	Template string

	// Period is the minimum wall-clock interval between saves.
	// Frames arriving faster are skipped, never queued.
	Period time.Duration

	// Start, when >= 0, shifts the numbering so the first saved file is
	// numbered Start-relative. -1 numbers files by raw frame count.
	Start int64

	// Limit is the number of frames to save before completing.
	Limit int

	// Clock overrides the throttle clock. Nil means time.Now.
	Clock Clock
}

// Sequence saves a numbered series of frames to disk, rate-limited by a
// throttle period, using background saves so the render loop never waits
// on disk I/O. Completes once Limit files have been issued.
type Sequence struct {
	lc       Lifecycle
	dir      string
	template string
	start    int64
	limit    int
	throttle Throttle

	offsetSet bool
	offset    uint64

	mu    sync.Mutex
	saved []string
}

// NewSequence returns a sequential frame saver hook.
func NewSequence(cfg SequenceConfig) (*Sequence, error) {
	if cfg.Template == "" {
		return nil, fmt.Errorf("renderhooks: sequence template is required")
	}
	if cfg.Limit <= 0 {
		return nil, fmt.Errorf("renderhooks: sequence limit must be positive, got %d", cfg.Limit)
	}
	return &Sequence{
		lc:       NewLifecycle("save_frames"),
		dir:      cfg.Dir,
		template: cfg.Template,
		start:    cfg.Start,
		limit:    cfg.Limit,
		throttle: NewThrottle(cfg.Period, cfg.Clock),
	}, nil
}

func (s *Sequence) Name() string      { return s.lc.Name() }
func (s *Sequence) State() *Lifecycle { return &s.lc }

// Saved returns the filenames issued so far (snapshot copy).
func (s *Sequence) Saved() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.saved))
	copy(out, s.saved)
	return out
}

// Fire saves one numbered frame when past the throttle.
//
// The numbering offset is computed on the first fire: 0 when no start
// frame was configured, else frameCount-start, so the first saved file is
// numbered consistently regardless of when the hook was attached.
func (s *Sequence) Fire(h Host) (Status, error) {
	if !s.throttle.Allow() {
		return StatusContinue, nil
	}

	if !s.offsetSet {
		if s.start >= 0 {
			s.offset = h.FrameCount() - uint64(s.start)
		}
		s.offsetSet = true
	}

	num := h.FrameCount() - s.offset
	name := filepath.Join(s.dir, InsertFrameNumber(s.template, num))
	if err := h.SaveFrame(name, true); err != nil {
		return StatusDone, fmt.Errorf("renderhooks: frame save failed: %w", err)
	}

	s.mu.Lock()
	s.saved = append(s.saved, name)
	count := len(s.saved)
	s.mu.Unlock()

	if count == s.limit {
		slog.Debug("renderhooks: frame sequence complete",
			"hook", s.lc.Name(),
			"frames", count,
			"dir", s.dir,
		)
		return StatusDone, nil
	}
	return StatusContinue, nil
}
