package hooks

import "fmt"

// Screenshot writes the current frame to a fixed path exactly once.
// Single-shot regardless of frame rate: the first invocation saves
// synchronously and completes the hook.
type Screenshot struct {
	lc   Lifecycle
	path string
}

// NewScreenshot returns a single-shot screenshot hook targeting path.
func NewScreenshot(path string) *Screenshot {
	return &Screenshot{
		lc:   NewLifecycle("screenshot"),
		path: path,
	}
}

func (s *Screenshot) Name() string      { return s.lc.Name() }
func (s *Screenshot) State() *Lifecycle { return &s.lc }

// Fire saves the frame synchronously and reports completion.
func (s *Screenshot) Fire(h Host) (Status, error) {
	if err := h.SaveFrame(s.path, false); err != nil {
		return StatusDone, fmt.Errorf("renderhooks: screenshot save failed: %w", err)
	}
	return StatusDone, nil
}
