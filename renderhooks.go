package renderhooks

import (
	"github.com/e7canasta/renderhooks/internal/hooks"
	"github.com/e7canasta/renderhooks/internal/pipeline"
)

// Public API - re-export internal types as the stable contract.

// Host is the frame-context surface consumed by hooks each invocation.
// Implemented by the rendering application (or by the offscreen package).
type Host = hooks.Host

// Pixels is a per-frame H×W×4 pixel snapshot; channel 0 is non-color and
// dropped before storage or display.
type Pixels = hooks.Pixels

// Image is a 3-channel frame derived from a Pixels snapshot.
type Image = hooks.Image

// Hook is a named unit of per-frame logic with a
// finished/terminated/active lifecycle.
type Hook = hooks.Hook

// Lifecycle is the state machine shared by all hook variants.
type Lifecycle = hooks.Lifecycle

// Status is the outcome of a single hook invocation.
type Status = hooks.Status

const (
	// StatusContinue keeps the hook attached for the next frame.
	StatusContinue = hooks.StatusContinue
	// StatusDone marks normal completion.
	StatusDone = hooks.StatusDone
)

// Clock supplies the current time to throttled hooks; nil means time.Now.
type Clock = hooks.Clock

// Displayer receives captured frames from a Portal hook.
type Displayer = hooks.Displayer

// Screenshot is the single-shot frame saver hook.
type Screenshot = hooks.Screenshot

// Sequence is the rate-limited sequential frame saver hook.
type Sequence = hooks.Sequence

// SequenceConfig configures a Sequence hook.
type SequenceConfig = hooks.SequenceConfig

// Grab is the in-memory frame grabber hook.
type Grab = hooks.Grab

// GrabConfig configures a Grab hook.
type GrabConfig = hooks.GrabConfig

// Portal is the push-to-displayer hook.
type Portal = hooks.Portal

// PortalConfig configures a Portal hook.
type PortalConfig = hooks.PortalConfig

// Block is the reusable batch buffer handed to the pipeline's processing
// function.
type Block = pipeline.Block

// BlockHook is the batch pipeline's producer-side hook.
type BlockHook = pipeline.BlockHook

// PipelineConfig configures a block-processing pipeline.
type PipelineConfig = pipeline.Config

// PipelineStats is a snapshot of pipeline operational state.
type PipelineStats = pipeline.Stats

// NewLifecycle returns an ACTIVE lifecycle for a custom hook with the
// given name.
func NewLifecycle(name string) Lifecycle {
	return hooks.NewLifecycle(name)
}

// NewScreenshot returns a hook that saves the current frame to path on
// its first invocation and completes.
func NewScreenshot(path string) *Screenshot {
	return hooks.NewScreenshot(path)
}

// NewSequence returns a hook that saves a numbered frame series.
func NewSequence(cfg SequenceConfig) (*Sequence, error) {
	return hooks.NewSequence(cfg)
}

// NewGrab returns a hook that collects throttled frame copies in memory.
func NewGrab(cfg GrabConfig) (*Grab, error) {
	return hooks.NewGrab(cfg)
}

// NewPortal returns a hook that pushes frames to a display callback.
func NewPortal(cfg PortalConfig) (*Portal, error) {
	return hooks.NewPortal(cfg)
}

// NewBlockPipeline creates a batch-processing pipeline hook and starts
// its worker goroutine.
func NewBlockPipeline(cfg PipelineConfig) (*BlockHook, error) {
	return pipeline.New(cfg)
}
