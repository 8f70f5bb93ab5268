package renderhooks

import "github.com/e7canasta/renderhooks/internal/hooks"

// InsertFrameNumber substitutes a frame number into a filename template.
// The template's contiguous run of '#' characters is replaced by num,
// left-zero-padded to at least the run's width (wider if num needs more
// digits); templates without a placeholder run are returned unchanged.
func InsertFrameNumber(template string, num uint64) string {
	return hooks.InsertFrameNumber(template, num)
}

// SaveCurrentFrame saves the host's current frame using template with the
// current frame count substituted for the placeholder run. The manual
// counterpart of the Sequence hook's numbering.
func SaveCurrentFrame(h Host, template string, background bool) error {
	return h.SaveFrame(InsertFrameNumber(template, h.FrameCount()), background)
}
