package hooks

import (
	"strconv"
	"strings"
)

// Placeholder is the character whose contiguous run in a filename template
// is replaced by the frame number.
const Placeholder = '#'

// InsertFrameNumber substitutes num into a filename template.
//
// The template's single contiguous run of '#' characters is replaced by
// num, left-zero-padded to at least the run's width (wider if num needs
// more digits). Templates without a run of at least two placeholder
// characters are returned unchanged.
//
//	InsertFrameNumber("frame-####.png", 7)   -> "frame-0007.png"
//	InsertFrameNumber("frame-##.png", 12345) -> "frame-12345.png"
//	InsertFrameNumber("frame.png", 7)        -> "frame.png"
func InsertFrameNumber(template string, num uint64) string {
	first := strings.IndexByte(template, Placeholder)
	last := strings.LastIndexByte(template, Placeholder) + 1
	if first == -1 || last-first <= 1 {
		return template
	}

	width := last - first
	numstr := strconv.FormatUint(num, 10)
	if pad := width - len(numstr); pad > 0 {
		numstr = strings.Repeat("0", pad) + numstr
	}
	return template[:first] + numstr + template[last:]
}
