// Package pipeline implements the asynchronous batch-processing pipeline:
// a producer hook on the render goroutine accumulating frame snapshots
// into reusable fixed-size blocks, a background worker draining them, and
// the two FIFO hand-off channels connecting the sides.
//
// This package is INTERNAL - clients MUST use the public API in the parent
// package.
package pipeline

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/e7canasta/renderhooks/internal/hooks"
)

// Block is a reusable batch buffer of shape (capacity, rows, cols, 3)
// holding 1..capacity accumulated frames.
//
// OWNERSHIP CONTRACT:
//   - A block is held by exactly one side at a time; ownership transfers
//     atomically through a channel operation (producer -> work channel ->
//     consumer -> recycle channel -> producer).
//   - No locks on the buffer itself - the hand-off IS the synchronization.
type Block struct {
	// TraceID correlates this block's storage across log lines. Assigned
	// once at allocation; stable across recycling.
	TraceID string

	rows, cols int
	capacity   int
	fill       int
	data       []byte
}

// newBlock allocates a block for capacity frames of rows*cols*3 bytes.
func newBlock(capacity, rows, cols int) *Block {
	return &Block{
		TraceID:  uuid.NewString(),
		rows:     rows,
		cols:     cols,
		capacity: capacity,
		data:     make([]byte, capacity*rows*cols*3),
	}
}

// Len returns the number of accumulated frames (the fill length a
// consumer must respect; a partial final block has Len < Cap).
func (b *Block) Len() int { return b.fill }

// Cap returns the block's frame capacity.
func (b *Block) Cap() int { return b.capacity }

// Bounds returns the per-frame shape (rows, cols, 3 channels).
func (b *Block) Bounds() (rows, cols int) { return b.rows, b.cols }

// Frame returns the i-th accumulated frame as a rows*cols*3 byte slice
// into the block's storage. Valid only while the caller owns the block.
func (b *Block) Frame(i int) []byte {
	if i < 0 || i >= b.fill {
		panic(fmt.Sprintf("renderhooks: block frame index %d out of range [0,%d)", i, b.fill))
	}
	stride := b.rows * b.cols * 3
	return b.data[i*stride : (i+1)*stride]
}

// append copies a snapshot into the block at the fill index, dropping the
// snapshot's leading channel. The block's shape is fixed at allocation;
// a snapshot of a different shape is a capture failure.
func (b *Block) append(px *hooks.Pixels) error {
	if px.Height != b.rows || px.Width != b.cols {
		return fmt.Errorf(
			"renderhooks: snapshot %dx%d does not match block shape %dx%d",
			px.Height, px.Width, b.rows, b.cols,
		)
	}
	if b.fill == b.capacity {
		return fmt.Errorf("renderhooks: block full (%d frames)", b.capacity)
	}
	stride := b.rows * b.cols * 3
	px.CopyRGB(b.data[b.fill*stride : (b.fill+1)*stride])
	b.fill++
	return nil
}

// reset retires the block's contents so its storage can be refilled.
func (b *Block) reset() { b.fill = 0 }
