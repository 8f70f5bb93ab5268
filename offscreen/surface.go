// Package offscreen provides an in-memory render target implementing the
// renderhooks.Host contract: a synthetic pixel surface with a monotonic
// frame counter and a save-to-disk primitive.
//
// It exists for tests, demos and headless captures - anywhere hooks need
// a host without a real rendering application behind them.
package offscreen

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"golang.org/x/image/bmp"

	"github.com/e7canasta/renderhooks"
)

// RenderFunc draws one frame into pix, a Height*Width*4 buffer in
// row-major order. Channel 0 of each pixel is non-color; channels 1..3
// are R, G, B.
type RenderFunc func(pix []byte, width, height int, frame uint64)

// Surface is a synthetic render target.
//
// Thread-safety: Advance runs on the render goroutine; Pixels,
// FrameCount, SaveFrame, Flush and Stats are safe from any goroutine.
type Surface struct {
	width, height int

	mu    sync.RWMutex
	pix   []byte
	frame atomic.Uint64

	// Background save telemetry
	saveWG      sync.WaitGroup
	savesIssued atomic.Uint64
	savesFailed atomic.Uint64
	saveErr     atomic.Pointer[error]
}

// Stats is a snapshot of surface activity.
type Stats struct {
	// FrameCount is the current frame counter.
	FrameCount uint64

	// SavesIssued counts SaveFrame calls accepted.
	SavesIssued uint64

	// SavesFailed counts background saves that failed. Should be 0 in a
	// healthy run; inspect Flush for the most recent failure.
	SavesFailed uint64
}

// New creates a surface with the given dimensions.
func New(width, height int) (*Surface, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("offscreen: invalid dimensions %dx%d", width, height)
	}
	return &Surface{
		width:  width,
		height: height,
		pix:    make([]byte, height*width*4),
	}, nil
}

// Advance renders the next frame and bumps the frame counter. render may
// be nil to advance without drawing.
func (s *Surface) Advance(render RenderFunc) {
	frame := s.frame.Add(1)
	if render == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	render(s.pix, s.width, s.height, frame)
}

// Pixels returns a copy of the current frame's pixel snapshot
// (implements renderhooks.Host).
func (s *Surface) Pixels() (*renderhooks.Pixels, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data := make([]byte, len(s.pix))
	copy(data, s.pix)
	return &renderhooks.Pixels{
		Width:  s.width,
		Height: s.height,
		Data:   data,
	}, nil
}

// FrameCount returns the monotonic frame counter (implements
// renderhooks.Host).
func (s *Surface) FrameCount() uint64 {
	return s.frame.Load()
}

// SaveFrame writes the current frame to path as an uncompressed BMP
// (implements renderhooks.Host). With background=true the encode and
// write happen on a background goroutine; failures are then counted and
// logged rather than returned - poll Flush for the most recent one.
func (s *Surface) SaveFrame(path string, background bool) error {
	px, err := s.Pixels()
	if err != nil {
		return err
	}
	s.savesIssued.Add(1)

	if !background {
		return writeBMP(path, px)
	}

	s.saveWG.Add(1)
	go func() {
		defer s.saveWG.Done()
		if err := writeBMP(path, px); err != nil {
			s.savesFailed.Add(1)
			s.saveErr.Store(&err)
			slog.Error("offscreen: background save failed",
				"path", path,
				"error", err,
			)
		}
	}()
	return nil
}

// Flush waits for all background saves to finish and returns the most
// recent background failure, if any.
func (s *Surface) Flush() error {
	s.saveWG.Wait()
	if p := s.saveErr.Load(); p != nil {
		return *p
	}
	return nil
}

// Stats returns a snapshot of surface counters. Thread-safe.
func (s *Surface) Stats() Stats {
	return Stats{
		FrameCount:  s.frame.Load(),
		SavesIssued: s.savesIssued.Load(),
		SavesFailed: s.savesFailed.Load(),
	}
}

// writeBMP encodes a snapshot with the leading channel dropped and the
// alpha forced opaque.
func writeBMP(path string, px *renderhooks.Pixels) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("offscreen: create output dir: %w", err)
	}

	img := image.NewRGBA(image.Rect(0, 0, px.Width, px.Height))
	src := px.Data
	for i, o := 0, 0; i+4 <= len(src); i, o = i+4, o+4 {
		img.Pix[o] = src[i+1]
		img.Pix[o+1] = src[i+2]
		img.Pix[o+2] = src[i+3]
		img.Pix[o+3] = 0xff
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("offscreen: create %s: %w", path, err)
	}
	if err := bmp.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("offscreen: encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("offscreen: close %s: %w", path, err)
	}
	return nil
}
