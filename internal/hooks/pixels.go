package hooks

import "fmt"

// Channels is the number of channels in a host pixel snapshot.
// Channel 0 carries non-color data and is dropped before storage or display.
const Channels = 4

// Pixels is a per-frame snapshot of rendered pixel data, shape (Height, Width, 4).
//
// IMMUTABILITY CONTRACT:
//   - Host: MUST NOT reuse Data after handing the snapshot to a hook
//   - Hooks: MUST NOT modify Data (read-only access; copy before storing)
type Pixels struct {
	// Width of the frame in pixels
	Width int

	// Height of the frame in pixels
	Height int

	// Data contains Height*Width*4 bytes in row-major order.
	// The leading channel of each pixel is non-color and is dropped
	// before storage (see Image).
	Data []byte
}

// Validate checks the snapshot shape against its declared dimensions.
func (p *Pixels) Validate() error {
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("renderhooks: invalid snapshot dimensions %dx%d", p.Width, p.Height)
	}
	if len(p.Data) != p.Height*p.Width*Channels {
		return fmt.Errorf(
			"renderhooks: snapshot size %d does not match %dx%dx%d",
			len(p.Data), p.Height, p.Width, Channels,
		)
	}
	return nil
}

// Image is a 3-channel frame derived from a Pixels snapshot with the
// leading non-color channel dropped. Shape (Height, Width, 3).
type Image struct {
	Width  int
	Height int

	// Pix contains Height*Width*3 bytes in row-major order.
	Pix []byte
}

// RGB returns a 3-channel copy of the snapshot with the leading channel dropped.
//
// The returned Image owns its storage; it remains valid after the host
// reuses the snapshot buffer.
func (p *Pixels) RGB() Image {
	img := Image{
		Width:  p.Width,
		Height: p.Height,
		Pix:    make([]byte, p.Height*p.Width*3),
	}
	p.CopyRGB(img.Pix)
	return img
}

// CopyRGB copies the snapshot into dst with the leading channel dropped.
// dst must hold at least Height*Width*3 bytes.
func (p *Pixels) CopyRGB(dst []byte) {
	src := p.Data
	di := 0
	for si := 0; si+Channels <= len(src); si += Channels {
		dst[di] = src[si+1]
		dst[di+1] = src[si+2]
		dst[di+2] = src[si+3]
		di += 3
	}
}
