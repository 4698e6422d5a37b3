package pixel

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image/color"
	"math/bits"
)

// Errors
var (
	ErrDepth = errors.New("pixel: unsupported depth")
	ErrMasks = errors.New("pixel: invalid channel masks")
)

// Common channel layouts.
var (
	RGB555   = Masks{R: 0x7C00, G: 0x03E0, B: 0x001F}
	RGB565   = Masks{R: 0xF800, G: 0x07E0, B: 0x001F}
	RGB888   = Masks{R: 0xFF0000, G: 0x00FF00, B: 0x0000FF}
	XRGB8888 = Masks{R: 0x00FF0000, G: 0x0000FF00, B: 0x000000FF}
	ARGB8888 = Masks{R: 0x00FF0000, G: 0x0000FF00, B: 0x000000FF, A: 0xFF000000}
)

// Format describes how pixels are stored in a surface.
type Format struct {
	BitsPerPixel  int
	BytesPerPixel int

	// Masks are the channel masks; all zero for palette based formats.
	Masks

	// Order of multi-byte pixels in memory.
	Order binary.ByteOrder

	// Palette used by palette based formats.
	Palette color.Palette
}

// NewFormat returns the format for bpp bits per pixel packed with masks.
// Depths up to 8 bits without masks are palette based.
func NewFormat(bpp int, masks Masks) (*Format, error) {
	switch bpp {
	case 8, 15, 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: %d bits per pixel", ErrDepth, bpp)
	}

	f := &Format{
		BitsPerPixel:  bpp,
		BytesPerPixel: (bpp + 7) / 8,
		Masks:         masks,
		Order:         binary.BigEndian,
	}
	if f.Paletted() {
		if bpp > 8 {
			return nil, fmt.Errorf("%w: %d bits per pixel requires channel masks", ErrMasks, bpp)
		}
		f.Palette = DefaultPalette()
		return f, nil
	}
	if err := masks.validate(bpp); err != nil {
		return nil, err
	}
	return f, nil
}

// Paletted reports whether the pixels are palette indices.
func (f *Format) Paletted() bool {
	return f.Masks == (Masks{})
}

// Model returns the color model of the format.
func (f *Format) Model() color.Model {
	switch {
	case f.Paletted():
		return f.Palette
	case f.BitsPerPixel == 15 && f.Masks == RGB555:
		return CRGB15Model
	case f.BitsPerPixel == 16 && f.Masks == RGB565:
		return CRGB16Model
	default:
		return f.Masks.Model()
	}
}

func (f *Format) String() string {
	if f.Paletted() {
		return fmt.Sprintf("%d-bit indexed", f.BitsPerPixel)
	}
	return fmt.Sprintf("%d-bit R=%#x G=%#x B=%#x A=%#x", f.BitsPerPixel, f.R, f.G, f.B, f.A)
}

func (f *Format) load(p []byte) uint32 {
	switch f.BytesPerPixel {
	case 1:
		return uint32(p[0])
	case 2:
		return uint32(f.Order.Uint16(p))
	case 3:
		if f.Order == binary.LittleEndian {
			return uint32(p[0]) | uint32(p[1])<<8 | uint32(p[2])<<16
		}
		return uint32(p[0])<<16 | uint32(p[1])<<8 | uint32(p[2])
	default:
		return f.Order.Uint32(p)
	}
}

func (f *Format) store(p []byte, v uint32) {
	switch f.BytesPerPixel {
	case 1:
		p[0] = byte(v)
	case 2:
		f.Order.PutUint16(p, uint16(v))
	case 3:
		if f.Order == binary.LittleEndian {
			p[0], p[1], p[2] = byte(v), byte(v>>8), byte(v>>16)
		} else {
			p[0], p[1], p[2] = byte(v>>16), byte(v>>8), byte(v)
		}
	default:
		f.Order.PutUint32(p, v)
	}
}

func (m Masks) validate(bpp int) error {
	var (
		limit uint32 = 1<<uint(bpp) - 1
		seen  uint32
	)
	if bpp == 32 {
		limit = 0xffffffff
	}
	for _, mask := range []uint32{m.R, m.G, m.B, m.A} {
		if mask == 0 {
			continue
		}
		if mask&^limit != 0 {
			return fmt.Errorf("%w: mask %#x exceeds %d bits", ErrMasks, mask, bpp)
		}
		if seen&mask != 0 {
			return fmt.Errorf("%w: mask %#x overlaps", ErrMasks, mask)
		}
		// A channel is one run of set bits.
		shifted := mask >> uint(bits.TrailingZeros32(mask))
		if shifted&(shifted+1) != 0 {
			return fmt.Errorf("%w: mask %#x is not contiguous", ErrMasks, mask)
		}
		seen |= mask
	}
	if m.R == 0 || m.G == 0 || m.B == 0 {
		return fmt.Errorf("%w: missing color channel", ErrMasks)
	}
	return nil
}

// DefaultPalette returns a 256 entry gray ramp.
func DefaultPalette() color.Palette {
	p := make(color.Palette, 256)
	for i := range p {
		p[i] = color.Gray{Y: uint8(i)}
	}
	return p
}
