// Package fbdev is a display backend for the Linux framebuffer device.
//
// The device is used in the mode it was configured in. Double buffering pans
// the display between two halves of a doubled virtual screen, bit-plane
// framebuffers (such as the Atari ones) are fed through chunky to planar
// conversion.
package fbdev

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BeatGlow/screen"
	"github.com/BeatGlow/screen/planar"
)

var debug bool

func init() {
	debug = os.Getenv("SCREEN_DEBUG") != ""
}

// Errors
var (
	ErrNotSupported = errors.New("fbdev: not supported")
	ErrFormat       = errors.New("fbdev: unsupported framebuffer format")
	ErrPanning      = errors.New("fbdev: buffer can't be reached by panning")
)

// DefaultDevice is the default framebuffer device.
const DefaultDevice = "/dev/fb0"

// Config for a framebuffer device.
type Config struct {
	// Device name, typically /dev/fb[0..x].
	Device string `yaml:"device"`

	// DoubleBuffer enlarges the virtual screen to hold two frames.
	DoubleBuffer bool `yaml:"double_buffer"`

	// ShadowCopy draws in system memory and copies to the framebuffer.
	ShadowCopy bool `yaml:"shadow_copy"`
}

// DefaultConfig is the default configuration.
var DefaultConfig = Config{
	Device: DefaultDevice,
}

// From <linux/fb.h>
const (
	fbTypePackedPixels      = 0
	fbTypeInterleavedPlanes = 2

	fbVisualPseudoColor = 3
)

type fixScreenInfo struct {
	ID         [16]byte  // Identification string eg "TT Builtin"
	SmemStart  uintptr   // Start of frame buffer mem
	SmemLen    uint32    // Length of frame buffer mem
	Type       uint32    // FB_TYPE_
	TypeAux    uint32    // Interleave for interleaved Planes
	Visual     uint32    // FB_VISUAL_
	Xpanstep   uint16    // Zero if no hardware panning
	Ypanstep   uint16    // Zero if no hardware panning
	Ywrapstep  uint16    // Zero if no hardware ywrap
	LineLength uint32    // Length of a line in bytes
	MmioStart  uintptr   // Start of Memory Mapped I/O (physical address)
	MmioLen    uint32    // Length of Memory Mapped I/O
	Accel      uint32    // Type of acceleration available
	Reserved   [3]uint16 // Reserved for future compatibility
}

// bitField for the color
type bitField struct {
	Offset   uint32 // Beginning of bitfield
	Length   uint32 // Length of bitfield
	MsbRight uint32 // != 0 : Most significant bit is right
}

func (b bitField) mask() uint32 {
	if b.Length == 0 {
		return 0
	}
	return (1<<b.Length - 1) << b.Offset
}

// varScreenInfo contains device independent changeable information about a frame buffer device and a specific video mode.
type varScreenInfo struct {
	Xres                    uint32
	Yres                    uint32
	XresVirtual             uint32
	YresVirtual             uint32
	Xoffset                 uint32
	Yoffset                 uint32
	BitsPerPixel            uint32
	Grayscale               uint32
	Red, Green, Blue, Alpha bitField
	Nonstd                  uint32
	Activate                uint32
	Height                  uint32
	Width                   uint32
	AccelFlags              uint32
	Pixclock                uint32
	LeftMargin              uint32
	RightMargin             uint32
	UpperMargin             uint32
	LowerMargin             uint32
	HsyncLen                uint32
	VsyncLen                uint32
	Sync                    uint32
	Vmode                   uint32
	Rotate                  uint32
	Colorspace              uint32
	Reserved                [4]uint32
}

// frameTime returns the duration of one frame, 60 Hz if the timings are unknown.
func (v *varScreenInfo) frameTime() time.Duration {
	var (
		htotal = uint64(v.Xres + v.LeftMargin + v.RightMargin + v.HsyncLen)
		vtotal = uint64(v.Yres + v.UpperMargin + v.LowerMargin + v.VsyncLen)
	)
	if v.Pixclock == 0 || htotal == 0 || vtotal == 0 {
		return time.Second / 60
	}
	// Pixclock is in picoseconds
	return time.Duration(uint64(v.Pixclock) * htotal * vtotal / 1000)
}

// masks returns the channel masks, all zero for palette based visuals.
func masks(fix *fixScreenInfo, v *varScreenInfo) (r, g, b, a uint32) {
	if fix.Visual == fbVisualPseudoColor || v.BitsPerPixel <= 8 {
		return 0, 0, 0, 0
	}
	return v.Red.mask(), v.Green.mask(), v.Blue.mask(), v.Alpha.mask()
}

// modeOf returns the mode the framebuffer is in.
func modeOf(fix *fixScreenInfo, v *varScreenInfo, shadow bool) (screen.VideoMode, error) {
	mode := screen.VideoMode{
		Width:  int(v.Xres),
		Height: int(v.Yres),
		Depth:  int(v.BitsPerPixel),
	}
	switch fix.Type {
	case fbTypePackedPixels:
		switch mode.Depth {
		case 8, 15, 16, 24, 32:
		default:
			return mode, fmt.Errorf("%w: %d bits packed pixels", ErrFormat, mode.Depth)
		}
		if shadow {
			mode.Flags = screen.ShadowCopy
		}
	case fbTypeInterleavedPlanes:
		// Atari layout interleaves the planes every word
		if fix.TypeAux != 2 || !planar.ValidDepth(mode.Depth) {
			return mode, fmt.Errorf("%w: %d planes interleaved every %d bytes", ErrFormat, mode.Depth, fix.TypeAux)
		}
		mode.Flags = screen.ChunkyToPlanar
	default:
		return mode, fmt.Errorf("%w: type %d", ErrFormat, fix.Type)
	}
	return mode, nil
}

// rowStride returns the bytes per row of width pixels at bpp bits.
func rowStride(fix *fixScreenInfo, mode screen.VideoMode, width, bpp int) int {
	if width == mode.Width && bpp == mode.Depth && fix.LineLength != 0 {
		return int(fix.LineLength)
	}
	if fix.Type == fbTypeInterleavedPlanes {
		return planar.RowBytes(width, bpp)
	}
	return width * ((bpp + 7) / 8)
}

// yOffset returns the first line of a buffer at addr in framebuffer memory
// starting at base.
func yOffset(fix *fixScreenInfo, v *varScreenInfo, base, addr uint64) (uint32, error) {
	if addr < base || fix.LineLength == 0 {
		return 0, fmt.Errorf("%w: address %#x", ErrPanning, addr)
	}
	off := addr - base
	if off%uint64(fix.LineLength) != 0 {
		return 0, fmt.Errorf("%w: offset %d is not a multiple of the %d byte line length", ErrPanning, off, fix.LineLength)
	}
	y := uint32(off / uint64(fix.LineLength))
	if y+v.Yres > v.YresVirtual {
		return 0, fmt.Errorf("%w: line %d outside of the %d line virtual screen", ErrPanning, y, v.YresVirtual)
	}
	return y, nil
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// granularity returns the placement granularity of buffers: whole lines on
// aligned addresses.
func granularity(lineLength int) int {
	if lineLength <= 0 {
		return screen.Alignment
	}
	return lineLength / gcd(lineLength, screen.Alignment) * screen.Alignment
}
