// Package screen manages display modes and frame buffers for hardware display
// backends.
//
// A [Session] catalogs the modes a backend supports, allocates the frame
// buffers a mode needs, converts the caller visible [Surface] to the hardware
// layout (chunky to planar or shadow copies) and swaps buffers in step with
// the vertical retrace.
package screen

import (
	"errors"
	"fmt"
	"os"
)

var debug bool

func init() {
	debug = os.Getenv("SCREEN_DEBUG") != ""
}

// Errors
var (
	ErrModeNotFound           = errors.New("screen: couldn't find requested mode in list")
	ErrAllocationFailed       = errors.New("screen: frame buffer allocation failed")
	ErrFormatAllocationFailed = errors.New("screen: couldn't allocate new pixel format for requested mode")
	ErrHardwareModeRejected   = errors.New("screen: hardware rejected video mode")
	ErrNoMode                 = errors.New("screen: no video mode active")
	ErrClosed                 = errors.New("screen: session is shut down")
)

// BackendError provides context for a failed backend operation.
type BackendError struct {
	Op  string // Backend operation that failed
	Err error  // Underlying error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("screen: backend %s failed: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// SurfaceFlags describe how a surface maps to display memory.
type SurfaceFlags uint32

// Surface flags.
const (
	// HWSurface is set when the surface pixels are display memory.
	HWSurface SurfaceFlags = 1 << iota

	// DoubleBuf requests (and reports) two display buffers.
	DoubleBuf

	// Fullscreen is always set on activated surfaces.
	Fullscreen

	// HWPalette is set when the surface uses a hardware palette.
	HWPalette

	// PreAlloc is set because surface memory is owned by the session.
	PreAlloc
)

func (f SurfaceFlags) String() string {
	var s string
	for _, flag := range []struct {
		f    SurfaceFlags
		name string
	}{
		{HWSurface, "hw"},
		{DoubleBuf, "doublebuf"},
		{Fullscreen, "fullscreen"},
		{HWPalette, "hwpalette"},
		{PreAlloc, "prealloc"},
	} {
		if f&flag.f != 0 {
			if s != "" {
				s += "|"
			}
			s += flag.name
		}
	}
	if s == "" {
		return "none"
	}
	return s
}
