package screen

import (
	"encoding/binary"
	"image"
)

// RetraceOrder is the order of the buffer swap and the vertical retrace wait
// when presenting a frame.
type RetraceOrder int

// Retrace orders.
const (
	// SwapThenWait programs the new visible buffer, then waits for the retrace.
	SwapThenWait RetraceOrder = iota

	// WaitThenSwap waits for the retrace, then programs the new visible buffer.
	WaitThenSwap
)

func (o RetraceOrder) String() string {
	switch o {
	case SwapThenWait:
		return "swap-then-wait"
	case WaitThenSwap:
		return "wait-then-swap"
	default:
		return "unknown"
	}
}

// Backend is the hardware specific part of a session.
//
// A backend is selected once when the session is created and is used from a
// single goroutine.
type Backend interface {
	Enumerator

	// ProbeCurrentMode returns the mode the display is in before activation.
	ProbeCurrentMode() (width, height, depth int)

	// RowStride returns the number of bytes per row of width pixels at bpp bits
	// in mode.
	RowStride(mode VideoMode, width, bpp int) int

	// PixelFormatMasks returns the channel masks for bpp. All zero masks
	// select a palette based format.
	PixelFormatMasks(bpp int) (r, g, b, a uint32)

	// AllocateVisibleBuffers registers buffers as displayable memory for mode.
	AllocateVisibleBuffers(mode VideoMode, buffers []*FrameBuffer) error

	// FreeVisibleBuffers drops the registration of AllocateVisibleBuffers.
	FreeVisibleBuffers()

	// ProgramMode switches the hardware to mode.
	ProgramMode(mode VideoMode) error

	// RestorePreviousMode switches back to the mode found at probe time.
	RestorePreviousMode() error

	// SwapVisibleBuffer makes buffer index the displayed buffer.
	SwapVisibleBuffer(index int) error

	// WaitVerticalRetrace blocks until the next vertical retrace.
	WaitVerticalRetrace() error

	// RetraceOrder returns the swap and wait order of the hardware.
	RetraceOrder() RetraceOrder

	// Pools returns the memory pools for display memory and fast memory.
	// The fast pool may be nil.
	Pools() (video, fast Pool)
}

// RectUpdater is implemented by backends that need to be told which parts of
// a single buffered display changed, such as displays that are not memory
// mapped.
type RectUpdater interface {
	UpdateRects(index int, rects []image.Rectangle) error
}

// DoubleBufferPreferrer is implemented by backends that always want two
// display buffers.
type DoubleBufferPreferrer interface {
	PreferDoubleBuffer() bool
}

// ByteOrderer is implemented by backends whose multi-byte pixels are not
// stored big-endian.
type ByteOrderer interface {
	ByteOrder() binary.ByteOrder
}
