package screen

import (
	"errors"
	"fmt"
	"image"
	"io"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/BeatGlow/screen/pixel"
)

// Session drives one display backend.
//
// A Session is not safe for concurrent use; display updates must be issued
// from one goroutine in the order they should reach the screen.
type Session struct {
	// ID identifies the session in logs and metrics.
	ID string

	config  Config
	backend Backend
	catalog Catalog
	alloc   *Allocator
	blit    blitter
	swap    swapper
	metrics *sessionMetrics

	// Geometry found at start up.
	probeWidth, probeHeight, probeDepth int

	mode         VideoMode
	surface      *Surface
	registered   bool // Buffers are registered with the backend
	allocated    int  // Bytes held by buffers
	shadowWarned bool
	closed       bool
}

// Info describes the state of a session.
type Info struct {
	ID string

	// Width, Height and Depth of the current mode, or of the mode found at
	// start up if no mode was activated.
	Width, Height, Depth int

	// VideoMemory is the free display memory in bytes, -1 if unknown.
	VideoMemory int

	// Buffers is the number of hardware buffers of the current mode.
	Buffers int

	// Shadow is set if the surface is converted or copied to the hardware.
	Shadow bool

	// RetraceOrder of the backend.
	RetraceOrder RetraceOrder
}

// New starts a session on backend. A nil config selects DefaultConfig.
func New(backend Backend, config *Config) (*Session, error) {
	if config == nil {
		config = &DefaultConfig
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	video, fast := backend.Pools()
	if video == nil {
		return nil, &BackendError{Op: "pools", Err: errors.New("no video memory pool")}
	}

	s := &Session{
		ID:      uuid.New().String(),
		config:  *config,
		backend: backend,
		alloc:   NewAllocator(backend, video, fast),
	}
	s.swap.backend = backend
	s.metrics = newSessionMetrics(config.Registerer, config.Metrics.Namespace, s.ID)
	s.swap.observe = func(d time.Duration) {
		s.metrics.retraceWait.Observe(d.Seconds())
	}

	s.probeWidth, s.probeHeight, s.probeDepth = backend.ProbeCurrentMode()
	s.catalog.Build(backend)

	if debug {
		log.Printf("screen: session %s: display is %dx%dx%d, %s", s.ID,
			s.probeWidth, s.probeHeight, s.probeDepth, backend.RetraceOrder())
	}
	return s, nil
}

// ListModes returns the sizes of the modes available for bpp bits per
// pixel, largest first.
func (s *Session) ListModes(bpp int) []image.Rectangle {
	return s.catalog.Rects(ClassOf(bpp))
}

// Modes returns the modes of class, largest first.
func (s *Session) Modes(class DepthClass) []VideoMode {
	return s.catalog.List(class)
}

// Current returns the active mode.
func (s *Session) Current() (VideoMode, bool) {
	return s.mode, s.surface != nil
}

// Surface returns the surface of the active mode, or nil.
func (s *Session) Surface() *Surface {
	return s.surface
}

// Held returns the number of frame buffers held by the session.
func (s *Session) Held() int {
	return s.alloc.Held()
}

// Info returns the state of the session.
func (s *Session) Info() Info {
	info := Info{
		ID:           s.ID,
		Width:        s.probeWidth,
		Height:       s.probeHeight,
		Depth:        s.probeDepth,
		VideoMemory:  s.alloc.Available(),
		Buffers:      len(s.swap.buffers),
		Shadow:       s.swap.shadow != nil,
		RetraceOrder: s.backend.RetraceOrder(),
	}
	if s.surface != nil {
		info.Width, info.Height, info.Depth = s.mode.Width, s.mode.Height, s.mode.Depth
	}
	return info
}

// Activate switches the display to a mode of width by height pixels at
// bpp bits per pixel and returns the surface to draw on. Zero arguments
// select the configured or start up geometry.
//
// Buffers of a previous activation are released first. If activation fails,
// no buffers are held afterwards.
func (s *Session) Activate(width, height, bpp int, flags SurfaceFlags) (*Surface, error) {
	if s.closed {
		return nil, ErrClosed
	}
	width, height, bpp = s.defaults(width, height, bpp)

	// Free current buffers
	s.release()

	mode, err := s.catalog.Lookup(ClassOf(bpp), width, height)
	if err != nil {
		s.metrics.activations.WithLabelValues(resultModeNotFound).Inc()
		return nil, err
	}

	var (
		surfaceBits = mode.Depth
		modeFlags   = Fullscreen | PreAlloc | HWSurface
		shadow      *FrameBuffer
	)
	if mode.Class() == Class8 {
		// Low depth modes are drawn one byte per pixel
		surfaceBits = 8
	}
	var (
		lineWidth = s.backend.RowStride(mode, width, surfaceBits)
		size      = s.alloc.ComputeSize(mode, width, height, surfaceBits)
	)

	if mode.Flags&(ChunkyToPlanar|ShadowCopy) != 0 {
		if shadow, err = s.alloc.AllocateShadow(s.alloc.ShadowSize(mode, width, height, surfaceBits)); err != nil {
			s.metrics.activations.WithLabelValues(resultAllocation).Inc()
			return nil, err
		}
		modeFlags &^= HWSurface
	}

	count := 1
	if flags&DoubleBuf != 0 || s.config.DoubleBuffer || s.prefersDoubleBuffer() {
		count = 2
		modeFlags |= DoubleBuf
	}

	buffers, err := s.alloc.Allocate(VideoPool, count, size)
	if err != nil {
		s.alloc.Release(shadow)
		s.metrics.activations.WithLabelValues(resultAllocation).Inc()
		return nil, err
	}
	if err = s.backend.AllocateVisibleBuffers(mode, buffers); err != nil {
		s.alloc.Release(shadow)
		s.alloc.Release(buffers...)
		s.metrics.activations.WithLabelValues(resultAllocation).Inc()
		return nil, fmt.Errorf("%w: %w", ErrAllocationFailed, &BackendError{Op: "allocate visible buffers", Err: err})
	}
	s.registered = true

	format, err := s.newFormat(surfaceBits)
	if err != nil {
		s.unwind(buffers, shadow)
		s.metrics.activations.WithLabelValues(resultFormat).Inc()
		return nil, fmt.Errorf("%w: %v", ErrFormatAllocationFailed, err)
	}
	if format.Paletted() {
		modeFlags |= HWPalette
	}

	// Pitch of the hardware buffer, used for conversions
	s.blit = blitter{
		mode:  mode,
		pitch: s.backend.RowStride(mode, mode.Width, mode.Depth),
	}
	s.swap.reset(buffers, shadow)

	surface := &Surface{
		Buffer: pixel.Buffer{
			Rect:   image.Rect(0, 0, width, height),
			Stride: lineWidth,
		},
		Format: format,
		Flags:  modeFlags,
	}
	if shadow != nil {
		surface.Pix = shadow.Pix
	} else {
		surface.Pix = s.swap.target().Pix
	}

	if err = s.backend.ProgramMode(mode); err != nil {
		s.unwind(buffers, shadow)
		s.metrics.activations.WithLabelValues(resultModeRejected).Inc()
		return nil, fmt.Errorf("%w: %w", ErrHardwareModeRejected, &BackendError{Op: "program mode", Err: err})
	}
	if err = s.swap.waitRetrace(); err != nil {
		_ = s.backend.RestorePreviousMode()
		s.unwind(buffers, shadow)
		s.metrics.activations.WithLabelValues(resultModeRejected).Inc()
		return nil, fmt.Errorf("%w: %w", ErrHardwareModeRejected, err)
	}

	s.mode = mode
	s.surface = surface
	s.allocated = 0
	for _, fb := range append(buffers, shadow) {
		if fb != nil {
			s.allocated += fb.Size
		}
	}
	s.metrics.framebufferBytes.Set(float64(s.allocated))
	s.metrics.activations.WithLabelValues(resultOK).Inc()

	if debug {
		log.Printf("screen: session %s: activated %s, %d buffer(s) of %d bytes, surface %s",
			s.ID, mode, count, size, surface)
	}
	return surface, nil
}

func (s *Session) defaults(width, height, bpp int) (int, int, int) {
	if width == 0 || height == 0 {
		if s.config.Width != 0 {
			width, height = s.config.Width, s.config.Height
		} else {
			width, height = s.probeWidth, s.probeHeight
		}
	}
	if bpp == 0 {
		if bpp = s.config.Depth; bpp == 0 {
			bpp = s.probeDepth
		}
	}
	return width, height, bpp
}

func (s *Session) prefersDoubleBuffer() bool {
	p, ok := s.backend.(DoubleBufferPreferrer)
	return ok && p.PreferDoubleBuffer()
}

func (s *Session) newFormat(bpp int) (*pixel.Format, error) {
	r, g, b, a := s.backend.PixelFormatMasks(bpp)
	format, err := pixel.NewFormat(bpp, pixel.Masks{R: r, G: g, B: b, A: a})
	if err != nil {
		return nil, err
	}
	if o, ok := s.backend.(ByteOrderer); ok {
		format.Order = o.ByteOrder()
	}
	return format, nil
}

// unwind releases the buffers of a failed activation.
func (s *Session) unwind(buffers []*FrameBuffer, shadow *FrameBuffer) {
	if s.registered {
		s.backend.FreeVisibleBuffers()
		s.registered = false
	}
	s.alloc.Release(buffers...)
	s.alloc.Release(shadow)
	s.swap.reset(nil, nil)
}

// release frees the buffers of the active mode.
func (s *Session) release() {
	s.unwind(s.swap.buffers, s.swap.shadow)
	if s.surface != nil {
		s.surface.Pix = nil
		s.surface = nil
	}
	s.mode = VideoMode{}
	s.allocated = 0
	s.metrics.framebufferBytes.Set(0)
}

func (s *Session) warnShadow() {
	if s.swap.shadow != nil && !s.shadowWarned {
		log.Printf("screen: session %s: shadow buffer in use, %s updates are converted by the CPU", s.ID, s.mode)
		s.shadowWarned = true
	}
}

// UpdateDisplay makes the rectangles of the surface visible. Without
// rectangles the whole surface is updated.
func (s *Session) UpdateDisplay(rects ...image.Rectangle) error {
	if s.closed {
		return ErrClosed
	}
	if s.surface == nil {
		return ErrNoMode
	}
	s.warnShadow()
	if len(rects) == 0 {
		rects = []image.Rectangle{s.surface.Rect}
	}

	n := s.blit.blit(s.swap.target().Pix, s.surface, rects)
	s.metrics.blitBytes.Add(float64(n))
	s.metrics.displayUpdates.WithLabelValues(updateKindRects).Inc()

	return s.present(rects)
}

// FlipDisplay makes the whole surface visible.
func (s *Session) FlipDisplay() error {
	if s.closed {
		return ErrClosed
	}
	if s.surface == nil {
		return ErrNoMode
	}
	s.warnShadow()

	n := s.blit.flip(s.swap.target().Pix, s.surface)
	s.metrics.blitBytes.Add(float64(n))
	s.metrics.displayUpdates.WithLabelValues(updateKindFlip).Inc()

	return s.present([]image.Rectangle{s.surface.Rect})
}

func (s *Session) present(rects []image.Rectangle) error {
	if !s.swap.doubleBuffered() {
		if u, ok := s.backend.(RectUpdater); ok {
			if err := u.UpdateRects(s.swap.active, rects); err != nil {
				return &BackendError{Op: "update rects", Err: err}
			}
		}
		return nil
	}
	if err := s.swap.present(s.surface); err != nil {
		return err
	}
	s.metrics.swaps.Inc()
	return nil
}

// Shutdown restores the display mode found at start up and releases all
// resources. The backend is closed if it implements io.Closer.
func (s *Session) Shutdown() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if err := s.backend.RestorePreviousMode(); err != nil {
		errs = append(errs, &BackendError{Op: "restore previous mode", Err: err})
	}
	if err := s.swap.waitRetrace(); err != nil {
		errs = append(errs, err)
	}
	s.release()
	s.catalog.Reset()

	if c, ok := s.backend.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, &BackendError{Op: "close", Err: err})
		}
	}
	if s.config.Registerer != nil {
		for _, c := range s.metrics.collectors() {
			s.config.Registerer.Unregister(c)
		}
	}

	if debug {
		log.Printf("screen: session %s: shut down", s.ID)
	}
	return errors.Join(errs...)
}

// Interface checks
var (
	_ Strider = (Backend)(nil)
)
