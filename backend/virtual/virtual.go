// Package virtual implements an in-memory display backend modelled after
// the Atari ST, TT, Falcon and Milan video hardware.
//
// The display keeps track of the programmed mode and the displayed buffer,
// records every swap and retrace wait, and can decode the displayed buffer
// with [Display.Snapshot].
package virtual

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"log"
	"os"

	"github.com/BeatGlow/screen"
	"github.com/BeatGlow/screen/pixel"
	"github.com/BeatGlow/screen/planar"
)

var debug bool

func init() {
	debug = os.Getenv("SCREEN_DEBUG") != ""
}

// Errors
var (
	ErrNotRegistered = errors.New("virtual: buffer is not registered")
	ErrNotVideoRAM   = errors.New("virtual: buffer is not in video memory")
	ErrUnknownMode   = errors.New("virtual: mode is not supported by the hardware")
)

// Default memory sizes.
const (
	DefaultVideoMemory = 4 << 20
	DefaultFastMemory  = 16 << 20
)

// Memory map.
const (
	videoBase   = 0x00010000
	fastBase    = 0x01000000
	granularity = 16
)

// Config for a virtual display.
type Config struct {
	// Family of the emulated hardware.
	Family Family `yaml:"family"`

	// VideoMemory and FastMemory are the pool sizes in bytes. A negative
	// FastMemory disables the fast pool.
	VideoMemory int `yaml:"video_memory"`
	FastMemory  int `yaml:"fast_memory"`

	// DoubleBuffer makes the display ask for two buffers.
	DoubleBuffer bool `yaml:"double_buffer"`

	// Modes replaces the mode table of the family.
	Modes []screen.VideoMode `yaml:"-"`
}

// DefaultConfig is the default configuration.
var DefaultConfig = Config{
	Family:      Falcon,
	VideoMemory: DefaultVideoMemory,
	FastMemory:  DefaultFastMemory,
}

// Event recorded by the display.
type Event string

// Events.
const (
	EventProgram Event = "program"
	EventRestore Event = "restore"
	EventSwap    Event = "swap"
	EventWait    Event = "wait"
)

// Faults make display operations fail.
type Faults struct {
	AllocateVisible error
	ProgramMode     error
	Swap            error
	Retrace         error
}

// Display is a virtual display.
type Display struct {
	// Faults to inject.
	Faults Faults

	config  Config
	family  Family
	modes   []screen.VideoMode
	video   *screen.ArenaPool
	fast    screen.Pool
	buffers []*screen.FrameBuffer
	mode    screen.VideoMode
	mode0   screen.VideoMode
	visible int
	events  []Event
	swaps   int
	waits   int
	closed  bool
}

// New returns a virtual display. A nil config selects DefaultConfig.
func New(config *Config) (*Display, error) {
	if config == nil {
		config = &DefaultConfig
	}
	c := *config
	if c.Family == "" {
		c.Family = DefaultConfig.Family
	}
	family, err := ParseFamily(string(c.Family))
	if err != nil {
		return nil, err
	}
	if c.VideoMemory == 0 {
		c.VideoMemory = DefaultVideoMemory
	}
	if c.FastMemory == 0 {
		c.FastMemory = DefaultFastMemory
	}
	if c.VideoMemory < 0 {
		return nil, fmt.Errorf("virtual: invalid video memory size %d", c.VideoMemory)
	}

	d := &Display{
		config: c,
		family: family,
		modes:  c.Modes,
		video:  screen.NewArenaPool(screen.VideoPool, make([]byte, c.VideoMemory), videoBase, granularity),
	}
	if len(d.modes) == 0 {
		d.modes = family.Modes()
	}
	if family.fastMemory() && c.FastMemory > 0 {
		d.fast = screen.NewArenaPool(screen.FastPool, make([]byte, c.FastMemory), fastBase, granularity)
	}

	w, h, depth := family.current()
	d.mode0 = screen.VideoMode{Width: w, Height: h, Depth: depth}
	d.mode = d.mode0

	if debug {
		log.Printf("virtual: %s display with %d KB video memory, %d modes", family, c.VideoMemory>>10, len(d.modes))
	}
	return d, nil
}

func (d *Display) String() string {
	return fmt.Sprintf("virtual %s display (%d KB video memory)", d.family, d.config.VideoMemory>>10)
}

// Family returns the emulated hardware family.
func (d *Display) Family() Family {
	return d.family
}

func (d *Display) ProbeCurrentMode() (width, height, depth int) {
	return d.mode0.Width, d.mode0.Height, d.mode0.Depth
}

func (d *Display) EnumerateModes(dst screen.ModeAdder, reserveOnly bool) {
	for _, mode := range d.modes {
		dst.AddMode(mode, reserveOnly)
	}
}

func (d *Display) RowStride(mode screen.VideoMode, width, bpp int) int {
	if d.family.Planar() {
		return planar.RowBytes(width, bpp)
	}
	return width * ((bpp + 7) / 8)
}

func (d *Display) PixelFormatMasks(bpp int) (r, g, b, a uint32) {
	var m pixel.Masks
	switch bpp {
	case 15:
		m = pixel.RGB555
	case 16:
		m = pixel.RGB565
	case 24:
		m = pixel.RGB888
	case 32:
		m = pixel.XRGB8888
	}
	return m.R, m.G, m.B, m.A
}

// ByteOrder of multi-byte pixels.
func (d *Display) ByteOrder() binary.ByteOrder {
	if d.family == Milan {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// PreferDoubleBuffer reports if the display was configured to ask for two buffers.
func (d *Display) PreferDoubleBuffer() bool {
	return d.config.DoubleBuffer
}

func (d *Display) AllocateVisibleBuffers(mode screen.VideoMode, buffers []*screen.FrameBuffer) error {
	if d.Faults.AllocateVisible != nil {
		return d.Faults.AllocateVisible
	}
	for i, fb := range buffers {
		if _, ok := d.video.Offset(fb.Addr); !ok || fb.Pool != screen.VideoPool {
			return fmt.Errorf("%w: buffer %d at %#x", ErrNotVideoRAM, i, fb.Addr)
		}
	}
	d.buffers = buffers
	return nil
}

func (d *Display) FreeVisibleBuffers() {
	d.buffers = nil
	d.visible = 0
}

func (d *Display) ProgramMode(mode screen.VideoMode) error {
	if d.Faults.ProgramMode != nil {
		return d.Faults.ProgramMode
	}
	if !d.supports(mode) {
		return fmt.Errorf("%w: %s", ErrUnknownMode, mode)
	}
	if len(d.buffers) == 0 {
		return ErrNotRegistered
	}
	d.mode = mode
	d.visible = 0
	d.events = append(d.events, EventProgram)
	if debug {
		log.Printf("virtual: programmed %s, screen at %#x", mode, d.buffers[0].Addr)
	}
	return nil
}

func (d *Display) supports(mode screen.VideoMode) bool {
	for _, m := range d.modes {
		if m.Width == mode.Width && m.Height == mode.Height && m.Depth == mode.Depth {
			return true
		}
	}
	return false
}

func (d *Display) RestorePreviousMode() error {
	d.mode = d.mode0
	d.events = append(d.events, EventRestore)
	return nil
}

func (d *Display) SwapVisibleBuffer(index int) error {
	if d.Faults.Swap != nil {
		return d.Faults.Swap
	}
	if index < 0 || index >= len(d.buffers) {
		return fmt.Errorf("%w: index %d of %d", ErrNotRegistered, index, len(d.buffers))
	}
	d.visible = index
	d.swaps++
	d.events = append(d.events, EventSwap)
	return nil
}

func (d *Display) WaitVerticalRetrace() error {
	if d.Faults.Retrace != nil {
		return d.Faults.Retrace
	}
	d.waits++
	d.events = append(d.events, EventWait)
	return nil
}

func (d *Display) RetraceOrder() screen.RetraceOrder {
	return d.family.RetraceOrder()
}

func (d *Display) Pools() (video, fast screen.Pool) {
	if d.fast == nil {
		return d.video, nil
	}
	return d.video, d.fast
}

// Close the display.
func (d *Display) Close() error {
	d.closed = true
	return nil
}

// Closed reports if the display was closed.
func (d *Display) Closed() bool {
	return d.closed
}

// Mode returns the programmed mode.
func (d *Display) Mode() screen.VideoMode {
	return d.mode
}

// Visible returns the index of the displayed buffer.
func (d *Display) Visible() int {
	return d.visible
}

// Buffers returns the registered buffers.
func (d *Display) Buffers() []*screen.FrameBuffer {
	return d.buffers
}

// Events returns the recorded events and clears the record.
func (d *Display) Events() []Event {
	events := d.events
	d.events = nil
	return events
}

// Swaps returns the number of buffer swaps.
func (d *Display) Swaps() int {
	return d.swaps
}

// Waits returns the number of retrace waits.
func (d *Display) Waits() int {
	return d.waits
}

// VideoMemory returns the video memory pool.
func (d *Display) VideoMemory() *screen.ArenaPool {
	return d.video
}

// Snapshot decodes the displayed buffer.
func (d *Display) Snapshot() (image.Image, error) {
	if len(d.buffers) == 0 {
		return nil, ErrNotRegistered
	}
	var (
		mode  = d.mode
		fb    = d.buffers[d.visible]
		pitch = d.RowStride(mode, mode.Width, mode.Depth)
		rect  = image.Rect(0, 0, mode.Width, mode.Height)
	)

	if mode.Flags&screen.ChunkyToPlanar != 0 {
		dst := &image.Paletted{
			Pix:     make([]byte, planar.RowBytes(mode.Width, 8)*mode.Height),
			Stride:  planar.RowBytes(mode.Width, 8),
			Rect:    rect,
			Palette: pixel.DefaultPalette(),
		}
		planar.Unpack(dst.Pix, fb.Pix, planar.Align16(rect), mode.Depth, mode.Flags&screen.DoubleLine != 0, dst.Stride, pitch)
		return dst, nil
	}

	r, g, b, a := d.PixelFormatMasks(mode.Depth)
	format, err := pixel.NewFormat(mode.Depth, pixel.Masks{R: r, G: g, B: b, A: a})
	if err != nil {
		return nil, err
	}
	format.Order = d.ByteOrder()
	return pixel.NewImage(format, pixel.Buffer{Rect: rect, Pix: fb.Pix, Stride: pitch}), nil
}

// Interface checks
var (
	_ screen.Backend               = (*Display)(nil)
	_ screen.ByteOrderer           = (*Display)(nil)
	_ screen.DoubleBufferPreferrer = (*Display)(nil)
)
