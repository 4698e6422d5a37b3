// Package panel is a display backend for SPI attached TFT panels with an
// ST7789 or ST7735 controller.
//
// The panel controller holds its own frame memory, so visible buffers live in
// system memory and are pushed over the bus on swap. When a tearing effect
// (TE) pin is wired, its rising edge marks the vertical retrace.
package panel

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"log"
	"os"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"

	"github.com/BeatGlow/screen"
	"github.com/BeatGlow/screen/pixel"
)

var debug bool

func init() {
	debug = os.Getenv("SCREEN_DEBUG") != ""
}

// Errors
var (
	ErrTEPin         = errors.New("panel: tearing effect (TE) GPIO pin is invalid")
	ErrBacklightPin  = errors.New("panel: backlight GPIO pin is invalid")
	ErrSize          = errors.New("panel: invalid size")
	ErrUnknownMode   = errors.New("panel: unknown mode")
	ErrNoBuffers     = errors.New("panel: no visible buffers")
	ErrBufferIndex   = errors.New("panel: visible buffer index out of range")
	ErrNotProgrammed = errors.New("panel: no mode programmed")
)

const (
	defaultFrameRate = 60
	backlightRate    = 2 * physic.KiloHertz
)

// Config for a panel.
type Config struct {
	// Controller chip, defaults to ST7789.
	Controller Controller `yaml:"controller"`

	SPI SPIConfig `yaml:"spi"`

	// TE is the tearing effect GPIO pin name, empty if not wired.
	TE string `yaml:"te"`

	// Backlight is the PWM capable backlight GPIO pin name, empty if not wired.
	Backlight string `yaml:"backlight"`

	// Flip turns the panel upside down.
	Flip bool `yaml:"flip"`

	// Width and Height of the panel in its native orientation. Zero selects
	// the controller default.
	Width  int `yaml:"width"`
	Height int `yaml:"height"`

	// RowOffset and ColOffset position the panel in controller memory.
	RowOffset int `yaml:"row_offset"`
	ColOffset int `yaml:"col_offset"`

	// FrameRate is used to pace swaps when no TE pin is wired.
	FrameRate int `yaml:"frame_rate"`

	// DoubleBuffer requests two visible buffers.
	DoubleBuffer bool `yaml:"double_buffer"`
}

// DefaultConfig is the default configuration.
var DefaultConfig = Config{
	Controller: ST7789,
	SPI:        DefaultSPIConfig,
	FrameRate:  defaultFrameRate,
}

// Panel is an ST77xx display.
type Panel struct {
	c         Conn
	ctrl      controller
	te        gpio.PinIn
	backlight gpio.PinOut
	width     int
	height    int
	rowOffset int
	colOffset int
	frameTime time.Duration
	double    bool
	modes     []screen.VideoMode
	video     *screen.HeapPool
	buffers   []*screen.FrameBuffer
	mode      screen.VideoMode
	madctl    byte
	on        bool
	buf       []byte
}

// Open the SPI connection and GPIO pins named in config and initialise the
// panel. The host drivers must be initialised with host.Init first.
func Open(config *Config) (*Panel, error) {
	if config == nil {
		config = &DefaultConfig
	}

	var te gpio.PinIn
	if config.TE != "" {
		p := gpioreg.ByName(config.TE)
		if p == nil || p == gpio.INVALID {
			return nil, ErrTEPin
		}
		te = p
	}
	var backlight gpio.PinOut
	if config.Backlight != "" {
		p := gpioreg.ByName(config.Backlight)
		if p == nil || p == gpio.INVALID {
			return nil, ErrBacklightPin
		}
		backlight = p
	}

	c, err := OpenSPI(&config.SPI)
	if err != nil {
		return nil, err
	}
	p, err := New(c, te, config)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	if backlight != nil {
		p.backlight = backlight
		if err = p.SetBrightness(0xff); err != nil {
			_ = p.Close()
			return nil, err
		}
	} else if debug {
		log.Println("panel: no backlight control")
	}
	return p, nil
}

// New initialises a panel on an open connection. The te pin is optional.
func New(c Conn, te gpio.PinIn, config *Config) (*Panel, error) {
	if config == nil {
		config = &DefaultConfig
	}

	name, err := ParseController(string(config.Controller))
	if err != nil {
		return nil, err
	}

	p := &Panel{
		c:         c,
		ctrl:      controllers[name],
		te:        te,
		width:     config.Width,
		height:    config.Height,
		rowOffset: config.RowOffset,
		colOffset: config.ColOffset,
		double:    config.DoubleBuffer,
		video:     screen.NewHeapPool(screen.VideoPool),
	}
	if p.width == 0 {
		p.width = p.ctrl.width
	}
	if p.height == 0 {
		p.height = p.ctrl.height
	}
	if p.width < 0 || p.height < 0 || p.width > p.ctrl.columns || p.height > p.ctrl.rows {
		return nil, fmt.Errorf("%w %dx%d, maximum size is %dx%d for %s", ErrSize,
			p.width, p.height, p.ctrl.columns, p.ctrl.rows, p.ctrl.name)
	}

	rate := config.FrameRate
	if rate <= 0 {
		rate = defaultFrameRate
	}
	p.frameTime = time.Second / time.Duration(rate)

	native, rotated := madRotate0, madRotate90
	if config.Flip {
		native, rotated = madRotate180, madRotate270
	}
	p.modes = append(p.modes, screen.VideoMode{
		Width:  p.width,
		Height: p.height,
		Depth:  16,
		Data:   native,
	})
	if p.width != p.height {
		p.modes = append(p.modes, screen.VideoMode{
			Width:  p.height,
			Height: p.width,
			Depth:  16,
			Data:   rotated,
		})
	}

	if p.te != nil {
		if err := p.te.In(gpio.PullNoChange, gpio.RisingEdge); err != nil {
			return nil, fmt.Errorf("panel: TE pin: %w", err)
		}
	}

	if err := p.init(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Panel) String() string {
	return fmt.Sprintf("%s %dx%d on %s", p.ctrl.name, p.width, p.height, p.c)
}

func (p *Panel) commands(commands [][]byte) (err error) {
	for _, command := range commands {
		if err = p.c.Command(command[0], command[1:]...); err != nil {
			return
		}
	}
	return
}

func (p *Panel) init() (err error) {
	// reset the device.
	if err = p.c.Reset(gpio.High); err != nil {
		return
	}
	time.Sleep(100 * time.Millisecond)
	if err = p.c.Reset(gpio.Low); err != nil {
		return
	}
	time.Sleep(100 * time.Millisecond)
	if err = p.c.Reset(gpio.High); err != nil {
		return
	}
	time.Sleep(10 * time.Millisecond)

	if p.ctrl.reset {
		if err = p.c.Command(cmdSWRESET); err != nil {
			return
		}
		time.Sleep(settle)
	}
	if err = p.c.Command(cmdSLPOUT); err != nil {
		return
	}
	time.Sleep(settle)

	if err = p.commands(p.ctrl.init); err != nil {
		return
	}

	if p.te != nil {
		// V-blanking information only.
		if err = p.c.Command(cmdTEON, 0x00); err != nil {
			return
		}
	}
	return
}

// SetBrightness sets the backlight duty cycle.
func (p *Panel) SetBrightness(level uint8) error {
	if p.backlight == nil {
		return nil
	}
	const step = gpio.DutyMax / 0xff
	if debug {
		log.Printf("panel: backlight duty cycle to %s at %s", step*gpio.Duty(level), backlightRate)
	}
	return p.backlight.PWM(step*gpio.Duty(level), backlightRate)
}

// ProbeCurrentMode returns the native orientation.
func (p *Panel) ProbeCurrentMode() (width, height, depth int) {
	return p.width, p.height, 16
}

func (p *Panel) EnumerateModes(dst screen.ModeAdder, reserveOnly bool) {
	for _, mode := range p.modes {
		dst.AddMode(mode, reserveOnly)
	}
}

func (p *Panel) RowStride(_ screen.VideoMode, width, bpp int) int {
	return width * ((bpp + 7) / 8)
}

func (p *Panel) PixelFormatMasks(bpp int) (r, g, b, a uint32) {
	if bpp != 16 {
		return
	}
	return pixel.RGB565.R, pixel.RGB565.G, pixel.RGB565.B, pixel.RGB565.A
}

// ByteOrder of pixels on the bus.
func (p *Panel) ByteOrder() binary.ByteOrder {
	return binary.BigEndian
}

// PreferDoubleBuffer reports whether two visible buffers were configured.
func (p *Panel) PreferDoubleBuffer() bool {
	return p.double
}

func (p *Panel) AllocateVisibleBuffers(mode screen.VideoMode, buffers []*screen.FrameBuffer) error {
	if len(buffers) == 0 {
		return ErrNoBuffers
	}
	if !p.supported(mode) {
		return fmt.Errorf("%w %s", ErrUnknownMode, mode)
	}
	p.buffers = append(p.buffers[:0], buffers...)
	return nil
}

func (p *Panel) FreeVisibleBuffers() {
	p.buffers = p.buffers[:0]
}

func (p *Panel) ProgramMode(mode screen.VideoMode) error {
	if !p.supported(mode) {
		return fmt.Errorf("%w %s", ErrUnknownMode, mode)
	}
	if len(p.buffers) == 0 {
		return ErrNoBuffers
	}

	madctl, _ := mode.Data.(byte)
	if err := p.c.Command(cmdMADCTL, madctl); err != nil {
		return err
	}
	p.madctl = madctl
	p.mode = mode

	if err := p.push(p.buffers[0], image.Rect(0, 0, mode.Width, mode.Height)); err != nil {
		return err
	}
	if !p.on {
		if err := p.c.Command(cmdDISPON); err != nil {
			return err
		}
		p.on = true
	}
	if debug {
		log.Printf("panel: programmed %s (MADCTL %#02x)", mode, madctl)
	}
	return nil
}

// RestorePreviousMode blanks the panel.
func (p *Panel) RestorePreviousMode() error {
	p.mode = screen.VideoMode{}
	if !p.on {
		return nil
	}
	p.on = false
	return p.c.Command(cmdDISPOFF)
}

// SwapVisibleBuffer pushes the full buffer to the panel.
func (p *Panel) SwapVisibleBuffer(index int) error {
	fb, err := p.buffer(index)
	if err != nil {
		return err
	}
	return p.push(fb, image.Rect(0, 0, p.mode.Width, p.mode.Height))
}

// UpdateRects pushes the rectangles of a buffer to the panel.
func (p *Panel) UpdateRects(index int, rects []image.Rectangle) error {
	fb, err := p.buffer(index)
	if err != nil {
		return err
	}
	bounds := image.Rect(0, 0, p.mode.Width, p.mode.Height)
	for _, r := range rects {
		if r = r.Intersect(bounds); r.Empty() {
			continue
		}
		if err = p.push(fb, r); err != nil {
			return err
		}
	}
	return nil
}

// WaitVerticalRetrace waits for the TE pin to signal vertical blanking, or
// for one frame time if it isn't wired.
func (p *Panel) WaitVerticalRetrace() error {
	if p.te == nil {
		time.Sleep(p.frameTime)
		return nil
	}
	p.te.WaitForEdge(-1)
	return nil
}

// RetraceOrder waits on the TE edge before a transfer, so the panel scans
// out behind the write.
func (p *Panel) RetraceOrder() screen.RetraceOrder {
	if p.te != nil {
		return screen.WaitThenSwap
	}
	return screen.SwapThenWait
}

func (p *Panel) Pools() (video, fast screen.Pool) {
	return p.video, nil
}

// Close the panel connection.
func (p *Panel) Close() error {
	var errs []error
	if p.on {
		p.on = false
		errs = append(errs, p.c.Command(cmdDISPOFF))
	}
	if p.backlight != nil {
		errs = append(errs, p.backlight.Out(gpio.Low))
	}
	if p.te != nil {
		errs = append(errs, p.te.Halt())
	}
	errs = append(errs, p.c.Close())
	return errors.Join(errs...)
}

func (p *Panel) supported(mode screen.VideoMode) bool {
	for _, m := range p.modes {
		if m.Width == mode.Width && m.Height == mode.Height && m.Depth == mode.Depth {
			return true
		}
	}
	return false
}

func (p *Panel) buffer(index int) (*screen.FrameBuffer, error) {
	if p.mode.Width == 0 {
		return nil, ErrNotProgrammed
	}
	if index < 0 || index >= len(p.buffers) {
		return nil, fmt.Errorf("%w: %d", ErrBufferIndex, index)
	}
	return p.buffers[index], nil
}

func (p *Panel) setWindow(x0, y0, x1, y1 int) error {
	if p.madctl&madPageColumnOrder != 0 {
		x0 += p.rowOffset
		y0 += p.colOffset
		x1 += p.rowOffset
		y1 += p.colOffset
	} else {
		x0 += p.colOffset
		y0 += p.rowOffset
		x1 += p.colOffset
		y1 += p.rowOffset
	}
	return p.commands([][]byte{
		{cmdCASET, byte(x0 >> 8), byte(x0), byte(x1 >> 8), byte(x1)}, // Column address
		{cmdRASET, byte(y0 >> 8), byte(y0), byte(y1 >> 8), byte(y1)}, // Row address
		{cmdRAMWR}, // Write to RAM
	})
}

// push writes the pixels of r in fb to the panel.
func (p *Panel) push(fb *screen.FrameBuffer, r image.Rectangle) error {
	if err := p.setWindow(r.Min.X, r.Min.Y, r.Max.X-1, r.Max.Y-1); err != nil {
		return err
	}

	var (
		pitch = p.mode.Width * 2
		i     = r.Min.Y*pitch + r.Min.X*2
		n     = r.Dx() * 2
	)
	if n == pitch {
		return p.c.Data(fb.Pix[i : i+n*r.Dy()]...)
	}

	p.buf = p.buf[:0]
	for y := r.Min.Y; y < r.Max.Y; y, i = y+1, i+pitch {
		p.buf = append(p.buf, fb.Pix[i:i+n]...)
	}
	return p.c.Data(p.buf...)
}

var (
	_ screen.Backend               = (*Panel)(nil)
	_ screen.RectUpdater           = (*Panel)(nil)
	_ screen.DoubleBufferPreferrer = (*Panel)(nil)
	_ screen.ByteOrderer           = (*Panel)(nil)
)
