package fbdev

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"os"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/BeatGlow/screen"
	"github.com/BeatGlow/screen/internal/ioctl"
)

// From <linux/fb.h>
const (
	fbioGetVScreenInfo = 0x4600
	fbioPutVScreenInfo = 0x4601
	fbioGetFScreenInfo = 0x4602
	fbioPanDisplay     = 0x4606
)

var fbioWaitForVsync = ioctl.Pointer(ioctl.Write, (*uint32)(nil), 'F'<<8|0x20)

// Device is a Linux framebuffer device.
type Device struct {
	config   Config
	f        *os.File
	fd       uintptr
	fix      fixScreenInfo
	info     varScreenInfo
	saved    varScreenInfo
	mode     screen.VideoMode
	mem      []byte
	video    *screen.ArenaPool
	fast     *screen.HeapPool
	yoffsets []uint32
	frame    time.Duration
	noVsync  bool
}

// Open a Linux FrameBuffer device (fbdev). A nil config selects DefaultConfig.
func Open(config *Config) (screen.Backend, error) {
	if config == nil {
		config = &DefaultConfig
	}
	name := config.Device
	if name == "" {
		name = DefaultDevice
	}

	f, err := os.OpenFile(name, os.O_RDWR, os.ModeDevice)
	if err != nil {
		return nil, err
	}

	d := &Device{
		config: *config,
		f:      f,
		fd:     f.Fd(),
		fast:   screen.NewHeapPool(screen.FastPool),
	}
	if err = d.ioctl(fbioGetVScreenInfo, unsafe.Pointer(&d.saved)); err != nil {
		_ = f.Close()
		return nil, err
	}
	d.info = d.saved

	if config.DoubleBuffer {
		d.enlargeVirtual()
	}

	if err = d.ioctl(fbioGetFScreenInfo, unsafe.Pointer(&d.fix)); err != nil {
		_ = f.Close()
		return nil, err
	}
	if d.mode, err = modeOf(&d.fix, &d.info, config.ShadowCopy); err != nil {
		_ = f.Close()
		return nil, err
	}

	// Map pixel buffer.
	if d.mem, err = unix.Mmap(int(d.fd), 0, int(d.fix.SmemLen), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED); err != nil {
		_ = f.Close()
		return nil, err
	}
	d.video = screen.NewArenaPool(screen.VideoPool, d.mem, uint64(d.fix.SmemStart), granularity(int(d.fix.LineLength)))
	d.frame = d.info.frameTime()

	if debug {
		log.Printf("fbdev: %s %q: %s, line length %d, virtual %dx%d, %d KB video memory",
			name, string(d.fix.ID[:]), d.mode, d.fix.LineLength, d.info.XresVirtual, d.info.YresVirtual, d.fix.SmemLen>>10)
	}
	return d, nil
}

// enlargeVirtual asks for a virtual screen that holds two frames and the
// alignment slack of the second one.
func (d *Device) enlargeVirtual() {
	want := 2*d.info.Yres + 2
	if d.info.YresVirtual >= want {
		return
	}
	info := d.info
	info.YresVirtual = want
	if err := d.ioctl(fbioPutVScreenInfo, unsafe.Pointer(&info)); err != nil {
		log.Printf("fbdev: can't enlarge virtual screen to %d lines: %v", want, err)
		return
	}
	if err := d.ioctl(fbioGetVScreenInfo, unsafe.Pointer(&d.info)); err != nil {
		log.Printf("fbdev: can't read back virtual screen: %v", err)
		d.info = info
	}
}

func (d *Device) ioctl(cmd uintptr, arg unsafe.Pointer) error {
	if err := ioctl.Do(d.fd, ioctl.Command(cmd), arg); err != nil {
		return &os.SyscallError{
			Syscall: "SYS_IOCTL",
			Err:     err,
		}
	}
	return nil
}

func (d *Device) String() string {
	return fmt.Sprintf("fbdev %s %dx%dx%d", d.config.Device, d.info.Xres, d.info.Yres, d.info.BitsPerPixel)
}

func (d *Device) ProbeCurrentMode() (width, height, depth int) {
	return d.mode.Width, d.mode.Height, d.mode.Depth
}

func (d *Device) EnumerateModes(dst screen.ModeAdder, reserveOnly bool) {
	dst.AddMode(d.mode, reserveOnly)
}

func (d *Device) RowStride(mode screen.VideoMode, width, bpp int) int {
	return rowStride(&d.fix, mode, width, bpp)
}

func (d *Device) PixelFormatMasks(bpp int) (r, g, b, a uint32) {
	if bpp != d.mode.Depth {
		return 0, 0, 0, 0
	}
	return masks(&d.fix, &d.info)
}

// ByteOrder of multi-byte pixels, which is the CPU byte order.
func (d *Device) ByteOrder() binary.ByteOrder {
	return binary.NativeEndian
}

// PreferDoubleBuffer reports if double buffering was configured.
func (d *Device) PreferDoubleBuffer() bool {
	return d.config.DoubleBuffer
}

func (d *Device) AllocateVisibleBuffers(mode screen.VideoMode, buffers []*screen.FrameBuffer) error {
	yoffsets := make([]uint32, len(buffers))
	for i, fb := range buffers {
		y, err := yOffset(&d.fix, &d.info, d.video.Base(), fb.Addr)
		if err != nil {
			return fmt.Errorf("buffer %d: %w", i, err)
		}
		yoffsets[i] = y
	}
	d.yoffsets = yoffsets
	return nil
}

func (d *Device) FreeVisibleBuffers() {
	d.yoffsets = nil
}

func (d *Device) pan(y uint32) error {
	info := d.info
	info.Xoffset = 0
	info.Yoffset = y
	if err := d.ioctl(fbioPanDisplay, unsafe.Pointer(&info)); err != nil {
		return err
	}
	d.info.Yoffset = y
	return nil
}

func (d *Device) ProgramMode(mode screen.VideoMode) error {
	if mode.Width != d.mode.Width || mode.Height != d.mode.Height || mode.Depth != d.mode.Depth {
		return fmt.Errorf("fbdev: mode %s differs from framebuffer mode %s", mode, d.mode)
	}
	if len(d.yoffsets) == 0 {
		return errors.New("fbdev: no buffers registered")
	}
	return d.pan(d.yoffsets[0])
}

func (d *Device) RestorePreviousMode() error {
	saved := d.saved
	if err := d.ioctl(fbioPutVScreenInfo, unsafe.Pointer(&saved)); err != nil {
		return err
	}
	d.info = d.saved
	return nil
}

func (d *Device) SwapVisibleBuffer(index int) error {
	if index < 0 || index >= len(d.yoffsets) {
		return fmt.Errorf("fbdev: no buffer %d", index)
	}
	return d.pan(d.yoffsets[index])
}

// WaitVerticalRetrace waits for the vertical sync. Drivers without
// FBIO_WAITFORVSYNC are approximated by sleeping one frame.
func (d *Device) WaitVerticalRetrace() error {
	if !d.noVsync {
		var crtc uint32
		err := ioctl.Do(d.fd, fbioWaitForVsync, unsafe.Pointer(&crtc))
		if err == nil {
			return nil
		}
		if !errors.Is(err, unix.ENOTTY) && !errors.Is(err, unix.EINVAL) {
			return err
		}
		if debug {
			log.Printf("fbdev: no vsync support (%v), sleeping %s per frame", err, d.frame)
		}
		d.noVsync = true
	}
	time.Sleep(d.frame)
	return nil
}

// RetraceOrder of the framebuffer; panning is latched at the next retrace.
func (d *Device) RetraceOrder() screen.RetraceOrder {
	return screen.SwapThenWait
}

func (d *Device) Pools() (video, fast screen.Pool) {
	return d.video, d.fast
}

// Close the framebuffer device
func (d *Device) Close() error {
	if d.mem != nil {
		if err := unix.Munmap(d.mem); err != nil {
			return err
		}
		d.mem = nil
	}
	return d.f.Close()
}

// Interface checks
var (
	_ screen.Backend               = (*Device)(nil)
	_ screen.ByteOrderer           = (*Device)(nil)
	_ screen.DoubleBufferPreferrer = (*Device)(nil)
)
