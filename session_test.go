package screen_test

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"reflect"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/BeatGlow/screen"
	"github.com/BeatGlow/screen/backend/virtual"
)

func testDisplay(t *testing.T, config virtual.Config) *virtual.Display {
	t.Helper()
	d, err := virtual.New(&config)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func testSession(t *testing.T, b screen.Backend, config *screen.Config) *screen.Session {
	t.Helper()
	s, err := screen.New(b, config)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestSessionEndToEnd(t *testing.T) {
	d := testDisplay(t, virtual.Config{
		Family: virtual.Falcon,
		Modes:  []screen.VideoMode{{Width: 320, Height: 200, Depth: 8}},
	})
	s := testSession(t, d, nil)

	surface, err := s.Activate(320, 200, 8, 0)
	if err != nil {
		t.Fatal(err)
	}
	if v := d.RowStride(screen.VideoMode{Width: 320, Height: 200, Depth: 8}, 320, 8); surface.Stride != v {
		t.Errorf("expected pitch %d, got %d", v, surface.Stride)
	}
	if surface.Pix == nil {
		t.Fatal("expected surface pixels")
	}
	if s.Held() != 1 {
		t.Errorf("expected 1 buffer held, got %d", s.Held())
	}
	want := screen.Fullscreen | screen.PreAlloc | screen.HWSurface | screen.HWPalette
	if surface.Flags != want {
		t.Errorf("expected flags %s, got %s", want, surface.Flags)
	}

	_, err = s.Activate(640, 480, 8, 0)
	if !errors.Is(err, screen.ErrModeNotFound) {
		t.Fatalf("expected ErrModeNotFound, got %v", err)
	}
	if s.Held() != 0 {
		t.Errorf("expected 0 buffers held, got %d", s.Held())
	}
	if v := d.VideoMemory().Available(); v != d.VideoMemory().Len() {
		t.Errorf("expected all video memory available, got %d of %d", v, d.VideoMemory().Len())
	}
	if _, ok := s.Current(); ok {
		t.Error("expected no active mode")
	}
	if err = s.UpdateDisplay(); !errors.Is(err, screen.ErrNoMode) {
		t.Errorf("expected ErrNoMode, got %v", err)
	}
}

func TestSessionListModes(t *testing.T) {
	s := testSession(t, testDisplay(t, virtual.Config{Family: virtual.Falcon}), nil)

	want := []image.Rectangle{
		image.Rect(0, 0, 640, 480),
		image.Rect(0, 0, 640, 400),
		image.Rect(0, 0, 320, 240),
		image.Rect(0, 0, 320, 200),
	}
	if v := s.ListModes(8); !reflect.DeepEqual(v, want) {
		t.Errorf("expected %v, got %v", want, v)
	}
	if v := s.ListModes(16); len(v) != 3 {
		t.Errorf("expected 3 16-bit modes, got %v", v)
	}
	if v := s.ListModes(32); len(v) != 0 {
		t.Errorf("expected no 32-bit modes, got %v", v)
	}
	if v := s.Modes(screen.Class16); v[0].Width != 320 || v[0].Height != 480 {
		t.Errorf("expected 320x480 first, got %s", v[0])
	}
}

func TestSessionChunkyToPlanar(t *testing.T) {
	d := testDisplay(t, virtual.Config{Family: virtual.Falcon})
	s := testSession(t, d, nil)

	surface, err := s.Activate(320, 200, 8, screen.DoubleBuf)
	if err != nil {
		t.Fatal(err)
	}
	if surface.Flags&screen.HWSurface != 0 {
		t.Error("expected shadow surface")
	}
	if surface.Flags&screen.DoubleBuf == 0 {
		t.Error("expected double buffered surface")
	}
	if v := d.Events(); !reflect.DeepEqual(v, []virtual.Event{virtual.EventProgram, virtual.EventWait}) {
		t.Errorf("unexpected activation events %v", v)
	}
	if info := s.Info(); !info.Shadow || info.Buffers != 2 || info.RetraceOrder != screen.WaitThenSwap {
		t.Errorf("unexpected info %+v", info)
	}

	for y := 0; y < 200; y++ {
		for x := 0; x < 320; x++ {
			surface.Pix[y*surface.Stride+x] = byte(x ^ y)
		}
	}
	if err = s.UpdateDisplay(); err != nil {
		t.Fatal(err)
	}
	if v := d.Events(); !reflect.DeepEqual(v, []virtual.Event{virtual.EventWait, virtual.EventSwap}) {
		t.Errorf("expected wait before swap, got %v", v)
	}
	if d.Visible() != 1 {
		t.Errorf("expected buffer 1 visible, got %d", d.Visible())
	}

	snap, err := d.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	im := snap.(*image.Paletted)
	for y := 0; y < 200; y++ {
		for x := 0; x < 320; x++ {
			if v, want := im.ColorIndexAt(x, y), byte(x^y); v != want {
				t.Fatalf("pixel %d,%d: expected %d, got %d", x, y, want, v)
			}
		}
	}

	if err = s.FlipDisplay(); err != nil {
		t.Fatal(err)
	}
	if d.Visible() != 0 {
		t.Errorf("expected buffer 0 visible, got %d", d.Visible())
	}
}

func TestSessionSwapThenWait(t *testing.T) {
	d := testDisplay(t, virtual.Config{Family: virtual.TT})
	s := testSession(t, d, nil)

	surface, err := s.Activate(640, 480, 4, screen.DoubleBuf)
	if err != nil {
		t.Fatal(err)
	}
	_ = d.Events()
	if err = s.UpdateDisplay(image.Rect(3, 0, 13, 10)); err != nil {
		t.Fatal(err)
	}
	if v := d.Events(); !reflect.DeepEqual(v, []virtual.Event{virtual.EventSwap, virtual.EventWait}) {
		t.Errorf("expected swap before wait, got %v", v)
	}
	if surface.Stride != 640 {
		t.Errorf("expected chunky pitch 640, got %d", surface.Stride)
	}
}

func TestSessionFlipFourBit(t *testing.T) {
	tests := []struct {
		Family        virtual.Family
		Width, Height int
	}{
		{virtual.ST, 320, 200},
		{virtual.TT, 640, 480},
	}
	for _, test := range tests {
		t.Run(string(test.Family), func(it *testing.T) {
			d := testDisplay(it, virtual.Config{Family: test.Family})
			s := testSession(it, d, nil)

			surface, err := s.Activate(test.Width, test.Height, 4, screen.DoubleBuf)
			if err != nil {
				it.Fatal(err)
			}

			// Both buffers are flipped to and shown
			for frame := 0; frame < 2; frame++ {
				for y := 0; y < test.Height; y++ {
					for x := 0; x < test.Width; x++ {
						surface.Pix[y*surface.Stride+x] = byte(x^y+frame) & 0x0f
					}
				}
				if err = s.FlipDisplay(); err != nil {
					it.Fatal(err)
				}

				snap, err := d.Snapshot()
				if err != nil {
					it.Fatal(err)
				}
				im := snap.(*image.Paletted)
				for y := 0; y < test.Height; y++ {
					for x := 0; x < test.Width; x++ {
						if v, want := im.ColorIndexAt(x, y), byte(x^y+frame)&0x0f; v != want {
							it.Fatalf("frame %d, pixel %d,%d: expected %d, got %d", frame, x, y, want, v)
						}
					}
				}
			}
		})
	}
}

func TestSessionReleaseDetachesSurface(t *testing.T) {
	d := testDisplay(t, virtual.Config{Family: virtual.TT})
	s := testSession(t, d, nil)

	old, err := s.Activate(640, 480, 4, screen.DoubleBuf)
	if err != nil {
		t.Fatal(err)
	}
	if _, err = s.Activate(123, 45, 8, 0); !errors.Is(err, screen.ErrModeNotFound) {
		t.Fatalf("expected ErrModeNotFound, got %v", err)
	}
	if old.Pix != nil {
		t.Error("expected released surface to drop its pixels")
	}
	if s.Surface() != nil {
		t.Error("expected no surface")
	}
}

func TestSessionDirect(t *testing.T) {
	d := testDisplay(t, virtual.Config{Family: virtual.Milan, DoubleBuffer: true})
	s := testSession(t, d, nil)

	surface, err := s.Activate(640, 480, 16, 0)
	if err != nil {
		t.Fatal(err)
	}
	if surface.Flags&screen.DoubleBuf == 0 {
		t.Error("expected display to force double buffering")
	}
	if surface.Flags&screen.HWSurface == 0 {
		t.Error("expected hardware surface")
	}
	if surface.Stride != 1280 {
		t.Errorf("expected pitch 1280, got %d", surface.Stride)
	}

	first := &surface.Pix[0]
	surface.Image().Set(0, 0, color.RGBA{R: 0xff, A: 0xff})
	if surface.Pix[0] != 0x00 || surface.Pix[1] != 0xf8 {
		t.Errorf("expected little endian red 00 f8, got % x", surface.Pix[:2])
	}

	surface.Lock()
	locked := surface.Pixels()
	if err = s.UpdateDisplay(); err != nil {
		t.Fatal(err)
	}
	if &surface.Pix[0] == first {
		t.Error("expected surface to move to the other buffer")
	}
	if &surface.Pixels()[0] == &locked[0] {
		t.Error("expected locked pixels to follow the surface")
	}
	surface.Unlock()
	if surface.Pixels() != nil {
		t.Error("expected no pixels when unlocked")
	}

	snap, err := d.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if r, g, b, _ := snap.At(0, 0).RGBA(); r != 0xffff || g != 0 || b != 0 {
		t.Errorf("expected red pixel, got %04x %04x %04x", r, g, b)
	}
}

type rectRecorder struct {
	*virtual.Display
	rects []image.Rectangle
}

func (r *rectRecorder) UpdateRects(_ int, rects []image.Rectangle) error {
	r.rects = append(r.rects, rects...)
	return nil
}

func TestSessionRectUpdater(t *testing.T) {
	b := &rectRecorder{Display: testDisplay(t, virtual.Config{Family: virtual.Milan})}
	s := testSession(t, b, nil)
	if _, err := s.Activate(800, 600, 8, 0); err != nil {
		t.Fatal(err)
	}

	rects := []image.Rectangle{image.Rect(0, 0, 10, 10), image.Rect(100, 100, 200, 150)}
	if err := s.UpdateDisplay(rects...); err != nil {
		t.Fatal(err)
	}
	if err := s.FlipDisplay(); err != nil {
		t.Fatal(err)
	}
	want := append(rects, image.Rect(0, 0, 800, 600))
	if !reflect.DeepEqual(b.rects, want) {
		t.Errorf("expected %v, got %v", want, b.rects)
	}
	if b.Swaps() != 0 {
		t.Errorf("expected no swaps, got %d", b.Swaps())
	}
}

func TestSessionShadowFallback(t *testing.T) {
	d := testDisplay(t, virtual.Config{Family: virtual.ST})
	s := testSession(t, d, nil)
	if _, err := s.Activate(320, 200, 4, 0); err != nil {
		t.Fatal(err)
	}
	if s.Held() != 2 {
		t.Errorf("expected shadow and screen buffer held, got %d", s.Held())
	}
	// The ST has no fast memory, the shadow buffer lives in video memory too
	var (
		shadowSize = 320*200 + screen.Alignment - 1
		screenSize = shadowSize >> 1
	)
	if v := d.VideoMemory().Available(); v != d.VideoMemory().Len()-shadowSize-screenSize {
		t.Errorf("expected both buffers in video memory, %d bytes available", v)
	}
}

type badMasks struct {
	*virtual.Display
}

func (badMasks) PixelFormatMasks(int) (r, g, b, a uint32) {
	return 0x0f, 0x0f, 0x0f, 0
}

func TestSessionRollback(t *testing.T) {
	failure := errors.New("test failure")

	tests := []struct {
		Name   string
		Config virtual.Config
		Setup  func(*virtual.Display) screen.Backend
		Want   error
	}{
		{
			Name:   "allocation",
			Config: virtual.Config{Family: virtual.Falcon, VideoMemory: 400000},
			Want:   screen.ErrAllocationFailed,
		},
		{
			Name:   "visible buffers",
			Config: virtual.Config{Family: virtual.Falcon},
			Setup: func(d *virtual.Display) screen.Backend {
				d.Faults.AllocateVisible = failure
				return d
			},
			Want: failure,
		},
		{
			Name:   "format",
			Config: virtual.Config{Family: virtual.Falcon},
			Setup: func(d *virtual.Display) screen.Backend {
				return badMasks{d}
			},
			Want: screen.ErrFormatAllocationFailed,
		},
		{
			Name:   "program mode",
			Config: virtual.Config{Family: virtual.Falcon},
			Setup: func(d *virtual.Display) screen.Backend {
				d.Faults.ProgramMode = failure
				return d
			},
			Want: screen.ErrHardwareModeRejected,
		},
		{
			Name:   "retrace",
			Config: virtual.Config{Family: virtual.Falcon},
			Setup: func(d *virtual.Display) screen.Backend {
				d.Faults.Retrace = failure
				return d
			},
			Want: screen.ErrHardwareModeRejected,
		},
	}
	for _, test := range tests {
		t.Run(test.Name, func(it *testing.T) {
			var (
				d = testDisplay(it, test.Config)
				b = screen.Backend(d)
			)
			if test.Setup != nil {
				b = test.Setup(d)
			}
			s := testSession(it, b, nil)

			_, err := s.Activate(640, 480, 8, screen.DoubleBuf)
			if !errors.Is(err, test.Want) {
				it.Fatalf("expected %v, got %v", test.Want, err)
			}
			if s.Held() != 0 {
				it.Errorf("expected 0 buffers held, got %d", s.Held())
			}
			if v := d.VideoMemory().Available(); v != d.VideoMemory().Len() {
				it.Errorf("expected all video memory available, got %d", v)
			}
			if _, fast := d.Pools(); fast != nil && fast.Available() != virtual.DefaultFastMemory {
				it.Errorf("expected all fast memory available, got %d", fast.Available())
			}
			if len(d.Buffers()) != 0 {
				it.Errorf("expected no registered buffers, got %d", len(d.Buffers()))
			}
		})
	}
}

func TestSessionDefaults(t *testing.T) {
	s := testSession(t, testDisplay(t, virtual.Config{Family: virtual.Falcon}), &screen.Config{
		Width:  320,
		Height: 240,
	})
	surface, err := s.Activate(0, 0, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if surface.Rect.Dx() != 320 || surface.Rect.Dy() != 240 {
		t.Errorf("expected 320x240 surface, got %s", surface.Rect)
	}
	mode, ok := s.Current()
	if !ok || mode.Flags&screen.DoubleLine == 0 {
		t.Errorf("expected double line mode, got %s", mode)
	}
}

func TestSessionMetrics(t *testing.T) {
	var (
		reg = prometheus.NewRegistry()
		d   = testDisplay(t, virtual.Config{Family: virtual.Falcon})
		s   = testSession(t, d, &screen.Config{Registerer: reg})
	)
	if _, err := s.Activate(320, 200, 8, screen.DoubleBuf); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Activate(123, 45, 8, 0); err == nil {
		t.Fatal("expected error")
	}
	if _, err := s.Activate(320, 200, 8, screen.DoubleBuf); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := s.UpdateDisplay(); err != nil {
			t.Fatal(err)
		}
	}

	expected := fmt.Sprintf(`
# HELP screen_activations_total Total video mode activations by result
# TYPE screen_activations_total counter
screen_activations_total{result="mode_not_found",session="%[1]s"} 1
screen_activations_total{result="ok",session="%[1]s"} 2
# HELP screen_buffer_swaps_total Total visible buffer swaps
# TYPE screen_buffer_swaps_total counter
screen_buffer_swaps_total{session="%[1]s"} 3
`, s.ID)
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"screen_activations_total", "screen_buffer_swaps_total"); err != nil {
		t.Error(err)
	}
	if n := testutil.CollectAndCount(reg, "screen_blit_bytes_total"); n != 1 {
		t.Errorf("expected blit bytes metric, got %d", n)
	}

	if err := s.Shutdown(); err != nil {
		t.Fatal(err)
	}
	if n, _ := testutil.GatherAndCount(reg); n != 0 {
		t.Errorf("expected metrics to be unregistered, got %d", n)
	}
}

func TestSessionShutdown(t *testing.T) {
	d := testDisplay(t, virtual.Config{Family: virtual.TT})
	s := testSession(t, d, nil)
	if _, err := s.Activate(640, 480, 4, screen.DoubleBuf); err != nil {
		t.Fatal(err)
	}
	if err := s.Shutdown(); err != nil {
		t.Fatal(err)
	}
	if s.Held() != 0 {
		t.Errorf("expected 0 buffers held, got %d", s.Held())
	}
	if !d.Closed() {
		t.Error("expected display to be closed")
	}
	w, h, _ := d.ProbeCurrentMode()
	if mode := d.Mode(); mode.Width != w || mode.Height != h {
		t.Errorf("expected mode %dx%d restored, got %s", w, h, mode)
	}
	if _, err := s.Activate(320, 480, 8, 0); !errors.Is(err, screen.ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if err := s.Shutdown(); err != nil {
		t.Errorf("expected second shutdown to succeed, got %v", err)
	}
	if v := s.ListModes(8); len(v) != 0 {
		t.Errorf("expected empty catalog, got %v", v)
	}
}
