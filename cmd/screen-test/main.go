package main

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/golang/freetype"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font/gofont/goregular"
	"gopkg.in/yaml.v3"
	"periph.io/x/host/v3"

	"github.com/BeatGlow/screen"
	"github.com/BeatGlow/screen/backend/fbdev"
	"github.com/BeatGlow/screen/backend/panel"
	"github.com/BeatGlow/screen/backend/virtual"
)

type fileConfig struct {
	Screen  screen.Config  `yaml:"screen"`
	Backend string         `yaml:"backend"`
	Virtual virtual.Config `yaml:"virtual"`
	Fbdev   fbdev.Config   `yaml:"fbdev"`
	Panel   panel.Config   `yaml:"panel"`
}

func loadConfig(name string) (*fileConfig, error) {
	config := &fileConfig{
		Screen:  screen.DefaultConfig,
		Backend: "virtual",
		Virtual: virtual.DefaultConfig,
		Fbdev:   fbdev.DefaultConfig,
		Panel:   panel.DefaultConfig,
	}
	if name == "" {
		return config, nil
	}

	b, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	if err = yaml.Unmarshal(b, config); err != nil {
		return nil, fmt.Errorf("error parsing %s: %w", name, err)
	}
	return config, nil
}

func main() {
	configFlag := pflag.StringP("config", "c", "", "YAML configuration file")
	backendFlag := pflag.StringP("backend", "b", "", "Display backend (virtual, fbdev, panel)")
	familyFlag := pflag.String("family", "", "Virtual hardware family (st, tt, falcon, milan)")
	deviceFlag := pflag.String("device", "", "Framebuffer device")
	widthFlag := pflag.IntP("width", "W", 0, "Mode width")
	heightFlag := pflag.IntP("height", "H", 0, "Mode height")
	depthFlag := pflag.IntP("depth", "d", 0, "Mode bits per pixel")
	doubleFlag := pflag.Bool("double", false, "Request double buffering")
	listFlag := pflag.BoolP("list", "l", false, "List available modes and exit")
	imageFlag := pflag.StringP("image", "i", "", "Image to scale onto the screen")
	framesFlag := pflag.IntP("frames", "n", 100, "Number of frames to draw (0 runs until interrupted)")
	intervalFlag := pflag.Duration("interval", 50*time.Millisecond, "Frame interval")
	snapshotFlag := pflag.String("snapshot", "", "Write a PNG snapshot of the virtual display")
	metricsFlag := pflag.String("metrics", "", "Serve Prometheus metrics on this address")
	pflag.Parse()

	config, err := loadConfig(*configFlag)
	if err != nil {
		fatal(err)
	}
	if *backendFlag != "" {
		config.Backend = *backendFlag
	}
	if *familyFlag != "" {
		if config.Virtual.Family, err = virtual.ParseFamily(*familyFlag); err != nil {
			fatal(err)
		}
	}
	if *deviceFlag != "" {
		config.Fbdev.Device = *deviceFlag
	}
	if *doubleFlag {
		config.Screen.DoubleBuffer = true
	}

	registry := prometheus.NewRegistry()
	config.Screen.Registerer = registry
	if *metricsFlag != "" {
		http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(*metricsFlag, nil); err != nil {
				fatal(err)
			}
		}()
		fmt.Printf("serving metrics on http://%s/metrics\n", *metricsFlag)
	}

	backend, err := openBackend(config)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("using backend: %s\n", backend)

	session, err := screen.New(backend, &config.Screen)
	if err != nil {
		fatal(err)
	}
	defer func() {
		if err := session.Shutdown(); err != nil {
			fmt.Fprintln(os.Stderr, "shutdown: "+err.Error())
		}
	}()

	if *listFlag {
		for _, bpp := range []int{8, 16, 24, 32} {
			for _, r := range session.ListModes(bpp) {
				fmt.Printf("%dx%dx%d\n", r.Dx(), r.Dy(), bpp)
			}
		}
		return
	}

	surface, err := session.Activate(*widthFlag, *heightFlag, *depthFlag, screen.HWSurface)
	if err != nil {
		fatal(err)
	}
	mode, _ := session.Current()
	fmt.Printf("using mode: %s, surface %s\n", mode, surface)

	var overlay image.Image
	if *imageFlag != "" {
		if overlay, err = loadImage(*imageFlag, surface.Bounds()); err != nil {
			fatal(err)
		}
	}
	label, err := renderLabel(mode.String())
	if err != nil {
		fatal(err)
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	ticker := time.NewTicker(*intervalFlag)
	defer ticker.Stop()

	fmt.Println("hit control-c to stop...")
loop:
	for offset := 0; *framesFlag == 0 || offset < *framesFlag; offset++ {
		surface.Lock()
		dst := surface.Image()
		drawPattern(dst, offset)
		if overlay != nil {
			draw.Draw(dst, centered(dst.Bounds(), overlay.Bounds().Size()), overlay, overlay.Bounds().Min, draw.Over)
		}
		draw.Draw(dst, label.Bounds().Add(image.Pt(4, 4)), label, image.Point{}, draw.Over)
		surface.Unlock()

		if surface.Flags&screen.DoubleBuf != 0 {
			err = session.FlipDisplay()
		} else {
			err = session.UpdateDisplay()
		}
		if err != nil {
			fatal(err)
		}

		select {
		case <-interrupt:
			break loop
		case <-ticker.C:
		}
	}

	if *snapshotFlag != "" {
		if err = writeSnapshot(backend, *snapshotFlag); err != nil {
			fatal(err)
		}
	}
}

func openBackend(config *fileConfig) (screen.Backend, error) {
	switch name := strings.ToLower(config.Backend); name {
	case "virtual", "":
		return virtual.New(&config.Virtual)
	case "fbdev":
		return fbdev.Open(&config.Fbdev)
	case "panel":
		if _, err := host.Init(); err != nil {
			return nil, err
		}
		return panel.Open(&config.Panel)
	default:
		return nil, fmt.Errorf("unsupported backend %q", name)
	}
}

// drawPattern draws a moving gradient inside a box.
func drawPattern(dst draw.Image, offset int) {
	r := dst.Bounds()
	for x := r.Min.X; x < r.Max.X; x++ {
		dst.Set(x, r.Min.Y, color.White)
		dst.Set(x, r.Max.Y-1, color.White)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		dst.Set(r.Min.X, y, color.White)
		dst.Set(r.Max.X-1, y, color.White)
	}
	for y := r.Min.Y + 1; y < r.Max.Y-1; y++ {
		for x := r.Min.X + 1; x < r.Max.X-1; x++ {
			dst.Set(x, y, color.RGBA{
				R: uint8(x + y + offset),
				G: uint8(x - y + offset),
				B: uint8(x + y - offset),
				A: 0xff,
			})
		}
	}
}

func centered(r image.Rectangle, size image.Point) image.Rectangle {
	pt := image.Pt(r.Min.X+(r.Dx()-size.X)/2, r.Min.Y+(r.Dy()-size.Y)/2)
	return image.Rectangle{Min: pt, Max: pt.Add(size)}
}

// loadImage decodes an image and scales it to fit half of bounds.
func loadImage(name string, bounds image.Rectangle) (image.Image, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("error decoding %s: %w", name, err)
	}

	var (
		sr    = src.Bounds()
		limit = bounds.Size().Div(2)
		scale = min(float64(limit.X)/float64(sr.Dx()), float64(limit.Y)/float64(sr.Dy()))
		dr    = image.Rect(0, 0, int(float64(sr.Dx())*scale), int(float64(sr.Dy())*scale))
	)
	if dr.Empty() {
		return nil, fmt.Errorf("image %s can't be scaled to %s", name, limit)
	}
	dst := image.NewRGBA(dr)
	xdraw.ApproxBiLinear.Scale(dst, dr, src, sr, xdraw.Src, nil)
	return dst, nil
}

// renderLabel renders text on a transparent image.
func renderLabel(text string) (image.Image, error) {
	font, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, err
	}

	const size = 12
	var (
		dst = image.NewRGBA(image.Rect(0, 0, len(text)*size, size*3/2))
		c   = freetype.NewContext()
	)
	c.SetDPI(72)
	c.SetFont(font)
	c.SetFontSize(size)
	c.SetClip(dst.Bounds())
	c.SetDst(dst)
	c.SetSrc(image.White)

	if _, err = c.DrawString(text, freetype.Pt(0, int(c.PointToFixed(size)>>6))); err != nil {
		return nil, err
	}
	return dst, nil
}

func writeSnapshot(backend screen.Backend, name string) error {
	d, ok := backend.(*virtual.Display)
	if !ok {
		return errors.New("snapshots are only supported by the virtual backend")
	}
	i, err := d.Snapshot()
	if err != nil {
		return err
	}

	f, err := os.Create(name)
	if err != nil {
		return err
	}
	if err = png.Encode(f, i); err != nil {
		_ = f.Close()
		return err
	}
	fmt.Printf("snapshot written to %s\n", name)
	return f.Close()
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "fatal: "+err.Error())
	os.Exit(1)
}
