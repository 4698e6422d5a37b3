package screen

import (
	"fmt"
	"image"
	"log"
)

// ModeFlags select how the hardware buffer of a mode is fed.
type ModeFlags uint8

// Mode flags.
const (
	// ChunkyToPlanar modes display bit-planes converted from a chunky shadow surface.
	ChunkyToPlanar ModeFlags = 1 << iota

	// ShadowCopy modes display a copy of a shadow surface.
	ShadowCopy

	// DoubleLine modes emit every surface line twice.
	DoubleLine
)

func (f ModeFlags) String() string {
	var s string
	for _, flag := range []struct {
		f    ModeFlags
		name string
	}{
		{ChunkyToPlanar, "c2p"},
		{ShadowCopy, "shadow"},
		{DoubleLine, "doubleline"},
	} {
		if f&flag.f != 0 {
			if s != "" {
				s += "|"
			}
			s += flag.name
		}
	}
	if s == "" {
		return "direct"
	}
	return s
}

// DepthClass groups pixel depths that share a mode list.
type DepthClass int

// Depth classes.
const (
	Class8  DepthClass = iota // Up to 8 bits per pixel
	Class16                   // 15 and 16 bits per pixel
	Class24                   // 24 bits per pixel
	Class32                   // 32 bits per pixel

	NumClasses = 4
)

// ClassOf returns the depth class used to look up a requested depth.
func ClassOf(bpp int) DepthClass {
	switch c := DepthClass((bpp+7)/8 - 1); {
	case c < Class8:
		return Class8
	case c > Class32:
		return Class32
	default:
		return c
	}
}

func (c DepthClass) String() string {
	switch c {
	case Class8:
		return "8-bit"
	case Class16:
		return "16-bit"
	case Class24:
		return "24-bit"
	case Class32:
		return "32-bit"
	default:
		return fmt.Sprintf("DepthClass(%d)", int(c))
	}
}

// VideoMode describes one mode supported by the hardware.
type VideoMode struct {
	// Width and Height of the mode in pixels.
	Width, Height int

	// Depth is the hardware pixel depth in bits.
	Depth int

	// Flags select the blit strategy.
	Flags ModeFlags

	// Data is backend specific (register values etc.) and never inspected here.
	Data any
}

// Class returns the depth class the mode is listed under.
func (m VideoMode) Class() DepthClass {
	switch m.Depth {
	case 15, 16:
		return Class16
	case 24:
		return Class24
	case 32:
		return Class32
	default:
		return Class8
	}
}

// Size returns the mode dimensions.
func (m VideoMode) Size() image.Point {
	return image.Pt(m.Width, m.Height)
}

func (m VideoMode) String() string {
	return fmt.Sprintf("%dx%dx%d (%s)", m.Width, m.Height, m.Depth, m.Flags)
}

// larger reports if m sorts before o: wider, or as wide and taller.
func (m VideoMode) larger(o VideoMode) bool {
	return m.Width > o.Width || (m.Width == o.Width && m.Height > o.Height)
}

// ModeAdder receives modes from a backend enumeration.
type ModeAdder interface {
	// AddMode adds a mode. With reserveOnly only room for the mode is counted.
	AddMode(mode VideoMode, reserveOnly bool)
}

// Enumerator lists the modes of a backend into a ModeAdder.
type Enumerator interface {
	EnumerateModes(dst ModeAdder, reserveOnly bool)
}

// Catalog holds the supported modes per depth class, largest first.
type Catalog struct {
	pending [NumClasses]int
	modes   [NumClasses][]VideoMode
	built   bool
}

// Build populates the catalog in two passes: a counting pass sizes every
// class list exactly, the fill pass inserts the modes.
func (c *Catalog) Build(e Enumerator) {
	c.Reset()

	e.EnumerateModes(c, true)
	for i := range c.modes {
		c.modes[i] = make([]VideoMode, 0, c.pending[i])
	}
	e.EnumerateModes(c, false)
	c.built = true

	if debug {
		for i := range c.modes {
			log.Printf("screen: %s modes: %d listed, %d reserved", DepthClass(i), len(c.modes[i]), c.pending[i])
		}
	}
}

// AddMode implements ModeAdder. Modes are kept sorted by descending width
// then height; a mode with the same size as a listed one is dropped.
func (c *Catalog) AddMode(mode VideoMode, reserveOnly bool) {
	class := mode.Class()
	if reserveOnly {
		c.pending[class]++
		return
	}

	list := c.modes[class]
	j := 0
	for j < len(list) && list[j].larger(mode) {
		j++
	}
	// Skip modes that are already in our list
	if j < len(list) && list[j].Width == mode.Width && list[j].Height == mode.Height {
		return
	}
	if debug && len(list) == cap(list) {
		log.Printf("screen: %s mode %s was not reserved", class, mode)
	}

	// Everybody scoot down!
	list = append(list, VideoMode{})
	copy(list[j+1:], list[j:])
	list[j] = mode
	c.modes[class] = list
}

// Built reports if Build completed.
func (c *Catalog) Built() bool {
	return c.built
}

// Reserved returns the number of modes counted for class by the reserve pass.
func (c *Catalog) Reserved(class DepthClass) int {
	return c.pending[class]
}

// Len returns the number of modes listed for class.
func (c *Catalog) Len(class DepthClass) int {
	return len(c.modes[class])
}

// Lookup finds the mode of class with exactly the requested size.
func (c *Catalog) Lookup(class DepthClass, width, height int) (VideoMode, error) {
	if class >= Class8 && class <= Class32 {
		for _, mode := range c.modes[class] {
			if mode.Width == width && mode.Height == height {
				return mode, nil
			}
		}
	}
	return VideoMode{}, fmt.Errorf("%w: %dx%d %s", ErrModeNotFound, width, height, class)
}

// List returns a copy of the modes of class, largest first.
func (c *Catalog) List(class DepthClass) []VideoMode {
	if class < Class8 || class > Class32 {
		return nil
	}
	return append([]VideoMode(nil), c.modes[class]...)
}

// Rects returns the sizes of the modes of class, largest first.
func (c *Catalog) Rects(class DepthClass) []image.Rectangle {
	if class < Class8 || class > Class32 {
		return nil
	}
	rects := make([]image.Rectangle, len(c.modes[class]))
	for i, mode := range c.modes[class] {
		rects[i] = image.Rectangle{Max: mode.Size()}
	}
	return rects
}

// Reset empties the catalog.
func (c *Catalog) Reset() {
	*c = Catalog{}
}
