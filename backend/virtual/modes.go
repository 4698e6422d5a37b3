package virtual

import (
	"fmt"
	"strings"

	"github.com/BeatGlow/screen"
)

// Family of video hardware.
type Family string

// Families.
const (
	ST     Family = "st"     // Shifter, bit-plane modes only
	TT     Family = "tt"     // TT Shifter, ST modes plus TT modes
	Falcon Family = "falcon" // Videl, bit-plane and true color modes
	Milan  Family = "milan"  // PCI graphics card, chunky modes only
)

// ParseFamily parses a family name.
func ParseFamily(name string) (Family, error) {
	switch f := Family(strings.ToLower(name)); f {
	case ST, TT, Falcon, Milan:
		return f, nil
	default:
		return "", fmt.Errorf("virtual: unknown hardware family %q", name)
	}
}

const c2p = screen.ChunkyToPlanar

var stModes = []screen.VideoMode{
	{Width: 320, Height: 200, Depth: 4, Flags: c2p},
	{Width: 640, Height: 200, Depth: 2, Flags: c2p},
	{Width: 640, Height: 400, Depth: 1, Flags: c2p},
}

var ttModes = []screen.VideoMode{
	{Width: 320, Height: 480, Depth: 8, Flags: c2p},
	{Width: 320, Height: 240, Depth: 8, Flags: c2p | screen.DoubleLine},
	{Width: 640, Height: 480, Depth: 4, Flags: c2p},
	{Width: 1280, Height: 960, Depth: 1, Flags: c2p},
}

var falconModes = []screen.VideoMode{
	{Width: 320, Height: 200, Depth: 8, Flags: c2p | screen.DoubleLine},
	{Width: 320, Height: 240, Depth: 8, Flags: c2p | screen.DoubleLine},
	{Width: 640, Height: 400, Depth: 8, Flags: c2p},
	{Width: 640, Height: 480, Depth: 8, Flags: c2p},
	{Width: 320, Height: 200, Depth: 16, Flags: screen.ShadowCopy},
	{Width: 320, Height: 240, Depth: 16},
	{Width: 320, Height: 480, Depth: 16},
}

var milanModes = []screen.VideoMode{
	{Width: 640, Height: 480, Depth: 8},
	{Width: 800, Height: 600, Depth: 8},
	{Width: 1024, Height: 768, Depth: 8},
	{Width: 640, Height: 480, Depth: 16},
	{Width: 800, Height: 600, Depth: 16},
	{Width: 640, Height: 480, Depth: 24},
	{Width: 640, Height: 480, Depth: 32},
	{Width: 800, Height: 600, Depth: 32},
}

// Modes returns the mode table of the family.
func (f Family) Modes() []screen.VideoMode {
	switch f {
	case ST:
		return stModes
	case TT:
		// ST compatible modes are available on the TT
		return append(append([]screen.VideoMode(nil), stModes...), ttModes...)
	case Falcon:
		return falconModes
	case Milan:
		return milanModes
	default:
		return nil
	}
}

// RetraceOrder of the family. The Videl registers must only be written
// during the vertical retrace.
func (f Family) RetraceOrder() screen.RetraceOrder {
	if f == Falcon {
		return screen.WaitThenSwap
	}
	return screen.SwapThenWait
}

// Planar reports if the family uses bit-plane video memory.
func (f Family) Planar() bool {
	return f != Milan
}

// fastMemory reports if the family has memory that can't be displayed.
func (f Family) fastMemory() bool {
	return f != ST
}

// current returns the geometry the family starts up in.
func (f Family) current() (width, height, depth int) {
	switch f {
	case ST:
		return 320, 200, 8
	case TT:
		return 320, 480, 8
	default:
		return 640, 480, 8
	}
}
