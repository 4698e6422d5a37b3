package pixel

import (
	"image/color"
	"math/bits"
)

// Models for the packed 16-bit color types.
var (
	CRGB15Model color.Model = color.ModelFunc(crgb15Model)
	CRGB16Model color.Model = color.ModelFunc(crgb16Model)
)

// CRGB15 represents a 15-bit 5-5-5 RGB color.
type CRGB15 struct {
	// CIgnore, 1, CRed, 5, CGreen, 5, CBlue, 5
	V uint16
}

func (c CRGB15) RGBA() (r, g, b, a uint32) {
	// Build a 5-bit value at the top of the low byte of each component.
	red := (c.V & 0x7C00) >> 7
	grn := (c.V & 0x03E0) >> 2
	blu := (c.V & 0x001F) << 3
	// Duplicate the high bits in the low bits.
	red |= red >> 5
	grn |= grn >> 5
	blu |= blu >> 5
	// Duplicate the whole value in the high byte.
	red |= red << 8
	grn |= grn << 8
	blu |= blu << 8
	return uint32(red), uint32(grn), uint32(blu), 0xffff
}

func crgb15Model(c color.Color) color.Color {
	if _, ok := c.(CRGB15); ok {
		return c
	}
	r, g, b, _ := c.RGBA()
	r = (r & 0xF800) >> 1
	g = (g & 0xF800) >> 6
	b = (b & 0xF800) >> 11
	return CRGB15{uint16(r | g | b)}
}

// CRGB16 represents a 16-bit 5-6-5 RGB color.
type CRGB16 struct {
	// CRed, 5, CGreen, 6, CBlue, 5
	V uint16
}

func (c CRGB16) RGBA() (r, g, b, a uint32) {
	red := (c.V & 0xF800) >> 8
	grn := (c.V & 0x07E0) >> 3
	blu := (c.V & 0x001F) << 3
	red |= red >> 5
	grn |= grn >> 6
	blu |= blu >> 5
	red |= red << 8
	grn |= grn << 8
	blu |= blu << 8
	return uint32(red), uint32(grn), uint32(blu), 0xffff
}

func crgb16Model(c color.Color) color.Color {
	if _, ok := c.(CRGB16); ok {
		return c
	}
	r, g, b, _ := c.RGBA()
	r = (r & 0xF800)
	g = (g & 0xFC00) >> 5
	b = (b & 0xF800) >> 11
	return CRGB16{uint16(r | g | b)}
}

// Masks holds the channel bit masks of a packed pixel.
type Masks struct {
	R, G, B, A uint32
}

// MaskColor is a packed pixel value laid out according to its masks.
type MaskColor struct {
	V     uint32
	Masks Masks
}

func (c MaskColor) RGBA() (r, g, b, a uint32) {
	r = expand(c.V, c.Masks.R)
	g = expand(c.V, c.Masks.G)
	b = expand(c.V, c.Masks.B)
	if c.Masks.A == 0 {
		a = 0xffff
	} else {
		a = expand(c.V, c.Masks.A)
	}
	return
}

// Model returns the color model for pixels packed with these masks.
func (m Masks) Model() color.Model {
	return color.ModelFunc(func(c color.Color) color.Color {
		if mc, ok := c.(MaskColor); ok && mc.Masks == m {
			return c
		}
		r, g, b, a := c.RGBA()
		v := compress(r, m.R) | compress(g, m.G) | compress(b, m.B)
		if m.A != 0 {
			v |= compress(a, m.A)
		}
		return MaskColor{V: v, Masks: m}
	})
}

// expand extracts the channel selected by mask and scales it to 16 bits.
func expand(v, mask uint32) uint32 {
	if mask == 0 {
		return 0
	}
	var (
		shift = bits.TrailingZeros32(mask)
		width = bits.OnesCount32(mask)
		c     = (v & mask) >> shift
		out   uint32
	)
	// Replicate the channel bits until 16 bits are filled.
	for filled := 0; filled < 16; filled += width {
		out = out<<width | c
	}
	return (out >> (bitsFilled(width) - 16)) & 0xffff
}

func bitsFilled(width int) int {
	return ((16 + width - 1) / width) * width
}

// compress scales a 16-bit channel value into the bits selected by mask.
func compress(c, mask uint32) uint32 {
	if mask == 0 {
		return 0
	}
	var (
		shift = bits.TrailingZeros32(mask)
		width = bits.OnesCount32(mask)
	)
	if width > 16 {
		return ((c & 0xffff) << (width - 16) << shift) & mask
	}
	return ((c & 0xffff) >> (16 - width) << shift) & mask
}
