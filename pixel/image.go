package pixel

import (
	"encoding/binary"
	"image"
	"image/color"
	"image/draw"
)

type Image interface {
	draw.Image

	// Clear the image.
	Clear()

	// Fill the image with a single color.
	Fill(color.Color)
}

// Buffer holds the pixel values and is a container that is used by all image formats in this package.
type Buffer struct {
	// Rect is the image bounding box.
	Rect image.Rectangle

	// Pix are the image pixels.
	Pix []byte

	// Stride is the Pix stride (in bytes) between vertically adjacent pixels.
	Stride int
}

func (p *Buffer) Bounds() image.Rectangle {
	return p.Rect
}

func (p *Buffer) Clear() {
	for y := p.Rect.Min.Y; y < p.Rect.Max.Y; y++ {
		row := p.row(y)
		for i := range row {
			row[i] = 0x00
		}
	}
}

// row returns the bytes of row y, clipped to the slice length.
func (p *Buffer) row(y int) []byte {
	start := y * p.Stride
	if start >= len(p.Pix) {
		return nil
	}
	end := start + p.Stride
	if end > len(p.Pix) {
		end = len(p.Pix)
	}
	return p.Pix[start:end]
}

// NewImage returns a view of b that stores pixels in format f. The pixels
// are not copied.
func NewImage(f *Format, b Buffer) Image {
	switch {
	case f.Paletted():
		return &IndexedImage{Buffer: b, Palette: f.Palette}
	case f.BitsPerPixel == 15 && f.Masks == RGB555:
		return &CRGB15Image{Buffer: b, Order: f.Order}
	case f.BitsPerPixel == 16 && f.Masks == RGB565:
		return &CRGB16Image{Buffer: b, Order: f.Order}
	default:
		return &MaskImage{Buffer: b, Format: f}
	}
}

// IndexedImage is an 8-bits per pixel palette image.
type IndexedImage struct {
	Buffer
	Palette color.Palette
}

func (p *IndexedImage) ColorModel() color.Model {
	return p.Palette
}

func (p *IndexedImage) At(x, y int) color.Color {
	if !(image.Point{X: x, Y: y}).In(p.Rect) || len(p.Palette) == 0 {
		return color.Transparent
	}
	i := int(p.Pix[y*p.Stride+x])
	if i >= len(p.Palette) {
		return color.Transparent
	}
	return p.Palette[i]
}

// ColorIndexAt returns the palette index of the pixel at (x, y).
func (p *IndexedImage) ColorIndexAt(x, y int) uint8 {
	if !(image.Point{X: x, Y: y}).In(p.Rect) {
		return 0
	}
	return p.Pix[y*p.Stride+x]
}

func (p *IndexedImage) Set(x, y int, c color.Color) {
	if !(image.Point{X: x, Y: y}).In(p.Rect) || len(p.Palette) == 0 {
		return
	}
	p.Pix[y*p.Stride+x] = uint8(p.Palette.Index(c))
}

// SetColorIndex sets the palette index of the pixel at (x, y).
func (p *IndexedImage) SetColorIndex(x, y int, index uint8) {
	if !(image.Point{X: x, Y: y}).In(p.Rect) {
		return
	}
	p.Pix[y*p.Stride+x] = index
}

func (p *IndexedImage) Fill(c color.Color) {
	if len(p.Palette) == 0 {
		return
	}
	value := uint8(p.Palette.Index(c))
	for y := p.Rect.Min.Y; y < p.Rect.Max.Y; y++ {
		row := p.Pix[y*p.Stride+p.Rect.Min.X : y*p.Stride+p.Rect.Max.X]
		for i := range row {
			row[i] = value
		}
	}
}

// CRGB15Image is a 15-bits per pixel 5-5-5-bit RGB image.
type CRGB15Image struct {
	Buffer
	Order binary.ByteOrder
}

func (p *CRGB15Image) ColorModel() color.Model {
	return CRGB15Model
}

func (p *CRGB15Image) At(x, y int) color.Color {
	if !(image.Point{X: x, Y: y}).In(p.Rect) {
		return color.Transparent
	}

	v := p.Order.Uint16(p.Pix[x*2+y*p.Stride:])
	return CRGB15{v & 0x7fff}
}

func (p *CRGB15Image) Set(x, y int, c color.Color) {
	if !(image.Point{X: x, Y: y}).In(p.Rect) {
		return
	}

	v := crgb15Model(c).(CRGB15).V
	p.Order.PutUint16(p.Pix[x*2+y*p.Stride:], v)
}

func (p *CRGB15Image) Fill(c color.Color) {
	v := crgb15Model(c).(CRGB15).V
	for y := p.Rect.Min.Y; y < p.Rect.Max.Y; y++ {
		for x := p.Rect.Min.X; x < p.Rect.Max.X; x++ {
			p.Order.PutUint16(p.Pix[x*2+y*p.Stride:], v)
		}
	}
}

// CRGB16Image is a 16-bits per pixel 5-6-5-bit RGB image.
type CRGB16Image struct {
	Buffer
	Order binary.ByteOrder
}

func (p *CRGB16Image) ColorModel() color.Model {
	return CRGB16Model
}

func (p *CRGB16Image) At(x, y int) color.Color {
	if !(image.Point{X: x, Y: y}).In(p.Rect) {
		return color.Transparent
	}

	v := p.Order.Uint16(p.Pix[x*2+y*p.Stride:])
	return CRGB16{v}
}

func (p *CRGB16Image) Set(x, y int, c color.Color) {
	if !(image.Point{X: x, Y: y}).In(p.Rect) {
		return
	}

	v := crgb16Model(c).(CRGB16).V
	p.Order.PutUint16(p.Pix[x*2+y*p.Stride:], v)
}

func (p *CRGB16Image) Fill(c color.Color) {
	v := crgb16Model(c).(CRGB16).V
	for y := p.Rect.Min.Y; y < p.Rect.Max.Y; y++ {
		for x := p.Rect.Min.X; x < p.Rect.Max.X; x++ {
			p.Order.PutUint16(p.Pix[x*2+y*p.Stride:], v)
		}
	}
}

// MaskImage stores pixels packed according to the channel masks of its Format.
type MaskImage struct {
	Buffer
	Format *Format
}

func (p *MaskImage) ColorModel() color.Model {
	return p.Format.Masks.Model()
}

func (p *MaskImage) PixOffset(x, y int) int {
	return y*p.Stride + x*p.Format.BytesPerPixel
}

func (p *MaskImage) At(x, y int) color.Color {
	if !(image.Point{X: x, Y: y}).In(p.Rect) {
		return color.Transparent
	}
	v := p.Format.load(p.Pix[p.PixOffset(x, y):])
	return MaskColor{V: v & p.Format.used(), Masks: p.Format.Masks}
}

func (p *MaskImage) Set(x, y int, c color.Color) {
	if !(image.Point{X: x, Y: y}).In(p.Rect) {
		return
	}
	v := p.ColorModel().Convert(c).(MaskColor).V
	p.Format.store(p.Pix[p.PixOffset(x, y):], v)
}

func (p *MaskImage) Fill(c color.Color) {
	v := p.ColorModel().Convert(c).(MaskColor).V
	for y := p.Rect.Min.Y; y < p.Rect.Max.Y; y++ {
		for x := p.Rect.Min.X; x < p.Rect.Max.X; x++ {
			p.Format.store(p.Pix[p.PixOffset(x, y):], v)
		}
	}
}

func (f *Format) used() uint32 {
	return f.R | f.G | f.B | f.A
}

// Interface checks.
var (
	_ Image = (*IndexedImage)(nil)
	_ Image = (*CRGB15Image)(nil)
	_ Image = (*CRGB16Image)(nil)
	_ Image = (*MaskImage)(nil)
)
