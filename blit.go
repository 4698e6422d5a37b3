package screen

import (
	"image"

	"github.com/BeatGlow/screen/planar"
)

// blitter moves surface pixels into hardware buffers for modes that don't
// display the surface directly.
type blitter struct {
	mode  VideoMode
	pitch int // Hardware buffer pitch in bytes
}

func (b *blitter) doubleLine() uint {
	if b.mode.Flags&DoubleLine != 0 {
		return 1
	}
	return 0
}

// origin returns the offset in the hardware buffer where the surface pixel
// at Pix[s.Offset] is placed.
func (b *blitter) origin(s *Surface) int {
	o := s.Origin()
	switch {
	case o == image.Point{}:
		return 0
	case b.mode.Flags&ChunkyToPlanar != 0:
		return o.Y*(b.pitch<<b.doubleLine()) + (o.X&^(planar.WordPixels-1))*b.mode.Depth/8
	default:
		return o.Y*b.pitch + o.X*s.Format.BytesPerPixel
	}
}

// blit transfers the rectangles of s to dst. Rectangles are relative to
// Pix[s.Offset]. It returns the number of bytes written to dst.
func (b *blitter) blit(dst []byte, s *Surface, rects []image.Rectangle) int {
	var (
		n   int
		src = s.Pix[s.Offset:]
	)
	dst = dst[b.origin(s):]
	switch {
	case b.mode.Flags&ChunkyToPlanar != 0:
		for _, r := range rects {
			r = planar.Align16(r.Intersect(s.Rect))
			if r.Empty() {
				continue
			}
			planar.Convert(dst, src, r, b.mode.Depth, b.doubleLine() != 0, s.Stride, b.pitch)
			n += r.Dy() * (r.Dx() * b.mode.Depth / 8) << b.doubleLine()
		}

	case b.mode.Flags&ShadowCopy != 0:
		bpp := s.Format.BytesPerPixel
		for _, r := range rects {
			r = r.Intersect(s.Rect)
			if r.Empty() {
				continue
			}
			var (
				in   = src[s.Stride*r.Min.Y+bpp*r.Min.X:]
				out  = dst[b.pitch*r.Min.Y+bpp*r.Min.X:]
				bulk = s.Stride == b.pitch && s.Stride == r.Dx()*bpp
			)
			n += copyRows(out, in, r.Dx()*bpp, r.Dy(), s.Stride, b.pitch, bulk)
		}
	}
	return n
}

// flip transfers the whole surface to dst. It returns the number of bytes
// written to dst.
func (b *blitter) flip(dst []byte, s *Surface) int {
	var (
		w, h = s.Rect.Dx(), s.Rect.Dy()
		src  = s.Pix[s.Offset:]
	)
	dst = dst[b.origin(s):]
	switch {
	case b.mode.Flags&ChunkyToPlanar != 0:
		var (
			dl = b.doubleLine()
			r  = planar.Align16(image.Rect(0, 0, w, h))
		)
		planar.Convert(dst, src, r, b.mode.Depth, dl != 0, s.Stride, b.pitch)
		return h * (r.Dx() * b.mode.Depth / 8) << dl

	case b.mode.Flags&ShadowCopy != 0:
		var (
			bpp  = s.Format.BytesPerPixel
			bulk = s.Stride == b.pitch && s.Stride == w*bpp
		)
		return copyRows(dst, src, w*bpp, h, s.Stride, b.pitch, bulk)
	}
	return 0
}

// copyRows copies rows of n bytes from src to dst. With bulk the rows are
// contiguous in both and are copied at once.
func copyRows(dst, src []byte, n, rows, srcPitch, dstPitch int, bulk bool) int {
	if bulk {
		return copy(dst[:rows*n], src[:rows*n])
	}
	var total int
	for y := 0; y < rows; y++ {
		total += copy(dst[y*dstPitch:y*dstPitch+n], src[y*srcPitch:y*srcPitch+n])
	}
	return total
}
