package screen

import (
	"bytes"
	"image"
	"math/rand"
	"testing"

	"github.com/BeatGlow/screen/pixel"
	"github.com/BeatGlow/screen/planar"
)

func testSurface(t *testing.T, w, h, bpp, stride int) *Surface {
	t.Helper()
	var masks pixel.Masks
	switch bpp {
	case 16:
		masks = pixel.RGB565
	case 32:
		masks = pixel.XRGB8888
	}
	f, err := pixel.NewFormat(bpp, masks)
	if err != nil {
		t.Fatal(err)
	}
	s := &Surface{
		Buffer: pixel.Buffer{
			Rect:   image.Rect(0, 0, w, h),
			Pix:    make([]byte, stride*h),
			Stride: stride,
		},
		Format: f,
	}
	rand.New(rand.NewSource(int64(w*h))).Read(s.Pix)
	return s
}

func TestCopyRowsFastPath(t *testing.T) {
	var (
		w, h  = 40, 30
		pitch = w * 2
		src   = make([]byte, pitch*h)
		bulk  = make([]byte, pitch*h)
		rows  = make([]byte, pitch*h)
	)
	rand.New(rand.NewSource(2)).Read(src)

	n1 := copyRows(bulk, src, pitch, h, pitch, pitch, true)
	n2 := copyRows(rows, src, pitch, h, pitch, pitch, false)
	if n1 != n2 {
		t.Errorf("expected equal byte counts, got %d and %d", n1, n2)
	}
	if !bytes.Equal(bulk, rows) {
		t.Error("bulk copy and row copy differ")
	}
	if !bytes.Equal(bulk, src) {
		t.Error("copy differs from source")
	}
}

func TestBlitShadowCopy(t *testing.T) {
	tests := []struct {
		Name          string
		Width, Height int
		Bits          int
		Pitch         int // Hardware pitch
		Rect          image.Rectangle
	}{
		{"full frame", 32, 8, 16, 64, image.Rect(0, 0, 32, 8)},
		{"rect", 32, 8, 16, 64, image.Rect(3, 2, 17, 5)},
		{"wider hardware", 30, 8, 32, 128, image.Rect(0, 0, 30, 8)},
		{"clipped", 30, 8, 32, 128, image.Rect(20, 4, 50, 20)},
	}
	for _, test := range tests {
		t.Run(test.Name, func(it *testing.T) {
			var (
				bpp = test.Bits / 8
				s   = testSurface(it, test.Width, test.Height, test.Bits, test.Width*bpp)
				dst = make([]byte, test.Pitch*test.Height)
				b   = blitter{mode: VideoMode{Width: test.Width, Height: test.Height, Depth: test.Bits, Flags: ShadowCopy}, pitch: test.Pitch}
			)
			b.blit(dst, s, []image.Rectangle{test.Rect})

			r := test.Rect.Intersect(s.Rect)
			for y := 0; y < test.Height; y++ {
				for x := 0; x < test.Width; x++ {
					var (
						got  = dst[y*test.Pitch+x*bpp : y*test.Pitch+(x+1)*bpp]
						want = s.Pix[y*s.Stride+x*bpp : y*s.Stride+(x+1)*bpp]
					)
					if !image.Pt(x, y).In(r) {
						want = make([]byte, bpp)
					}
					if !bytes.Equal(got, want) {
						it.Fatalf("pixel %d,%d: expected % x, got % x", x, y, want, got)
					}
				}
			}
		})
	}
}

func TestBlitChunkyToPlanarExpands(t *testing.T) {
	var (
		w, h  = 32, 4
		depth = 4
		pitch = planar.RowBytes(w, depth)
		s     = testSurface(t, w, h, 8, w)
		dst   = make([]byte, pitch*h)
		b     = blitter{mode: VideoMode{Width: w, Height: h, Depth: depth, Flags: ChunkyToPlanar}, pitch: pitch}
	)

	// Span 3..13 must convert the whole first word
	b.blit(dst, s, []image.Rectangle{image.Rect(3, 1, 13, 3)})

	out := make([]byte, w*h)
	planar.Unpack(out, dst, image.Rect(0, 0, w, h), depth, false, w, pitch)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			want := s.Pix[y*w+x] & 0x0f
			if y < 1 || y >= 3 || x >= 16 {
				want = 0
			}
			if v := out[y*w+x]; v != want {
				t.Fatalf("pixel %d,%d: expected %d, got %d", x, y, want, v)
			}
		}
	}
}

func TestBlitChunkyToPlanarDoubleLine(t *testing.T) {
	var (
		w, h  = 16, 3
		depth = 8
		pitch = planar.RowBytes(w, depth)
		s     = testSurface(t, w, h, 8, w)
		dst   = make([]byte, pitch*h*2)
		b     = blitter{mode: VideoMode{Width: w, Height: h, Depth: depth, Flags: ChunkyToPlanar | DoubleLine}, pitch: pitch}
	)
	if n := b.flip(dst, s); n != len(dst) {
		t.Errorf("expected %d bytes written, got %d", len(dst), n)
	}
	for y := 0; y < h; y++ {
		if !bytes.Equal(dst[2*y*pitch:(2*y+1)*pitch], dst[(2*y+1)*pitch:(2*y+2)*pitch]) {
			t.Errorf("line %d not doubled", y)
		}
	}
}

func TestBlitDirect(t *testing.T) {
	var (
		s   = testSurface(t, 16, 4, 8, 16)
		dst = make([]byte, 64)
		b   = blitter{mode: VideoMode{Width: 16, Height: 4, Depth: 8}, pitch: 16}
	)
	if n := b.blit(dst, s, []image.Rectangle{s.Rect}); n != 0 {
		t.Errorf("expected no bytes written, got %d", n)
	}
	if n := b.flip(dst, s); n != 0 {
		t.Errorf("expected no bytes written, got %d", n)
	}
}

func TestBlitOffset(t *testing.T) {
	t.Run("shadow copy", func(it *testing.T) {
		var (
			pitch = 16
			s     = testSurface(it, 4, 2, 16, pitch)
			b     = blitter{mode: VideoMode{Width: 8, Height: 4, Depth: 16, Flags: ShadowCopy}, pitch: pitch}
		)
		s.Pix = make([]byte, pitch*4)
		rand.New(rand.NewSource(3)).Read(s.Pix)
		s.Offset = pitch + 2*2 // origin 2,1

		var (
			blitted = make([]byte, pitch*4)
			flipped = make([]byte, pitch*4)
		)
		b.blit(blitted, s, []image.Rectangle{s.Rect})
		b.flip(flipped, s)
		if !bytes.Equal(blitted, flipped) {
			it.Fatalf("blit and flip differ:\n% x\n% x", blitted, flipped)
		}
		for i, v := range blitted {
			var (
				x, y = i % pitch, i / pitch
				want byte
			)
			if y >= 1 && y < 3 && x >= 4 && x < 12 {
				want = s.Pix[i]
			}
			if v != want {
				it.Fatalf("byte %d,%d: expected %#02x, got %#02x", x, y, want, v)
			}
		}
	})
	t.Run("chunky to planar", func(it *testing.T) {
		var (
			w, h   = 32, 3
			depth  = 4
			stride = w
			pitch  = planar.RowBytes(w, depth)
			s      = testSurface(it, 16, 2, 8, stride)
			b      = blitter{mode: VideoMode{Width: w, Height: h, Depth: depth, Flags: ChunkyToPlanar}, pitch: pitch}
		)
		s.Pix = make([]byte, stride*h)
		rand.New(rand.NewSource(4)).Read(s.Pix)
		s.Offset = stride + 16 // origin 16,1

		var (
			blitted = make([]byte, pitch*h)
			flipped = make([]byte, pitch*h)
		)
		b.blit(blitted, s, []image.Rectangle{image.Rect(3, 0, 5, 2)})
		b.flip(flipped, s)
		if !bytes.Equal(blitted, flipped) {
			it.Fatal("blit and flip differ")
		}

		out := make([]byte, w*h)
		planar.Unpack(out, blitted, image.Rect(0, 0, w, h), depth, false, w, pitch)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				var want byte
				if y >= 1 && x >= 16 {
					want = s.Pix[s.Offset+(y-1)*stride+x-16] & 0x0f
				}
				if v := out[y*w+x]; v != want {
					it.Fatalf("pixel %d,%d: expected %d, got %d", x, y, want, v)
				}
			}
		}
	})
}
