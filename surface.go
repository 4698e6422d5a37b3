package screen

import (
	"fmt"
	"image"

	"github.com/BeatGlow/screen/pixel"
)

// Surface is the caller visible frame of an activated mode.
//
// Pix points at the shadow buffer if the mode needs one, else at the
// hardware buffer that is drawn next. After a double buffered update Pix
// points at the other hardware buffer, so slices and images taken from a
// surface are only valid until the next update.
type Surface struct {
	pixel.Buffer

	// Format of the pixels.
	Format *pixel.Format

	// Flags of the surface.
	Flags SurfaceFlags

	// Offset of the first visible pixel in Pix, applied while locked.
	Offset int

	locked int
}

// Lock the surface for direct pixel access. Locks nest.
func (s *Surface) Lock() {
	s.locked++
}

// Unlock releases one lock.
func (s *Surface) Unlock() {
	if s.locked > 0 {
		s.locked--
	}
}

// Locked reports if the surface is locked.
func (s *Surface) Locked() bool {
	return s.locked > 0
}

// Pixels returns the pixels starting at the surface offset. Pixels returns
// nil if the surface isn't locked.
func (s *Surface) Pixels() []byte {
	if s.locked == 0 || s.Offset > len(s.Pix) {
		return nil
	}
	return s.Pix[s.Offset:]
}

// Origin returns the position of the surface in the frame.
func (s *Surface) Origin() image.Point {
	if s.Stride == 0 || s.Format == nil {
		return image.Point{}
	}
	return image.Pt((s.Offset%s.Stride)/s.Format.BytesPerPixel, s.Offset/s.Stride)
}

// Image returns a draw.Image view of the current surface pixels.
func (s *Surface) Image() pixel.Image {
	return pixel.NewImage(s.Format, s.Buffer)
}

func (s *Surface) String() string {
	return fmt.Sprintf("%dx%d %s pitch %d (%s)", s.Rect.Dx(), s.Rect.Dy(), s.Format, s.Stride, s.Flags)
}
