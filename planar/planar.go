// Package planar converts between chunky pixels (one byte per pixel) and
// interleaved bit-plane screen memory.
//
// Screen memory is organised in groups of 16 pixels. Each group holds one
// big-endian 16-bit word per plane, plane 0 first, so a group occupies
// 2*depth bytes and a row of width pixels occupies width*depth/8 bytes.
package planar

import (
	"fmt"
	"image"
)

// WordPixels is the number of pixels stored in one plane word.
const WordPixels = 16

// Align16 expands the horizontal span of r outwards to the enclosing 16
// pixel boundaries. Vertical bounds are kept.
func Align16(r image.Rectangle) image.Rectangle {
	r.Min.X &^= WordPixels - 1
	if r.Max.X&(WordPixels-1) != 0 {
		r.Max.X = (r.Max.X | (WordPixels - 1)) + 1
	}
	return r
}

// ValidDepth reports if depth is a supported number of planes.
func ValidDepth(depth int) bool {
	switch depth {
	case 1, 2, 4, 8:
		return true
	default:
		return false
	}
}

// RowBytes returns the number of screen bytes for width pixels at depth planes.
func RowBytes(width, depth int) int {
	return ((width + WordPixels - 1) &^ (WordPixels - 1)) * depth / 8
}

// Convert converts the chunky pixels of src inside r to planar words in dst.
//
// The horizontal span of r must be 16 pixel aligned, see [Align16]. Source
// rows are srcPitch bytes apart, destination rows dstPitch bytes apart. With
// doubleLine every source row is written to two consecutive destination
// rows. Source pixels outside of src read as zero.
func Convert(dst, src []byte, r image.Rectangle, depth int, doubleLine bool, srcPitch, dstPitch int) {
	if r.Min.X&(WordPixels-1) != 0 || r.Max.X&(WordPixels-1) != 0 {
		panic(fmt.Sprintf("planar: span %d-%d is not 16 pixel aligned", r.Min.X, r.Max.X))
	}
	if !ValidDepth(depth) {
		panic(fmt.Sprintf("planar: unsupported depth %d", depth))
	}

	var (
		lineShift  uint
		groupBytes = 2 * depth
		mask       = byte(0xff >> uint(8-depth))
	)
	if doubleLine {
		lineShift = 1
	}

	for y := r.Min.Y; y < r.Max.Y; y++ {
		var (
			srcRow  = y * srcPitch
			dstLine = (y * dstPitch) << lineShift
			dstRow  = dstLine + r.Min.X*depth/8
			start   = dstRow
		)
		for x := r.Min.X; x < r.Max.X; x += WordPixels {
			var group [WordPixels]byte
			for i := range group {
				if j := srcRow + x + i; j < len(src) {
					group[i] = src[j] & mask
				}
			}
			for plane := 0; plane < depth; plane++ {
				var word uint16
				for i, px := range group {
					word |= uint16(px>>uint(plane)&1) << uint(WordPixels-1-i)
				}
				dst[dstRow+plane*2] = byte(word >> 8)
				dst[dstRow+plane*2+1] = byte(word)
			}
			dstRow += groupBytes
		}
		if doubleLine {
			copy(dst[start+dstPitch:dstRow+dstPitch], dst[start:dstRow])
		}
	}
}

// Unpack converts the planar words of src inside r back to chunky pixels in
// dst. The horizontal span of r must be 16 pixel aligned. With doubleLine only
// the first of every two screen rows is read.
func Unpack(dst, src []byte, r image.Rectangle, depth int, doubleLine bool, dstPitch, srcPitch int) {
	if r.Min.X&(WordPixels-1) != 0 || r.Max.X&(WordPixels-1) != 0 {
		panic(fmt.Sprintf("planar: span %d-%d is not 16 pixel aligned", r.Min.X, r.Max.X))
	}
	if !ValidDepth(depth) {
		panic(fmt.Sprintf("planar: unsupported depth %d", depth))
	}

	var lineShift uint
	if doubleLine {
		lineShift = 1
	}

	for y := r.Min.Y; y < r.Max.Y; y++ {
		var (
			srcRow = (y*srcPitch)<<lineShift + r.Min.X*depth/8
			dstRow = y * dstPitch
		)
		for x := r.Min.X; x < r.Max.X; x += WordPixels {
			for i := 0; i < WordPixels; i++ {
				var px byte
				for plane := 0; plane < depth; plane++ {
					word := uint16(src[srcRow+plane*2])<<8 | uint16(src[srcRow+plane*2+1])
					px |= byte(word>>uint(WordPixels-1-i)&1) << uint(plane)
				}
				if j := dstRow + x + i; j < len(dst) {
					dst[j] = px
				}
			}
			srcRow += 2 * depth
		}
	}
}
