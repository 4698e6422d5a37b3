// Package pixel describes the pixel layout of a display surface.
//
// A [Format] is built from the channel masks a display backend reports for a
// depth, and provides [color.Model] and [draw.Image] views over raw surface
// memory, compatible with Go's native [image.Image] / [draw.Image] interfaces.
package pixel
