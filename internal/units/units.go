// Package units provides shared angle and length conversions for the
// fiducial labeling pipeline.
//
// Configuration files carry angles in degrees and lengths in millimetres;
// the matching engine works in radians and pixels. Every conversion between
// those domains goes through this package so tolerance bounds convert
// identically everywhere: a bound converted with different rounding in two
// places would make boundary matches flicker between runs.
package units

import "math"

// DegToRad converts an angle in degrees to radians.
func DegToRad(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// RadToDeg converts an angle in radians to degrees.
func RadToDeg(rad float64) float64 {
	return rad * 180.0 / math.Pi
}

// PxToMm converts a pixel distance to millimetres using the configured
// approximate spacing (mm per pixel).
func PxToMm(px, mmPerPixel float64) float64 {
	return px * mmPerPixel
}

// MmToPx converts a millimetre distance to pixels using the configured
// approximate spacing (mm per pixel). A zero spacing yields zero rather
// than dividing by zero.
func MmToPx(mm, mmPerPixel float64) float64 {
	if mmPerPixel == 0 {
		return 0
	}
	return mm / mmPerPixel
}
