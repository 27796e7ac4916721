// Package color converts RGB hex triplets to the CIE xy chromaticity
// coordinates used by the Hue v1 API.
package color

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrDegenerateColor is returned when a color sums to zero in XYZ space
// (pure black), which has no defined chromaticity.
var ErrDegenerateColor = errors.New("degenerate color: black has no xy chromaticity")

// InvalidHexError reports an RGB string that is not a full RRGGBB triplet.
type InvalidHexError struct {
	Input string
}

func (e *InvalidHexError) Error() string {
	return fmt.Sprintf("invalid RGB hex string: %q", e.Input)
}

// HexToRGB parses an RRGGBB hex string into its channels. The leading '#'
// is optional, but all six digits must be present (no shorthand forms).
func HexToRGB(s string) (r, g, b uint8, err error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 {
		return 0, 0, 0, &InvalidHexError{Input: s}
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, 0, 0, &InvalidHexError{Input: s}
	}
	return uint8(v >> 16), uint8(v >> 8), uint8(v), nil
}

// RGBToXY converts an RGB value to CIE xy coordinates using the Wide Gamut
// RGB working-space matrix from
// http://www.brucelindbloom.com/index.html?Eqn_RGB_XYZ_Matrix.html
// followed by chromaticity normalization.
func RGBToXY(r, g, b uint8) (x, y float64, err error) {
	rf, gf, bf := float64(r), float64(g), float64(b)

	X := 0.7161046*rf + 0.1009296*gf + 0.1471858*bf
	Y := 0.2581874*rf + 0.7249378*gf + 0.0168748*bf
	Z := 0.0000000*rf + 0.0517813*gf + 0.7734287*bf

	sum := X + Y + Z
	if sum == 0 {
		return 0, 0, ErrDegenerateColor
	}
	return X / sum, Y / sum, nil
}

// HexToXY is the common composition of HexToRGB and RGBToXY.
func HexToXY(s string) (x, y float64, err error) {
	r, g, b, err := HexToRGB(s)
	if err != nil {
		return 0, 0, err
	}
	return RGBToXY(r, g, b)
}
