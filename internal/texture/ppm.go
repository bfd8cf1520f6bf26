package texture

import (
	"strconv"

	"github.com/cockroachdb/errors"
)

func isPPM(data []byte) bool {
	return len(data) >= 2 && data[0] == 'P' && data[1] == '6'
}

// DecodePPM reads a binary P6 file with a max value of 255.
func DecodePPM(data []byte) (*Pixels, error) {
	if len(data) < 3 || !isPPM(data) {
		return nil, errors.New("not a P6 ppm")
	}
	idx := 2
	var tokens []string
	for len(tokens) < 3 && idx < len(data) {
		for idx < len(data) && isSpace(data[idx]) {
			idx++
		}
		if idx < len(data) && data[idx] == '#' {
			for idx < len(data) && data[idx] != '\n' {
				idx++
			}
			continue
		}
		start := idx
		for idx < len(data) && !isSpace(data[idx]) {
			idx++
		}
		if start < idx {
			tokens = append(tokens, string(data[start:idx]))
		}
	}
	if len(tokens) < 3 {
		return nil, errors.New("ppm header incomplete")
	}
	width, err := strconv.Atoi(tokens[0])
	if err != nil || width <= 0 || width > MaxDimension {
		return nil, errors.Newf("ppm width %q", tokens[0])
	}
	height, err := strconv.Atoi(tokens[1])
	if err != nil || height <= 0 || height > MaxDimension {
		return nil, errors.Newf("ppm height %q", tokens[1])
	}
	maxVal, err := strconv.Atoi(tokens[2])
	if err != nil {
		return nil, errors.Wrap(err, "ppm max value")
	}
	if maxVal != 255 {
		return nil, errors.Newf("unsupported max value %d", maxVal)
	}
	// Exactly one whitespace byte separates the header from the raster.
	idx++
	if idx > len(data) {
		idx = len(data)
	}
	rgb := data[idx:]
	pixelCount := width * height
	if pixelCount > len(rgb)/3 {
		return nil, errors.Newf("ppm data truncated: got %d bytes for %dx%d", len(rgb), width, height)
	}
	rgba := make([]byte, pixelCount*4)
	for i := 0; i < pixelCount; i++ {
		copy(rgba[i*4:], rgb[i*3:i*3+3])
		rgba[i*4+3] = 255
	}
	return &Pixels{Width: uint32(width), Height: uint32(height), RGBA: rgba}, nil
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\r' || b == '\t'
}
