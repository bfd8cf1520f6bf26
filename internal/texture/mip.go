package texture

import (
	"math/bits"
)

// MipLevels is floor(log2(max(width, height))) + 1.
func MipLevels(width, height uint32) uint32 {
	m := width
	if height > m {
		m = height
	}
	if m == 0 {
		return 1
	}
	return uint32(bits.Len32(m))
}

// Extent is the size of one mip level.
type Extent struct {
	Width  int32
	Height int32
}

// MipChain lists the size of every level, halving each dimension and never
// going below 1.
func MipChain(width, height, levels uint32) []Extent {
	chain := make([]Extent, levels)
	w, h := int32(width), int32(height)
	for i := range chain {
		chain[i] = Extent{Width: w, Height: h}
		if w > 1 {
			w /= 2
		}
		if h > 1 {
			h /= 2
		}
	}
	return chain
}
