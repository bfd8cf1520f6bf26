// Package texture decodes image files into tightly packed RGBA8 pixels and
// describes their mip chains.
package texture

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// MaxDimension bounds either side of a decoded texture.
const MaxDimension = 1 << 15

// Pixels is a straight-alpha RGBA8 image, rows top to bottom, no padding.
type Pixels struct {
	Width  uint32
	Height uint32
	RGBA   []byte
}

// Size is the byte length of the pixel data.
func (p *Pixels) Size() int {
	return int(p.Width) * int(p.Height) * 4
}

// Load decodes the image at path. P6 PPM files are read directly; every
// other format goes through the registered image decoders.
func Load(path string) (*Pixels, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read texture")
	}
	if isPPM(data) {
		return DecodePPM(data)
	}
	return Decode(bytes.NewReader(data))
}

func Decode(r io.Reader) (*Pixels, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, errors.Wrap(err, "decode texture")
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, errors.Newf("%s texture is empty", format)
	}
	if b.Dx() > MaxDimension || b.Dy() > MaxDimension {
		return nil, errors.Newf("%s texture %dx%d exceeds %d", format, b.Dx(), b.Dy(), MaxDimension)
	}
	// image.RGBA is premultiplied; the shader samples straight alpha.
	nrgba, ok := img.(*image.NRGBA)
	if !ok || nrgba.Stride != b.Dx()*4 || b.Min != (image.Point{}) {
		nrgba = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(nrgba, nrgba.Bounds(), img, b.Min, draw.Src)
	}
	return &Pixels{
		Width:  uint32(b.Dx()),
		Height: uint32(b.Dy()),
		RGBA:   nrgba.Pix,
	}, nil
}

// Checker is the 2x2 stand-in used when no texture can be loaded.
func Checker() *Pixels {
	return &Pixels{
		Width:  2,
		Height: 2,
		RGBA: []byte{
			255, 255, 255, 255, 50, 50, 50, 255,
			50, 50, 50, 255, 255, 255, 255, 255,
		},
	}
}
