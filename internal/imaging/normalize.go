package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"
)

const (
	// DefaultMaxDimension caps the longest side of images sent to the model endpoints.
	DefaultMaxDimension = 1024
	jpegQuality         = 90
)

// Normalize decodes an uploaded or captured photo, flattens it to opaque RGB and
// downscales it so neither side exceeds maxDim. The result is always JPEG.
func Normalize(data []byte, maxDim int) (Image, error) {
	if len(data) == 0 {
		return Image{}, fmt.Errorf("%w: empty payload", ErrUndecodable)
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	return FromPixels(src, maxDim)
}

// FromPixels applies the same normalization to already decoded pixels.
func FromPixels(src image.Image, maxDim int) (Image, error) {
	if maxDim <= 0 {
		maxDim = DefaultMaxDimension
	}
	bounds := src.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return Image{}, fmt.Errorf("%w: zero-sized image", ErrUndecodable)
	}

	width, height := fitWithin(bounds.Dx(), bounds.Dy(), maxDim)
	flat := flatten(src)
	if width != bounds.Dx() || height != bounds.Dy() {
		scaled := image.NewRGBA(image.Rect(0, 0, width, height))
		xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), flat, flat.Bounds(), xdraw.Src, nil)
		flat = scaled
	}

	data, err := EncodeJPEG(flat)
	if err != nil {
		return Image{}, err
	}
	return Image{Data: data, MIME: "image/jpeg", Width: width, Height: height}, nil
}

// fitWithin keeps the aspect ratio while bounding both sides by maxDim.
func fitWithin(width, height, maxDim int) (int, int) {
	if width <= maxDim && height <= maxDim {
		return width, height
	}
	if width >= height {
		scaled := height * maxDim / width
		if scaled < 1 {
			scaled = 1
		}
		return maxDim, scaled
	}
	scaled := width * maxDim / height
	if scaled < 1 {
		scaled = 1
	}
	return scaled, maxDim
}

// flatten composites src over white into an RGBA canvas anchored at the origin.
func flatten(src image.Image) *image.RGBA {
	bounds := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	xdraw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, xdraw.Src)
	xdraw.Draw(dst, dst.Bounds(), src, bounds.Min, xdraw.Over)
	return dst
}
