package imaging

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/crypto/blake2b"
	_ "golang.org/x/image/webp"
)

// ErrUndecodable indicates that the bytes are not a raster image we can decode.
var ErrUndecodable = errors.New("imaging: not a decodable image")

// Image is an encoded raster image together with its pixel dimensions.
type Image struct {
	Data   []byte
	MIME   string
	Width  int
	Height int
}

// Empty reports whether the image carries no data.
func (img Image) Empty() bool {
	return len(img.Data) == 0
}

// AspectRatio returns width divided by height, or 0 for an empty image.
func (img Image) AspectRatio() float64 {
	if img.Height == 0 {
		return 0
	}
	return float64(img.Width) / float64(img.Height)
}

// Decode returns the decoded pixels.
func (img Image) Decode() (image.Image, error) {
	if img.Empty() {
		return nil, ErrUndecodable
	}
	decoded, _, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	return decoded, nil
}

// Clone returns a copy that shares no memory with img.
func (img Image) Clone() Image {
	if img.Data != nil {
		img.Data = append([]byte(nil), img.Data...)
	}
	return img
}

// Fingerprint identifies the encoded bytes of the image.
func (img Image) Fingerprint() string {
	return Fingerprint(img.Data)
}

// Fingerprint returns the hex blake2b-256 digest of data.
func Fingerprint(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// EncodeJPEG encodes pixels with the quality used for every image we send or embed.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("imaging: encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// ToJPEG returns img re-encoded as JPEG unless it already is one.
func ToJPEG(img Image) (Image, error) {
	if img.MIME == "image/jpeg" {
		return img, nil
	}
	decoded, err := img.Decode()
	if err != nil {
		return Image{}, err
	}
	data, err := EncodeJPEG(flatten(decoded))
	if err != nil {
		return Image{}, err
	}
	bounds := decoded.Bounds()
	return Image{Data: data, MIME: "image/jpeg", Width: bounds.Dx(), Height: bounds.Dy()}, nil
}
