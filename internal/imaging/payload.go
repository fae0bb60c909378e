package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"net/http"
	"strings"
)

// DecodePayload turns a model response payload into an Image. The payload is
// either raw image bytes or base64 text (optionally a data: URI). Raw bytes are
// never base64-decoded a second time.
func DecodePayload(payload []byte, mimeType string) (Image, error) {
	if len(payload) == 0 {
		return Image{}, fmt.Errorf("%w: empty payload", ErrUndecodable)
	}

	raw := payload
	if !looksLikeImage(payload) {
		decoded, err := decodeBase64(payload)
		if err != nil {
			return Image{}, fmt.Errorf("%w: payload is neither image bytes nor base64: %v", ErrUndecodable, err)
		}
		raw = decoded
	}

	// A valid header is not enough: truncated pixel data must fail here.
	decoded, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	bounds := decoded.Bounds()
	return Image{
		Data:   raw,
		MIME:   mimeFor(format, mimeType),
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}

// DataURI renders the image as an inline data: URI.
func DataURI(data []byte, mimeType string) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func looksLikeImage(data []byte) bool {
	return strings.HasPrefix(http.DetectContentType(data), "image/")
}

func decodeBase64(payload []byte) ([]byte, error) {
	text := strings.TrimSpace(string(payload))
	if strings.HasPrefix(text, "data:") {
		parts := strings.SplitN(text, ",", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid data URL")
		}
		text = parts[1]
	}
	text = strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, text)

	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	}
	var lastErr error
	for _, enc := range encodings {
		decoded, err := enc.DecodeString(text)
		if err == nil {
			return decoded, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func mimeFor(format, provided string) string {
	switch format {
	case "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	}
	if strings.HasPrefix(provided, "image/") {
		return provided
	}
	return "image/png"
}
