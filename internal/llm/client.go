package llm

import (
	"context"
	"errors"
	"strings"

	"renovationAi/internal/imaging"
)

// ErrEmptyResponse is returned when the provider answers without any text.
var ErrEmptyResponse = errors.New("llm: empty response")

// ChatMessage represents a generic chat turn in the prompt history.
type ChatMessage struct {
	Role    string          `json:"role"`
	Content string          `json:"content"`
	Images  []imaging.Image `json:"-"`
}

// Client defines the text-generation behaviour the workflow relies on.
type Client interface {
	ChatCompletion(ctx context.Context, messages []ChatMessage, temperature float64) (string, error)
}

// UserWithImage builds a user turn carrying one image.
func UserWithImage(text string, img imaging.Image) ChatMessage {
	msg := ChatMessage{Role: "user", Content: text}
	if !img.Empty() {
		msg.Images = []imaging.Image{img}
	}
	return msg
}

func normalizeModel(model string) string {
	clean := strings.TrimSpace(model)
	return strings.TrimPrefix(clean, "models/")
}
