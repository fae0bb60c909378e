package vision

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"renovationAi/internal/imaging"
	"renovationAi/internal/llm"
)

// ErrNoImageReturned is returned when a backend answers without a decodable image.
var ErrNoImageReturned = errors.New("vision: no image returned")

// ImageEditor edits a source photo according to an instruction.
type ImageEditor interface {
	Edit(ctx context.Context, source imaging.Image, instruction string) (imaging.Image, error)
}

// Backend names a supported ImageEditor implementation.
type Backend string

const (
	BackendGemini Backend = "gemini"
	BackendImagen Backend = "imagen"
	BackendRender Backend = "render"
)

// ParseBackend resolves a configured backend name, defaulting to gemini.
func ParseBackend(raw string) (Backend, error) {
	switch Backend(strings.ToLower(strings.TrimSpace(raw))) {
	case "", BackendGemini:
		return BackendGemini, nil
	case BackendImagen:
		return BackendImagen, nil
	case BackendRender:
		return BackendRender, nil
	}
	return "", fmt.Errorf("vision: unknown editor backend %q", raw)
}

// Config selects and configures the image editor.
type Config struct {
	Backend     Backend
	APIKey      string
	Model       string
	Temperature float64
	Imagen      VertexImagenConfig
	Render      RenderConfig
	// PromptWriter turns edit instructions into render prompts for the render backend.
	PromptWriter llm.Client
	Timeout      time.Duration
}

// NewEditor builds the configured ImageEditor.
func NewEditor(ctx context.Context, cfg Config) (ImageEditor, error) {
	switch cfg.Backend {
	case "", BackendGemini:
		editor, err := NewGeminiEditor(ctx, GeminiEditorConfig{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
		})
		if err != nil {
			return nil, err
		}
		return editor, nil
	case BackendImagen:
		editor, err := NewVertexImagen(cfg.Imagen)
		if err != nil {
			return nil, err
		}
		return editor, nil
	case BackendRender:
		editor, err := NewRenderEditor(cfg.Render, cfg.PromptWriter, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		return editor, nil
	}
	return nil, fmt.Errorf("vision: unknown editor backend %q", cfg.Backend)
}
