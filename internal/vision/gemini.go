package vision

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"renovationAi/internal/imaging"
)

const (
	defaultImageModel       = "gemini-3-pro-image-preview"
	defaultEditTemperature  = 0.7
	defaultFallbackMIMEType = "image/png"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiEditor edits photos with a Gemini image model.
type GeminiEditor struct {
	models      contentGenerator
	model       string
	temperature float32
}

// GeminiEditorConfig describes the Gemini image model to use.
type GeminiEditorConfig struct {
	APIKey      string
	Model       string
	Temperature float64
}

// NewGeminiEditor constructs an editor able to request inline images.
func NewGeminiEditor(ctx context.Context, cfg GeminiEditorConfig) (*GeminiEditor, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("vision: gemini editor requires an API key")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("vision: create genai client: %w", err)
	}
	return newGeminiEditor(client.Models, cfg.Model, cfg.Temperature), nil
}

func newGeminiEditor(models contentGenerator, model string, temperature float64) *GeminiEditor {
	model = strings.TrimPrefix(strings.TrimSpace(model), "models/")
	if model == "" {
		model = defaultImageModel
	}
	if temperature <= 0 {
		temperature = defaultEditTemperature
	}
	return &GeminiEditor{
		models:      models,
		model:       model,
		temperature: float32(temperature),
	}
}

// Edit sends the instruction and source photo in one request and returns the first decodable image part.
func (g *GeminiEditor) Edit(ctx context.Context, source imaging.Image, instruction string) (imaging.Image, error) {
	if g == nil || g.models == nil {
		return imaging.Image{}, fmt.Errorf("vision: gemini editor unavailable")
	}
	if source.Empty() {
		return imaging.Image{}, fmt.Errorf("vision: source image is empty")
	}
	if strings.TrimSpace(instruction) == "" {
		return imaging.Image{}, fmt.Errorf("vision: edit instruction is empty")
	}

	parts := []*genai.Part{
		genai.NewPartFromText(instruction),
		{InlineData: &genai.Blob{MIMEType: source.MIME, Data: source.Data}},
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	config := &genai.GenerateContentConfig{
		Temperature:        genai.Ptr(g.temperature),
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}

	resp, err := g.models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return imaging.Image{}, fmt.Errorf("vision: gemini edit: %w", err)
	}
	return firstImage(resp)
}

func firstImage(resp *genai.GenerateContentResponse) (imaging.Image, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return imaging.Image{}, fmt.Errorf("%w: response has no candidates", ErrNoImageReturned)
	}
	var lastErr error
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			mime := part.InlineData.MIMEType
			if strings.TrimSpace(mime) == "" {
				mime = defaultFallbackMIMEType
			}
			img, err := imaging.DecodePayload(part.InlineData.Data, mime)
			if err != nil {
				lastErr = err
				continue
			}
			return img, nil
		}
	}
	if lastErr != nil {
		return imaging.Image{}, fmt.Errorf("%w: %v", ErrNoImageReturned, lastErr)
	}
	return imaging.Image{}, fmt.Errorf("%w: response contained text only", ErrNoImageReturned)
}
