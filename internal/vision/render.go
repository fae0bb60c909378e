package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"renovationAi/internal/imaging"
	"renovationAi/internal/llm"
	"renovationAi/internal/prompts"
)

const (
	defaultRenderStrength = 0.35
	defaultRenderSteps    = 30
	defaultRenderFormat   = "png"
	maxRenderedImageBytes = 20 * 1024 * 1024
	promptWriterTemp      = 0.4
)

// RenderConfig describes the image-to-image rendering endpoint.
type RenderConfig struct {
	Endpoint string
	APIKey   string
	// Strength is how much of the source structure is overwritten, between 0 and 1.
	Strength float64
	Steps    int
	Format   string
}

// RenderEditor is the two-stage backend: a vision model writes a prompt, a
// rendering endpoint renders it and answers with a URL that is fetched afterwards.
type RenderEditor struct {
	cfg    RenderConfig
	writer llm.Client
	client *http.Client
}

// NewRenderEditor wires the prompt writer and rendering endpoint.
func NewRenderEditor(cfg RenderConfig, writer llm.Client, timeout time.Duration) (*RenderEditor, error) {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("render: endpoint is required")
	}
	if cfg.Strength <= 0 || cfg.Strength > 1 {
		cfg.Strength = defaultRenderStrength
	}
	if cfg.Steps <= 0 {
		cfg.Steps = defaultRenderSteps
	}
	if strings.TrimSpace(cfg.Format) == "" {
		cfg.Format = defaultRenderFormat
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &RenderEditor{
		cfg:    cfg,
		writer: writer,
		client: &http.Client{Timeout: timeout},
	}, nil
}

type renderRequest struct {
	Prompt       string  `json:"prompt"`
	Image        string  `json:"image"`
	Strength     float64 `json:"strength"`
	Steps        int     `json:"num_inference_steps"`
	OutputFormat string  `json:"output_format"`
}

type renderResponse struct {
	URL    string          `json:"url"`
	Output json.RawMessage `json:"output"`
	Error  string          `json:"error"`
}

// Edit writes a rendering prompt from the photo and instruction, renders it and fetches the result.
func (r *RenderEditor) Edit(ctx context.Context, source imaging.Image, instruction string) (imaging.Image, error) {
	if source.Empty() {
		return imaging.Image{}, fmt.Errorf("render: source image is empty")
	}
	prompt, err := r.writePrompt(ctx, source, instruction)
	if err != nil {
		return imaging.Image{}, err
	}

	location, err := r.render(ctx, source, prompt)
	if err != nil {
		return imaging.Image{}, err
	}
	return r.fetch(ctx, location)
}

func (r *RenderEditor) writePrompt(ctx context.Context, source imaging.Image, instruction string) (string, error) {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return "", fmt.Errorf("render: instruction is empty")
	}
	if r.writer == nil {
		return instruction, nil
	}
	content, err := r.writer.ChatCompletion(ctx, []llm.ChatMessage{
		llm.UserWithImage(prompts.RenderBrief(instruction), source),
	}, promptWriterTemp)
	if err != nil {
		return "", fmt.Errorf("render: write prompt: %w", err)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return instruction, nil
	}
	return content, nil
}

func (r *RenderEditor) render(ctx context.Context, source imaging.Image, prompt string) (string, error) {
	body, err := json.Marshal(renderRequest{
		Prompt:       prompt,
		Image:        imaging.DataURI(source.Data, source.MIME),
		Strength:     r.cfg.Strength,
		Steps:        r.cfg.Steps,
		OutputFormat: r.cfg.Format,
	})
	if err != nil {
		return "", fmt.Errorf("render: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("render: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("render: perform request: %w", err)
	}
	defer resp.Body.Close()

	var decoded renderResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&decoded); err != nil && resp.StatusCode < 300 {
		return "", fmt.Errorf("render: decode response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("render: status %d: %s", resp.StatusCode, decoded.Error)
	}

	location := decoded.location()
	if location == "" {
		return "", fmt.Errorf("%w: render response has no image url", ErrNoImageReturned)
	}
	return location, nil
}

func (r renderResponse) location() string {
	if url := strings.TrimSpace(r.URL); url != "" {
		return url
	}
	if len(r.Output) == 0 {
		return ""
	}
	var single string
	if err := json.Unmarshal(r.Output, &single); err == nil {
		return strings.TrimSpace(single)
	}
	var many []string
	if err := json.Unmarshal(r.Output, &many); err == nil {
		for _, candidate := range many {
			if candidate = strings.TrimSpace(candidate); candidate != "" {
				return candidate
			}
		}
	}
	return ""
}

func (r *RenderEditor) fetch(ctx context.Context, location string) (imaging.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return imaging.Image{}, fmt.Errorf("render: fetch request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return imaging.Image{}, fmt.Errorf("render: fetch rendered image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return imaging.Image{}, fmt.Errorf("render: status %d from %s", resp.StatusCode, location)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRenderedImageBytes+1))
	if err != nil {
		return imaging.Image{}, fmt.Errorf("render: read rendered image: %w", err)
	}
	if len(data) > maxRenderedImageBytes {
		return imaging.Image{}, fmt.Errorf("render: rendered image exceeds %d bytes", maxRenderedImageBytes)
	}
	img, err := imaging.DecodePayload(data, resp.Header.Get("Content-Type"))
	if err != nil {
		return imaging.Image{}, fmt.Errorf("%w: %v", ErrNoImageReturned, err)
	}
	return img, nil
}
