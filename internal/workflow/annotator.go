package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"renovationAi/internal/imaging"
	"renovationAi/internal/llm"
	"renovationAi/internal/prompts"
	"renovationAi/internal/renovation"
)

const annotationTemperature = 0.3

var errMalformed = errors.New("workflow: malformed annotation response")

// Annotation is the text that accompanies an after-image.
type Annotation struct {
	Summary   string `json:"summary"`
	Rationale string `json:"rationale"`
}

// Annotator produces the advisory text around a generated image.
type Annotator interface {
	Annotate(ctx context.Context, after imaging.Image, req renovation.Request) (Annotation, error)
	ExtractMaterials(ctx context.Context, after imaging.Image) ([]renovation.MaterialSuggestion, error)
}

// NewHeuristic returns an annotator that never calls a model.
func NewHeuristic() Annotator {
	return heuristicAnnotator{}
}

type heuristicAnnotator struct{}

func (heuristicAnnotator) Annotate(_ context.Context, _ imaging.Image, req renovation.Request) (Annotation, error) {
	return Annotation{Summary: req.SpecLine()}, nil
}

func (heuristicAnnotator) ExtractMaterials(context.Context, imaging.Image) ([]renovation.MaterialSuggestion, error) {
	return nil, nil
}

// LLMAnnotator asks a multimodal text model about the after-image.
type LLMAnnotator struct {
	client llm.Client
	model  string
}

// NewLLMAnnotator wraps a text client. An empty model keeps the client's default.
func NewLLMAnnotator(client llm.Client, model string) *LLMAnnotator {
	return &LLMAnnotator{client: client, model: model}
}

// Annotate returns the summary sentence and rationale paragraph.
func (a *LLMAnnotator) Annotate(ctx context.Context, after imaging.Image, req renovation.Request) (Annotation, error) {
	if a == nil || a.client == nil {
		return Annotation{}, fmt.Errorf("workflow: annotator unavailable")
	}
	ctx = llm.WithJSONResponse(llm.WithModel(ctx, a.model))
	content, err := a.client.ChatCompletion(ctx, []llm.ChatMessage{
		llm.UserWithImage(prompts.AnnotationPrompt(req), after),
	}, annotationTemperature)
	if err != nil {
		return Annotation{}, fmt.Errorf("workflow: annotate: %w", err)
	}
	return parseAnnotation(content)
}

// ExtractMaterials lists the purchasable materials visible in the after-image.
func (a *LLMAnnotator) ExtractMaterials(ctx context.Context, after imaging.Image) ([]renovation.MaterialSuggestion, error) {
	if a == nil || a.client == nil {
		return nil, fmt.Errorf("workflow: annotator unavailable")
	}
	ctx = llm.WithJSONResponse(llm.WithModel(ctx, a.model))
	content, err := a.client.ChatCompletion(ctx, []llm.ChatMessage{
		llm.UserWithImage(prompts.MaterialsPrompt(), after),
	}, annotationTemperature)
	if err != nil {
		return nil, fmt.Errorf("workflow: extract materials: %w", err)
	}
	return parseMaterials(content)
}

func parseAnnotation(content string) (Annotation, error) {
	var annotation Annotation
	if err := unmarshalEmbedded(content, &annotation); err != nil {
		if strings.ContainsAny(content, "{}") {
			return Annotation{}, err
		}
		// Plain prose: keep the first line as the summary sentence.
		line := strings.TrimSpace(strings.SplitN(strings.TrimSpace(content), "\n", 2)[0])
		if line == "" {
			return Annotation{}, fmt.Errorf("%w: empty text", errMalformed)
		}
		return Annotation{Summary: line}, nil
	}
	annotation.Summary = strings.Join(strings.Fields(annotation.Summary), " ")
	annotation.Rationale = strings.TrimSpace(annotation.Rationale)
	if annotation.Summary == "" {
		return Annotation{}, fmt.Errorf("%w: summary is empty", errMalformed)
	}
	return annotation, nil
}

func parseMaterials(content string) ([]renovation.MaterialSuggestion, error) {
	var payload struct {
		Materials []struct {
			Item  string `json:"item"`
			Query string `json:"query"`
		} `json:"materials"`
	}
	if err := unmarshalEmbedded(content, &payload); err != nil {
		return nil, err
	}

	out := make([]renovation.MaterialSuggestion, 0, len(payload.Materials))
	for i, entry := range payload.Materials {
		suggestion := renovation.NewMaterialSuggestion(entry.Item, entry.Query)
		if !suggestion.Valid() {
			return nil, fmt.Errorf("%w: material %d has no item", errMalformed, i)
		}
		out = append(out, suggestion)
	}
	return out, nil
}

// unmarshalEmbedded decodes content, or the outermost {...} inside it when the
// model wrapped the JSON in prose or code fences.
func unmarshalEmbedded(content string, target any) error {
	if err := json.Unmarshal([]byte(content), target); err == nil {
		return nil
	}
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(content[start:end+1]), target); err == nil {
			return nil
		}
	}
	return fmt.Errorf("%w: could not parse JSON", errMalformed)
}
