package workflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"renovationAi/internal/imaging"
	"renovationAi/internal/llm"
	"renovationAi/internal/renovation"
	"renovationAi/internal/vision"
)

func photo(t *testing.T, width, height int, shade uint8) imaging.Image {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{R: shade, G: shade / 2, B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	out, err := imaging.Normalize(buf.Bytes(), 0)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	return out
}

// scriptedEditor returns its outputs in order and records every source it was given.
type scriptedEditor struct {
	outputs []imaging.Image
	err     error
	sources []imaging.Image
	prompts []string
}

func (e *scriptedEditor) Edit(_ context.Context, source imaging.Image, instruction string) (imaging.Image, error) {
	e.sources = append(e.sources, source)
	e.prompts = append(e.prompts, instruction)
	if e.err != nil {
		return imaging.Image{}, e.err
	}
	if len(e.outputs) == 0 {
		return imaging.Image{}, fmt.Errorf("%w: script exhausted", vision.ErrNoImageReturned)
	}
	next := e.outputs[0]
	e.outputs = e.outputs[1:]
	return next, nil
}

type fakeText struct {
	annotation string
	materials  string
	err        error
}

func (f fakeText) ChatCompletion(_ context.Context, messages []llm.ChatMessage, _ float64) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if strings.Contains(messages[0].Content, `"materials"`) {
		return f.materials, nil
	}
	return f.annotation, nil
}

func kitchenFlooring(t *testing.T) renovation.Request {
	t.Helper()
	req, err := renovation.NewGenerationRequest("Kitchen", "Flooring", "white oak floors")
	if err != nil {
		t.Fatalf("NewGenerationRequest: %v", err)
	}
	return req
}

func TestGenerateProducesImageAndSummary(t *testing.T) {
	input := photo(t, 640, 480, 200)
	editor := &scriptedEditor{outputs: []imaging.Image{photo(t, 640, 480, 40)}}
	text := fakeText{
		annotation: "```json\n{\"summary\": \"Warm oak floors brighten the kitchen.\", \"rationale\": \"Light wood reflects daylight.\"}\n```",
		materials:  `{"materials": [{"item": "White Oak Flooring", "query": "white oak engineered flooring"}, {"item": "Baseboard Trim"}]}`,
	}
	o := New(editor, NewLLMAnnotator(text, ""), Options{ExtractMaterials: true, IncludeRationale: true})

	gen, err := o.Generate(context.Background(), input, kitchenFlooring(t))
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if gen.After.Empty() {
		t.Fatal("Expected an after image")
	}
	if _, err := gen.After.Decode(); err != nil {
		t.Fatalf("after image is not decodable: %v", err)
	}
	if gen.After.AspectRatio() != input.AspectRatio() {
		t.Errorf("Expected aspect ratio %.3f, got %.3f", input.AspectRatio(), gen.After.AspectRatio())
	}
	if gen.Summary.Value != "Warm oak floors brighten the kitchen." || gen.Summary.Degraded {
		t.Errorf("Unexpected summary %+v", gen.Summary)
	}
	if gen.Rationale.Value != "Light wood reflects daylight." {
		t.Errorf("Unexpected rationale %+v", gen.Rationale)
	}
	if len(gen.Materials.Value) != 2 || gen.Materials.Value[1].Query != "Baseboard Trim" {
		t.Errorf("Unexpected materials %+v", gen.Materials.Value)
	}
	if len(editor.sources) != 1 || !bytes.Equal(editor.sources[0].Data, input.Data) {
		t.Error("Expected the input photo to be sent to the editor")
	}
	if !strings.Contains(editor.prompts[0], "white oak floors") || !strings.Contains(editor.prompts[0], "STRICT CONSTRAINTS") {
		t.Errorf("Instruction is missing user intent or constraints: %s", editor.prompts[0])
	}
}

func TestGenerateDegradesAnnotations(t *testing.T) {
	tests := []struct {
		name string
		text llm.Client
	}{
		{name: "malformed json", text: fakeText{annotation: `{"summary": `, materials: `{"materials": [{"item": 4}]}`}},
		{name: "text endpoint down", text: fakeText{err: errors.New("connection refused")}},
		{name: "invalid material entry", text: fakeText{annotation: `{"summary": ""}`, materials: `{"materials": [{"item": "Tile"}, {"item": "  "}]}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			editor := &scriptedEditor{outputs: []imaging.Image{photo(t, 64, 48, 10)}}
			o := New(editor, NewLLMAnnotator(tt.text, ""), Options{ExtractMaterials: true, IncludeRationale: true})
			gen, err := o.Generate(context.Background(), photo(t, 64, 48, 200), kitchenFlooring(t))
			if err != nil {
				t.Fatalf("Generate must succeed when only annotations fail: %v", err)
			}
			if !gen.Summary.Degraded || gen.Summary.Value != "Kitchen | Flooring | white oak floors" {
				t.Errorf("Expected spec-line fallback summary, got %+v", gen.Summary)
			}
			if !gen.Materials.Degraded || len(gen.Materials.Value) != 0 {
				t.Errorf("Expected empty degraded materials, got %+v", gen.Materials)
			}
			if gen.Materials.Reason == "" {
				t.Error("Expected a degradation reason")
			}
		})
	}
}

func TestGenerateTextOnlyResponse(t *testing.T) {
	editor := &scriptedEditor{err: fmt.Errorf("%w: response contained text only", vision.ErrNoImageReturned)}
	o := New(editor, nil, Options{})

	input := photo(t, 32, 32, 100)
	_, err := o.Generate(context.Background(), input, kitchenFlooring(t))
	if !errors.Is(err, vision.ErrNoImageReturned) {
		t.Fatalf("Expected ErrNoImageReturned, got %v", err)
	}
	var endpointErr *EndpointError
	if errors.As(err, &endpointErr) {
		t.Error("A missing image must not be reported as an endpoint fault")
	}

	session, _ := renovation.Reduce(renovation.NewSession("s"), renovation.ImageCaptured{Image: input})
	session, _ = renovation.Reduce(session, renovation.GenerateRequested{Request: kitchenFlooring(t)})
	session, rerr := renovation.Reduce(session, renovation.StepFailed{Epoch: session.Epoch, Err: err})
	if rerr != nil {
		t.Fatalf("Reduce returned error: %v", rerr)
	}
	if session.State != renovation.StateReady || session.View() != renovation.ViewInput {
		t.Errorf("Expected Ready/input after a text-only response, got %s/%s", session.State, session.View())
	}
}

func TestGenerateEndpointFault(t *testing.T) {
	boom := errors.New("503 service unavailable")
	o := New(&scriptedEditor{err: boom}, nil, Options{})
	_, err := o.Generate(context.Background(), photo(t, 16, 16, 1), kitchenFlooring(t))

	var endpointErr *EndpointError
	if !errors.As(err, &endpointErr) {
		t.Fatalf("Expected EndpointError, got %v", err)
	}
	if endpointErr.Op != "generate" || !errors.Is(err, boom) {
		t.Errorf("Unexpected endpoint error %+v", endpointErr)
	}
}

func TestRefineStacksOnPreviousResult(t *testing.T) {
	original := photo(t, 48, 32, 250)
	first := photo(t, 48, 32, 150)
	second := photo(t, 48, 32, 90)
	third := photo(t, 48, 32, 30)
	editor := &scriptedEditor{outputs: []imaging.Image{first, second, third}}
	o := New(editor, nil, Options{})

	gen, err := o.Generate(context.Background(), original, kitchenFlooring(t))
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	current := gen.After
	for _, instruction := range []string{"make the cabinets navy", "add brass handles"} {
		req, err := renovation.NewRefinementRequest(instruction)
		if err != nil {
			t.Fatalf("NewRefinementRequest: %v", err)
		}
		current, err = o.Refine(context.Background(), current, req)
		if err != nil {
			t.Fatalf("Refine returned error: %v", err)
		}
	}

	if len(editor.sources) != 3 {
		t.Fatalf("Expected three edit calls, got %d", len(editor.sources))
	}
	if !bytes.Equal(editor.sources[1].Data, first.Data) {
		t.Error("First refinement must edit the generated image")
	}
	if !bytes.Equal(editor.sources[2].Data, second.Data) {
		t.Error("Second refinement must edit the first refinement's output, not the original")
	}
	if !bytes.Equal(current.Data, third.Data) {
		t.Error("Expected the last refinement output to be current")
	}
	if !strings.Contains(editor.prompts[2], "add brass handles") || strings.Contains(editor.prompts[2], "navy") {
		t.Errorf("Refinement instructions must not accumulate: %s", editor.prompts[2])
	}
}

func TestGenerateRejectsInvalidInput(t *testing.T) {
	o := New(&scriptedEditor{}, nil, Options{})
	if _, err := o.Generate(context.Background(), imaging.Image{}, kitchenFlooring(t)); !errors.Is(err, renovation.ErrInvalidRequest) {
		t.Errorf("Expected ErrInvalidRequest for empty image, got %v", err)
	}
	refine, _ := renovation.NewRefinementRequest("more light")
	if _, err := o.Generate(context.Background(), photo(t, 8, 8, 1), refine); !errors.Is(err, renovation.ErrInvalidRequest) {
		t.Errorf("Expected ErrInvalidRequest for refinement request, got %v", err)
	}
}

func TestParseAnnotation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    Annotation
		wantErr bool
	}{
		{name: "plain json", content: `{"summary":"New tile.","rationale":"Durable."}`, want: Annotation{Summary: "New tile.", Rationale: "Durable."}},
		{name: "prose around json", content: "Sure!\n{\"summary\":\"Fresh paint.\"}\nDone.", want: Annotation{Summary: "Fresh paint."}},
		{name: "plain sentence", content: "A brighter bathroom with white tile.\nExtra line", want: Annotation{Summary: "A brighter bathroom with white tile."}},
		{name: "broken json", content: `{"summary": "x"`, wantErr: true},
		{name: "empty summary", content: `{"summary": "  "}`, wantErr: true},
		{name: "blank", content: "   ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAnnotation(tt.content)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseAnnotation error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseAnnotation = %+v, want %+v", got, tt.want)
			}
		})
	}
}
