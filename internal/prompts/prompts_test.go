package prompts

import (
	"strings"
	"testing"

	"renovationAi/internal/renovation"
)

func TestEditInstruction(t *testing.T) {
	generation, err := renovation.NewGenerationRequest("Kitchen", "Flooring", "white oak floors")
	if err != nil {
		t.Fatalf("NewGenerationRequest: %v", err)
	}
	bare, err := renovation.NewGenerationRequest("Patio", "Paint", "")
	if err != nil {
		t.Fatalf("NewGenerationRequest: %v", err)
	}
	refine, err := renovation.NewRefinementRequest("make the cabinets navy")
	if err != nil {
		t.Fatalf("NewRefinementRequest: %v", err)
	}

	tests := []struct {
		name string
		req  renovation.Request
		want []string
	}{
		{"generation", generation, []string{"Renovate this Kitchen", "Category: Flooring", "Details: white oak floors"}},
		{"empty description", bare, []string{"Renovate this Patio", "A tasteful paint update."}},
		{"refinement", refine, []string{"make the cabinets navy", "Keep every other part"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EditInstruction(tt.req)
			for _, want := range append(tt.want, "Do not add new windows, doors, walls") {
				if !strings.Contains(got, want) {
					t.Errorf("Expected instruction to contain %q, got:\n%s", want, got)
				}
			}
		})
	}
}

func TestAnnotationPromptNamesRoom(t *testing.T) {
	req, err := renovation.NewGenerationRequest("Living Room", "Cabinets", "")
	if err != nil {
		t.Fatalf("NewGenerationRequest: %v", err)
	}
	got := AnnotationPrompt(req)
	if !strings.Contains(got, "for this living room") || !strings.Contains(got, req.SpecLine()) {
		t.Errorf("Unexpected annotation prompt:\n%s", got)
	}
}

func TestRenderBriefTrimsInstruction(t *testing.T) {
	got := RenderBrief("  warm lighting \n")
	if !strings.Contains(got, "Requested change: warm lighting\n") {
		t.Errorf("Expected trimmed instruction, got:\n%s", got)
	}
}
