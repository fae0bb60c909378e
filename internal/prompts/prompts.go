package prompts

import (
	"fmt"
	"strings"

	"renovationAi/internal/renovation"
)

const structuralConstraints = `STRICT CONSTRAINTS:
1. Maintain the exact camera angle, perspective and room geometry.
2. Do not add new windows, doors, walls or other structural elements.
3. Output a photorealistic image.
4. Edit the provided photo in place; do not re-synthesize the scene from scratch.`

const editTemplate = `Act as a professional architectural visualizer.
Task: Renovate this %s.
Category: %s
Details: %s

%s`

const refineTemplate = `Act as a professional architectural visualizer.
The attached photo is a renovation proposal. Apply this follow-up change to it:
%s

Keep every other part of the proposal unchanged.

%s`

const annotationTemplate = `You are an interior renovation consultant. The attached image is a renovation proposal.
Original request: %s

Return JSON {"summary": "", "rationale": ""}.
- "summary": one sentence describing the proposed renovation.
- "rationale": one short paragraph explaining why the design choices work for this %s.`

const materialsPrompt = `You are a renovation shopping assistant. Look at the attached renovation proposal and list
the visible materials, finishes and fixtures a homeowner would need to buy.

Return JSON {"materials": [{"item": "", "query": ""}]}.
- "item": short human readable name, e.g. "White Oak Flooring".
- "query": a product search query for the item.
- At most 8 entries. Return an empty list if nothing is identifiable.`

const renderBriefTemplate = `You write prompts for an image-to-image rendering model.
Look at the attached room photo and the requested change below, then write one prompt that describes the finished
room in concrete visual terms (materials, colors, lighting, style). The rendering model keeps the photo's structure,
so describe surfaces and finishes rather than layout.
Requested change: %s

Reply with the prompt text only.`

// EditInstruction composes the image-edit instruction for a generation or refinement request.
func EditInstruction(req renovation.Request) string {
	if req.IsRefinement() {
		return fmt.Sprintf(refineTemplate, req.Instruction(), structuralConstraints)
	}
	details := req.Description()
	if details == "" {
		details = fmt.Sprintf("A tasteful %s update.", strings.ToLower(string(req.Update())))
	}
	return fmt.Sprintf(editTemplate, req.Room(), req.Update(), details, structuralConstraints)
}

// AnnotationPrompt asks for the summary sentence and the rationale paragraph.
func AnnotationPrompt(req renovation.Request) string {
	room := strings.ToLower(string(req.Room()))
	if room == "" {
		room = "room"
	}
	return fmt.Sprintf(annotationTemplate, req.SpecLine(), room)
}

// MaterialsPrompt asks for the shopping list of the pictured renovation.
func MaterialsPrompt() string {
	return materialsPrompt
}

// RenderBrief asks a vision model to turn an edit instruction into a rendering prompt.
func RenderBrief(instruction string) string {
	return fmt.Sprintf(renderBriefTemplate, strings.TrimSpace(instruction))
}
