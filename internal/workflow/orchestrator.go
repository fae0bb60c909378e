package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"renovationAi/internal/imaging"
	"renovationAi/internal/prompts"
	"renovationAi/internal/renovation"
	"renovationAi/internal/vision"
)

// Generation is the outcome of a successful generate call. The after-image is
// always present; the annotations are advisory.
type Generation struct {
	After     imaging.Image
	Summary   Advisory[string]
	Rationale Advisory[string]
	Materials Advisory[[]renovation.MaterialSuggestion]
}

// Options tunes the orchestrator.
type Options struct {
	ExtractMaterials bool
	IncludeRationale bool
	// StepTimeout bounds each external call. Zero means no extra bound.
	StepTimeout time.Duration
	Logger      *slog.Logger
	Tracer      trace.Tracer
	Meter       metric.Meter
}

// Orchestrator runs the generate and refine call sequences.
type Orchestrator struct {
	editor    vision.ImageEditor
	annotator Annotator
	opts      Options
	logger    *slog.Logger
	tracer    trace.Tracer

	generations metric.Int64Counter
	refinements metric.Int64Counter
	degradedCnt metric.Int64Counter
}

// New wires an orchestrator. A nil annotator falls back to the heuristic one.
func New(editor vision.ImageEditor, annotator Annotator, opts Options) *Orchestrator {
	if annotator == nil {
		annotator = NewHeuristic()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = tracenoop.NewTracerProvider().Tracer("renovation/workflow")
	}
	meter := opts.Meter
	if meter == nil {
		meter = metricnoop.NewMeterProvider().Meter("renovation/workflow")
	}

	o := &Orchestrator{
		editor:    editor,
		annotator: annotator,
		opts:      opts,
		logger:    logger,
		tracer:    tracer,
	}
	o.generations = counter(meter, "renovation.generations", "Completed generate calls")
	o.refinements = counter(meter, "renovation.refinements", "Completed refine calls")
	o.degradedCnt = counter(meter, "renovation.degraded_annotations", "Annotation calls that fell back")
	return o
}

func counter(meter metric.Meter, name, description string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		c, _ = metricnoop.NewMeterProvider().Meter("noop").Int64Counter(name)
	}
	return c
}

// Generate edits the input photo according to req and annotates the result.
func (o *Orchestrator) Generate(ctx context.Context, input imaging.Image, req renovation.Request) (Generation, error) {
	if input.Empty() {
		return Generation{}, fmt.Errorf("%w: input image is empty", renovation.ErrInvalidRequest)
	}
	if req.IsZero() || req.IsRefinement() {
		return Generation{}, fmt.Errorf("%w: generation needs room and update categories", renovation.ErrInvalidRequest)
	}

	ctx, span := o.tracer.Start(ctx, "workflow.generate", trace.WithAttributes(
		attribute.String("renovation.room", string(req.Room())),
		attribute.String("renovation.update", string(req.Update())),
	))
	defer span.End()

	after, err := o.edit(ctx, "generate", input, prompts.EditInstruction(req))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "image edit failed")
		o.generations.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "failed")))
		return Generation{}, err
	}

	gen := Generation{After: after}
	gen.Summary, gen.Rationale = o.annotate(ctx, after, req)
	gen.Materials = o.extractMaterials(ctx, after)

	o.generations.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "ok")))
	o.logger.Info("generation complete",
		"room", req.Room(),
		"update", req.Update(),
		"summary_degraded", gen.Summary.Degraded,
		"materials", len(gen.Materials.Value),
	)
	return gen, nil
}

// Refine edits the current after-image. The original upload is never used here.
func (o *Orchestrator) Refine(ctx context.Context, current imaging.Image, req renovation.Request) (imaging.Image, error) {
	if current.Empty() {
		return imaging.Image{}, fmt.Errorf("%w: nothing to refine", renovation.ErrInvalidRequest)
	}
	if !req.IsRefinement() {
		return imaging.Image{}, fmt.Errorf("%w: refinement instruction is required", renovation.ErrInvalidRequest)
	}

	ctx, span := o.tracer.Start(ctx, "workflow.refine")
	defer span.End()

	after, err := o.edit(ctx, "refine", current, prompts.EditInstruction(req))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "image edit failed")
		o.refinements.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "failed")))
		return imaging.Image{}, err
	}
	o.refinements.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "ok")))
	o.logger.Info("refinement complete", "width", after.Width, "height", after.Height)
	return after, nil
}

func (o *Orchestrator) edit(ctx context.Context, op string, source imaging.Image, instruction string) (imaging.Image, error) {
	if o.editor == nil {
		return imaging.Image{}, &EndpointError{Op: op, Err: fmt.Errorf("no image editor configured")}
	}
	ctx, cancel := o.stepContext(ctx)
	defer cancel()
	ctx, span := o.tracer.Start(ctx, "image_edit", trace.WithAttributes(attribute.String("operation", op)))
	defer span.End()

	after, err := o.editor.Edit(ctx, source, instruction)
	if err != nil {
		span.RecordError(err)
		o.logger.Warn("image edit failed", "operation", op, "error", err)
		return imaging.Image{}, classify(op, err)
	}
	if after.Empty() {
		return imaging.Image{}, classify(op, fmt.Errorf("%w: editor returned an empty image", vision.ErrNoImageReturned))
	}
	return after, nil
}

func (o *Orchestrator) annotate(ctx context.Context, after imaging.Image, req renovation.Request) (Advisory[string], Advisory[string]) {
	ctx, cancel := o.stepContext(ctx)
	defer cancel()
	ctx, span := o.tracer.Start(ctx, "summarize")
	defer span.End()

	fallback := req.SpecLine()
	annotation, err := o.annotator.Annotate(ctx, after, req)
	if err != nil {
		span.RecordError(err)
		o.recordDegraded(ctx, "summary", err)
		return degraded(fallback, err), degraded("", err)
	}

	summary := ok(annotation.Summary)
	if annotation.Summary == "" {
		summary = degraded(fallback, fmt.Errorf("%w: summary is empty", errMalformed))
	}
	rationale := ok(annotation.Rationale)
	if !o.opts.IncludeRationale {
		rationale = ok("")
	}
	return summary, rationale
}

func (o *Orchestrator) extractMaterials(ctx context.Context, after imaging.Image) Advisory[[]renovation.MaterialSuggestion] {
	if !o.opts.ExtractMaterials {
		return ok([]renovation.MaterialSuggestion{})
	}
	ctx, cancel := o.stepContext(ctx)
	defer cancel()
	ctx, span := o.tracer.Start(ctx, "extract_materials")
	defer span.End()

	materials, err := o.annotator.ExtractMaterials(ctx, after)
	if err != nil {
		span.RecordError(err)
		o.recordDegraded(ctx, "materials", err)
		return degraded([]renovation.MaterialSuggestion{}, err)
	}
	if materials == nil {
		materials = []renovation.MaterialSuggestion{}
	}
	return ok(materials)
}

func (o *Orchestrator) recordDegraded(ctx context.Context, kind string, err error) {
	o.degradedCnt.Add(ctx, 1, metric.WithAttributes(attribute.String("annotation", kind)))
	o.logger.Warn("annotation degraded", "annotation", kind, "error", err)
}

func (o *Orchestrator) stepContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.opts.StepTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.opts.StepTimeout)
}
