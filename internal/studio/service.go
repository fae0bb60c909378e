package studio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"renovationAi/internal/events"
	"renovationAi/internal/imaging"
	"renovationAi/internal/media"
	"renovationAi/internal/renovation"
	"renovationAi/internal/storage"
	"renovationAi/internal/workflow"
)

var (
	// ErrInvalidImage wraps capture payloads that cannot be decoded.
	ErrInvalidImage = errors.New("studio: invalid image")
	// ErrNoReport is returned when a session has no current result.
	ErrNoReport = errors.New("studio: no report available")
	// ErrImageNotFound is returned for image slots that are unknown or empty.
	ErrImageNotFound = errors.New("studio: image not found")
)

// Generator runs the external call sequences for one request.
type Generator interface {
	Generate(ctx context.Context, input imaging.Image, req renovation.Request) (workflow.Generation, error)
	Refine(ctx context.Context, current imaging.Image, req renovation.Request) (imaging.Image, error)
}

// ReportBuilder renders the before/after document.
type ReportBuilder interface {
	Build(snap renovation.Snapshot) (renovation.Report, error)
}

// Deps bundles the collaborators of a Service.
type Deps struct {
	Registry       *Registry
	Generator      Generator
	Reports        ReportBuilder
	Uploader       media.Uploader
	Store          storage.Store
	Events         *events.Broker
	Logger         *slog.Logger
	MaxDimension   int
	SearchTemplate string
}

// Service drives the event, reducer, render cycle for every session.
type Service struct {
	deps   Deps
	logger *slog.Logger
}

// NewService fills in defaults for optional dependencies.
func NewService(deps Deps) *Service {
	if deps.Registry == nil {
		deps.Registry = NewRegistry(0)
	}
	if deps.Uploader == nil {
		deps.Uploader = media.Disabled()
	}
	if deps.Store == nil {
		deps.Store = storage.NewInMemoryStore()
	}
	if deps.Events == nil {
		deps.Events = events.NewBroker()
	}
	if deps.SearchTemplate == "" {
		deps.SearchTemplate = renovation.DefaultSearchTemplate
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{deps: deps, logger: logger.With("component", "studio")}
}

// Events exposes the broker for streaming subscribers.
func (s *Service) Events() *events.Broker {
	return s.deps.Events
}

// Render is the pure view of a session.
func (s *Service) Render(session renovation.Session) renovation.ViewModel {
	return renovation.Render(session, s.deps.SearchTemplate)
}

// Create starts a new session.
func (s *Service) Create() (renovation.ViewModel, error) {
	session, err := s.deps.Registry.Create()
	if err != nil {
		return renovation.ViewModel{}, err
	}
	s.publish(session, "session created")
	return s.Render(session), nil
}

// View returns the current view of a session.
func (s *Service) View(id string) (renovation.ViewModel, error) {
	session, err := s.deps.Registry.Get(id)
	if err != nil {
		return renovation.ViewModel{}, err
	}
	return s.Render(session), nil
}

// Delete forgets a session.
func (s *Service) Delete(id string) error {
	return s.deps.Registry.Delete(id)
}

// Capture normalizes the photo and makes it the session's source image.
func (s *Service) Capture(id string, data []byte, source renovation.CaptureSource) (renovation.ViewModel, error) {
	img, err := imaging.Normalize(data, s.deps.MaxDimension)
	if err != nil {
		return renovation.ViewModel{}, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return s.apply(id, renovation.ImageCaptured{Image: img, Source: source}, "image captured")
}

// Reset discards everything the session holds.
func (s *Service) Reset(id string) (renovation.ViewModel, error) {
	return s.apply(id, renovation.ResetRequested{}, "session reset")
}

// Generate runs a full generation for the session. The call blocks until the
// external endpoints answer; cancelling ctx does not abort calls already sent.
func (s *Service) Generate(ctx context.Context, id string, req renovation.Request) (renovation.ViewModel, error) {
	started, err := s.deps.Registry.Apply(id, renovation.GenerateRequested{Request: req})
	if err != nil {
		return renovation.ViewModel{}, err
	}
	s.publish(started, "generating")

	ctx = context.WithoutCancel(ctx)
	gen, err := s.deps.Generator.Generate(ctx, started.Original, req)
	if err != nil {
		return s.fail(started, "generate", err)
	}

	report, err := s.deps.Reports.Build(renovation.Snapshot{
		Request:   req,
		Before:    started.Original,
		After:     gen.After,
		Summary:   gen.Summary.Value,
		Rationale: gen.Rationale.Value,
		Materials: gen.Materials.Value,
	})
	if err != nil {
		return s.fail(started, "generate", fmt.Errorf("build report: %w", err))
	}

	return s.complete(started, renovation.GenerationSucceeded{
		Epoch: started.Epoch,
		Result: renovation.GenerationResult{
			After:     gen.After,
			Summary:   gen.Summary.Value,
			Rationale: gen.Rationale.Value,
			Materials: gen.Materials.Value,
			Report:    report,
		},
	}, "generation complete")
}

// Refine edits the current after-image and rebuilds the report around it.
func (s *Service) Refine(ctx context.Context, id string, req renovation.Request) (renovation.ViewModel, error) {
	started, err := s.deps.Registry.Apply(id, renovation.RefineRequested{Request: req})
	if err != nil {
		return renovation.ViewModel{}, err
	}
	s.publish(started, "refining")

	ctx = context.WithoutCancel(ctx)
	after, err := s.deps.Generator.Refine(ctx, started.Latest, req)
	if err != nil {
		return s.fail(started, "refine", err)
	}

	snap := started.Snapshot()
	snap.After = after
	report, err := s.deps.Reports.Build(snap)
	if err != nil {
		return s.fail(started, "refine", fmt.Errorf("build report: %w", err))
	}

	return s.complete(started, renovation.RefinementSucceeded{
		Epoch:  started.Epoch,
		Result: renovation.RefinementResult{After: after, Report: report},
	}, "refinement complete")
}

// Image returns the before or after image of a session as JPEG.
func (s *Service) Image(id string, which string) (imaging.Image, error) {
	session, err := s.deps.Registry.Get(id)
	if err != nil {
		return imaging.Image{}, err
	}
	var img imaging.Image
	switch which {
	case "before":
		img = session.Original
	case "after":
		if session.HasResult() {
			img = session.Latest
		}
	default:
		return imaging.Image{}, fmt.Errorf("%w: unknown slot %q", ErrImageNotFound, which)
	}
	if img.Empty() {
		return imaging.Image{}, ErrImageNotFound
	}
	return imaging.ToJPEG(img)
}

// Report returns the current report of a session.
func (s *Service) Report(id string) (renovation.Report, error) {
	session, err := s.deps.Registry.Get(id)
	if err != nil {
		return renovation.Report{}, err
	}
	if !session.HasResult() {
		return renovation.Report{}, ErrNoReport
	}
	return *session.Report, nil
}

// Archive uploads the current report and both images, then records the project.
func (s *Service) Archive(ctx context.Context, id string) (storage.Project, error) {
	session, err := s.deps.Registry.Get(id)
	if err != nil {
		return storage.Project{}, err
	}
	if !session.HasResult() {
		return storage.Project{}, ErrNoReport
	}
	report := *session.Report

	project := storage.Project{
		ID:          uuid.NewString(),
		SessionID:   session.ID,
		Room:        string(session.Request.Room()),
		Update:      string(session.Request.Update()),
		Description: session.Request.Description(),
		Summary:     session.Summary,
		Rationale:   session.Rationale,
		Materials:   session.Materials,
		Refinements: session.Refines,
		ReportETag:  report.ETag(),
	}

	var uploaded []string
	fail := func(err error) (storage.Project, error) {
		s.discard(ctx, project.ID, uploaded)
		return storage.Project{}, err
	}

	if project.Report, err = s.upload(ctx, project.ID, "report.pdf", "application/pdf", report.PDF); err != nil {
		return storage.Project{}, err
	}
	uploaded = append(uploaded, project.Report.Key)
	for _, item := range []struct {
		name   string
		img    imaging.Image
		target *storage.Artifact
	}{
		{"before.jpg", session.Original, &project.Before},
		{"after.jpg", session.Latest, &project.After},
	} {
		img, err := imaging.ToJPEG(item.img)
		if err != nil {
			return fail(fmt.Errorf("encode %s: %w", item.name, err))
		}
		if *item.target, err = s.upload(ctx, project.ID, item.name, img.MIME, img.Data); err != nil {
			return fail(err)
		}
		uploaded = append(uploaded, item.target.Key)
	}

	saved, err := s.deps.Store.SaveProject(ctx, project)
	if err != nil {
		return fail(fmt.Errorf("save project: %w", err))
	}
	s.logger.Info("project archived", "session_id", session.ID, "project_id", saved.ID, "report", saved.Report.Key)
	return saved, nil
}

// Projects lists recently archived projects.
func (s *Service) Projects(ctx context.Context, limit int) ([]storage.Project, error) {
	return s.deps.Store.ListProjects(ctx, limit)
}

// Project loads one archived project.
func (s *Service) Project(ctx context.Context, id string) (storage.Project, error) {
	return s.deps.Store.GetProject(ctx, id)
}

func (s *Service) upload(ctx context.Context, folder, name, contentType string, data []byte) (storage.Artifact, error) {
	res, err := s.deps.Uploader.Upload(ctx, media.UploadInput{
		Folder:      folder,
		Filename:    name,
		ContentType: contentType,
		Body:        bytes.NewReader(data),
		Size:        int64(len(data)),
	})
	if err != nil {
		return storage.Artifact{}, fmt.Errorf("upload %s: %w", name, err)
	}
	return storage.Artifact{Key: res.Key, URL: res.URL}, nil
}

// discard removes artifacts of an archive that never got a project record.
func (s *Service) discard(ctx context.Context, projectID string, keys []string) {
	ctx = context.WithoutCancel(ctx)
	for _, key := range keys {
		if err := s.deps.Uploader.Delete(ctx, key); err != nil {
			s.logger.Warn("orphaned archive artifact", "project_id", projectID, "key", key, "error", err)
		}
	}
}

func (s *Service) apply(id string, evt renovation.Event, message string) (renovation.ViewModel, error) {
	session, err := s.deps.Registry.Apply(id, evt)
	if err != nil {
		return renovation.ViewModel{}, err
	}
	s.publish(session, message)
	return s.Render(session), nil
}

func (s *Service) complete(started renovation.Session, evt renovation.Event, message string) (renovation.ViewModel, error) {
	session, err := s.deps.Registry.Apply(started.ID, evt)
	if err != nil {
		s.logger.Warn("discarding completion", "session_id", started.ID, "epoch", started.Epoch, "error", err)
		return renovation.ViewModel{}, err
	}
	s.publish(session, message)
	return s.Render(session), nil
}

// fail restores the pre-request state and hands the original error back to the caller.
func (s *Service) fail(started renovation.Session, op string, cause error) (renovation.ViewModel, error) {
	s.logger.Error(op+" failed", "session_id", started.ID, "error", cause)
	session, err := s.deps.Registry.Apply(started.ID, renovation.StepFailed{Epoch: started.Epoch, Err: cause})
	if err != nil {
		s.logger.Warn("discarding failure", "session_id", started.ID, "epoch", started.Epoch, "error", err)
		return renovation.ViewModel{}, cause
	}
	s.publish(session, cause.Error())
	return s.Render(session), cause
}

func (s *Service) publish(session renovation.Session, message string) {
	s.deps.Events.Publish(events.Event{
		SessionID: session.ID,
		State:     session.State,
		Message:   message,
	})
}
