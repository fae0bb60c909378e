package renovation

import (
	"errors"
	"fmt"
	"time"

	"renovationAi/internal/imaging"
)

var (
	// ErrBusy rejects new work while a generation or refinement is in flight.
	ErrBusy = errors.New("renovation: a request is already in progress")
	// ErrInvalidTransition rejects events the current state cannot accept.
	ErrInvalidTransition = errors.New("renovation: invalid transition")
	// ErrStale marks a completion that belongs to an earlier request.
	ErrStale = errors.New("renovation: stale completion")
)

// Event is one of the closed set of inputs Reduce accepts.
type Event interface {
	isEvent()
}

// ImageCaptured sets the source photo. The most recent capture wins.
type ImageCaptured struct {
	Image  imaging.Image
	Source CaptureSource
}

// GenerateRequested starts a generation from the original photo.
type GenerateRequested struct {
	Request Request
}

// RefineRequested starts a refinement of the current after-image.
type RefineRequested struct {
	Request Request
}

// ResetRequested discards all session data.
type ResetRequested struct{}

// GenerationSucceeded completes the in-flight generation.
type GenerationSucceeded struct {
	Epoch  int
	Result GenerationResult
}

// RefinementSucceeded completes the in-flight refinement.
type RefinementSucceeded struct {
	Epoch  int
	Result RefinementResult
}

// StepFailed ends the in-flight call without touching the result or report.
type StepFailed struct {
	Epoch int
	Err   error
}

func (ImageCaptured) isEvent()       {}
func (GenerateRequested) isEvent()   {}
func (RefineRequested) isEvent()     {}
func (ResetRequested) isEvent()      {}
func (GenerationSucceeded) isEvent() {}
func (RefinementSucceeded) isEvent() {}
func (StepFailed) isEvent()          {}

// Reduce returns the state that follows evt. The input session is not modified;
// on error the returned session equals the input.
func Reduce(s Session, evt Event) (Session, error) {
	next := s
	next.Materials = append([]MaterialSuggestion(nil), s.Materials...)

	switch e := evt.(type) {
	case ResetRequested:
		next.reset()

	case ImageCaptured:
		if s.State.Busy() {
			return s, ErrBusy
		}
		if s.State == StateResult {
			return s, fmt.Errorf("%w: start a new project before replacing the photo", ErrInvalidTransition)
		}
		if e.Image.Empty() {
			return s, fmt.Errorf("%w: captured image is empty", ErrInvalidTransition)
		}
		next.applyCapture(e.Image, e.Source)

	case GenerateRequested:
		if s.State.Busy() {
			return s, ErrBusy
		}
		if s.State != StateReady && s.State != StateResult {
			return s, fmt.Errorf("%w: upload a photo before generating", ErrInvalidTransition)
		}
		if e.Request.IsZero() || e.Request.IsRefinement() {
			return s, fmt.Errorf("%w: generation needs room and update categories", ErrInvalidRequest)
		}
		next.resume = s.State
		next.Pending = e.Request
		next.State = StateGenerating
		next.Epoch++
		next.LastError = ""

	case RefineRequested:
		if s.State.Busy() {
			return s, ErrBusy
		}
		if s.State != StateResult {
			return s, fmt.Errorf("%w: nothing to refine yet", ErrInvalidTransition)
		}
		if !e.Request.IsRefinement() {
			return s, fmt.Errorf("%w: refinement instruction is required", ErrInvalidRequest)
		}
		next.resume = s.State
		next.Pending = e.Request
		next.State = StateRefining
		next.Epoch++
		next.LastError = ""

	case GenerationSucceeded:
		if e.Epoch != s.Epoch {
			return s, ErrStale
		}
		if s.State != StateGenerating {
			return s, fmt.Errorf("%w: no generation in flight", ErrInvalidTransition)
		}
		if e.Result.After.Empty() {
			return s, fmt.Errorf("%w: generation result has no image", ErrInvalidTransition)
		}
		next.applyGenerationResult(s.Pending, e.Result)
		next.Pending = Request{}
		next.resume = ""

	case RefinementSucceeded:
		if e.Epoch != s.Epoch {
			return s, ErrStale
		}
		if s.State != StateRefining {
			return s, fmt.Errorf("%w: no refinement in flight", ErrInvalidTransition)
		}
		if e.Result.After.Empty() {
			return s, fmt.Errorf("%w: refinement result has no image", ErrInvalidTransition)
		}
		next.applyRefinementResult(e.Result)
		next.Pending = Request{}
		next.resume = ""

	case StepFailed:
		if e.Epoch != s.Epoch {
			return s, ErrStale
		}
		if !s.State.Busy() {
			return s, fmt.Errorf("%w: no request in flight", ErrInvalidTransition)
		}
		next.State = s.resume
		next.resume = ""
		next.Pending = Request{}
		if e.Err != nil {
			next.LastError = e.Err.Error()
		}

	default:
		return s, fmt.Errorf("%w: unknown event %T", ErrInvalidTransition, evt)
	}

	next.UpdatedAt = time.Now()
	return next, nil
}
