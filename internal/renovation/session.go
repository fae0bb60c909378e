package renovation

import (
	"time"

	"renovationAi/internal/imaging"
)

// State is a position in the generation workflow.
type State string

const (
	StateIdle       State = "idle"
	StateReady      State = "ready"
	StateGenerating State = "generating"
	StateResult     State = "result"
	StateRefining   State = "refining"
)

// Busy reports whether a model call is in flight.
func (s State) Busy() bool {
	return s == StateGenerating || s == StateRefining
}

// View is the screen the presentation layer should show.
type View string

const (
	ViewInput  View = "input"
	ViewResult View = "result"
)

// CaptureSource identifies where the source photo came from.
type CaptureSource string

const (
	SourceUpload CaptureSource = "upload"
	SourceCamera CaptureSource = "camera"
)

// ParseCaptureSource defaults to upload for anything but "camera".
func ParseCaptureSource(raw string) CaptureSource {
	if sameLabel(string(SourceCamera), raw) {
		return SourceCamera
	}
	return SourceUpload
}

// Report is a rendered before/after document together with the values it was built from.
type Report struct {
	Summary   string
	Rationale string
	Before    imaging.Image
	After     imaging.Image
	Materials []MaterialSuggestion
	PDF       []byte
}

// ETag identifies the rendered document bytes.
func (r Report) ETag() string {
	if len(r.PDF) == 0 {
		return ""
	}
	return imaging.Fingerprint(r.PDF)[:32]
}

// Snapshot is everything the report builder needs from a session.
type Snapshot struct {
	Request   Request
	Before    imaging.Image
	After     imaging.Image
	Summary   string
	Rationale string
	Materials []MaterialSuggestion
}

// GenerationResult is the successful outcome of a generate call, report included.
type GenerationResult struct {
	After     imaging.Image
	Summary   string
	Rationale string
	Materials []MaterialSuggestion
	Report    Report
}

// RefinementResult is the successful outcome of a refine call, report included.
type RefinementResult struct {
	After  imaging.Image
	Report Report
}

// Session holds one user's work. Only Reduce changes it.
type Session struct {
	ID        string
	State     State
	Source    CaptureSource
	Original  imaging.Image
	Latest    imaging.Image
	Request   Request
	Pending   Request
	Summary   string
	Rationale string
	Materials []MaterialSuggestion
	Report    *Report
	Refines   int
	LastError string
	Epoch     int
	UpdatedAt time.Time

	resume State
}

// NewSession returns an idle session.
func NewSession(id string) Session {
	return Session{ID: id, State: StateIdle, UpdatedAt: time.Now()}
}

// View maps the workflow state to the screen to show.
func (s Session) View() View {
	switch s.State {
	case StateResult, StateRefining:
		return ViewResult
	case StateGenerating:
		if s.resume == StateResult {
			return ViewResult
		}
	}
	return ViewInput
}

// HasResult reports whether an after-image is current.
func (s Session) HasResult() bool {
	return !s.Latest.Empty() && s.Report != nil
}

// Snapshot captures the report inputs for the current result.
func (s Session) Snapshot() Snapshot {
	return Snapshot{
		Request:   s.Request,
		Before:    s.Original,
		After:     s.Latest,
		Summary:   s.Summary,
		Rationale: s.Rationale,
		Materials: append([]MaterialSuggestion(nil), s.Materials...),
	}
}

func (s *Session) applyCapture(img imaging.Image, source CaptureSource) {
	s.Original = img
	s.Latest = img
	s.Source = source
	s.State = StateReady
	s.LastError = ""
}

func (s *Session) applyGenerationResult(req Request, res GenerationResult) {
	report := res.Report
	s.Request = req
	s.Latest = res.After
	s.Summary = res.Summary
	s.Rationale = res.Rationale
	s.Materials = append([]MaterialSuggestion(nil), res.Materials...)
	s.Report = &report
	s.Refines = 0
	s.State = StateResult
	s.LastError = ""
}

func (s *Session) applyRefinementResult(res RefinementResult) {
	report := res.Report
	s.Latest = res.After
	s.Report = &report
	s.Refines++
	s.State = StateResult
	s.LastError = ""
}

func (s *Session) reset() {
	*s = Session{ID: s.ID, State: StateIdle, Epoch: s.Epoch + 1}
}
