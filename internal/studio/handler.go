package studio

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"renovationAi/internal/media"
	"renovationAi/internal/renovation"
	"renovationAi/internal/report"
	"renovationAi/internal/storage"
	"renovationAi/internal/workflow"
)

const (
	maxImageBytes    = 15 * 1024 * 1024 // 15 MB
	heartbeatPeriod  = 25 * time.Second
	reportFilename   = "renovation-report.pdf"
	maxRequestBodyKB = 64
)

// Handler exposes the studio over HTTP.
type Handler struct {
	Service *Service
}

// GenerateRequest is the body of POST /api/sessions/{id}/generate.
type GenerateRequest struct {
	Room        string `json:"room"`
	Category    string `json:"category"`
	Update      string `json:"update,omitempty"`
	Description string `json:"description"`
}

// RefineRequest is the body of POST /api/sessions/{id}/refine.
type RefineRequest struct {
	Instruction string `json:"instruction"`
}

type errorResponse struct {
	Error string                `json:"error"`
	View  *renovation.ViewModel `json:"view,omitempty"`
}

// Mount registers the studio routes on r, which is mounted at /api.
func (h Handler) Mount(r chi.Router) {
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.CreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Delete("/", h.DeleteSession)
			r.Post("/image", h.UploadImage)
			r.Post("/generate", h.Generate)
			r.Post("/refine", h.Refine)
			r.Post("/reset", h.Reset)
			r.Get("/images/{slot}", h.Image)
			r.Get("/report.pdf", h.ReportPDF)
			r.Get("/report/preview", h.ReportPreview)
			r.Post("/report/archive", h.Archive)
		})
	})
	r.Route("/projects", func(r chi.Router) {
		r.Get("/", h.ListProjects)
		r.Get("/{id}", h.GetProject)
	})
	r.Get("/events", h.StreamEvents)
}

// CreateSession handles POST /api/sessions.
func (h Handler) CreateSession(w http.ResponseWriter, _ *http.Request) {
	view, err := h.Service.Create()
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// GetSession handles GET /api/sessions/{id}.
func (h Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.Service.View(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// DeleteSession handles DELETE /api/sessions/{id}.
func (h Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Delete(chi.URLParam(r, "id")); err != nil {
		writeError(w, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadImage handles POST /api/sessions/{id}/image.
func (h Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	data, source, err := parseImageUpload(w, r)
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", ErrInvalidImage, err), nil)
		return
	}
	view, err := h.Service.Capture(chi.URLParam(r, "id"), data, source)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Generate handles POST /api/sessions/{id}/generate.
func (h Handler) Generate(w http.ResponseWriter, r *http.Request) {
	var body GenerateRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err, nil)
		return
	}
	category := body.Category
	if category == "" {
		category = body.Update
	}
	req, err := renovation.NewGenerationRequest(body.Room, category, body.Description)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	view, err := h.Service.Generate(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, err, viewOrNil(view))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Refine handles POST /api/sessions/{id}/refine.
func (h Handler) Refine(w http.ResponseWriter, r *http.Request) {
	var body RefineRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err, nil)
		return
	}
	req, err := renovation.NewRefinementRequest(body.Instruction)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	view, err := h.Service.Refine(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, err, viewOrNil(view))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Reset handles POST /api/sessions/{id}/reset.
func (h Handler) Reset(w http.ResponseWriter, r *http.Request) {
	view, err := h.Service.Reset(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Image handles GET /api/sessions/{id}/images/{slot}.
func (h Handler) Image(w http.ResponseWriter, r *http.Request) {
	img, err := h.Service.Image(chi.URLParam(r, "id"), chi.URLParam(r, "slot"))
	if err != nil {
		writeError(w, err, nil)
		return
	}
	w.Header().Set("Content-Type", img.MIME)
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	_, _ = w.Write(img.Data)
}

// ReportPDF handles GET /api/sessions/{id}/report.pdf. Pass ?inline=1 to view in the browser.
func (h Handler) ReportPDF(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Service.Report(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, nil)
		return
	}
	disposition := "attachment"
	if inline, _ := strconv.ParseBool(r.URL.Query().Get("inline")); inline {
		disposition = "inline"
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, reportFilename))
	w.Header().Set("ETag", strconv.Quote(rep.ETag()))
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeContent(w, r, reportFilename, time.Time{}, bytes.NewReader(rep.PDF))
}

// ReportPreview handles GET /api/sessions/{id}/report/preview.
func (h Handler) ReportPreview(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Service.Report(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"uri":  report.PreviewURI(rep),
		"etag": rep.ETag(),
	})
}

// Archive handles POST /api/sessions/{id}/report/archive.
func (h Handler) Archive(w http.ResponseWriter, r *http.Request) {
	project, err := h.Service.Archive(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

// ListProjects handles GET /api/projects.
func (h Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	projects, err := h.Service.Projects(r.Context(), limit)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

// GetProject handles GET /api/projects/{id}.
func (h Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	project, err := h.Service.Project(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// StreamEvents handles GET /api/events as Server-Sent Events. ?session=<id> narrows the stream.
func (h Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	// The stream outlives the server's write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	broker := h.Service.Events()
	sub := broker.Subscribe(r.URL.Query().Get("session"))
	defer broker.Unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		slog.Warn("event stream not flushable", "error", err)
		return
	}

	heartbeat := time.NewTicker(heartbeatPeriod)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
		case evt, ok := <-sub.C:
			if !ok {
				return
			}
			if err := writeSSE(w, "state", evt); err != nil {
				slog.Warn("failed to write event", "session_id", evt.SessionID, "error", err)
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeSSE(w io.Writer, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

func parseImageUpload(w http.ResponseWriter, r *http.Request) ([]byte, renovation.CaptureSource, error) {
	const maxFormMemory = maxImageBytes + (1 << 20)
	r.Body = http.MaxBytesReader(w, r.Body, maxFormMemory)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		return nil, "", fmt.Errorf("invalid multipart payload: %w", err)
	}
	source := renovation.ParseCaptureSource(r.FormValue("source"))

	file, _, err := r.FormFile("image_file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, "", errors.New("image_file is required")
		}
		return nil, "", fmt.Errorf("could not read image: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImageBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read image: %w", err)
	}
	if len(data) > maxImageBytes {
		return nil, "", fmt.Errorf("image is too large (max %d MB)", maxImageBytes/(1024*1024))
	}
	return data, source, nil
}

func decodeBody(r *http.Request, target any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodyKB*1024))
	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("%w: invalid request body", renovation.ErrInvalidRequest)
	}
	return nil
}

func viewOrNil(view renovation.ViewModel) *renovation.ViewModel {
	if view.ID == "" {
		return nil
	}
	return &view
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error, view *renovation.ViewModel) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: userMessage(err), View: view})
}

func statusFor(err error) int {
	var endpoint *workflow.EndpointError
	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrImageNotFound), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, renovation.ErrBusy), errors.Is(err, renovation.ErrInvalidTransition),
		errors.Is(err, renovation.ErrStale), errors.Is(err, ErrNoReport):
		return http.StatusConflict
	case errors.Is(err, renovation.ErrInvalidRequest), errors.Is(err, ErrInvalidImage):
		return http.StatusBadRequest
	case workflow.IsNoImage(err):
		return http.StatusUnprocessableEntity
	case errors.As(err, &endpoint):
		return http.StatusBadGateway
	case errors.Is(err, ErrRegistryFull), errors.Is(err, media.ErrUploaderDisabled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func userMessage(err error) string {
	switch {
	case workflow.IsNoImage(err):
		return "The image service answered without an image. Try again or adjust the description."
	case errors.Is(err, renovation.ErrBusy):
		return "A request is already running for this project."
	case errors.Is(err, renovation.ErrStale):
		return "The project was reset while the request was running."
	}
	msg := err.Error()
	for _, prefix := range []string{"studio: ", "renovation: ", "workflow: "} {
		msg = strings.TrimPrefix(msg, prefix)
	}
	return msg
}
