package server

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/conneroisu/widgetsync/internal/errors"
	"github.com/conneroisu/widgetsync/internal/store"
	"github.com/conneroisu/widgetsync/internal/widget"
)

const (
	maxBodyBytes   int64 = 1 << 20
	maxUploadBytes int64 = 32 << 20
)

// widgetSummary is one entry of GET /api/widgets.
type widgetSummary struct {
	ID      string      `json:"id"`
	Kind    widget.Kind `json:"kind"`
	Caption string      `json:"caption,omitempty"`
	Value   any         `json:"value"`
}

// widgetDetail is the body of GET /api/widgets/{id}.
type widgetDetail struct {
	widgetSummary
	State    any      `json:"state"`
	Suffixes []string `json:"suffixes"`
	Emits    []string `json:"emits"`
}

// changeRequest is the body of POST /api/widgets/{id}. An empty Event
// means the widget's primary interaction.
type changeRequest struct {
	Value any    `json:"value"`
	Event string `json:"event,omitempty"`
}

func summarize(w widget.Widget) widgetSummary {
	return widgetSummary{ID: w.ID(), Kind: w.Kind(), Caption: w.Caption(), Value: w.Value()}
}

func detail(w widget.Widget) widgetDetail {
	return widgetDetail{
		widgetSummary: summarize(w),
		State:         w.State(),
		Suffixes:      w.Suffixes(),
		Emits:         w.Emits(),
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.page.Render().Render(r.Context(), w); err != nil {
		s.logger.Error(r.Context(), err, "Rendering dashboard failed")
		return
	}
	if err := s.page.Loaded(r.Context()); err != nil {
		s.logger.Debug(r.Context(), "Load event not delivered", "error", err.Error())
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"widgets": len(s.page.Widgets()),
		"clients": s.hub.Clients(),
	})
}

func (s *Server) handleWidgetFragment(w http.ResponseWriter, r *http.Request) {
	wd, ok := s.page.Widget(chi.URLParam(r, "id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := wd.Render().Render(r.Context(), w); err != nil {
		s.logger.Error(r.Context(), err, "Rendering widget failed", "widget", wd.ID())
	}
}

func (s *Server) handleListWidgets(w http.ResponseWriter, r *http.Request) {
	widgets := s.page.Widgets()
	out := make([]widgetSummary, 0, len(widgets))
	for _, wd := range widgets {
		out = append(out, summarize(wd))
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetWidget(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	wd, ok := s.page.Widget(id)
	if !ok {
		respondError(w, http.StatusNotFound, fmt.Errorf("no widget %q", id))
		return
	}
	respondJSON(w, http.StatusOK, detail(wd))
}

func (s *Server) handleChangeWidget(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	wd, ok := s.page.Widget(id)
	if !ok {
		respondError(w, http.StatusNotFound, fmt.Errorf("no widget %q", id))
		return
	}

	var req changeRequest
	if status, err := decodeJSONBody(w, r, &req, maxBodyBytes); err != nil {
		respondError(w, status, err)
		return
	}

	req.Value = store.Normalize(req.Value)

	var err error
	if req.Event == "" {
		err = s.page.LocalChange(r.Context(), id, req.Value)
	} else {
		err = s.page.Interact(r.Context(), id, req.Event, req.Value)
	}
	if err != nil {
		s.errs.Handle(r.Context(), err)
		respondError(w, statusFor(err), err)
		return
	}

	respondJSON(w, http.StatusOK, detail(wd))
}

// handleUpload accepts a multipart form whose "file" parts become the
// widget's "#upload" event.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	wd, ok := s.page.Widget(id)
	if !ok {
		respondError(w, http.StatusNotFound, fmt.Errorf("no widget %q", id))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(w, http.StatusRequestEntityTooLarge, fmt.Errorf("upload too large (max %d bytes)", maxUploadBytes))
			return
		}
		respondError(w, http.StatusBadRequest, err)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["file"]
	files := make([]widget.File, 0, len(headers))
	for _, fh := range headers {
		data, err := readPart(fh)
		if err != nil {
			respondError(w, http.StatusBadRequest, err)
			return
		}
		files = append(files, widget.File{Name: fh.Filename, Data: data})
	}

	if err := s.page.LocalChange(r.Context(), id, files); err != nil {
		s.errs.Handle(r.Context(), err)
		respondError(w, statusFor(err), err)
		return
	}
	respondJSON(w, http.StatusOK, detail(wd))
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(f)
}

func (s *Server) handleRoutes(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.page.Routes())
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.page.Messages())
}

// statusFor maps a sync error to an HTTP status.
func statusFor(err error) int {
	var se *errors.SyncError
	if !errors.As(err, &se) {
		return http.StatusInternalServerError
	}
	switch {
	case se.Code == errors.ErrCodeWidgetNotFound:
		return http.StatusNotFound
	case se.Code == errors.ErrCodeReadOnly:
		return http.StatusConflict
	case se.Type == errors.ErrorTypeValidation, se.Type == errors.ErrorTypeCodec:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any, maxBytes int64) (int, error) {
	if r.Body == nil {
		return http.StatusBadRequest, fmt.Errorf("request body required")
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return http.StatusBadRequest, fmt.Errorf("request body required")
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return http.StatusRequestEntityTooLarge, fmt.Errorf("request body too large (max %d bytes)", maxBytes)
		}
		return http.StatusBadRequest, err
	}
	return 0, nil
}
