package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nikhilbhutani/docrag/internal/document"
	"github.com/nikhilbhutani/docrag/internal/models"
	"github.com/nikhilbhutani/docrag/internal/rag"
	"github.com/nikhilbhutani/docrag/internal/session"
)

type SessionHandler struct {
	sessions  *session.Registry
	pipeline  *rag.Pipeline
	extractor document.TextExtractor
	maxUpload int64
}

func NewSessionHandler(sessions *session.Registry, p *rag.Pipeline, ex document.TextExtractor, maxUpload int64) *SessionHandler {
	if maxUpload <= 0 {
		maxUpload = 32 << 20
	}
	return &SessionHandler{sessions: sessions, pipeline: p, extractor: ex, maxUpload: maxUpload}
}

type documentRequest struct {
	Name  string        `json:"name"`
	Pages []models.Page `json:"pages"`
}

type QueryRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

// Create opens a session and indexes the uploaded document into it. A session
// whose first build fails is discarded.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, err := h.readDocument(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	sess, err := h.sessions.Create(req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if _, err := h.pipeline.Index(r.Context(), sess, req.Name, req.Pages); err != nil {
		h.sessions.Delete(sess.ID)
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, h.pipeline.Stats(sess))
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	list := h.sessions.List()
	stats := make([]rag.SessionStats, len(list))
	for i, s := range list {
		stats[i] = h.pipeline.Stats(s)
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": stats, "count": len(stats)})
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.pipeline.Stats(sess))
}

// ReplaceDocument rebuilds the session's index from a new document. On
// failure the previous document and its name stay in place.
func (h *SessionHandler) ReplaceDocument(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	req, err := h.readDocument(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if _, err := h.pipeline.Index(r.Context(), sess, req.Name, req.Pages); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, h.pipeline.Stats(sess))
}

func (h *SessionHandler) Query(w http.ResponseWriter, r *http.Request) {
	sess, req, err := h.queryRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp, err := h.pipeline.Ask(r.Context(), sess, req.Query, req.TopK)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *SessionHandler) Search(w http.ResponseWriter, r *http.Request) {
	sess, req, err := h.queryRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	results, err := h.pipeline.Search(r.Context(), sess, req.Query, req.TopK)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": results, "count": len(results)})
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.sessions.Delete(id); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *SessionHandler) session(r *http.Request) (*rag.Session, error) {
	id, err := sessionID(r)
	if err != nil {
		return nil, err
	}
	return h.sessions.Get(id)
}

func (h *SessionHandler) queryRequest(r *http.Request) (*rag.Session, QueryRequest, error) {
	var req QueryRequest
	sess, err := h.session(r)
	if err != nil {
		return nil, req, err
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, req, badRequest("invalid request body", err)
	}
	return sess, req, nil
}

// readDocument accepts either a multipart upload in the "file" field or a
// JSON body of pre-extracted pages.
func (h *SessionHandler) readDocument(w http.ResponseWriter, r *http.Request) (documentRequest, error) {
	var req documentRequest
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, wrapBodyError("invalid request body", err)
		}
		return req, nil
	}

	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		return req, wrapBodyError("invalid multipart form", err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return req, badRequest("file required", nil)
	}
	defer file.Close()

	req.Name = r.FormValue("name")
	if req.Name == "" {
		req.Name = header.Filename
	}

	contentType := header.Header.Get("Content-Type")
	if ft := document.FileType(header.Filename, contentType); !document.Supports(h.extractor, ft) {
		return req, &requestError{
			status: http.StatusUnsupportedMediaType,
			msg:    fmt.Sprintf("unsupported file type %q, want one of %s", ft, strings.Join(h.extractor.SupportedTypes(), ", ")),
		}
	}

	req.Pages, err = document.ExtractFile(r.Context(), h.extractor, file, header.Filename, contentType)
	if err != nil {
		return req, &requestError{status: http.StatusUnsupportedMediaType, msg: "extract document", err: err}
	}
	return req, nil
}

func wrapBodyError(msg string, err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return err
	}
	return badRequest(msg, err)
}

func sessionID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, badRequest("invalid session ID", nil)
	}
	return id, nil
}
