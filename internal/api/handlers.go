package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/starford/chatnotes/internal/apperr"
	"github.com/starford/chatnotes/internal/index"
	"github.com/starford/chatnotes/internal/noteservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *noteservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) readRequest(w http.ResponseWriter, r *http.Request) (ConversationRequest, bool) {
	var req ConversationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return req, false
	}
	return req, true
}

// Analyze handles POST /api/conversation/analyze.
//
//	@Summary		Summarize a conversation without saving it
//	@Tags			conversation
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ConversationRequest	true	"Conversation"
//	@Success		200		{object}	AnalyzeResponse
//	@Failure		400		{object}	errResponse
//	@Router			/conversation/analyze [post]
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	req, ok := h.readRequest(w, r)
	if !ok {
		return
	}
	a := h.svc.Analyze(r.Context(), req.toService())
	writeJSON(w, http.StatusOK, AnalyzeResponse{Meta: a.Meta, Markdown: a.Markdown})
}

// SaveAndAnalyze handles POST /api/conversation/save+analyze.
//
//	@Summary		Summarize a conversation and save it as a vault note
//	@Tags			conversation
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ConversationRequest	true	"Conversation"
//	@Success		200		{object}	SaveResponse
//	@Failure		400		{object}	errResponse
//	@Failure		500		{object}	SaveResponse
//	@Router			/conversation/save+analyze [post]
func (h *Handler) SaveAndAnalyze(w http.ResponseWriter, r *http.Request) {
	req, ok := h.readRequest(w, r)
	if !ok {
		return
	}
	res, err := h.svc.SaveAndAnalyze(r.Context(), req.toService())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, SaveResponse{
			Status:   statusError,
			Error:    saveErrorMessage(err),
			Meta:     res.Meta,
			Markdown: res.Markdown,
		})
		return
	}
	writeJSON(w, http.StatusOK, SaveResponse{
		Status:   statusSuccess,
		File:     res.File,
		Meta:     res.Meta,
		Markdown: res.Markdown,
	})
}

// SaveRaw handles POST /api/conversation/save.
//
//	@Summary		Save the raw conversation transcript as a vault note
//	@Tags			conversation
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ConversationRequest	true	"Conversation"
//	@Success		200		{object}	RawSaveResponse
//	@Failure		400		{object}	errResponse
//	@Failure		500		{object}	RawSaveResponse
//	@Router			/conversation/save [post]
func (h *Handler) SaveRaw(w http.ResponseWriter, r *http.Request) {
	req, ok := h.readRequest(w, r)
	if !ok {
		return
	}
	res, err := h.svc.SaveRaw(r.Context(), req.toService())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, RawSaveResponse{Status: statusError, Error: saveErrorMessage(err)})
		return
	}
	writeJSON(w, http.StatusOK, RawSaveResponse{Status: statusSuccess, File: res.File})
}

func saveErrorMessage(err error) string {
	switch {
	case errors.Is(err, apperr.ErrWriteVerification), errors.Is(err, apperr.ErrFilesystem):
		return err.Error()
	default:
		slog.Error("save failed", slog.String("error", err.Error()))
		return "internal error"
	}
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List saved notes, newest first
//	@Tags			notes
//	@Produce		json
//	@Param			project	query		string	false	"Filter by project"
//	@Param			tag		query		string	false	"Filter by tag"
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Success		200		{object}	NoteListResponse
//	@Failure		503		{object}	errResponse
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	list, err := h.svc.ListNotes(r.Context(), index.ListFilter{
		Project: q.Get("project"),
		Tag:     q.Get("tag"),
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		writeCatalogError(w, "list notes", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across saved notes
//	@Tags			notes
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if strings.TrimSpace(q) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeCatalogError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

func writeCatalogError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, apperr.ErrUnavailable) {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("note catalog is disabled"))
		return
	}
	slog.Error(op+" failed", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
}

// Health returns the GET /health handler.
//
//	@Summary		Liveness and active configuration
//	@Tags			system
//	@Produce		json
//	@Success		200	{object}	HealthResponse
//	@Router			/health [get]
func Health(vault, model string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{OK: true, Vault: vault, Model: model})
	}
}
