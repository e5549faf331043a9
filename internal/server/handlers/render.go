package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"promptkit/internal/render"
	"promptkit/internal/storage"
	"promptkit/internal/tokenizer"
	"promptkit/pkg/logger"
)

// JournalFunc records a finished render.
type JournalFunc func(res render.Result, documentPath string)

// RenderResponse is a render result with its error text.
type RenderResponse struct {
	render.Result
	Error string `json:"error,omitempty"`
}

// NewRenderResponse wraps a result for the wire.
func NewRenderResponse(res render.Result) RenderResponse {
	resp := RenderResponse{Result: res}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}
	return resp
}

// RenderHandler serves one-shot renders and the render journal.
type RenderHandler struct {
	tok           tokenizer.Tokenizer
	defaults      render.Options
	charsPerToken int
	db            *storage.DB
	journal       JournalFunc
}

// NewRenderHandler creates a render handler. db may be nil, in which case
// the history endpoints report the journal as unavailable.
func NewRenderHandler(tok tokenizer.Tokenizer, defaults render.Options, charsPerToken int, db *storage.DB, journal JournalFunc) *RenderHandler {
	return &RenderHandler{
		tok:           tok,
		defaults:      defaults,
		charsPerToken: charsPerToken,
		db:            db,
		journal:       journal,
	}
}

// RegisterRoutes registers the render routes on the router.
func (h *RenderHandler) RegisterRoutes(router *mux.Router) {
	sub := router.PathPrefix("/v1").Subrouter()
	sub.HandleFunc("/render", h.HandleRender).Methods("POST")
	sub.HandleFunc("/renders", h.HandleListRenders).Methods("GET")
	sub.HandleFunc("/renders/{id}", h.HandleGetRender).Methods("GET")
}

// HandleRender renders a prompt in a fresh session.
func (h *RenderHandler) HandleRender(w http.ResponseWriter, r *http.Request) {
	var req RenderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		SendError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}

	session, err := render.NewSession(h.tok)
	if err != nil {
		SendError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	events, opts := req.Prepare(h.defaults, h.charsPerToken)
	if err := session.Update(r.Context(), events...); err != nil {
		if r.Context().Err() != nil {
			SendError(w, http.StatusServiceUnavailable, ErrCodeCancelled, "request cancelled")
			return
		}
		SendError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}

	res := session.Render(r.Context(), opts)
	if h.journal != nil {
		h.journal(res, req.Path)
	}

	switch res.Status {
	case render.StatusOK:
		SendJSON(w, http.StatusOK, NewRenderResponse(res))
	case render.StatusCancelled:
		SendError(w, http.StatusServiceUnavailable, ErrCodeCancelled, "render cancelled")
	default:
		logger.Warn().Err(res.Err).Str("path", req.Path).Msg("render failed")
		SendError(w, http.StatusUnprocessableEntity, ErrCodeRenderFailed, res.Err.Error())
	}
}

// HandleListRenders returns the most recent journal entries.
func (h *RenderHandler) HandleListRenders(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		SendError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "render journal disabled")
		return
	}

	limit := storage.DefaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			SendError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	records, err := h.db.ListRenders(limit)
	if err != nil {
		SendError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	SendJSON(w, http.StatusOK, map[string]any{
		"renders": records,
	})
}

// HandleGetRender returns one journal entry.
func (h *RenderHandler) HandleGetRender(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		SendError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "render journal disabled")
		return
	}

	id := mux.Vars(r)["id"]
	rec, err := h.db.GetRender(id)
	if errors.Is(err, storage.ErrNotFound) {
		SendError(w, http.StatusNotFound, ErrCodeNotFound, "render not found: "+id)
		return
	}
	if err != nil {
		SendError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	SendJSON(w, http.StatusOK, rec)
}
