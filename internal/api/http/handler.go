package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Zereker/corpus/internal/action"
	"github.com/Zereker/corpus/internal/domain"
	"github.com/Zereker/corpus/pkg/log"
)

// Handler handles HTTP API requests
type Handler struct {
	logger *slog.Logger
	corpus *action.Corpus
}

// NewHandler creates a new HTTP handler
func NewHandler(corpus *action.Corpus) *Handler {
	return &Handler{
		logger: log.Logger("http.handler"),
		corpus: corpus,
	}
}

// Response represents a standard API response
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// RegisterRoutes registers all HTTP routes
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Content operations
	mux.HandleFunc("POST /api/v1/contents", h.Ingest)
	mux.HandleFunc("GET /api/v1/contents", h.List)
	mux.HandleFunc("POST /api/v1/contents/search", h.Search)
	mux.HandleFunc("GET /api/v1/contents/{id}", h.Get)
	mux.HandleFunc("PATCH /api/v1/contents/{id}", h.Update)
	mux.HandleFunc("DELETE /api/v1/contents/{id}", h.Delete)

	// Health check
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /api/v1/health", h.Health)
}

// Ingest handles POST /api/v1/contents
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req domain.IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if req.Platform == "" || req.Text == "" {
		h.writeError(w, http.StatusBadRequest, "platform and text are required")
		return
	}

	resp, err := h.corpus.Ingest(r.Context(), &req)
	if err != nil {
		h.logger.Error("ingest failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusCreated, Response{
		Success: true,
		Data:    resp,
	})
}

// Search handles POST /api/v1/contents/search
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req domain.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if req.Query == "" {
		h.writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	resp, err := h.corpus.Search(r.Context(), &req)
	if err != nil {
		h.logger.Error("search failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    resp,
	})
}

// List handles GET /api/v1/contents
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	req := domain.ListRequest{
		Platform: query.Get("platform"),
		Author:   query.Get("author"),
		Language: query.Get("language"),
		SortBy:   query.Get("sort_by"),
	}
	req.Skip, _ = strconv.Atoi(query.Get("skip"))
	req.Limit, _ = strconv.Atoi(query.Get("limit"))
	req.SortDesc, _ = strconv.ParseBool(query.Get("sort_desc"))

	resp, err := h.corpus.List(r.Context(), &req)
	if err != nil {
		h.logger.Error("list failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    resp,
	})
}

// Get handles GET /api/v1/contents/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	content, err := h.corpus.Get(r.Context(), id)
	if err != nil {
		h.logger.Error("get failed", "id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if content == nil {
		h.writeError(w, http.StatusNotFound, "content not found")
		return
	}

	h.writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    content,
	})
}

// Update handles PATCH /api/v1/contents/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req domain.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Patch) == 0 {
		h.writeError(w, http.StatusBadRequest, "patch is required")
		return
	}

	content, err := h.corpus.Update(r.Context(), id, req.Patch)
	if err != nil {
		h.logger.Error("update failed", "id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if content == nil {
		h.writeError(w, http.StatusNotFound, "content not found")
		return
	}

	h.writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    content,
	})
}

// Delete handles DELETE /api/v1/contents/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	removed, err := h.corpus.Delete(r.Context(), id)
	if err != nil {
		h.logger.Error("delete failed", "id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !removed {
		h.writeError(w, http.StatusNotFound, "content not found")
		return
	}

	h.writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    map[string]string{"deleted": id},
	})
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data: map[string]string{
			"status": "healthy",
		},
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, Response{
		Success: false,
		Error:   message,
	})
}
