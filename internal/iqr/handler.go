package iqr

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"

	apperrors "github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/logger"
)

// Handler exposes a Controller of Sessions over HTTP.
type Handler struct {
	controller *Controller[*Session]
	newRefiner func() Refiner
	logger     *slog.Logger
}

// NewHandler serves sessions created with refiners from newRefiner.
func NewHandler(controller *Controller[*Session], newRefiner func() Refiner) *Handler {
	return &Handler{
		controller: controller,
		newRefiner: newRefiner,
		logger:     slog.Default().With("component", "iqr-handler"),
	}
}

// Register mounts the session routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/sessions", h.Create)
	mux.HandleFunc("GET /api/v1/sessions", h.List)
	mux.HandleFunc("GET /api/v1/sessions/{id}", h.Get)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", h.Delete)
	mux.HandleFunc("POST /api/v1/sessions/{id}/adjudications", h.Adjudicate)
	mux.HandleFunc("POST /api/v1/sessions/{id}/refine", h.Refine)
	mux.HandleFunc("POST /api/v1/sessions/{id}/reset", h.Reset)
}

type createRequest struct {
	ID string `json:"id,omitempty"`
}

type adjudicateRequest struct {
	Positive []string `json:"positive"`
	Negative []string `json:"negative"`
	Unmark   []string `json:"unmark"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	var refiner Refiner
	if h.newRefiner != nil {
		refiner = h.newRefiner()
	}
	id, err := h.controller.AddSession(r.Context(), NewSession(refiner), req.ID)
	if err != nil {
		h.fail(w, r, "create session", err)
		return
	}
	logger.FromContext(r.Context()).Info("session created", "session_id", id)
	h.writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ids := h.controller.SessionIDs(r.Context())
	slices.Sort(ids)
	h.writeJSON(w, http.StatusOK, map[string]any{"sessions": ids, "count": len(ids)})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.controller.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, "get session", err)
		return
	}
	h.writeJSON(w, http.StatusOK, s.State())
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.controller.RemoveSession(r.Context(), id); err != nil {
		h.fail(w, r, "remove session", err)
		return
	}
	logger.FromContext(r.Context()).Info("session removed", "session_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Adjudicate(w http.ResponseWriter, r *http.Request) {
	var req adjudicateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	s, err := h.controller.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, "adjudicate", err)
		return
	}
	if err := s.Update(req.Positive, req.Negative, req.Unmark); err != nil {
		h.fail(w, r, "adjudicate", err)
		return
	}
	h.writeJSON(w, http.StatusOK, s.State())
}

func (h *Handler) Refine(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s, err := h.controller.GetSession(r.Context(), id)
	if err != nil {
		h.fail(w, r, "refine", err)
		return
	}
	results, err := s.Refine(logger.WithSessionID(r.Context(), id))
	if err != nil {
		h.fail(w, r, "refine", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"id": id, "results": results, "count": len(results)})
}

func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	s, err := h.controller.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, "reset", err)
		return
	}
	s.Reset()
	h.writeJSON(w, http.StatusOK, s.State())
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := apperrors.HTTPStatusCode(err)
	log := logger.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error(op+" failed", "error", err)
	} else {
		log.Debug(op+" rejected", "error", err, "status", status)
	}
	msg := err.Error()
	if status >= http.StatusInternalServerError && !errors.Is(err, apperrors.ErrGeneration) {
		msg = http.StatusText(status)
	}
	h.writeError(w, status, msg)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
