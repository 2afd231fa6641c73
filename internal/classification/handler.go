package classification

import (
	"encoding/json"
	"log/slog"
	"net/http"

	apperrors "github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/logger"
)

// Handler serves a Store over HTTP.
type Handler struct {
	store  Store
	logger *slog.Logger
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store, logger: slog.Default().With("component", "classification-handler")}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/classifications/{type}/{uid}", h.Get)
	mux.HandleFunc("PUT /api/v1/classifications/{type}/{uid}", h.Put)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.store.Get(r.Context(), r.PathValue("type"), r.PathValue("uid"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	label, conf := c.Max()
	h.writeJSON(w, http.StatusOK, map[string]any{"labels": c, "max_label": label, "max_confidence": conf})
}

func (h *Handler) Put(w http.ResponseWriter, r *http.Request) {
	var c Classification
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if err := h.store.Set(r.Context(), r.PathValue("type"), r.PathValue("uid"), c); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("classification request failed", "error", err)
		msg = http.StatusText(status)
	}
	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}
