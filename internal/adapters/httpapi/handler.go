// Package httpapi exposes the triage service over HTTP: the anomaly query,
// manual case overrides, health, metrics and the bundled dashboard files.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"tendertriage/internal/core"
	"tendertriage/pkg/domain"
)

// TriageService is the slice of core.Service the handlers use.
type TriageService interface {
	Query(ctx context.Context) (core.QueryResult, error)
	SetStatus(ctx context.Context, id string, status domain.Status) (domain.Record, error)
}

// Handler serves the JSON API.
type Handler struct {
	Service TriageService
	Logger  *zap.Logger
}

type statusRequest struct {
	Status *string `json:"status"`
}

type statusResponse struct {
	Success   bool          `json:"success"`
	TenderID  string        `json:"tender_id"`
	NewStatus domain.Status `json:"new_status"`
}

func (h *Handler) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

func (h *Handler) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	result, err := h.Service.Query(r.Context())
	if err != nil {
		h.logger().Error("anomaly query failed", zap.Error(err))
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleUpdateCase(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	var req statusRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if req.Status == nil {
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}
	status, err := domain.ParseStatus(*req.Status)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	rec, err := h.Service.SetStatus(r.Context(), id, status)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Success: true, TenderID: rec.ID, NewStatus: rec.Status})
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeDomainError(w http.ResponseWriter, err error) {
	var notFound domain.ErrNotFound
	var invalid domain.ErrInvalidInput
	switch {
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &invalid):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
