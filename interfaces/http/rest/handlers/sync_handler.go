package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"healthsync/application/services"
)

// SyncHandler exposes the engine's sync operations over HTTP
type SyncHandler struct {
	engine *services.Engine
	logger *zap.Logger
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(engine *services.Engine, logger *zap.Logger) *SyncHandler {
	return &SyncHandler{engine: engine, logger: logger}
}

// Status handles GET /sync/status
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.SyncStatus(r.Context()))
}

// Drain handles POST /sync/drain
func (h *SyncHandler) Drain(w http.ResponseWriter, r *http.Request) {
	result, err := h.engine.DrainQueue(r.Context())
	if err != nil {
		h.logger.Error("drain failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Download handles POST /sync/download. The optional sinceHours query
// parameter bounds the fetch window; default is 24 hours.
func (h *SyncHandler) Download(w http.ResponseWriter, r *http.Request) {
	hours := 24
	if raw := r.URL.Query().Get("sinceHours"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeErrorMessage(w, http.StatusBadRequest, "sinceHours must be a positive integer")
			return
		}
		hours = parsed
	}

	result, err := h.engine.DownloadRemote(r.Context(), time.Now().UTC().Add(-time.Duration(hours)*time.Hour))
	if err != nil {
		h.logger.Error("download failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Collect handles POST /collect with an optional JSON window body
func (h *SyncHandler) Collect(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Start time.Time `json:"start"`
		End   time.Time `json:"end"`
	}
	if r.Body != nil && r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeErrorMessage(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}
	if body.End.IsZero() {
		body.End = time.Now().UTC()
	}
	if body.Start.IsZero() {
		body.Start = body.End.Add(-time.Hour)
	}
	if !body.Start.Before(body.End) {
		writeErrorMessage(w, http.StatusBadRequest, "start must be before end")
		return
	}

	result, err := h.engine.CollectAndPersist(r.Context(), body.Start, body.End)
	if err != nil {
		h.logger.Error("collection failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Cleanup handles POST /cleanup, bypassing the interval gate
func (h *SyncHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	report, err := h.engine.ForceCleanup(r.Context())
	if err != nil {
		h.logger.Error("cleanup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeErrorMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
