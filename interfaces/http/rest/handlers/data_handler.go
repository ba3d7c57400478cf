package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"healthsync/application/services"
	"healthsync/domain/health"
)

// DataHandler exposes read access to the offline buffer
type DataHandler struct {
	buffer *services.Buffer
	logger *zap.Logger
}

// NewDataHandler creates a new data handler
func NewDataHandler(buffer *services.Buffer, logger *zap.Logger) *DataHandler {
	return &DataHandler{buffer: buffer, logger: logger}
}

// Points handles GET /points. Filter either by metric or by a start/end
// window in RFC 3339.
func (h *DataHandler) Points(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if metric := query.Get("metric"); metric != "" {
		points := h.buffer.PointsForMetric(r.Context(), health.Metric(metric))
		writeJSON(w, http.StatusOK, points)
		return
	}

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -1)
	if raw := query.Get("start"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeErrorMessage(w, http.StatusBadRequest, "start must be RFC 3339")
			return
		}
		start = parsed
	}
	if raw := query.Get("end"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeErrorMessage(w, http.StatusBadRequest, "end must be RFC 3339")
			return
		}
		end = parsed
	}

	points := h.buffer.PointsInRange(r.Context(), start, end)
	writeJSON(w, http.StatusOK, points)
}

// Footprint handles GET /footprint
func (h *DataHandler) Footprint(w http.ResponseWriter, r *http.Request) {
	fp, err := h.buffer.Footprint(r.Context())
	if err != nil {
		h.logger.Error("footprint read failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, fp)
}
