package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/valterpcjria-cloud/doi-smart/internal/models"
	"github.com/valterpcjria-cloud/doi-smart/internal/service"
)

const ndjson = "application/x-ndjson"

// ValidateHandler runs the AI pre-check on a record without transmitting it.
func (h *Handler) ValidateHandler(w http.ResponseWriter, r *http.Request) {
	timer := observe("POST", "/validate")
	defer timer.ObserveDuration()

	var req models.ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.reject(w, "POST", "/validate", http.StatusBadRequest, "Malformed JSON body")
		return
	}
	if req.Entry == nil {
		h.reject(w, "POST", "/validate", http.StatusBadRequest, "entry is required")
		return
	}
	h.reply(w, "POST", "/validate", http.StatusOK, h.gate.Validate(r.Context(), *req.Entry))
}

// TransmitHandler transmits the requested records in order. With Accept: application/x-ndjson
// it streams one progress event per record before the final result event.
func (h *Handler) TransmitHandler(w http.ResponseWriter, r *http.Request) {
	timer := observe("POST", "/transmissions")
	defer timer.ObserveDuration()

	var req models.TransmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.reject(w, "POST", "/transmissions", http.StatusBadRequest, "Malformed JSON body")
		return
	}
	if len(req.IDs) == 0 {
		h.reject(w, "POST", "/transmissions", http.StatusUnprocessableEntity, "ids must not be empty")
		return
	}

	if strings.Contains(r.Header.Get("Accept"), ndjson) {
		h.streamTransmission(w, r, req.IDs)
		return
	}

	report, err := h.transmissions.Transmit(r.Context(), req.IDs, nil)
	if report == nil {
		h.fail(w, "POST", "/transmissions", err)
		return
	}
	if err != nil {
		h.log.Warn("transmission finished but refresh failed", zap.Error(err))
	}

	code := http.StatusOK
	if report.PersistenceErr != nil {
		code = http.StatusMultiStatus
	}
	h.reply(w, "POST", "/transmissions", code, toResponse(report))
}

func (h *Handler) streamTransmission(w http.ResponseWriter, r *http.Request, ids []string) {
	w.Header().Set("Content-Type", ndjson)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	count("POST", "/transmissions", http.StatusOK)

	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	emit := func(ev models.StreamEvent) {
		if err := enc.Encode(ev); err != nil {
			h.log.Debug("stream write failed", zap.Error(err))
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	report, err := h.transmissions.Transmit(r.Context(), ids, func(current, total int, logs []string) {
		emit(models.StreamEvent{Type: models.EventProgress, Current: current, Total: total, Logs: logs})
	})
	if report == nil {
		h.log.Error("transmission failed", zap.Error(err))
		emit(models.StreamEvent{Type: models.EventError, Error: "Internal Server Error"})
		return
	}
	if err != nil {
		h.log.Warn("transmission finished but refresh failed", zap.Error(err))
	}
	resp := toResponse(report)
	emit(models.StreamEvent{Type: models.EventResult, Result: &resp})
}

func toResponse(report *service.TransmissionReport) models.TransmitResponse {
	resp := models.TransmitResponse{
		Order:   report.Batch.Order,
		Results: report.Batch.Results,
		Summary: report.Summary,
		Skipped: report.Skipped,
		Records: report.Records,
	}
	if report.PersistenceErr != nil {
		resp.PersistenceError = report.PersistenceErr.Error()
		resp.UnsavedIDs = report.PersistenceErr.IDs
	}
	return resp
}
