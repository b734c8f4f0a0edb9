package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/valterpcjria-cloud/doi-smart/internal/domain"
	"github.com/valterpcjria-cloud/doi-smart/internal/models"
)

func (h *Handler) ListRecordsHandler(w http.ResponseWriter, r *http.Request) {
	timer := observe("GET", "/records")
	defer timer.ObserveDuration()

	records, err := h.records.List(r.Context())
	if err != nil {
		h.fail(w, "GET", "/records", err)
		return
	}
	h.reply(w, "GET", "/records", http.StatusOK, records)
}

func (h *Handler) GetRecordHandler(w http.ResponseWriter, r *http.Request) {
	timer := observe("GET", "/records/{id}")
	defer timer.ObserveDuration()

	rec, err := h.records.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, "GET", "/records/{id}", err)
		return
	}
	h.reply(w, "GET", "/records/{id}", http.StatusOK, rec)
}

func (h *Handler) CreateRecordHandler(w http.ResponseWriter, r *http.Request) {
	timer := observe("POST", "/records")
	defer timer.ObserveDuration()

	var rec domain.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		h.reject(w, "POST", "/records", http.StatusBadRequest, "Malformed JSON body")
		return
	}
	if msg := checkRecord(rec); msg != "" {
		h.reject(w, "POST", "/records", http.StatusUnprocessableEntity, msg)
		return
	}

	id, err := h.records.Create(r.Context(), rec)
	if err != nil {
		h.fail(w, "POST", "/records", err)
		return
	}
	w.Header().Set("Location", "/api/v1/records/"+id)
	h.reply(w, "POST", "/records", http.StatusCreated, models.CreatedResponse{ID: id})
}

// ImportRecordHandler stores a READY record built from a document-extraction result.
func (h *Handler) ImportRecordHandler(w http.ResponseWriter, r *http.Request) {
	timer := observe("POST", "/records/import")
	defer timer.ObserveDuration()

	var res domain.ExtractionResult
	if err := json.NewDecoder(r.Body).Decode(&res); err != nil {
		h.reject(w, "POST", "/records/import", http.StatusBadRequest, "Malformed JSON body")
		return
	}
	rec := domain.NewRecordFromExtraction(res, time.Now())
	if msg := checkRecord(rec); msg != "" {
		h.reject(w, "POST", "/records/import", http.StatusUnprocessableEntity, msg)
		return
	}

	id, err := h.records.Create(r.Context(), rec)
	if err != nil {
		h.fail(w, "POST", "/records/import", err)
		return
	}
	w.Header().Set("Location", "/api/v1/records/"+id)
	h.reply(w, "POST", "/records/import", http.StatusCreated, models.CreatedResponse{ID: id})
}

func (h *Handler) UpdateRecordHandler(w http.ResponseWriter, r *http.Request) {
	timer := observe("PUT", "/records/{id}")
	defer timer.ObserveDuration()

	var patch domain.RecordPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		h.reject(w, "PUT", "/records/{id}", http.StatusBadRequest, "Malformed JSON body")
		return
	}
	if patch.Parties != nil {
		if msg := checkParties(*patch.Parties); msg != "" {
			h.reject(w, "PUT", "/records/{id}", http.StatusUnprocessableEntity, msg)
			return
		}
	}

	id := mux.Vars(r)["id"]
	if err := h.records.Update(r.Context(), id, patch); err != nil {
		h.fail(w, "PUT", "/records/{id}", err)
		return
	}
	rec, err := h.records.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "PUT", "/records/{id}", err)
		return
	}
	h.reply(w, "PUT", "/records/{id}", http.StatusOK, rec)
}

func (h *Handler) DeleteRecordHandler(w http.ResponseWriter, r *http.Request) {
	timer := observe("DELETE", "/records/{id}")
	defer timer.ObserveDuration()

	if err := h.records.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.fail(w, "DELETE", "/records/{id}", err)
		return
	}
	count("DELETE", "/records/{id}", http.StatusNoContent)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) UpdateStatusHandler(w http.ResponseWriter, r *http.Request) {
	timer := observe("PUT", "/records/{id}/status")
	defer timer.ObserveDuration()

	var req models.StatusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.reject(w, "PUT", "/records/{id}/status", http.StatusBadRequest, "Malformed JSON body")
		return
	}

	id := mux.Vars(r)["id"]
	if err := h.records.UpdateStatus(r.Context(), id, req.Status, req.Receipt, req.Error); err != nil {
		h.fail(w, "PUT", "/records/{id}/status", err)
		return
	}
	rec, err := h.records.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "PUT", "/records/{id}/status", err)
		return
	}
	h.reply(w, "PUT", "/records/{id}/status", http.StatusOK, rec)
}

// checkRecord returns a client-facing message for structurally unusable records.
func checkRecord(rec domain.Record) string {
	if strings.TrimSpace(rec.PropertyAddress) == "" {
		return "property_address is required"
	}
	if rec.Value.IsNegative() {
		return "value cannot be negative"
	}
	return checkParties(rec.Parties)
}

func checkParties(parties []domain.Party) string {
	for _, p := range parties {
		if p.Role != domain.RoleSeller && p.Role != domain.RoleBuyer {
			return "party role must be SELLER or BUYER"
		}
		if strings.TrimSpace(p.Name) == "" {
			return "party name is required"
		}
	}
	return ""
}
