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

func (h *Handler) ListCertificatesHandler(w http.ResponseWriter, r *http.Request) {
	timer := observe("GET", "/certificates")
	defer timer.ObserveDuration()

	certs, err := h.certs.List(r.Context())
	if err != nil {
		h.fail(w, "GET", "/certificates", err)
		return
	}
	h.reply(w, "GET", "/certificates", http.StatusOK, certs)
}

func (h *Handler) CreateCertificateHandler(w http.ResponseWriter, r *http.Request) {
	timer := observe("POST", "/certificates")
	defer timer.ObserveDuration()

	var req models.CertificateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.reject(w, "POST", "/certificates", http.StatusBadRequest, "Malformed JSON body")
		return
	}
	if strings.TrimSpace(req.Owner) == "" {
		h.reject(w, "POST", "/certificates", http.StatusUnprocessableEntity, "owner is required")
		return
	}
	if req.Type != domain.CertificateA1 && req.Type != domain.CertificateA3 {
		h.reject(w, "POST", "/certificates", http.StatusUnprocessableEntity, "type must be A1 or A3")
		return
	}
	expiry, err := parseDate(req.ExpiryDate)
	if err != nil {
		h.reject(w, "POST", "/certificates", http.StatusUnprocessableEntity, "expiry_date must be YYYY-MM-DD")
		return
	}
	cert := domain.Certificate{Owner: req.Owner, Type: req.Type, ExpiryDate: expiry}

	id, err := h.certs.Create(r.Context(), cert)
	if err != nil {
		h.fail(w, "POST", "/certificates", err)
		return
	}
	h.reply(w, "POST", "/certificates", http.StatusCreated, models.CreatedResponse{ID: id})
}

func (h *Handler) DeleteCertificateHandler(w http.ResponseWriter, r *http.Request) {
	timer := observe("DELETE", "/certificates/{id}")
	defer timer.ObserveDuration()

	if err := h.certs.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.fail(w, "DELETE", "/certificates/{id}", err)
		return
	}
	count("DELETE", "/certificates/{id}", http.StatusNoContent)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ActivateCertificateHandler(w http.ResponseWriter, r *http.Request) {
	timer := observe("PUT", "/certificates/{id}/activate")
	defer timer.ObserveDuration()

	if err := h.certs.SetActive(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.fail(w, "PUT", "/certificates/{id}/activate", err)
		return
	}
	cert, err := h.certs.Active(r.Context())
	if err != nil {
		h.fail(w, "PUT", "/certificates/{id}/activate", err)
		return
	}
	h.reply(w, "PUT", "/certificates/{id}/activate", http.StatusOK, cert)
}

// parseDate accepts a calendar date or a full RFC 3339 timestamp.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
