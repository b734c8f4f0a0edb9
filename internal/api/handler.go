package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/valterpcjria-cloud/doi-smart/internal/domain"
	"github.com/valterpcjria-cloud/doi-smart/internal/logging"
	"github.com/valterpcjria-cloud/doi-smart/internal/service"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "doi_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "doi_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5, 15, 60},
	}, []string{"method", "endpoint"})
)

type Handler struct {
	records       service.RecordStore
	certs         service.CertificateStore
	gate          *service.ValidationGate
	transmissions *service.TransmissionService
	log           *zap.Logger
}

func NewHandler(records service.RecordStore, certs service.CertificateStore, gate *service.ValidationGate, tx *service.TransmissionService, log *zap.Logger) *Handler {
	return &Handler{
		records:       records,
		certs:         certs,
		gate:          gate,
		transmissions: tx,
		log:           logging.OrNop(log),
	}
}

// Register mounts every endpoint on r. Versioned routes live under /api/v1.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/health", h.HealthCheckHandler).Methods("GET")

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/records", h.ListRecordsHandler).Methods("GET")
	v1.HandleFunc("/records", h.CreateRecordHandler).Methods("POST")
	v1.HandleFunc("/records/import", h.ImportRecordHandler).Methods("POST")
	v1.HandleFunc("/records/{id}", h.GetRecordHandler).Methods("GET")
	v1.HandleFunc("/records/{id}", h.UpdateRecordHandler).Methods("PUT")
	v1.HandleFunc("/records/{id}", h.DeleteRecordHandler).Methods("DELETE")
	v1.HandleFunc("/records/{id}/status", h.UpdateStatusHandler).Methods("PUT")

	v1.HandleFunc("/certificates", h.ListCertificatesHandler).Methods("GET")
	v1.HandleFunc("/certificates", h.CreateCertificateHandler).Methods("POST")
	v1.HandleFunc("/certificates/{id}", h.DeleteCertificateHandler).Methods("DELETE")
	v1.HandleFunc("/certificates/{id}/activate", h.ActivateCertificateHandler).Methods("PUT")

	v1.HandleFunc("/validate", h.ValidateHandler).Methods("POST")
	v1.HandleFunc("/transmissions", h.TransmitHandler).Methods("POST")
}

func (h *Handler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func observe(method, endpoint string) *prometheus.Timer {
	return prometheus.NewTimer(httpRequestDuration.WithLabelValues(method, endpoint))
}

func count(method, endpoint string, code int) {
	httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(code)).Inc()
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrRecordNotFound), errors.Is(err, domain.ErrCertificateNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrRecordTransmitted), errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidStatus):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// fail logs server-side failures and hides their detail from the client.
func (h *Handler) fail(w http.ResponseWriter, method, endpoint string, err error) {
	code := statusFor(err)
	count(method, endpoint, code)
	if code == http.StatusInternalServerError {
		h.log.Error("request failed", zap.String("endpoint", endpoint), zap.Error(err))
		respondWithError(w, code, "Internal Server Error")
		return
	}
	respondWithError(w, code, err.Error())
}

func (h *Handler) reply(w http.ResponseWriter, method, endpoint string, code int, payload interface{}) {
	count(method, endpoint, code)
	respondWithJSON(w, code, payload)
}

func (h *Handler) reject(w http.ResponseWriter, method, endpoint string, code int, msg string) {
	count(method, endpoint, code)
	respondWithError(w, code, msg)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}
