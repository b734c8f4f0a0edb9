package models

import "github.com/valterpcjria-cloud/doi-smart/internal/domain"

// CreatedResponse is returned by every create endpoint.
type CreatedResponse struct {
	ID string `json:"id"`
}

// CertificateRequest registers a signing certificate. ExpiryDate is YYYY-MM-DD.
type CertificateRequest struct {
	Owner      string                 `json:"owner"`
	Type       domain.CertificateType `json:"type"`
	ExpiryDate string                 `json:"expiry_date"`
}

// StatusUpdateRequest sets a record's status by hand.
type StatusUpdateRequest struct {
	Status  domain.Status `json:"status"`
	Receipt string        `json:"receipt_number,omitempty"`
	Error   string        `json:"error_message,omitempty"`
}

// ValidateRequest asks for an AI pre-check of a record that need not be stored yet.
type ValidateRequest struct {
	Entry *domain.Record `json:"entry"`
}

// TransmitRequest lists the record IDs to transmit, in order.
type TransmitRequest struct {
	IDs []string `json:"ids"`
}

// TransmitResponse is the final outcome of a transmission run.
type TransmitResponse struct {
	Order   []string                             `json:"order"`
	Results map[string]domain.TransmissionResult `json:"results"`
	Summary domain.BatchSummary                  `json:"summary"`
	Skipped map[string]string                    `json:"skipped,omitempty"`
	Records []domain.Record                      `json:"records,omitempty"`
	// Set when outcomes were determined but could not all be stored.
	PersistenceError string   `json:"persistence_error,omitempty"`
	UnsavedIDs       []string `json:"unsaved_ids,omitempty"`
}

// Event types on the NDJSON transmission stream.
const (
	EventProgress = "progress"
	EventResult   = "result"
	EventError    = "error"
)

// StreamEvent is one line of the NDJSON transmission stream.
type StreamEvent struct {
	Type    string            `json:"type"`
	Current int               `json:"current,omitempty"`
	Total   int               `json:"total,omitempty"`
	Logs    []string          `json:"logs,omitempty"`
	Result  *TransmitResponse `json:"result,omitempty"`
	Error   string            `json:"error,omitempty"`
}
