package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidationRejected  = errors.New("validation rejected")
	ErrCredential          = errors.New("signing credential rejected")
	ErrTransport           = errors.New("transport failure")
	ErrPersistence         = errors.New("persistence failure")
	ErrRecordNotFound      = errors.New("record not found")
	ErrRecordTransmitted   = errors.New("record already transmitted")
	ErrInvalidStatus       = errors.New("invalid status change")
	ErrCertificateNotFound = errors.New("certificate not found")
	ErrNoActiveCertificate = errors.New("no active certificate")
	ErrCertificateExpired  = errors.New("certificate expired")
	ErrConflict            = errors.New("conflicting write")
)

// ValidateStatusChange enforces the receipt/error invariants of a status update.
func ValidateStatusChange(status Status, receipt, errMsg string) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidStatus, status)
	}
	switch status {
	case StatusTransmitted:
		if receipt == "" {
			return fmt.Errorf("%w: TRANSMITTED requires a receipt", ErrInvalidStatus)
		}
		if errMsg != "" {
			return fmt.Errorf("%w: TRANSMITTED cannot carry an error", ErrInvalidStatus)
		}
	case StatusError:
		if errMsg == "" {
			return fmt.Errorf("%w: ERROR requires an error message", ErrInvalidStatus)
		}
	}
	return nil
}
