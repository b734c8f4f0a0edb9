package service

import (
	"context"

	"github.com/valterpcjria-cloud/doi-smart/internal/domain"
)

// Auditor judges a record for logical inconsistencies. Implementations may fail.
type Auditor interface {
	Judge(ctx context.Context, rec domain.Record) (domain.Verdict, error)
}

// RecordStore persists DOI records.
type RecordStore interface {
	List(ctx context.Context) ([]domain.Record, error)
	Get(ctx context.Context, id string) (*domain.Record, error)
	Create(ctx context.Context, rec domain.Record) (string, error)
	Update(ctx context.Context, id string, patch domain.RecordPatch) error
	// Delete fails with domain.ErrRecordTransmitted for TRANSMITTED records.
	Delete(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, id string, status domain.Status, receipt, errMsg string) error
}

// CertificateStore persists signing-certificate metadata.
type CertificateStore interface {
	List(ctx context.Context) ([]domain.Certificate, error)
	Create(ctx context.Context, cert domain.Certificate) (string, error)
	Delete(ctx context.Context, id string) error
	SetActive(ctx context.Context, id string) error
	// Active returns domain.ErrNoActiveCertificate when none is active.
	Active(ctx context.Context) (*domain.Certificate, error)
}

// Authenticator establishes the signing credential used for a record's transmission.
type Authenticator interface {
	Authenticate(ctx context.Context, rec domain.Record) (*domain.Certificate, error)
}

// Gateway dispatches a submission payload to the tax-authority endpoint.
type Gateway interface {
	Submit(ctx context.Context, payload []byte) error
}
