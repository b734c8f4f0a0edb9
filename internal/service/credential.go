package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/valterpcjria-cloud/doi-smart/internal/domain"
)

// CertificateAuthenticator authenticates every record with the active certificate.
type CertificateAuthenticator struct {
	certs CertificateStore
	now   func() time.Time
}

func NewCertificateAuthenticator(certs CertificateStore) *CertificateAuthenticator {
	return &CertificateAuthenticator{certs: certs, now: time.Now}
}

// Authenticate fails with domain.ErrCredential when no usable certificate is active.
func (a *CertificateAuthenticator) Authenticate(ctx context.Context, rec domain.Record) (*domain.Certificate, error) {
	cert, err := a.certs.Active(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNoActiveCertificate) {
			return nil, fmt.Errorf("%w: mTLS authentication failed: token not found", domain.ErrCredential)
		}
		return nil, fmt.Errorf("%w: certificate lookup failed: %v", domain.ErrTransport, err)
	}
	if !cert.ExpiryDate.After(a.now()) {
		return nil, fmt.Errorf("%w: mTLS authentication failed: certificate %s (%s): %w on %s",
			domain.ErrCredential, cert.ID, cert.Owner, domain.ErrCertificateExpired, cert.ExpiryDate.Format("2006-01-02"))
	}
	return cert, nil
}
