package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/valterpcjria-cloud/doi-smart/internal/domain"
)

// MemoryStore keeps records and certificates in process memory.
// It enforces the same invariants as the postgres store.
type MemoryStore struct {
	mu       sync.RWMutex
	records  map[string]domain.Record
	receipts map[string]string // receipt -> record id
	created  map[string]uint64 // record id -> insertion order
	inserted uint64
	certs    map[string]domain.Certificate
	seq      map[int]int // year -> last sequence
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:  make(map[string]domain.Record),
		receipts: make(map[string]string),
		created:  make(map[string]uint64),
		certs:    make(map[string]domain.Certificate),
		seq:      make(map[int]int),
		now:      time.Now,
	}
}

// List returns records newest first.
func (m *MemoryStore) List(ctx context.Context) ([]domain.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Record, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, cloneRecord(r))
	}
	sort.Slice(out, func(i, j int) bool { return m.created[out[i].ID] > m.created[out[j].ID] })
	return out, nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*domain.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.records[id]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	r = cloneRecord(r)
	return &r, nil
}

// Create assigns a DOI-YYYY-NNN identifier. New records start READY unless DRAFT is requested.
func (m *MemoryStore) Create(ctx context.Context, rec domain.Record) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.seq[now.Year()]++
	rec.ID = RecordCode(now.Year(), m.seq[now.Year()])
	if rec.Status != domain.StatusDraft {
		rec.Status = domain.StatusReady
	}
	rec.ReceiptNumber = ""
	rec.ErrorMessage = ""
	rec.LastUpdate = now
	m.inserted++
	m.created[rec.ID] = m.inserted
	m.records[rec.ID] = cloneRecord(rec)
	return rec.ID, nil
}

func (m *MemoryStore) Update(ctx context.Context, id string, patch domain.RecordPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[id]
	if !ok {
		return domain.ErrRecordNotFound
	}
	patch.Apply(&r)
	r.LastUpdate = m.now()
	m.records[id] = r
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[id]
	if !ok {
		return domain.ErrRecordNotFound
	}
	if r.Status == domain.StatusTransmitted {
		return domain.ErrRecordTransmitted
	}
	delete(m.records, id)
	delete(m.created, id)
	if r.ReceiptNumber != "" {
		delete(m.receipts, r.ReceiptNumber)
	}
	return nil
}

// UpdateStatus keeps an existing receipt when none is given, like the postgres COALESCE.
func (m *MemoryStore) UpdateStatus(ctx context.Context, id string, status domain.Status, receipt, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[id]
	if !ok {
		return domain.ErrRecordNotFound
	}
	if receipt == "" {
		receipt = r.ReceiptNumber
	}
	if err := domain.ValidateStatusChange(status, receipt, errMsg); err != nil {
		return err
	}
	if receipt != "" && receipt != r.ReceiptNumber {
		if owner, taken := m.receipts[receipt]; taken && owner != id {
			return fmt.Errorf("%w: receipt %s already issued", domain.ErrConflict, receipt)
		}
		if r.ReceiptNumber != "" {
			delete(m.receipts, r.ReceiptNumber)
		}
		m.receipts[receipt] = id
	}

	r.Status = status
	r.ReceiptNumber = receipt
	r.ErrorMessage = errMsg
	r.LastUpdate = m.now()
	m.records[id] = r
	return nil
}

// ListCertificates returns the active certificate first, then by expiry.
func (m *MemoryStore) ListCertificates(ctx context.Context) ([]domain.Certificate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now()
	out := make([]domain.Certificate, 0, len(m.certs))
	for _, c := range m.certs {
		c.Status = domain.CertificateStatusAt(c.ExpiryDate, now)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsActive != out[j].IsActive {
			return out[i].IsActive
		}
		return out[i].ExpiryDate.Before(out[j].ExpiryDate)
	})
	return out, nil
}

// CreateCertificate derives the status from the expiry date; the first certificate becomes active.
func (m *MemoryStore) CreateCertificate(ctx context.Context, cert domain.Certificate) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cert.ID = uuid.NewString()
	cert.Status = domain.CertificateStatusAt(cert.ExpiryDate, m.now())
	cert.IsActive = len(m.certs) == 0
	m.certs[cert.ID] = cert
	return cert.ID, nil
}

func (m *MemoryStore) DeleteCertificate(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.certs[id]; !ok {
		return domain.ErrCertificateNotFound
	}
	delete(m.certs, id)
	return nil
}

func (m *MemoryStore) SetActiveCertificate(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.certs[id]; !ok {
		return domain.ErrCertificateNotFound
	}
	for k, c := range m.certs {
		c.IsActive = k == id
		m.certs[k] = c
	}
	return nil
}

func (m *MemoryStore) ActiveCertificate(ctx context.Context) (*domain.Certificate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, c := range m.certs {
		if c.IsActive {
			c.Status = domain.CertificateStatusAt(c.ExpiryDate, m.now())
			return &c, nil
		}
	}
	return nil, domain.ErrNoActiveCertificate
}

// Certificates exposes the certificate half of the store under the CertificateStore method names.
func (m *MemoryStore) Certificates() *MemoryCertificates {
	return &MemoryCertificates{m: m}
}

type MemoryCertificates struct{ m *MemoryStore }

func (c *MemoryCertificates) List(ctx context.Context) ([]domain.Certificate, error) {
	return c.m.ListCertificates(ctx)
}

func (c *MemoryCertificates) Create(ctx context.Context, cert domain.Certificate) (string, error) {
	return c.m.CreateCertificate(ctx, cert)
}

func (c *MemoryCertificates) Delete(ctx context.Context, id string) error {
	return c.m.DeleteCertificate(ctx, id)
}

func (c *MemoryCertificates) SetActive(ctx context.Context, id string) error {
	return c.m.SetActiveCertificate(ctx, id)
}

func (c *MemoryCertificates) Active(ctx context.Context) (*domain.Certificate, error) {
	return c.m.ActiveCertificate(ctx)
}

// RecordCode formats the store-assigned record identifier.
func RecordCode(year, seq int) string {
	return fmt.Sprintf("DOI-%d-%03d", year, seq)
}

func cloneRecord(r domain.Record) domain.Record {
	r.Parties = append([]domain.Party(nil), r.Parties...)
	return r
}
