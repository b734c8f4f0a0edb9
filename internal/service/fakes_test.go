package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/valterpcjria-cloud/doi-smart/internal/domain"
)

var fixedNow = time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)

type fakeAuditor struct {
	verdict  domain.Verdict
	err      error
	panicVal any
	calls    int
}

func (f *fakeAuditor) Judge(ctx context.Context, rec domain.Record) (domain.Verdict, error) {
	f.calls++
	if f.panicVal != nil {
		panic(f.panicVal)
	}
	return f.verdict, f.err
}

func passingAuditor() *fakeAuditor {
	return &fakeAuditor{verdict: domain.Verdict{Valid: true}}
}

// fakeAuth hands out one certificate and rejects the record IDs in deny.
type fakeAuth struct {
	deny map[string]error
}

func (f *fakeAuth) Authenticate(ctx context.Context, rec domain.Record) (*domain.Certificate, error) {
	if err, ok := f.deny[rec.ID]; ok {
		return nil, err
	}
	return &domain.Certificate{ID: "cert-1", Owner: "Cartório 1º Ofício", Type: domain.CertificateA1, ExpiryDate: fixedNow.AddDate(1, 0, 0)}, nil
}

type fakeGateway struct {
	mu       sync.Mutex
	payloads [][]byte
	err      error
	panicVal any
}

func (f *fakeGateway) Submit(ctx context.Context, payload []byte) error {
	if f.panicVal != nil {
		panic(f.panicVal)
	}
	// Behaves like a network client: a cancelled context fails the call.
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	return f.err
}

// counterReceipts issues predictable, distinct receipts.
func counterReceipts() *ReceiptGenerator {
	n := 0
	return &ReceiptGenerator{
		now:    func() time.Time { return fixedNow },
		suffix: func() int { n++; return n },
	}
}

type statusCall struct {
	ID      string
	Status  domain.Status
	Receipt string
	Error   string
}

// fakeRecordStore is a minimal RecordStore with injectable status failures.
type fakeRecordStore struct {
	mu         sync.Mutex
	records    map[string]domain.Record
	failStatus map[string]error
	calls      []statusCall
}

func newFakeRecordStore(recs ...domain.Record) *fakeRecordStore {
	s := &fakeRecordStore{records: make(map[string]domain.Record), failStatus: make(map[string]error)}
	for _, r := range recs {
		s.records[r.ID] = r
	}
	return s
}

func (s *fakeRecordStore) List(ctx context.Context) ([]domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeRecordStore) Get(ctx context.Context, id string) (*domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	return &r, nil
}

func (s *fakeRecordStore) Create(ctx context.Context, rec domain.Record) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.ID = fmt.Sprintf("DOI-2025-%03d", len(s.records)+1)
	s.records[rec.ID] = rec
	return rec.ID, nil
}

func (s *fakeRecordStore) Update(ctx context.Context, id string, patch domain.RecordPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return domain.ErrRecordNotFound
	}
	patch.Apply(&r)
	s.records[id] = r
	return nil
}

func (s *fakeRecordStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

func (s *fakeRecordStore) UpdateStatus(ctx context.Context, id string, status domain.Status, receipt, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, statusCall{ID: id, Status: status, Receipt: receipt, Error: errMsg})
	// pgx refuses to begin a transaction on a cancelled context.
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.failStatus[id]; err != nil {
		return err
	}
	r, ok := s.records[id]
	if !ok {
		return domain.ErrRecordNotFound
	}
	if receipt == "" {
		receipt = r.ReceiptNumber
	}
	r.Status, r.ReceiptNumber, r.ErrorMessage = status, receipt, errMsg
	s.records[id] = r
	return nil
}

type fakeCertStore struct {
	active *domain.Certificate
	err    error
}

func (f *fakeCertStore) List(ctx context.Context) ([]domain.Certificate, error) { return nil, nil }
func (f *fakeCertStore) Create(ctx context.Context, c domain.Certificate) (string, error) {
	return "", nil
}
func (f *fakeCertStore) Delete(ctx context.Context, id string) error { return nil }
func (f *fakeCertStore) SetActive(ctx context.Context, id string) error { return nil }
func (f *fakeCertStore) Active(ctx context.Context) (*domain.Certificate, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.active == nil {
		return nil, domain.ErrNoActiveCertificate
	}
	return f.active, nil
}

func pct(v float64) *float64 { return &v }

func readyRecord(id string) domain.Record {
	return domain.Record{
		ID:              id,
		Date:            "2025-03-10",
		Competence:      "03/2025",
		PropertyAddress: "Rua das Flores, 100 - Centro",
		RegistryNumber:  "12.345",
		Status:          domain.StatusReady,
		OperationType:   "Compra e Venda",
		PaymentMethod:   "VISTA",
		Parties: []domain.Party{
			{Name: "Ana Souza", TaxID: "123.456.789-09", Role: domain.RoleSeller, Share: pct(100)},
			{Name: "Bruno Lima", TaxID: "987.654.321-00", Role: domain.RoleBuyer, Share: pct(100)},
		},
	}
}

// newTestTransmitter builds a transmitter with no delays and a fixed clock.
func newTestTransmitter(a Auditor, mode ValidationMode, auth Authenticator, gw Gateway) *Transmitter {
	t, err := NewTransmitter(NewValidationGate(a, mode, nil), auth, gw,
		WithDelays(0, 0),
		WithReceipts(counterReceipts()),
		WithClock(func() time.Time { return fixedNow }),
	)
	if err != nil {
		panic(err)
	}
	return t
}
