package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/valterpcjria-cloud/doi-smart/internal/domain"
	"github.com/valterpcjria-cloud/doi-smart/internal/service"
)

// storeSuite runs the same behaviour checks against every store backend.
type storeSuite struct {
	suite.Suite
	ctx     context.Context
	records service.RecordStore
	certs   service.CertificateStore
	// reset returns empty stores for the next test.
	reset func() (service.RecordStore, service.CertificateStore)
}

func (s *storeSuite) SetupTest() {
	s.ctx = context.Background()
	s.records, s.certs = s.reset()
}

func share(v float64) *float64 { return &v }

func sampleRecord() domain.Record {
	return domain.Record{
		Date:            "2025-03-10",
		Competence:      "03/2025",
		PropertyAddress: "Rua das Flores, 100",
		RegistryNumber:  "12.345",
		Value:           decimal.RequireFromString("450000.00"),
		OperationType:   "Compra e Venda",
		PaymentMethod:   "VISTA",
		Parties: []domain.Party{
			{Name: "Ana Souza", TaxID: "123.456.789-09", Role: domain.RoleSeller, Share: share(100)},
			{Name: "Bruno Lima", TaxID: "987.654.321-00", Role: domain.RoleBuyer, Share: share(100)},
		},
	}
}

func (s *storeSuite) create(rec domain.Record) string {
	id, err := s.records.Create(s.ctx, rec)
	s.Require().NoError(err)
	return id
}

func (s *storeSuite) TestCreateAssignsSequentialCodes() {
	year := time.Now().Year()

	first := s.create(sampleRecord())
	second := s.create(sampleRecord())

	s.Equal(fmt.Sprintf("DOI-%d-001", year), first)
	s.Equal(fmt.Sprintf("DOI-%d-002", year), second)
}

func (s *storeSuite) TestCreateStartsReadyUnlessDraft() {
	rec := sampleRecord()
	rec.Status = domain.StatusTransmitted
	rec.ReceiptNumber = "forged"
	ready := s.create(rec)

	rec = sampleRecord()
	rec.Status = domain.StatusDraft
	draft := s.create(rec)

	got, err := s.records.Get(s.ctx, ready)
	s.Require().NoError(err)
	s.Equal(domain.StatusReady, got.Status)
	s.Empty(got.ReceiptNumber)

	got, err = s.records.Get(s.ctx, draft)
	s.Require().NoError(err)
	s.Equal(domain.StatusDraft, got.Status)
}

func (s *storeSuite) TestGetRoundTripsRecord() {
	id := s.create(sampleRecord())

	got, err := s.records.Get(s.ctx, id)
	s.Require().NoError(err)

	s.Equal(id, got.ID)
	s.Equal("2025-03-10", got.Date)
	s.Equal("Rua das Flores, 100", got.PropertyAddress)
	s.True(got.Value.Equal(decimal.RequireFromString("450000")), "value %s", got.Value)
	s.Require().Len(got.Parties, 2)
	s.Equal("Ana Souza", got.Parties[0].Name)
	s.Equal(domain.RoleBuyer, got.Parties[1].Role)
	s.Require().NotNil(got.Parties[1].Share)
	s.InDelta(100, *got.Parties[1].Share, 0.001)
}

func (s *storeSuite) TestGetUnknownRecord() {
	_, err := s.records.Get(s.ctx, "DOI-1999-999")
	s.ErrorIs(err, domain.ErrRecordNotFound)
}

func (s *storeSuite) TestListReturnsEveryRecord() {
	a := s.create(sampleRecord())
	b := s.create(sampleRecord())

	list, err := s.records.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(list, 2)

	ids := []string{list[0].ID, list[1].ID}
	s.ElementsMatch([]string{a, b}, ids)
	for _, r := range list {
		s.Len(r.Parties, 2)
	}
}

func (s *storeSuite) TestUpdateAppliesPatch() {
	id := s.create(sampleRecord())

	address := "Av. Central, 5"
	value := decimal.RequireFromString("1000.50")
	parties := []domain.Party{{Name: "Carla", TaxID: "111.222.333-44", Role: domain.RoleBuyer}}
	err := s.records.Update(s.ctx, id, domain.RecordPatch{
		PropertyAddress: &address,
		Value:           &value,
		Parties:         &parties,
	})
	s.Require().NoError(err)

	got, err := s.records.Get(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(address, got.PropertyAddress)
	s.Equal("12.345", got.RegistryNumber)
	s.True(got.Value.Equal(value))
	s.Require().Len(got.Parties, 1)
	s.Equal("Carla", got.Parties[0].Name)
}

func (s *storeSuite) TestUpdateUnknownRecord() {
	address := "x"
	err := s.records.Update(s.ctx, "DOI-1999-999", domain.RecordPatch{PropertyAddress: &address})
	s.ErrorIs(err, domain.ErrRecordNotFound)
}

func (s *storeSuite) TestDeleteBlocksTransmittedRecords() {
	sent := s.create(sampleRecord())
	pending := s.create(sampleRecord())
	s.Require().NoError(s.records.UpdateStatus(s.ctx, sent, domain.StatusTransmitted, "20250310120000.42", ""))

	s.ErrorIs(s.records.Delete(s.ctx, sent), domain.ErrRecordTransmitted)
	s.NoError(s.records.Delete(s.ctx, pending))
	s.ErrorIs(s.records.Delete(s.ctx, pending), domain.ErrRecordNotFound)

	_, err := s.records.Get(s.ctx, sent)
	s.NoError(err)
}

func (s *storeSuite) TestUpdateStatusKeepsReceiptWhenEmpty() {
	id := s.create(sampleRecord())
	s.Require().NoError(s.records.UpdateStatus(s.ctx, id, domain.StatusTransmitted, "20250310120000.1", ""))
	s.Require().NoError(s.records.UpdateStatus(s.ctx, id, domain.StatusError, "", "E003 - timeout"))

	got, err := s.records.Get(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(domain.StatusError, got.Status)
	s.Equal("20250310120000.1", got.ReceiptNumber)
	s.Equal("E003 - timeout", got.ErrorMessage)
}

func (s *storeSuite) TestUpdateStatusRejectsInconsistentOutcome() {
	id := s.create(sampleRecord())

	err := s.records.UpdateStatus(s.ctx, id, domain.StatusTransmitted, "", "")
	s.ErrorIs(err, domain.ErrInvalidStatus)

	err = s.records.UpdateStatus(s.ctx, id, domain.StatusError, "", "")
	s.ErrorIs(err, domain.ErrInvalidStatus)

	err = s.records.UpdateStatus(s.ctx, "DOI-1999-999", domain.StatusError, "", "boom")
	s.ErrorIs(err, domain.ErrRecordNotFound)
}

func (s *storeSuite) TestReceiptsAreUnique() {
	a := s.create(sampleRecord())
	b := s.create(sampleRecord())

	s.Require().NoError(s.records.UpdateStatus(s.ctx, a, domain.StatusTransmitted, "20250310120000.7", ""))
	err := s.records.UpdateStatus(s.ctx, b, domain.StatusTransmitted, "20250310120000.7", "")
	s.ErrorIs(err, domain.ErrConflict)

	got, err := s.records.Get(s.ctx, b)
	s.Require().NoError(err)
	s.Equal(domain.StatusReady, got.Status)
}

func (s *storeSuite) TestFirstCertificateBecomesActive() {
	_, err := s.certs.Active(s.ctx)
	s.ErrorIs(err, domain.ErrNoActiveCertificate)

	first, err := s.certs.Create(s.ctx, domain.Certificate{Owner: "Cartório 1º Ofício", Type: domain.CertificateA1, ExpiryDate: time.Now().AddDate(1, 0, 0)})
	s.Require().NoError(err)
	second, err := s.certs.Create(s.ctx, domain.Certificate{Owner: "Tabelião Substituto", Type: domain.CertificateA3, ExpiryDate: time.Now().AddDate(0, 0, 10)})
	s.Require().NoError(err)

	active, err := s.certs.Active(s.ctx)
	s.Require().NoError(err)
	s.Equal(first, active.ID)
	s.Equal(domain.CertificateValid, active.Status)

	s.Require().NoError(s.certs.SetActive(s.ctx, second))
	active, err = s.certs.Active(s.ctx)
	s.Require().NoError(err)
	s.Equal(second, active.ID)
	s.Equal(domain.CertificateWarning, active.Status)

	list, err := s.certs.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	actives := 0
	for _, c := range list {
		if c.IsActive {
			actives++
		}
	}
	s.Equal(1, actives)
}

func (s *storeSuite) TestUnknownCertificate() {
	s.ErrorIs(s.certs.Delete(s.ctx, "404"), domain.ErrCertificateNotFound)
	s.ErrorIs(s.certs.SetActive(s.ctx, "404"), domain.ErrCertificateNotFound)

	id, err := s.certs.Create(s.ctx, domain.Certificate{Owner: "x", Type: domain.CertificateA1, ExpiryDate: time.Now().AddDate(-1, 0, 0)})
	s.Require().NoError(err)
	list, err := s.certs.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal(domain.CertificateExpired, list[0].Status)

	s.NoError(s.certs.Delete(s.ctx, id))
	s.True(errors.Is(s.certs.Delete(s.ctx, id), domain.ErrCertificateNotFound))
}
