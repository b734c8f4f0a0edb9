package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ExtractedParty is a participant as returned by the deed extractor.
type ExtractedParty struct {
	Name        string  `json:"name"`
	ID          string  `json:"id"`
	Share       float64 `json:"share"`
	CivilStatus string  `json:"civilStatus"`
}

// ExtractionResult is the structured output of the external deed extractor.
type ExtractionResult struct {
	Sellers  []ExtractedParty `json:"sellers"`
	Buyers   []ExtractedParty `json:"buyers"`
	Property struct {
		Address  string          `json:"address"`
		Registry string          `json:"registry"`
		NIRF     string          `json:"nirf,omitempty"`
		IPTU     string          `json:"iptu,omitempty"`
		Value    decimal.Decimal `json:"value"`
		Area     string          `json:"area"`
		Type     string          `json:"type"`
	} `json:"property"`
	Operation struct {
		Type          string          `json:"type"`
		Nature        string          `json:"nature"`
		PaymentMethod string          `json:"paymentMethod"`
		Book          string          `json:"book"`
		Page          string          `json:"page"`
		Date          string          `json:"date"`
		ITBIValue     decimal.Decimal `json:"itbiValue"`
		ITCDValue     decimal.Decimal `json:"itcdValue"`
		DocumentType  string          `json:"documentType"`
	} `json:"operation"`
	RegistryOffice RegistryOffice `json:"registryOffice"`
}

// NewRecordFromExtraction builds a READY record from a confirmed extraction.
// The ID is left empty for the store to assign.
func NewRecordFromExtraction(res ExtractionResult, now time.Time) Record {
	date := res.Operation.Date
	if date == "" {
		date = now.Format("2006-01-02")
	}
	parties := make([]Party, 0, len(res.Sellers)+len(res.Buyers))
	for _, s := range res.Sellers {
		parties = append(parties, extractedParty(s, RoleSeller))
	}
	for _, b := range res.Buyers {
		parties = append(parties, extractedParty(b, RoleBuyer))
	}
	return Record{
		Date:            date,
		Competence:      fmt.Sprintf("%02d/%d", int(now.Month()), now.Year()),
		PropertyAddress: res.Property.Address,
		RegistryNumber:  res.Property.Registry,
		Value:           res.Property.Value,
		Status:          StatusReady,
		Parties:         parties,
		LastUpdate:      now,
		OperationType:   res.Operation.Type,
		OperationNature: res.Operation.Nature,
		DocumentType:    res.Operation.DocumentType,
		PaymentMethod:   res.Operation.PaymentMethod,
		Book:            res.Operation.Book,
		Page:            res.Operation.Page,
		Area:            res.Property.Area,
		NIRF:            res.Property.NIRF,
		IPTU:            res.Property.IPTU,
		ITBIValue:       res.Operation.ITBIValue,
		ITCDValue:       res.Operation.ITCDValue,
		RegistryOffice:  res.RegistryOffice,
	}
}

func extractedParty(p ExtractedParty, role Role) Party {
	share := p.Share
	return Party{
		Name:        p.Name,
		TaxID:       p.ID,
		Role:        role,
		Share:       &share,
		CivilStatus: p.CivilStatus,
	}
}
