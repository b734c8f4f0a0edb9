package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a DOI record.
type Status string

const (
	StatusDraft        Status = "DRAFT"
	StatusReady        Status = "READY"
	StatusTransmitting Status = "TRANSMITTING"
	StatusTransmitted  Status = "TRANSMITTED"
	StatusError        Status = "ERROR"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusReady, StatusTransmitting, StatusTransmitted, StatusError:
		return true
	}
	return false
}

// Role of a party on a declaration.
type Role string

const (
	RoleSeller Role = "SELLER"
	RoleBuyer  Role = "BUYER"
)

// Party is a seller or buyer named on a declaration. Parties belong to exactly one record.
type Party struct {
	Name        string   `json:"name"`
	TaxID       string   `json:"id"` // CPF or CNPJ
	Role        Role     `json:"role"`
	Share       *float64 `json:"share,omitempty"`
	CivilStatus string   `json:"civil_status,omitempty"`
}

// RegistryOffice identifies the notary office that drew up the deed.
type RegistryOffice struct {
	Name     string `json:"name,omitempty"`
	Official string `json:"official,omitempty"`
	Code     string `json:"code,omitempty"`
}

// Record is a DOI declaration. ID is assigned by the store and never changes.
type Record struct {
	ID              string          `json:"id"`
	Date            string          `json:"date"`
	Competence      string          `json:"competence"`
	PropertyAddress string          `json:"property_address"`
	RegistryNumber  string          `json:"registry_number"`
	Value           decimal.Decimal `json:"value"`
	Status          Status          `json:"status"`
	Parties         []Party         `json:"parties"`
	ReceiptNumber   string          `json:"receipt_number,omitempty"`
	ErrorMessage    string          `json:"error_message,omitempty"`
	LastUpdate      time.Time       `json:"last_update"`

	OperationType   string          `json:"operation_type"`
	OperationNature string          `json:"operation_nature,omitempty"`
	DocumentType    string          `json:"document_type,omitempty"`
	PaymentMethod   string          `json:"payment_method"`
	Book            string          `json:"book,omitempty"`
	Page            string          `json:"page,omitempty"`
	Area            string          `json:"area,omitempty"`
	NIRF            string          `json:"nirf,omitempty"`
	IPTU            string          `json:"iptu,omitempty"`
	ITBIValue       decimal.Decimal `json:"itbi_value"`
	ITCDValue       decimal.Decimal `json:"itcd_value"`
	RegistryOffice  RegistryOffice  `json:"registry_office"`
}

// RecordPatch carries a partial update. Nil fields are left untouched;
// a non-nil Parties replaces the whole party list.
type RecordPatch struct {
	Date            *string          `json:"date,omitempty"`
	Competence      *string          `json:"competence,omitempty"`
	PropertyAddress *string          `json:"property_address,omitempty"`
	RegistryNumber  *string          `json:"registry_number,omitempty"`
	Value           *decimal.Decimal `json:"value,omitempty"`
	Parties         *[]Party         `json:"parties,omitempty"`
	OperationType   *string          `json:"operation_type,omitempty"`
	OperationNature *string          `json:"operation_nature,omitempty"`
	DocumentType    *string          `json:"document_type,omitempty"`
	PaymentMethod   *string          `json:"payment_method,omitempty"`
	Book            *string          `json:"book,omitempty"`
	Page            *string          `json:"page,omitempty"`
	Area            *string          `json:"area,omitempty"`
	NIRF            *string          `json:"nirf,omitempty"`
	IPTU            *string          `json:"iptu,omitempty"`
	ITBIValue       *decimal.Decimal `json:"itbi_value,omitempty"`
	ITCDValue       *decimal.Decimal `json:"itcd_value,omitempty"`
	RegistryOffice  *RegistryOffice  `json:"registry_office,omitempty"`
}

// Apply copies the set fields of p onto r.
func (p RecordPatch) Apply(r *Record) {
	setString(&r.Date, p.Date)
	setString(&r.Competence, p.Competence)
	setString(&r.PropertyAddress, p.PropertyAddress)
	setString(&r.RegistryNumber, p.RegistryNumber)
	setString(&r.OperationType, p.OperationType)
	setString(&r.OperationNature, p.OperationNature)
	setString(&r.DocumentType, p.DocumentType)
	setString(&r.PaymentMethod, p.PaymentMethod)
	setString(&r.Book, p.Book)
	setString(&r.Page, p.Page)
	setString(&r.Area, p.Area)
	setString(&r.NIRF, p.NIRF)
	setString(&r.IPTU, p.IPTU)
	if p.Value != nil {
		r.Value = *p.Value
	}
	if p.ITBIValue != nil {
		r.ITBIValue = *p.ITBIValue
	}
	if p.ITCDValue != nil {
		r.ITCDValue = *p.ITCDValue
	}
	if p.RegistryOffice != nil {
		r.RegistryOffice = *p.RegistryOffice
	}
	if p.Parties != nil {
		r.Parties = append([]Party(nil), (*p.Parties)...)
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// CertificateType distinguishes software (A1) from token-backed (A3) certificates.
type CertificateType string

const (
	CertificateA1 CertificateType = "A1"
	CertificateA3 CertificateType = "A3"
)

// CertificateStatus is derived from the expiry date.
type CertificateStatus string

const (
	CertificateValid   CertificateStatus = "VALID"
	CertificateWarning CertificateStatus = "WARNING"
	CertificateExpired CertificateStatus = "EXPIRED"
)

// ExpiryWarningWindow is how close to expiry a certificate is flagged WARNING.
const ExpiryWarningWindow = 30 * 24 * time.Hour

// Certificate is the metadata of a digital signing credential.
type Certificate struct {
	ID         string            `json:"id"`
	Owner      string            `json:"owner"`
	ExpiryDate time.Time         `json:"expiry_date"`
	Type       CertificateType   `json:"type"`
	Status     CertificateStatus `json:"status"`
	IsActive   bool              `json:"is_active"`
}

// CertificateStatusAt classifies an expiry date relative to now.
func CertificateStatusAt(expiry, now time.Time) CertificateStatus {
	switch {
	case expiry.Before(now):
		return CertificateExpired
	case expiry.Sub(now) <= ExpiryWarningWindow:
		return CertificateWarning
	default:
		return CertificateValid
	}
}

// Verdict is the outcome of the AI pre-validation.
type Verdict struct {
	Valid  bool     `json:"valid"`
	Issues []string `json:"issues"`
}

// FailureKind classifies a failed transmission.
type FailureKind string

const (
	KindNone               FailureKind = ""
	KindValidationRejected FailureKind = "validation_rejected"
	KindCredential         FailureKind = "credential"
	KindTransport          FailureKind = "transport"
	KindInternal           FailureKind = "internal"
)

// TransmissionResult is the outcome of one record's transmission.
// Exactly one of Receipt and Error is set.
type TransmissionResult struct {
	Success bool        `json:"success"`
	Receipt string      `json:"receipt,omitempty"`
	Error   string      `json:"error,omitempty"`
	Kind    FailureKind `json:"kind,omitempty"`
	Logs    []string    `json:"logs"`
}

// BatchResult maps record IDs to their transmission outcome, in input order.
type BatchResult struct {
	Order   []string                      `json:"order"`
	Results map[string]TransmissionResult `json:"results"`
}

// NewBatchResult allocates an empty result sized for n records.
func NewBatchResult(n int) BatchResult {
	return BatchResult{
		Order:   make([]string, 0, n),
		Results: make(map[string]TransmissionResult, n),
	}
}

// Add records the outcome for id. The first outcome for an id wins.
func (b *BatchResult) Add(id string, res TransmissionResult) {
	if _, ok := b.Results[id]; ok {
		return
	}
	b.Order = append(b.Order, id)
	b.Results[id] = res
}

// Len returns the number of records in the batch.
func (b BatchResult) Len() int { return len(b.Order) }

// BatchSummary counts successes and failures separately.
type BatchSummary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Summary tallies the batch outcome.
func (b BatchResult) Summary() BatchSummary {
	s := BatchSummary{Total: len(b.Order)}
	for _, id := range b.Order {
		if b.Results[id].Success {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	return s
}
