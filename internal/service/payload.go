package service

import (
	"encoding/xml"
	"fmt"
	"strconv"

	"github.com/valterpcjria-cloud/doi-smart/internal/domain"
)

// LayoutVersion is the DOI submission schema the payload follows.
const LayoutVersion = "4.0.1"

type xmlDeclaration struct {
	XMLName         xml.Name    `xml:"DeclaracaoOperacaoImobiliaria"`
	Layout          string      `xml:"versaoLayout,attr"`
	ID              string      `xml:"identificador"`
	Date            string      `xml:"dataOperacao"`
	Competence      string      `xml:"competencia"`
	OperationType   string      `xml:"tipoOperacao"`
	OperationNature string      `xml:"naturezaOperacao,omitempty"`
	DocumentType    string      `xml:"tipoDocumento,omitempty"`
	PaymentMethod   string      `xml:"formaPagamento"`
	Book            string      `xml:"livro,omitempty"`
	Page            string      `xml:"folha,omitempty"`
	Property        xmlProperty `xml:"imovel"`
	Office          xmlOffice   `xml:"cartorio"`
	Parties         []xmlParty  `xml:"participantes>participante"`
	Certificate     string      `xml:"certificado,omitempty"`
}

type xmlProperty struct {
	Address   string `xml:"endereco"`
	Registry  string `xml:"matricula"`
	NIRF      string `xml:"nirf,omitempty"`
	IPTU      string `xml:"iptu,omitempty"`
	Area      string `xml:"area,omitempty"`
	Value     string `xml:"valorOperacao"`
	ITBIValue string `xml:"valorITBI"`
	ITCDValue string `xml:"valorITCD"`
}

type xmlOffice struct {
	Code     string `xml:"cns,omitempty"`
	Name     string `xml:"nome,omitempty"`
	Official string `xml:"oficial,omitempty"`
}

type xmlParty struct {
	Role        string `xml:"papel,attr"`
	Name        string `xml:"nome"`
	TaxID       string `xml:"cpfCnpj"`
	Share       string `xml:"fracaoIdeal,omitempty"`
	CivilStatus string `xml:"estadoCivil,omitempty"`
}

// Payload is the outbound submission built from a record's current field values.
type Payload struct {
	RecordID string
	Parties  []domain.Party
	Body     []byte
}

// BuildPayload renders rec as a DOI XML document signed off by cert.
func BuildPayload(rec domain.Record, cert *domain.Certificate) (Payload, error) {
	doc := xmlDeclaration{
		Layout:          LayoutVersion,
		ID:              rec.ID,
		Date:            rec.Date,
		Competence:      rec.Competence,
		OperationType:   rec.OperationType,
		OperationNature: rec.OperationNature,
		DocumentType:    rec.DocumentType,
		PaymentMethod:   rec.PaymentMethod,
		Book:            rec.Book,
		Page:            rec.Page,
		Property: xmlProperty{
			Address:   rec.PropertyAddress,
			Registry:  rec.RegistryNumber,
			NIRF:      rec.NIRF,
			IPTU:      rec.IPTU,
			Area:      rec.Area,
			Value:     rec.Value.StringFixed(2),
			ITBIValue: rec.ITBIValue.StringFixed(2),
			ITCDValue: rec.ITCDValue.StringFixed(2),
		},
		Office: xmlOffice{
			Code:     rec.RegistryOffice.Code,
			Name:     rec.RegistryOffice.Name,
			Official: rec.RegistryOffice.Official,
		},
		Parties: make([]xmlParty, 0, len(rec.Parties)),
	}
	if cert != nil {
		doc.Certificate = cert.ID
	}
	for _, p := range rec.Parties {
		xp := xmlParty{
			Role:        string(p.Role),
			Name:        p.Name,
			TaxID:       p.TaxID,
			CivilStatus: p.CivilStatus,
		}
		if p.Share != nil {
			xp.Share = strconv.FormatFloat(*p.Share, 'f', 2, 64)
		}
		doc.Parties = append(doc.Parties, xp)
	}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return Payload{}, fmt.Errorf("payload marshal failed: %w", err)
	}
	return Payload{
		RecordID: rec.ID,
		Parties:  append([]domain.Party(nil), rec.Parties...),
		Body:     append([]byte(xml.Header), body...),
	}, nil
}
