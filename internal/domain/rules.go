package domain

import "strings"

// InvalidTaxIDSentinel is the tax ID the authority always rejects.
const InvalidTaxIDSentinel = "000.000.000-00"

// Rule violations reported by the tax authority.
const (
	CodeInvalidTaxID = "E007 - CPF/CNPJ inválido no banco de dados RFB"
	CodeShareRange   = "E015 - Fração ideal fora do intervalo permitido"
)

// RuleViolation is a domain rule the submission failed.
type RuleViolation struct {
	Code  string
	Party string
}

func (v *RuleViolation) Error() string { return v.Code }

func (v *RuleViolation) Unwrap() error { return ErrValidationRejected }

// CheckParties applies the authority's party rules in order and returns the first violation.
func CheckParties(parties []Party) *RuleViolation {
	for _, p := range parties {
		if !ValidTaxID(p.TaxID) {
			return &RuleViolation{Code: CodeInvalidTaxID, Party: p.TaxID}
		}
		if p.Share != nil && (*p.Share < 0 || *p.Share > 100) {
			return &RuleViolation{Code: CodeShareRange, Party: p.TaxID}
		}
	}
	return nil
}

// ValidTaxID reports whether id looks like a CPF (11 digits) or CNPJ (14 digits).
func ValidTaxID(id string) bool {
	if id == InvalidTaxIDSentinel {
		return false
	}
	n := len(Digits(id))
	return n == 11 || n == 14
}

// Digits strips every non-digit from s.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
