package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valterpcjria-cloud/doi-smart/internal/domain"
)

func assertExclusive(t *testing.T, res domain.TransmissionResult) {
	t.Helper()
	if res.Success {
		assert.NotEmpty(t, res.Receipt, "success without receipt")
		assert.Empty(t, res.Error, "success with error")
		assert.Equal(t, domain.KindNone, res.Kind)
		return
	}
	assert.NotEmpty(t, res.Error, "failure without error")
	assert.Empty(t, res.Receipt, "failure with receipt")
}

func hasLine(logs []string, substr string) bool {
	for _, l := range logs {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}

func TestNewTransmitterRequiresCollaborators(t *testing.T) {
	gate := NewValidationGate(passingAuditor(), Lenient, nil)

	_, err := NewTransmitter(nil, &fakeAuth{}, &fakeGateway{})
	assert.Error(t, err)
	_, err = NewTransmitter(gate, nil, &fakeGateway{})
	assert.Error(t, err)
	_, err = NewTransmitter(gate, &fakeAuth{}, nil)
	assert.Error(t, err)
}

func TestTransmitSuccess(t *testing.T) {
	gw := &fakeGateway{}
	tr := newTestTransmitter(passingAuditor(), Lenient, &fakeAuth{}, gw)

	res := tr.Transmit(context.Background(), readyRecord("DOI-2025-001"))

	require.True(t, res.Success, res.Error)
	assertExclusive(t, res)
	assert.Equal(t, "20250310143000.1", res.Receipt)
	require.Len(t, gw.payloads, 1)
	assert.Contains(t, string(gw.payloads[0]), "<identificador>DOI-2025-001</identificador>")

	require.NotEmpty(t, res.Logs)
	for _, l := range res.Logs {
		assert.True(t, strings.HasPrefix(l, "[14:30:00] "), l)
	}
	assert.Contains(t, res.Logs[0], "Starting transmission of DOI-2025-001")
	assert.Contains(t, res.Logs[len(res.Logs)-1], MarkSuccess+": package processed. Receipt issued: 20250310143000.1")
	assert.True(t, hasLine(res.Logs, "Establishing mTLS channel"))
	assert.True(t, hasLine(res.Logs, "Submitting package DOI-2025-001 to the DOI webservice"))
}

func TestTransmitGateRejection(t *testing.T) {
	gw := &fakeGateway{}
	a := &fakeAuditor{verdict: domain.Verdict{Valid: false, Issues: []string{"X"}}}
	tr := newTestTransmitter(a, Lenient, &fakeAuth{}, gw)

	res := tr.Transmit(context.Background(), readyRecord("DOI-2025-001"))

	assert.False(t, res.Success)
	assert.Equal(t, "X", res.Error)
	assert.Equal(t, domain.KindValidationRejected, res.Kind)
	assertExclusive(t, res)
	assert.False(t, hasLine(res.Logs, "Submit"))
	assert.True(t, hasLine(res.Logs, MarkCritical+": AI detected inconsistencies: X"))
	assert.Empty(t, gw.payloads)
}

func TestTransmitStrictOutageRejects(t *testing.T) {
	tr := newTestTransmitter(&fakeAuditor{err: errors.New("quota")}, Strict, &fakeAuth{}, &fakeGateway{})

	res := tr.Transmit(context.Background(), readyRecord("DOI-2025-001"))

	assert.False(t, res.Success)
	assert.Equal(t, "AI validation unavailable: quota", res.Error)
	assert.Equal(t, domain.KindValidationRejected, res.Kind)
}

func TestTransmitLenientOutagePasses(t *testing.T) {
	tr := newTestTransmitter(&fakeAuditor{err: errors.New("quota")}, Lenient, &fakeAuth{}, &fakeGateway{})

	res := tr.Transmit(context.Background(), readyRecord("DOI-2025-001"))
	assert.True(t, res.Success)
}

func TestTransmitInvalidTaxIDSentinel(t *testing.T) {
	gw := &fakeGateway{}
	tr := newTestTransmitter(passingAuditor(), Lenient, &fakeAuth{}, gw)

	rec := domain.Record{
		ID: "R1",
		Parties: []domain.Party{
			{Name: "Comprador", TaxID: domain.InvalidTaxIDSentinel, Role: domain.RoleBuyer},
			{Name: "Vendedor", TaxID: "123.456.789-09", Role: domain.RoleSeller},
		},
	}
	res := tr.Transmit(context.Background(), rec)

	assert.Equal(t, domain.TransmissionResult{
		Success: false,
		Error:   "E007 - CPF/CNPJ inválido no banco de dados RFB",
		Kind:    domain.KindValidationRejected,
		Logs:    res.Logs,
	}, res)
	assert.True(t, hasLine(res.Logs, MarkRejected))
	assert.False(t, hasLine(res.Logs, MarkSuccess))
	assert.Empty(t, gw.payloads)
}

func TestTransmitSentinelAlwaysFails(t *testing.T) {
	tr := newTestTransmitter(passingAuditor(), Lenient, &fakeAuth{}, &fakeGateway{})

	for i, pos := range []int{0, 1, 2} {
		rec := readyRecord(fmt.Sprintf("DOI-2025-%03d", i+1))
		rec.Parties = append(rec.Parties, domain.Party{Name: "Extra", TaxID: "111.222.333-44", Role: domain.RoleBuyer})
		rec.Parties[pos].TaxID = domain.InvalidTaxIDSentinel

		res := tr.Transmit(context.Background(), rec)
		assert.False(t, res.Success)
		assert.Equal(t, domain.CodeInvalidTaxID, res.Error)
		assert.Empty(t, res.Receipt)
	}
}

func TestTransmitShareOutOfRange(t *testing.T) {
	tr := newTestTransmitter(passingAuditor(), Lenient, &fakeAuth{}, &fakeGateway{})
	rec := readyRecord("DOI-2025-001")
	rec.Parties[1].Share = pct(120)

	res := tr.Transmit(context.Background(), rec)
	assert.Equal(t, domain.CodeShareRange, res.Error)
	assert.Equal(t, domain.KindValidationRejected, res.Kind)
}

func TestTransmitCredentialFailure(t *testing.T) {
	gw := &fakeGateway{}
	auth := &fakeAuth{deny: map[string]error{
		"DOI-2025-001": fmt.Errorf("%w: mTLS authentication failed: token not found", domain.ErrCredential),
	}}
	tr := newTestTransmitter(passingAuditor(), Lenient, auth, gw)

	res := tr.Transmit(context.Background(), readyRecord("DOI-2025-001"))

	assert.False(t, res.Success)
	assert.Equal(t, domain.KindCredential, res.Kind)
	assert.Contains(t, res.Error, "token not found")
	assertExclusive(t, res)
	assert.True(t, hasLine(res.Logs, MarkCritical))
	assert.False(t, hasLine(res.Logs, "Receipt issued"))
	assert.Empty(t, gw.payloads)
}

func TestTransmitTransportFailures(t *testing.T) {
	t.Run("gateway", func(t *testing.T) {
		gw := &fakeGateway{err: fmt.Errorf("%w: connection reset", domain.ErrTransport)}
		tr := newTestTransmitter(passingAuditor(), Lenient, &fakeAuth{}, gw)

		res := tr.Transmit(context.Background(), readyRecord("DOI-2025-001"))
		assert.Equal(t, domain.KindTransport, res.Kind)
		assert.True(t, hasLine(res.Logs, MarkFatal))
		assertExclusive(t, res)
	})

	t.Run("certificate lookup", func(t *testing.T) {
		auth := &fakeAuth{deny: map[string]error{"DOI-2025-001": errors.New("db down")}}
		tr := newTestTransmitter(passingAuditor(), Lenient, auth, &fakeGateway{})

		res := tr.Transmit(context.Background(), readyRecord("DOI-2025-001"))
		assert.Equal(t, domain.KindTransport, res.Kind)
		assert.Equal(t, "db down", res.Error)
	})
}

func TestTransmitIgnoresCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gw := &fakeGateway{}
	tr := newTestTransmitter(passingAuditor(), Lenient, &fakeAuth{}, gw)

	res := tr.Transmit(ctx, readyRecord("DOI-2025-001"))
	assert.True(t, res.Success)
	assert.Equal(t, "20250310143000.1", res.Receipt)
	assert.Len(t, gw.payloads, 1)
}

func TestTransmitAuditorPanic(t *testing.T) {
	auditor := &fakeAuditor{panicVal: "auditor client nil deref"}

	t.Run("lenient", func(t *testing.T) {
		tr := newTestTransmitter(auditor, Lenient, &fakeAuth{}, &fakeGateway{})
		res := tr.Transmit(context.Background(), readyRecord("DOI-2025-001"))
		assert.True(t, res.Success)
		assert.NotEmpty(t, res.Receipt)
	})

	t.Run("strict", func(t *testing.T) {
		gw := &fakeGateway{}
		tr := newTestTransmitter(auditor, Strict, &fakeAuth{}, gw)
		res := tr.Transmit(context.Background(), readyRecord("DOI-2025-001"))
		assert.False(t, res.Success)
		assert.Equal(t, domain.KindValidationRejected, res.Kind)
		assert.Equal(t, "AI validation unavailable: auditor panic: auditor client nil deref", res.Error)
		assert.Empty(t, gw.payloads)
	})
}

func TestTransmitPanicBecomesFatal(t *testing.T) {
	tr := newTestTransmitter(passingAuditor(), Lenient, &fakeAuth{}, &fakeGateway{panicVal: "nil map write"})

	res := tr.Transmit(context.Background(), readyRecord("DOI-2025-001"))

	assert.False(t, res.Success)
	assert.Equal(t, "nil map write", res.Error)
	assert.Equal(t, domain.KindInternal, res.Kind)
	assert.True(t, hasLine(res.Logs, MarkFatal+": nil map write"))
}

func TestTransmitHonoursDelays(t *testing.T) {
	tr, err := NewTransmitter(NewValidationGate(passingAuditor(), Lenient, nil), &fakeAuth{}, SimulatedGateway{Delay: 5 * time.Millisecond},
		WithDelays(5*time.Millisecond, 5*time.Millisecond),
	)
	require.NoError(t, err)

	start := time.Now()
	res := tr.Transmit(context.Background(), readyRecord("DOI-2025-001"))
	require.True(t, res.Success, res.Error)
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
	assert.Regexp(t, `^\d{14}\.\d{1,6}$`, res.Receipt)
}
