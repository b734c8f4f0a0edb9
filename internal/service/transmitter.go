package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/valterpcjria-cloud/doi-smart/internal/domain"
	"github.com/valterpcjria-cloud/doi-smart/internal/logging"
)

// Log markers. Consoles color lines by substring rather than parsing them.
const (
	MarkCritical = "CRITICAL"
	MarkRejected = "REJECTED"
	MarkFatal    = "FATAL ERROR"
	MarkSuccess  = "SUCCESS"
)

// Transmitter runs the per-record state machine:
// validate, authenticate, build payload, submit, issue receipt.
type Transmitter struct {
	gate     *ValidationGate
	auth     Authenticator
	gateway  Gateway
	receipts *ReceiptGenerator

	handshakeDelay time.Duration
	payloadDelay   time.Duration

	now func() time.Time
	log *zap.Logger
}

type TransmitterOption func(*Transmitter)

// WithDelays sets the simulated handshake and payload-generation pauses.
func WithDelays(handshake, payload time.Duration) TransmitterOption {
	return func(t *Transmitter) {
		t.handshakeDelay = handshake
		t.payloadDelay = payload
	}
}

func WithReceipts(g *ReceiptGenerator) TransmitterOption {
	return func(t *Transmitter) { t.receipts = g }
}

func WithClock(now func() time.Time) TransmitterOption {
	return func(t *Transmitter) { t.now = now }
}

func WithLogger(l *zap.Logger) TransmitterOption {
	return func(t *Transmitter) { t.log = logging.OrNop(l) }
}

func NewTransmitter(gate *ValidationGate, auth Authenticator, gw Gateway, opts ...TransmitterOption) (*Transmitter, error) {
	if gate == nil {
		return nil, errors.New("validation gate is required")
	}
	if auth == nil {
		return nil, errors.New("authenticator is required")
	}
	if gw == nil {
		return nil, errors.New("gateway is required")
	}
	t := &Transmitter{
		gate:     gate,
		auth:     auth,
		gateway:  gw,
		receipts: NewReceiptGenerator(),
		now:      time.Now,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// run accumulates the ordered log of one transmission.
type run struct {
	now  func() time.Time
	logs []string
}

func (r *run) logf(format string, args ...any) {
	r.logs = append(r.logs, fmt.Sprintf("[%s] %s", r.now().Format("15:04:05"), fmt.Sprintf(format, args...)))
}

func (r *run) failure(msg string, kind domain.FailureKind) domain.TransmissionResult {
	if msg == "" {
		msg = "unknown error"
	}
	return domain.TransmissionResult{Success: false, Error: msg, Kind: kind}
}

func (r *run) fatal(msg string, kind domain.FailureKind) domain.TransmissionResult {
	r.logf("%s: %s", MarkFatal, msg)
	return r.failure(msg, kind)
}

// Transmit never returns an error: every failure becomes a failed result.
// A started record always runs to completion; cancelling ctx does not abort it.
func (t *Transmitter) Transmit(ctx context.Context, rec domain.Record) domain.TransmissionResult {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()
	r := &run{now: t.now}

	res := t.transmit(ctx, rec, r)
	res.Logs = r.logs

	transmissionDuration.Observe(time.Since(start).Seconds())
	if res.Success {
		transmissionsTotal.WithLabelValues("success", "").Inc()
	} else {
		transmissionsTotal.WithLabelValues("failure", string(res.Kind)).Inc()
	}
	return res
}

func (t *Transmitter) transmit(ctx context.Context, rec domain.Record, r *run) domain.TransmissionResult {
	r.logf("Starting transmission of %s to the tax authority...", rec.ID)

	r.logf("Running AI pre-validation...")
	verdict := t.gate.Validate(ctx, rec)
	if !verdict.Valid {
		r.logf("%s: AI detected inconsistencies: %s", MarkCritical, strings.Join(verdict.Issues, ", "))
		return r.failure(verdict.Issues[0], domain.KindValidationRejected)
	}
	r.logf("AI pre-validation passed: data consistent.")

	return t.deliver(ctx, rec, r)
}

// deliver covers authentication through receipt issuance. Panics become fatal results.
func (t *Transmitter) deliver(ctx context.Context, rec domain.Record, r *run) (res domain.TransmissionResult) {
	defer func() {
		if p := recover(); p != nil {
			t.log.Error("transmission panicked", zap.String("record_id", rec.ID), zap.Any("panic", p))
			res = r.fatal(fmt.Sprint(p), domain.KindInternal)
		}
	}()

	if err := sleep(ctx, t.handshakeDelay); err != nil {
		return r.fatal(err.Error(), domain.KindTransport)
	}
	r.logf("Establishing mTLS channel with e-CAC...")
	cert, err := t.auth.Authenticate(ctx, rec)
	if err != nil {
		if errors.Is(err, domain.ErrCredential) {
			r.logf("%s: %s", MarkCritical, err.Error())
			return r.failure(err.Error(), domain.KindCredential)
		}
		return r.fatal(err.Error(), domain.KindTransport)
	}
	r.logf("Using certificate %s (%s, %s)", cert.ID, cert.Type, cert.Owner)

	r.logf("Building XML payload (layout v%s)...", LayoutVersion)
	payload, err := BuildPayload(rec, cert)
	if err != nil {
		return r.fatal(err.Error(), domain.KindInternal)
	}
	if err := sleep(ctx, t.payloadDelay); err != nil {
		return r.fatal(err.Error(), domain.KindTransport)
	}

	r.logf("Submitting package %s to the DOI webservice (%d bytes)...", payload.RecordID, len(payload.Body))
	if v := domain.CheckParties(payload.Parties); v != nil {
		r.logf("%s: schema validation failed for party %s: %s", MarkRejected, v.Party, v.Code)
		return r.failure(v.Code, domain.KindValidationRejected)
	}
	if err := t.gateway.Submit(ctx, payload.Body); err != nil {
		return r.fatal(err.Error(), domain.KindTransport)
	}

	receipt := t.receipts.Next()
	r.logf("%s: package processed. Receipt issued: %s", MarkSuccess, receipt)
	return domain.TransmissionResult{Success: true, Receipt: receipt}
}
