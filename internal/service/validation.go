package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/valterpcjria-cloud/doi-smart/internal/domain"
	"github.com/valterpcjria-cloud/doi-smart/internal/logging"
)

// ValidationMode decides what happens when the auditor cannot be reached.
type ValidationMode int

const (
	// Lenient treats auditor failures as a pass.
	Lenient ValidationMode = iota
	// Strict treats auditor failures as a rejection.
	Strict
)

const genericIssue = "AI auditor flagged the record without details"

// ValidationGate runs the AI pre-check before a record is transmitted.
// It makes a single attempt per call and never returns an error.
type ValidationGate struct {
	auditor Auditor
	mode    ValidationMode
	log     *zap.Logger
}

func NewValidationGate(a Auditor, mode ValidationMode, log *zap.Logger) *ValidationGate {
	return &ValidationGate{auditor: a, mode: mode, log: logging.OrNop(log)}
}

func (g *ValidationGate) Validate(ctx context.Context, rec domain.Record) domain.Verdict {
	if g.auditor == nil {
		return g.unavailable(rec.ID, nil)
	}

	v, err := g.judge(ctx, rec)
	if err != nil {
		return g.unavailable(rec.ID, err)
	}

	if v.Valid {
		validationTotal.WithLabelValues("valid").Inc()
		return domain.Verdict{Valid: true, Issues: []string{}}
	}

	validationTotal.WithLabelValues("invalid").Inc()
	if len(v.Issues) == 0 {
		v.Issues = []string{genericIssue}
	}
	return v
}

// judge turns an auditor panic into an ordinary auditor failure.
func (g *ValidationGate) judge(ctx context.Context, rec domain.Record) (v domain.Verdict, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("auditor panic: %v", p)
		}
	}()
	return g.auditor.Judge(ctx, rec)
}

func (g *ValidationGate) unavailable(recordID string, err error) domain.Verdict {
	validationTotal.WithLabelValues("unavailable").Inc()
	g.log.Warn("ai validation unavailable",
		zap.String("record_id", recordID),
		zap.Bool("strict", g.mode == Strict),
		zap.Error(err),
	)
	if g.mode == Strict {
		msg := "AI validation unavailable"
		if err != nil {
			msg += ": " + err.Error()
		}
		return domain.Verdict{Valid: false, Issues: []string{msg}}
	}
	return domain.Verdict{Valid: true, Issues: []string{}}
}
