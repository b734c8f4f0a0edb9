// Package auditor asks a language model to review DOI records before transmission.
package auditor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/valterpcjria-cloud/doi-smart/internal/domain"
	"github.com/valterpcjria-cloud/doi-smart/internal/logging"
)

var (
	ErrAuditorDisabled = errors.New("ai auditor disabled")
	ErrMissingAPIKey   = errors.New("ai api key not configured")
	ErrMalformedReply  = errors.New("malformed auditor reply")
)

const promptTemplate = `Atue como um auditor da Receita Federal. Analise estes dados de DOI e identifique inconsistências lógicas (valores suspeitos, CPFs formatados errado, endereços incompletos).
Dados: %s
Retorne apenas JSON no formato: { "valid": boolean, "issues": string[] }`

// Completer sends a single prompt to a model and returns its text reply.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// LLM judges records through a Completer.
type LLM struct {
	completer Completer
	limiter   *rate.Limiter
	timeout   time.Duration
	log       *zap.Logger
}

type Option func(*LLM)

// WithRateLimit caps model calls per minute. Zero or less disables the cap.
func WithRateLimit(perMinute int) Option {
	return func(a *LLM) {
		if perMinute <= 0 {
			a.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		a.limiter = rate.NewLimiter(rate.Limit(float64(perMinute)/60), 1)
	}
}

func WithTimeout(d time.Duration) Option {
	return func(a *LLM) { a.timeout = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(a *LLM) { a.log = logging.OrNop(l) }
}

func New(c Completer, opts ...Option) *LLM {
	a := &LLM{
		completer: c,
		limiter:   rate.NewLimiter(rate.Inf, 1),
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Judge returns the model's verdict on rec. Any model, network or decoding
// failure is returned as an error; callers decide whether that blocks.
func (a *LLM) Judge(ctx context.Context, rec domain.Record) (domain.Verdict, error) {
	if a.completer == nil {
		return domain.Verdict{}, ErrAuditorDisabled
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return domain.Verdict{}, fmt.Errorf("auditor rate limit: %w", err)
	}
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	prompt, err := BuildPrompt(rec)
	if err != nil {
		return domain.Verdict{}, err
	}

	start := time.Now()
	reply, err := a.completer.Complete(ctx, prompt)
	if err != nil {
		return domain.Verdict{}, fmt.Errorf("auditor call failed: %w", err)
	}

	v, err := ParseVerdict(reply)
	if err != nil {
		a.log.Warn("unparseable auditor reply", zap.String("record_id", rec.ID), zap.Int("bytes", len(reply)))
		return domain.Verdict{}, err
	}
	a.log.Debug("auditor verdict",
		zap.String("record_id", rec.ID),
		zap.Bool("valid", v.Valid),
		zap.Int("issues", len(v.Issues)),
		zap.Duration("took", time.Since(start)),
	)
	return v, nil
}

// BuildPrompt embeds a JSON snapshot of rec in the auditor instructions.
func BuildPrompt(rec domain.Record) (string, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encode record snapshot: %w", err)
	}
	return fmt.Sprintf(promptTemplate, data), nil
}

// ParseVerdict decodes a model reply, tolerating Markdown code fences.
func ParseVerdict(reply string) (domain.Verdict, error) {
	text := stripFences(reply)

	var out struct {
		Valid  *bool    `json:"valid"`
		Issues []string `json:"issues"`
	}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return domain.Verdict{}, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	if out.Valid == nil {
		return domain.Verdict{}, fmt.Errorf("%w: missing \"valid\"", ErrMalformedReply)
	}
	if out.Issues == nil {
		out.Issues = []string{}
	}
	return domain.Verdict{Valid: *out.Valid, Issues: out.Issues}, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
