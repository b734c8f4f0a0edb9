package service

import (
	"context"
	"fmt"
	"time"

	"github.com/valterpcjria-cloud/doi-smart/internal/domain"
)

// SimulatedGateway stands in for the tax-authority webservice: it only waits.
type SimulatedGateway struct {
	Delay time.Duration
}

func (g SimulatedGateway) Submit(ctx context.Context, payload []byte) error {
	if len(payload) == 0 {
		return fmt.Errorf("%w: empty payload", domain.ErrTransport)
	}
	return sleep(ctx, g.Delay)
}

// sleep waits for d or until ctx is done; the context error is transport-class.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrTransport, err)
		}
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", domain.ErrTransport, ctx.Err())
	case <-t.C:
		return nil
	}
}
