package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"task-service/middleware/ratelimit/domain"
)

// ErrNoSlot indica que nenhuma vaga ficou livre dentro do prazo.
var ErrNoSlot = errors.New("concurrency: no slot available")

// ConcurrencyService limita requisições em voo, sem saber nada sobre HTTP.
//
// É independente das regras por cliente: protege o processo, não a cota.
type ConcurrencyService struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration
}

// Acquire tenta adquirir uma vaga.
//   - AcquireTimeout <= 0: espera até o ctx encerrar.
//   - AcquireTimeout > 0: espera no máximo esse tempo.
//
// Em caso de falha devolve ErrNoSlot (com a causa do ctx) e release nil.
func (s ConcurrencyService) Acquire(ctx context.Context) (release func(), err error) {
	if s.Pool == nil {
		return func() {}, nil
	}

	acqCtx := ctx
	if s.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		acqCtx, cancel = context.WithTimeout(ctx, s.AcquireTimeout)
		defer cancel()
	}

	release, ok := s.Pool.Acquire(acqCtx)
	if !ok {
		return nil, fmt.Errorf("%w: %w", ErrNoSlot, context.Cause(acqCtx))
	}
	return release, nil
}
