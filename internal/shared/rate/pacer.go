package rate

import (
	"context"

	"go.uber.org/ratelimit"
)

// Pacer turns a rate limiter into a channel so consumers can select on
// pacing and cancellation together.
type Pacer struct {
	ch  chan struct{}
	lim ratelimit.Limiter
}

func NewPacer(ctx context.Context, perSec int) *Pacer {
	if perSec < 1 {
		perSec = 1
	}

	burst := perSec / 10
	if burst < 1 {
		burst = 1
	}

	p := &Pacer{
		ch:  make(chan struct{}, burst),
		lim: ratelimit.New(perSec),
	}
	go p.provider(ctx)
	return p
}

func (p *Pacer) provider(ctx context.Context) {
	defer close(p.ch)
	for {
		p.lim.Take()
		select {
		case <-ctx.Done():
			return
		case p.ch <- struct{}{}:
		}
	}
}

// Wait blocks until the next slot or cancellation. It reports false once
// the pacer's context is done.
func (p *Pacer) Wait(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case _, ok := <-p.ch:
		return ok
	}
}
