package storefront

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"bookstore/internal/orders/domain"
	"bookstore/pkg/logger"
)

// Outcome is how a wait for payment ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	// OutcomeUnresolved means the order was still pending when the wait timed out.
	OutcomeUnresolved Outcome = "unresolved"
)

// Default polling cadence.
const (
	DefaultPollInterval = 3 * time.Second
	DefaultPollTimeout  = 5 * time.Minute
)

// StatusFetcher reads an order's current status.
type StatusFetcher interface {
	OrderStatus(ctx context.Context, orderID string) (domain.OrderStatus, error)
}

// Poller waits for a pending order to be resolved.
type Poller struct {
	Interval time.Duration
	Timeout  time.Duration
	Fetcher  StatusFetcher
	Log      *logger.Logger
}

// Wait polls right away and then every Interval until the order leaves
// pending or Timeout passes. Fetch errors are retried on the next tick.
// Cancelling ctx stops the wait with ctx.Err().
func (p *Poller) Wait(ctx context.Context, orderID string) (Outcome, error) {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}
	log := p.Log
	if log == nil {
		log = logger.NewNop()
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := p.Fetcher.OrderStatus(ctx, orderID)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			log.WithContext(ctx).Warn("order status poll failed, retrying",
				zap.String("order_id", orderID),
				zap.Error(err),
			)
		case status == domain.OrderStatusCompleted:
			return OutcomeCompleted, nil
		case status == domain.OrderStatusFailed:
			return OutcomeFailed, nil
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
			return OutcomeUnresolved, nil
		case <-ticker.C:
		}
	}
}

// Watch runs Wait in the background and hands the outcome to fn, unless ctx
// is cancelled or stop is called first. stop blocks until the background
// wait has exited and must not be called from fn.
func (p *Poller) Watch(ctx context.Context, orderID string, fn func(Outcome)) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer cancel()
		outcome, err := p.Wait(ctx, orderID)
		if err != nil || ctx.Err() != nil {
			return
		}
		fn(outcome)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}
