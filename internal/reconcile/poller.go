package reconcile

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/aruspay/aruspay/internal/config"
	ledgerdomain "github.com/aruspay/aruspay/internal/ledger/domain"
	obsmetrics "github.com/aruspay/aruspay/internal/observability/metrics"
	paymentdomain "github.com/aruspay/aruspay/internal/payment/domain"
)

type PollerParams struct {
	fx.In

	Log        *zap.Logger
	Config     config.Config
	Payments   paymentdomain.Service
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

// Poller runs a bounded backoff poll loop per scheduled payment. Loops are
// deduplicated by payment id, so scheduling an already-polled payment is a
// no-op. Poll errors never fail the payment; the loop just retries until
// the attempt budget runs out and leaves the rest to the sweep.
type Poller struct {
	log        *zap.Logger
	cfg        config.PollConfig
	payments   paymentdomain.Service
	obsMetrics *obsmetrics.Metrics

	mu      sync.Mutex
	active  map[snowflake.ID]context.CancelFunc
	stopped bool
	wg      sync.WaitGroup
}

func NewPoller(p PollerParams) *Poller {
	return &Poller{
		log:        p.Log.Named("reconcile.poller"),
		cfg:        p.Config.Poll,
		payments:   p.Payments,
		obsMetrics: p.ObsMetrics,
		active:     map[snowflake.ID]context.CancelFunc{},
	}
}

// Schedule starts a poll loop for the payment unless one is already
// running or the poller is stopped.
func (p *Poller) Schedule(id snowflake.ID) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	if _, running := p.active[id]; running {
		p.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.active[id] = cancel
	p.wg.Add(1)
	p.mu.Unlock()

	go p.run(ctx, id)
}

// Active reports how many poll loops are currently running.
func (p *Poller) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active)
}

// Stop cancels every running loop and waits for them to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	p.stopped = true
	for _, cancel := range p.active {
		cancel()
	}
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Poller) run(ctx context.Context, id snowflake.ID) {
	defer func() {
		p.mu.Lock()
		delete(p.active, id)
		p.mu.Unlock()
		p.wg.Done()
	}()

	delay := p.cfg.InitialDelay
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		if !sleep(ctx, delay) {
			return
		}

		terminal, err := p.payments.PollOnce(ctx, id)
		p.obsMetrics.RecordPollTick(err)
		if err != nil {
			if errors.Is(err, ledgerdomain.ErrPaymentNotFound) {
				p.log.Warn("poll target missing", zap.String("payment_id", id.String()))
				return
			}
			p.log.Warn("poll attempt failed",
				zap.String("payment_id", id.String()),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		} else if terminal {
			p.log.Info("payment settled",
				zap.String("payment_id", id.String()),
				zap.Int("attempt", attempt),
			)
			return
		}

		delay = nextDelay(delay, p.cfg.BaseBackoff, p.cfg.MaxBackoff)
	}

	p.log.Info("poll budget exhausted, leaving payment to the sweep",
		zap.String("payment_id", id.String()),
	)
}

func nextDelay(current, base, max time.Duration) time.Duration {
	next := current * 2
	if next < base {
		next = base
	}
	if next > max {
		next = max
	}
	return next
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
