package reconcile

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/aruspay/aruspay/internal/config"
	obsmetrics "github.com/aruspay/aruspay/internal/observability/metrics"
	paymentdomain "github.com/aruspay/aruspay/internal/payment/domain"
)

type SweeperParams struct {
	fx.In

	Log        *zap.Logger
	Config     config.Config
	Payments   paymentdomain.Service
	Poller     *Poller
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

// Sweeper is the safety net behind the per-payment poll loops. It lists
// non-terminal payments in batches and reschedules them on the poller, so
// a webhook outage or a process restart cannot strand a payment.
type Sweeper struct {
	log        *zap.Logger
	cfg        config.SweepConfig
	live       bool
	payments   paymentdomain.Service
	poller     *Poller
	obsMetrics *obsmetrics.Metrics
}

func NewSweeper(p SweeperParams) *Sweeper {
	return &Sweeper{
		log:        p.Log.Named("reconcile.sweeper"),
		cfg:        p.Config.Sweep,
		live:       p.Config.ProviderLive,
		payments:   p.Payments,
		poller:     p.Poller,
		obsMetrics: p.ObsMetrics,
	}
}

// RunForever sweeps once immediately, then on every tick. The immediate
// sweep re-arms poll loops for payments that were in flight when the
// previous process stopped.
func (s *Sweeper) RunForever(ctx context.Context) {
	if err := s.RunOnce(ctx); err != nil {
		s.log.Warn("sweep failed", zap.Error(err))
	}

	// Sandbox deployments settle through the poll loops alone; the
	// periodic sweep only matters against a real provider.
	if !s.live {
		return
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("sweep failed", zap.Error(err))
		}
	}
}

// RunOnce lists one batch of unsettled payments and schedules each on the
// poller.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	records, err := s.payments.ListUnsettled(ctx, s.cfg.BatchSize)
	if err != nil {
		s.obsMetrics.RecordSweep(err)
		return err
	}

	for _, record := range records {
		s.poller.Schedule(record.PaymentID)
	}

	s.obsMetrics.RecordSweep(nil)
	if len(records) > 0 {
		s.log.Info("sweep scheduled payments", zap.Int("count", len(records)))
	}
	return nil
}
