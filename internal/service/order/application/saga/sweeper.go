package saga

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"ordersaga/internal/pkg/logger"
	"ordersaga/internal/pkg/metrics"
	"ordersaga/internal/service/order/domain"
	"ordersaga/internal/service/order/domain/port"
)

const sweepLockName = "saga-sweeper"

// Sweeper periodically times out stale sagas and evicts decided ones.
type Sweeper struct {
	store    port.CorrelationStore
	payments port.PaymentProcessor
	schedule string
	locker   port.Locker
	lockTTL  time.Duration
	metrics  *metrics.Metrics
	clock    func() time.Time
}

// NewSweeper creates a sweeper. locker may be nil when the store is local to
// this process.
func NewSweeper(store port.CorrelationStore, schedule string, locker port.Locker, m *metrics.Metrics) *Sweeper {
	if schedule == "" {
		schedule = "@every 5s"
	}
	return &Sweeper{
		store:    store,
		schedule: schedule,
		locker:   locker,
		lockTTL:  30 * time.Second,
		metrics:  m,
		clock:    time.Now,
	}
}

// WithPayments lets the sweeper trigger payments the store hands out for
// joined sagas that were never acknowledged. Without it they are only logged.
func (s *Sweeper) WithPayments(p port.PaymentProcessor) *Sweeper {
	s.payments = p
	return s
}

// WithClock overrides the time source, for tests.
func (s *Sweeper) WithClock(clock func() time.Time) *Sweeper {
	s.clock = clock
	return s
}

// SweepOnce runs a single sweep, skipping it when another replica holds the lease.
func (s *Sweeper) SweepOnce(ctx context.Context) (domain.SweepReport, error) {
	log := logger.Ctx(ctx)
	if s.locker != nil {
		release, ok, err := s.locker.TryLock(ctx, sweepLockName, s.lockTTL)
		if err != nil {
			return domain.SweepReport{}, err
		}
		if !ok {
			log.Debug().Msg("sweep skipped, another replica holds the lease")
			return domain.SweepReport{}, nil
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				log.Warn().Err(err).Msg("failed to release sweep lease")
			}
		}()
	}

	report, err := s.store.Sweep(ctx, s.clock())
	if err != nil {
		return report, err
	}
	for _, id := range report.TimedOut {
		s.metrics.IncSagaFailure(string(domain.ReasonTimeout))
		log.Warn().Str("order_id", id).Str("reason", string(domain.ReasonTimeout)).Msg("saga timed out before join")
	}
	for _, r := range report.PaymentRetries {
		s.metrics.IncJoinDecision(domain.RetryPayment.String())
		if s.payments == nil {
			log.Error().Str("order_id", r.OrderID).Msg("saga joined but payment never acknowledged")
			continue
		}
		if err := pay(ctx, s.store, s.payments, r.OrderID, r.Snapshot); err != nil {
			log.Error().Err(err).Str("order_id", r.OrderID).Msg("payment retry failed")
		}
	}
	s.metrics.SweepEvictions.Add(float64(len(report.Evicted)))
	if len(report.Evicted) > 0 {
		log.Info().Int("evicted", len(report.Evicted)).Int("timed_out", len(report.TimedOut)).Msg("saga sweep finished")
	}
	return report, nil
}

// Run sweeps on the cron schedule until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(s.schedule, func() {
		if _, err := s.SweepOnce(ctx); err != nil {
			logger.Ctx(ctx).Error().Err(err).Msg("saga sweep failed")
		}
	}); err != nil {
		return err
	}
	c.Start()
	logger.Ctx(ctx).Info().Str("schedule", s.schedule).Msg("✅ saga sweeper started")

	<-ctx.Done()
	<-c.Stop().Done()
	logger.Ctx(ctx).Info().Msg("🛑 saga sweeper stopped")
	return nil
}
