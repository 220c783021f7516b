package sweeper

import (
	"context"
	"sync"
	"time"

	dompayment "github.com/TLF1607916/loopbuy-trade/internal/domain/payment"
	"github.com/TLF1607916/loopbuy-trade/internal/pkg/apperr"
	"github.com/TLF1607916/loopbuy-trade/internal/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Expirer settles one overdue payment and rolls back its orders.
type Expirer interface {
	ExpirePayment(ctx context.Context, ref string) (*dompayment.Payment, error)
}

// Metrics for the sweep loop. Register the collectors once at startup.
type Metrics struct {
	Expired prometheus.Counter
	Overdue prometheus.Gauge
}

func NewMetrics() *Metrics {
	return &Metrics{
		Expired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trade_payments_expired_total",
			Help: "Payments settled as TIMEOUT by the sweep.",
		}),
		Overdue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trade_payments_overdue",
			Help: "Pending payments past their deadline at the last sweep.",
		}),
	}
}

func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.Expired, m.Overdue}
}

// Sweeper periodically expires pending payments past their deadline. Every
// expiry goes through the coordinator's conditional swap, so a sweep racing a
// user confirmation settles exactly one way.
type Sweeper struct {
	repo     dompayment.Repository
	expirer  Expirer
	interval time.Duration
	metrics  *Metrics
	logger   *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	running bool
}

func New(repo dompayment.Repository, expirer Expirer, interval time.Duration, metrics *Metrics, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		repo:     repo,
		expirer:  expirer,
		interval: interval,
		metrics:  metrics,
		logger:   logger.With(zap.String("component", "payment_sweeper")),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start launches the sweep loop. Calling Start on a running sweeper is a
// no-op.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go s.loop(ctx, s.stop, s.done)
	s.logger.Info("sweeper_started", zap.Duration("interval", s.interval))
}

// Stop ends the loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stop, done := s.stop, s.done
	s.mu.Unlock()

	close(stop)
	<-done
	s.logger.Info("sweeper_stopped")
}

func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Sweeper) loop(ctx context.Context, stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.Error("sweep_pass_failed", zap.Error(err))
			}
		}
	}
}

// RunOnce expires every payment currently past its deadline and returns the
// number settled. One failed payment does not stop the pass.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	overdue, err := s.repo.FindExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if s.metrics != nil {
		s.metrics.Overdue.Set(float64(len(overdue)))
	}
	if len(overdue) == 0 {
		return 0, nil
	}

	expired := 0
	for _, p := range overdue {
		if err := s.expire(ctx, p.Ref); err != nil {
			continue
		}
		expired++
	}

	s.logger.Info("sweep_pass_done",
		zap.Int("overdue", len(overdue)),
		zap.Int("expired", expired),
	)
	return expired, nil
}

// SweepOne expires a single payment by reference, for the operator endpoint.
func (s *Sweeper) SweepOne(ctx context.Context, ref string) error {
	return s.expire(ctx, ref)
}

// Count reports how many pending payments are past their deadline right now.
func (s *Sweeper) Count(ctx context.Context) (int, error) {
	overdue, err := s.repo.FindExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	return len(overdue), nil
}

func (s *Sweeper) expire(ctx context.Context, ref string) error {
	logger := logging.FromContext(ctx).With(
		zap.String("component", "payment_sweeper"),
		zap.String("payment_ref", ref),
	)

	if _, err := s.expirer.ExpirePayment(ctx, ref); err != nil {
		// A confirm that won the race surfaces as a state conflict; that is
		// the intended resolution, not a failure.
		if apperr.IsStateConflict(err) {
			logger.Info("sweep_payment_already_settled")
			return err
		}
		logger.Error("sweep_payment_failed", zap.Error(err))
		return err
	}

	if s.metrics != nil {
		s.metrics.Expired.Inc()
	}
	logger.Info("sweep_payment_expired")
	return nil
}
