package sweeper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cart-service/internal/service"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type Releaser interface {
	ReleaseStaleCarts(ctx context.Context, cutoff time.Time) (service.ReleaseResult, error)
}

// Scheduler по расписанию возвращает на склад брошенные корзины:
// всё, что не менялось дольше ttl.
type Scheduler struct {
	carts Releaser
	ttl   time.Duration
	log   *zap.Logger
	cron  *cron.Cron
	now   func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewScheduler(carts Releaser, ttl time.Duration, log *zap.Logger) *Scheduler {
	return &Scheduler{
		carts: carts,
		ttl:   ttl,
		log:   log,
		cron:  cron.New(),
		now:   time.Now,
	}
}

// Start регистрирует задачу по расписанию (cron-выражение или @every) и запускает планировщик.
func (s *Scheduler) Start(ctx context.Context, schedule string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return fmt.Errorf("sweeper already started")
	}

	jobCtx, cancel := context.WithCancel(ctx)
	if _, err := s.cron.AddFunc(schedule, func() {
		if _, err := s.RunOnceNow(jobCtx); err != nil {
			s.log.Error("stale carts release failed", zap.Error(err))
		}
	}); err != nil {
		cancel()
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}

	s.cancel = cancel
	s.log.Info("starting cart sweeper", zap.String("schedule", schedule), zap.Duration("ttl", s.ttl))
	s.cron.Start()
	return nil
}

// Stop отменяет текущий прогон и ждёт его завершения.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel == nil {
		return
	}

	s.log.Info("stopping cart sweeper")
	cancel()
	<-s.cron.Stop().Done()
}

// RunOnceNow выполняет один проход немедленно.
func (s *Scheduler) RunOnceNow(ctx context.Context) (service.ReleaseResult, error) {
	cutoff := s.now().Add(-s.ttl)
	res, err := s.carts.ReleaseStaleCarts(ctx, cutoff)
	if res.Users > 0 {
		s.log.Info("stale carts released",
			zap.Int("users", res.Users),
			zap.Int("items", res.Items),
			zap.Time("cutoff", cutoff),
		)
	}
	return res, err
}
