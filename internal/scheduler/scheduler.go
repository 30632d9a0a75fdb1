// Package scheduler runs the periodic background jobs: the outbox pump
// and the cycle reset sweep.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chatwire/chatwire/internal/clock"
	"github.com/chatwire/chatwire/internal/events"
	"github.com/chatwire/chatwire/internal/ratelimit"
	usagedomain "github.com/chatwire/chatwire/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log        *zap.Logger
	Clock      clock.Clock
	UsageSvc   usagedomain.Service
	Dispatcher *events.Dispatcher
	Locker     *ratelimit.Locker `optional:"true"`
	Config     Config            `optional:"true"`
}

type Scheduler struct {
	log        *zap.Logger
	cfg        Config
	clock      clock.Clock
	usageSvc   usagedomain.Service
	dispatcher *events.Dispatcher
	locker     *ratelimit.Locker
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.UsageSvc == nil || p.Dispatcher == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:        p.Log.Named("scheduler"),
		cfg:        p.Config.withDefaults(),
		clock:      p.Clock,
		usageSvc:   p.UsageSvc,
		dispatcher: p.Dispatcher,
		locker:     p.Locker,
	}, nil
}

// runJob takes the distributed lock for the job when a locker is
// configured. A held lock means another instance owns this job right
// now; that is not an error.
func (s *Scheduler) runJob(parent context.Context, name string, timeout time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	if s.locker != nil {
		key := "chatwire:scheduler:" + name
		token, ok, err := s.locker.TryLock(ctx, key, s.cfg.LockTTL)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if !ok {
			return nil
		}
		defer func() {
			if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
				s.log.Warn("lock release failed", zap.String("job", name), zap.Error(err))
			}
		}()
	}

	err := fn(ctx)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.log.Warn("job timed out", zap.String("job", name), zap.Duration("timeout", timeout))
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	err = errors.Join(err, s.runJob(parent, "dispatch_events", 30*time.Second, func(ctx context.Context) error {
		dispatched, jobErr := s.dispatcher.DispatchPending(ctx, s.cfg.DispatchBatchSize)
		if dispatched > 0 {
			s.log.Debug("outbox events dispatched", zap.Int("count", dispatched))
		}
		return jobErr
	}))

	err = errors.Join(err, s.runJob(parent, "reset_cycles", 30*time.Second, func(ctx context.Context) error {
		reset, jobErr := s.usageSvc.ResetExpired(ctx, s.clock.Now(), s.cfg.ResetBatchSize)
		if reset > 0 {
			s.log.Info("expired cycles reset", zap.Int("count", reset))
		}
		return jobErr
	}))

	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
