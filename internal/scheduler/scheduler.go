package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/medilink/medilink/internal/clock"
	"github.com/medilink/medilink/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("scheduler",
	fx.Provide(New),
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Cfg   config.Config
	Clock clock.Clock
}

// Scheduler runs housekeeping jobs on a fixed interval. It is never on the webhook path.
type Scheduler struct {
	db    *gorm.DB
	log   *zap.Logger
	cfg   config.SchedulerConfig
	clock clock.Clock

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func New(p Params) *Scheduler {
	return &Scheduler{
		db:    p.DB,
		log:   p.Log.Named("scheduler"),
		cfg:   p.Cfg.Scheduler,
		clock: p.Clock,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// RunOnce runs every job a single time and returns the first error.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	return s.CleanupWebhookEvents(ctx)
}

// RunForever runs jobs immediately and then on every tick until Stop is called or ctx ends.
func (s *Scheduler) RunForever(ctx context.Context) {
	defer close(s.done)

	interval := s.cfg.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info("scheduler started", zap.Duration("interval", interval))
	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Error("scheduler run failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
		}
	}
}

// Stop signals RunForever to exit and waits for it, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.once.Do(func() { close(s.stop) })
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start hooks the scheduler into the fx lifecycle when it is enabled.
func Start(lc fx.Lifecycle, s *Scheduler) {
	if !s.cfg.Enabled {
		s.log.Info("scheduler disabled")
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go s.RunForever(context.Background())
			return nil
		},
		OnStop: s.Stop,
	})
}
