package scheduler

import (
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// Sweeper drops expired entries and reports how many it removed.
type Sweeper interface {
	Sweep() int
}

// Scheduler periodically sweeps the registered caches.
type Scheduler struct {
	scheduler *gocron.Scheduler
	caches    map[string]Sweeper
	interval  time.Duration
	log       *zap.Logger
}

// New creates a new Scheduler.
func New(interval time.Duration, caches map[string]Sweeper, log *zap.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		caches:    caches,
		interval:  interval,
		log:       log,
	}
}

// RunOnce sweeps every cache immediately.
func (s *Scheduler) RunOnce() int {
	total := 0
	for name, c := range s.caches {
		n := c.Sweep()
		if n > 0 {
			s.log.Debug("cache sweep", zap.String("cache", name), zap.Int("expired", n))
		}
		total += n
	}
	return total
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if len(s.caches) == 0 {
		s.log.Info("scheduler: no caches registered; nothing to schedule")
		return nil
	}

	seconds := int(s.interval.Seconds())
	if seconds <= 0 {
		seconds = 300
	}

	_, err := s.scheduler.Every(seconds).Seconds().Do(func() {
		s.RunOnce()
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
