package services

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/table-points/utils"
)

// Scheduler runs background jobs on cron expressions such as "@every 1h".
// A job still running when its next tick arrives is skipped.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

func NewScheduler() *Scheduler {
	logger := cron.PrintfLogger(utils.InfoLogger)
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(logger),
			cron.SkipIfStillRunning(logger),
		)),
		ctx:    ctx,
		cancel: cancel,
	}
}

// AddJob registers fn under a cron schedule. name is only used for logging.
func (s *Scheduler) AddJob(name, schedule string, fn func(ctx context.Context) error) error {
	_, err := s.cron.AddFunc(schedule, func() {
		start := time.Now()
		err := fn(s.ctx)
		entry := utils.InfoLogger.WithFields(logrus.Fields{
			"job":     name,
			"latency": time.Since(start).String(),
		})
		if err != nil {
			utils.ErrorLogger.WithField("job", name).Errorf("scheduled job failed: %v", err)
			return
		}
		entry.Debug("scheduled job done")
	})
	return err
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}
