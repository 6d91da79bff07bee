package denylist

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const defaultCleanupSchedule = "0 0 * * * *"

// CleanupJob sweeps expired denylist entries on a cron schedule.
type CleanupJob struct {
	service  *Service
	log      *zap.Logger
	cron     *cron.Cron
	schedule string
	timeout  time.Duration
}

func NewCleanupJob(service *Service, log *zap.Logger, schedule string) *CleanupJob {
	if schedule == "" {
		schedule = defaultCleanupSchedule
	}
	return &CleanupJob{
		service:  service,
		log:      log,
		cron:     cron.New(cron.WithSeconds()),
		schedule: schedule,
		timeout:  time.Minute,
	}
}

func (j *CleanupJob) Start() error {
	if _, err := j.cron.AddFunc(j.schedule, j.Run); err != nil {
		return err
	}
	j.cron.Start()
	j.log.Info("denylist cleanup scheduled", zap.String("schedule", j.schedule))
	return nil
}

func (j *CleanupJob) Stop(ctx context.Context) error {
	select {
	case <-j.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run performs one sweep. Errors are logged; the next tick retries.
func (j *CleanupJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	n, err := j.service.CleanupExpired(ctx, j.service.now())
	if err != nil {
		j.log.Error("denylist cleanup failed", zap.Error(err))
		return
	}
	if n > 0 {
		j.log.Info("denylist cleanup", zap.Int64("deleted", n))
	}
}
