package tasks

import (
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/Meekal-Jamil/travelbid/internal/config"
)

// NewScheduler registers the periodic maintenance tasks. An empty schedule
// disables the corresponding task.
func NewScheduler(rdb *redis.Client, cfg *config.Config) (*asynq.Scheduler, error) {
	scheduler := asynq.NewScheduler(RedisOpt(rdb), &asynq.SchedulerOpts{
		Location: time.UTC,
		PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
			if err != nil {
				log.Printf("ERROR enqueuing scheduled task: %v", err)
			}
		},
	})

	if cfg.BidExpirySchedule != "" {
		if _, err := scheduler.Register(cfg.BidExpirySchedule, NewExpireSweepTask()); err != nil {
			return nil, fmt.Errorf("invalid bid expiry schedule %q: %w", cfg.BidExpirySchedule, err)
		}
	}
	if cfg.StatsReconcileSchedule != "" {
		task, err := NewStatsReconcileTask("")
		if err != nil {
			return nil, err
		}
		if _, err := scheduler.Register(cfg.StatsReconcileSchedule, task); err != nil {
			return nil, fmt.Errorf("invalid stats reconcile schedule %q: %w", cfg.StatsReconcileSchedule, err)
		}
	}
	return scheduler, nil
}
