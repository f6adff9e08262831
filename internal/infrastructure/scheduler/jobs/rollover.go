// Package jobs contains the scheduled jobs PyShark runs.
package jobs

import (
	"context"

	"go.uber.org/zap"

	"github.com/MirasRuslanJR/PyShark/pkg/logger"
)

// DayRefresher is the part of ledger.Service the rollover job needs.
type DayRefresher interface {
	RefreshDay(ctx context.Context) (bool, error)
}

// DayRolloverJob resets the daily goal at the start of a new calendar day so
// the counter is fresh even when nobody has visited yet.
type DayRolloverJob struct {
	ledger DayRefresher
	logger *zap.Logger
}

// NewDayRolloverJob creates the job.
func NewDayRolloverJob(l DayRefresher, log *zap.Logger) *DayRolloverJob {
	if log == nil {
		log = logger.Nop()
	}
	return &DayRolloverJob{ledger: l, logger: log}
}

// Name implements scheduler.Job.
func (j *DayRolloverJob) Name() string { return "day_rollover" }

// Description implements scheduler.Job.
func (j *DayRolloverJob) Description() string {
	return "Reset the daily goal counter for the new day"
}

// Run implements scheduler.Job.
func (j *DayRolloverJob) Run(ctx context.Context) error {
	changed, err := j.ledger.RefreshDay(ctx)
	if err != nil {
		return err
	}
	if changed {
		j.logger.Info("daily goal rolled over")
	}
	return nil
}
