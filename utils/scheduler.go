package utils

import (
	"context"
	"log"
	"time"

	"lms/services"

	"github.com/robfig/cron/v3"
)

const sweepBatch = 200

// InitializeEngineScheduler starts the background sweep on the cron
// schedule. An empty schedule disables it and returns nil.
func InitializeEngineScheduler(engine *services.Engine, schedule string) (*cron.Cron, error) {
	if schedule == "" {
		log.Println("[SCHEDULER] SWEEP_CRON empty, background sweep disabled")
		return nil, nil
	}

	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(schedule, func() { RunEngineSweep(context.Background(), engine) }); err != nil {
		return nil, err
	}
	c.Start()

	log.Printf("[SCHEDULER] engine sweep scheduled: %s", schedule)
	return c, nil
}

// RunEngineSweep settles overdue quiz attempts and marks lapsed certificates
// expired. Requests already derive both at read time; the sweep keeps
// stored rows and listings current.
func RunEngineSweep(ctx context.Context, engine *services.Engine) {
	settled, err := engine.Quizzes.SettleOverdue(ctx, sweepBatch)
	if err != nil {
		log.Printf("[SCHEDULER] settling overdue attempts: %v", err)
	}
	if settled > 0 {
		log.Printf("[SCHEDULER] settled %d overdue attempts", settled)
	}

	expired, err := engine.Certificates.ExpireDue(ctx)
	if err != nil {
		log.Printf("[SCHEDULER] expiring certificates: %v", err)
	}
	if expired > 0 {
		log.Printf("[SCHEDULER] marked %d certificates expired", expired)
	}
}
