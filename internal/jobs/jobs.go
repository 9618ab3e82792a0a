package jobs

import (
	"context"
	"time"

	"marketplace_ops_backend/internal/services"
	"marketplace_ops_backend/pkg/utils"

	"github.com/go-co-op/gocron"
)

const (
	JobSweepPickSessions = "sweep-pick-sessions"
	JobIntegrityCheck    = "integrity-check"
)

// SweepPickSessions drops expired picking sessions.
func SweepPickSessions(picking services.PickingService) {
	if removed := picking.SweepExpired(); removed > 0 {
		utils.LogInfo("Expired picking sessions removed", map[string]interface{}{"removed": removed})
	}
}

// RunIntegrityCheck runs one integrity check bounded by timeout.
func RunIntegrityCheck(integrity services.IntegrityService, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if _, err := integrity.Check(ctx); err != nil {
		utils.LogError(err, "Integrity check failed")
	}
}

// Start schedules the background jobs and starts the scheduler in the background.
func Start(picking services.PickingService, integrity services.IntegrityService, integrityInterval time.Duration) (*gocron.Scheduler, error) {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	if _, err := s.Every(1).Minute().Tag(JobSweepPickSessions).Do(SweepPickSessions, picking); err != nil {
		return nil, err
	}
	if _, err := s.Every(integrityInterval).Tag(JobIntegrityCheck).Do(RunIntegrityCheck, integrity, integrityInterval/2); err != nil {
		return nil, err
	}

	s.StartAsync()
	utils.LogInfo("Background jobs started", map[string]interface{}{"jobs": []string{JobSweepPickSessions, JobIntegrityCheck}})
	return s, nil
}
