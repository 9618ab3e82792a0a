package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"marketplace_ops_backend/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingPicking struct {
	services.PickingService
	sweeps atomic.Int32
}

func (p *countingPicking) SweepExpired() int {
	p.sweeps.Add(1)
	return 2
}

type countingIntegrity struct {
	checks   atomic.Int32
	err      error
	deadline atomic.Bool
}

func (i *countingIntegrity) Check(ctx context.Context) (*services.IntegrityReport, error) {
	i.checks.Add(1)
	if _, ok := ctx.Deadline(); ok {
		i.deadline.Store(true)
	}
	return &services.IntegrityReport{}, i.err
}

func TestSweepPickSessions(t *testing.T) {
	picking := &countingPicking{}
	SweepPickSessions(picking)
	assert.Equal(t, int32(1), picking.sweeps.Load())
}

func TestRunIntegrityCheckBoundsContext(t *testing.T) {
	integrity := &countingIntegrity{err: errors.New("db down")}
	RunIntegrityCheck(integrity, time.Second)
	assert.Equal(t, int32(1), integrity.checks.Load())
	assert.True(t, integrity.deadline.Load())
}

func TestStartSchedulesJobs(t *testing.T) {
	picking := &countingPicking{}
	integrity := &countingIntegrity{}

	s, err := Start(picking, integrity, time.Hour)
	require.NoError(t, err)
	defer s.Stop()

	for _, tag := range []string{JobSweepPickSessions, JobIntegrityCheck} {
		jobs, err := s.FindJobsByTag(tag)
		require.NoError(t, err)
		assert.Len(t, jobs, 1, tag)
	}

	assert.Eventually(t, func() bool {
		return picking.sweeps.Load() >= 1 && integrity.checks.Load() >= 1
	}, 2*time.Second, 20*time.Millisecond)
}
