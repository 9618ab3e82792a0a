package services

import (
	"context"

	"marketplace_ops_backend/internal/metrics"
	"marketplace_ops_backend/internal/repositories"
	"marketplace_ops_backend/pkg/utils"
)

// Anomaly kinds reported by the integrity check.
const (
	AnomalyOrderInQueueAndWave = "order_in_queue_and_wave"
	AnomalyUnreversedIssue     = "unreversed_issue_for_queued_order"
)

// IntegrityReport is the result of one integrity check.
type IntegrityReport struct {
	DuplicatedOrders int `json:"duplicated_orders"`
	UnreversedIssues int `json:"unreversed_issues"`
}

type IntegrityService interface {
	Check(ctx context.Context) (*IntegrityReport, error)
}

type integrityService struct {
	repo repositories.IntegrityRepository
}

// NewIntegrityService creates a new instance of IntegrityService.
func NewIntegrityService(repo repositories.IntegrityRepository) IntegrityService {
	return &integrityService{repo: repo}
}

// Check counts cross-table inconsistencies and publishes them as gauges. It repairs nothing.
func (s *integrityService) Check(ctx context.Context) (*IntegrityReport, error) {
	duplicated, err := s.repo.CountDuplicatedOrders(ctx)
	if err != nil {
		return nil, err
	}
	unreversed, err := s.repo.CountUnreversedQueuedIssues(ctx)
	if err != nil {
		return nil, err
	}

	metrics.IntegrityAnomalies.WithLabelValues(AnomalyOrderInQueueAndWave).Set(float64(duplicated))
	metrics.IntegrityAnomalies.WithLabelValues(AnomalyUnreversedIssue).Set(float64(unreversed))

	report := &IntegrityReport{DuplicatedOrders: duplicated, UnreversedIssues: unreversed}
	if duplicated > 0 || unreversed > 0 {
		utils.LogWarn("Integrity check found anomalies", map[string]interface{}{
			AnomalyOrderInQueueAndWave: duplicated,
			AnomalyUnreversedIssue:     unreversed,
		})
	}
	return report, nil
}
