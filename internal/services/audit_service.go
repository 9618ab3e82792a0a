package services

import (
	"context"

	"marketplace_ops_backend/internal/models"
	"marketplace_ops_backend/internal/repositories"
)

type AuditService interface {
	GetAuditLogs(ctx context.Context, filters models.AuditLogFilters) ([]models.AuditLog, int, error)
}

type auditService struct {
	auditRepo repositories.AuditRepository
}

// NewAuditService creates a new instance of AuditService.
func NewAuditService(ar repositories.AuditRepository) AuditService {
	return &auditService{auditRepo: ar}
}

func (s *auditService) GetAuditLogs(ctx context.Context, filters models.AuditLogFilters) ([]models.AuditLog, int, error) {
	return s.auditRepo.GetAuditLogs(ctx, filters)
}
