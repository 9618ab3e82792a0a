package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"marketplace_ops_backend/internal/models"
	"marketplace_ops_backend/internal/repositories"
	"marketplace_ops_backend/pkg/utils"
)

var (
	ErrForbidden         = errors.New("operation not permitted for this role")
	ErrValidation        = errors.New("validation error")
	ErrWaveNotFound      = errors.New("wave not found")
	ErrWaveOrderNotFound = errors.New("order not found in wave")
	ErrWaveBusy          = errors.New("wave is being modified by another operation")
	ErrInvalidWaveStatus = errors.New("invalid wave status")
	ErrOrderNotFound     = errors.New("order not found")
	ErrOrderNotQueued    = errors.New("order is not waiting in the queue")
	ErrInsufficientStock = errors.New("insufficient stock for sku")
	ErrDocumentExists    = errors.New("document number already exists")
	ErrNothingToPack     = errors.New("no documents pending packing for order")
	ErrInvalidShipping   = errors.New("invalid shipping status transition")
)

// withTx runs fn in one transaction and commits when it returns nil.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start database transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// requireRole returns ErrForbidden unless the actor holds one of roles.
func requireRole(actor models.Actor, roles ...string) error {
	if !actor.HasRole(roles...) {
		return fmt.Errorf("%w: %s", ErrForbidden, actor.Role)
	}
	return nil
}

// writeAudit records entry inside the caller's transaction.
func writeAudit(ctx context.Context, repo repositories.AuditRepository, tx repositories.SQLExecutor, actor models.Actor, action, entity, entityID string, details map[string]interface{}) error {
	entry := &models.AuditLog{
		ActorName: actor.DisplayName(),
		Action:    action,
		Entity:    entity,
		EntityID:  entityID,
		Details:   details,
		RequestID: utils.NewNullString(utils.RequestIDFromContext(ctx)),
	}
	if actor.UserID != 0 {
		id := actor.UserID
		entry.ActorID = &id
	}
	if _, err := repo.CreateAuditLog(ctx, tx, entry); err != nil {
		return fmt.Errorf("writing audit log for %s: %w", action, err)
	}
	return nil
}
