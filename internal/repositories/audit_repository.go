package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"marketplace_ops_backend/internal/models"
)

// AuditRepository defines the database operations on the operator audit trail.
type AuditRepository interface {
	CreateAuditLog(ctx context.Context, executor SQLExecutor, entry *models.AuditLog) (int64, error)
	GetAuditLogs(ctx context.Context, filters models.AuditLogFilters) ([]models.AuditLog, int, error)
}

type auditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new instance of AuditRepository.
func NewAuditRepository(db *sql.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) CreateAuditLog(ctx context.Context, executor SQLExecutor, entry *models.AuditLog) (int64, error) {
	var details []byte
	if entry.Details != nil {
		var err error
		details, err = json.Marshal(entry.Details)
		if err != nil {
			return 0, fmt.Errorf("%w: encoding audit details: %v", ErrDatabaseError, err)
		}
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	query := `INSERT INTO audit_logs (actor_id, actor_name, action, entity, entity_id, details, request_id, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	          RETURNING id`
	err := executor.QueryRowContext(ctx, query,
		entry.ActorID, entry.ActorName, entry.Action, entry.Entity, entry.EntityID, details, entry.RequestID, entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return 0, wrapWriteError(err, "creating audit log")
	}
	return entry.ID, nil
}

func (r *auditRepository) GetAuditLogs(ctx context.Context, filters models.AuditLogFilters) ([]models.AuditLog, int, error) {
	logs := []models.AuditLog{}
	totalCount := 0

	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT id, actor_id, actor_name, action, entity, entity_id, details, request_id, created_at,
	    COUNT(*) OVER() AS total_count
	  FROM audit_logs`)

	var conditions []string
	var args []interface{}
	argCounter := 1
	if filters.Entity != nil && *filters.Entity != "" {
		conditions = append(conditions, fmt.Sprintf("entity = $%d", argCounter))
		args = append(args, *filters.Entity)
		argCounter++
	}
	if filters.EntityID != nil && *filters.EntityID != "" {
		conditions = append(conditions, fmt.Sprintf("entity_id = $%d", argCounter))
		args = append(args, *filters.EntityID)
		argCounter++
	}
	if len(conditions) > 0 {
		queryBuilder.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	}
	limit, offset := pageOffset(filters.Page, filters.PageSize)
	queryBuilder.WriteString(fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", argCounter, argCounter+1))
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: querying audit logs: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	for rows.Next() {
		var entry models.AuditLog
		var details []byte
		if err := rows.Scan(
			&entry.ID, &entry.ActorID, &entry.ActorName, &entry.Action, &entry.Entity, &entry.EntityID,
			&details, &entry.RequestID, &entry.CreatedAt, &totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("%w: scanning audit log: %v", ErrDatabaseError, err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &entry.Details); err != nil {
				return nil, 0, fmt.Errorf("%w: decoding audit details for log %d: %v", ErrDatabaseError, entry.ID, err)
			}
		}
		logs = append(logs, entry)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: iterating audit logs: %v", ErrDatabaseError, err)
	}
	return logs, totalCount, nil
}
