package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"marketplace_ops_backend/internal/models"
)

// AuthRepository defines the interface for operator account lookups.
type AuthRepository interface {
	FindUserByUsername(ctx context.Context, username string) (*models.User, error) // PasswordHash populated
	FindUserByID(ctx context.Context, userID int64) (*models.User, error)
}

type authRepository struct {
	db *sql.DB
}

// NewAuthRepository creates a new instance of AuthRepository.
func NewAuthRepository(db *sql.DB) AuthRepository {
	return &authRepository{db: db}
}

const userSelect = `
	SELECT u.id, u.username, u.password_hash, u.full_name, u.role_id, u.is_active, u.created_at, u.updated_at,
	       ro.name AS role_name
	FROM users u
	LEFT JOIN roles ro ON u.role_id = ro.id`

func scanUser(row scanner) (*models.User, error) {
	user := &models.User{}
	var roleName sql.NullString
	var roleID sql.NullInt64

	err := row.Scan(
		&user.ID, &user.Username, &user.PasswordHash, &user.FullName,
		&roleID, &user.IsActive, &user.CreatedAt, &user.UpdatedAt,
		&roleName,
	)
	if err != nil {
		return nil, err
	}
	if roleID.Valid {
		user.RoleID = &roleID.Int64
		if roleName.Valid {
			user.Role = &models.Role{ID: roleID.Int64, Name: roleName.String}
		}
	}
	return user, nil
}

// FindUserByUsername retrieves a user with its role and password hash.
func (r *authRepository) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, userSelect+` WHERE u.username = $1`, username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: finding user by username %s: %v", ErrDatabaseError, username, err)
	}
	return user, nil
}

// FindUserByID retrieves a user profile. The password hash is cleared.
func (r *authRepository) FindUserByID(ctx context.Context, userID int64) (*models.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, userSelect+` WHERE u.id = $1`, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: finding user by ID %d: %v", ErrDatabaseError, userID, err)
	}
	user.PasswordHash = ""
	return user, nil
}
