package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/room-reservation-api/internal/models"
)

// ReferenceRepository reads user types and departments.
type ReferenceRepository struct {
	db *sqlx.DB
}

// NewReferenceRepository constructs a ReferenceRepository.
func NewReferenceRepository(db *sqlx.DB) *ReferenceRepository {
	return &ReferenceRepository{db: db}
}

// ListUserTypes returns every user type ordered by id.
func (r *ReferenceRepository) ListUserTypes(ctx context.Context) ([]models.UserTypeInfo, error) {
	const query = `SELECT id, name, possible_duration FROM user_types ORDER BY id`
	var out []models.UserTypeInfo
	if err := r.db.SelectContext(ctx, &out, query); err != nil {
		return nil, fmt.Errorf("list user types: %w", err)
	}
	return out, nil
}

// FindUserType returns the reference row for a user type.
func (r *ReferenceRepository) FindUserType(ctx context.Context, name models.UserType) (*models.UserTypeInfo, error) {
	const query = `SELECT id, name, possible_duration FROM user_types WHERE name = $1`
	var out models.UserTypeInfo
	if err := r.db.GetContext(ctx, &out, query, name); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user type: %w", err)
	}
	return &out, nil
}

// ListDepartments returns every department ordered by name.
func (r *ReferenceRepository) ListDepartments(ctx context.Context) ([]models.Department, error) {
	const query = `SELECT id, name FROM departments ORDER BY name`
	var out []models.Department
	if err := r.db.SelectContext(ctx, &out, query); err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	return out, nil
}
