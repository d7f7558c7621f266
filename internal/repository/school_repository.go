package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/chalkbyte/chalkbyte-api/internal/models"
)

const schoolColumns = "id, name, address, created_at, updated_at"

// SchoolRepository handles persistence for schools.
type SchoolRepository struct {
	db *sqlx.DB
}

// NewSchoolRepository instantiates a school repository.
func NewSchoolRepository(db *sqlx.DB) *SchoolRepository {
	return &SchoolRepository{db: db}
}

// List returns schools matching the filter, ordered by name.
func (r *SchoolRepository) List(ctx context.Context, filter models.SchoolFilter) ([]models.School, int, error) {
	where := ""
	var args []interface{}
	if filter.Search != "" {
		where = " WHERE name ILIKE $1"
		args = append(args, "%"+filter.Search+"%")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM schools"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count schools: %w", err)
	}

	pager := filter.Pager.Normalize()
	query := fmt.Sprintf("SELECT %s FROM schools%s ORDER BY name ASC LIMIT %d OFFSET %d",
		schoolColumns, where, pager.Limit, pager.Offset)

	var schools []models.School
	if err := r.db.SelectContext(ctx, &schools, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list schools: %w", err)
	}

	return schools, total, nil
}

// FindByID loads a school by identifier.
func (r *SchoolRepository) FindByID(ctx context.Context, id string) (*models.School, error) {
	query := fmt.Sprintf("SELECT %s FROM schools WHERE id = $1", schoolColumns)
	var school models.School
	if err := r.db.GetContext(ctx, &school, query, id); err != nil {
		return nil, err
	}
	return &school, nil
}

// Exists reports whether a school with the given id is registered.
func (r *SchoolRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists int
	err := r.db.GetContext(ctx, &exists, "SELECT 1 FROM schools WHERE id = $1 LIMIT 1", id)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check school existence: %w", err)
	}
	return true, nil
}

// Create inserts a new school record.
func (r *SchoolRepository) Create(ctx context.Context, school *models.School) error {
	if school.ID == "" {
		school.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	school.CreatedAt = now
	school.UpdatedAt = now

	const query = `INSERT INTO schools (id, name, address, created_at, updated_at)
		VALUES (:id, :name, :address, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, school); err != nil {
		return fmt.Errorf("create school: %w", err)
	}
	return nil
}
