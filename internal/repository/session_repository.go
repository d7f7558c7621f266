package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/chalkbyte/chalkbyte-api/internal/models"
)

const sessionStatsSelect = `SELECT
		s.id, s.name, s.description, s.school_id, s.start_date, s.end_date,
		s.is_active, s.created_at, s.updated_at,
		COUNT(t.id) AS term_count
	FROM academic_sessions s
	LEFT JOIN terms t ON t.academic_session_id = s.id`

// SessionRepository handles persistence for academic sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository instantiates a session repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// List returns sessions matching the filter, newest school year first, each
// enriched with its term count.
func (r *SessionRepository) List(ctx context.Context, filter models.SessionFilter) ([]models.AcademicSessionWithStats, int, error) {
	var conditions []string
	var args []interface{}

	if filter.SchoolID != "" {
		conditions = append(conditions, fmt.Sprintf("s.school_id = $%d", len(args)+1))
		args = append(args, filter.SchoolID)
	}
	if filter.IsActive != nil {
		conditions = append(conditions, fmt.Sprintf("s.is_active = $%d", len(args)+1))
		args = append(args, *filter.IsActive)
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT COUNT(*) FROM academic_sessions s" + where
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count academic sessions: %w", err)
	}

	pager := filter.Pager.Normalize()
	query := fmt.Sprintf("%s%s GROUP BY s.id ORDER BY s.start_date DESC LIMIT %d OFFSET %d",
		sessionStatsSelect, where, pager.Limit, pager.Offset)

	var sessions []models.AcademicSessionWithStats
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list academic sessions: %w", err)
	}

	return sessions, total, nil
}

// FindByID loads a session with its term count. A tenant scope narrows the
// lookup so a foreign session is indistinguishable from a missing one.
func (r *SessionRepository) FindByID(ctx context.Context, id string, scope models.Scope) (*models.AcademicSessionWithStats, error) {
	query := sessionStatsSelect + " WHERE s.id = $1"
	args := []interface{}{id}
	if !scope.Global() {
		query += " AND s.school_id = $2"
		args = append(args, scope.SchoolID())
	}
	query += " GROUP BY s.id"

	var session models.AcademicSessionWithStats
	if err := r.db.GetContext(ctx, &session, query, args...); err != nil {
		return nil, err
	}
	return &session, nil
}

// FindActiveBySchool returns the school's single active session, or
// sql.ErrNoRows when none is active.
func (r *SessionRepository) FindActiveBySchool(ctx context.Context, schoolID string) (*models.AcademicSessionWithStats, error) {
	query := sessionStatsSelect + " WHERE s.school_id = $1 AND s.is_active = TRUE GROUP BY s.id"
	var session models.AcademicSessionWithStats
	if err := r.db.GetContext(ctx, &session, query, schoolID); err != nil {
		return nil, err
	}
	return &session, nil
}

// Create inserts a new session record. Sessions always start inactive.
func (r *SessionRepository) Create(ctx context.Context, session *models.AcademicSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	session.IsActive = false
	session.CreatedAt = now
	session.UpdatedAt = now

	const query = `INSERT INTO academic_sessions (id, name, description, school_id, start_date, end_date, is_active, created_at, updated_at)
		VALUES (:id, :name, :description, :school_id, :start_date, :end_date, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create academic session: %w", err)
	}
	return nil
}

// Update persists the mutable fields of a session.
func (r *SessionRepository) Update(ctx context.Context, session *models.AcademicSession) error {
	session.UpdatedAt = time.Now().UTC()
	const query = `UPDATE academic_sessions
		SET name = :name, description = :description, start_date = :start_date, end_date = :end_date, updated_at = :updated_at
		WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("update academic session: %w", err)
	}
	return nil
}

// Delete removes a session permanently. Returns sql.ErrNoRows when the id is
// absent or out of scope.
func (r *SessionRepository) Delete(ctx context.Context, id string, scope models.Scope) error {
	query := "DELETE FROM academic_sessions WHERE id = $1"
	args := []interface{}{id}
	if !scope.Global() {
		query += " AND school_id = $2"
		args = append(args, scope.SchoolID())
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete academic session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete academic session: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Activate marks the target session active and deactivates every other
// session of the same school. The whole transition runs in one transaction
// so a concurrent reader never observes zero or two active sessions.
func (r *SessionRepository) Activate(ctx context.Context, id string, scope models.Scope) (*models.AcademicSession, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin activate tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := "SELECT id, name, description, school_id, start_date, end_date, is_active, created_at, updated_at FROM academic_sessions WHERE id = $1"
	args := []interface{}{id}
	if !scope.Global() {
		query += " AND school_id = $2"
		args = append(args, scope.SchoolID())
	}
	query += " FOR UPDATE"

	var target models.AcademicSession
	if err = tx.GetContext(ctx, &target, query, args...); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if _, err = tx.ExecContext(ctx,
		`UPDATE academic_sessions SET is_active = FALSE, updated_at = $1 WHERE school_id = $2 AND is_active = TRUE AND id <> $3`,
		now, target.SchoolID, id); err != nil {
		return nil, fmt.Errorf("deactivate sibling sessions: %w", err)
	}

	var session models.AcademicSession
	if err = tx.GetContext(ctx, &session,
		`UPDATE academic_sessions SET is_active = TRUE, updated_at = $2 WHERE id = $1
		 RETURNING id, name, description, school_id, start_date, end_date, is_active, created_at, updated_at`,
		id, now); err != nil {
		return nil, fmt.Errorf("activate academic session: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit activate tx: %w", err)
	}
	return &session, nil
}

// Deactivate clears a session's active flag and, in the same transaction,
// forces every child term out of the current state.
func (r *SessionRepository) Deactivate(ctx context.Context, id string, scope models.Scope) (*models.AcademicSession, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin deactivate tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	query := "UPDATE academic_sessions SET is_active = FALSE, updated_at = $2 WHERE id = $1"
	args := []interface{}{id, now}
	if !scope.Global() {
		query += " AND school_id = $3"
		args = append(args, scope.SchoolID())
	}
	query += " RETURNING id, name, description, school_id, start_date, end_date, is_active, created_at, updated_at"

	var session models.AcademicSession
	if err = tx.GetContext(ctx, &session, query, args...); err != nil {
		return nil, err
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE terms SET is_current = FALSE, updated_at = $2 WHERE academic_session_id = $1 AND is_current = TRUE`,
		id, now); err != nil {
		return nil, fmt.Errorf("clear current terms: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit deactivate tx: %w", err)
	}
	return &session, nil
}

// CountTermsOutsideRange counts child terms whose dates would fall outside
// the candidate session range.
func (r *SessionRepository) CountTermsOutsideRange(ctx context.Context, sessionID string, start, end time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM terms WHERE academic_session_id = $1 AND (start_date < $2 OR end_date > $3)`
	var count int
	if err := r.db.GetContext(ctx, &count, query, sessionID, start, end); err != nil {
		return 0, fmt.Errorf("count terms outside range: %w", err)
	}
	return count, nil
}

// CountTerms returns the number of child terms of a session.
func (r *SessionRepository) CountTerms(ctx context.Context, sessionID string) (int, error) {
	const query = `SELECT COUNT(*) FROM terms WHERE academic_session_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, sessionID); err != nil {
		return 0, fmt.Errorf("count terms: %w", err)
	}
	return count, nil
}
