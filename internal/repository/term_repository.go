package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/chalkbyte/chalkbyte-api/internal/models"
)

// ErrSessionNotActive is returned by SetCurrent when the parent session is
// not active at commit time.
var ErrSessionNotActive = errors.New("academic session is not active")

const termColumns = "id, name, description, academic_session_id, start_date, end_date, sequence, is_current, created_at, updated_at"

const termWithSessionSelect = `SELECT
		t.id, t.name, t.description, t.academic_session_id, t.start_date, t.end_date,
		t.sequence, t.is_current, t.created_at, t.updated_at,
		s.name AS session_name, s.school_id, s.is_active AS session_is_active
	FROM terms t
	JOIN academic_sessions s ON s.id = t.academic_session_id`

// TermRepository handles persistence for terms.
type TermRepository struct {
	db *sqlx.DB
}

// NewTermRepository instantiates a term repository.
func NewTermRepository(db *sqlx.DB) *TermRepository {
	return &TermRepository{db: db}
}

// ListBySession returns a session's terms ordered by sequence.
func (r *TermRepository) ListBySession(ctx context.Context, sessionID string, filter models.TermFilter) ([]models.Term, int, error) {
	conditions := []string{"academic_session_id = $1"}
	args := []interface{}{sessionID}

	if filter.IsCurrent != nil {
		conditions = append(conditions, fmt.Sprintf("is_current = $%d", len(args)+1))
		args = append(args, *filter.IsCurrent)
	}

	where := " WHERE " + strings.Join(conditions, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM terms"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count terms: %w", err)
	}

	pager := filter.Pager.Normalize()
	query := fmt.Sprintf("SELECT %s FROM terms%s ORDER BY sequence ASC LIMIT %d OFFSET %d",
		termColumns, where, pager.Limit, pager.Offset)

	var terms []models.Term
	if err := r.db.SelectContext(ctx, &terms, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list terms: %w", err)
	}

	return terms, total, nil
}

// ListSiblings loads every term of a session, for overlap validation.
func (r *TermRepository) ListSiblings(ctx context.Context, sessionID string) ([]models.Term, error) {
	query := fmt.Sprintf("SELECT %s FROM terms WHERE academic_session_id = $1 ORDER BY sequence ASC", termColumns)
	var terms []models.Term
	if err := r.db.SelectContext(ctx, &terms, query, sessionID); err != nil {
		return nil, fmt.Errorf("list sibling terms: %w", err)
	}
	return terms, nil
}

// FindByID loads a term joined to its parent session. A tenant scope narrows
// the lookup through the session's school.
func (r *TermRepository) FindByID(ctx context.Context, id string, scope models.Scope) (*models.TermWithSession, error) {
	query := termWithSessionSelect + " WHERE t.id = $1"
	args := []interface{}{id}
	if !scope.Global() {
		query += " AND s.school_id = $2"
		args = append(args, scope.SchoolID())
	}

	var term models.TermWithSession
	if err := r.db.GetContext(ctx, &term, query, args...); err != nil {
		return nil, err
	}
	return &term, nil
}

// FindCurrentBySchool returns the current term of the school's active
// session, or sql.ErrNoRows when there is none.
func (r *TermRepository) FindCurrentBySchool(ctx context.Context, schoolID string) (*models.TermWithSession, error) {
	query := termWithSessionSelect + " WHERE s.school_id = $1 AND s.is_active = TRUE AND t.is_current = TRUE"
	var term models.TermWithSession
	if err := r.db.GetContext(ctx, &term, query, schoolID); err != nil {
		return nil, err
	}
	return &term, nil
}

// Create inserts a new term. When sequence is nil the next free sequence in
// the session is assigned inside the INSERT itself, so two concurrent
// creates cannot both observe the same maximum.
func (r *TermRepository) Create(ctx context.Context, term *models.Term, sequence *int) error {
	if term.ID == "" {
		term.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	term.IsCurrent = false
	term.CreatedAt = now
	term.UpdatedAt = now

	const query = `INSERT INTO terms (id, name, description, academic_session_id, start_date, end_date, sequence, is_current, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6,
			COALESCE($7, (SELECT COALESCE(MAX(sequence), 0) + 1 FROM terms WHERE academic_session_id = $4)),
			FALSE, $8, $9)
		RETURNING sequence`
	if err := r.db.GetContext(ctx, &term.Sequence, query,
		term.ID, term.Name, term.Description, term.AcademicSessionID,
		term.StartDate, term.EndDate, sequence, term.CreatedAt, term.UpdatedAt); err != nil {
		return fmt.Errorf("create term: %w", err)
	}
	return nil
}

// Update persists the mutable fields of a term.
func (r *TermRepository) Update(ctx context.Context, term *models.Term) error {
	term.UpdatedAt = time.Now().UTC()
	const query = `UPDATE terms
		SET name = :name, description = :description, start_date = :start_date, end_date = :end_date, sequence = :sequence, updated_at = :updated_at
		WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, term); err != nil {
		return fmt.Errorf("update term: %w", err)
	}
	return nil
}

// Delete removes a term permanently. Returns sql.ErrNoRows when the id is
// absent or the parent session belongs to another school.
func (r *TermRepository) Delete(ctx context.Context, id string, scope models.Scope) error {
	query := "DELETE FROM terms WHERE id = $1"
	args := []interface{}{id}
	if !scope.Global() {
		query = `DELETE FROM terms t USING academic_sessions s
			WHERE t.academic_session_id = s.id AND t.id = $1 AND s.school_id = $2`
		args = append(args, scope.SchoolID())
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete term: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete term: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetCurrent promotes a term to current, demoting any sibling. The parent
// session's active flag is re-read under lock inside the same transaction,
// so a concurrent Deactivate cannot slip between the check and the write.
func (r *TermRepository) SetCurrent(ctx context.Context, id string, scope models.Scope) (*models.Term, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin set current tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := termWithSessionSelect + " WHERE t.id = $1"
	args := []interface{}{id}
	if !scope.Global() {
		query += " AND s.school_id = $2"
		args = append(args, scope.SchoolID())
	}
	query += " FOR UPDATE OF t, s"

	var target models.TermWithSession
	if err = tx.GetContext(ctx, &target, query, args...); err != nil {
		return nil, err
	}
	if !target.SessionIsActive {
		err = ErrSessionNotActive
		return nil, err
	}

	now := time.Now().UTC()
	if _, err = tx.ExecContext(ctx,
		`UPDATE terms SET is_current = FALSE, updated_at = $2 WHERE academic_session_id = $1 AND is_current = TRUE AND id <> $3`,
		target.AcademicSessionID, now, id); err != nil {
		return nil, fmt.Errorf("demote sibling terms: %w", err)
	}

	var term models.Term
	if err = tx.GetContext(ctx, &term,
		fmt.Sprintf(`UPDATE terms SET is_current = TRUE, updated_at = $2 WHERE id = $1 RETURNING %s`, termColumns),
		id, now); err != nil {
		return nil, fmt.Errorf("promote term: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit set current tx: %w", err)
	}
	return &term, nil
}
