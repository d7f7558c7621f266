package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chalkbyte/chalkbyte-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var sessionStatsColumns = []string{
	"id", "name", "description", "school_id", "start_date", "end_date",
	"is_active", "created_at", "updated_at", "term_count",
}

func sessionStatsRow() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(sessionStatsColumns).
		AddRow("sess-1", "2025/2026", nil, "school-1",
			time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC),
			false, now, now, 2)
}

func TestSessionRepositoryListFiltersBySchool(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM academic_sessions s WHERE s.school_id = $1`)).
		WithArgs("school-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(`GROUP BY s.id ORDER BY s.start_date DESC LIMIT 20 OFFSET 0`)).
		WithArgs("school-1").
		WillReturnRows(sessionStatsRow())

	sessions, total, err := repo.List(context.Background(), models.SessionFilter{SchoolID: "school-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, sessions, 1)
	assert.Equal(t, 2, sessions[0].TermCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryFindByIDScoped(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE s.id = $1 AND s.school_id = $2 GROUP BY s.id`)).
		WithArgs("sess-1", "school-1").
		WillReturnRows(sessionStatsRow())

	session, err := repo.FindByID(context.Background(), "sess-1", models.TenantScope("school-1"))
	require.NoError(t, err)
	assert.Equal(t, "sess-1", session.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryActivateTransaction(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM academic_sessions WHERE id = $1 AND school_id = $2 FOR UPDATE`)).
		WithArgs("sess-2", "school-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "school_id", "start_date", "end_date", "is_active", "created_at", "updated_at"}).
			AddRow("sess-2", "2026/2027", nil, "school-1", now, now.AddDate(0, 10, 0), false, now, now))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE academic_sessions SET is_active = FALSE, updated_at = $1 WHERE school_id = $2 AND is_active = TRUE AND id <> $3`)).
		WithArgs(sqlmock.AnyArg(), "school-1", "sess-2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE academic_sessions SET is_active = TRUE, updated_at = $2 WHERE id = $1`)).
		WithArgs("sess-2", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "school_id", "start_date", "end_date", "is_active", "created_at", "updated_at"}).
			AddRow("sess-2", "2026/2027", nil, "school-1", now, now.AddDate(0, 10, 0), true, now, now))
	mock.ExpectCommit()

	session, err := repo.Activate(context.Background(), "sess-2", models.TenantScope("school-1"))
	require.NoError(t, err)
	assert.True(t, session.IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryActivateMissingRollsBack(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM academic_sessions WHERE id = $1 FOR UPDATE`)).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.Activate(context.Background(), "missing", models.GlobalScope())
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryDeactivateClearsCurrentTerm(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE academic_sessions SET is_active = FALSE, updated_at = $2 WHERE id = $1`)).
		WithArgs("sess-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "school_id", "start_date", "end_date", "is_active", "created_at", "updated_at"}).
			AddRow("sess-1", "2025/2026", nil, "school-1", now, now.AddDate(0, 10, 0), false, now, now))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE terms SET is_current = FALSE, updated_at = $2 WHERE academic_session_id = $1 AND is_current = TRUE`)).
		WithArgs("sess-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	session, err := repo.Deactivate(context.Background(), "sess-1", models.GlobalScope())
	require.NoError(t, err)
	assert.False(t, session.IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryDeleteReportsMissingRow(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM academic_sessions WHERE id = $1 AND school_id = $2`)).
		WithArgs("sess-1", "school-2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "sess-1", models.TenantScope("school-2"))
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryCountTermsOutsideRange(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	start := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM terms WHERE academic_session_id = $1 AND (start_date < $2 OR end_date > $3)`)).
		WithArgs("sess-1", start, end).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	count, err := repo.CountTermsOutsideRange(context.Background(), "sess-1", start, end)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
