package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chalkbyte/chalkbyte-api/internal/dto"
	"github.com/chalkbyte/chalkbyte-api/internal/models"
	"github.com/chalkbyte/chalkbyte-api/internal/repository"
	appErrors "github.com/chalkbyte/chalkbyte-api/pkg/errors"
)

type stubSessionRepo struct {
	sessions     map[string]*models.AcademicSessionWithStats
	active       *models.AcademicSessionWithStats
	termCount    int
	outsideCount int

	createErr error
	updateErr error

	createCalls     int
	updateCalls     int
	deleteCalls     int
	activateCalls   int
	deactivateCalls int
}

func (s *stubSessionRepo) List(_ context.Context, filter models.SessionFilter) ([]models.AcademicSessionWithStats, int, error) {
	var out []models.AcademicSessionWithStats
	for _, sess := range s.sessions {
		if filter.SchoolID != "" && sess.SchoolID != filter.SchoolID {
			continue
		}
		if filter.IsActive != nil && sess.IsActive != *filter.IsActive {
			continue
		}
		out = append(out, *sess)
	}
	return out, len(out), nil
}

func (s *stubSessionRepo) FindByID(_ context.Context, id string, scope models.Scope) (*models.AcademicSessionWithStats, error) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if !scope.Global() && sess.SchoolID != scope.SchoolID() {
		return nil, sql.ErrNoRows
	}
	copied := *sess
	return &copied, nil
}

func (s *stubSessionRepo) FindActiveBySchool(_ context.Context, schoolID string) (*models.AcademicSessionWithStats, error) {
	if s.active == nil || s.active.SchoolID != schoolID {
		return nil, sql.ErrNoRows
	}
	copied := *s.active
	return &copied, nil
}

func (s *stubSessionRepo) Create(_ context.Context, session *models.AcademicSession) error {
	s.createCalls++
	if s.createErr != nil {
		return s.createErr
	}
	session.ID = "sess-new"
	return nil
}

func (s *stubSessionRepo) Update(_ context.Context, session *models.AcademicSession) error {
	s.updateCalls++
	if s.updateErr != nil {
		return s.updateErr
	}
	if stored, ok := s.sessions[session.ID]; ok {
		stored.AcademicSession = *session
	}
	return nil
}

func (s *stubSessionRepo) Delete(_ context.Context, id string, scope models.Scope) error {
	s.deleteCalls++
	sess, ok := s.sessions[id]
	if !ok || (!scope.Global() && sess.SchoolID != scope.SchoolID()) {
		return sql.ErrNoRows
	}
	delete(s.sessions, id)
	return nil
}

func (s *stubSessionRepo) Activate(_ context.Context, id string, scope models.Scope) (*models.AcademicSession, error) {
	s.activateCalls++
	sess, ok := s.sessions[id]
	if !ok || (!scope.Global() && sess.SchoolID != scope.SchoolID()) {
		return nil, sql.ErrNoRows
	}
	for _, other := range s.sessions {
		if other.SchoolID == sess.SchoolID && other.ID != id {
			other.IsActive = false
		}
	}
	sess.IsActive = true
	copied := sess.AcademicSession
	return &copied, nil
}

func (s *stubSessionRepo) Deactivate(_ context.Context, id string, scope models.Scope) (*models.AcademicSession, error) {
	s.deactivateCalls++
	sess, ok := s.sessions[id]
	if !ok || (!scope.Global() && sess.SchoolID != scope.SchoolID()) {
		return nil, sql.ErrNoRows
	}
	sess.IsActive = false
	copied := sess.AcademicSession
	return &copied, nil
}

func (s *stubSessionRepo) CountTermsOutsideRange(_ context.Context, _ string, _, _ time.Time) (int, error) {
	return s.outsideCount, nil
}

func (s *stubSessionRepo) CountTerms(_ context.Context, _ string) (int, error) {
	return s.termCount, nil
}

func sessionFixture(id, schoolID string, active bool) *models.AcademicSessionWithStats {
	return &models.AcademicSessionWithStats{
		AcademicSession: models.AcademicSession{
			ID:        id,
			Name:      "2025/2026",
			SchoolID:  schoolID,
			StartDate: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC),
			IsActive:  active,
		},
	}
}

func TestSessionServiceCreateRejectsInvertedDates(t *testing.T) {
	repo := &stubSessionRepo{sessions: map[string]*models.AcademicSessionWithStats{}}
	svc := NewSessionService(repo, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), "school-1", dto.CreateSessionRequest{
		Name:      "Backwards",
		StartDate: dto.NewDate(2026, 6, 30),
		EndDate:   dto.NewDate(2025, 9, 1),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 0, repo.createCalls)
}

func TestSessionServiceCreateMapsDuplicateName(t *testing.T) {
	repo := &stubSessionRepo{
		sessions:  map[string]*models.AcademicSessionWithStats{},
		createErr: &pq.Error{Code: "23505", Constraint: repository.ConstraintSessionNamePerSchool},
	}
	svc := NewSessionService(repo, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), "school-1", dto.CreateSessionRequest{
		Name:      "2025/2026",
		StartDate: dto.NewDate(2025, 9, 1),
		EndDate:   dto.NewDate(2026, 6, 30),
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "already exists")
}

func TestSessionServiceCreateStartsInactive(t *testing.T) {
	repo := &stubSessionRepo{sessions: map[string]*models.AcademicSessionWithStats{}}
	svc := NewSessionService(repo, nil, zap.NewNop())

	session, err := svc.Create(context.Background(), "school-1", dto.CreateSessionRequest{
		Name:      "2025/2026",
		StartDate: dto.NewDate(2025, 9, 1),
		EndDate:   dto.NewDate(2026, 6, 30),
	})
	require.NoError(t, err)
	assert.False(t, session.IsActive)
	assert.Equal(t, "school-1", session.SchoolID)
}

func TestSessionServiceGetScopeMismatchIsNotFound(t *testing.T) {
	repo := &stubSessionRepo{sessions: map[string]*models.AcademicSessionWithStats{
		"sess-1": sessionFixture("sess-1", "school-1", false),
	}}
	svc := NewSessionService(repo, nil, zap.NewNop())

	_, err := svc.Get(context.Background(), "sess-1", models.TenantScope("school-2"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	found, err := svc.Get(context.Background(), "sess-1", models.TenantScope("school-1"))
	require.NoError(t, err)
	assert.Equal(t, "sess-1", found.ID)
}

func TestSessionServiceGetActiveAbsenceIsNil(t *testing.T) {
	repo := &stubSessionRepo{sessions: map[string]*models.AcademicSessionWithStats{}}
	svc := NewSessionService(repo, nil, zap.NewNop())

	session, err := svc.GetActiveForSchool(context.Background(), "school-1")
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestSessionServiceListPinsTenantScope(t *testing.T) {
	repo := &stubSessionRepo{sessions: map[string]*models.AcademicSessionWithStats{
		"sess-1": sessionFixture("sess-1", "school-1", false),
		"sess-2": sessionFixture("sess-2", "school-2", false),
	}}
	svc := NewSessionService(repo, nil, zap.NewNop())

	// The tenant scope wins over a filter naming another school.
	sessions, meta, err := svc.List(context.Background(), models.TenantScope("school-1"),
		models.SessionFilter{SchoolID: "school-2"})
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "school-1", sessions[0].SchoolID)
	assert.Equal(t, 1, meta.Total)
}

func TestSessionServiceUpdateClearsDescription(t *testing.T) {
	fixture := sessionFixture("sess-1", "school-1", false)
	desc := "old description"
	fixture.Description = &desc
	repo := &stubSessionRepo{sessions: map[string]*models.AcademicSessionWithStats{"sess-1": fixture}}
	svc := NewSessionService(repo, nil, zap.NewNop())

	updated, err := svc.Update(context.Background(), "sess-1", models.GlobalScope(), dto.UpdateSessionRequest{
		Description: dto.NullableString{Set: true, Value: nil},
	})
	require.NoError(t, err)
	assert.Nil(t, updated.Description)
	assert.Equal(t, "2025/2026", updated.Name)
}

func TestSessionServiceUpdateKeepsUnsetDescription(t *testing.T) {
	fixture := sessionFixture("sess-1", "school-1", false)
	desc := "keep me"
	fixture.Description = &desc
	repo := &stubSessionRepo{sessions: map[string]*models.AcademicSessionWithStats{"sess-1": fixture}}
	svc := NewSessionService(repo, nil, zap.NewNop())

	name := "Renamed"
	updated, err := svc.Update(context.Background(), "sess-1", models.GlobalScope(), dto.UpdateSessionRequest{
		Name: &name,
	})
	require.NoError(t, err)
	require.NotNil(t, updated.Description)
	assert.Equal(t, "keep me", *updated.Description)
	assert.Equal(t, "Renamed", updated.Name)
}

func TestSessionServiceUpdateBlockedByOrphanedTerms(t *testing.T) {
	repo := &stubSessionRepo{
		sessions:     map[string]*models.AcademicSessionWithStats{"sess-1": sessionFixture("sess-1", "school-1", false)},
		outsideCount: 2,
	}
	svc := NewSessionService(repo, nil, zap.NewNop())

	start := dto.NewDate(2025, 10, 1)
	_, err := svc.Update(context.Background(), "sess-1", models.GlobalScope(), dto.UpdateSessionRequest{
		StartDate: &start,
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "2 term(s)")
	assert.Equal(t, 0, repo.updateCalls)
}

func TestSessionServiceDeleteBlockedByTerms(t *testing.T) {
	repo := &stubSessionRepo{
		sessions:  map[string]*models.AcademicSessionWithStats{"sess-1": sessionFixture("sess-1", "school-1", false)},
		termCount: 3,
	}
	svc := NewSessionService(repo, nil, zap.NewNop())

	err := svc.Delete(context.Background(), "sess-1", models.GlobalScope())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 0, repo.deleteCalls)
}

func TestSessionServiceDeleteEmptySession(t *testing.T) {
	repo := &stubSessionRepo{
		sessions: map[string]*models.AcademicSessionWithStats{"sess-1": sessionFixture("sess-1", "school-1", false)},
	}
	svc := NewSessionService(repo, nil, zap.NewNop())

	require.NoError(t, svc.Delete(context.Background(), "sess-1", models.GlobalScope()))
	assert.Empty(t, repo.sessions)
}

func TestSessionServiceActivateSwitchesActiveSession(t *testing.T) {
	repo := &stubSessionRepo{sessions: map[string]*models.AcademicSessionWithStats{
		"sess-1": sessionFixture("sess-1", "school-1", true),
		"sess-2": sessionFixture("sess-2", "school-1", false),
	}}
	svc := NewSessionService(repo, nil, zap.NewNop())

	session, err := svc.Activate(context.Background(), "sess-2", models.TenantScope("school-1"))
	require.NoError(t, err)
	assert.True(t, session.IsActive)
	assert.False(t, repo.sessions["sess-1"].IsActive)
}

func TestSessionServiceActivateUnknownIsNotFound(t *testing.T) {
	repo := &stubSessionRepo{sessions: map[string]*models.AcademicSessionWithStats{}}
	svc := NewSessionService(repo, nil, zap.NewNop())

	_, err := svc.Activate(context.Background(), "nope", models.GlobalScope())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSessionServiceDeactivateIsIdempotent(t *testing.T) {
	repo := &stubSessionRepo{sessions: map[string]*models.AcademicSessionWithStats{
		"sess-1": sessionFixture("sess-1", "school-1", true),
	}}
	svc := NewSessionService(repo, nil, zap.NewNop())

	first, err := svc.Deactivate(context.Background(), "sess-1", models.GlobalScope())
	require.NoError(t, err)
	assert.False(t, first.IsActive)

	second, err := svc.Deactivate(context.Background(), "sess-1", models.GlobalScope())
	require.NoError(t, err)
	assert.False(t, second.IsActive)
	assert.Equal(t, 2, repo.deactivateCalls)
}

func TestSessionServiceInternalErrorsAreWrapped(t *testing.T) {
	repo := &stubSessionRepo{
		sessions:  map[string]*models.AcademicSessionWithStats{},
		createErr: errors.New("connection reset"),
	}
	svc := NewSessionService(repo, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), "school-1", dto.CreateSessionRequest{
		Name:      "2025/2026",
		StartDate: dto.NewDate(2025, 9, 1),
		EndDate:   dto.NewDate(2026, 6, 30),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}
