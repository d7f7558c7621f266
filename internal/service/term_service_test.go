package service

import (
	"context"
	"database/sql"
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

type stubTermRepo struct {
	terms   map[string]*models.TermWithSession
	current *models.TermWithSession

	createErr     error
	updateErr     error
	setCurrentErr error

	createCalls     int
	updateCalls     int
	setCurrentCalls int
	lastSequence    *int
}

func (s *stubTermRepo) ListBySession(_ context.Context, sessionID string, _ models.TermFilter) ([]models.Term, int, error) {
	terms, err := s.ListSiblings(context.Background(), sessionID)
	if err != nil {
		return nil, 0, err
	}
	return terms, len(terms), nil
}

func (s *stubTermRepo) ListSiblings(_ context.Context, sessionID string) ([]models.Term, error) {
	var out []models.Term
	for _, t := range s.terms {
		if t.AcademicSessionID == sessionID {
			out = append(out, t.Term)
		}
	}
	return out, nil
}

func (s *stubTermRepo) FindByID(_ context.Context, id string, scope models.Scope) (*models.TermWithSession, error) {
	term, ok := s.terms[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if !scope.Global() && term.SchoolID != scope.SchoolID() {
		return nil, sql.ErrNoRows
	}
	copied := *term
	return &copied, nil
}

func (s *stubTermRepo) FindCurrentBySchool(_ context.Context, schoolID string) (*models.TermWithSession, error) {
	if s.current == nil || s.current.SchoolID != schoolID {
		return nil, sql.ErrNoRows
	}
	copied := *s.current
	return &copied, nil
}

func (s *stubTermRepo) Create(_ context.Context, term *models.Term, sequence *int) error {
	s.createCalls++
	s.lastSequence = sequence
	if s.createErr != nil {
		return s.createErr
	}
	term.ID = "term-new"
	if sequence != nil {
		term.Sequence = *sequence
	} else {
		max := 0
		for _, t := range s.terms {
			if t.AcademicSessionID == term.AcademicSessionID && t.Sequence > max {
				max = t.Sequence
			}
		}
		term.Sequence = max + 1
	}
	return nil
}

func (s *stubTermRepo) Update(_ context.Context, term *models.Term) error {
	s.updateCalls++
	if s.updateErr != nil {
		return s.updateErr
	}
	if stored, ok := s.terms[term.ID]; ok {
		stored.Term = *term
	}
	return nil
}

func (s *stubTermRepo) Delete(_ context.Context, id string, scope models.Scope) error {
	term, ok := s.terms[id]
	if !ok || (!scope.Global() && term.SchoolID != scope.SchoolID()) {
		return sql.ErrNoRows
	}
	delete(s.terms, id)
	return nil
}

func (s *stubTermRepo) SetCurrent(_ context.Context, id string, scope models.Scope) (*models.Term, error) {
	s.setCurrentCalls++
	if s.setCurrentErr != nil {
		return nil, s.setCurrentErr
	}
	target, ok := s.terms[id]
	if !ok || (!scope.Global() && target.SchoolID != scope.SchoolID()) {
		return nil, sql.ErrNoRows
	}
	if !target.SessionIsActive {
		return nil, repository.ErrSessionNotActive
	}
	for _, t := range s.terms {
		if t.AcademicSessionID == target.AcademicSessionID {
			t.IsCurrent = false
		}
	}
	target.IsCurrent = true
	copied := target.Term
	return &copied, nil
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func termFixture(id, sessionID string, seq int, start, end time.Time) *models.TermWithSession {
	return &models.TermWithSession{
		Term: models.Term{
			ID:                id,
			Name:              "Term " + id,
			AcademicSessionID: sessionID,
			StartDate:         start,
			EndDate:           end,
			Sequence:          seq,
		},
		SessionName:     "2025/2026",
		SchoolID:        "school-1",
		SessionIsActive: true,
	}
}

func newTermServiceFixture(active bool) (*TermService, *stubTermRepo, *stubSessionRepo) {
	sessions := &stubSessionRepo{sessions: map[string]*models.AcademicSessionWithStats{
		"sess-1": sessionFixture("sess-1", "school-1", active),
	}}
	terms := &stubTermRepo{terms: map[string]*models.TermWithSession{}}
	svc := NewTermService(terms, sessions, nil, zap.NewNop())
	return svc, terms, sessions
}

func TestTermServiceCreateAssignsNextSequence(t *testing.T) {
	svc, terms, _ := newTermServiceFixture(false)
	terms.terms["term-1"] = termFixture("term-1", "sess-1", 1, date(2025, 9, 1), date(2025, 12, 20))

	term, err := svc.Create(context.Background(), "sess-1", models.GlobalScope(), dto.CreateTermRequest{
		Name:      "Second Semester",
		StartDate: dto.NewDate(2026, 1, 5),
		EndDate:   dto.NewDate(2026, 6, 20),
	})
	require.NoError(t, err)
	assert.Nil(t, terms.lastSequence)
	assert.Equal(t, 2, term.Sequence)
	assert.False(t, term.IsCurrent)
}

func TestTermServiceCreateRejectsDatesOutsideSession(t *testing.T) {
	svc, terms, _ := newTermServiceFixture(false)

	_, err := svc.Create(context.Background(), "sess-1", models.GlobalScope(), dto.CreateTermRequest{
		Name:      "Early Bird",
		StartDate: dto.NewDate(2025, 8, 1),
		EndDate:   dto.NewDate(2025, 12, 20),
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "within the academic session date range")
	assert.Contains(t, appErr.Message, "2025-09-01")
	assert.Equal(t, 0, terms.createCalls)
}

func TestTermServiceCreateRejectsOverlapNamingConflict(t *testing.T) {
	svc, terms, _ := newTermServiceFixture(false)
	terms.terms["term-1"] = termFixture("term-1", "sess-1", 1, date(2025, 9, 1), date(2025, 12, 20))

	_, err := svc.Create(context.Background(), "sess-1", models.GlobalScope(), dto.CreateTermRequest{
		Name:      "Overlapping",
		StartDate: dto.NewDate(2025, 12, 1),
		EndDate:   dto.NewDate(2026, 3, 1),
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "Term term-1")
	assert.Equal(t, 0, terms.createCalls)
}

func TestTermServiceCreateAllowsAdjacentTerms(t *testing.T) {
	svc, terms, _ := newTermServiceFixture(false)
	terms.terms["term-1"] = termFixture("term-1", "sess-1", 1, date(2025, 9, 1), date(2025, 12, 20))

	// Half-open intervals: a term starting exactly where another ends is fine.
	_, err := svc.Create(context.Background(), "sess-1", models.GlobalScope(), dto.CreateTermRequest{
		Name:      "Back To Back",
		StartDate: dto.NewDate(2025, 12, 20),
		EndDate:   dto.NewDate(2026, 6, 20),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, terms.createCalls)
}

func TestTermServiceCreateUnknownSessionIsNotFound(t *testing.T) {
	svc, _, _ := newTermServiceFixture(false)

	_, err := svc.Create(context.Background(), "missing", models.GlobalScope(), dto.CreateTermRequest{
		Name:      "Orphan",
		StartDate: dto.NewDate(2025, 9, 1),
		EndDate:   dto.NewDate(2025, 12, 20),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestTermServiceCreateScopeMismatchIsNotFound(t *testing.T) {
	svc, _, _ := newTermServiceFixture(false)

	_, err := svc.Create(context.Background(), "sess-1", models.TenantScope("school-2"), dto.CreateTermRequest{
		Name:      "Foreign",
		StartDate: dto.NewDate(2025, 9, 1),
		EndDate:   dto.NewDate(2025, 12, 20),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestTermServiceCreateMapsConstraintRaces(t *testing.T) {
	cases := []struct {
		name       string
		constraint string
		code       pq.ErrorCode
		want       string
	}{
		{"duplicate name", repository.ConstraintTermNamePerSession, "23505", "name"},
		{"duplicate sequence", repository.ConstraintTermSequencePerSession, "23505", "sequence"},
		{"overlap race", repository.ConstraintTermNoOverlap, "23P01", "overlap"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, terms, _ := newTermServiceFixture(false)
			terms.createErr = &pq.Error{Code: tc.code, Constraint: tc.constraint}

			_, err := svc.Create(context.Background(), "sess-1", models.GlobalScope(), dto.CreateTermRequest{
				Name:      "Raced",
				StartDate: dto.NewDate(2025, 9, 1),
				EndDate:   dto.NewDate(2025, 12, 20),
			})
			require.Error(t, err)
			appErr := appErrors.FromError(err)
			assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
			assert.Contains(t, appErr.Message, tc.want)
		})
	}
}

func TestTermServiceUpdateExcludesSelfFromOverlap(t *testing.T) {
	svc, terms, _ := newTermServiceFixture(false)
	terms.terms["term-1"] = termFixture("term-1", "sess-1", 1, date(2025, 9, 1), date(2025, 12, 20))

	// Shrinking a term inside its own old range must not trip the overlap
	// check against itself.
	end := dto.NewDate(2025, 12, 1)
	updated, err := svc.Update(context.Background(), "term-1", models.GlobalScope(), dto.UpdateTermRequest{
		EndDate: &end,
	})
	require.NoError(t, err)
	assert.Equal(t, date(2025, 12, 1), updated.EndDate)
}

func TestTermServiceUpdateRejectsOverlapWithSibling(t *testing.T) {
	svc, terms, _ := newTermServiceFixture(false)
	terms.terms["term-1"] = termFixture("term-1", "sess-1", 1, date(2025, 9, 1), date(2025, 12, 20))
	terms.terms["term-2"] = termFixture("term-2", "sess-1", 2, date(2026, 1, 5), date(2026, 6, 20))

	end := dto.NewDate(2026, 2, 1)
	_, err := svc.Update(context.Background(), "term-1", models.GlobalScope(), dto.UpdateTermRequest{
		EndDate: &end,
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "Term term-2")
	assert.Equal(t, 0, terms.updateCalls)
}

func TestTermServiceUpdateClearsDescription(t *testing.T) {
	svc, terms, _ := newTermServiceFixture(false)
	fixture := termFixture("term-1", "sess-1", 1, date(2025, 9, 1), date(2025, 12, 20))
	desc := "drop me"
	fixture.Description = &desc
	terms.terms["term-1"] = fixture

	updated, err := svc.Update(context.Background(), "term-1", models.GlobalScope(), dto.UpdateTermRequest{
		Description: dto.NullableString{Set: true, Value: nil},
	})
	require.NoError(t, err)
	assert.Nil(t, updated.Description)
}

func TestTermServiceSetCurrentRequiresActiveSession(t *testing.T) {
	svc, terms, _ := newTermServiceFixture(false)
	fixture := termFixture("term-1", "sess-1", 1, date(2025, 9, 1), date(2025, 12, 20))
	fixture.SessionIsActive = false
	terms.terms["term-1"] = fixture

	_, err := svc.SetCurrent(context.Background(), "term-1", models.GlobalScope())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "not active")
}

func TestTermServiceSetCurrentDemotesSibling(t *testing.T) {
	svc, terms, _ := newTermServiceFixture(true)
	first := termFixture("term-1", "sess-1", 1, date(2025, 9, 1), date(2025, 12, 20))
	first.IsCurrent = true
	terms.terms["term-1"] = first
	terms.terms["term-2"] = termFixture("term-2", "sess-1", 2, date(2026, 1, 5), date(2026, 6, 20))

	promoted, err := svc.SetCurrent(context.Background(), "term-2", models.TenantScope("school-1"))
	require.NoError(t, err)
	assert.True(t, promoted.IsCurrent)
	assert.False(t, terms.terms["term-1"].IsCurrent)
}

func TestTermServiceGetCurrentAbsenceIsNil(t *testing.T) {
	svc, _, _ := newTermServiceFixture(true)

	term, err := svc.GetCurrentForSchool(context.Background(), "school-1")
	require.NoError(t, err)
	assert.Nil(t, term)
}

func TestTermServiceListUnknownSessionIsNotFound(t *testing.T) {
	svc, _, _ := newTermServiceFixture(false)

	_, _, err := svc.List(context.Background(), "missing", models.GlobalScope(), models.TermFilter{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestTermServiceDeleteScopeMismatchIsNotFound(t *testing.T) {
	svc, terms, _ := newTermServiceFixture(false)
	terms.terms["term-1"] = termFixture("term-1", "sess-1", 1, date(2025, 9, 1), date(2025, 12, 20))

	err := svc.Delete(context.Background(), "term-1", models.TenantScope("school-2"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.Delete(context.Background(), "term-1", models.TenantScope("school-1")))
}
