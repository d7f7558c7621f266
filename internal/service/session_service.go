package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/chalkbyte/chalkbyte-api/internal/dto"
	"github.com/chalkbyte/chalkbyte-api/internal/models"
	"github.com/chalkbyte/chalkbyte-api/internal/repository"
	appErrors "github.com/chalkbyte/chalkbyte-api/pkg/errors"
)

type sessionRepository interface {
	List(ctx context.Context, filter models.SessionFilter) ([]models.AcademicSessionWithStats, int, error)
	FindByID(ctx context.Context, id string, scope models.Scope) (*models.AcademicSessionWithStats, error)
	FindActiveBySchool(ctx context.Context, schoolID string) (*models.AcademicSessionWithStats, error)
	Create(ctx context.Context, session *models.AcademicSession) error
	Update(ctx context.Context, session *models.AcademicSession) error
	Delete(ctx context.Context, id string, scope models.Scope) error
	Activate(ctx context.Context, id string, scope models.Scope) (*models.AcademicSession, error)
	Deactivate(ctx context.Context, id string, scope models.Scope) (*models.AcademicSession, error)
	CountTermsOutsideRange(ctx context.Context, sessionID string, start, end time.Time) (int, error)
	CountTerms(ctx context.Context, sessionID string) (int, error)
}

// SessionService owns the academic-session lifecycle: creation, updates,
// deletion and the one-active-session-per-school transition.
type SessionService struct {
	repo      sessionRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSessionService creates a new session service instance.
func NewSessionService(repo sessionRepository, validate *validator.Validate, logger *zap.Logger) *SessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{repo: repo, validator: validate, logger: logger}
}

// Create adds a new, inactive session for the given school.
func (s *SessionService) Create(ctx context.Context, schoolID string, req dto.CreateSessionRequest) (*models.AcademicSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}
	if !req.StartDate.Before(req.EndDate.Time) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_date must be before end_date")
	}

	session := &models.AcademicSession{
		Name:        req.Name,
		Description: req.Description,
		SchoolID:    schoolID,
		StartDate:   req.StartDate.Time,
		EndDate:     req.EndDate.Time,
	}

	if err := s.repo.Create(ctx, session); err != nil {
		if repository.IsUniqueViolation(err, repository.ConstraintSessionNamePerSchool) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "an academic session with this name already exists in this school")
		}
		if repository.IsForeignKeyViolation(err, "") {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create academic session")
	}

	return session, nil
}

// List returns paginated sessions, newest school year first, with term
// counts. A tenant scope overrides any school filter the caller supplied.
func (s *SessionService) List(ctx context.Context, scope models.Scope, filter models.SessionFilter) ([]models.AcademicSessionWithStats, *models.PageMeta, error) {
	if !scope.Global() {
		filter.SchoolID = scope.SchoolID()
	}

	sessions, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list academic sessions")
	}

	return sessions, models.NewPageMeta(total, filter.Pager.Normalize()), nil
}

// Get returns a session by ID. A scope mismatch is reported as not found so
// cross-tenant existence never leaks.
func (s *SessionService) Get(ctx context.Context, id string, scope models.Scope) (*models.AcademicSessionWithStats, error) {
	session, err := s.repo.FindByID(ctx, id, scope)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "academic session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load academic session")
	}
	return session, nil
}

// GetActiveForSchool returns the school's active session, or nil when no
// session is active. Absence is a valid state, not an error.
func (s *SessionService) GetActiveForSchool(ctx context.Context, schoolID string) (*models.AcademicSessionWithStats, error) {
	session, err := s.repo.FindActiveBySchool(ctx, schoolID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active academic session")
	}
	return session, nil
}

// Update merges the provided fields onto the stored session and re-validates
// the result: dates stay ordered, and no existing child term may fall
// outside the new range.
func (s *SessionService) Update(ctx context.Context, id string, scope models.Scope, req dto.UpdateSessionRequest) (*models.AcademicSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}

	existing, err := s.repo.FindByID(ctx, id, scope)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "academic session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load academic session")
	}

	session := existing.AcademicSession
	if req.Name != nil {
		session.Name = *req.Name
	}
	session.Description = req.Description.Apply(session.Description)
	if req.StartDate != nil {
		session.StartDate = req.StartDate.Time
	}
	if req.EndDate != nil {
		session.EndDate = req.EndDate.Time
	}

	if !session.StartDate.Before(session.EndDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_date must be before end_date")
	}

	outside, err := s.repo.CountTermsOutsideRange(ctx, id, session.StartDate, session.EndDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate term containment")
	}
	if outside > 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("cannot update dates: %d term(s) would fall outside the new date range", outside))
	}

	if err := s.repo.Update(ctx, &session); err != nil {
		if repository.IsUniqueViolation(err, repository.ConstraintSessionNamePerSchool) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "an academic session with this name already exists in this school")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update academic session")
	}

	return &session, nil
}

// Delete removes a session. Deletion is blocked while child terms exist so
// calendar data is never dropped silently.
func (s *SessionService) Delete(ctx context.Context, id string, scope models.Scope) error {
	existing, err := s.repo.FindByID(ctx, id, scope)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "academic session not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load academic session")
	}

	terms, err := s.repo.CountTerms(ctx, existing.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check session dependencies")
	}
	if terms > 0 {
		return appErrors.Clone(appErrors.ErrConflict,
			fmt.Sprintf("academic session has %d term(s); delete them first", terms))
	}

	if err := s.repo.Delete(ctx, id, scope); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "academic session not found")
		}
		if repository.IsForeignKeyViolation(err, repository.ConstraintTermSessionFK) {
			return appErrors.Clone(appErrors.ErrConflict, "academic session has terms; delete them first")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete academic session")
	}
	return nil
}

// Activate makes the target the school's single active session, deactivating
// any sibling in the same transaction.
func (s *SessionService) Activate(ctx context.Context, id string, scope models.Scope) (*models.AcademicSession, error) {
	session, err := s.repo.Activate(ctx, id, scope)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "academic session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to activate academic session")
	}

	s.logger.Info("academic session activated",
		zap.String("session_id", session.ID),
		zap.String("school_id", session.SchoolID))
	return session, nil
}

// Deactivate clears the active flag and demotes every child term. Calling it
// on an already inactive session succeeds and yields the same end state.
func (s *SessionService) Deactivate(ctx context.Context, id string, scope models.Scope) (*models.AcademicSession, error) {
	session, err := s.repo.Deactivate(ctx, id, scope)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "academic session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate academic session")
	}

	s.logger.Info("academic session deactivated",
		zap.String("session_id", session.ID),
		zap.String("school_id", session.SchoolID))
	return session, nil
}
