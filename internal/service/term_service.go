package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/chalkbyte/chalkbyte-api/internal/dto"
	"github.com/chalkbyte/chalkbyte-api/internal/models"
	"github.com/chalkbyte/chalkbyte-api/internal/repository"
	appErrors "github.com/chalkbyte/chalkbyte-api/pkg/errors"
)

const dateLayout = "2006-01-02"

type termRepository interface {
	ListBySession(ctx context.Context, sessionID string, filter models.TermFilter) ([]models.Term, int, error)
	ListSiblings(ctx context.Context, sessionID string) ([]models.Term, error)
	FindByID(ctx context.Context, id string, scope models.Scope) (*models.TermWithSession, error)
	FindCurrentBySchool(ctx context.Context, schoolID string) (*models.TermWithSession, error)
	Create(ctx context.Context, term *models.Term, sequence *int) error
	Update(ctx context.Context, term *models.Term) error
	Delete(ctx context.Context, id string, scope models.Scope) error
	SetCurrent(ctx context.Context, id string, scope models.Scope) (*models.Term, error)
}

type sessionReader interface {
	FindByID(ctx context.Context, id string, scope models.Scope) (*models.AcademicSessionWithStats, error)
}

// TermService owns the term lifecycle inside a session: ordered, non
// overlapping date ranges and the one-current-term-per-session transition.
type TermService struct {
	repo      termRepository
	sessions  sessionReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTermService creates a new term service instance.
func NewTermService(repo termRepository, sessions sessionReader, validate *validator.Validate, logger *zap.Logger) *TermService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TermService{repo: repo, sessions: sessions, validator: validate, logger: logger}
}

// Create adds a new term to a session. Dates must be ordered, contained in
// the session range, and free of overlap with sibling terms; the sequence is
// auto-assigned when omitted.
func (s *TermService) Create(ctx context.Context, sessionID string, scope models.Scope, req dto.CreateTermRequest) (*models.Term, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid term payload")
	}

	session, err := s.sessions.FindByID(ctx, sessionID, scope)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "academic session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load academic session")
	}

	term := &models.Term{
		Name:              req.Name,
		Description:       req.Description,
		AcademicSessionID: session.ID,
		StartDate:         req.StartDate.Time,
		EndDate:           req.EndDate.Time,
	}

	if err := s.validateDates(ctx, &session.AcademicSession, term, ""); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, term, req.Sequence); err != nil {
		return nil, s.mapTermWriteError(err, "failed to create term")
	}

	return term, nil
}

// List returns a session's terms ordered by sequence. The session itself is
// resolved first so an out-of-scope session yields not found instead of an
// empty page.
func (s *TermService) List(ctx context.Context, sessionID string, scope models.Scope, filter models.TermFilter) ([]models.Term, *models.PageMeta, error) {
	session, err := s.sessions.FindByID(ctx, sessionID, scope)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "academic session not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load academic session")
	}

	terms, total, err := s.repo.ListBySession(ctx, session.ID, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list terms")
	}

	return terms, models.NewPageMeta(total, filter.Pager.Normalize()), nil
}

// Get returns a term by ID, joined with its parent session.
func (s *TermService) Get(ctx context.Context, id string, scope models.Scope) (*models.TermWithSession, error) {
	term, err := s.repo.FindByID(ctx, id, scope)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	return term, nil
}

// GetCurrentForSchool returns the current term of the school's active
// session, or nil when no term is current. Absence is a valid state.
func (s *TermService) GetCurrentForSchool(ctx context.Context, schoolID string) (*models.TermWithSession, error) {
	term, err := s.repo.FindCurrentBySchool(ctx, schoolID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current term")
	}
	return term, nil
}

// Update merges the provided fields onto the stored term and re-validates
// ordering, containment and overlap against the merged result.
func (s *TermService) Update(ctx context.Context, id string, scope models.Scope, req dto.UpdateTermRequest) (*models.Term, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid term payload")
	}

	existing, err := s.repo.FindByID(ctx, id, scope)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}

	term := existing.Term
	if req.Name != nil {
		term.Name = *req.Name
	}
	term.Description = req.Description.Apply(term.Description)
	if req.StartDate != nil {
		term.StartDate = req.StartDate.Time
	}
	if req.EndDate != nil {
		term.EndDate = req.EndDate.Time
	}
	if req.Sequence != nil {
		term.Sequence = *req.Sequence
	}

	// The term was already resolved under scope; its session is loaded
	// unscoped to read the authoritative date range.
	session, err := s.sessions.FindByID(ctx, term.AcademicSessionID, models.GlobalScope())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load academic session")
	}

	if err := s.validateDates(ctx, &session.AcademicSession, &term, term.ID); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, &term); err != nil {
		return nil, s.mapTermWriteError(err, "failed to update term")
	}

	return &term, nil
}

// Delete removes a term permanently.
func (s *TermService) Delete(ctx context.Context, id string, scope models.Scope) error {
	if err := s.repo.Delete(ctx, id, scope); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete term")
	}
	return nil
}

// SetCurrent promotes a term to the current one of its session, demoting any
// sibling. The parent session must be active.
func (s *TermService) SetCurrent(ctx context.Context, id string, scope models.Scope) (*models.Term, error) {
	term, err := s.repo.SetCurrent(ctx, id, scope)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		if errors.Is(err, repository.ErrSessionNotActive) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "cannot set current term: the academic session is not active")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to set current term")
	}

	s.logger.Info("current term changed",
		zap.String("term_id", term.ID),
		zap.String("session_id", term.AcademicSessionID))
	return term, nil
}

// validateDates enforces ordering, containment within the session range, and
// non-overlap against sibling terms. excludeID skips the term being updated.
func (s *TermService) validateDates(ctx context.Context, session *models.AcademicSession, term *models.Term, excludeID string) error {
	if !term.StartDate.Before(term.EndDate) {
		return appErrors.Clone(appErrors.ErrValidation, "start_date must be before end_date")
	}
	if term.StartDate.Before(session.StartDate) || term.EndDate.After(session.EndDate) {
		return appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("term dates must be within the academic session date range (%s to %s)",
				session.StartDate.Format(dateLayout), session.EndDate.Format(dateLayout)))
	}

	siblings, err := s.repo.ListSiblings(ctx, session.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate term overlap")
	}
	for i := range siblings {
		sib := &siblings[i]
		if sib.ID == excludeID {
			continue
		}
		if models.DatesOverlap(term.StartDate, term.EndDate, sib.StartDate, sib.EndDate) {
			return appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("term dates overlap with existing term: %s (%s to %s)",
					sib.Name, sib.StartDate.Format(dateLayout), sib.EndDate.Format(dateLayout)))
		}
	}
	return nil
}

// mapTermWriteError turns constraint violations raised by the store into the
// matching domain errors. The exclusion constraint only fires when two
// writers race past the application-level overlap check.
func (s *TermService) mapTermWriteError(err error, fallback string) error {
	switch {
	case repository.IsUniqueViolation(err, repository.ConstraintTermNamePerSession):
		return appErrors.Clone(appErrors.ErrConflict, "a term with this name already exists in this session")
	case repository.IsUniqueViolation(err, repository.ConstraintTermSequencePerSession):
		return appErrors.Clone(appErrors.ErrConflict, "a term with this sequence already exists in this session")
	case repository.IsExclusionViolation(err, repository.ConstraintTermNoOverlap):
		return appErrors.Clone(appErrors.ErrConflict, "term dates overlap with an existing term")
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fallback)
	}
}
