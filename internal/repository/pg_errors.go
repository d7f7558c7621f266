package repository

import (
	"errors"

	"github.com/lib/pq"
)

// Constraint names defined in migrations/0001_init.sql. The store is the
// final arbiter for uniqueness and overlap under concurrent writes; the
// services translate these violations into user-actionable conflicts.
const (
	ConstraintSessionNamePerSchool   = "uq_academic_sessions_school_name"
	ConstraintSessionActivePerSchool = "uq_academic_sessions_school_active"
	ConstraintTermNamePerSession     = "uq_terms_session_name"
	ConstraintTermSequencePerSession = "uq_terms_session_sequence"
	ConstraintTermCurrentPerSession  = "uq_terms_session_current"
	ConstraintTermNoOverlap          = "ex_terms_no_overlap"
	ConstraintTermSessionFK          = "fk_terms_academic_session"
)

// IsUniqueViolation reports whether err is a Postgres unique violation,
// optionally restricted to a named constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	if pqErr.Code != "23505" {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// IsExclusionViolation reports whether err is a Postgres exclusion violation,
// optionally restricted to a named constraint.
func IsExclusionViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	if pqErr.Code != "23P01" {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// IsForeignKeyViolation reports whether err is a Postgres foreign key
// violation, optionally restricted to a named constraint.
func IsForeignKeyViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	if pqErr.Code != "23503" {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}
