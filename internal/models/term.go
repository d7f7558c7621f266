package models

import "time"

// Term is a sub-period of an academic session (a semester or quarter).
// Sibling terms never overlap, and at most one term per session is current.
type Term struct {
	ID                string    `db:"id" json:"id"`
	Name              string    `db:"name" json:"name"`
	Description       *string   `db:"description" json:"description,omitempty"`
	AcademicSessionID string    `db:"academic_session_id" json:"academic_session_id"`
	StartDate         time.Time `db:"start_date" json:"start_date"`
	EndDate           time.Time `db:"end_date" json:"end_date"`
	Sequence          int       `db:"sequence" json:"sequence"`
	IsCurrent         bool      `db:"is_current" json:"is_current"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// TermWithSession joins a term to its parent session's identifying fields.
type TermWithSession struct {
	Term
	SessionName     string `db:"session_name" json:"session_name"`
	SchoolID        string `db:"school_id" json:"school_id"`
	SessionIsActive bool   `db:"session_is_active" json:"session_is_active"`
}

// TermFilter defines filters supported by the term list endpoint.
type TermFilter struct {
	IsCurrent *bool
	Pager     PageParams
}

// DatesOverlap implements the half-open interval test: [a,b) and [c,d)
// overlap iff a < d AND c < b.
func DatesOverlap(start1, end1, start2, end2 time.Time) bool {
	return start1.Before(end2) && start2.Before(end1)
}
