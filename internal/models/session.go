package models

import "time"

// AcademicSession is a school's bounded calendar container (a school year).
// At most one session per school is active at a time.
type AcademicSession struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	SchoolID    string    `db:"school_id" json:"school_id"`
	StartDate   time.Time `db:"start_date" json:"start_date"`
	EndDate     time.Time `db:"end_date" json:"end_date"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// AcademicSessionWithStats enriches a session with the number of child terms.
type AcademicSessionWithStats struct {
	AcademicSession
	TermCount int `db:"term_count" json:"term_count"`
}

// SessionFilter defines filters supported by the session list endpoint.
type SessionFilter struct {
	SchoolID string
	IsActive *bool
	Pager    PageParams
}
