package dto

// CreateSessionRequest describes the payload for creating academic sessions.
// SchoolID is only honored for system administrators; everyone else is
// pinned to the school resolved from their token.
type CreateSessionRequest struct {
	Name        string  `json:"name" validate:"required,max=120"`
	Description *string `json:"description"`
	SchoolID    string  `json:"school_id"`
	StartDate   Date    `json:"start_date" validate:"required"`
	EndDate     Date    `json:"end_date" validate:"required"`
}

// UpdateSessionRequest carries a partial update: nil pointers leave the
// stored value untouched, and Description tracks explicit nulls.
type UpdateSessionRequest struct {
	Name        *string        `json:"name" validate:"omitempty,max=120"`
	Description NullableString `json:"description"`
	StartDate   *Date          `json:"start_date"`
	EndDate     *Date          `json:"end_date"`
}
