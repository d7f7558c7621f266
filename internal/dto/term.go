package dto

// CreateTermRequest describes the payload for creating a term inside an
// academic session. When Sequence is omitted the next free sequence number
// in the session is assigned.
type CreateTermRequest struct {
	Name        string  `json:"name" validate:"required,max=120"`
	Description *string `json:"description"`
	StartDate   Date    `json:"start_date" validate:"required"`
	EndDate     Date    `json:"end_date" validate:"required"`
	Sequence    *int    `json:"sequence" validate:"omitempty,min=1"`
}

// UpdateTermRequest carries a partial update of a term. The parent session
// is immutable after creation and therefore not part of the payload.
type UpdateTermRequest struct {
	Name        *string        `json:"name" validate:"omitempty,max=120"`
	Description NullableString `json:"description"`
	StartDate   *Date          `json:"start_date"`
	EndDate     *Date          `json:"end_date"`
	Sequence    *int           `json:"sequence" validate:"omitempty,min=1"`
}
