package dto

// CreateSchoolRequest describes the payload for registering a school.
type CreateSchoolRequest struct {
	Name    string  `json:"name" validate:"required,max=160"`
	Address *string `json:"address"`
}
