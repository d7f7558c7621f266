package models

const (
	// DefaultPageLimit is used when the caller omits a limit.
	DefaultPageLimit = 20
	// MaxPageLimit caps the page size of every list endpoint.
	MaxPageLimit = 100
)

// PageParams carries offset-based pagination input. When Page is provided and
// Offset is not, the offset is derived from the page number.
type PageParams struct {
	Limit  int
	Offset int
	Page   int
}

// Normalize clamps the limit to [1, MaxPageLimit] and resolves Page into an
// offset when one was given.
func (p PageParams) Normalize() PageParams {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Page > 0 && p.Offset == 0 {
		p.Offset = (p.Page - 1) * p.Limit
	}
	return p
}

// PageMeta describes one page of a paginated collection.
type PageMeta struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  *int `json:"offset,omitempty"`
	Page    *int `json:"page,omitempty"`
	HasMore bool `json:"has_more"`
}

// NewPageMeta builds the pagination envelope for normalized params.
func NewPageMeta(total int, p PageParams) *PageMeta {
	offset := p.Offset
	meta := &PageMeta{
		Total:   total,
		Limit:   p.Limit,
		Offset:  &offset,
		HasMore: p.Offset+p.Limit < total,
	}
	if p.Page > 0 {
		page := p.Page
		meta.Page = &page
	}
	return meta
}
