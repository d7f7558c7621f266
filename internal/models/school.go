package models

import "time"

// School is the tenant anchor: sessions belong to a school and terms inherit
// that ownership through their session.
type School struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Address   *string   `db:"address" json:"address,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SchoolFilter defines filters supported by the school list endpoint.
type SchoolFilter struct {
	Search string
	Pager  PageParams
}
