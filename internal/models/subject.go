package models

import "time"

// Subject represents an academic subject. Core subjects count towards the
// BECE aggregate core slots.
type Subject struct {
	ID        string    `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	IsCore    bool      `db:"is_core" json:"is_core"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SubjectFilter captures supported filters for listing subjects.
type SubjectFilter struct {
	Search    string
	IsCore    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
