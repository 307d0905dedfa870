package models

import "time"

// Category groups non-CGPA courses (e.g. "Value Added", "Soft Skills").
type Category struct {
	ID          string    `db:"id" json:"id" yaml:"id"`
	Name        string    `db:"name" json:"name" yaml:"name"`
	Description string    `db:"description" json:"description,omitempty" yaml:"description"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt" yaml:"-"`
}
