// Package ident generates the identifiers used for checklists and items.
package ident

import "github.com/google/uuid"

// NewID returns a random 128-bit identifier in canonical hyphenated hex
// form. Collisions are not a practical concern at this scale.
func NewID() string {
	return uuid.NewString()
}
