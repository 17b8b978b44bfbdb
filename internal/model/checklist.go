package model

import (
	"encoding/json"
	"time"
)

// Priority ranks how critical an item is for the race.
type Priority string

const (
	PriorityHigh     Priority = "high"
	PriorityNormal   Priority = "normal"
	PriorityOptional Priority = "optional"
)

// Item is a single packable gear entry. It only exists inside its parent
// checklist's Items slice; deleting the checklist deletes its items.
//
// Optional attributes use the zero value for "absent": quantity must be
// positive when set and an empty category/notes carries no meaning, so the
// zero value is unambiguous and omitempty keeps it off the wire.
type Item struct {
	ID        string   `json:"id"`
	Name      string   `json:"name" validate:"required"`
	Category  string   `json:"category,omitempty"`
	Notes     string   `json:"notes,omitempty"`
	Quantity  int      `json:"quantity,omitempty" validate:"omitempty,gt=0"`
	Priority  Priority `json:"priority,omitempty" validate:"omitempty,oneof=high normal optional"`
	Completed bool     `json:"completed"`
}

// Checklist is a named collection of items with lifecycle timestamps.
// CreatedAt is stamped once at first persistence and never altered;
// UpdatedAt is restamped on every save. Both are UTC, RFC 3339 on the wire.
type Checklist struct {
	ID        string    `json:"id"`
	Name      string    `json:"name" validate:"required"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Items     []Item    `json:"items" validate:"omitempty,dive"`

	// GeneratedMeta is provenance from an external generation process.
	// Carried opaquely; nothing here interprets it.
	GeneratedMeta json.RawMessage `json:"generatedMeta,omitempty"`
}

// Clone returns a deep copy so callers can mutate freely without aliasing
// the slices held by a store or manager.
func (c Checklist) Clone() Checklist {
	out := c
	if c.Items != nil {
		out.Items = make([]Item, len(c.Items))
		copy(out.Items, c.Items)
	}
	if c.GeneratedMeta != nil {
		out.GeneratedMeta = append(json.RawMessage(nil), c.GeneratedMeta...)
	}
	return out
}

// FindItem returns the index of the item with the given id, or -1.
func (c Checklist) FindItem(itemID string) int {
	for i, it := range c.Items {
		if it.ID == itemID {
			return i
		}
	}
	return -1
}

// Stats counts completed and pending items.
func (c Checklist) Stats() (done, pending int) {
	for _, it := range c.Items {
		if it.Completed {
			done++
		} else {
			pending++
		}
	}
	return
}
