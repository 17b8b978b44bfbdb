package model

// ItemPatch is an explicit partial update for an item. A nil field means
// "leave unchanged". The item id is not patchable.
type ItemPatch struct {
	Name      *string
	Category  *string
	Notes     *string
	Quantity  *int
	Priority  *Priority
	Completed *bool
}

// Apply returns a copy of it with the patch's non-nil fields applied.
func (p ItemPatch) Apply(it Item) Item {
	if p.Name != nil {
		it.Name = *p.Name
	}
	if p.Category != nil {
		it.Category = *p.Category
	}
	if p.Notes != nil {
		it.Notes = *p.Notes
	}
	if p.Quantity != nil {
		it.Quantity = *p.Quantity
	}
	if p.Priority != nil {
		it.Priority = *p.Priority
	}
	if p.Completed != nil {
		it.Completed = *p.Completed
	}
	return it
}

// Ptr is a convenience for building patches inline.
func Ptr[T any](v T) *T { return &v }
