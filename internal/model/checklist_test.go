package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneIsIndependent(t *testing.T) {
	c := Checklist{
		ID:   "c1",
		Name: "Race",
		Items: []Item{
			{ID: "i1", Name: "Map", Category: "Navigation"},
		},
		GeneratedMeta: []byte(`{"source":"chat"}`),
	}

	clone := c.Clone()
	clone.Items[0].Name = "Changed"
	clone.GeneratedMeta[2] = 'X'

	assert.Equal(t, "Map", c.Items[0].Name)
	assert.Equal(t, byte('s'), c.GeneratedMeta[2])
}

func TestFindItem(t *testing.T) {
	c := Checklist{Items: []Item{{ID: "a"}, {ID: "b"}}}
	assert.Equal(t, 0, c.FindItem("a"))
	assert.Equal(t, 1, c.FindItem("b"))
	assert.Equal(t, -1, c.FindItem("missing"))
}

func TestStats(t *testing.T) {
	c := Checklist{Items: []Item{
		{ID: "a", Completed: true},
		{ID: "b"},
		{ID: "c"},
	}}
	done, pending := c.Stats()
	assert.Equal(t, 1, done)
	assert.Equal(t, 2, pending)
}

func TestItemPatchApply(t *testing.T) {
	it := Item{
		ID: "i1", Name: "Gloves", Category: "Clothing",
		Quantity: 2, Priority: PriorityHigh, Completed: true,
	}

	// Empty patch changes nothing.
	assert.Equal(t, it, ItemPatch{}.Apply(it))

	patched := ItemPatch{
		Name:      Ptr("Mittens"),
		Completed: Ptr(false),
	}.Apply(it)
	assert.Equal(t, "Mittens", patched.Name)
	assert.False(t, patched.Completed)
	assert.Equal(t, "i1", patched.ID)
	assert.Equal(t, "Clothing", patched.Category)
	assert.Equal(t, 2, patched.Quantity)
	assert.Equal(t, PriorityHigh, patched.Priority)

	// Patches can reset optional fields to absent.
	cleared := ItemPatch{Category: Ptr(""), Quantity: Ptr(0)}.Apply(it)
	assert.Empty(t, cleared.Category)
	assert.Zero(t, cleared.Quantity)
}

func TestDefaultCategoriesStable(t *testing.T) {
	require.NotEmpty(t, DefaultCategories)
	assert.Equal(t, "Navigation", DefaultCategories[0])
	assert.Contains(t, DefaultCategories, "Miscellaneous")
}
