package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifierCancelRemovesSubscriber(t *testing.T) {
	n := newNotifier()
	var got []int
	c1 := n.subscribe(func(ChangeEvent) { got = append(got, 1) })
	c2 := n.subscribe(func(ChangeEvent) { got = append(got, 2) })
	c3 := n.subscribe(func(ChangeEvent) { got = append(got, 3) })

	c2()
	c2() // second cancel finds nothing
	require.Len(t, n.order, 2)

	n.publish(ChangeEvent{Type: ChangeUpdate, ChecklistID: "x"})
	assert.Equal(t, []int{1, 3}, got)

	c1()
	c3()
	assert.Empty(t, n.order)
	assert.Empty(t, n.subs)
}
