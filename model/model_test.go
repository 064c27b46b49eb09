package model

import (
	"testing"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newModel(n int) *Model {
	m := New()
	for i := 0; i < n; i++ {
		m.Add(Item{Window: xproto.Window(100 + i), State: StateEmbedded})
	}
	return m
}

// checkInvariant asserts the selection cursor is either cleared or in range.
func checkInvariant(t *testing.T, m *Model) {
	t.Helper()
	sel := m.SelectedIndex()
	assert.True(t, sel == -1 || sel < m.Len(), "selection %d out of range for length %d", sel, m.Len())
}

func TestAddPreservesArrivalOrder(t *testing.T) {
	m := newModel(3)
	require.Equal(t, 3, m.Len())
	items := m.Items()
	assert.Equal(t, xproto.Window(100), items[0].Window)
	assert.Equal(t, xproto.Window(102), items[2].Window)
}

func TestAddRejectsDuplicateWindow(t *testing.T) {
	m := newModel(1)
	assert.False(t, m.Add(Item{Window: 100}))
	assert.Equal(t, 1, m.Len())
}

func TestLengthTracksDockUndock(t *testing.T) {
	m := New()
	m.Add(Item{Window: 1})
	m.Add(Item{Window: 2})
	m.Remove(1)
	m.Add(Item{Window: 3})
	m.Remove(9) // unknown window: no-op
	assert.Equal(t, 2, m.Len())
	checkInvariant(t, m)
}

func TestSelectOutOfRangeIsNoop(t *testing.T) {
	m := newModel(3)
	m.Select(1)
	assert.False(t, m.Select(3))
	assert.False(t, m.Select(-1))
	assert.Equal(t, 1, m.SelectedIndex())
}

func TestSelectOnEmptyModel(t *testing.T) {
	m := New()
	assert.False(t, m.Select(0))
	assert.Equal(t, -1, m.SelectedIndex())
	assert.False(t, m.SelectNext())
	assert.False(t, m.SelectPrevious())
	checkInvariant(t, m)
}

func TestDeselectAlwaysClears(t *testing.T) {
	m := newModel(2)
	m.Select(1)
	assert.True(t, m.Deselect())
	assert.Equal(t, -1, m.SelectedIndex())
	assert.False(t, m.Deselect())
	assert.Equal(t, -1, m.SelectedIndex())
}

func TestCyclicWrap(t *testing.T) {
	m := newModel(3)

	m.Select(2)
	m.SelectNext()
	assert.Equal(t, 0, m.SelectedIndex(), "Next from the last index wraps to 0")

	m.Select(0)
	m.SelectPrevious()
	assert.Equal(t, 2, m.SelectedIndex(), "Previous from index 0 wraps to the last index")
}

func TestNextPreviousFromNoSelection(t *testing.T) {
	m := newModel(3)
	m.SelectNext()
	assert.Equal(t, 0, m.SelectedIndex())

	m.Deselect()
	m.SelectPrevious()
	assert.Equal(t, 2, m.SelectedIndex())
}

func TestNextThenPreviousRoundTrips(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5} {
		m := newModel(n)
		for start := 0; start < n; start++ {
			m.Select(start)
			m.SelectNext()
			m.SelectPrevious()
			assert.Equal(t, start, m.SelectedIndex(), "length %d start %d", n, start)
		}
	}
}

func TestRemoveSelectedClearsSelection(t *testing.T) {
	m := newModel(3)
	m.Select(1)
	m.Remove(101)
	assert.Equal(t, -1, m.SelectedIndex())
	assert.Equal(t, 2, m.Len())
	checkInvariant(t, m)
}

func TestRemoveBeforeSelectedShiftsCursor(t *testing.T) {
	m := newModel(3)
	m.Select(2)
	m.Remove(100)
	assert.Equal(t, 1, m.SelectedIndex())
	sel, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, xproto.Window(102), sel.Window, "cursor still points at the same item")
}

func TestRemoveAfterSelectedKeepsCursor(t *testing.T) {
	m := newModel(3)
	m.Select(0)
	m.Remove(102)
	assert.Equal(t, 0, m.SelectedIndex())
	checkInvariant(t, m)
}

func TestRemoveLastItemWhileSelected(t *testing.T) {
	m := newModel(1)
	m.Select(0)
	m.Remove(100)
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, -1, m.SelectedIndex())
	_, ok := m.Selected()
	assert.False(t, ok)
}

func TestUpdateTitle(t *testing.T) {
	m := newModel(2)
	ok := m.Update(101, func(it *Item) { it.Title = "nm-applet" })
	require.True(t, ok)
	it, _ := m.At(1)
	assert.Equal(t, "nm-applet", it.Title)

	assert.False(t, m.Update(999, func(it *Item) { it.Title = "x" }))
}

func TestItemsSnapshotIsDetached(t *testing.T) {
	m := newModel(2)
	snap := m.Items()
	snap[0].Title = "mutated"
	it, _ := m.At(0)
	assert.Empty(t, it.Title)
}
