// Package model holds the tray item list and the selection cursor. It is pure
// state: no X I/O happens here, which keeps every operation total and safe to
// call regardless of what the server is doing.
package model

import (
	"image"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/xgraphics"
)

// EmbedState tracks where an item is in the XEmbed lifecycle.
type EmbedState int

const (
	StateRequesting EmbedState = iota
	StateEmbedded
	StateUnembedding
)

// Item is one docked tray icon. Title may be empty (some clients never set a
// name); Icon is nil until a fetch succeeds. Bounds is the last icon rectangle
// assigned by layout, in tray-window coordinates.
type Item struct {
	Window xproto.Window
	Title  string
	Icon   *xgraphics.Image
	State  EmbedState
	Bounds image.Rectangle
}

const noSelection = -1

// Model is the ordered tray item collection. Order is dock arrival order.
// Invariant: selected is noSelection or a valid index, re-established after
// every mutation.
type Model struct {
	items    []Item
	selected int
}

func New() *Model {
	return &Model{selected: noSelection}
}

// Len reports the number of embedded items.
func (m *Model) Len() int {
	return len(m.items)
}

// Index returns the position of the item owning the given window, or -1.
func (m *Model) Index(w xproto.Window) int {
	for i := range m.items {
		if m.items[i].Window == w {
			return i
		}
	}
	return -1
}

// Contains reports whether a window is one of the embedded items.
func (m *Model) Contains(w xproto.Window) bool {
	return m.Index(w) >= 0
}

// Add appends an item at the tail, preserving arrival order. Adding a window
// that is already present is refused.
func (m *Model) Add(it Item) bool {
	if m.Contains(it.Window) {
		return false
	}
	m.items = append(m.items, it)
	return true
}

// Update applies fn to the item owning the window, if present.
func (m *Model) Update(w xproto.Window, fn func(*Item)) bool {
	i := m.Index(w)
	if i < 0 {
		return false
	}
	fn(&m.items[i])
	return true
}

// Remove drops the item owning the window. The selection cursor is re-clamped:
// removing the selected item clears it, removing an earlier item shifts it
// down so it keeps pointing at the same logical item.
func (m *Model) Remove(w xproto.Window) bool {
	i := m.Index(w)
	if i < 0 {
		return false
	}
	m.items = append(m.items[:i], m.items[i+1:]...)
	switch {
	case m.selected == i:
		m.selected = noSelection
	case m.selected > i:
		m.selected--
	}
	return true
}

// Select moves the cursor to index if it is in range; out-of-range is a no-op.
func (m *Model) Select(index int) bool {
	if index < 0 || index >= len(m.items) {
		return false
	}
	if m.selected == index {
		return false
	}
	m.selected = index
	return true
}

// Deselect clears the cursor regardless of prior state.
func (m *Model) Deselect() bool {
	if m.selected == noSelection {
		return false
	}
	m.selected = noSelection
	return true
}

// SelectNext moves the cursor cyclically: no selection or the last item wraps
// to index 0. Empty list is a no-op.
func (m *Model) SelectNext() bool {
	if len(m.items) == 0 {
		return false
	}
	next := 0
	if m.selected != noSelection && m.selected < len(m.items)-1 {
		next = m.selected + 1
	}
	changed := m.selected != next
	m.selected = next
	return changed
}

// SelectPrevious moves the cursor cyclically: no selection or index 0 wraps to
// the last item. Empty list is a no-op.
func (m *Model) SelectPrevious() bool {
	if len(m.items) == 0 {
		return false
	}
	prev := len(m.items) - 1
	if m.selected > 0 {
		prev = m.selected - 1
	}
	changed := m.selected != prev
	m.selected = prev
	return changed
}

// SelectedIndex returns the cursor position, or -1 when nothing is selected.
func (m *Model) SelectedIndex() int {
	return m.selected
}

// Selected returns the selected item, if any.
func (m *Model) Selected() (Item, bool) {
	if m.selected == noSelection {
		return Item{}, false
	}
	return m.items[m.selected], true
}

// At returns the item at index.
func (m *Model) At(index int) (Item, bool) {
	if index < 0 || index >= len(m.items) {
		return Item{}, false
	}
	return m.items[index], true
}

// Items returns a snapshot of the item list in order.
func (m *Model) Items() []Item {
	out := make([]Item, len(m.items))
	copy(out, m.items)
	return out
}

// Windows returns the embedded window ids in order. Used at teardown to
// unembed everything.
func (m *Model) Windows() []xproto.Window {
	out := make([]xproto.Window, len(m.items))
	for i := range m.items {
		out[i] = m.items[i].Window
	}
	return out
}

// SetBounds records the icon rectangle assigned to a window by layout.
func (m *Model) SetBounds(w xproto.Window, bounds image.Rectangle) {
	m.Update(w, func(it *Item) { it.Bounds = bounds })
}
