// Package hotkey maps key events to action lists. The binding table is built
// once at startup and is immutable afterwards; resolution is an exact match on
// the (keysym, modifier mask) pair with no partial or superset matching.
package hotkey

import (
	"log"

	"github.com/BurntSushi/xgb/xproto"
)

// RecognizedMods is the modifier mask the resolver understands. Any other
// bits in a key event's state (mode switch, button masks) are stripped before
// lookup.
const RecognizedMods = xproto.ModMaskControl |
	xproto.ModMaskShift |
	xproto.ModMask1 | // alt
	xproto.ModMask4 | // super
	xproto.ModMaskLock | // caps lock
	xproto.ModMask2 // num lock

// Binding couples a keysym name (as reported by the X keymap, e.g. "Return",
// "grave", "a") and a modifier mask with an ordered action list. Global
// bindings stay active while the tray window is hidden or unfocused; they are
// grabbed on the root window at startup.
type Binding struct {
	Keysym  string
	Mods    uint16
	Actions []Action
	Global  bool
}

type tableKey struct {
	keysym string
	mods   uint16
}

// Table is the immutable binding lookup structure.
type Table struct {
	bindings []Binding
	index    map[tableKey]int
}

// NewTable builds a table from bindings in registration order. Duplicate
// (keysym, mods) registrations are permitted: the first wins and later ones
// are reported through warnf as dead entries.
func NewTable(bindings []Binding, warnf func(format string, args ...interface{})) *Table {
	if warnf == nil {
		warnf = log.Printf
	}
	t := &Table{
		bindings: make([]Binding, 0, len(bindings)),
		index:    make(map[tableKey]int, len(bindings)),
	}
	for _, b := range bindings {
		b.Mods &= RecognizedMods
		key := tableKey{keysym: b.Keysym, mods: b.Mods}
		if prev, ok := t.index[key]; ok {
			warnf("Duplicate key binding for %s (mods %#x) ignored; first registration (entry %d) wins", b.Keysym, b.Mods, prev)
			continue
		}
		t.index[key] = len(t.bindings)
		t.bindings = append(t.bindings, b)
	}
	return t
}

// Resolve looks up the action list for a key event. When the tray window is
// focused every binding is eligible; otherwise only global bindings resolve.
// No match returns nil and the event is simply ignored.
func (t *Table) Resolve(keysym string, mods uint16, focused bool) []Action {
	i, ok := t.index[tableKey{keysym: keysym, mods: mods & RecognizedMods}]
	if !ok {
		return nil
	}
	b := t.bindings[i]
	if !focused && !b.Global {
		return nil
	}
	return b.Actions
}

// Globals returns the bindings that must be grabbed on the root window, in
// registration order.
func (t *Table) Globals() []Binding {
	var out []Binding
	for _, b := range t.bindings {
		if b.Global {
			out = append(out, b)
		}
	}
	return out
}

// Bindings returns every live binding in registration order.
func (t *Table) Bindings() []Binding {
	out := make([]Binding, len(t.bindings))
	copy(out, t.bindings)
	return out
}

// Len reports the number of live (non-shadowed) bindings.
func (t *Table) Len() int {
	return len(t.bindings)
}
