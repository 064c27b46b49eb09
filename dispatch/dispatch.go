// Package dispatch executes resolved key binding actions against the window,
// the selection model and the tray manager. A binding's actions run in order;
// a failing action is logged and the rest still run.
package dispatch

import (
	"image"
	"log"

	"keynav-tray/config"
	"keynav-tray/hotkey"
	"keynav-tray/model"
	"keynav-tray/render"
)

// WindowController is the window surface the dispatcher drives.
type WindowController interface {
	Show()
	Hide()
	Toggle()
	Visible() bool
}

// Clicker delivers a synthetic click to an embedded window.
type Clicker interface {
	Click(it model.Item, iconRect image.Rectangle, button hotkey.Button) error
}

// Invalidator schedules a repaint.
type Invalidator interface {
	MarkDirty()
}

type Dispatcher struct {
	model  *model.Model
	win    WindowController
	clicks Clicker
	ui     *config.UIConfig
	width  int
	sched  Invalidator
}

func New(m *model.Model, win WindowController, clicks Clicker, ui *config.UIConfig, width int, sched Invalidator) *Dispatcher {
	return &Dispatcher{model: m, win: win, clicks: clicks, ui: ui, width: width, sched: sched}
}

// Dispatch runs every action of a binding in registration order.
func (d *Dispatcher) Dispatch(actions []hotkey.Action) {
	for _, a := range actions {
		d.dispatchOne(a)
	}
}

func (d *Dispatcher) dispatchOne(a hotkey.Action) {
	switch a.Kind {
	case hotkey.KindHideWindow:
		if d.win.Visible() {
			d.win.Hide()
		}
	case hotkey.KindShowWindow:
		if !d.win.Visible() {
			d.win.Show()
			d.sched.MarkDirty()
		}
	case hotkey.KindToggleWindow:
		d.win.Toggle()
		if d.win.Visible() {
			d.sched.MarkDirty()
		}
	case hotkey.KindDeselectItem:
		if d.model.Deselect() {
			d.sched.MarkDirty()
		}
	case hotkey.KindSelectNextItem:
		if d.model.SelectNext() {
			d.sched.MarkDirty()
		}
	case hotkey.KindSelectPreviousItem:
		if d.model.SelectPrevious() {
			d.sched.MarkDirty()
		}
	case hotkey.KindSelectItem:
		if d.model.Select(a.Index) {
			d.sched.MarkDirty()
		}
	case hotkey.KindClickSelectedItem:
		d.clickSelected(a.Button)
	default:
		log.Printf("Unknown action %v, ignoring", a)
	}
}

// clickSelected targets the center of the selected item's icon rectangle.
// The rectangle recorded at the last placement is authoritative; an item that
// was never placed falls back to the same layout pass the renderer uses.
func (d *Dispatcher) clickSelected(button hotkey.Button) {
	it, ok := d.model.Selected()
	if !ok {
		return
	}
	rect := it.Bounds
	if rect.Empty() {
		layout := render.Compute(d.ui, d.model.Len(), d.width)
		index := d.model.SelectedIndex()
		if index >= len(layout.Items) {
			return
		}
		rect = layout.Items[index].Icon
	}
	if err := d.clicks.Click(it, rect, button); err != nil {
		log.Printf("Click on window %d failed: %v", it.Window, err)
	}
}
