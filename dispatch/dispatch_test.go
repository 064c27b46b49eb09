package dispatch

import (
	"errors"
	"image"
	"testing"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keynav-tray/config"
	"keynav-tray/hotkey"
	"keynav-tray/model"
	"keynav-tray/render"
)

type fakeWindow struct {
	visible bool
	shows   int
	hides   int
	focuses int
}

func (w *fakeWindow) Show() {
	w.visible = true
	w.shows++
	w.focuses++
}

func (w *fakeWindow) Hide() {
	w.visible = false
	w.hides++
}

func (w *fakeWindow) Toggle() {
	if w.visible {
		w.Hide()
	} else {
		w.Show()
	}
}

func (w *fakeWindow) Visible() bool { return w.visible }

type clickCall struct {
	item   model.Item
	rect   image.Rectangle
	button hotkey.Button
}

type fakeClicker struct {
	clicks []clickCall
	err    error
}

func (c *fakeClicker) Click(it model.Item, rect image.Rectangle, button hotkey.Button) error {
	c.clicks = append(c.clicks, clickCall{item: it, rect: rect, button: button})
	return c.err
}

type fakeScheduler struct{ marks int }

func (s *fakeScheduler) MarkDirty() { s.marks++ }

func newFixture(t *testing.T, items int) (*Dispatcher, *model.Model, *fakeWindow, *fakeClicker, *fakeScheduler) {
	t.Helper()
	cfg := config.Default()
	m := model.New()
	for i := 0; i < items; i++ {
		require.True(t, m.Add(model.Item{Window: xproto.Window(100 + i)}))
	}
	win := &fakeWindow{}
	clicks := &fakeClicker{}
	sched := &fakeScheduler{}
	d := New(m, win, clicks, &cfg.UI, cfg.Window.Width, sched)
	return d, m, win, clicks, sched
}

func actions(kinds ...hotkey.Kind) []hotkey.Action {
	out := make([]hotkey.Action, len(kinds))
	for i, k := range kinds {
		out[i] = hotkey.Action{Kind: k}
	}
	return out
}

func TestToggleFromHidden(t *testing.T) {
	d, _, win, _, sched := newFixture(t, 0)

	d.Dispatch(actions(hotkey.KindToggleWindow))
	assert.True(t, win.visible)
	assert.Equal(t, 1, win.focuses, "showing requests input focus")
	assert.Equal(t, 1, sched.marks)

	d.Dispatch(actions(hotkey.KindToggleWindow))
	assert.False(t, win.visible)
	assert.Equal(t, 1, win.focuses, "hiding requests no focus")
	assert.Equal(t, 1, sched.marks, "hiding needs no repaint")
}

func TestShowAndHideAreIdempotent(t *testing.T) {
	d, _, win, _, _ := newFixture(t, 0)

	d.Dispatch(actions(hotkey.KindShowWindow, hotkey.KindShowWindow))
	assert.Equal(t, 1, win.shows)
	assert.Equal(t, 1, win.focuses)

	d.Dispatch(actions(hotkey.KindHideWindow, hotkey.KindHideWindow))
	assert.Equal(t, 1, win.hides)
}

func TestSelectionSurvivesHideShow(t *testing.T) {
	d, m, _, _, _ := newFixture(t, 3)
	d.Dispatch([]hotkey.Action{{Kind: hotkey.KindSelectItem, Index: 1}})
	require.Equal(t, 1, m.SelectedIndex())

	d.Dispatch(actions(hotkey.KindHideWindow))
	d.Dispatch(actions(hotkey.KindShowWindow))
	assert.Equal(t, 1, m.SelectedIndex())
}

func TestSelectItemOutOfRangeIsNoop(t *testing.T) {
	d, m, _, _, sched := newFixture(t, 2)
	d.Dispatch([]hotkey.Action{{Kind: hotkey.KindSelectItem, Index: 5}})
	assert.Equal(t, -1, m.SelectedIndex())
	assert.Zero(t, sched.marks)
}

func TestNavigationMarksDirtyOnlyOnChange(t *testing.T) {
	d, m, _, _, sched := newFixture(t, 2)

	d.Dispatch(actions(hotkey.KindSelectNextItem))
	assert.Equal(t, 0, m.SelectedIndex())
	assert.Equal(t, 1, sched.marks)

	d.Dispatch(actions(hotkey.KindDeselectItem))
	assert.Equal(t, 2, sched.marks)

	// Deselecting again changes nothing.
	d.Dispatch(actions(hotkey.KindDeselectItem))
	assert.Equal(t, 2, sched.marks)
}

func TestSelectThenNext(t *testing.T) {
	d, m, _, _, _ := newFixture(t, 3)

	d.Dispatch([]hotkey.Action{{Kind: hotkey.KindSelectItem, Index: 1}})
	require.Equal(t, 1, m.SelectedIndex())

	d.Dispatch(actions(hotkey.KindSelectNextItem))
	assert.Equal(t, 2, m.SelectedIndex())
}

func TestNavigationOnEmptyTrayIsNoop(t *testing.T) {
	d, m, _, _, sched := newFixture(t, 0)
	d.Dispatch(actions(hotkey.KindSelectNextItem, hotkey.KindSelectPreviousItem))
	assert.Equal(t, -1, m.SelectedIndex())
	assert.Zero(t, sched.marks)
}

func TestClickSelectedItem(t *testing.T) {
	d, m, _, clicks, _ := newFixture(t, 3)
	cfg := config.Default()
	require.True(t, m.Select(2))

	d.Dispatch([]hotkey.Action{{Kind: hotkey.KindClickSelectedItem, Button: hotkey.ButtonRight}})

	require.Len(t, clicks.clicks, 1)
	call := clicks.clicks[0]
	assert.Equal(t, xproto.Window(102), call.item.Window)
	assert.Equal(t, hotkey.ButtonRight, call.button)

	layout := render.Compute(&cfg.UI, 3, cfg.Window.Width)
	assert.Equal(t, layout.Items[2].Icon, call.rect)
}

func TestClickUsesRecordedPlacement(t *testing.T) {
	d, m, _, clicks, _ := newFixture(t, 3)
	require.True(t, m.Select(1))

	placed := image.Rect(16, 48, 40, 72)
	m.SetBounds(101, placed)

	d.Dispatch([]hotkey.Action{{Kind: hotkey.KindClickSelectedItem, Button: hotkey.ButtonLeft}})
	require.Len(t, clicks.clicks, 1)
	assert.Equal(t, placed, clicks.clicks[0].rect)
}

func TestClickWithNoSelectionIsNoop(t *testing.T) {
	d, _, _, clicks, _ := newFixture(t, 3)
	d.Dispatch([]hotkey.Action{{Kind: hotkey.KindClickSelectedItem, Button: hotkey.ButtonLeft}})
	assert.Empty(t, clicks.clicks)
}

func TestClickErrorDoesNotStopSequence(t *testing.T) {
	d, m, win, clicks, _ := newFixture(t, 1)
	clicks.err = errors.New("client refused")
	require.True(t, m.Select(0))

	d.Dispatch([]hotkey.Action{
		{Kind: hotkey.KindClickSelectedItem, Button: hotkey.ButtonLeft},
		{Kind: hotkey.KindHideWindow},
	})
	require.Len(t, clicks.clicks, 1)
	assert.Equal(t, 0, win.hides, "window already hidden")

	win.visible = true
	d.Dispatch([]hotkey.Action{
		{Kind: hotkey.KindClickSelectedItem, Button: hotkey.ButtonLeft},
		{Kind: hotkey.KindHideWindow},
	})
	assert.Equal(t, 1, win.hides)
}

func TestActionOrderPreserved(t *testing.T) {
	d, m, win, _, _ := newFixture(t, 2)

	// Select then show: both effects land regardless of window state.
	d.Dispatch([]hotkey.Action{
		{Kind: hotkey.KindSelectItem, Index: 1},
		{Kind: hotkey.KindShowWindow},
	})
	assert.Equal(t, 1, m.SelectedIndex())
	assert.True(t, win.visible)
}
