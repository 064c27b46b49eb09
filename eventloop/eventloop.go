// Package eventloop runs the single-threaded heart of the program: one
// goroutine reads X events off the wire, the loop goroutine multiplexes them
// with control actions, signals and the auto-hide timer, and every mutation
// funnels through here. No other goroutine touches the model or the window.
package eventloop

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/keybind"
	"github.com/BurntSushi/xgbutil/xprop"

	"keynav-tray/config"
	"keynav-tray/dispatch"
	"keynav-tray/hotkey"
	"keynav-tray/model"
	"keynav-tray/render"
	"keynav-tray/tray"
	"keynav-tray/window"
)

// autoHideDelay debounces focus flicker: alt-tabbing through the tray window
// must not immediately hide it.
const autoHideDelay = 200 * time.Millisecond

// ErrSelectionLost reports that another tray manager claimed the selection.
var ErrSelectionLost = errors.New("tray selection taken by another manager")

type Loop struct {
	xu      *xgbutil.XUtil
	cfg     *config.Config
	model   *model.Model
	win     *window.Window
	mgr     *tray.Manager
	table   *hotkey.Table
	disp    *dispatch.Dispatcher
	sched   *render.Scheduler
	painter *render.Painter

	actions  chan hotkey.Action
	autoHide *time.Timer

	wmProtocols xproto.Atom
	wmDelete    xproto.Atom
	netWmPing   xproto.Atom
}

// New wires the scheduler and dispatcher around the given components.
func New(xu *xgbutil.XUtil, cfg *config.Config, m *model.Model, win *window.Window,
	mgr *tray.Manager, table *hotkey.Table, painter *render.Painter) (*Loop, error) {

	l := &Loop{
		xu:      xu,
		cfg:     cfg,
		model:   m,
		win:     win,
		mgr:     mgr,
		table:   table,
		painter: painter,
		actions: make(chan hotkey.Action, 16),
	}
	l.sched = render.NewScheduler(l.redraw)
	l.disp = dispatch.New(m, win, mgr, &cfg.UI, cfg.Window.Width, l.sched)

	var err error
	if l.wmProtocols, err = xprop.Atm(xu, "WM_PROTOCOLS"); err != nil {
		return nil, fmt.Errorf("intern WM_PROTOCOLS: %w", err)
	}
	if l.wmDelete, err = xprop.Atm(xu, "WM_DELETE_WINDOW"); err != nil {
		return nil, fmt.Errorf("intern WM_DELETE_WINDOW: %w", err)
	}
	if l.netWmPing, err = xprop.Atm(xu, "_NET_WM_PING"); err != nil {
		return nil, fmt.Errorf("intern _NET_WM_PING: %w", err)
	}

	l.autoHide = time.NewTimer(autoHideDelay)
	if !l.autoHide.Stop() {
		<-l.autoHide.C
	}
	return l, nil
}

// Actions returns the channel remote control surfaces (D-Bus) enqueue into.
// The loop drains it; senders must never block on it.
func (l *Loop) Actions() chan<- hotkey.Action {
	return l.actions
}

// MarkDirty exposes the scheduler for components that mutate outside dispatch,
// such as the tray manager's dock notifications.
func (l *Loop) MarkDirty() {
	l.sched.MarkDirty()
}

// Bind validates every configured keysym against the current keymap and grabs
// the global bindings on the root window. An unknown keysym or a failed grab
// is a startup error: a binding that can never fire is a misconfiguration.
func (l *Loop) Bind() error {
	for _, b := range l.table.Bindings() {
		keycodes := keybind.StrToKeycodes(l.xu, b.Keysym)
		if len(keycodes) == 0 {
			return fmt.Errorf("keysym %q is not on the current keymap", b.Keysym)
		}
		if !b.Global {
			continue
		}
		for _, kc := range keycodes {
			if err := keybind.GrabChecked(l.xu, l.xu.RootWin(), b.Mods, kc); err != nil {
				return fmt.Errorf("grab global key %s (mods %#x): %w", b.Keysym, b.Mods, err)
			}
		}
		log.Printf("Grabbed global key %s (mods %#x)", b.Keysym, b.Mods)
	}
	return nil
}

// redraw recomputes layout, resizes the window to fit, places the embedded
// icon windows and paints. Skipped entirely while hidden; the next Show marks
// dirty again.
func (l *Loop) redraw() error {
	if !l.win.Visible() {
		return nil
	}
	layout := render.Compute(&l.cfg.UI, l.model.Len(), l.win.Width())
	l.win.Resize(layout.Height)
	l.mgr.ConfigureItems(layout.IconRects())
	return l.painter.Paint(layout)
}

// Run blocks until a shutdown signal arrives, the X connection drops, or the
// tray selection is lost to another manager.
func (l *Loop) Run(stop <-chan os.Signal) error {
	events := make(chan xgb.Event, 64)
	go l.pump(events)

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return errors.New("X connection closed")
			}
			if err := l.handle(ev); err != nil {
				return err
			}
		case a := <-l.actions:
			l.disp.Dispatch([]hotkey.Action{a})
		case <-l.autoHide.C:
			if l.win.AutoHide() && l.win.Visible() && !l.win.Focused() {
				log.Printf("Auto-hiding after focus loss")
				l.win.Hide()
			}
		case sig := <-stop:
			log.Printf("Received %v, shutting down", sig)
			return nil
		}
		l.sched.Flush()
	}
}

// pump moves events from the blocking X read onto the loop's channel. Closes
// the channel when the connection dies.
func (l *Loop) pump(events chan<- xgb.Event) {
	for {
		ev, xerr := l.xu.Conn().WaitForEvent()
		if ev == nil && xerr == nil {
			close(events)
			return
		}
		if xerr != nil {
			log.Printf("X error: %v", xerr)
			continue
		}
		events <- ev
	}
}

func (l *Loop) handle(ev xgb.Event) error {
	switch e := ev.(type) {
	case xproto.KeyPressEvent:
		// Bindings fire on release so a held key cannot autorepeat actions
		// against a window that already toggled away.
	case xproto.KeyReleaseEvent:
		l.handleKey(e)
	case xproto.FocusInEvent:
		if e.Mode == xproto.NotifyModeNormal {
			l.win.SetFocused(true)
			l.mgr.Activate(true)
		}
	case xproto.FocusOutEvent:
		if e.Mode == xproto.NotifyModeNormal {
			l.win.SetFocused(false)
			l.mgr.Activate(false)
			if l.win.AutoHide() && l.win.Visible() {
				l.autoHide.Reset(autoHideDelay)
			}
		}
	case xproto.ExposeEvent:
		if e.Window == l.win.Id() {
			l.sched.MarkDirty()
		}
	case xproto.ConfigureNotifyEvent:
		if e.Window == l.win.Id() {
			l.sched.MarkDirty()
		}
	case xproto.MapNotifyEvent:
		if e.Window == l.win.Id() {
			l.win.SetVisible(true)
			l.sched.MarkDirty()
		}
	case xproto.UnmapNotifyEvent:
		if e.Window == l.win.Id() {
			l.win.SetVisible(false)
		} else {
			// An embedded icon unmapping itself is an undock.
			l.mgr.HandleUnmap(e.Window)
		}
	case xproto.DestroyNotifyEvent:
		l.mgr.HandleGone(e.Window)
	case xproto.ReparentNotifyEvent:
		l.mgr.HandleReparentNotify(e)
	case xproto.PropertyNotifyEvent:
		l.mgr.HandlePropertyNotify(e)
	case xproto.ClientMessageEvent:
		l.handleClientMessage(e)
	case xproto.SelectionClearEvent:
		if e.Selection == l.mgr.SelectionAtom() && e.Owner == l.mgr.OwnerWindow() {
			log.Printf("Tray selection claimed by another manager, exiting")
			l.mgr.HandleSelectionCleared()
			return ErrSelectionLost
		}
	case xproto.MappingNotifyEvent:
		// Keymap changed under us; refresh so keysym lookups stay correct.
		keybind.Initialize(l.xu)
	}
	return nil
}

func (l *Loop) handleKey(ev xproto.KeyReleaseEvent) {
	keysym := keybind.LookupString(l.xu, ev.State, ev.Detail)
	actions := l.table.Resolve(keysym, ev.State, l.win.Focused())
	if actions == nil {
		return
	}
	log.Printf("Key %s (mods %#x) resolved to %d action(s)", keysym, ev.State&hotkey.RecognizedMods, len(actions))
	l.disp.Dispatch(actions)
}

func (l *Loop) handleClientMessage(ev xproto.ClientMessageEvent) {
	if ev.Window == l.win.Id() && ev.Type == l.wmProtocols && ev.Format == 32 {
		switch xproto.Atom(ev.Data.Data32[0]) {
		case l.wmDelete:
			// Close from the WM hides rather than quits; the tray keeps
			// managing in the background.
			l.win.Hide()
		case l.netWmPing:
			l.pong(ev)
		}
		return
	}
	if !l.mgr.HandleClientMessage(ev) {
		log.Printf("Ignoring client message type %d on window %d", ev.Type, ev.Window)
	}
}

// pong answers _NET_WM_PING by bouncing the message back at the root window.
func (l *Loop) pong(ev xproto.ClientMessageEvent) {
	ev.Window = l.xu.RootWin()
	err := xproto.SendEventChecked(l.xu.Conn(), false, l.xu.RootWin(),
		xproto.EventMaskSubstructureNotify|xproto.EventMaskSubstructureRedirect,
		string(ev.Bytes())).Check()
	if err != nil {
		log.Printf("Failed to answer _NET_WM_PING: %v", err)
	}
}
