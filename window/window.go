// Package window owns the tray popup window: creation with the WM hints that
// keep it above and sticky, show/hide/toggle, and resizing to the computed
// layout while staying centered on screen.
package window

import (
	"fmt"
	"os"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/BurntSushi/xgbutil/xwindow"

	"keynav-tray/config"
)

const eventMask = xproto.EventMaskKeyPress |
	xproto.EventMaskKeyRelease |
	xproto.EventMaskFocusChange |
	xproto.EventMaskExposure |
	xproto.EventMaskStructureNotify |
	xproto.EventMaskSubstructureNotify |
	xproto.EventMaskPropertyChange

// Window is the tray popup. Starts hidden; Show maps and focuses it.
type Window struct {
	xu       *xgbutil.XUtil
	win      *xwindow.Window
	width    int
	height   int
	visible  bool
	focused  bool
	autoHide bool
}

// New creates the (unmapped) tray window centered on screen with an initial
// one-row height. The WM properties pin it above other windows and on every
// desktop, so toggling it never triggers a workspace switch.
func New(xu *xgbutil.XUtil, cfg config.WindowConfig, initialHeight int) (*Window, error) {
	win, err := xwindow.Generate(xu)
	if err != nil {
		return nil, fmt.Errorf("allocate tray window id: %w", err)
	}

	x, y := center(xu, cfg.Width, initialHeight)
	err = win.CreateChecked(xu.RootWin(), x, y, cfg.Width, initialHeight,
		xproto.CwBackPixel|xproto.CwEventMask, 0x000000, eventMask)
	if err != nil {
		return nil, fmt.Errorf("create tray window: %w", err)
	}

	if err := ewmh.WmNameSet(xu, win.Id, cfg.Name); err != nil {
		return nil, fmt.Errorf("set window name: %w", err)
	}
	err = icccm.WmClassSet(xu, win.Id, &icccm.WmClass{Instance: cfg.Name, Class: cfg.Class})
	if err != nil {
		return nil, fmt.Errorf("set window class: %w", err)
	}
	err = icccm.WmProtocolsSet(xu, win.Id, []string{"WM_DELETE_WINDOW", "_NET_WM_PING"})
	if err != nil {
		return nil, fmt.Errorf("set window protocols: %w", err)
	}
	err = ewmh.WmWindowTypeSet(xu, win.Id, []string{
		"_NET_WM_WINDOW_TYPE_UTILITY",
		"_NET_WM_WINDOW_TYPE_NORMAL",
	})
	if err != nil {
		return nil, fmt.Errorf("set window type: %w", err)
	}
	err = ewmh.WmStateSet(xu, win.Id, []string{
		"_NET_WM_STATE_ABOVE",
		"_NET_WM_STATE_STICKY",
		"_NET_WM_STATE_SKIP_TASKBAR",
		"_NET_WM_STATE_SKIP_PAGER",
	})
	if err != nil {
		return nil, fmt.Errorf("set window state: %w", err)
	}
	// All desktops.
	if err := ewmh.WmDesktopSet(xu, win.Id, 0xFFFFFFFF); err != nil {
		return nil, fmt.Errorf("set window desktop: %w", err)
	}
	if err := ewmh.WmPidSet(xu, win.Id, uint(os.Getpid())); err != nil {
		return nil, fmt.Errorf("set window pid: %w", err)
	}

	return &Window{
		xu:       xu,
		win:      win,
		width:    cfg.Width,
		height:   initialHeight,
		autoHide: cfg.AutoHide,
	}, nil
}

func center(xu *xgbutil.XUtil, width, height int) (int, int) {
	screen := xu.Screen()
	x := (int(screen.WidthInPixels) - width) / 2
	y := (int(screen.HeightInPixels) - height) / 2
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	return x, y
}

// Id returns the X window id. The tray manager uses it as the embed container.
func (w *Window) Id() xproto.Window {
	return w.win.Id
}

// Show maps the window, raises it and takes the input focus.
func (w *Window) Show() {
	w.win.Map()
	w.win.Stack(xproto.StackModeAbove)
	w.win.Focus()
	w.visible = true
}

// Hide unmaps the window. The selection cursor is untouched so it survives a
// hide/show cycle.
func (w *Window) Hide() {
	w.win.Unmap()
	w.visible = false
	w.focused = false
}

// Toggle hides a visible window and shows a hidden one.
func (w *Window) Toggle() {
	if w.visible {
		w.Hide()
	} else {
		w.Show()
	}
}

// Resize grows or shrinks the window to the layout height and re-centers it.
// No-op when the height is unchanged.
func (w *Window) Resize(height int) {
	if height == w.height {
		return
	}
	w.height = height
	x, y := center(w.xu, w.width, height)
	w.win.MoveResize(x, y, w.width, height)
}

func (w *Window) Width() int     { return w.width }
func (w *Window) Visible() bool  { return w.visible }
func (w *Window) Focused() bool  { return w.focused }
func (w *Window) AutoHide() bool { return w.autoHide }

// SetFocused records focus state reported by FocusIn/FocusOut events.
func (w *Window) SetFocused(focused bool) {
	w.focused = focused
}

// SetVisible records visibility reported by Map/UnmapNotify, which may change
// outside our control (the WM can unmap us).
func (w *Window) SetVisible(visible bool) {
	w.visible = visible
}

func (w *Window) Destroy() {
	w.win.Destroy()
}
