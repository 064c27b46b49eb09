// Package tray implements the freedesktop.org system tray manager side:
// ownership of the per-screen tray selection, the XEmbed lifecycle of docked
// client windows, and synthetic click delivery to embedded windows.
package tray

import (
	"errors"
	"fmt"
	"image"
	"log"
	"sync"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/BurntSushi/xgbutil/xgraphics"

	"keynav-tray/hotkey"
	"keynav-tray/model"
)

// System tray opcodes carried in _NET_SYSTEM_TRAY_OPCODE client messages.
const (
	opcodeRequestDock   = 0
	opcodeBeginMessage  = 1
	opcodeCancelMessage = 2
)

const orientationVertical = 1

// ErrTrayAlreadyRunning reports that another process owns the tray selection.
var ErrTrayAlreadyRunning = errors.New("tray selection already owned by another process")

// Manager owns the tray selection and every embedded client window. It is the
// only component allowed to reparent or destroy foreign windows. All methods
// must be called from the event loop goroutine.
type Manager struct {
	xu        *xgbutil.XUtil
	atoms     Atoms
	screenNum int
	owner     xproto.Window // InputOnly selection owner window
	container xproto.Window // the tray window items are reparented into
	model     *model.Model
	iconSize  int
	notify    func()
	balloons  map[xproto.Window]*balloon
	// icons we unmapped because the client cleared XEMBED_MAPPED; their
	// UnmapNotify must not be mistaken for an undock
	hiddenIcons map[xproto.Window]bool
	acquired    bool
	release     sync.Once
}

// New interns the tray atoms and creates the hidden selection owner window.
// The selection itself is not claimed until Acquire.
func New(xu *xgbutil.XUtil, container xproto.Window, m *model.Model, iconSize int, notify func()) (*Manager, error) {
	screenNum := xu.Conn().DefaultScreen
	atoms, err := internAtoms(xu, screenNum)
	if err != nil {
		return nil, err
	}

	owner, err := xproto.NewWindowId(xu.Conn())
	if err != nil {
		return nil, fmt.Errorf("allocate selection owner window id: %w", err)
	}
	err = xproto.CreateWindowChecked(
		xu.Conn(),
		0,
		owner,
		xu.RootWin(),
		0, 0, 1, 1,
		0,
		xproto.WindowClassInputOnly,
		xu.Screen().RootVisual,
		xproto.CwEventMask,
		[]uint32{xproto.EventMaskPropertyChange},
	).Check()
	if err != nil {
		return nil, fmt.Errorf("create selection owner window: %w", err)
	}

	err = xproto.ChangePropertyChecked(xu.Conn(), xproto.PropModeReplace, owner,
		atoms.Orientation, xproto.AtomCardinal, 32, 1,
		[]byte{orientationVertical, 0, 0, 0}).Check()
	if err != nil {
		return nil, fmt.Errorf("set tray orientation: %w", err)
	}

	if notify == nil {
		notify = func() {}
	}
	return &Manager{
		xu:          xu,
		atoms:       atoms,
		screenNum:   screenNum,
		owner:       owner,
		container:   container,
		model:       m,
		iconSize:    iconSize,
		notify:      notify,
		balloons:    make(map[xproto.Window]*balloon),
		hiddenIcons: make(map[xproto.Window]bool),
	}, nil
}

// SelectionAtom returns the per-screen tray selection atom, used by the event
// loop to recognize SelectionClear.
func (mgr *Manager) SelectionAtom() xproto.Atom {
	return mgr.atoms.TraySelection
}

// OwnerWindow returns the hidden selection owner window id.
func (mgr *Manager) OwnerWindow() xproto.Window {
	return mgr.owner
}

// Acquire claims the tray selection for this process. If another client
// already owns it the startup must abort: clients would keep docking into the
// other tray.
func (mgr *Manager) Acquire() error {
	reply, err := xproto.GetSelectionOwner(mgr.xu.Conn(), mgr.atoms.TraySelection).Reply()
	if err != nil {
		return fmt.Errorf("query tray selection owner: %w", err)
	}
	if reply.Owner != xproto.WindowNone {
		return fmt.Errorf("%w (window %d)", ErrTrayAlreadyRunning, reply.Owner)
	}

	err = xproto.SetSelectionOwnerChecked(mgr.xu.Conn(), mgr.owner,
		mgr.atoms.TraySelection, xproto.TimeCurrentTime).Check()
	if err != nil {
		return fmt.Errorf("set tray selection owner: %w", err)
	}

	// The server may silently refuse; confirm we actually own it.
	reply, err = xproto.GetSelectionOwner(mgr.xu.Conn(), mgr.atoms.TraySelection).Reply()
	if err != nil || reply.Owner != mgr.owner {
		return fmt.Errorf("tray selection ownership not granted")
	}
	mgr.acquired = true

	if err := mgr.broadcastManager(); err != nil {
		return err
	}
	log.Printf("Acquired tray selection (owner window %d)", mgr.owner)
	return nil
}

// broadcastManager announces the new tray manager to clients waiting to dock.
func (mgr *Manager) broadcastManager() error {
	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: mgr.xu.RootWin(),
		Type:   mgr.atoms.Manager,
		Data: xproto.ClientMessageDataUnionData32New([]uint32{
			uint32(xproto.TimeCurrentTime),
			uint32(mgr.atoms.TraySelection),
			uint32(mgr.owner),
			0,
			0,
		}),
	}
	err := xproto.SendEventChecked(mgr.xu.Conn(), false, mgr.xu.RootWin(),
		xproto.EventMaskStructureNotify, string(ev.Bytes())).Check()
	if err != nil {
		return fmt.Errorf("broadcast MANAGER message: %w", err)
	}
	return nil
}

// Release unembeds every remaining item, drops the tray selection and
// destroys the owner window. Safe to call multiple times and from any exit
// path; only the first call acts. After a SelectionClear the selection is
// left untouched: it belongs to the successor.
func (mgr *Manager) Release() {
	mgr.release.Do(func() {
		for _, win := range mgr.model.Windows() {
			mgr.unembed(win)
			mgr.model.Remove(win)
		}
		if mgr.acquired {
			err := xproto.SetSelectionOwnerChecked(mgr.xu.Conn(), xproto.WindowNone,
				mgr.atoms.TraySelection, xproto.TimeCurrentTime).Check()
			if err != nil {
				log.Printf("Failed to release tray selection: %v", err)
			}
			mgr.acquired = false
		}
		if mgr.owner != xproto.WindowNone {
			xproto.DestroyWindow(mgr.xu.Conn(), mgr.owner)
		}
		log.Printf("Released tray selection")
	})
}

// HandleSelectionCleared records that another manager took the tray
// selection: hand the remaining items back to the root and forget we ever
// owned the selection, so the eventual Release cannot clobber the successor's
// ownership.
func (mgr *Manager) HandleSelectionCleared() {
	mgr.acquired = false
	for _, win := range mgr.model.Windows() {
		mgr.unembed(win)
		mgr.model.Remove(win)
	}
	mgr.notify()
}

// parseDockRequest extracts the opcode and icon window from a tray opcode
// message. Reports ok=false for short or malformed payloads.
func parseDockRequest(data []uint32) (opcode uint32, icon xproto.Window, ok bool) {
	if len(data) < 3 {
		return 0, 0, false
	}
	return data[1], xproto.Window(data[2]), true
}

// HandleClientMessage routes tray protocol client messages. Returns true if
// the event belonged to the tray protocol.
func (mgr *Manager) HandleClientMessage(ev xproto.ClientMessageEvent) bool {
	switch ev.Type {
	case mgr.atoms.TrayOpcode:
		data := ev.Data.Data32
		opcode, icon, ok := parseDockRequest(data)
		if !ok {
			log.Printf("Ignoring malformed tray opcode message from window %d", ev.Window)
			return true
		}
		switch opcode {
		case opcodeRequestDock:
			if icon == xproto.WindowNone {
				log.Printf("Ignoring dock request with no window")
				return true
			}
			log.Printf("Dock request from window %d", icon)
			mgr.embed(icon)
		case opcodeBeginMessage:
			mgr.beginBalloon(ev.Window, data)
		case opcodeCancelMessage:
			mgr.cancelBalloon(ev.Window, data)
		}
		return true
	case mgr.atoms.TrayData:
		mgr.balloonData(ev.Window, ev.Data.Data8)
		return true
	}
	return false
}

// embed runs the manager side of the XEmbed handshake for a dock request.
// The item is tracked as Requesting while the handshake is in flight, so a
// duplicate dock arriving mid-handshake is refused. Any failure is logged and
// the item dropped; a half-docked client must never take the event loop down.
func (mgr *Manager) embed(icon xproto.Window) {
	if mgr.model.Contains(icon) {
		log.Printf("Window %d is already embedded, ignoring duplicate dock request", icon)
		return
	}
	mgr.model.Add(model.Item{Window: icon, State: model.StateRequesting})

	conn := mgr.xu.Conn()
	abort := func(stage string, err error) {
		log.Printf("Dock request from window %d failed (%s): %v", icon, stage, err)
		mgr.model.Remove(icon)
	}

	err := xproto.ChangeWindowAttributesChecked(conn, icon, xproto.CwEventMask,
		[]uint32{xproto.EventMaskPropertyChange | xproto.EventMaskStructureNotify}).Check()
	if err != nil {
		abort("select events", err)
		return
	}

	// The save-set guarantees the client window survives if we crash: the
	// server reparents it back to the root for us.
	if err := xproto.ChangeSaveSetChecked(conn, xproto.SetModeInsert, icon).Check(); err != nil {
		abort("save-set", err)
		return
	}

	if err := xproto.ReparentWindowChecked(conn, icon, mgr.container, 0, 0).Check(); err != nil {
		abort("reparent", err)
		return
	}

	size := uint32(mgr.iconSize)
	err = xproto.ConfigureWindowChecked(conn, icon,
		xproto.ConfigWindowWidth|xproto.ConfigWindowHeight, []uint32{size, size}).Check()
	if err != nil {
		log.Printf("Failed to resize icon window %d: %v", icon, err)
	}

	info := getXEmbedInfo(mgr.xu, mgr.atoms, icon)
	err = sendXEmbedMessage(mgr.xu, mgr.atoms, icon, xembedEmbeddedNotify, 0,
		uint32(mgr.container), info.version)
	if err != nil {
		log.Printf("Failed to send XEMBED_EMBEDDED_NOTIFY to window %d: %v", icon, err)
	}

	if info.mapped() {
		xproto.MapWindow(conn, icon)
	}

	title := mgr.fetchTitle(icon)
	iconImage := mgr.fetchIcon(icon)
	mgr.model.Update(icon, func(it *model.Item) {
		it.State = model.StateEmbedded
		it.Title = title
		it.Icon = iconImage
	})
	mgr.notify()
}

// unembed reverses the handshake: hide the window, hand it back to the root
// and forget it. Reparent must happen after unmap so the client is never
// shown outside the tray.
func (mgr *Manager) unembed(icon xproto.Window) {
	conn := mgr.xu.Conn()
	mgr.model.Update(icon, func(it *model.Item) { it.State = model.StateUnembedding })

	xproto.ChangeWindowAttributes(conn, icon, xproto.CwEventMask, []uint32{0})
	if err := xproto.UnmapWindowChecked(conn, icon).Check(); err != nil {
		log.Printf("Failed to unmap window %d during unembed: %v", icon, err)
	}
	if err := xproto.ReparentWindowChecked(conn, icon, mgr.xu.RootWin(), 0, 0).Check(); err != nil {
		log.Printf("Failed to reparent window %d back to root: %v", icon, err)
	}
	xproto.ChangeSaveSet(conn, xproto.SetModeDelete, icon)
}

func (mgr *Manager) fetchTitle(win xproto.Window) string {
	if name, err := ewmh.WmNameGet(mgr.xu, win); err == nil && name != "" {
		return name
	}
	if name, err := icccm.WmNameGet(mgr.xu, win); err == nil {
		return name
	}
	// Blank titles are legal; the renderer must cope.
	return ""
}

func (mgr *Manager) fetchIcon(win xproto.Window) *xgraphics.Image {
	icon, err := xgraphics.FindIcon(mgr.xu, win, mgr.iconSize, mgr.iconSize)
	if err != nil {
		log.Printf("No usable icon for window %d: %v", win, err)
		return nil
	}
	return icon
}

// HandlePropertyNotify keeps titles, icons and XEmbed map state current for
// embedded windows. Unrelated windows are ignored.
func (mgr *Manager) HandlePropertyNotify(ev xproto.PropertyNotifyEvent) {
	if !mgr.model.Contains(ev.Window) {
		return
	}
	switch ev.Atom {
	case mgr.atoms.WMName, mgr.atoms.NetWMName:
		title := mgr.fetchTitle(ev.Window)
		mgr.model.Update(ev.Window, func(it *model.Item) { it.Title = title })
		mgr.notify()
	case mgr.atoms.NetWMIcon:
		icon := mgr.fetchIcon(ev.Window)
		mgr.model.Update(ev.Window, func(it *model.Item) { it.Icon = icon })
		mgr.notify()
	case mgr.atoms.XEmbedInfo:
		// Clearing XEMBED_MAPPED is how a client hides its icon without
		// undocking; the item stays in the tray.
		info := getXEmbedInfo(mgr.xu, mgr.atoms, ev.Window)
		if info.mapped() {
			delete(mgr.hiddenIcons, ev.Window)
			xproto.MapWindow(mgr.xu.Conn(), ev.Window)
		} else {
			mgr.hiddenIcons[ev.Window] = true
			xproto.UnmapWindow(mgr.xu.Conn(), ev.Window)
		}
		mgr.notify()
	}
}

// HandleGone removes an embedded window after a DestroyNotify or a reparent
// away from the container. No X calls are made against the dead window.
func (mgr *Manager) HandleGone(win xproto.Window) {
	if !mgr.model.Contains(win) {
		return
	}
	delete(mgr.balloons, win)
	delete(mgr.hiddenIcons, win)
	mgr.model.Remove(win)
	mgr.notify()
	log.Printf("Window %d left the tray", win)
}

// HandleUnmap undocks a live embedded window that unmapped itself: hand it
// back to the root before forgetting it, so it does not die with the tray.
// Unmaps we issued ourselves after a cleared XEMBED_MAPPED are not undocks.
func (mgr *Manager) HandleUnmap(win xproto.Window) {
	if mgr.hiddenIcons[win] {
		return
	}
	if !mgr.model.Contains(win) {
		return
	}
	mgr.unembed(win)
	mgr.HandleGone(win)
}

// HandleReparentNotify removes an item when its window reparents away from
// the tray container (a client undocking itself).
func (mgr *Manager) HandleReparentNotify(ev xproto.ReparentNotifyEvent) {
	if ev.Parent == mgr.container {
		return
	}
	mgr.HandleGone(ev.Window)
}

// ConfigureItems moves each embedded window to its icon rectangle, in item
// order. Called from the render flush after layout.
func (mgr *Manager) ConfigureItems(iconRects []image.Rectangle) {
	conn := mgr.xu.Conn()
	for i, win := range mgr.model.Windows() {
		if i >= len(iconRects) {
			break
		}
		r := iconRects[i]
		mgr.model.SetBounds(win, r)
		err := xproto.ConfigureWindowChecked(conn, win,
			xproto.ConfigWindowX|xproto.ConfigWindowY|
				xproto.ConfigWindowWidth|xproto.ConfigWindowHeight,
			[]uint32{uint32(r.Min.X), uint32(r.Min.Y), uint32(r.Dx()), uint32(r.Dy())}).Check()
		if err != nil {
			log.Printf("Failed to place icon window %d: %v", win, err)
		}
	}
}

// Activate notifies every embedded window that the tray window gained or lost
// the focus, per the XEmbed activation protocol.
func (mgr *Manager) Activate(active bool) {
	opcode := uint32(xembedWindowDeactivate)
	if active {
		opcode = xembedWindowActivate
	}
	for _, win := range mgr.model.Windows() {
		if err := sendXEmbedMessage(mgr.xu, mgr.atoms, win, opcode, 0, 0, 0); err != nil {
			log.Printf("Failed to send XEmbed activation to window %d: %v", win, err)
		}
	}
}

func buttonMask(b hotkey.Button) uint16 {
	switch b {
	case hotkey.ButtonLeft:
		return xproto.ButtonMask1
	case hotkey.ButtonMiddle:
		return xproto.ButtonMask2
	case hotkey.ButtonRight:
		return xproto.ButtonMask3
	}
	return 0
}

// Click synthesizes a button press/release pair addressed to an embedded
// window at the center of its icon rectangle. This is how a keyboard-only
// user reaches the client's native click behavior. Refusals (e.g. a client
// rejecting sent events) surface as an error for the caller to log.
func (mgr *Manager) Click(it model.Item, iconRect image.Rectangle, button hotkey.Button) error {
	conn := mgr.xu.Conn()

	cx := int16(iconRect.Dx() / 2)
	cy := int16(iconRect.Dy() / 2)
	abs, err := xproto.TranslateCoordinates(conn, mgr.container, mgr.xu.RootWin(),
		int16(iconRect.Min.X)+cx, int16(iconRect.Min.Y)+cy).Reply()
	if err != nil {
		return fmt.Errorf("translate click coordinates: %w", err)
	}

	press := xproto.ButtonPressEvent{
		Detail:     xproto.Button(button),
		Time:       xproto.TimeCurrentTime,
		Root:       mgr.xu.RootWin(),
		Event:      it.Window,
		Child:      xproto.WindowNone,
		RootX:      abs.DstX,
		RootY:      abs.DstY,
		EventX:     cx,
		EventY:     cy,
		State:      buttonMask(button),
		SameScreen: true,
	}

	if err := xproto.SendEventChecked(conn, true, it.Window, xproto.EventMaskNoEvent,
		string(press.Bytes())).Check(); err != nil {
		return fmt.Errorf("send button press: %w", err)
	}

	release := press.Bytes()
	release[0] = xproto.ButtonRelease
	if err := xproto.SendEventChecked(conn, true, it.Window, xproto.EventMaskNoEvent,
		string(release)).Check(); err != nil {
		return fmt.Errorf("send button release: %w", err)
	}
	return nil
}
