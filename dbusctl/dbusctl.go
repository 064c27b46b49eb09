// Package dbusctl exposes the tray's actions on the session bus so scripts
// and desktop keybinding daemons can drive it:
//
//	dbus-send --session --dest=io.github.keynavtray.KeynavTray \
//	    /  io.github.keynavtray.KeynavTray.ToggleWindow
//
// Method calls enqueue actions for the event loop; they never touch X state
// from the bus goroutine.
package dbusctl

import (
	"fmt"
	"log"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"keynav-tray/hotkey"
)

const (
	BusName    = "io.github.keynavtray.KeynavTray"
	ObjectPath = dbus.ObjectPath("/")
)

// control is the exported method set. Every method maps 1:1 to an action.
type control struct {
	actions chan<- hotkey.Action
}

// enqueue hands an action to the event loop without ever blocking the bus
// goroutine. A full queue drops the call; the reply still succeeds since the
// caller can do nothing useful with the failure.
func (c *control) enqueue(a hotkey.Action) *dbus.Error {
	select {
	case c.actions <- a:
	default:
		log.Printf("Action queue full, dropping %v from D-Bus", a)
	}
	return nil
}

func (c *control) HideWindow() *dbus.Error {
	return c.enqueue(hotkey.Action{Kind: hotkey.KindHideWindow})
}

func (c *control) ShowWindow() *dbus.Error {
	return c.enqueue(hotkey.Action{Kind: hotkey.KindShowWindow})
}

func (c *control) ToggleWindow() *dbus.Error {
	return c.enqueue(hotkey.Action{Kind: hotkey.KindToggleWindow})
}

func (c *control) DeselectItem() *dbus.Error {
	return c.enqueue(hotkey.Action{Kind: hotkey.KindDeselectItem})
}

func (c *control) SelectNextItem() *dbus.Error {
	return c.enqueue(hotkey.Action{Kind: hotkey.KindSelectNextItem})
}

func (c *control) SelectPreviousItem() *dbus.Error {
	return c.enqueue(hotkey.Action{Kind: hotkey.KindSelectPreviousItem})
}

func (c *control) SelectItem(index int32) *dbus.Error {
	if index < 0 {
		return dbus.MakeFailedError(fmt.Errorf("item index must be non-negative, got %d", index))
	}
	return c.enqueue(hotkey.Action{Kind: hotkey.KindSelectItem, Index: int(index)})
}

func (c *control) ClickSelectedItem(button string) *dbus.Error {
	b, ok := hotkey.ButtonFromString(button)
	if !ok {
		return dbus.MakeFailedError(fmt.Errorf("unknown button %q, want Left|Right|Middle|X1|X2", button))
	}
	return c.enqueue(hotkey.Action{Kind: hotkey.KindClickSelectedItem, Button: b})
}

// Service is the live bus connection. Close releases the name.
type Service struct {
	conn *dbus.Conn
}

// Start connects to the session bus, exports the control object and claims
// the well-known name. Callers treat failure as non-fatal: the tray works
// without a bus, only remote control is lost.
func Start(actions chan<- hotkey.Action) (*Service, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}

	ctl := &control{actions: actions}
	if err := conn.Export(ctl, ObjectPath, BusName); err != nil {
		conn.Close()
		return nil, fmt.Errorf("export control object: %w", err)
	}
	node := &introspect.Node{
		Name: string(ObjectPath),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{Name: BusName, Methods: introspect.Methods(ctl)},
		},
	}
	err = conn.Export(introspect.NewIntrospectable(node), ObjectPath,
		"org.freedesktop.DBus.Introspectable")
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("export introspection: %w", err)
	}

	reply, err := conn.RequestName(BusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		conn.Close()
		return nil, fmt.Errorf("bus name %s already taken", BusName)
	}

	log.Printf("D-Bus control available as %s", BusName)
	return &Service{conn: conn}, nil
}

func (s *Service) Close() {
	if s == nil || s.conn == nil {
		return
	}
	s.conn.ReleaseName(BusName)
	s.conn.Close()
}
