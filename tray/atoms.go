package tray

import (
	"fmt"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/xprop"
)

// Atoms caches every atom the tray protocol needs. Interned once at startup.
type Atoms struct {
	TraySelection xproto.Atom // _NET_SYSTEM_TRAY_S<screen>
	TrayOpcode    xproto.Atom
	TrayData      xproto.Atom
	Orientation   xproto.Atom
	Manager       xproto.Atom
	XEmbed        xproto.Atom
	XEmbedInfo    xproto.Atom
	WMName        xproto.Atom
	NetWMName     xproto.Atom
	NetWMIcon     xproto.Atom
	UTF8String    xproto.Atom
}

func internAtoms(xu *xgbutil.XUtil, screen int) (Atoms, error) {
	var a Atoms
	var err error
	intern := func(dst *xproto.Atom, name string) {
		if err != nil {
			return
		}
		var atom xproto.Atom
		atom, err = xprop.Atm(xu, name)
		if err != nil {
			err = fmt.Errorf("intern atom %s: %w", name, err)
			return
		}
		*dst = atom
	}

	intern(&a.TraySelection, fmt.Sprintf("_NET_SYSTEM_TRAY_S%d", screen))
	intern(&a.TrayOpcode, "_NET_SYSTEM_TRAY_OPCODE")
	intern(&a.TrayData, "_NET_SYSTEM_TRAY_MESSAGE_DATA")
	intern(&a.Orientation, "_NET_SYSTEM_TRAY_ORIENTATION")
	intern(&a.Manager, "MANAGER")
	intern(&a.XEmbed, "_XEMBED")
	intern(&a.XEmbedInfo, "_XEMBED_INFO")
	intern(&a.WMName, "WM_NAME")
	intern(&a.NetWMName, "_NET_WM_NAME")
	intern(&a.NetWMIcon, "_NET_WM_ICON")
	intern(&a.UTF8String, "UTF8_STRING")
	return a, err
}
