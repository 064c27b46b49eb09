package tray

import (
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
)

// XEmbed message opcodes, per the freedesktop.org XEmbed specification.
const (
	xembedEmbeddedNotify   = 0
	xembedWindowActivate   = 1
	xembedWindowDeactivate = 2
	xembedFocusIn          = 4
	xembedFocusOut         = 5
)

// XEmbed focus detail for XEMBED_FOCUS_IN.
const xembedFocusCurrent = 0

const xembedMappedFlag = 1 << 0

// xembedInfo mirrors the _XEMBED_INFO property of a client window.
type xembedInfo struct {
	version uint32
	flags   uint32
	present bool
}

func (i xembedInfo) mapped() bool {
	// A missing property means the client predates XEmbed info; treat it as
	// wanting to be mapped, matching what other tray implementations do.
	if !i.present {
		return true
	}
	return i.flags&xembedMappedFlag != 0
}

func getXEmbedInfo(xu *xgbutil.XUtil, atoms Atoms, win xproto.Window) xembedInfo {
	reply, err := xproto.GetProperty(xu.Conn(), false, win, atoms.XEmbedInfo,
		xproto.GetPropertyTypeAny, 0, 2).Reply()
	if err != nil || reply.Format != 32 || reply.ValueLen < 2 {
		return xembedInfo{}
	}
	data := reply.Value
	version := uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16 | uint32(data[3])<<24
	flags := uint32(data[4]) | uint32(data[5])<<8 | uint32(data[6])<<16 | uint32(data[7])<<24
	return xembedInfo{version: version, flags: flags, present: true}
}

// sendXEmbedMessage delivers an _XEMBED client message to an embedded window.
func sendXEmbedMessage(xu *xgbutil.XUtil, atoms Atoms, win xproto.Window, opcode uint32, detail uint32, data1 uint32, data2 uint32) error {
	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: win,
		Type:   atoms.XEmbed,
		Data: xproto.ClientMessageDataUnionData32New([]uint32{
			uint32(xproto.TimeCurrentTime),
			opcode,
			detail,
			data1,
			data2,
		}),
	}
	return xproto.SendEventChecked(xu.Conn(), false, win,
		xproto.EventMaskStructureNotify, string(ev.Bytes())).Check()
}
