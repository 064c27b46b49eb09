package tray

import (
	"log"
	"time"

	"github.com/BurntSushi/xgb/xproto"
)

// balloon assembles a tray balloon message, which arrives as a BEGIN_MESSAGE
// opcode followed by 20-byte _NET_SYSTEM_TRAY_MESSAGE_DATA chunks.
type balloon struct {
	buf     []byte
	length  int
	id      uint32
	timeout time.Duration
}

func newBalloon(timeoutMillis, length, id uint32) *balloon {
	return &balloon{
		buf:     make([]byte, 0, length),
		length:  int(length),
		id:      id,
		timeout: time.Duration(timeoutMillis) * time.Millisecond,
	}
}

func (b *balloon) remaining() int {
	return b.length - len(b.buf)
}

// write appends one chunk, ignoring padding past the declared length.
// Reports whether the message is complete.
func (b *balloon) write(chunk []byte) bool {
	n := b.remaining()
	if n > len(chunk) {
		n = len(chunk)
	}
	if n > 0 {
		b.buf = append(b.buf, chunk[:n]...)
	}
	return b.remaining() == 0
}

func (b *balloon) text() string {
	return string(b.buf)
}

func (mgr *Manager) beginBalloon(win xproto.Window, data []uint32) {
	if len(data) < 5 {
		log.Printf("Ignoring malformed balloon begin from window %d", win)
		return
	}
	mgr.balloons[win] = newBalloon(data[2], data[3], data[4])
	if mgr.balloons[win].remaining() == 0 {
		delete(mgr.balloons, win)
	}
}

func (mgr *Manager) cancelBalloon(win xproto.Window, data []uint32) {
	b, ok := mgr.balloons[win]
	if !ok || len(data) < 3 {
		return
	}
	if b.id == data[2] {
		delete(mgr.balloons, win)
	}
}

func (mgr *Manager) balloonData(win xproto.Window, chunk []byte) {
	b, ok := mgr.balloons[win]
	if !ok {
		return
	}
	if b.write(chunk) {
		delete(mgr.balloons, win)
		log.Printf("Tray message from window %d (timeout %s): %s", win, b.timeout, b.text())
	}
}
