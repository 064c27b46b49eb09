package hotkey

import "fmt"

// Kind enumerates every action a key binding can trigger. The set is closed:
// the config loader rejects tags that do not map to one of these.
type Kind int

const (
	KindHideWindow Kind = iota
	KindShowWindow
	KindToggleWindow
	KindDeselectItem
	KindSelectItem
	KindSelectNextItem
	KindSelectPreviousItem
	KindClickSelectedItem
)

var kindNames = map[Kind]string{
	KindHideWindow:         "HideWindow",
	KindShowWindow:         "ShowWindow",
	KindToggleWindow:       "ToggleWindow",
	KindDeselectItem:       "DeselectItem",
	KindSelectItem:         "SelectItem",
	KindSelectNextItem:     "SelectNextItem",
	KindSelectPreviousItem: "SelectPreviousItem",
	KindClickSelectedItem:  "ClickSelectedItem",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// KindFromString maps a configuration tag to its Kind. The second return is
// false for unknown tags.
func KindFromString(tag string) (Kind, bool) {
	for kind, name := range kindNames {
		if name == tag {
			return kind, true
		}
	}
	return 0, false
}

// Button is an X11 pointer button code used when synthesizing clicks.
type Button uint8

const (
	ButtonLeft   Button = 1
	ButtonMiddle Button = 2
	ButtonRight  Button = 3
	ButtonX1     Button = 8
	ButtonX2     Button = 9
)

var buttonNames = map[string]Button{
	"Left":   ButtonLeft,
	"Middle": ButtonMiddle,
	"Right":  ButtonRight,
	"X1":     ButtonX1,
	"X2":     ButtonX2,
}

// ButtonFromString maps a configuration button name to its X button code.
func ButtonFromString(name string) (Button, bool) {
	b, ok := buttonNames[name]
	return b, ok
}

func (b Button) String() string {
	for name, btn := range buttonNames {
		if btn == b {
			return name
		}
	}
	return fmt.Sprintf("Button(%d)", uint8(b))
}

// Action is one executable step bound to a key. Index is meaningful only for
// KindSelectItem, Button only for KindClickSelectedItem.
type Action struct {
	Kind   Kind
	Index  int
	Button Button
}

func (a Action) String() string {
	switch a.Kind {
	case KindSelectItem:
		return fmt.Sprintf("%s(%d)", a.Kind, a.Index)
	case KindClickSelectedItem:
		return fmt.Sprintf("%s(%s)", a.Kind, a.Button)
	default:
		return a.Kind.String()
	}
}
