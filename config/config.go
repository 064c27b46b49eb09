// Package config loads the TOML configuration file and compiles its key
// binding records into the immutable form the resolver consumes. Unknown
// action tags, bad colors and bad font descriptors are load-time errors;
// duplicate bindings are not (the table resolves them first-wins).
package config

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/joho/godotenv"

	"keynav-tray/hotkey"
)

type Config struct {
	LogLevel string       `toml:"log_level"`
	Window   WindowConfig `toml:"window"`
	UI       UIConfig     `toml:"ui"`
	Keys     []KeyConfig  `toml:"keys"`
}

type WindowConfig struct {
	Name     string `toml:"name"`
	Class    string `toml:"class"`
	Width    int    `toml:"width"`
	AutoHide bool   `toml:"auto_hide"`
}

type UIConfig struct {
	IconSize         int  `toml:"icon_size"`
	TextSize         int  `toml:"text_size"`
	ShowNumber       bool `toml:"show_number"`
	ContainerPadding int  `toml:"container_padding"`
	ItemPadding      int  `toml:"item_padding"`
	ItemGap          int  `toml:"item_gap"`
	ItemCornerRadius int  `toml:"item_corner_radius"`

	WindowBackground       Color `toml:"window_background"`
	WindowForeground       Color `toml:"window_foreground"`
	NormalItemBackground   Color `toml:"normal_item_background"`
	NormalItemForeground   Color `toml:"normal_item_foreground"`
	SelectedItemBackground Color `toml:"selected_item_background"`
	SelectedItemForeground Color `toml:"selected_item_foreground"`

	NormalFont   FontConfig `toml:"normal_font"`
	SelectedFont FontConfig `toml:"selected_font"`
}

// ItemHeight is the fixed height of one tray item row.
func (u *UIConfig) ItemHeight() int {
	return u.IconSize + u.ItemPadding*2
}

// FontConfig describes the label font. Path points at a TTF file; when empty
// the built-in face is used and Family/Weight/Style/Stretch are kept for
// informational matching only.
type FontConfig struct {
	Family  string `toml:"family"`
	Weight  int    `toml:"weight"`
	Style   string `toml:"style"`
	Stretch string `toml:"stretch"`
	Path    string `toml:"path"`
}

var validStretches = map[string]bool{
	"ultra_condensed": true,
	"extra_condensed": true,
	"condensed":       true,
	"semi_condensed":  true,
	"normal":          true,
	"semi_expanded":   true,
	"expanded":        true,
	"extra_expanded":  true,
	"ultra_expanded":  true,
}

func (f FontConfig) validate(section string) error {
	if f.Weight < 1 || f.Weight > 1000 {
		return fmt.Errorf("%s: font weight %d out of range 1-1000", section, f.Weight)
	}
	switch f.Style {
	case "normal", "italic", "oblique":
	default:
		return fmt.Errorf("%s: unknown font style %q", section, f.Style)
	}
	if !validStretches[f.Stretch] {
		return fmt.Errorf("%s: unknown font stretch %q", section, f.Stretch)
	}
	return nil
}

// Color is an RGBA color parsed from "#rrggbb" or "#rrggbbaa".
type Color struct {
	R, G, B, A uint8
}

func (c *Color) UnmarshalText(text []byte) error {
	s := string(text)
	if !strings.HasPrefix(s, "#") {
		return fmt.Errorf("invalid color %q: must start with '#'", s)
	}
	hex := s[1:]
	var digits []uint8
	for _, r := range hex {
		var v uint8
		switch {
		case r >= '0' && r <= '9':
			v = uint8(r - '0')
		case r >= 'a' && r <= 'f':
			v = uint8(r-'a') + 10
		case r >= 'A' && r <= 'F':
			v = uint8(r-'A') + 10
		default:
			return fmt.Errorf("invalid color %q: bad hex digit %q", s, r)
		}
		digits = append(digits, v)
	}
	byteAt := func(i int) uint8 { return digits[i*2]<<4 | digits[i*2+1] }
	switch len(digits) {
	case 6:
		*c = Color{R: byteAt(0), G: byteAt(1), B: byteAt(2), A: 0xff}
	case 8:
		*c = Color{R: byteAt(0), G: byteAt(1), B: byteAt(2), A: byteAt(3)}
	default:
		return fmt.Errorf("invalid color %q: want #rrggbb or #rrggbbaa", s)
	}
	return nil
}

func (c Color) RGBA() color.RGBA {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: c.A}
}

func rgb(v uint32) Color {
	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}

// KeyConfig is one binding record from the config file.
type KeyConfig struct {
	Keysym    string         `toml:"keysym"`
	Modifiers []string       `toml:"modifiers"`
	Actions   []ActionConfig `toml:"actions"`
	Global    bool           `toml:"global"`
}

// ActionConfig is the tagged on-disk form of an action:
//
//	{ type = "SelectItem", params = 2 }
//	{ type = "ClickSelectedItem", params = "Left" }
type ActionConfig struct {
	Type   string      `toml:"type"`
	Params interface{} `toml:"params"`
}

var modifierMasks = map[string]uint16{
	"control":   xproto.ModMaskControl,
	"shift":     xproto.ModMaskShift,
	"alt":       xproto.ModMask1,
	"super":     xproto.ModMask4,
	"caps_lock": xproto.ModMaskLock,
	"num_lock":  xproto.ModMask2,
}

func (a ActionConfig) compile() (hotkey.Action, error) {
	kind, ok := hotkey.KindFromString(a.Type)
	if !ok {
		return hotkey.Action{}, fmt.Errorf("unknown action type %q", a.Type)
	}
	action := hotkey.Action{Kind: kind}
	switch kind {
	case hotkey.KindSelectItem:
		n, ok := a.Params.(int64)
		if !ok || n < 0 {
			return hotkey.Action{}, fmt.Errorf("SelectItem requires a non-negative integer params, got %v", a.Params)
		}
		action.Index = int(n)
	case hotkey.KindClickSelectedItem:
		name, _ := a.Params.(string)
		button, ok := hotkey.ButtonFromString(name)
		if !ok {
			return hotkey.Action{}, fmt.Errorf("ClickSelectedItem requires a button of Left|Right|Middle|X1|X2, got %v", a.Params)
		}
		action.Button = button
	default:
		if a.Params != nil {
			return hotkey.Action{}, fmt.Errorf("action %s takes no params", a.Type)
		}
	}
	return action, nil
}

func (k KeyConfig) compile() (hotkey.Binding, error) {
	if k.Keysym == "" {
		return hotkey.Binding{}, fmt.Errorf("key binding with empty keysym")
	}
	var mods uint16
	for _, name := range k.Modifiers {
		mask, ok := modifierMasks[name]
		if !ok {
			return hotkey.Binding{}, fmt.Errorf("key %q: unknown modifier %q", k.Keysym, name)
		}
		mods |= mask
	}
	if len(k.Actions) == 0 {
		return hotkey.Binding{}, fmt.Errorf("key %q: no actions bound", k.Keysym)
	}
	actions := make([]hotkey.Action, 0, len(k.Actions))
	for _, ac := range k.Actions {
		action, err := ac.compile()
		if err != nil {
			return hotkey.Binding{}, fmt.Errorf("key %q: %w", k.Keysym, err)
		}
		actions = append(actions, action)
	}
	return hotkey.Binding{Keysym: k.Keysym, Mods: mods, Actions: actions, Global: k.Global}, nil
}

// Bindings compiles every key record in registration order.
func (c *Config) Bindings() ([]hotkey.Binding, error) {
	out := make([]hotkey.Binding, 0, len(c.Keys))
	for _, k := range c.Keys {
		b, err := k.compile()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func (c *Config) validate() error {
	if c.Window.Width <= 0 {
		return fmt.Errorf("window: width must be positive, got %d", c.Window.Width)
	}
	if c.UI.IconSize <= 0 {
		return fmt.Errorf("ui: icon_size must be positive, got %d", c.UI.IconSize)
	}
	if err := c.UI.NormalFont.validate("ui.normal_font"); err != nil {
		return err
	}
	if err := c.UI.SelectedFont.validate("ui.selected_font"); err != nil {
		return err
	}
	if _, err := c.Bindings(); err != nil {
		return err
	}
	return nil
}

func action(kind hotkey.Kind) ActionConfig {
	return ActionConfig{Type: kind.String()}
}

func selectItem(index int64) ActionConfig {
	return ActionConfig{Type: hotkey.KindSelectItem.String(), Params: index}
}

func click(button hotkey.Button) ActionConfig {
	return ActionConfig{Type: hotkey.KindClickSelectedItem.String(), Params: button.String()}
}

func key(keysym string, mods []string, actions ...ActionConfig) KeyConfig {
	return KeyConfig{Keysym: keysym, Modifiers: mods, Actions: actions}
}

// Default returns the built-in configuration. The binding set mirrors a
// conventional keyboard tray layout: digits jump to items, j/k and the arrow
// keys navigate, Return clicks, q/Escape hides, and a global super+grave
// toggles the window from anywhere.
func Default() *Config {
	defaultFont := FontConfig{Family: "Sans", Weight: 400, Style: "normal", Stretch: "normal"}
	keys := []KeyConfig{
		key("1", nil, selectItem(0)),
		key("2", nil, selectItem(1)),
		key("3", nil, selectItem(2)),
		key("4", nil, selectItem(3)),
		key("5", nil, selectItem(4)),
		key("6", nil, selectItem(5)),
		key("7", nil, selectItem(6)),
		key("8", nil, selectItem(7)),
		key("9", nil, selectItem(8)),
		key("0", nil, action(hotkey.KindDeselectItem)),
		key("j", nil, action(hotkey.KindSelectNextItem)),
		key("Down", nil, action(hotkey.KindSelectNextItem)),
		key("n", []string{"control"}, action(hotkey.KindSelectNextItem)),
		key("k", nil, action(hotkey.KindSelectPreviousItem)),
		key("Up", nil, action(hotkey.KindSelectPreviousItem)),
		key("p", []string{"control"}, action(hotkey.KindSelectPreviousItem)),
		key("Return", nil, click(hotkey.ButtonLeft)),
		key("l", []string{"control"}, click(hotkey.ButtonLeft)),
		key("h", nil, click(hotkey.ButtonRight)),
		key("Return", []string{"shift"}, click(hotkey.ButtonRight)),
		key("q", nil, action(hotkey.KindHideWindow)),
		key("Escape", nil, action(hotkey.KindHideWindow)),
	}
	toggle := key("grave", []string{"super"}, action(hotkey.KindToggleWindow))
	toggle.Global = true
	keys = append(keys, toggle)

	return &Config{
		LogLevel: "info",
		Window: WindowConfig{
			Name:     "keynav-tray",
			Class:    "KeynavTray",
			Width:    480,
			AutoHide: true,
		},
		UI: UIConfig{
			IconSize:         24,
			TextSize:         12,
			ShowNumber:       true,
			ContainerPadding: 8,
			ItemPadding:      8,
			ItemGap:          8,
			ItemCornerRadius: 4,
			WindowBackground: rgb(0x21272b),
			WindowForeground: rgb(0xe8eaeb),

			NormalItemBackground:   rgb(0x363f45),
			NormalItemForeground:   rgb(0xe8eaeb),
			SelectedItemBackground: rgb(0x1c95e6),
			SelectedItemForeground: rgb(0xe8eaeb),

			NormalFont:   defaultFont,
			SelectedFont: defaultFont,
		},
		Keys: keys,
	}
}

// DefaultPath returns the conventional config file location.
func DefaultPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "keynav-tray", "config.toml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "keynav-tray", "config.toml")
}

// Load reads the configuration. A .env file next to the working directory or
// the executable may override the config path via KEYNAV_TRAY_CONFIG. A
// missing config file is not an error: the defaults apply. A malformed file
// or invalid values are fatal to startup by contract, reported as errors here.
func Load(path string) (*Config, error) {
	loadDotEnv()
	if env := os.Getenv("KEYNAV_TRAY_CONFIG"); env != "" {
		path = env
	}
	if path == "" {
		path = DefaultPath()
	}

	cfg := Default()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			// The file replaces the default binding set entirely when it
			// defines any keys.
			fromFile := Default()
			fromFile.Keys = nil
			meta, err := toml.DecodeFile(path, fromFile)
			if err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
			if undecoded := meta.Undecoded(); len(undecoded) > 0 {
				return nil, fmt.Errorf("parse %s: unknown keys %v", path, undecoded)
			}
			if fromFile.Keys == nil {
				fromFile.Keys = cfg.Keys
			}
			cfg = fromFile
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotEnv mirrors the usual resident-tool convention: a .env in the
// current directory or next to the executable supplies environment overrides.
func loadDotEnv() {
	envPaths := []string{".env"}
	if execPath, err := os.Executable(); err == nil {
		envPaths = append(envPaths, filepath.Join(filepath.Dir(execPath), ".env"))
	}
	for _, envPath := range envPaths {
		if _, err := os.Stat(envPath); err == nil {
			godotenv.Load(envPath)
			break
		}
	}
}
