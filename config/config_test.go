package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keynav-tray/hotkey"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.validate())

	bindings, err := cfg.Bindings()
	require.NoError(t, err)
	require.NotEmpty(t, bindings)

	// Digit keys jump to items in order.
	assert.Equal(t, "1", bindings[0].Keysym)
	assert.Equal(t, hotkey.KindSelectItem, bindings[0].Actions[0].Kind)
	assert.Equal(t, 0, bindings[0].Actions[0].Index)

	// Exactly one global binding: super+grave toggle.
	table := hotkey.NewTable(bindings, t.Logf)
	globals := table.Globals()
	require.Len(t, globals, 1)
	assert.Equal(t, "grave", globals[0].Keysym)
	assert.Equal(t, uint16(xproto.ModMask4), globals[0].Mods)
	assert.Equal(t, hotkey.KindToggleWindow, globals[0].Actions[0].Kind)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, 480, cfg.Window.Width)
	assert.True(t, cfg.UI.ShowNumber)
}

func TestLoadParsesBindingsAndUI(t *testing.T) {
	path := writeConfig(t, `
[window]
name = "mytray"
class = "MyTray"
width = 320
auto_hide = false

[ui]
icon_size = 32
show_number = false
selected_item_background = "#ff8800"

[[keys]]
keysym = "Return"
modifiers = ["control", "shift"]
actions = [{ type = "ShowWindow" }, { type = "SelectItem", params = 1 }]

[[keys]]
keysym = "F9"
global = true
actions = [{ type = "ToggleWindow" }]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "mytray", cfg.Window.Name)
	assert.Equal(t, 320, cfg.Window.Width)
	assert.False(t, cfg.Window.AutoHide)
	assert.Equal(t, 32, cfg.UI.IconSize)
	assert.False(t, cfg.UI.ShowNumber)
	assert.Equal(t, Color{R: 0xff, G: 0x88, B: 0x00, A: 0xff}, cfg.UI.SelectedItemBackground)

	bindings, err := cfg.Bindings()
	require.NoError(t, err)
	require.Len(t, bindings, 2)

	assert.Equal(t, "Return", bindings[0].Keysym)
	assert.Equal(t, uint16(xproto.ModMaskControl|xproto.ModMaskShift), bindings[0].Mods)
	require.Len(t, bindings[0].Actions, 2)
	assert.Equal(t, hotkey.KindShowWindow, bindings[0].Actions[0].Kind)
	assert.Equal(t, 1, bindings[0].Actions[1].Index)

	assert.True(t, bindings[1].Global)
}

func TestLoadRejectsUnknownActionTag(t *testing.T) {
	path := writeConfig(t, `
[[keys]]
keysym = "a"
actions = [{ type = "LaunchRocket" }]
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown action type")
}

func TestLoadRejectsUnknownModifier(t *testing.T) {
	path := writeConfig(t, `
[[keys]]
keysym = "a"
modifiers = ["hyper"]
actions = [{ type = "HideWindow" }]
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown modifier")
}

func TestLoadRejectsBadColor(t *testing.T) {
	path := writeConfig(t, `
[ui]
window_background = "red"
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsBadSelectItemParams(t *testing.T) {
	path := writeConfig(t, `
[[keys]]
keysym = "a"
actions = [{ type = "SelectItem", params = -1 }]
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-negative")
}

func TestLoadRejectsBadButton(t *testing.T) {
	path := writeConfig(t, `
[[keys]]
keysym = "a"
actions = [{ type = "ClickSelectedItem", params = "Back" }]
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsBadFont(t *testing.T) {
	path := writeConfig(t, `
[ui.normal_font]
family = "Sans"
weight = 4000
style = "normal"
stretch = "normal"
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weight")

	path = writeConfig(t, `
[ui.selected_font]
family = "Sans"
weight = 700
style = "upright"
stretch = "normal"
`)
	_, err = Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "style")
}

func TestLoadAllowsDuplicateBindings(t *testing.T) {
	// Duplicates are resolved first-wins by the table, never rejected here.
	path := writeConfig(t, `
[[keys]]
keysym = "Return"
actions = [{ type = "ClickSelectedItem", params = "Left" }]

[[keys]]
keysym = "Return"
actions = [{ type = "ClickSelectedItem", params = "Right" }]
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	bindings, err := cfg.Bindings()
	require.NoError(t, err)
	require.Len(t, bindings, 2)

	warned := 0
	table := hotkey.NewTable(bindings, func(string, ...interface{}) { warned++ })
	assert.Equal(t, 1, table.Len())
	assert.Equal(t, 1, warned)
}

func TestColorParsing(t *testing.T) {
	var c Color
	require.NoError(t, c.UnmarshalText([]byte("#1c95e6")))
	assert.Equal(t, Color{R: 0x1c, G: 0x95, B: 0xe6, A: 0xff}, c)

	require.NoError(t, c.UnmarshalText([]byte("#11223380")))
	assert.Equal(t, uint8(0x80), c.A)

	assert.Error(t, c.UnmarshalText([]byte("123456")))
	assert.Error(t, c.UnmarshalText([]byte("#12")))
	assert.Error(t, c.UnmarshalText([]byte("#zzzzzz")))
}
