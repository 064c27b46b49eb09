// Package render turns tray model state into pixels: a pure layout pass, a
// dirty-mark scheduler that coalesces repaints to one per event loop
// iteration, and an xgraphics painter.
package render

import (
	"image"

	"keynav-tray/config"
)

// ItemRect is the computed geometry of one tray row, in tray-window
// coordinates.
type ItemRect struct {
	Bounds image.Rectangle // the full row chip
	Icon   image.Rectangle // where the embedded icon window sits
	Label  image.Rectangle // the text area right of the icon
}

// Layout is the computed geometry of the whole tray window.
type Layout struct {
	Width  int
	Height int
	Items  []ItemRect
}

// IconRects returns every icon rectangle in item order, for placing the
// embedded windows.
func (l Layout) IconRects() []image.Rectangle {
	out := make([]image.Rectangle, len(l.Items))
	for i, it := range l.Items {
		out[i] = it.Icon
	}
	return out
}

// Compute lays out count items as a vertical list of fixed-height rows. It is
// a pure function: the same config, count and width always produce the same
// geometry, which click targeting relies on.
func Compute(ui *config.UIConfig, count, width int) Layout {
	pad := ui.ContainerPadding
	rowH := ui.ItemHeight()

	height := pad * 2
	if count == 0 {
		// Keep room for the "no items" hint line.
		height += rowH
	} else {
		height += count*rowH + (count-1)*ui.ItemGap
	}

	items := make([]ItemRect, count)
	y := pad
	for i := 0; i < count; i++ {
		bounds := image.Rect(pad, y, width-pad, y+rowH)
		icon := image.Rect(
			bounds.Min.X+ui.ItemPadding,
			bounds.Min.Y+ui.ItemPadding,
			bounds.Min.X+ui.ItemPadding+ui.IconSize,
			bounds.Min.Y+ui.ItemPadding+ui.IconSize,
		)
		label := image.Rect(icon.Max.X+ui.ItemPadding, bounds.Min.Y, bounds.Max.X-ui.ItemPadding, bounds.Max.Y)
		items[i] = ItemRect{Bounds: bounds, Icon: icon, Label: label}
		y += rowH + ui.ItemGap
	}

	return Layout{Width: width, Height: height, Items: items}
}
