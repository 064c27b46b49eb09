package render

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"math"
	"os"

	"github.com/BurntSushi/freetype-go/freetype/truetype"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/xgraphics"
	"golang.org/x/image/font/gofont/goregular"

	"keynav-tray/config"
	"keynav-tray/model"
)

// Painter renders the tray item list into the tray window. It only reads the
// model; all mutation happens elsewhere.
type Painter struct {
	xu           *xgbutil.XUtil
	win          xproto.Window
	ui           *config.UIConfig
	model        *model.Model
	normalFont   *truetype.Font
	selectedFont *truetype.Font
}

func NewPainter(xu *xgbutil.XUtil, win xproto.Window, ui *config.UIConfig, m *model.Model) (*Painter, error) {
	normal, err := loadFont(ui.NormalFont)
	if err != nil {
		return nil, fmt.Errorf("load normal font: %w", err)
	}
	selected := normal
	if ui.SelectedFont != ui.NormalFont {
		selected, err = loadFont(ui.SelectedFont)
		if err != nil {
			return nil, fmt.Errorf("load selected font: %w", err)
		}
	}
	return &Painter{
		xu:           xu,
		win:          win,
		ui:           ui,
		model:        m,
		normalFont:   normal,
		selectedFont: selected,
	}, nil
}

// loadFont reads the TTF named by the descriptor's path, falling back to the
// built-in face when no path is configured.
func loadFont(fc config.FontConfig) (*truetype.Font, error) {
	if fc.Path == "" {
		return xgraphics.ParseFont(bytes.NewReader(goregular.TTF))
	}
	f, err := os.Open(fc.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return xgraphics.ParseFont(f)
}

func bgra(c config.Color) xgraphics.BGRA {
	return xgraphics.BGRA{B: c.B, G: c.G, R: c.R, A: c.A}
}

// Paint draws one full frame at the given layout and pushes it to the window.
func (p *Painter) Paint(layout Layout) error {
	img := xgraphics.New(p.xu, image.Rect(0, 0, layout.Width, layout.Height))
	defer img.Destroy()

	bg := bgra(p.ui.WindowBackground)
	img.For(func(x, y int) xgraphics.BGRA { return bg })

	items := p.model.Items()
	if len(items) == 0 {
		p.drawHint(img, layout)
	} else {
		selected := p.model.SelectedIndex()
		for i, it := range items {
			if i >= len(layout.Items) {
				break
			}
			p.drawItem(img, layout.Items[i], it, i, i == selected)
		}
	}

	if err := img.XSurfaceSet(p.win); err != nil {
		return fmt.Errorf("set window surface: %w", err)
	}
	img.XDraw()
	img.XPaint(p.win)
	return nil
}

func (p *Painter) drawHint(img *xgraphics.Image, layout Layout) {
	const hint = "No tray items found"
	size := float64(p.ui.TextSize)
	w, h := xgraphics.Extents(p.normalFont, size, hint)
	x := (layout.Width - w) / 2
	y := (layout.Height - h) / 2
	fg := p.ui.WindowForeground.RGBA()
	img.Text(x, y, fg, size, p.normalFont, hint)
}

func (p *Painter) drawItem(img *xgraphics.Image, rect ItemRect, it model.Item, index int, selected bool) {
	bg := p.ui.NormalItemBackground
	fg := p.ui.NormalItemForeground
	font := p.normalFont
	if selected {
		bg = p.ui.SelectedItemBackground
		fg = p.ui.SelectedItemForeground
		font = p.selectedFont
	}

	fillRoundedRect(img, rect.Bounds, p.ui.ItemCornerRadius, bgra(bg))

	if it.Icon != nil {
		icon := it.Icon
		if icon.Bounds().Dx() != rect.Icon.Dx() || icon.Bounds().Dy() != rect.Icon.Dy() {
			icon = icon.Scale(rect.Icon.Dx(), rect.Icon.Dy())
		}
		draw.Draw(img, rect.Icon, icon, icon.Bounds().Min, draw.Over)
	}

	title := it.Title
	if p.ui.ShowNumber {
		title = fmt.Sprintf("%d. %s", index+1, title)
	}
	if title == "" {
		return
	}
	size := float64(p.ui.TextSize)
	_, h := xgraphics.Extents(font, size, title)
	y := rect.Label.Min.Y + (rect.Label.Dy()-h)/2
	img.Text(rect.Label.Min.X, y, fg.RGBA(), size, font, title)
}

// fillRoundedRect fills r with c, rounding each corner by radius pixels.
func fillRoundedRect(img *xgraphics.Image, r image.Rectangle, radius int, c xgraphics.BGRA) {
	if radius <= 0 {
		fillRect(img, r, c)
		return
	}
	max := r.Dy() / 2
	if radius > max {
		radius = max
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		inset := 0
		dy := 0
		if y < r.Min.Y+radius {
			dy = r.Min.Y + radius - y
		} else if y >= r.Max.Y-radius {
			dy = y - (r.Max.Y - radius - 1)
		}
		if dy > 0 {
			fr := float64(radius)
			fd := float64(dy)
			inset = radius - int(math.Round(math.Sqrt(fr*fr-fd*fd)))
		}
		fillRect(img, image.Rect(r.Min.X+inset, y, r.Max.X-inset, y+1), c)
	}
}

func fillRect(img *xgraphics.Image, r image.Rectangle, c xgraphics.BGRA) {
	r = r.Intersect(img.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetBGRA(x, y, c)
		}
	}
}
