//go:build gui

package gui

import (
	"math"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

// grip is the title strip of a borderless note. Dragging it moves the
// window.
type grip struct {
	widget.BaseWidget
	native *nativeWindow
	scale  func() float32
	label  *widget.Label

	grab *fyne.Position // UI goroutine only
}

func newGrip(title string, native *nativeWindow, scale func() float32) *grip {
	g := &grip{native: native, scale: scale, label: widget.NewLabel(title)}
	g.label.TextStyle = fyne.TextStyle{Bold: true}
	g.label.Truncation = fyne.TextTruncateEllipsis
	g.ExtendBaseWidget(g)
	return g
}

func (g *grip) SetTitle(title string) { g.label.SetText(title) }

func (g *grip) Dragged(ev *fyne.DragEvent) {
	if g.grab == nil {
		p := ev.Position.Subtract(ev.Dragged)
		g.grab = &p
	}
	dx, dy := dragOffset(*g.grab, ev.Position, g.scale())
	g.native.moveBy(dx, dy)
}

func (g *grip) DragEnd() { g.grab = nil }

// dragOffset is how far, in screen pixels, the window must move to bring
// the grabbed point back under the pointer at pos.
func dragOffset(grab, pos fyne.Position, scale float32) (dx, dy int) {
	if scale <= 0 {
		scale = 1
	}
	dx = int(math.Round(float64((pos.X - grab.X) * scale)))
	dy = int(math.Round(float64((pos.Y - grab.Y) * scale)))
	return dx, dy
}

func (g *grip) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(theme.Color(theme.ColorNameHeaderBackground))
	return &gripRenderer{g: g, bg: bg}
}

type gripRenderer struct {
	g  *grip
	bg *canvas.Rectangle
}

func (r *gripRenderer) Layout(size fyne.Size) {
	r.bg.Resize(size)
	r.g.label.Resize(size)
}

func (r *gripRenderer) MinSize() fyne.Size { return r.g.label.MinSize() }

func (r *gripRenderer) Refresh() {
	r.bg.FillColor = theme.Color(theme.ColorNameHeaderBackground)
	r.bg.Refresh()
	r.g.label.Refresh()
}

func (r *gripRenderer) Objects() []fyne.CanvasObject {
	if r.g.native != nil {
		r.g.native.observe()
	}
	return []fyne.CanvasObject{r.bg, r.g.label}
}

func (r *gripRenderer) Destroy() {}
