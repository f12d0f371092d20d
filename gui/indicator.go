//go:build gui

package gui

import (
	"image/color"
	"math"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
)

const indicatorSize = 14

type indicatorState int

const (
	indicatorIdle indicatorState = iota
	indicatorListening
	indicatorStopping
)

var (
	colorIdle      = color.RGBA{150, 140, 90, 255}
	colorListening = color.RGBA{215, 0, 0, 255}
	colorStopping  = color.RGBA{255, 135, 0, 255}
)

// Indicator is a dot that pulses red while a note is listening.
type Indicator struct {
	widget.BaseWidget
	mu     sync.Mutex
	state  indicatorState
	frame  int
	stopCh chan struct{}
	once   sync.Once
}

func NewIndicator() *Indicator {
	i := &Indicator{stopCh: make(chan struct{})}
	i.ExtendBaseWidget(i)
	go i.animate()
	return i
}

func (i *Indicator) SetState(s indicatorState) {
	i.mu.Lock()
	i.state = s
	i.mu.Unlock()
	i.Refresh()
}

func (i *Indicator) Stop() {
	i.once.Do(func() { close(i.stopCh) })
}

func (i *Indicator) animate() {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-i.stopCh:
			return
		case <-ticker.C:
			i.mu.Lock()
			moving := i.state == indicatorListening
			if moving {
				i.frame++
			}
			i.mu.Unlock()
			if moving {
				fyne.Do(i.Refresh)
			}
		}
	}
}

func (i *Indicator) MinSize() fyne.Size {
	return fyne.NewSize(indicatorSize, indicatorSize)
}

func (i *Indicator) CreateRenderer() fyne.WidgetRenderer {
	return &indicatorRenderer{ind: i, dot: canvas.NewCircle(colorIdle)}
}

type indicatorRenderer struct {
	ind *Indicator
	dot *canvas.Circle
}

func (r *indicatorRenderer) Layout(size fyne.Size) {
	d := min(size.Width, size.Height, indicatorSize)
	r.dot.Resize(fyne.NewSize(d, d))
	r.dot.Move(fyne.NewPos((size.Width-d)/2, (size.Height-d)/2))
}

func (r *indicatorRenderer) MinSize() fyne.Size {
	return r.ind.MinSize()
}

func (r *indicatorRenderer) Refresh() {
	r.ind.mu.Lock()
	state, frame := r.ind.state, r.ind.frame
	r.ind.mu.Unlock()

	switch state {
	case indicatorListening:
		c := colorListening
		// breathe between 55% and 100% opacity
		c.A = uint8(255 * (0.775 + 0.225*math.Sin(float64(frame)*0.25)))
		r.dot.FillColor = c
	case indicatorStopping:
		r.dot.FillColor = colorStopping
	default:
		r.dot.FillColor = colorIdle
	}
	r.dot.Refresh()
}

func (r *indicatorRenderer) Objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{r.dot}
}

func (r *indicatorRenderer) Destroy() {
	r.ind.Stop()
}
