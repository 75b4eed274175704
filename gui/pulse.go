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

type pulseState int

const (
	pulseOff pulseState = iota
	pulseListening
	pulseThinking
	pulseSpeaking
	pulseError
)

var pulseColors = map[pulseState]color.RGBA{
	pulseOff:       {48, 48, 48, 255},
	pulseListening: {255, 59, 48, 255},
	pulseThinking:  {255, 204, 0, 255},
	pulseSpeaking:  {10, 132, 255, 255},
	pulseError:     {255, 69, 58, 255},
}

const pulseSize = 28

// PulseWidget is a breathing dot that signals which stage the current
// session is in.
type PulseWidget struct {
	widget.BaseWidget
	mu     sync.Mutex
	state  pulseState
	frame  int
	stopCh chan struct{}
}

func NewPulseWidget() *PulseWidget {
	p := &PulseWidget{stopCh: make(chan struct{})}
	p.ExtendBaseWidget(p)
	go p.animate()
	return p
}

func (p *PulseWidget) SetState(s pulseState) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

func (p *PulseWidget) Stop() {
	select {
	case <-p.stopCh:
	default:
		close(p.stopCh)
	}
}

func (p *PulseWidget) animate() {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.mu.Lock()
			p.frame++
			active := p.state != pulseOff
			p.mu.Unlock()
			if active {
				fyne.Do(func() {
					p.Refresh()
				})
			}
		}
	}
}

func (p *PulseWidget) MinSize() fyne.Size {
	return fyne.NewSize(pulseSize, pulseSize)
}

func (p *PulseWidget) CreateRenderer() fyne.WidgetRenderer {
	return &pulseRenderer{
		pulse:  p,
		circle: canvas.NewCircle(pulseColors[pulseOff]),
	}
}

type pulseRenderer struct {
	pulse  *PulseWidget
	circle *canvas.Circle
}

func (r *pulseRenderer) Layout(size fyne.Size) {
	r.place(size, 1.0)
}

func (r *pulseRenderer) place(size fyne.Size, scale float64) {
	d := float32(math.Min(float64(size.Width), float64(size.Height)) * scale)
	offX := (size.Width - d) / 2
	offY := (size.Height - d) / 2
	r.circle.Move(fyne.NewPos(offX, offY))
	r.circle.Resize(fyne.NewSize(d, d))
}

func (r *pulseRenderer) MinSize() fyne.Size {
	return r.pulse.MinSize()
}

func (r *pulseRenderer) Refresh() {
	r.pulse.mu.Lock()
	state := r.pulse.state
	frame := r.pulse.frame
	r.pulse.mu.Unlock()

	r.circle.FillColor = pulseColors[state]

	scale := 0.6
	if state != pulseOff {
		scale = 0.75 + 0.25*math.Abs(math.Sin(float64(frame)*0.15))
	}
	r.place(r.pulse.Size(), scale)
	r.circle.Refresh()
}

func (r *pulseRenderer) Objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{r.circle}
}

func (r *pulseRenderer) Destroy() {
	r.pulse.Stop()
}
