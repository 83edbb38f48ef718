//go:build ebiten
// +build ebiten

package clock

import (
	"image/color"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
)

// Ebiten is a frame clock driven by ebiten's game loop.
//
// Pending tick requests are fired from Update, so every callback runs on ebiten's
// update goroutine. Work from other goroutines must go through Post.
type Ebiten struct {
	epoch time.Time

	pending func(timestamp float64)

	mu     sync.Mutex
	posted []func()

	// Background is used to clear the window every Draw.
	Background color.Color
	// OnDraw, if set, is called after the window is cleared.
	OnDraw func(screen *ebiten.Image)
}

func NewEbiten() *Ebiten {
	return &Ebiten{epoch: time.Now(), Background: color.Black}
}

func (e *Ebiten) Now() float64 { return Millis(time.Since(e.epoch)) }

func (e *Ebiten) RequestTick(driver func(timestamp float64)) { e.pending = driver }

// Post queues fn to run at the start of the next Update.
func (e *Ebiten) Post(fn func()) {
	if fn == nil {
		return
	}
	e.mu.Lock()
	e.posted = append(e.posted, fn)
	e.mu.Unlock()
}

func (e *Ebiten) Update() error {
	e.mu.Lock()
	posted := e.posted
	e.posted = nil
	e.mu.Unlock()
	for _, fn := range posted {
		fn()
	}

	if d := e.pending; d != nil {
		e.pending = nil
		d(e.Now())
	}
	return nil
}

func (e *Ebiten) Draw(screen *ebiten.Image) {
	screen.Fill(e.Background)
	if e.OnDraw != nil {
		e.OnDraw(screen)
	}
}

func (e *Ebiten) Layout(outsideWidth, outsideHeight int) (int, int) {
	return outsideWidth, outsideHeight
}

// Run opens a window and blocks until it closes.
func (e *Ebiten) Run(title string, width, height, tps int) error {
	if tps <= 0 {
		tps = ebiten.DefaultTPS
	}
	ebiten.SetWindowTitle(title)
	ebiten.SetWindowSize(width, height)
	ebiten.SetTPS(tps)
	return ebiten.RunGame(e)
}
