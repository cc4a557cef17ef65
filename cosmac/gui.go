package cosmac

import (
	"fmt"
	"image"
	"log"
	"time"

	"golang.org/x/exp/shiny/driver"
	"golang.org/x/exp/shiny/screen"
	"golang.org/x/mobile/event/key"
	"golang.org/x/mobile/event/lifecycle"
	"golang.org/x/mobile/event/paint"
	"golang.org/x/mobile/event/size"

	"github.com/nf/c8/chip8"
)

// GUI is a Frontend that displays the machine in a shiny window.
type GUI struct {
	Theme Theme
	Scale int // initial window pixels per display pixel

	r     *Runner
	buf   screen.Buffer
	frame chip8.Display
	sound bool
	dirty bool
}

// NewGUI returns a GUI with the given theme and scale.
func NewGUI(t Theme, scale int) *GUI {
	if scale <= 0 {
		scale = 10
	}
	return &GUI{Theme: t, Scale: scale}
}

func (g *GUI) Run(r *Runner, exit <-chan bool) error {
	g.r = r
	var runErr error
	driver.Main(func(s screen.Screen) {
		w, err := s.NewWindow(&screen.NewWindowOptions{
			Title:  "c8",
			Width:  chip8.Width * g.Scale,
			Height: chip8.Height * g.Scale,
		})
		if err != nil {
			runErr = err
			return
		}
		defer w.Release()

		type update struct{}
		go func() {
			t := time.NewTicker(time.Second / FrameRate)
			defer t.Stop()
			for {
				select {
				case <-t.C:
					w.Send(update{})
				case <-exit:
					w.Send(lifecycle.Event{To: lifecycle.StageDead})
					return
				}
			}
		}()

		defer g.release()

		var sz size.Event
		for {
			switch e := w.NextEvent().(type) {
			case size.Event:
				sz = e
				if sz.WidthPx+sz.HeightPx == 0 {
					return
				}
				g.release()
				g.dirty = true

			case lifecycle.Event:
				if e.To == lifecycle.StageDead {
					return
				}

			case key.Event:
				if e.Code == key.CodeEscape {
					return
				}
				if k, ok := KeyFor(e.Rune); ok {
					switch e.Direction {
					case key.DirPress:
						r.SetKey(k, true)
					case key.DirRelease:
						r.SetKey(k, false)
					}
				}

			case paint.Event:
				g.dirty = true

			case update:
				if d, sound := r.Frame(); d != g.frame || sound != g.sound {
					g.frame, g.sound = d, sound
					g.dirty = true
				}
				if g.dirty {
					if err := g.paint(s, w, sz); err != nil {
						runErr = fmt.Errorf("gui: %v", err)
						return
					}
					g.dirty = false
				}

			case error:
				log.Print(e)
			}
		}
	})
	return runErr
}

func (g *GUI) paint(s screen.Screen, w screen.Window, sz size.Event) error {
	px := sz.Size()
	if px.X == 0 || px.Y == 0 {
		return nil
	}
	if g.buf == nil || g.buf.Size() != px {
		g.release()
		var err error
		if g.buf, err = s.NewBuffer(px); err != nil {
			return err
		}
	}
	g.Theme.Scale(g.buf.RGBA(), &g.frame, g.sound)
	w.Upload(image.Point{}, g.buf, g.buf.Bounds())
	w.Publish()
	return nil
}

func (g *GUI) release() {
	if g.buf != nil {
		g.buf.Release()
		g.buf = nil
	}
}
