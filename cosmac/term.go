package cosmac

import (
	"image/color"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/nf/c8/chip8"
)

// Term is a Frontend that draws the machine in a terminal, two display
// rows per text row.
type Term struct {
	Theme Theme

	// NewScreen is used to open the terminal; tests substitute a
	// simulation screen.
	NewScreen func() (tcell.Screen, error)
}

// NewTerm returns a Term that uses the process's terminal.
func NewTerm(t Theme) *Term {
	return &Term{Theme: t, NewScreen: tcell.NewScreen}
}

func (t *Term) Run(r *Runner, exit <-chan bool) error {
	s, err := t.NewScreen()
	if err != nil {
		return err
	}
	if err := s.Init(); err != nil {
		return err
	}
	defer s.Fini()

	var (
		quit    = make(chan bool)
		pressed = make(chan byte, chip8.NumKeys)
	)
	go t.input(s, pressed, quit)

	var (
		hold keyHold
		tick = time.NewTicker(time.Second / FrameRate)
	)
	defer tick.Stop()
	for {
		select {
		case <-exit:
			return nil
		case <-quit:
			return nil
		case k := <-pressed:
			hold.press(k, time.Now())
			r.SetKeys(hold.keys(time.Now()))
		case now := <-tick.C:
			r.SetKeys(hold.keys(now))
			d, sound := r.Frame()
			t.draw(s, &d, sound)
			s.Show()
		}
	}
}

// input forwards keypad presses from s to pressed until the user quits or
// s is finalised, then closes quit. Presses that do not fit in pressed are
// dropped.
func (t *Term) input(s tcell.Screen, pressed chan<- byte, quit chan<- bool) {
	defer close(quit)
	for {
		switch e := s.PollEvent().(type) {
		case nil:
			return
		case *tcell.EventKey:
			switch e.Key() {
			case tcell.KeyEscape, tcell.KeyCtrlC:
				return
			case tcell.KeyRune:
				if k, ok := KeyFor(e.Rune()); ok {
					select {
					case pressed <- k:
					default:
					}
				}
			}
		case *tcell.EventResize:
			s.Sync()
		}
	}
}

func (t *Term) draw(s tcell.Screen, d *chip8.Display, sound bool) {
	var (
		on  = tcellColor(t.Theme.On)
		off = tcellColor(t.Theme.off(sound))
	)
	for y := 0; y < chip8.Height; y += 2 {
		for x := 0; x < chip8.Width; x++ {
			// The glyph is drawn in the foreground colour of the
			// upper pixel, over the background colour of the lower.
			fg, bg := off, off
			if d.Pixel(x, y) {
				fg = on
			}
			if d.Pixel(x, y+1) {
				bg = on
			}
			st := tcell.StyleDefault.Foreground(fg).Background(bg)
			s.SetContent(x, y/2, '▀', nil, st)
		}
	}
}

func tcellColor(c color.RGBA) tcell.Color {
	return tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B))
}
