package cosmac

import (
	"github.com/hajimehoshi/ebiten/v2"

	"github.com/nf/c8/chip8"
)

// Ebiten is a Frontend that displays the machine in an ebiten window.
// Unlike GUI it polls the keyboard every frame, so held keys are reported
// exactly as long as they are down.
type Ebiten struct {
	Theme Theme
	Scale int

	r    *Runner
	exit <-chan bool
}

// NewEbiten returns an Ebiten front end with the given theme and scale.
func NewEbiten(t Theme, scale int) *Ebiten {
	if scale <= 0 {
		scale = 10
	}
	return &Ebiten{Theme: t, Scale: scale}
}

var ebitenKeys = [chip8.NumKeys][]ebiten.Key{
	0x0: {ebiten.KeyX},
	0x1: {ebiten.Key1},
	0x2: {ebiten.Key2},
	0x3: {ebiten.Key3},
	0x4: {ebiten.KeyQ},
	0x5: {ebiten.KeyW},
	0x6: {ebiten.KeyE},
	0x7: {ebiten.KeyA},
	0x8: {ebiten.KeyS},
	0x9: {ebiten.KeyD},
	0xa: {ebiten.KeyZ, ebiten.KeyY},
	0xb: {ebiten.KeyC},
	0xc: {ebiten.Key4},
	0xd: {ebiten.KeyR},
	0xe: {ebiten.KeyF},
	0xf: {ebiten.KeyV},
}

func (e *Ebiten) Run(r *Runner, exit <-chan bool) error {
	e.r, e.exit = r, exit
	ebiten.SetWindowTitle("c8")
	ebiten.SetWindowSize(chip8.Width*e.Scale, chip8.Height*e.Scale)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetTPS(FrameRate)
	return ebiten.RunGame(e)
}

func (e *Ebiten) Update() error {
	select {
	case <-e.exit:
		return ebiten.Termination
	default:
	}
	if ebiten.IsKeyPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	var keys [chip8.NumKeys]bool
	for k, eks := range ebitenKeys {
		for _, ek := range eks {
			keys[k] = keys[k] || ebiten.IsKeyPressed(ek)
		}
	}
	e.r.SetKeys(keys)
	return nil
}

func (e *Ebiten) Draw(screen *ebiten.Image) {
	d, sound := e.r.Frame()
	screen.WritePixels(e.Theme.Image(&d, sound).Pix)
}

func (e *Ebiten) Layout(outsideWidth, outsideHeight int) (int, int) {
	return chip8.Width, chip8.Height
}
