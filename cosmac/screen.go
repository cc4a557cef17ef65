package cosmac

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"

	"github.com/nf/c8/chip8"
)

// Theme holds the colours used to render the display.
type Theme struct {
	On, Off color.RGBA
	// Beep replaces Off while the sound timer is running.
	Beep color.RGBA
}

var DefaultTheme = Theme{
	On:   color.RGBA{0xff, 0xcc, 0x00, 0xff},
	Off:  color.RGBA{0x99, 0x66, 0x00, 0xff},
	Beep: color.RGBA{0xaa, 0x33, 0x00, 0xff},
}

func (t Theme) off(sound bool) color.RGBA {
	if sound {
		return t.Beep
	}
	return t.Off
}

// Image renders d at one image pixel per display pixel.
func (t Theme) Image(d *chip8.Display, sound bool) *image.RGBA {
	m := image.NewRGBA(image.Rect(0, 0, chip8.Width, chip8.Height))
	t.render(m, d, sound)
	return m
}

func (t Theme) render(m *image.RGBA, d *chip8.Display, sound bool) {
	off := t.off(sound)
	b := m.Pix
	for y := 0; y < chip8.Height; y++ {
		for x := 0; x < chip8.Width; x++ {
			c := off
			if d.Pixel(x, y) {
				c = t.On
			}
			b[0] = c.R
			b[1] = c.G
			b[2] = c.B
			b[3] = c.A
			b = b[4:]
		}
	}
}

// Scale renders d into dst, stretching it to fill dst's bounds with
// nearest-neighbour sampling so that pixels stay square-edged.
func (t Theme) Scale(dst draw.Image, d *chip8.Display, sound bool) {
	src := t.Image(d, sound)
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
}
