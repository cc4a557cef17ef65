package chip8

import "strings"

// Display dimensions in pixels.
const (
	Width  = 64
	Height = 32
)

// Display is the 64×32 monochrome frame buffer. Each row is a bit mask with
// column 0 in the most significant bit; a set bit is a lit pixel.
type Display [Height]uint64

// Pixel reports whether the pixel at column x, row y is lit.
// Coordinates outside the display are never lit.
func (d *Display) Pixel(x, y int) bool {
	if x < 0 || x >= Width || y < 0 || y >= Height {
		return false
	}
	return d[y]&colBit(x) != 0
}

// Clear turns every pixel off.
func (d *Display) Clear() { *d = Display{} }

// toggle flips the pixel at x, y and reports whether it was lit beforehand.
func (d *Display) toggle(x, y int) (wasLit bool) {
	bit := colBit(x)
	wasLit = d[y]&bit != 0
	d[y] ^= bit
	return wasLit
}

func colBit(x int) uint64 { return 1 << (Width - 1 - uint(x)) }

// draw XORs an 8-pixel-wide sprite onto the display with its top-left corner
// at x, y, which must already lie on the display. Pixels that fall beyond the
// right or bottom edge are dropped, or wrapped around to the opposite edge if
// wrap is set. It reports whether any lit pixel was turned off.
func (d *Display) draw(x, y int, sprite []byte, wrap bool) (collision bool) {
	for row, bits := range sprite {
		py := y + row
		if py >= Height {
			if !wrap {
				break
			}
			py %= Height
		}
		for col := 0; col < 8; col++ {
			if bits&(0x80>>col) == 0 {
				continue
			}
			px := x + col
			if px >= Width {
				if !wrap {
					break
				}
				px %= Width
			}
			if d.toggle(px, py) {
				collision = true
			}
		}
	}
	return collision
}

// String renders the display as text, one line per row,
// with '#' for lit pixels and '.' for unlit ones.
func (d *Display) String() string {
	var b strings.Builder
	b.Grow((Width + 1) * Height)
	for y := range d {
		for x := 0; x < Width; x++ {
			if d.Pixel(x, y) {
				b.WriteByte('#')
			} else {
				b.WriteByte('.')
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
