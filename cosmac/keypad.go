package cosmac

import (
	"time"
	"unicode"

	"github.com/nf/c8/chip8"
)

// The hexadecimal keypad is laid out on the left of a QWERTY keyboard:
//
//	Keypad       Keyboard
//	1 2 3 C      1 2 3 4
//	4 5 6 D      Q W E R
//	7 8 9 E      A S D F
//	A 0 B F      Z X C V
//
// Y is accepted as Z for QWERTZ keyboards.
var keyLayout = map[rune]byte{
	'1': 0x1, '2': 0x2, '3': 0x3, '4': 0xc,
	'q': 0x4, 'w': 0x5, 'e': 0x6, 'r': 0xd,
	'a': 0x7, 's': 0x8, 'd': 0x9, 'f': 0xe,
	'z': 0xa, 'x': 0x0, 'c': 0xb, 'v': 0xf,
	'y': 0xa,
}

// KeyFor returns the keypad key for the host key that types r.
func KeyFor(r rune) (byte, bool) {
	k, ok := keyLayout[unicode.ToLower(r)]
	return k, ok
}

// keyHold synthesises key releases for input sources, such as terminals,
// that only report presses. A key is held down for holdTime after its most
// recent press or auto-repeat.
type keyHold struct {
	until [chip8.NumKeys]time.Time
}

const holdTime = 150 * time.Millisecond

func (h *keyHold) press(k byte, now time.Time) {
	h.until[k] = now.Add(holdTime)
}

func (h *keyHold) keys(now time.Time) (keys [chip8.NumKeys]bool) {
	for k, t := range h.until {
		keys[k] = now.Before(t)
	}
	return keys
}
