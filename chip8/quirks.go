package chip8

// Quirks selects between the behaviours that historical interpreters
// disagree on. The zero value is not DefaultQuirks.
type Quirks struct {
	// ShiftVx makes 8xy6 and 8xyE shift Vx in place instead of
	// shifting Vy into Vx.
	ShiftVx bool

	// VFReset makes 8xy1, 8xy2 and 8xy3 clear VF.
	VFReset bool

	// Wrap makes sprite pixels that cross the right or bottom edge of the
	// display reappear on the opposite edge. When unset they are clipped.
	// The sprite's origin always wraps.
	Wrap bool

	// IndexIncrement makes Fx55 and Fx65 leave I pointing one past the
	// last register stored or loaded.
	IndexIncrement bool

	// JumpVx makes Bnnn jump to nnn plus Vx, where x is the top nibble of
	// nnn, instead of nnn plus V0.
	JumpVx bool
}

// DefaultQuirks: shifts read Vy, bitwise operations clear VF, sprites clip,
// I is left unchanged by Fx55/Fx65 and Bnnn adds V0.
var DefaultQuirks = Quirks{VFReset: true}
