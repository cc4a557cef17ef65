package chip8

import (
	"fmt"
	"strings"
)

// Opcode is a raw two-byte CHIP-8 instruction word.
type Opcode uint16

// X returns the second nibble, a register index.
func (o Opcode) X() byte { return byte(o>>8) & 0xf }

// Y returns the third nibble, a register index.
func (o Opcode) Y() byte { return byte(o>>4) & 0xf }

// N returns the lowest nibble.
func (o Opcode) N() byte { return byte(o) & 0xf }

// KK returns the low byte.
func (o Opcode) KK() byte { return byte(o) }

// NNN returns the low 12 bits, an address.
func (o Opcode) NNN() uint16 { return uint16(o) & 0xfff }

func (o Opcode) String() string { return fmt.Sprintf("%.4X", uint16(o)) }

// Kind identifies one of the 34 instructions.
type Kind byte

const (
	Invalid Kind = iota
	CLS          // 00E0
	RET          // 00EE
	JP           // 1nnn
	CALL         // 2nnn
	SEI          // 3xkk
	SNEI         // 4xkk
	SE           // 5xy0
	LDI          // 6xkk
	ADDI         // 7xkk
	LD           // 8xy0
	OR           // 8xy1
	AND          // 8xy2
	XOR          // 8xy3
	ADD          // 8xy4
	SUB          // 8xy5
	SHR          // 8xy6
	SUBN         // 8xy7
	SHL          // 8xyE
	SNE          // 9xy0
	LDIDX        // Annn
	JPV0         // Bnnn
	RND          // Cxkk
	DRW          // Dxyn
	SKP          // Ex9E
	SKNP         // ExA1
	LDVDT        // Fx07
	LDK          // Fx0A
	LDDTV        // Fx15
	LDSTV        // Fx18
	ADDIDX       // Fx1E
	LDF          // Fx29
	LDB          // Fx33
	STORE        // Fx55
	LOAD         // Fx65
)

func (k Kind) String() string {
	if int(k) < len(kindStrings) {
		return kindStrings[k]
	}
	return fmt.Sprintf("Kind(%d)", byte(k))
}

var kindStrings = strings.Fields(`
	???
	CLS RET JP CALL SE SNE SE LD ADD
	LD OR AND XOR ADD SUB SHR SUBN SHL SNE
	LD JP RND DRW SKP SKNP
	LD LD LD LD ADD LD LD LD LD
`)

// Instr is a decoded instruction: its Kind plus the operands extracted from
// the opcode. Operands that the Kind does not use are zero.
type Instr struct {
	Kind Kind
	Op   Opcode
	X, Y byte   // register indices
	N    byte   // sprite height
	KK   byte   // immediate byte
	NNN  uint16 // address
}

// Decode maps an opcode to the instruction it encodes.
// Unrecognised opcodes decode to an Instr with Kind Invalid.
func Decode(op Opcode) Instr {
	in := Instr{Op: op}
	switch op >> 12 {
	case 0x0:
		switch op {
		case 0x00e0:
			in.Kind = CLS
		case 0x00ee:
			in.Kind = RET
		}
	case 0x1:
		in.Kind, in.NNN = JP, op.NNN()
	case 0x2:
		in.Kind, in.NNN = CALL, op.NNN()
	case 0x3:
		in.Kind, in.X, in.KK = SEI, op.X(), op.KK()
	case 0x4:
		in.Kind, in.X, in.KK = SNEI, op.X(), op.KK()
	case 0x5:
		if op.N() == 0 {
			in.Kind, in.X, in.Y = SE, op.X(), op.Y()
		}
	case 0x6:
		in.Kind, in.X, in.KK = LDI, op.X(), op.KK()
	case 0x7:
		in.Kind, in.X, in.KK = ADDI, op.X(), op.KK()
	case 0x8:
		if k := aluKinds[op.N()]; k != Invalid {
			in.Kind, in.X, in.Y = k, op.X(), op.Y()
		}
	case 0x9:
		if op.N() == 0 {
			in.Kind, in.X, in.Y = SNE, op.X(), op.Y()
		}
	case 0xa:
		in.Kind, in.NNN = LDIDX, op.NNN()
	case 0xb:
		in.Kind, in.X, in.NNN = JPV0, op.X(), op.NNN()
	case 0xc:
		in.Kind, in.X, in.KK = RND, op.X(), op.KK()
	case 0xd:
		in.Kind, in.X, in.Y, in.N = DRW, op.X(), op.Y(), op.N()
	case 0xe:
		switch op.KK() {
		case 0x9e:
			in.Kind, in.X = SKP, op.X()
		case 0xa1:
			in.Kind, in.X = SKNP, op.X()
		}
	case 0xf:
		if k, ok := miscKinds[op.KK()]; ok {
			in.Kind, in.X = k, op.X()
		}
	}
	return in
}

var aluKinds = [16]Kind{
	0x0: LD, 0x1: OR, 0x2: AND, 0x3: XOR,
	0x4: ADD, 0x5: SUB, 0x6: SHR, 0x7: SUBN,
	0xe: SHL,
}

var miscKinds = map[byte]Kind{
	0x07: LDVDT,
	0x0a: LDK,
	0x15: LDDTV,
	0x18: LDSTV,
	0x1e: ADDIDX,
	0x29: LDF,
	0x33: LDB,
	0x55: STORE,
	0x65: LOAD,
}

// String returns the instruction in Cowgod-style assembly syntax.
func (in Instr) String() string {
	m := in.Kind.String()
	switch in.Kind {
	case Invalid:
		return fmt.Sprintf("??? %s", in.Op)
	case CLS, RET:
		return m
	case JP, CALL:
		return fmt.Sprintf("%s #%.3X", m, in.NNN)
	case JPV0:
		return fmt.Sprintf("%s V0, #%.3X", m, in.NNN)
	case SEI, SNEI, LDI, ADDI, RND:
		return fmt.Sprintf("%s V%X, #%.2X", m, in.X, in.KK)
	case SE, SNE, LD, OR, AND, XOR, ADD, SUB, SHR, SUBN, SHL:
		return fmt.Sprintf("%s V%X, V%X", m, in.X, in.Y)
	case LDIDX:
		return fmt.Sprintf("%s I, #%.3X", m, in.NNN)
	case DRW:
		return fmt.Sprintf("%s V%X, V%X, %d", m, in.X, in.Y, in.N)
	case SKP, SKNP:
		return fmt.Sprintf("%s V%X", m, in.X)
	case LDVDT:
		return fmt.Sprintf("%s V%X, DT", m, in.X)
	case LDK:
		return fmt.Sprintf("%s V%X, K", m, in.X)
	case LDDTV:
		return fmt.Sprintf("%s DT, V%X", m, in.X)
	case LDSTV:
		return fmt.Sprintf("%s ST, V%X", m, in.X)
	case ADDIDX:
		return fmt.Sprintf("%s I, V%X", m, in.X)
	case LDF:
		return fmt.Sprintf("%s F, V%X", m, in.X)
	case LDB:
		return fmt.Sprintf("%s B, V%X", m, in.X)
	case STORE:
		return fmt.Sprintf("%s [I], V%X", m, in.X)
	case LOAD:
		return fmt.Sprintf("%s V%X, [I]", m, in.X)
	}
	return m
}

// Skip reports whether the instruction conditionally skips the next one.
func (in Instr) Skip() bool {
	switch in.Kind {
	case SEI, SNEI, SE, SNE, SKP, SKNP:
		return true
	}
	return false
}
