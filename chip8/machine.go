// Package chip8 provides an implementation of the CHIP-8 virtual machine,
// called Machine, that can be used to execute CHIP-8 programs.
package chip8

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

const (
	MemSize     = 0x1000 // bytes of addressable memory
	ProgramAddr = 0x200  // where programs are loaded and start executing
	MaxROMSize  = MemSize - ProgramAddr
	NumKeys     = 16
)

// Machine is an implementation of the CHIP-8 virtual machine.
//
// A Machine is not safe for concurrent use; callers that share one between
// goroutines must serialise all access to it.
type Machine struct {
	Mem   [MemSize]byte
	V     [16]byte // VF doubles as the carry, borrow, shift and collision flag
	I     uint16
	PC    uint16
	Stack Stack
	DT    byte // delay timer
	ST    byte // sound timer

	// Keys holds the state of the hexadecimal keypad; true is down.
	// It is written by the host between calls to Step.
	Keys [NumKeys]bool

	Display Display
	Quirks  Quirks

	// Rand supplies the random bytes for Cxkk.
	Rand *rand.Rand

	rom     []byte
	waiting bool
}

// ErrROMTooLarge is returned by New and Load if the program does not fit in
// memory above ProgramAddr.
var ErrROMTooLarge = errors.New("rom too large")

// New returns a Machine with DefaultQuirks and the given rom loaded.
func New(rom []byte) (*Machine, error) {
	m := &Machine{Quirks: DefaultQuirks}
	if err := m.Load(rom); err != nil {
		return nil, err
	}
	return m, nil
}

// Load resets the machine, installs the font and copies rom to ProgramAddr.
// Quirks and Rand are preserved; a nil Rand is replaced with a freshly
// seeded source. If rom is larger than MaxROMSize the machine is left
// untouched.
func (m *Machine) Load(rom []byte) error {
	if len(rom) > MaxROMSize {
		return fmt.Errorf("%w: %d bytes, limit is %d", ErrROMTooLarge, len(rom), MaxROMSize)
	}
	r := m.Rand
	if r == nil {
		r = newRand()
	}
	*m = Machine{
		Quirks: m.Quirks,
		Rand:   r,
		PC:     ProgramAddr,
		rom:    append([]byte(nil), rom...),
	}
	copy(m.Mem[FontAddr:], Font[:])
	copy(m.Mem[ProgramAddr:], rom)
	return nil
}

func newRand() *rand.Rand {
	seed := uint64(time.Now().UnixNano())
	return rand.New(rand.NewPCG(seed, seed>>32))
}

// Reset restores the machine to the state it had right after Load.
func (m *Machine) Reset() {
	m.Load(m.rom) // Already validated.
}

// ROM returns the program most recently loaded.
func (m *Machine) ROM() []byte { return m.rom }

// WaitingForKey reports whether the last Step executed Fx0A with no key
// down, leaving PC at that instruction.
func (m *Machine) WaitingForKey() bool { return m.waiting }

// SoundOn reports whether the sound timer is running.
func (m *Machine) SoundOn() bool { return m.ST > 0 }

// Tick decrements the delay and sound timers, stopping at zero.
// It should be called at 60 Hz regardless of the instruction rate.
func (m *Machine) Tick() {
	if m.DT > 0 {
		m.DT--
	}
	if m.ST > 0 {
		m.ST--
	}
}

// Step fetches, decodes and executes the instruction at PC.
//
// An unknown opcode is reported as a Fault with code UnknownOp; it is not
// fatal and PC is left past the opcode. Other faults leave the registers,
// stack and memory as they were before the instruction, apart from PC.
func (m *Machine) Step() (err error) {
	var (
		opPC = m.PC
		op   Opcode
	)
	defer func() {
		if e := recover(); e != nil {
			if code, ok := e.(FaultCode); ok {
				err = Fault{Code: code, Op: op, Addr: opPC}
			} else {
				panic(e)
			}
		}
	}()

	m.waiting = false
	b := m.span(m.PC, 2)
	op = Opcode(short(b[0], b[1]))
	m.PC = (m.PC + 2) & (MemSize - 1)

	in := Decode(op)
	if in.Kind == Invalid {
		return Fault{Code: UnknownOp, Op: op, Addr: opPC}
	}
	m.exec(in)
	return nil
}

func (m *Machine) exec(in Instr) {
	v := &m.V
	switch in.Kind {
	case CLS:
		m.Display.Clear()
	case RET:
		m.PC = m.Stack.Pop()
	case JP:
		m.PC = in.NNN
	case CALL:
		m.Stack.Push(m.PC)
		m.PC = in.NNN
	case SEI:
		m.skipIf(v[in.X] == in.KK)
	case SNEI:
		m.skipIf(v[in.X] != in.KK)
	case SE:
		m.skipIf(v[in.X] == v[in.Y])
	case SNE:
		m.skipIf(v[in.X] != v[in.Y])
	case LDI:
		v[in.X] = in.KK
	case ADDI:
		v[in.X] += in.KK
	case LD:
		v[in.X] = v[in.Y]
	case OR, AND, XOR:
		switch in.Kind {
		case OR:
			v[in.X] |= v[in.Y]
		case AND:
			v[in.X] &= v[in.Y]
		case XOR:
			v[in.X] ^= v[in.Y]
		}
		if m.Quirks.VFReset {
			v[0xf] = 0
		}
	case ADD:
		sum := uint16(v[in.X]) + uint16(v[in.Y])
		v[in.X] = byte(sum)
		v[0xf] = flag(sum > 0xff)
	case SUB:
		f := flag(v[in.X] >= v[in.Y])
		v[in.X] -= v[in.Y]
		v[0xf] = f
	case SUBN:
		f := flag(v[in.Y] >= v[in.X])
		v[in.X] = v[in.Y] - v[in.X]
		v[0xf] = f
	case SHR:
		src := m.shiftSource(in)
		v[in.X] = src >> 1
		v[0xf] = src & 0x01
	case SHL:
		src := m.shiftSource(in)
		v[in.X] = src << 1
		v[0xf] = src >> 7
	case LDIDX:
		m.I = in.NNN
	case JPV0:
		base := v[0]
		if m.Quirks.JumpVx {
			base = v[in.X]
		}
		m.PC = (in.NNN + uint16(base)) & (MemSize - 1)
	case RND:
		v[in.X] = byte(m.Rand.Uint32()) & in.KK
	case DRW:
		sprite := m.span(m.I, int(in.N))
		x, y := int(v[in.X]%Width), int(v[in.Y]%Height)
		v[0xf] = flag(m.Display.draw(x, y, sprite, m.Quirks.Wrap))
	case SKP:
		m.skipIf(m.Keys[v[in.X]&0xf])
	case SKNP:
		m.skipIf(!m.Keys[v[in.X]&0xf])
	case LDVDT:
		v[in.X] = m.DT
	case LDK:
		for k, down := range m.Keys {
			if down {
				v[in.X] = byte(k)
				return
			}
		}
		m.PC = opAddr(m.PC)
		m.waiting = true
	case LDDTV:
		m.DT = v[in.X]
	case LDSTV:
		m.ST = v[in.X]
	case ADDIDX:
		m.I = (m.I + uint16(v[in.X])) & (MemSize - 1)
	case LDF:
		m.I = FontAddr + uint16(v[in.X]&0xf)*GlyphSize
	case LDB:
		b := m.span(m.I, 3)
		n := v[in.X]
		b[0], b[1], b[2] = n/100, n/10%10, n%10
	case STORE:
		copy(m.span(m.I, int(in.X)+1), v[:in.X+1])
		m.advanceIndex(in)
	case LOAD:
		copy(v[:in.X+1], m.span(m.I, int(in.X)+1))
		m.advanceIndex(in)
	default:
		panic(fmt.Errorf("internal error: %v not implemented", in.Kind))
	}
}

func (m *Machine) skipIf(cond bool) {
	if cond {
		m.PC = (m.PC + 2) & (MemSize - 1)
	}
}

func (m *Machine) shiftSource(in Instr) byte {
	if m.Quirks.ShiftVx {
		return m.V[in.X]
	}
	return m.V[in.Y]
}

func (m *Machine) advanceIndex(in Instr) {
	if m.Quirks.IndexIncrement {
		m.I = (m.I + uint16(in.X) + 1) & (MemSize - 1)
	}
}

// span returns n bytes of memory starting at addr.
// It panics with BadAddress if any of them lie outside memory.
func (m *Machine) span(addr uint16, n int) []byte {
	if end := int(addr) + n; end > len(m.Mem) {
		panic(BadAddress)
	}
	return m.Mem[addr : int(addr)+n]
}

// OpAddr returns the memory address associated with the instruction at addr
// and reports whether it has one. Jumps and calls report their target;
// Annn reports nnn; instructions that read or write memory through I report
// the current value of I.
func (m *Machine) OpAddr(addr uint16) (uint16, bool) {
	if int(addr)+1 >= len(m.Mem) {
		return 0, false
	}
	in := Decode(Opcode(short(m.Mem[addr], m.Mem[addr+1])))
	switch in.Kind {
	case JP, CALL, LDIDX:
		return in.NNN, true
	case JPV0:
		base := m.V[0]
		if m.Quirks.JumpVx {
			base = m.V[in.X]
		}
		return (in.NNN + uint16(base)) & (MemSize - 1), true
	case RET:
		return m.Stack.Peek()
	case DRW, LDB, STORE, LOAD:
		return m.I, true
	}
	return 0, false
}

// Fault is returned by Step when an instruction cannot be executed.
type Fault struct {
	Code FaultCode
	Op   Opcode
	Addr uint16
}

func (f Fault) Error() string {
	// 0000 decodes as unknown, so a bad address with a zero opcode means
	// the fetch itself failed.
	if f.Code == BadAddress && f.Op == 0 {
		return fmt.Sprintf("%s fetching at %.3x", f.Code, f.Addr)
	}
	return fmt.Sprintf("%s executing %s at %.3x", f.Code, f.Op, f.Addr)
}

// Fatal reports whether execution should not continue past the fault.
func (f Fault) Fatal() bool { return f.Code != UnknownOp }

// FaultCode signifies the type of condition that stopped an instruction.
type FaultCode byte

const (
	UnknownOp      FaultCode = 0x01
	StackOverflow  FaultCode = 0x02
	StackUnderflow FaultCode = 0x03
	BadAddress     FaultCode = 0x04
)

func (c FaultCode) String() string {
	if s, ok := map[FaultCode]string{
		UnknownOp:      "unknown opcode",
		StackOverflow:  "stack overflow",
		StackUnderflow: "stack underflow",
		BadAddress:     "address out of range",
	}[c]; ok {
		return s
	}
	return fmt.Sprintf("unknown (%.2x)", byte(c))
}

func short(hi, lo byte) uint16 {
	return uint16(hi)<<8 + uint16(lo)
}

func flag(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func opAddr(pc uint16) uint16 { return (pc - 2) & (MemSize - 1) }
