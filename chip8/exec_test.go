package chip8

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"
)

func TestNew(t *testing.T) {
	for _, c := range []struct {
		romSize int
		err     bool
	}{
		{0x000, false},
		{0x001, false},
		{0xdff, false},
		{0xe00, false},
		{0xe01, true},
		{0x1000, true},
	} {
		t.Run(fmt.Sprintf("%.4x", c.romSize), func(t *testing.T) {
			m, err := New(bytes.Repeat([]byte{1}, c.romSize))
			if c.err {
				if !errors.Is(err, ErrROMTooLarge) {
					t.Fatalf("got error %v, want ErrROMTooLarge", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if m.PC != ProgramAddr {
				t.Errorf("PC = %.3x, want %.3x", m.PC, ProgramAddr)
			}
			for i := range m.Mem {
				w := byte(0)
				switch {
				case i >= FontAddr && i < FontAddr+len(Font):
					w = Font[i-FontAddr]
				case i >= ProgramAddr && i < ProgramAddr+c.romSize:
					w = 1
				}
				if g := m.Mem[i]; g != w {
					t.Fatalf("Mem[%.3x] == %.2x, want %.2x", i, g, w)
				}
			}
		})
	}
}

func TestExec(t *testing.T) {
	c := newExecTestCase
	for i, c := range []*execTestCase{
		c(0x00e0).screen(0, ^uint64(0)).screen(31, 1).want().screen(0, 0).screen(31, 0),
		c(0x00ee).stack(0x204, 0x3ab).want().stack(0x204).pc(0x3ab),
		c(0x1345).want().pc(0x345),
		c(0x2345).want().stack(0x202).pc(0x345),
		c(0x2345).stack(0x300).want().stack(0x300, 0x202).pc(0x345),

		c(0x3142).v(1, 0x42).want().pc(0x204),
		c(0x3142).v(1, 0x41).want(),
		c(0x4142).v(1, 0x42).want(),
		c(0x4142).v(1, 0x41).want().pc(0x204),
		c(0x5120).v(1, 7).v(2, 7).want().pc(0x204),
		c(0x5120).v(1, 7).v(2, 8).want(),
		c(0x9120).v(1, 7).v(2, 7).want(),
		c(0x9120).v(1, 7).v(2, 8).want().pc(0x204),

		c(0x6a42).v(0xa, 0x99).want().v(0xa, 0x42),
		c(0x7105).v(1, 3).want().v(1, 8),
		c(0x7102).v(1, 0xff).v(0xf, 7).want().v(1, 1).v(0xf, 7),

		c(0x8120).v(2, 9).want().v(1, 9),
		c(0x8121).v(1, 0x36).v(2, 0x63).v(0xf, 1).want().v(1, 0x77).v(0xf, 0),
		c(0x8122).v(1, 0x99).v(2, 0xb8).v(0xf, 1).want().v(1, 0x98).v(0xf, 0),
		c(0x8123).v(1, 0x31).v(2, 0x13).v(0xf, 1).want().v(1, 0x22).v(0xf, 0),

		c(0x8124).v(1, 2).v(2, 3).want().v(1, 5).v(0xf, 0),
		c(0x8124).v(1, 0xff).v(2, 1).want().v(1, 0).v(0xf, 1),
		c(0x8124).v(1, 0xff).v(2, 0xff).want().v(1, 0xfe).v(0xf, 1),
		c(0x8f14).v(1, 2).v(0xf, 3).want().v(0xf, 0),

		c(0x8125).v(1, 5).v(2, 3).want().v(1, 2).v(0xf, 1),
		c(0x8125).v(1, 5).v(2, 5).want().v(1, 0).v(0xf, 1),
		c(0x8125).v(1, 3).v(2, 5).want().v(1, 0xfe).v(0xf, 0),

		c(0x8127).v(1, 3).v(2, 5).want().v(1, 2).v(0xf, 1),
		c(0x8127).v(1, 5).v(2, 5).want().v(1, 0).v(0xf, 1),
		c(0x8127).v(1, 5).v(2, 3).want().v(1, 0xfe).v(0xf, 0),

		c(0x8126).v(1, 0xff).v(2, 0x05).want().v(1, 0x02).v(0xf, 1),
		c(0x8126).v(2, 0x04).want().v(1, 0x02).v(0xf, 0),
		c(0x812e).v(1, 0x01).v(2, 0x81).want().v(1, 0x02).v(0xf, 1),
		c(0x812e).v(2, 0x41).want().v(1, 0x82).v(0xf, 0),

		c(0xa123).want().i(0x123),
		c(0xb300).v(0, 0x42).want().pc(0x342),
		c(0xbfff).v(0, 0x02).want().pc(0x001),

		c(0xe19e).v(1, 0xa).key(0xa).want().pc(0x204),
		c(0xe19e).v(1, 0xa).key(0xb).want(),
		c(0xe1a1).v(1, 0xa).key(0xa).want(),
		c(0xe1a1).v(1, 0xa).key(0xb).want().pc(0x204),

		c(0xf107).dt(0x33).want().v(1, 0x33),
		c(0xf115).v(1, 0x33).want().dt(0x33),
		c(0xf118).v(1, 0x33).want().st(0x33),
		c(0xf11e).v(1, 0x10).i(0x123).want().i(0x133),
		c(0xf11e).v(1, 0x02).i(0xfff).want().i(0x001),
		c(0xf129).v(1, 0xa).want().i(FontAddr + 50),
		c(0xf133).v(1, 234).i(0x300).want().mem(0x300, 2, 3, 4),
		c(0xf133).v(1, 0).i(0x300).mem(0x300, 9, 9, 9).want().mem(0x300, 0, 0, 0),
		c(0xf255).v(0, 1).v(1, 2).v(2, 3).v(3, 4).i(0x300).want().mem(0x300, 1, 2, 3),
		c(0xf265).mem(0x300, 1, 2, 3, 4).i(0x300).want().v(0, 1).v(1, 2).v(2, 3),

		c(0xf10a).v(1, 9).want().pc(0x200),
		c(0xf10a).key(5).want().v(1, 5),
		c(0xf10a).key(7).key(3).want().v(1, 3),

		c(0x0123).want().
			error(Fault{Code: UnknownOp, Op: 0x0123, Addr: 0x200}),
		c(0x8128).want().
			error(Fault{Code: UnknownOp, Op: 0x8128, Addr: 0x200}),
		c(0xf1ff).want().
			error(Fault{Code: UnknownOp, Op: 0xf1ff, Addr: 0x200}),
		c(0x00ee).want().
			error(Fault{Code: StackUnderflow, Op: 0x00ee, Addr: 0x200}),
		c(0x2345).stack(fullStack()...).want().
			error(Fault{Code: StackOverflow, Op: 0x2345, Addr: 0x200}),
		c(0xf255).v(0, 1).i(0xffe).want().
			error(Fault{Code: BadAddress, Op: 0xf255, Addr: 0x200}),
		c(0xf133).v(1, 123).i(0xffe).want().
			error(Fault{Code: BadAddress, Op: 0xf133, Addr: 0x200}),
		c(0xd015).i(0xffd).want().
			error(Fault{Code: BadAddress, Op: 0xd015, Addr: 0x200}),
	} {
		t.Run(fmt.Sprintf("%s_%d", c.m.op(), i), func(t *testing.T) {
			if err := c.m.Step(); err != c.err {
				t.Fatalf("got error %v, want %v", err, c.err)
			}
			if g, w := c.m.V, c.w.V; g != w {
				for i := range g {
					if g[i] != w[i] {
						t.Errorf("V%X = %.2x, want %.2x", i, g[i], w[i])
					}
				}
			}
			if g, w := c.m.Stack, c.w.Stack; !stackEq(g, w) {
				t.Errorf("stack is %v, want %v", g, w)
			}
			if g, w := c.m.Mem, c.w.Mem; g != w {
				for i := range g {
					if g[i] != w[i] {
						t.Errorf("memory[%.3x] = %.2x, want %.2x", i, g[i], w[i])
					}
				}
			}
			if g, w := c.m.Display, c.w.Display; g != w {
				t.Errorf("display is\n%v\nwant\n%v", g.String(), w.String())
			}
			if g, w := c.m.PC, c.w.PC; g != w {
				t.Errorf("PC is %.3x, want %.3x", g, w)
			}
			if g, w := c.m.I, c.w.I; g != w {
				t.Errorf("I is %.3x, want %.3x", g, w)
			}
			if g, w := c.m.DT, c.w.DT; g != w {
				t.Errorf("DT is %.2x, want %.2x", g, w)
			}
			if g, w := c.m.ST, c.w.ST; g != w {
				t.Errorf("ST is %.2x, want %.2x", g, w)
			}
		})
	}
}

func TestQuirks(t *testing.T) {
	c := newExecTestCase
	for i, c := range []*execTestCase{
		c(0x8126).quirks(Quirks{ShiftVx: true}).v(1, 0x05).v(2, 0xff).
			want().v(1, 0x02).v(2, 0xff).v(0xf, 1),
		c(0x812e).quirks(Quirks{ShiftVx: true}).v(1, 0x81).v(2, 0x01).
			want().v(1, 0x02).v(2, 0x01).v(0xf, 1),
		c(0x8121).quirks(Quirks{}).v(1, 0x36).v(2, 0x63).v(0xf, 1).
			want().v(1, 0x77).v(0xf, 1),
		c(0xf255).quirks(Quirks{IndexIncrement: true}).v(0, 1).v(1, 2).v(2, 3).i(0x300).
			want().mem(0x300, 1, 2, 3).i(0x303),
		c(0xf165).quirks(Quirks{IndexIncrement: true}).mem(0x300, 1, 2).i(0x300).
			want().v(0, 1).v(1, 2).i(0x302),
		c(0xb320).quirks(Quirks{JumpVx: true}).v(0, 0x01).v(3, 0x10).
			want().pc(0x330),
	} {
		t.Run(fmt.Sprintf("%s_%d", c.m.op(), i), func(t *testing.T) {
			if err := c.m.Step(); err != nil {
				t.Fatal(err)
			}
			if g, w := c.m.V, c.w.V; g != w {
				t.Errorf("V is %x, want %x", g, w)
			}
			if g, w := c.m.Mem, c.w.Mem; g != w {
				t.Error("memory differs")
			}
			if g, w := c.m.PC, c.w.PC; g != w {
				t.Errorf("PC is %.3x, want %.3x", g, w)
			}
			if g, w := c.m.I, c.w.I; g != w {
				t.Errorf("I is %.3x, want %.3x", g, w)
			}
		})
	}
}

func TestAddImmediate(t *testing.T) {
	m := mustNew(t, 0x7000)
	for x := 0; x < 256; x++ {
		for kk := 0; kk < 256; kk++ {
			m.PC = ProgramAddr
			m.Mem[ProgramAddr+1] = byte(kk)
			m.V[0] = byte(x)
			m.V[0xf] = 0x5a
			if err := m.Step(); err != nil {
				t.Fatal(err)
			}
			if g, w := m.V[0], byte((x+kk)%256); g != w {
				t.Fatalf("%d + %d = %d, want %d", x, kk, g, w)
			}
			if m.V[0xf] != 0x5a {
				t.Fatalf("%d + %d changed VF to %d", x, kk, m.V[0xf])
			}
		}
	}
}

func TestAddCarry(t *testing.T) {
	m := mustNew(t, 0x8014)
	for x := 0; x < 256; x++ {
		for y := 0; y < 256; y++ {
			m.PC = ProgramAddr
			m.V[0], m.V[1] = byte(x), byte(y)
			if err := m.Step(); err != nil {
				t.Fatal(err)
			}
			if g, w := m.V[0], byte(x+y); g != w {
				t.Fatalf("%d + %d = %d, want %d", x, y, g, w)
			}
			if g, w := m.V[0xf] == 1, x+y > 255; g != w {
				t.Fatalf("%d + %d: carry %v, want %v", x, y, g, w)
			}
		}
	}
}

func TestRandom(t *testing.T) {
	m := mustNew(t, 0xc10f, 0xc100)
	m.Rand = rand.New(rand.NewPCG(1, 2))
	want := byte(rand.New(rand.NewPCG(1, 2)).Uint32()) & 0x0f
	if err := m.Step(); err != nil {
		t.Fatal(err)
	}
	if m.V[1] != want {
		t.Errorf("V1 = %.2x, want %.2x", m.V[1], want)
	}
	if m.V[1]&0xf0 != 0 {
		t.Errorf("V1 = %.2x has bits outside the mask", m.V[1])
	}
	m.V[1] = 0xff
	if err := m.Step(); err != nil {
		t.Fatal(err)
	}
	if m.V[1] != 0 {
		t.Errorf("V1 = %.2x after masking with 0", m.V[1])
	}
}

func TestStoreLoadRoundTrip(t *testing.T) {
	for x := 0; x < 16; x++ {
		m := mustNew(t, Opcode(0xf055|x<<8), Opcode(0xf065|x<<8))
		m.I = 0x400
		var want [16]byte
		for i := range m.V {
			m.V[i] = byte(i*17 + 3)
			if i <= x {
				want[i] = m.V[i]
			}
		}
		if err := m.Step(); err != nil {
			t.Fatal(err)
		}
		m.V = [16]byte{}
		if err := m.Step(); err != nil {
			t.Fatal(err)
		}
		if m.V != want {
			t.Errorf("x=%X: V = %x, want %x", x, m.V, want)
		}
	}
}

func TestWaitForKey(t *testing.T) {
	m := mustNew(t, 0xf30a)
	m.V[3] = 0x42
	for i := 0; i < 3; i++ {
		if err := m.Step(); err != nil {
			t.Fatal(err)
		}
		if m.PC != ProgramAddr {
			t.Fatalf("step %d: PC = %.3x, want %.3x", i, m.PC, ProgramAddr)
		}
		if !m.WaitingForKey() {
			t.Fatalf("step %d: not waiting for key", i)
		}
		if m.V[3] != 0x42 {
			t.Fatalf("step %d: V3 modified to %.2x", i, m.V[3])
		}
		m.Tick()
	}
	m.Keys[0xc] = true
	m.Keys[0xe] = true
	if err := m.Step(); err != nil {
		t.Fatal(err)
	}
	if m.PC != ProgramAddr+2 || m.V[3] != 0xc || m.WaitingForKey() {
		t.Errorf("after key: PC = %.3x V3 = %x waiting = %v", m.PC, m.V[3], m.WaitingForKey())
	}
}

func TestTick(t *testing.T) {
	m := mustNew(t)
	m.DT, m.ST = 2, 1
	if !m.SoundOn() {
		t.Error("sound off with ST = 1")
	}
	for i := 0; i < 4; i++ {
		m.Tick()
	}
	if m.DT != 0 || m.ST != 0 {
		t.Errorf("after 4 ticks DT = %d, ST = %d, want 0, 0", m.DT, m.ST)
	}
	if m.SoundOn() {
		t.Error("sound on with ST = 0")
	}
}

func TestCallReturn(t *testing.T) {
	m := mustNew(t,
		0x2206, // 200: CALL 206
		0x6101, // 202: LD V1, 1
		0x1204, // 204: JP 204
		0x6202, // 206: LD V2, 2
		0x00ee, // 208: RET
	)
	for i := 0; i < 4; i++ {
		if err := m.Step(); err != nil {
			t.Fatal(err)
		}
	}
	if m.V[1] != 1 || m.V[2] != 2 {
		t.Errorf("V1 = %d, V2 = %d, want 1, 2", m.V[1], m.V[2])
	}
	if m.PC != 0x204 || m.Stack.Ptr != 0 {
		t.Errorf("PC = %.3x SP = %d, want 204, 0", m.PC, m.Stack.Ptr)
	}
}

func TestUnknownOpContinues(t *testing.T) {
	m := mustNew(t, 0xffff, 0x6107)
	err := m.Step()
	var f Fault
	if !errors.As(err, &f) || f.Code != UnknownOp || f.Fatal() {
		t.Fatalf("got %v, want non-fatal unknown opcode fault", err)
	}
	if m.PC != ProgramAddr+2 {
		t.Errorf("PC = %.3x, want %.3x", m.PC, ProgramAddr+2)
	}
	if err := m.Step(); err != nil {
		t.Fatal(err)
	}
	if m.V[1] != 7 {
		t.Errorf("V1 = %d, want 7", m.V[1])
	}
}

func TestFetchPastEnd(t *testing.T) {
	m := mustNew(t, 0x1fff)
	if err := m.Step(); err != nil {
		t.Fatal(err)
	}
	err := m.Step()
	if f, ok := err.(Fault); !ok || f.Code != BadAddress || !f.Fatal() {
		t.Fatalf("got %v, want bad address fault", err)
	}
	if m.PC != 0xfff {
		t.Errorf("PC = %.3x, want fff", m.PC)
	}
	if got, want := err.Error(), "address out of range fetching at fff"; got != want {
		t.Errorf("error = %q, want %q", got, want)
	}

	m = mustNew(t, 0xafff, 0xd012)
	m.Step()
	err = m.Step()
	if got, want := err.Error(), "address out of range executing D012 at 202"; got != want {
		t.Errorf("error = %q, want %q", got, want)
	}
}

func TestZeroValueLoad(t *testing.T) {
	var m Machine
	if err := m.Load([]byte{0xc1, 0xff}); err != nil {
		t.Fatal(err)
	}
	if m.Rand == nil {
		t.Fatal("Load left Rand nil")
	}
	if err := m.Step(); err != nil {
		t.Fatal(err)
	}
	if m.PC != 0x202 {
		t.Errorf("PC = %.3x, want 202", m.PC)
	}

	r := m.Rand
	m.Reset()
	if m.Rand != r {
		t.Error("Reset replaced Rand")
	}
}

func TestSelfModifying(t *testing.T) {
	m := mustNew(t,
		0x6012, // 200: LD V0, #12
		0x6134, // 202: LD V1, #34
		0xa208, // 204: LD I, #208
		0xf155, // 206: LD [I], V1
		0x0000, // 208: overwritten with 1234
	)
	for i := 0; i < 5; i++ {
		if err := m.Step(); err != nil {
			t.Fatal(err)
		}
	}
	if m.PC != 0x234 {
		t.Errorf("PC = %.3x, want 234", m.PC)
	}
}

func TestReset(t *testing.T) {
	m := mustNew(t, 0x6155)
	m.Quirks.Wrap = true
	if err := m.Step(); err != nil {
		t.Fatal(err)
	}
	m.Reset()
	if m.V[1] != 0 || m.PC != ProgramAddr || !m.Quirks.Wrap {
		t.Errorf("after reset V1 = %.2x PC = %.3x wrap = %v", m.V[1], m.PC, m.Quirks.Wrap)
	}
	if !bytes.Equal(m.ROM(), []byte{0x61, 0x55}) {
		t.Errorf("ROM() = %x", m.ROM())
	}
}

func TestOpAddr(t *testing.T) {
	m := mustNew(t, 0x2345, 0xb100, 0xd125, 0x6000, 0x00ee)
	m.V[0] = 0x10
	m.I = 0x456
	m.Stack.Push(0x222)
	for _, c := range []struct {
		addr uint16
		want uint16
		ok   bool
	}{
		{0x200, 0x345, true},
		{0x202, 0x110, true},
		{0x204, 0x456, true},
		{0x206, 0, false},
		{0x208, 0x222, true},
		{0xfff, 0, false},
	} {
		got, ok := m.OpAddr(c.addr)
		if got != c.want || ok != c.ok {
			t.Errorf("OpAddr(%.3x) = %.3x, %v; want %.3x, %v", c.addr, got, ok, c.want, c.ok)
		}
	}
}

type execTestCase struct {
	m, w *Machine
	err  error
	set  *Machine
}

func newExecTestCase(op Opcode) *execTestCase {
	rom := []byte{byte(op >> 8), byte(op)}
	c := &execTestCase{}
	c.m, _ = New(rom)
	c.w, _ = New(rom)
	c.w.PC += 2
	c.set = c.m
	return c
}

func (c *execTestCase) quirks(q Quirks) *execTestCase {
	c.m.Quirks = q
	c.w.Quirks = q
	return c
}

// The setters below apply to the initial state until want is called, after
// which they apply to the expected state. Until then they also set the
// expected state, so only changes need to be listed after want.

func (c *execTestCase) both(f func(m *Machine)) *execTestCase {
	f(c.set)
	if c.set == c.m {
		f(c.w)
	}
	return c
}

func (c *execTestCase) v(x int, b byte) *execTestCase {
	return c.both(func(m *Machine) { m.V[x] = b })
}

func (c *execTestCase) i(addr uint16) *execTestCase {
	return c.both(func(m *Machine) { m.I = addr })
}

func (c *execTestCase) dt(b byte) *execTestCase {
	return c.both(func(m *Machine) { m.DT = b })
}

func (c *execTestCase) st(b byte) *execTestCase {
	return c.both(func(m *Machine) { m.ST = b })
}

func (c *execTestCase) key(k int) *execTestCase {
	return c.both(func(m *Machine) { m.Keys[k] = true })
}

func (c *execTestCase) mem(addr uint16, bytes ...byte) *execTestCase {
	return c.both(func(m *Machine) { copy(m.Mem[addr:], bytes) })
}

func (c *execTestCase) screen(row int, bits uint64) *execTestCase {
	return c.both(func(m *Machine) { m.Display[row] = bits })
}

func (c *execTestCase) stack(addrs ...uint16) *execTestCase {
	return c.both(func(m *Machine) {
		m.Stack = Stack{}
		for _, a := range addrs {
			m.Stack.Push(a)
		}
	})
}

// pc is only meaningful after want; the initial PC is always ProgramAddr.
func (c *execTestCase) pc(addr uint16) *execTestCase {
	c.set.PC = addr
	return c
}

func (c *execTestCase) want() *execTestCase {
	c.set = c.w
	return c
}

func (c *execTestCase) error(err error) *execTestCase {
	c.err = err
	return c
}

func (m *Machine) op() Opcode {
	return Opcode(short(m.Mem[ProgramAddr], m.Mem[ProgramAddr+1]))
}

func stackEq(a, b Stack) bool {
	ac := Stack{Ptr: a.Ptr}
	bc := Stack{Ptr: b.Ptr}
	copy(ac.Addrs[:], a.Addrs[:a.Ptr])
	copy(bc.Addrs[:], b.Addrs[:b.Ptr])
	return ac == bc
}

func fullStack() []uint16 {
	s := make([]uint16, StackDepth)
	for i := range s {
		s[i] = 0x300 + uint16(i)*2
	}
	return s
}

func mustNew(t *testing.T, ops ...Opcode) *Machine {
	t.Helper()
	var rom []byte
	for _, op := range ops {
		rom = append(rom, byte(op>>8), byte(op))
	}
	m, err := New(rom)
	if err != nil {
		t.Fatal(err)
	}
	return m
}
