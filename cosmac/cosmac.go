// Package cosmac implements the machine around a CHIP-8 core: the clocks
// that drive it, its keypad, and the front ends that display it.
package cosmac

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/nf/c8/chip8"
)

// DefaultHz is the default instruction rate.
const DefaultHz = 700

// FrameRate is the rate at which the timers count down and front ends
// refresh the display.
const FrameRate = 60

// Frontend displays a running machine and feeds it key presses.
// Run blocks until the user quits or exit is closed.
type Frontend interface {
	Run(r *Runner, exit <-chan bool) error
}

// StateKind describes why a StateFunc was called.
type StateKind int

const (
	ClearState StateKind = iota // execution resumed
	QuietState                  // end of a frame; refresh watches only
	BreakState                  // PC reached the breakpoint
	DebugState                  // PC reached the debug point
	PauseState                  // paused, or stepped while paused
	HaltState                   // a fatal fault stopped the machine
)

// StateFunc receives the machine whenever the Runner's state changes.
// It is called with the machine locked and must not retain m.
type StateFunc func(m *chip8.Machine, k StateKind)

// Runner drives a Machine: it executes instructions at a fixed rate, counts
// the timers down at FrameRate, and applies debugger commands. All access
// to the machine goes through the Runner's lock.
type Runner struct {
	hz    int
	dev   bool
	state StateFunc

	exit     chan bool
	exitOnce sync.Once

	mu      sync.Mutex
	m       *chip8.Machine
	err     error
	halted  bool
	paused  bool
	steps   int
	skipBrk bool
	brk     *uint16
	dbg     *uint16
	acc     int // instruction credit carried between frames
	frames  uint64
	log     backlog
}

// NewRunner returns a Runner that executes hz instructions per second.
// In dev mode a fatal fault halts the machine but not the Runner, so that
// a new program can be swapped in.
func NewRunner(hz int, devMode bool, f StateFunc) *Runner {
	if hz <= 0 {
		hz = DefaultHz
	}
	return &Runner{
		hz:    hz,
		dev:   devMode,
		state: f,
		exit:  make(chan bool),
	}
}

// Run executes m until fe returns or the Runner is stopped.
// It returns the fault that halted the machine, if any.
func (r *Runner) Run(m *chip8.Machine, fe Frontend) error {
	r.mu.Lock()
	r.m = m
	r.mu.Unlock()

	go func() {
		t := time.NewTicker(time.Second / FrameRate)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				if err := r.frame(); err != nil && !r.dev {
					return
				}
			case <-r.exit:
				return
			}
		}
	}()

	err := fe.Run(r, r.exit)
	r.Stop()
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// RunFrames executes n frames of m as fast as possible, without a front
// end, and returns the fault that halted the machine, if any.
func (r *Runner) RunFrames(m *chip8.Machine, n int) error {
	r.mu.Lock()
	r.m = m
	r.mu.Unlock()
	for i := 0; i < n; i++ {
		if err := r.frame(); err != nil {
			return err
		}
	}
	return nil
}

// Stop causes Run to return.
func (r *Runner) Stop() {
	r.exitOnce.Do(func() { close(r.exit) })
}

// Swap replaces the running machine with m.
func (r *Runner) Swap(m *chip8.Machine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m = m
	r.halted = false
	r.err = nil
	r.acc = 0
	r.log.Reset()
	r.stateFunc(ClearState)
}

// SetKeys replaces the keypad state.
func (r *Runner) SetKeys(keys [chip8.NumKeys]bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.m != nil {
		r.m.Keys = keys
	}
}

// SetKey sets the state of a single keypad key.
func (r *Runner) SetKey(k byte, down bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.m != nil && int(k) < chip8.NumKeys {
		r.m.Keys[k] = down
	}
}

// Frame returns a copy of the display and whether the sound timer is running.
func (r *Runner) Frame() (d chip8.Display, sound bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.m == nil {
		return d, false
	}
	return r.m.Display, r.m.SoundOn()
}

// Frames returns the number of frames executed so far.
func (r *Runner) Frames() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Debug applies a debugger command. The commands are
//
//	b, break <addr>   pause when PC reaches addr (zero clears)
//	d, debug <addr>   report when PC reaches addr (zero clears)
//	p, pause          pause execution
//	c, cont           resume execution
//	s, step           execute one instruction while paused
//	r, reset          reset the machine to its freshly loaded state
//	l, log            print the recent non-fatal faults
//	exit              stop the Runner
func (r *Runner) Debug(cmd string, addr uint16) {
	if cmd == "exit" {
		r.Stop()
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	switch cmd {
	case "b", "break":
		r.brk = addrPtr(addr)
	case "d", "debug":
		r.dbg = addrPtr(addr)
	case "p", "pause":
		r.paused = true
		r.stateFunc(PauseState)
	case "c", "cont":
		if r.paused {
			r.paused = false
			r.skipBrk = true
			r.stateFunc(ClearState)
		}
	case "s", "step":
		if r.paused {
			r.steps++
			r.skipBrk = true
		}
	case "r", "reset":
		if r.m != nil {
			r.m.Reset()
		}
		r.halted = false
		r.err = nil
		r.acc = 0
		r.stateFunc(ClearState)
	case "l", "log":
		r.log.Emit()
	default:
		log.Printf("unknown command %q", cmd)
	}
}

func addrPtr(addr uint16) *uint16 {
	if addr == 0 {
		return nil
	}
	return &addr
}

// frame executes one frame's worth of instructions and ticks the timers.
func (r *Runner) frame() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.m
	if m == nil || r.halted {
		return nil
	}

	r.acc += r.hz
	n := r.acc / FrameRate
	r.acc %= FrameRate
	for i := 0; i < n; i++ {
		if !r.paused && r.brk != nil && m.PC == *r.brk && !r.skipBrk {
			r.paused = true
			r.stateFunc(BreakState)
			break
		}
		if r.paused {
			if r.steps == 0 {
				break
			}
			r.steps--
		}
		r.skipBrk = false
		if r.dbg != nil && m.PC == *r.dbg {
			r.stateFunc(DebugState)
		}
		if err := m.Step(); err != nil {
			var f chip8.Fault
			if errors.As(err, &f) && !f.Fatal() {
				r.log.LazyPrintf("%v", err)
			} else {
				return r.halt(err)
			}
		}
		if r.paused {
			r.stateFunc(PauseState)
		}
	}
	if !r.paused {
		m.Tick()
	}
	r.frames++
	r.stateFunc(QuietState)
	return nil
}

func (r *Runner) halt(err error) error {
	r.log.Emit()
	r.halted = true
	r.stateFunc(HaltState)
	if r.dev {
		log.Printf("chip8: %v", err)
	} else {
		r.err = err
		r.Stop()
	}
	return err
}

func (r *Runner) stateFunc(k StateKind) {
	if r.state != nil && r.m != nil {
		r.state(r.m, k)
	}
}

type backlog struct {
	entries []logEntry
	n       int
}

type logEntry struct {
	format string
	args   []any
}

const maxBacklog = 100

func (b *backlog) LazyPrintf(format string, args ...any) {
	if b.n < len(b.entries) {
		b.entries[b.n] = logEntry{format, args}
	} else {
		b.entries = append(b.entries, logEntry{format, args})
	}
	b.n = (b.n + 1) % maxBacklog
}

func (b *backlog) Emit() {
	if len(b.entries) == 0 {
		return
	}
	for i := b.n; ; i++ {
		i %= len(b.entries)
		log.Printf(b.entries[i].format, b.entries[i].args...)
		if (i+1)%len(b.entries) == b.n%len(b.entries) {
			break
		}
	}
	b.Reset()
}

func (b *backlog) Reset() {
	b.entries = b.entries[:0]
	b.n = 0
}
