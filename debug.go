package main

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/nf/c8/chip8"
	"github.com/nf/c8/cosmac"
)

type debugger struct {
	run *cosmac.Runner

	log   *tview.TextView
	watch *tview.TextView
	state *tview.TextView
	input *tview.InputField
	cols  *tview.Flex
	rows  *tview.Flex
	app   *tview.Application

	mu       sync.Mutex
	syms     symbols
	dbg, brk *symbol
	watches  []watch
}

type watch struct {
	symbol
	short bool
}

func (d *debugger) symbols() symbols {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.syms
}

func (d *debugger) setSymbols(s symbols) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.syms = s
}

func newDebugger() *debugger {
	d := &debugger{
		log: tview.NewTextView().
			SetMaxLines(1000),
		watch: tview.NewTextView().
			SetWrap(false).
			SetTextAlign(tview.AlignRight),
		state: tview.NewTextView().
			SetWrap(false),
		input: tview.NewInputField(),
		cols:  tview.NewFlex(),
		rows: tview.NewFlex().
			SetDirection(tview.FlexRow),
		app: tview.NewApplication(),
	}
	d.log.SetChangedFunc(func() { d.app.Draw() })
	d.watch.SetBackgroundColor(tcell.ColorDarkBlue)
	d.state.SetBackgroundColor(tcell.ColorDarkGrey)
	d.cols.
		AddItem(d.watch, 0, 1, false).
		AddItem(d.log, 0, 2, false)
	d.rows.
		AddItem(d.cols, 0, 1, false).
		AddItem(d.state, 4, 0, false).
		AddItem(d.input, 1, 0, true)
	d.app.SetRoot(d.rows, true)

	d.input.SetAutocompleteFunc(func(t string) (entries []string) {
		if cmd, arg, ok := strings.Cut(t, " "); ok && takesAddr(cmd) {
			for _, s := range d.symbols().withLabelPrefix(arg) {
				entries = append(entries, cmd+" "+s.label)
			}
		}
		return
	})
	d.input.SetAutocompletedFunc(func(t string, index, src int) bool {
		if src != tview.AutocompletedNavigate {
			d.input.SetText(t)
		}
		return src == tview.AutocompletedEnter || src == tview.AutocompletedClick
	})
	d.input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		cmd := d.input.GetText()
		if cmd == "" {
			return
		}
		d.input.SetText("")
		if cmd == "exit" {
			d.app.Stop()
			return
		}
		// The runner calls StateFunc, which queues updates for this
		// goroutine, while holding its lock.
		go d.command(cmd)
	})
	return d
}

func takesAddr(cmd string) bool {
	switch cmd {
	case "b", "break", "d", "debug", "w", "w2", "watch", "watch2":
		return true
	}
	return false
}

// command interprets a line typed into the debugger.
func (d *debugger) command(line string) {
	cmd, arg, ok := strings.Cut(line, " ")
	if ok && takesAddr(cmd) {
		s, ok := d.symbols().resolve(strings.TrimSpace(arg))
		if !ok {
			log.Printf("invalid address %q", arg)
			return
		}
		switch cmd {
		case "b", "break":
			d.run.Debug(cmd, s.addr)
			d.mu.Lock()
			d.brk = &s
			d.mu.Unlock()
			log.Printf("set break %s", s)
		case "d", "debug":
			d.run.Debug(cmd, s.addr)
			d.mu.Lock()
			d.dbg = &s
			d.mu.Unlock()
			log.Printf("set debug %s", s)
		default:
			d.mu.Lock()
			d.watches = append(d.watches,
				watch{symbol: s, short: strings.HasSuffix(cmd, "2")})
			d.mu.Unlock()
			log.Printf("watching %s", s)
		}
		return
	}
	d.run.Debug(cmd, 0)
	switch cmd {
	case "b", "break":
		d.mu.Lock()
		d.brk = nil
		d.mu.Unlock()
		log.Print("cleared break")
	case "d", "debug":
		d.mu.Lock()
		d.dbg = nil
		d.mu.Unlock()
		log.Print("cleared debug")
	}
}

func (d *debugger) Run() error { return d.app.Run() }

func (d *debugger) StateFunc(m *chip8.Machine, k cosmac.StateKind) {
	var (
		watch = d.watchContent(m)
		state string
	)
	if k != cosmac.ClearState && k != cosmac.QuietState {
		state = stateMsg(d.symbols(), m, k)
	}
	d.app.QueueUpdateDraw(func() {
		switch k {
		case cosmac.DebugState, cosmac.ClearState:
			d.state.SetTextColor(tcell.ColorBlack)
			d.state.SetBackgroundColor(tcell.ColorDarkGrey)
		case cosmac.BreakState:
			d.state.SetTextColor(tcell.ColorYellow)
			d.state.SetBackgroundColor(tcell.ColorDarkBlue)
		case cosmac.PauseState:
			d.state.SetTextColor(tcell.ColorWhite)
			d.state.SetBackgroundColor(tcell.ColorDarkBlue)
		case cosmac.HaltState:
			d.state.SetTextColor(tcell.ColorWhite)
			d.state.SetBackgroundColor(tcell.ColorDarkRed)
		}
		d.watch.SetText(watch)
		if k != cosmac.QuietState {
			d.state.SetText(state)
		}
	})
}

// stateMsg describes the instruction at PC and the registers.
func stateMsg(syms symbols, m *chip8.Machine, k cosmac.StateKind) string {
	var (
		in    chip8.Instr
		pcSym string
		sym   string
	)
	if int(m.PC)+1 < len(m.Mem) {
		in = chip8.Decode(chip8.Opcode(uint16(m.Mem[m.PC])<<8 | uint16(m.Mem[m.PC+1])))
	}
	if s := syms.forAddr(m.PC); len(s) > 0 {
		pcSym = s[0].String() + " -> "
	}
	if addr, ok := m.OpAddr(m.PC); ok {
		for i, s := range syms.forAddr(addr) {
			if i != 0 {
				sym += " "
			}
			sym += s.String()
		}
	}
	kind := "       "
	switch k {
	case cosmac.BreakState:
		kind = "[break]"
	case cosmac.DebugState:
		kind = "[debug]"
	case cosmac.PauseState:
		kind = "[pause]"
	case cosmac.HaltState:
		kind = "[HALT!]"
	}
	return fmt.Sprintf("%.3x %s %-18s %s %s%s\nv: % x\ni: %.3x dt: %.2x st: %.2x\nstack: %v\n",
		m.PC, in.Op, in, kind, pcSym, sym, m.V[:], m.I, m.DT, m.ST, m.Stack)
}

func (d *debugger) watchContent(m *chip8.Machine) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var b strings.Builder
	if s := d.brk; s != nil {
		fmt.Fprintf(&b, "%s [%.3x] brk!\n", s.label, s.addr)
	}
	if s := d.dbg; s != nil {
		fmt.Fprintf(&b, "%s [%.3x] dbg?\n", s.label, s.addr)
	}
	for _, w := range d.watches {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s [%.3x] ", w.label, w.addr)
		if w.short && int(w.addr)+1 < len(m.Mem) {
			fmt.Fprintf(&b, "%.2x%.2x", m.Mem[w.addr], m.Mem[w.addr+1])
		} else {
			fmt.Fprintf(&b, "  %.2x", m.Mem[w.addr])
		}
	}
	return b.String()
}
