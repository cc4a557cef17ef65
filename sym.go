package main

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/nf/c8/chip8"
)

// symbols is sorted by address.
type symbols []symbol

type symbol struct {
	addr  uint16
	label string
}

func (s symbol) String() string { return fmt.Sprintf("%s (%.3x)", s.label, s.addr) }

func (s symbols) forAddr(addr uint16) (ss []symbol) {
	i := sort.Search(len(s), func(i int) bool { return s[i].addr >= addr })
	for ; i < len(s) && s[i].addr == addr; i++ {
		ss = append(ss, s[i])
	}
	return ss
}

func (s symbols) withLabelPrefix(p string) (ss []symbol) {
	for _, sym := range s {
		if strings.HasPrefix(sym.label, p) {
			ss = append(ss, sym)
		}
	}
	return ss
}

// resolve returns the symbol named by arg, which is either a label or a
// hexadecimal address.
func (s symbols) resolve(arg string) (symbol, bool) {
	for _, sym := range s {
		if sym.label == arg {
			return sym, true
		}
	}
	n, err := strconv.ParseUint(strings.TrimPrefix(arg, "#"), 16, 16)
	if err != nil || n >= chip8.MemSize {
		return symbol{}, false
	}
	addr := uint16(n)
	if ss := s.forAddr(addr); len(ss) > 0 {
		return ss[0], true
	}
	return symbol{addr: addr, label: fmt.Sprintf("#%.3x", addr)}, true
}

// readSymbols reads a symbol file of "addr label" lines, with addr in hex.
// Blank lines and lines starting with # are ignored.
// A missing file yields no symbols and no error.
func readSymbols(symFile string) (symbols, error) {
	f, err := os.Open(symFile)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	defer f.Close()

	var (
		ss   symbols
		line int
		sc   = bufio.NewScanner(f)
	)
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || text[0] == '#' {
			continue
		}
		addr, label, ok := strings.Cut(text, " ")
		label = strings.TrimSpace(label)
		if !ok || label == "" {
			return nil, fmt.Errorf("%s:%d: want \"addr label\", got %q", symFile, line, text)
		}
		n, err := strconv.ParseUint(strings.TrimPrefix(addr, "0x"), 16, 16)
		if err != nil || n >= chip8.MemSize {
			return nil, fmt.Errorf("%s:%d: invalid address %q", symFile, line, addr)
		}
		ss = append(ss, symbol{addr: uint16(n), label: label})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(ss, func(i, j int) bool {
		return ss[i].addr < ss[j].addr
	})
	return ss, nil
}
