package chip8

import (
	"fmt"
	"strings"
)

// StackDepth is the number of return addresses the call stack can hold.
const StackDepth = 16

// Stack implements the CHIP-8 call stack.
type Stack struct {
	Addrs [StackDepth]uint16
	Ptr   byte
}

// Push panics with StackOverflow if the stack is full; Step recovers it.
func (s *Stack) Push(addr uint16) {
	if int(s.Ptr) >= len(s.Addrs) {
		panic(StackOverflow)
	}
	s.Addrs[s.Ptr] = addr
	s.Ptr++
}

// Pop panics with StackUnderflow if the stack is empty; Step recovers it.
func (s *Stack) Pop() uint16 {
	if s.Ptr == 0 {
		panic(StackUnderflow)
	}
	s.Ptr--
	return s.Addrs[s.Ptr]
}

// Peek returns the most recently pushed address without removing it.
func (s *Stack) Peek() (uint16, bool) {
	if s.Ptr == 0 || int(s.Ptr) > len(s.Addrs) {
		return 0, false
	}
	return s.Addrs[s.Ptr-1], true
}

func (s Stack) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for _, v := range s.Addrs[:min(int(s.Ptr), len(s.Addrs))] {
		b.WriteByte(' ')
		fmt.Fprintf(&b, "%.3x", v)
	}
	b.WriteByte(' ')
	b.WriteByte(')')
	return b.String()
}
