// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package scope

import "math/bits"

const longBits = 64

// LexicalScope tracks the symbols live within one block. Symbols below 64
// are kept in a mask; larger ones in a growable overflow set.
type LexicalScope struct {
	symbols uint64
	more    []uint64
}

// HasSymbol returns true if the symbol is live in this block.
func (l *LexicalScope) HasSymbol(symbol int) bool {
	if symbol < longBits {
		return l.symbols&(1<<uint(symbol)) != 0
	}
	s := symbol - longBits
	w := s / longBits
	return w < len(l.more) && l.more[w]&(1<<uint(s%longBits)) != 0
}

// AddSymbol makes the symbol live. It returns false if it already was, in
// which case the caller reports a redefinition.
func (l *LexicalScope) AddSymbol(symbol int) bool {
	if l.HasSymbol(symbol) {
		return false
	}
	if symbol < longBits {
		l.symbols |= 1 << uint(symbol)
		return true
	}
	s := symbol - longBits
	w := s / longBits
	for len(l.more) <= w {
		l.more = append(l.more, 0)
	}
	l.more[w] |= 1 << uint(s%longBits)
	return true
}

// ClearSymbols calls cleanup once for every live symbol, then empties the set.
func (l *LexicalScope) ClearSymbols(cleanup func(symbol int)) {
	if cleanup != nil {
		for m := l.symbols; m != 0; m &= m - 1 {
			cleanup(bits.TrailingZeros64(m))
		}
		for w, word := range l.more {
			for m := word; m != 0; m &= m - 1 {
				cleanup(longBits + w*longBits + bits.TrailingZeros64(m))
			}
		}
	}
	l.symbols = 0
	l.more = l.more[:0]
}

// SymbolCount returns the number of live symbols.
func (l *LexicalScope) SymbolCount() int {
	n := bits.OnesCount64(l.symbols)
	for _, word := range l.more {
		n += bits.OnesCount64(word)
	}
	return n
}

// LexicalFrame is the LexicalScope of a block being evaluated against a frame.
// Declaring a captured symbol in a block shadows the captured value for the
// block's duration; Pop restores it.
type LexicalFrame struct {
	LexicalScope
	frame    *Frame
	previous *LexicalFrame
	saved    []savedSlot
}

type savedSlot struct {
	symbol int
	value  any
}

// NewLexicalFrame opens a block nested in previous.
func NewLexicalFrame(frame *Frame, previous *LexicalFrame) *LexicalFrame {
	return &LexicalFrame{frame: frame, previous: previous}
}

// Previous returns the enclosing block.
func (f *LexicalFrame) Previous() *LexicalFrame {
	return f.previous
}

// DefineArgs makes the frame's parameters live in this block.
func (f *LexicalFrame) DefineArgs() {
	if f.frame == nil {
		return
	}
	for a := 0; a < f.frame.Scope().ArgCount(); a++ {
		f.AddSymbol(a)
	}
}

// DefineSymbol declares a symbol in the block, saving the current value of a
// captured symbol so it can be restored on Pop.
func (f *LexicalFrame) DefineSymbol(symbol int, captured bool) bool {
	if !f.AddSymbol(symbol) {
		return false
	}
	if captured && f.frame != nil {
		f.saved = append(f.saved, savedSlot{symbol: symbol, value: f.frame.Get(symbol)})
	}
	return true
}

// Pop closes the block: live symbols become Undefined, shadowed captured
// values are restored, and the enclosing block is returned.
func (f *LexicalFrame) Pop() *LexicalFrame {
	if f.frame != nil {
		f.ClearSymbols(func(symbol int) {
			f.frame.Set(symbol, Undefined)
		})
		for i := len(f.saved) - 1; i >= 0; i-- {
			v := f.saved[i].value
			if v == Undeclared {
				v = Undefined
			}
			f.frame.Set(f.saved[i].symbol, v)
		}
	} else {
		f.ClearSymbols(nil)
	}
	f.saved = nil
	return f.previous
}
