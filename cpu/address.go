// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpu

// Resolve computes the effective address of an instruction operand. The
// program counter in 'reg' must hold the address of the operand's first
// byte, i.e. the byte following the opcode. Resolve only reads memory, so
// identical inputs always produce the same address.
//
// For immediate and relative modes the effective address is the location of
// the operand itself: the value (or branch displacement) is read directly
// from it, not dereferenced.
//
// Resolve panics if the mode has no effective address (implied and
// accumulator modes).
func Resolve(mode Mode, reg *Registers, m Memory) uint16 {
	pc := reg.PC
	switch mode {
	case IMM, REL:
		return pc
	case ZPG:
		return uint16(m.LoadByte(pc))
	case ZPX:
		return offsetZeroPage(m.LoadByte(pc), reg.X)
	case ZPY:
		return offsetZeroPage(m.LoadByte(pc), reg.Y)
	case ABS:
		return m.LoadAddress(pc)
	case ABX:
		return m.LoadAddress(pc) + uint16(reg.X)
	case ABY:
		return m.LoadAddress(pc) + uint16(reg.Y)
	case IND:
		return m.LoadAddress(m.LoadAddress(pc))
	case IDX:
		zp := m.LoadByte(pc) + reg.X
		return loadZeroPageAddress(m, zp)
	case IDY:
		zp := m.LoadByte(pc)
		return loadZeroPageAddress(m, zp) + uint16(reg.Y)
	default:
		panic("Invalid addressing mode")
	}
}
