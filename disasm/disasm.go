// Copyright 2014 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package disasm implements a 6502 instruction set
// disassembler.
package disasm

import (
	"fmt"

	"github.com/beevik/mini6502/cpu"
)

// Disassembler formatting for addressing modes
var modeFormat = []string{
	"#$%s",    // IMM
	"%s",      // IMP
	"$%s",     // REL
	"$%s",     // ZPG
	"$%s,X",   // ZPX
	"$%s,Y",   // ZPY
	"$%s",     // ABS
	"$%s,X",   // ABX
	"$%s,Y",   // ABY
	"($%s)",   // IND
	"($%s,X)", // IDX
	"($%s),Y", // IDY
	"",        // ACC
}

var hex = "0123456789ABCDEF"

// Return a hexadecimal string representation of the little-endian byte
// slice, most significant byte first.
func hexString(b []byte) string {
	hexlen := len(b) * 2
	hexbuf := make([]byte, hexlen)
	j := hexlen - 1
	for _, n := range b {
		hexbuf[j] = hex[n&0xf]
		hexbuf[j-1] = hex[n>>4]
		j -= 2
	}
	return string(hexbuf)
}

// Disassemble the machine code in memory 'm' at address 'addr'. Return a
// 'line' string representing the disassembled instruction and a 'next'
// address that starts the following line of machine code. Opcodes with no
// documented meaning disassemble as a one-byte "???" line.
func Disassemble(m cpu.Memory, addr uint16) (line string, next uint16) {
	opcode := m.LoadByte(addr)
	inst := cpu.GetInstructionSet().Lookup(opcode)
	next = addr + uint16(inst.Length)

	if inst.Illegal() {
		return fmt.Sprintf("??? ($%02X)", opcode), next
	}

	operand := make([]byte, inst.Length-1)
	for i := range operand {
		operand[i] = m.LoadByte(addr + 1 + uint16(i))
	}

	if inst.Mode == cpu.REL {
		// Convert relative offset to absolute address.
		braddr := next + uint16(int8(operand[0]))
		operand = []byte{byte(braddr), byte(braddr >> 8)}
	}

	switch inst.Mode {
	case cpu.IMP:
		return inst.Name, next
	case cpu.ACC:
		return inst.Name + " A", next
	}
	line = inst.Name + " " + fmt.Sprintf(modeFormat[inst.Mode], hexString(operand))
	return line, next
}

// Bytes returns the machine code of the instruction at 'addr'.
func Bytes(m cpu.Memory, addr uint16) []byte {
	inst := cpu.GetInstructionSet().Lookup(m.LoadByte(addr))
	b := make([]byte, inst.Length)
	for i := range b {
		b[i] = m.LoadByte(addr + uint16(i))
	}
	return b
}
