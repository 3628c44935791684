// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpu

import (
	"fmt"
	"strings"
	"sync"
)

// An Op identifies the operation performed by an instruction, independent of
// its addressing mode.
type Op byte

// All documented NMOS 6502 operations, plus OpIllegal for opcode bytes that
// have no documented meaning.
const (
	OpIllegal Op = iota
	OpADC
	OpAND
	OpASL
	OpBCC
	OpBCS
	OpBEQ
	OpBIT
	OpBMI
	OpBNE
	OpBPL
	OpBRK
	OpBVC
	OpBVS
	OpCLC
	OpCLD
	OpCLI
	OpCLV
	OpCMP
	OpCPX
	OpCPY
	OpDEC
	OpDEX
	OpDEY
	OpEOR
	OpINC
	OpINX
	OpINY
	OpJMP
	OpJSR
	OpLDA
	OpLDX
	OpLDY
	OpLSR
	OpNOP
	OpORA
	OpPHA
	OpPHP
	OpPLA
	OpPLP
	OpROL
	OpROR
	OpRTI
	OpRTS
	OpSBC
	OpSEC
	OpSED
	OpSEI
	OpSTA
	OpSTX
	OpSTY
	OpTAX
	OpTAY
	OpTSX
	OpTXA
	OpTXS
	OpTYA
	opCount
)

type instfunc func(c *CPU, inst *Instruction, addr uint16)

// Emulator implementation for each operation. A nil fn marks an operation
// that decodes normally but is not emulated.
type opImpl struct {
	op   Op
	name string
	fn   instfunc
}

var impl = []opImpl{
	{OpIllegal, "???", nil},
	{OpADC, "ADC", (*CPU).adc},
	{OpAND, "AND", (*CPU).and},
	{OpASL, "ASL", (*CPU).asl},
	{OpBCC, "BCC", (*CPU).bcc},
	{OpBCS, "BCS", (*CPU).bcs},
	{OpBEQ, "BEQ", (*CPU).beq},
	{OpBIT, "BIT", nil},
	{OpBMI, "BMI", (*CPU).bmi},
	{OpBNE, "BNE", (*CPU).bne},
	{OpBPL, "BPL", (*CPU).bpl},
	{OpBRK, "BRK", nil},
	{OpBVC, "BVC", (*CPU).bvc},
	{OpBVS, "BVS", (*CPU).bvs},
	{OpCLC, "CLC", (*CPU).clc},
	{OpCLD, "CLD", nil},
	{OpCLI, "CLI", nil},
	{OpCLV, "CLV", (*CPU).clv},
	{OpCMP, "CMP", nil},
	{OpCPX, "CPX", nil},
	{OpCPY, "CPY", nil},
	{OpDEC, "DEC", nil},
	{OpDEX, "DEX", (*CPU).dex},
	{OpDEY, "DEY", (*CPU).dey},
	{OpEOR, "EOR", nil},
	{OpINC, "INC", nil},
	{OpINX, "INX", (*CPU).inx},
	{OpINY, "INY", (*CPU).iny},
	{OpJMP, "JMP", (*CPU).jmp},
	{OpJSR, "JSR", nil},
	{OpLDA, "LDA", (*CPU).lda},
	{OpLDX, "LDX", (*CPU).ldx},
	{OpLDY, "LDY", (*CPU).ldy},
	{OpLSR, "LSR", nil},
	{OpNOP, "NOP", (*CPU).nop},
	{OpORA, "ORA", nil},
	{OpPHA, "PHA", nil},
	{OpPHP, "PHP", nil},
	{OpPLA, "PLA", nil},
	{OpPLP, "PLP", nil},
	{OpROL, "ROL", nil},
	{OpROR, "ROR", nil},
	{OpRTI, "RTI", nil},
	{OpRTS, "RTS", nil},
	{OpSBC, "SBC", nil},
	{OpSEC, "SEC", (*CPU).sec},
	{OpSED, "SED", nil},
	{OpSEI, "SEI", nil},
	{OpSTA, "STA", (*CPU).sta},
	{OpSTX, "STX", (*CPU).stx},
	{OpSTY, "STY", (*CPU).sty},
	{OpTAX, "TAX", (*CPU).tax},
	{OpTAY, "TAY", (*CPU).tay},
	{OpTSX, "TSX", nil},
	{OpTXA, "TXA", (*CPU).txa},
	{OpTXS, "TXS", nil},
	{OpTYA, "TYA", (*CPU).tya},
}

// String returns the all-caps mnemonic of the operation.
func (op Op) String() string {
	if op < opCount {
		return impl[op].name
	}
	return fmt.Sprintf("Op(%d)", byte(op))
}

// Mode describes a memory addressing mode.
type Mode byte

// All possible memory addressing modes
const (
	IMM Mode = iota // Immediate
	IMP             // Implied (no operand)
	REL             // Relative
	ZPG             // Zero Page
	ZPX             // Zero Page,X
	ZPY             // Zero Page,Y
	ABS             // Absolute
	ABX             // Absolute,X
	ABY             // Absolute,Y
	IND             // (Indirect)
	IDX             // (Indirect,X)
	IDY             // (Indirect),Y
	ACC             // Accumulator (no operand)
)

var modeNames = [...]string{
	IMM: "Immediate",
	IMP: "Implied",
	REL: "Relative",
	ZPG: "ZeroPage",
	ZPX: "ZeroPageX",
	ZPY: "ZeroPageY",
	ABS: "Absolute",
	ABX: "AbsoluteX",
	ABY: "AbsoluteY",
	IND: "Indirect",
	IDX: "IndirectX",
	IDY: "IndirectY",
	ACC: "Accumulator",
}

func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("Mode(%d)", byte(m))
}

// OperandLength returns the number of operand bytes that follow an opcode
// using this addressing mode.
func (m Mode) OperandLength() byte {
	switch m {
	case IMP, ACC:
		return 0
	case ABS, ABX, ABY, IND:
		return 2
	default:
		return 1
	}
}

// HasAddress returns true if instructions using this mode operate on an
// effective address computed by Resolve.
func (m Mode) HasAddress() bool {
	return m != IMP && m != ACC
}

// Opcode data for an (operation, mode) pair
type opcodeData struct {
	op     Op   // operation
	mode   Mode // addressing mode
	opcode byte // opcode hex value
}

// All documented (opcode, mode) pairs
var data = []opcodeData{
	{OpLDA, IMM, 0xa9},
	{OpLDA, ZPG, 0xa5},
	{OpLDA, ZPX, 0xb5},
	{OpLDA, ABS, 0xad},
	{OpLDA, ABX, 0xbd},
	{OpLDA, ABY, 0xb9},
	{OpLDA, IDX, 0xa1},
	{OpLDA, IDY, 0xb1},

	{OpLDX, IMM, 0xa2},
	{OpLDX, ZPG, 0xa6},
	{OpLDX, ZPY, 0xb6},
	{OpLDX, ABS, 0xae},
	{OpLDX, ABY, 0xbe},

	{OpLDY, IMM, 0xa0},
	{OpLDY, ZPG, 0xa4},
	{OpLDY, ZPX, 0xb4},
	{OpLDY, ABS, 0xac},
	{OpLDY, ABX, 0xbc},

	{OpSTA, ZPG, 0x85},
	{OpSTA, ZPX, 0x95},
	{OpSTA, ABS, 0x8d},
	{OpSTA, ABX, 0x9d},
	{OpSTA, ABY, 0x99},
	{OpSTA, IDX, 0x81},
	{OpSTA, IDY, 0x91},

	{OpSTX, ZPG, 0x86},
	{OpSTX, ZPY, 0x96},
	{OpSTX, ABS, 0x8e},

	{OpSTY, ZPG, 0x84},
	{OpSTY, ZPX, 0x94},
	{OpSTY, ABS, 0x8c},

	{OpADC, IMM, 0x69},
	{OpADC, ZPG, 0x65},
	{OpADC, ZPX, 0x75},
	{OpADC, ABS, 0x6d},
	{OpADC, ABX, 0x7d},
	{OpADC, ABY, 0x79},
	{OpADC, IDX, 0x61},
	{OpADC, IDY, 0x71},

	{OpSBC, IMM, 0xe9},
	{OpSBC, ZPG, 0xe5},
	{OpSBC, ZPX, 0xf5},
	{OpSBC, ABS, 0xed},
	{OpSBC, ABX, 0xfd},
	{OpSBC, ABY, 0xf9},
	{OpSBC, IDX, 0xe1},
	{OpSBC, IDY, 0xf1},

	{OpCMP, IMM, 0xc9},
	{OpCMP, ZPG, 0xc5},
	{OpCMP, ZPX, 0xd5},
	{OpCMP, ABS, 0xcd},
	{OpCMP, ABX, 0xdd},
	{OpCMP, ABY, 0xd9},
	{OpCMP, IDX, 0xc1},
	{OpCMP, IDY, 0xd1},

	{OpCPX, IMM, 0xe0},
	{OpCPX, ZPG, 0xe4},
	{OpCPX, ABS, 0xec},

	{OpCPY, IMM, 0xc0},
	{OpCPY, ZPG, 0xc4},
	{OpCPY, ABS, 0xcc},

	{OpBIT, ZPG, 0x24},
	{OpBIT, ABS, 0x2c},

	{OpCLC, IMP, 0x18},
	{OpSEC, IMP, 0x38},
	{OpCLI, IMP, 0x58},
	{OpSEI, IMP, 0x78},
	{OpCLD, IMP, 0xd8},
	{OpSED, IMP, 0xf8},
	{OpCLV, IMP, 0xb8},

	{OpBCC, REL, 0x90},
	{OpBCS, REL, 0xb0},
	{OpBEQ, REL, 0xf0},
	{OpBNE, REL, 0xd0},
	{OpBMI, REL, 0x30},
	{OpBPL, REL, 0x10},
	{OpBVC, REL, 0x50},
	{OpBVS, REL, 0x70},

	{OpBRK, IMP, 0x00},

	{OpAND, IMM, 0x29},
	{OpAND, ZPG, 0x25},
	{OpAND, ZPX, 0x35},
	{OpAND, ABS, 0x2d},
	{OpAND, ABX, 0x3d},
	{OpAND, ABY, 0x39},
	{OpAND, IDX, 0x21},
	{OpAND, IDY, 0x31},

	{OpORA, IMM, 0x09},
	{OpORA, ZPG, 0x05},
	{OpORA, ZPX, 0x15},
	{OpORA, ABS, 0x0d},
	{OpORA, ABX, 0x1d},
	{OpORA, ABY, 0x19},
	{OpORA, IDX, 0x01},
	{OpORA, IDY, 0x11},

	{OpEOR, IMM, 0x49},
	{OpEOR, ZPG, 0x45},
	{OpEOR, ZPX, 0x55},
	{OpEOR, ABS, 0x4d},
	{OpEOR, ABX, 0x5d},
	{OpEOR, ABY, 0x59},
	{OpEOR, IDX, 0x41},
	{OpEOR, IDY, 0x51},

	{OpINC, ZPG, 0xe6},
	{OpINC, ZPX, 0xf6},
	{OpINC, ABS, 0xee},
	{OpINC, ABX, 0xfe},

	{OpDEC, ZPG, 0xc6},
	{OpDEC, ZPX, 0xd6},
	{OpDEC, ABS, 0xce},
	{OpDEC, ABX, 0xde},

	{OpINX, IMP, 0xe8},
	{OpINY, IMP, 0xc8},

	{OpDEX, IMP, 0xca},
	{OpDEY, IMP, 0x88},

	{OpJMP, ABS, 0x4c},
	{OpJMP, IND, 0x6c},

	{OpJSR, ABS, 0x20},
	{OpRTS, IMP, 0x60},

	{OpRTI, IMP, 0x40},

	{OpNOP, IMP, 0xea},

	{OpTAX, IMP, 0xaa},
	{OpTXA, IMP, 0x8a},
	{OpTAY, IMP, 0xa8},
	{OpTYA, IMP, 0x98},
	{OpTXS, IMP, 0x9a},
	{OpTSX, IMP, 0xba},

	{OpPHA, IMP, 0x48},
	{OpPLA, IMP, 0x68},
	{OpPHP, IMP, 0x08},
	{OpPLP, IMP, 0x28},

	{OpASL, ACC, 0x0a},
	{OpASL, ZPG, 0x06},
	{OpASL, ZPX, 0x16},
	{OpASL, ABS, 0x0e},
	{OpASL, ABX, 0x1e},

	{OpLSR, ACC, 0x4a},
	{OpLSR, ZPG, 0x46},
	{OpLSR, ZPX, 0x56},
	{OpLSR, ABS, 0x4e},
	{OpLSR, ABX, 0x5e},

	{OpROL, ACC, 0x2a},
	{OpROL, ZPG, 0x26},
	{OpROL, ZPX, 0x36},
	{OpROL, ABS, 0x2e},
	{OpROL, ABX, 0x3e},

	{OpROR, ACC, 0x6a},
	{OpROR, ZPG, 0x66},
	{OpROR, ZPX, 0x76},
	{OpROR, ABS, 0x6e},
	{OpROR, ABX, 0x7e},
}

// An Instruction describes a CPU instruction, including its name,
// its addressing mode, its opcode value and its size.
type Instruction struct {
	Name   string   // all-caps name of the instruction
	Op     Op       // operation performed
	Mode   Mode     // addressing mode
	Opcode byte     // hexadecimal opcode value
	Length byte     // combined size of opcode and operand, in bytes
	fn     instfunc // emulator implementation of the instruction
}

// Illegal returns true if the opcode byte has no documented meaning.
func (inst *Instruction) Illegal() bool {
	return inst.Op == OpIllegal
}

// Implemented returns true if the emulator can execute the instruction.
// BRK is handled by the CPU directly and reports true.
func (inst *Instruction) Implemented() bool {
	return inst.fn != nil || inst.Op == OpBRK
}

// An InstructionSet defines the set of all possible instructions that
// can run on the emulated CPU.
type InstructionSet struct {
	instructions [256]Instruction          // all instructions by opcode
	variants     map[string][]*Instruction // variants of each instruction
}

// Lookup retrieves a CPU instruction corresponding to the requested opcode.
// Every opcode has an entry; opcodes without a documented meaning return an
// instruction whose Op is OpIllegal.
func (s *InstructionSet) Lookup(opcode byte) *Instruction {
	return &s.instructions[opcode]
}

// GetInstructions returns all CPU instructions whose name matches the
// provided string.
func (s *InstructionSet) GetInstructions(name string) []*Instruction {
	return s.variants[strings.ToUpper(name)]
}

// Create the 6502 instruction set.
func newInstructionSet() *InstructionSet {
	set := &InstructionSet{
		variants: make(map[string][]*Instruction),
	}

	for i := range impl {
		if impl[i].op != Op(i) {
			panic("instruction implementation table out of order")
		}
	}

	// Every opcode starts out illegal, occupying a single byte.
	for i := 0; i < 256; i++ {
		set.instructions[i] = Instruction{
			Name:   impl[OpIllegal].name,
			Op:     OpIllegal,
			Mode:   IMP,
			Opcode: byte(i),
			Length: 1,
		}
	}

	for _, d := range data {
		inst := &set.instructions[d.opcode]
		if inst.Op != OpIllegal {
			panic(fmt.Sprintf("duplicate opcode $%02X", d.opcode))
		}

		inst.Name = impl[d.op].name
		inst.Op = d.op
		inst.Mode = d.mode
		inst.Length = 1 + d.mode.OperandLength()
		inst.fn = impl[d.op].fn

		set.variants[inst.Name] = append(set.variants[inst.Name], inst)
	}
	return set
}

var instructionSet = sync.OnceValue(newInstructionSet)

// GetInstructionSet returns the 6502 instruction set. The set is built the
// first time it is requested and is shared, read-only, by all CPUs.
func GetInstructionSet() *InstructionSet {
	return instructionSet()
}
