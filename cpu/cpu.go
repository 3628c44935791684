// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cpu implements a subset of the 6502 CPU instruction set and an
// emulator that executes it.
//
// A CPU fetches, decodes and executes one instruction per Step until it
// either executes BRK, which halts it, or meets an opcode it cannot execute,
// which faults it. Both are terminal: only Reset makes the CPU runnable
// again. The CPU never bounds its own execution; a caller that runs
// untrusted code should step it with its own instruction budget.
package cpu

import (
	"errors"
	"fmt"
)

// Errors
var (
	ErrInvalidInstruction = errors.New("invalid instruction")
	ErrUnimplemented      = errors.New("unimplemented instruction")
)

// State is the run state of a CPU.
type State byte

const (
	// Running CPUs execute the next instruction when stepped.
	Running State = iota

	// Halted CPUs have executed a BRK instruction.
	Halted

	// Faulted CPUs have fetched an opcode they cannot execute.
	Faulted
)

func (s State) String() string {
	switch s {
	case Running:
		return "Running"
	case Halted:
		return "Halted"
	case Faulted:
		return "Faulted"
	default:
		return fmt.Sprintf("State(%d)", byte(s))
	}
}

// A Fault describes why a CPU entered the Faulted state. It wraps either
// ErrInvalidInstruction or ErrUnimplemented.
type Fault struct {
	Err    error  // ErrInvalidInstruction or ErrUnimplemented
	Opcode byte   // opcode that could not be executed
	PC     uint16 // address the opcode was fetched from
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%v $%02X at $%04X", f.Err, f.Opcode, f.PC)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// Fixed memory locations
const (
	// VectorReset holds the address execution starts from after Reset.
	VectorReset = 0xfffc

	// LoadAddress is where Load places a program image.
	LoadAddress = 0x8000
)

// CPU represents a single 6502 CPU. It contains a pointer to the
// memory associated with the CPU.
type CPU struct {
	Mem       Memory          // assigned memory
	InstSet   *InstructionSet // instruction set used by the CPU
	reg       Registers
	flags     Status
	state     State
	fault     *Fault
	steps     uint64
	lastPC    uint16
	debugger  *Debugger
	storeByte func(cpu *CPU, addr uint16, v byte)
}

// NewCPU creates an emulated 6502 CPU bound to the specified memory and
// resets it.
func NewCPU(m Memory) *CPU {
	cpu := &CPU{
		Mem:       m,
		InstSet:   GetInstructionSet(),
		storeByte: (*CPU).storeByteNormal,
	}
	cpu.Reset()
	return cpu
}

// Reset zeroes all registers and flags, loads the program counter from the
// reset vector and returns the CPU to the Running state.
func (cpu *CPU) Reset() {
	cpu.reg.Init()
	cpu.flags = 0
	cpu.state = Running
	cpu.fault = nil
	cpu.steps = 0
	cpu.reg.PC = cpu.Mem.LoadAddress(VectorReset)
	cpu.lastPC = cpu.reg.PC
}

// Load copies a program image to LoadAddress, points the reset vector at it
// and resets the CPU. It returns an error wrapping ErrOutOfBounds if the
// image does not fit in memory; the CPU is left untouched in that case.
func (cpu *CPU) Load(image []byte) error {
	if err := cpu.Mem.StoreBytes(LoadAddress, image); err != nil {
		return err
	}
	cpu.Mem.StoreAddress(VectorReset, LoadAddress)
	cpu.Reset()
	return nil
}

// SetPC updates the CPU program counter to 'addr'.
func (cpu *CPU) SetPC(addr uint16) {
	cpu.reg.PC = addr
}

// Registers returns a copy of the CPU registers.
func (cpu *CPU) Registers() Registers {
	return cpu.reg
}

// Status returns the processor status flags.
func (cpu *CPU) Status() Status {
	return cpu.flags
}

// State returns the current run state.
func (cpu *CPU) State() State {
	return cpu.state
}

// Fault returns the reason the CPU faulted, or nil if it has not.
func (cpu *CPU) Fault() error {
	if cpu.fault == nil {
		return nil
	}
	return cpu.fault
}

// Steps returns the number of instructions executed since the last reset.
func (cpu *CPU) Steps() uint64 {
	return cpu.steps
}

// LastPC returns the address of the most recently fetched instruction.
func (cpu *CPU) LastPC() uint16 {
	return cpu.lastPC
}

// GetInstruction returns the instruction at the requested address.
func (cpu *CPU) GetInstruction(addr uint16) *Instruction {
	opcode := cpu.Mem.LoadByte(addr)
	return cpu.InstSet.Lookup(opcode)
}

// Step the cpu by one instruction and return the resulting state. Stepping
// a halted or faulted CPU does nothing. The attached debugger sees the new
// PC after every executed instruction, including the BRK that halts the
// CPU, but not after a fault.
func (cpu *CPU) Step() State {
	if cpu.state != Running {
		return cpu.state
	}

	// Fetch and decode the opcode at the current PC.
	cpu.lastPC = cpu.reg.PC
	opcode := cpu.Mem.LoadByte(cpu.reg.PC)
	cpu.reg.PC++
	inst := cpu.InstSet.Lookup(opcode)

	switch {
	case inst.Op == OpBRK:
		cpu.state = Halted
	case inst.Illegal():
		return cpu.fail(ErrInvalidInstruction, inst)
	case inst.fn == nil:
		return cpu.fail(ErrUnimplemented, inst)
	default:
		// Resolve the operand address while the PC still points at the
		// operand, then advance past it.
		var addr uint16
		if inst.Mode.HasAddress() {
			addr = Resolve(inst.Mode, &cpu.reg, cpu.Mem)
		}
		cpu.reg.PC += uint16(inst.Mode.OperandLength())
		inst.fn(cpu, inst, addr)
	}
	cpu.steps++

	// Update the debugger so it can handle breakpoints.
	if cpu.debugger != nil {
		cpu.debugger.onUpdatePC(cpu, cpu.reg.PC)
	}
	return cpu.state
}

// Run steps the CPU until it halts or faults. It returns the terminal state
// and, if the CPU faulted, the reason.
func (cpu *CPU) Run() (State, error) {
	for cpu.state == Running {
		cpu.Step()
	}
	return cpu.state, cpu.Fault()
}

// AttachDebugger attaches a debugger to the CPU. The debugger receives
// notifications whenever the CPU executes an instruction or stores a byte
// to memory.
func (cpu *CPU) AttachDebugger(debugger *Debugger) {
	cpu.debugger = debugger
	cpu.storeByte = (*CPU).storeByteDebugger
}

// DetachDebugger detaches the currently attached debugger from the CPU.
func (cpu *CPU) DetachDebugger() {
	cpu.debugger = nil
	cpu.storeByte = (*CPU).storeByteNormal
}

func (cpu *CPU) fail(err error, inst *Instruction) State {
	cpu.fault = &Fault{Err: err, Opcode: inst.Opcode, PC: cpu.lastPC}
	cpu.state = Faulted
	return cpu.state
}

// Load the operand value of an instruction.
func (cpu *CPU) load(inst *Instruction, addr uint16) byte {
	if inst.Mode == ACC {
		return cpu.reg.A
	}
	return cpu.Mem.LoadByte(addr)
}

// Store a value to the operand of an instruction.
func (cpu *CPU) store(inst *Instruction, addr uint16, v byte) {
	if inst.Mode == ACC {
		cpu.reg.A = v
		return
	}
	cpu.storeByte(cpu, addr, v)
}

// Execute a branch using the signed displacement stored at 'addr'.
func (cpu *CPU) branch(addr uint16) {
	offset := int8(cpu.Mem.LoadByte(addr))
	cpu.reg.PC += uint16(offset)
}

func (cpu *CPU) storeByteNormal(addr uint16, v byte) {
	cpu.Mem.StoreByte(addr, v)
}

func (cpu *CPU) storeByteDebugger(addr uint16, v byte) {
	cpu.debugger.onDataStore(cpu, addr, v)
	cpu.Mem.StoreByte(addr, v)
}

// Add with carry
func (cpu *CPU) adc(inst *Instruction, addr uint16) {
	acc := uint32(cpu.reg.A)
	add := uint32(cpu.load(inst, addr))
	carry := boolToUint32(cpu.flags.IsSet(Carry))

	v := acc + add + carry
	cpu.flags.Set(Carry, v >= 0x100)
	cpu.flags.Set(Overflow, ((acc^add)&0x80) == 0 && ((acc^v)&0x80) != 0)

	cpu.reg.A = byte(v)
	cpu.flags.UpdateNZ(cpu.reg.A)
}

// Boolean AND
func (cpu *CPU) and(inst *Instruction, addr uint16) {
	cpu.reg.A &= cpu.load(inst, addr)
	cpu.flags.UpdateNZ(cpu.reg.A)
}

// Arithmetic Shift Left
func (cpu *CPU) asl(inst *Instruction, addr uint16) {
	v := cpu.load(inst, addr)
	cpu.flags.Set(Carry, (v&0x80) == 0x80)
	v = v << 1
	cpu.flags.UpdateNZ(v)
	cpu.store(inst, addr, v)
}

// Branch if Carry Clear
func (cpu *CPU) bcc(inst *Instruction, addr uint16) {
	if !cpu.flags.IsSet(Carry) {
		cpu.branch(addr)
	}
}

// Branch if Carry Set
func (cpu *CPU) bcs(inst *Instruction, addr uint16) {
	if cpu.flags.IsSet(Carry) {
		cpu.branch(addr)
	}
}

// Branch if EQual (to zero)
func (cpu *CPU) beq(inst *Instruction, addr uint16) {
	if cpu.flags.IsSet(Zero) {
		cpu.branch(addr)
	}
}

// Branch if MInus (negative)
func (cpu *CPU) bmi(inst *Instruction, addr uint16) {
	if cpu.flags.IsSet(Negative) {
		cpu.branch(addr)
	}
}

// Branch if Not Equal (not zero)
func (cpu *CPU) bne(inst *Instruction, addr uint16) {
	if !cpu.flags.IsSet(Zero) {
		cpu.branch(addr)
	}
}

// Branch if PLus (positive)
func (cpu *CPU) bpl(inst *Instruction, addr uint16) {
	if !cpu.flags.IsSet(Negative) {
		cpu.branch(addr)
	}
}

// Branch if oVerflow Clear
func (cpu *CPU) bvc(inst *Instruction, addr uint16) {
	if !cpu.flags.IsSet(Overflow) {
		cpu.branch(addr)
	}
}

// Branch if oVerflow Set
func (cpu *CPU) bvs(inst *Instruction, addr uint16) {
	if cpu.flags.IsSet(Overflow) {
		cpu.branch(addr)
	}
}

// Clear Carry flag
func (cpu *CPU) clc(inst *Instruction, addr uint16) {
	cpu.flags.Set(Carry, false)
}

// Clear oVerflow flag
func (cpu *CPU) clv(inst *Instruction, addr uint16) {
	cpu.flags.Set(Overflow, false)
}

// Decrement X register
func (cpu *CPU) dex(inst *Instruction, addr uint16) {
	cpu.reg.X--
	cpu.flags.UpdateNZ(cpu.reg.X)
}

// Decrement Y register
func (cpu *CPU) dey(inst *Instruction, addr uint16) {
	cpu.reg.Y--
	cpu.flags.UpdateNZ(cpu.reg.Y)
}

// Increment X register
func (cpu *CPU) inx(inst *Instruction, addr uint16) {
	cpu.reg.X++
	cpu.flags.UpdateNZ(cpu.reg.X)
}

// Increment Y register
func (cpu *CPU) iny(inst *Instruction, addr uint16) {
	cpu.reg.Y++
	cpu.flags.UpdateNZ(cpu.reg.Y)
}

// Jump to memory address
func (cpu *CPU) jmp(inst *Instruction, addr uint16) {
	cpu.reg.PC = addr
}

// load Accumulator
func (cpu *CPU) lda(inst *Instruction, addr uint16) {
	cpu.reg.A = cpu.load(inst, addr)
	cpu.flags.UpdateNZ(cpu.reg.A)
}

// load the X register
func (cpu *CPU) ldx(inst *Instruction, addr uint16) {
	cpu.reg.X = cpu.load(inst, addr)
	cpu.flags.UpdateNZ(cpu.reg.X)
}

// load the Y register
func (cpu *CPU) ldy(inst *Instruction, addr uint16) {
	cpu.reg.Y = cpu.load(inst, addr)
	cpu.flags.UpdateNZ(cpu.reg.Y)
}

// No-operation
func (cpu *CPU) nop(inst *Instruction, addr uint16) {
}

// Set Carry flag
func (cpu *CPU) sec(inst *Instruction, addr uint16) {
	cpu.flags.Set(Carry, true)
}

// Store Accumulator
func (cpu *CPU) sta(inst *Instruction, addr uint16) {
	cpu.store(inst, addr, cpu.reg.A)
}

// Store X register
func (cpu *CPU) stx(inst *Instruction, addr uint16) {
	cpu.store(inst, addr, cpu.reg.X)
}

// Store Y register
func (cpu *CPU) sty(inst *Instruction, addr uint16) {
	cpu.store(inst, addr, cpu.reg.Y)
}

// Transfer Accumulator to X register
func (cpu *CPU) tax(inst *Instruction, addr uint16) {
	cpu.reg.X = cpu.reg.A
	cpu.flags.UpdateNZ(cpu.reg.X)
}

// Transfer Accumulator to Y register
func (cpu *CPU) tay(inst *Instruction, addr uint16) {
	cpu.reg.Y = cpu.reg.A
	cpu.flags.UpdateNZ(cpu.reg.Y)
}

// Transfer X register to Accumulator
func (cpu *CPU) txa(inst *Instruction, addr uint16) {
	cpu.reg.A = cpu.reg.X
	cpu.flags.UpdateNZ(cpu.reg.A)
}

// Transfer Y register to the Accumulator
func (cpu *CPU) tya(inst *Instruction, addr uint16) {
	cpu.reg.A = cpu.reg.Y
	cpu.flags.UpdateNZ(cpu.reg.A)
}
