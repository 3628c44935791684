// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package host implements a machine monitor that embeds a single 6502 CPU
// and 64K of memory.
//
// Within the host it is possible to load binary images into memory, step
// and run the CPU, set execution and data breakpoints, dump and change the
// contents of memory, disassemble code, and display a digest of the machine
// state. Because the CPU never bounds its own execution, the host stops
// every run after a configurable number of instructions.
package host

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync/atomic"

	"github.com/beevik/cmd"
	"github.com/beevik/mini6502/cpu"
	"github.com/beevik/mini6502/disasm"
)

// ErrExit is returned by RunCommands when the quit command is executed.
var ErrExit = errors.New("exiting program")

type state byte

const (
	stateProcessingCommands state = iota
	stateRunning
	stateBreakpoint
	stateInterrupted
)

// A Host represents a fully emulated 6502 system with 64K of memory and a
// built-in debugger.
type Host struct {
	input       *bufio.Scanner
	output      *bufio.Writer
	interactive bool
	mem         *cpu.FlatMemory
	cpu         *cpu.CPU
	debugger    *cpu.Debugger
	lastCmd     *selection
	state       state
	interrupted atomic.Bool
	settings    *settings
}

// New creates a new 6502 host environment.
func New() *Host {
	h := &Host{
		state:    stateProcessingCommands,
		settings: newSettings(),
	}

	// Create the emulated CPU and memory.
	h.mem = cpu.NewFlatMemory()
	h.cpu = cpu.NewCPU(h.mem)

	// Create a CPU debugger and attach it to the CPU.
	h.debugger = cpu.NewDebugger(newDebugHandler(h))
	h.cpu.AttachDebugger(h.debugger)

	return h
}

// CPU returns the host's emulated CPU.
func (h *Host) CPU() *cpu.CPU {
	return h.cpu
}

// SetMaxSteps changes the number of instructions a single run command may
// execute before the host stops it. A value of 0 removes the limit.
func (h *Host) SetMaxSteps(n int) {
	h.settings.MaxSteps = n
}

// LoadFile loads a raw binary image into memory at the default load address
// and resets the CPU so that execution begins at the image's first byte.
func (h *Host) LoadFile(filename string) error {
	b, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	return h.loadImage(b, h.settings.LoadAddr)
}

// RunCommands accepts host commands from a reader and outputs the results
// to a writer. If the commands are interactive, a prompt is displayed while
// the host waits for the next command to be entered. RunCommands returns
// nil when the reader is exhausted and ErrExit when a quit command runs.
func (h *Host) RunCommands(r io.Reader, w io.Writer, interactive bool) error {
	h.input = bufio.NewScanner(r)
	h.output = bufio.NewWriter(w)
	h.interactive = interactive

	if interactive {
		h.println()
	}

	h.displayPC()

	for {
		h.prompt()

		line, err := h.getLine()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		var c selection
		line = strings.TrimSpace(line)
		if line != "" {
			n, args, err := cmds.Lookup(line)
			switch {
			case err == cmd.ErrNotFound:
				h.println("Command not found.")
				continue
			case err == cmd.ErrAmbiguous:
				h.println("Command is ambiguous.")
				continue
			case err != nil:
				h.printf("ERROR: %v.\n", err)
				continue
			}

			// A subtree name on its own lists the subtree's commands.
			if t, ok := n.(*cmd.Tree); ok {
				t.DisplayHelp(h.output)
				h.flush()
				continue
			}
			c = selection{cmd: n.(*cmd.Command), args: args}
		} else if h.lastCmd != nil {
			c = *h.lastCmd
		}

		if c.cmd == nil {
			continue
		}
		h.lastCmd = &c

		fn := c.cmd.Data.(handler)
		if err := fn(h, c); err != nil {
			return err
		}
	}
}

// Break interrupts a running CPU. It may be called from any goroutine.
func (h *Host) Break() {
	h.interrupted.Store(true)
}

func (h *Host) printf(format string, args ...any) {
	fmt.Fprintf(h.output, format, args...)
	h.flush()
}

func (h *Host) println(args ...any) {
	fmt.Fprintln(h.output, args...)
	h.flush()
}

func (h *Host) flush() {
	h.output.Flush()
}

func (h *Host) getLine() (string, error) {
	if h.input.Scan() {
		return h.input.Text(), nil
	}
	if h.input.Err() != nil {
		return "", h.input.Err()
	}
	return "", io.EOF
}

func (h *Host) prompt() {
	if h.interactive {
		h.printf("* ")
		h.flush()
	}
}

func (h *Host) displayPC() {
	if h.interactive {
		d, _ := h.disassemble(h.cpu.Registers().PC, true)
		h.println(d)
	}
}

func (h *Host) displayUsage(c selection) {
	if c.cmd.Usage != "" {
		h.printf("Usage: %s\n", c.cmd.Usage)
	} else {
		h.println("<no help text>")
	}
}

func (h *Host) cmdBreakpointList(c selection) error {
	h.println("Breakpoints:")
	for _, b := range h.debugger.GetBreakpoints() {
		var disabled string
		if b.Disabled {
			disabled = "(disabled)"
		}
		h.printf("   $%04X %s\n", b.Address, disabled)
	}
	return nil
}

func (h *Host) cmdBreakpointAdd(c selection) error {
	if len(c.args) < 1 {
		h.displayUsage(c)
		return nil
	}

	addr, err := h.parseAddr(c.args[0])
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}

	h.debugger.AddBreakpoint(addr)
	h.printf("Breakpoint added at $%04X.\n", addr)
	return nil
}

func (h *Host) cmdBreakpointRemove(c selection) error {
	if len(c.args) < 1 {
		h.displayUsage(c)
		return nil
	}

	addr, err := h.parseAddr(c.args[0])
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}

	if h.debugger.GetBreakpoint(addr) == nil {
		h.printf("No breakpoint was set on $%04X.\n", addr)
		return nil
	}

	h.debugger.RemoveBreakpoint(addr)
	h.printf("Breakpoint at $%04X removed.\n", addr)
	return nil
}

func (h *Host) cmdBreakpointEnable(c selection) error {
	return h.setBreakpointDisabled(c, false)
}

func (h *Host) cmdBreakpointDisable(c selection) error {
	return h.setBreakpointDisabled(c, true)
}

func (h *Host) setBreakpointDisabled(c selection, disabled bool) error {
	if len(c.args) < 1 {
		h.displayUsage(c)
		return nil
	}

	addr, err := h.parseAddr(c.args[0])
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}

	b := h.debugger.GetBreakpoint(addr)
	if b == nil {
		h.printf("No breakpoint was set on $%04X.\n", addr)
		return nil
	}

	b.Disabled = disabled
	if disabled {
		h.printf("Breakpoint at $%04X disabled.\n", addr)
	} else {
		h.printf("Breakpoint at $%04X enabled.\n", addr)
	}
	return nil
}

func (h *Host) cmdDataBreakpointList(c selection) error {
	h.println("Data breakpoints:")
	for _, b := range h.debugger.GetDataBreakpoints() {
		h.printf("   $%04X", b.Address)
		if b.Conditional {
			h.printf(" on value $%02X", b.Value)
		}
		if b.Disabled {
			h.printf(" (disabled)")
		}
		h.println()
	}
	return nil
}

func (h *Host) cmdDataBreakpointAdd(c selection) error {
	if len(c.args) < 1 {
		h.displayUsage(c)
		return nil
	}

	addr, err := h.parseAddr(c.args[0])
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}

	if len(c.args) > 1 {
		value, err := h.parseByte(c.args[1])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		h.debugger.AddConditionalDataBreakpoint(addr, value)
		h.printf("Conditional data breakpoint added at $%04X for value $%02X.\n", addr, value)
	} else {
		h.debugger.AddDataBreakpoint(addr)
		h.printf("Data breakpoint added at $%04X.\n", addr)
	}

	return nil
}

func (h *Host) cmdDataBreakpointRemove(c selection) error {
	if len(c.args) < 1 {
		h.displayUsage(c)
		return nil
	}

	addr, err := h.parseAddr(c.args[0])
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}

	if h.debugger.GetDataBreakpoint(addr) == nil {
		h.printf("No data breakpoint was set on $%04X.\n", addr)
		return nil
	}

	h.debugger.RemoveDataBreakpoint(addr)
	h.printf("Data breakpoint at $%04X removed.\n", addr)
	return nil
}

func (h *Host) cmdDataBreakpointEnable(c selection) error {
	return h.setDataBreakpointDisabled(c, false)
}

func (h *Host) cmdDataBreakpointDisable(c selection) error {
	return h.setDataBreakpointDisabled(c, true)
}

func (h *Host) setDataBreakpointDisabled(c selection, disabled bool) error {
	if len(c.args) < 1 {
		h.displayUsage(c)
		return nil
	}

	addr, err := h.parseAddr(c.args[0])
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}

	b := h.debugger.GetDataBreakpoint(addr)
	if b == nil {
		h.printf("No data breakpoint was set on $%04X.\n", addr)
		return nil
	}

	b.Disabled = disabled
	if disabled {
		h.printf("Data breakpoint at $%04X disabled.\n", addr)
	} else {
		h.printf("Data breakpoint at $%04X enabled.\n", addr)
	}
	return nil
}

func (h *Host) cmdDigest(c selection) error {
	h.println(h.cpu.Snapshot().String())
	return nil
}

func (h *Host) cmdDisassemble(c selection) error {
	var addr uint16
	if len(c.args) < 1 {
		addr = h.settings.NextDisasmAddr
	} else {
		switch c.args[0] {
		case "$":
			addr = h.settings.NextDisasmAddr
		case ".":
			addr = h.cpu.Registers().PC
		default:
			a, err := h.parseAddr(c.args[0])
			if err != nil {
				h.printf("%v\n", err)
				return nil
			}
			addr = a
		}
	}

	lines := h.settings.DisasmLines
	if len(c.args) > 1 {
		l, err := parseNumber(c.args[1], h.settings.HexMode, 0xffff)
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		lines = int(l)
	}

	for i := 0; i < lines; i++ {
		var d string
		d, addr = h.disassemble(addr, false)
		h.println(d)
	}

	h.settings.NextDisasmAddr = addr
	h.lastCmd.args = []string{"$", fmt.Sprintf("%d", lines)}
	return nil
}

func (h *Host) cmdHelp(c selection) error {
	if err := cmds.GetHelp(h.output, c.args); err != nil {
		h.printf("%v.\n", err)
	}
	h.flush()
	return nil
}

func (h *Host) cmdLoad(c selection) error {
	if len(c.args) < 1 {
		h.displayUsage(c)
		return nil
	}

	addr := h.settings.LoadAddr
	if len(c.args) >= 2 {
		a, err := h.parseAddr(c.args[1])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		addr = a
	}

	filename := c.args[0]
	b, err := os.ReadFile(filename)
	if err != nil {
		h.printf("Failed to open '%s': %v\n", filepath.Base(filename), err)
		return nil
	}

	if err := h.loadImage(b, addr); err != nil {
		h.printf("Failed to load '%s': %v\n", filepath.Base(filename), err)
		return nil
	}

	h.printf("Loaded '%s' to $%04X..$%04X\n", filepath.Base(filename), addr, int(addr)+len(b)-1)
	h.displayPC()
	return nil
}

func (h *Host) cmdMemoryDump(c selection) error {
	var addr uint16
	if len(c.args) < 1 {
		addr = h.settings.NextMemDumpAddr
	} else {
		switch c.args[0] {
		case "$":
			addr = h.settings.NextMemDumpAddr
		case ".":
			addr = h.cpu.Registers().PC
		default:
			a, err := h.parseAddr(c.args[0])
			if err != nil {
				h.printf("%v\n", err)
				return nil
			}
			addr = a
		}
	}

	bytes := uint16(h.settings.MemDumpBytes)
	if len(c.args) >= 2 {
		var err error
		bytes, err = h.parseAddr(c.args[1])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
	}

	h.dumpMemory(addr, bytes)

	h.settings.NextMemDumpAddr = addr + bytes
	h.lastCmd.args = []string{"$", fmt.Sprintf("%d", bytes)}
	return nil
}

func (h *Host) cmdMemorySet(c selection) error {
	if len(c.args) < 2 {
		h.displayUsage(c)
		return nil
	}

	addr, err := h.parseAddr(c.args[0])
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}

	b := make([]byte, 0, len(c.args)-1)
	for _, s := range c.args[1:] {
		v, err := h.parseByte(s)
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		b = append(b, v)
	}

	if err := h.mem.StoreBytes(addr, b); err != nil {
		h.printf("%v\n", err)
		return nil
	}

	h.dumpMemory(addr, uint16(len(b)))
	return nil
}

func (h *Host) cmdQuit(c selection) error {
	return ErrExit
}

func (h *Host) cmdRegister(c selection) error {
	if len(c.args) == 0 {
		d, _ := h.disassemble(h.cpu.Registers().PC, true)
		h.println(d)
		return nil
	}

	if len(c.args) < 2 {
		h.displayUsage(c)
		return nil
	}

	if strings.ToLower(c.args[0]) != "pc" {
		h.printf("Register '%s' may not be changed.\n", c.args[0])
		return nil
	}

	addr, err := h.parseAddr(c.args[1])
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}

	h.cpu.SetPC(addr)
	h.settings.NextDisasmAddr = addr
	h.printf("Register PC set to $%04X.\n", addr)
	return nil
}

func (h *Host) cmdReset(c selection) error {
	h.cpu.Reset()
	h.settings.NextDisasmAddr = h.cpu.Registers().PC
	h.println("CPU reset.")
	h.displayPC()
	return nil
}

func (h *Host) cmdRun(c selection) error {
	if len(c.args) > 0 {
		pc, err := h.parseAddr(c.args[0])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		h.cpu.SetPC(pc)
	}

	h.printf("Running from $%04X. Press ctrl-C to break.\n", h.cpu.Registers().PC)

	h.interrupted.Store(false)
	h.state = stateRunning
	limit := uint64(h.settings.MaxSteps)
	start := h.cpu.Steps()
	for h.state == stateRunning {
		h.step()
		if limit > 0 && h.cpu.Steps()-start >= limit && h.state == stateRunning {
			h.printf("Stopped after %d steps.\n", limit)
			break
		}
	}
	h.state = stateProcessingCommands

	h.displayStop()
	h.settings.NextDisasmAddr = h.cpu.Registers().PC
	return nil
}

func (h *Host) cmdSet(c selection) error {
	switch len(c.args) {
	case 0:
		h.println("Variables:")
		h.settings.Display(h.output)
		h.flush()

	case 1:
		h.displayUsage(c)

	default:
		key, value := strings.ToLower(c.args[0]), strings.Join(c.args[1:], " ")

		var v any
		var err error
		switch h.settings.Kind(key) {
		case reflect.Invalid:
			h.printf("Setting '%s' not found.\n", key)
			return nil
		case reflect.Bool:
			v, err = stringToBool(value)
		case reflect.Uint16:
			var n uint64
			n, err = parseNumber(value, h.settings.HexMode, 0xffff)
			v = uint16(n)
		default:
			var n uint64
			n, err = parseNumber(value, h.settings.HexMode, 1<<31-1)
			v = int(n)
		}
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}

		if err := h.settings.Set(key, v); err != nil {
			h.printf("Setting '%s' not found.\n", key)
			return nil
		}
		h.println("Setting updated.")
	}
	return nil
}

func (h *Host) cmdStep(c selection) error {
	count := 1
	if len(c.args) > 0 {
		n, err := parseNumber(c.args[0], h.settings.HexMode, 1<<31-1)
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		count = int(n)
	}

	h.interrupted.Store(false)
	h.state = stateRunning
	for i := 0; i < count && h.state == stateRunning; i++ {
		h.step()
		if h.interactive || count == 1 {
			d, _ := h.disassemble(h.cpu.Registers().PC, true)
			h.println(d)
		}
	}
	h.state = stateProcessingCommands

	if count > 1 && !h.interactive {
		d, _ := h.disassemble(h.cpu.Registers().PC, true)
		h.println(d)
	}
	h.displayStop()

	h.settings.NextDisasmAddr = h.cpu.Registers().PC
	return nil
}

// step executes a single instruction and updates the host state to reflect
// anything that should stop a run in progress.
func (h *Host) step() {
	switch h.cpu.Step() {
	case cpu.Halted, cpu.Faulted:
		h.state = stateProcessingCommands
	}
	if h.interrupted.Load() && h.state == stateRunning {
		h.state = stateInterrupted
	}
}

// displayStop reports why the CPU is no longer running, if it stopped for
// any reason other than a breakpoint or a completed step.
func (h *Host) displayStop() {
	switch h.cpu.State() {
	case cpu.Halted:
		h.printf("CPU halted at $%04X after %d steps.\n", h.cpu.LastPC(), h.cpu.Steps())
	case cpu.Faulted:
		h.printf("CPU faulted: %v.\n", h.cpu.Fault())
	default:
		if h.interrupted.Swap(false) {
			h.printf("Interrupted at $%04X.\n", h.cpu.Registers().PC)
		}
	}
}

func (h *Host) loadImage(b []byte, addr uint16) error {
	if addr == cpu.LoadAddress {
		return h.cpu.Load(b)
	}
	if err := h.mem.StoreBytes(addr, b); err != nil {
		return err
	}
	h.cpu.Reset()
	h.cpu.SetPC(addr)
	return nil
}

func (h *Host) parseAddr(s string) (uint16, error) {
	v, err := parseNumber(s, h.settings.HexMode, 0xffff)
	return uint16(v), err
}

func (h *Host) parseByte(s string) (byte, error) {
	v, err := parseNumber(s, h.settings.HexMode, 0xff)
	return byte(v), err
}

func (h *Host) disassemble(addr uint16, withRegs bool) (str string, next uint16) {
	var line string
	line, next = disasm.Disassemble(h.mem, addr)

	str = fmt.Sprintf("%04X-   %-8s    %-15s", addr, codeString(disasm.Bytes(h.mem, addr)), line)

	if withRegs {
		reg := h.cpu.Registers()
		str += fmt.Sprintf(" A=%02X X=%02X Y=%02X PS=[%s] SP=%02X PC=%04X S=%d",
			reg.A, reg.X, reg.Y, h.cpu.Status(), reg.SP, reg.PC, h.cpu.Steps())
	}

	return str, next
}

func (h *Host) dumpMemory(addr0, bytes uint16) {
	if bytes == 0 {
		return
	}

	addr1 := addr0 + bytes - 1
	if addr1 < addr0 {
		addr1 = 0xffff
	}

	buf := []byte("    -" + strings.Repeat(" ", 35))

	// Don't align display for short dumps.
	if addr1-addr0 < 8 {
		addrToBuf(addr0, buf[0:4])
		for a, c1, c2 := uint32(addr0), 6, 32; a <= uint32(addr1); a, c1, c2 = a+1, c1+3, c2+1 {
			m := h.mem.LoadByte(uint16(a))
			byteToBuf(m, buf[c1:c1+2])
			buf[c2] = toPrintableChar(m)
		}
		h.println(strings.TrimRight(string(buf), " "))
		return
	}

	// Align addr0 and addr1 to 8-byte boundaries.
	start := uint32(addr0) & 0xfff8
	stop := (uint32(addr1) + 8) & 0xffff8
	if stop > 0x10000 {
		stop = 0x10000
	}

	a := start
	for r := start; r < stop; r += 8 {
		addrToBuf(uint16(a), buf[0:4])
		for c1, c2 := 6, 32; c1 < 29; c1, c2, a = c1+3, c2+1, a+1 {
			if a >= uint32(addr0) && a <= uint32(addr1) {
				m := h.mem.LoadByte(uint16(a))
				byteToBuf(m, buf[c1:c1+2])
				buf[c2] = toPrintableChar(m)
			} else {
				buf[c1] = ' '
				buf[c1+1] = ' '
				buf[c2] = ' '
			}
		}
		h.println(strings.TrimRight(string(buf), " "))
	}
}
