// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpu

import (
	"fmt"

	"github.com/cespare/xxhash"
)

// A Snapshot is a read-only copy of a CPU's observable state, suitable for
// display by a debugger or comparison in tests.
type Snapshot struct {
	Reg       Registers
	Flags     Status
	State     State
	Fault     error
	Steps     uint64
	MemDigest uint64 // xxhash of the full 64K memory image
}

// Snapshot captures the current state of the CPU and its memory.
func (cpu *CPU) Snapshot() Snapshot {
	return Snapshot{
		Reg:       cpu.reg,
		Flags:     cpu.flags,
		State:     cpu.state,
		Fault:     cpu.Fault(),
		Steps:     cpu.steps,
		MemDigest: Digest(cpu.Mem),
	}
}

func (s Snapshot) String() string {
	str := fmt.Sprintf("A=$%02X X=$%02X Y=$%02X PC=$%04X SP=$%02X PS=[%s] %s steps=%d mem=%016x",
		s.Reg.A, s.Reg.X, s.Reg.Y, s.Reg.PC, s.Reg.SP, s.Flags, s.State, s.Steps, s.MemDigest)
	if s.Fault != nil {
		str += " (" + s.Fault.Error() + ")"
	}
	return str
}

// Digest returns a 64-bit hash of a memory's entire contents.
func Digest(m Memory) uint64 {
	if d, ok := m.(interface{ Digest() uint64 }); ok {
		return d.Digest()
	}
	b := make([]byte, MemorySize)
	_ = m.LoadBytes(0, b)
	return xxhash.Sum64(b)
}
