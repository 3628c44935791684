// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpu

// Registers contains the state of all 6502 registers other than the
// processor status flags.
type Registers struct {
	PC uint16 // program counter
	SP byte   // stack pointer ($100 + SP = stack memory location)
	A  byte   // accumulator
	X  byte   // X indexing register
	Y  byte   // Y indexing register
}

// Init initializes all registers to zero.
func (r *Registers) Init() {
	*r = Registers{}
}

// Status holds the processor status flags. Each flag occupies the bit
// position it has in the 6502's processor status byte.
type Status byte

// Bits assigned to the processor status byte
const (
	Carry            Status = 1 << 0 // C
	Zero             Status = 1 << 1 // Z
	InterruptDisable Status = 1 << 2 // I
	Decimal          Status = 1 << 3 // D
	Break            Status = 1 << 4 // B
	Reserved         Status = 1 << 5 // unused
	Overflow         Status = 1 << 6 // V
	Negative         Status = 1 << 7 // N
)

// IsSet returns true if every flag in 'f' is set.
func (s Status) IsSet(f Status) bool {
	return s&f == f
}

// Set turns the flags in 'f' on or off.
func (s *Status) Set(f Status, on bool) {
	if on {
		*s |= f
	} else {
		*s &^= f
	}
}

// UpdateNZ updates the Zero and Negative flags based on the value of 'v'.
func (s *Status) UpdateNZ(v byte) {
	s.Set(Zero, v == 0)
	s.Set(Negative, (v&0x80) != 0)
}

// String returns the flags in "NV-BDIZC" order, using an upper-case letter
// for a set flag and a lower-case letter for a clear one.
func (s Status) String() string {
	const on, off = "NV-BDIZC", "nv-bdizc"
	var b [8]byte
	for i := 0; i < 8; i++ {
		bit := Status(1 << (7 - i))
		if s&bit != 0 {
			b[i] = on[i]
		} else {
			b[i] = off[i]
		}
	}
	return string(b[:])
}

func boolToUint32(v bool) uint32 {
	if v {
		return 1
	}
	return 0
}
