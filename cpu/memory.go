// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpu

import (
	"errors"
	"fmt"

	"github.com/cespare/xxhash"
)

// Errors
var (
	ErrOutOfBounds = errors.New("memory access out of bounds")
)

// MemorySize is the number of addressable bytes seen by the CPU.
const MemorySize = 64 * 1024

// The Memory interface presents an interface to the CPU through which all
// memory accesses occur.
type Memory interface {
	// LoadByte loads a single byte from the address and returns it.
	LoadByte(addr uint16) byte

	// LoadBytes loads len(b) bytes starting at the address into the buffer
	// 'b'. It fails with ErrOutOfBounds if the range runs past the end of the
	// address space.
	LoadBytes(addr uint16, b []byte) error

	// LoadAddress loads a little-endian 16-bit value from the requested
	// address. The high byte is read from addr+1, wrapping to $0000.
	LoadAddress(addr uint16) uint16

	// StoreByte stores a byte to the requested address.
	StoreByte(addr uint16, v byte)

	// StoreBytes stores multiple bytes starting at the requested address. It
	// fails with ErrOutOfBounds, storing nothing, if the bytes would not fit.
	StoreBytes(addr uint16, b []byte) error

	// StoreAddress stores a little-endian 16-bit value 'v' to the requested
	// address.
	StoreAddress(addr uint16, v uint16)
}

// FlatMemory represents an entire 16-bit address space as a singular
// 64K buffer.
type FlatMemory struct {
	b [MemorySize]byte
}

// NewFlatMemory creates a new zeroed 16-bit memory space.
func NewFlatMemory() *FlatMemory {
	return &FlatMemory{}
}

// LoadByte loads a single byte from the address and returns it.
func (m *FlatMemory) LoadByte(addr uint16) byte {
	return m.b[addr]
}

// LoadBytes loads multiple bytes from the address into 'b'.
func (m *FlatMemory) LoadBytes(addr uint16, b []byte) error {
	if err := checkSpan(addr, len(b)); err != nil {
		return err
	}
	copy(b, m.b[addr:])
	return nil
}

// LoadAddress loads a 16-bit address value from the requested address and
// returns it.
func (m *FlatMemory) LoadAddress(addr uint16) uint16 {
	return uint16(m.b[addr]) | uint16(m.b[addr+1])<<8
}

// StoreByte stores a byte at the requested address.
func (m *FlatMemory) StoreByte(addr uint16, v byte) {
	m.b[addr] = v
}

// StoreBytes stores multiple bytes to the requested address.
func (m *FlatMemory) StoreBytes(addr uint16, b []byte) error {
	if err := checkSpan(addr, len(b)); err != nil {
		return err
	}
	copy(m.b[addr:], b)
	return nil
}

// StoreAddress stores a 16-bit address value to the requested address.
func (m *FlatMemory) StoreAddress(addr uint16, v uint16) {
	m.b[addr] = byte(v)
	m.b[addr+1] = byte(v >> 8)
}

// Digest returns a 64-bit hash of the entire memory image. Two memories with
// identical contents always produce the same digest.
func (m *FlatMemory) Digest() uint64 {
	return xxhash.Sum64(m.b[:])
}

func checkSpan(addr uint16, n int) error {
	if int(addr)+n > MemorySize {
		return fmt.Errorf("%w: $%04X+%d", ErrOutOfBounds, addr, n)
	}
	return nil
}

// Offset a zero-page address 'addr' by 'offset'. If the address
// exceeds the zero-page address space, wrap it.
func offsetZeroPage(addr byte, offset byte) uint16 {
	return uint16(addr + offset)
}

// Load a 16-bit pointer stored in the zero page. The high byte of a pointer
// at $FF comes from $00.
func loadZeroPageAddress(m Memory, zp byte) uint16 {
	lo := m.LoadByte(uint16(zp))
	hi := m.LoadByte(uint16(zp + 1))
	return uint16(lo) | uint16(hi)<<8
}
