// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpu

import "errors"

// Errors
var (
	ErrMemoryOutOfBounds = errors.New("memory access out of bounds")
)

// The Memory interface presents an interface to the CPU through which all
// memory accesses occur.
type Memory interface {
	// LoadByte loads a single byte from the address and returns it.
	LoadByte(addr uint16) byte

	// LoadBytes loads multiple bytes from the address and stores them into
	// the buffer 'b'.
	LoadBytes(addr uint16, b []byte)

	// LoadAddress loads a 16-bit address value from the requested address and
	// returns it.
	LoadAddress(addr uint16) uint16

	// StoreByte stores a byte to the requested address.
	StoreByte(addr uint16, v byte)

	// StoreBytes stores multiple bytes to the requested address.
	StoreBytes(addr uint16, b []byte)

	// StoreAddress stores a 16-bit address 'v' to the requested address.
	StoreAddress(addr uint16, v uint16)
}

// FlatMemory represents an entire 16-bit address space as a singular
// 64K buffer, with no peripheral windows. Use Bus instead when
// memory-mapped peripherals need to claim part of the address space.
type FlatMemory struct {
	b [64 * 1024]byte
}

// NewFlatMemory creates a new 16-bit memory space.
func NewFlatMemory() *FlatMemory {
	return &FlatMemory{}
}

// LoadByte loads a single byte from the address and returns it.
func (m *FlatMemory) LoadByte(addr uint16) byte {
	return m.b[addr]
}

// LoadBytes loads multiple bytes from the address and returns them.
func (m *FlatMemory) LoadBytes(addr uint16, b []byte) {
	if int(addr)+len(b) <= len(m.b) {
		copy(b, m.b[addr:])
	} else {
		r0 := len(m.b) - int(addr)
		r1 := len(b) - r0
		copy(b, m.b[addr:])
		copy(b[r0:], make([]byte, r1))
	}
}

// LoadAddress loads a 16-bit address value from the requested address and
// returns it.
//
// When the address spans 2 pages (i.e., address ends in 0xff), the high
// byte of the loaded address comes from a page-wrapped address. For
// example, LoadAddress on $12FF reads the low byte from $12FF and the
// high byte from $1200. This mimics the documented page-boundary quirk
// of NMOS indirect addressing.
func (m *FlatMemory) LoadAddress(addr uint16) uint16 {
	if (addr & 0xff) == 0xff {
		return uint16(m.b[addr]) | uint16(m.b[addr-0xff])<<8
	}
	return uint16(m.b[addr]) | uint16(m.b[addr+1])<<8
}

// StoreByte stores a byte at the requested address.
func (m *FlatMemory) StoreByte(addr uint16, v byte) {
	m.b[addr] = v
}

// StoreBytes stores multiple bytes to the requested address.
func (m *FlatMemory) StoreBytes(addr uint16, b []byte) {
	copy(m.b[addr:], b)
}

// StoreAddress stores a 16-bit address value to the requested address,
// reproducing the same page-wrap quirk as LoadAddress.
func (m *FlatMemory) StoreAddress(addr uint16, v uint16) {
	m.b[addr] = byte(v & 0xff)
	if (addr & 0xff) == 0xff {
		m.b[addr-0xff] = byte(v >> 8)
	} else {
		m.b[addr+1] = byte(v >> 8)
	}
}

// windowSize is the fixed width of a peripheral's claimed address window.
const windowSize = 0x100

// A Peripheral is a memory-mapped device that may claim a 256-byte window
// of the 16-bit address space. The CPU does not interpret a peripheral's
// internal state; it only routes reads and writes to it.
type Peripheral interface {
	// Name identifies the peripheral, used in diagnostics and in
	// PeripheralFault messages.
	Name() string

	// Start returns the first address of the peripheral's claimed window.
	// The window spans [Start(), Start()+0xff].
	Start() uint16

	// Read returns the byte at the given offset within the peripheral's
	// window.
	Read(offset uint8) uint8

	// Write stores a byte at the given offset within the peripheral's
	// window.
	Write(offset uint8, v uint8)
}

// A PeripheralFault is the value a Peripheral may panic with to report an
// unrecoverable error from Read or Write. CPU.Step recovers it and turns
// it into a halt, per the "peripheral fault" error kind.
type PeripheralFault struct {
	Peripheral string
	Err        error
}

func (f *PeripheralFault) Error() string {
	return f.Peripheral + ": " + f.Err.Error()
}

// Bus is a Memory implementation that multiplexes a flat 64K RAM backing
// store with zero or more registered peripherals. Resolution order on
// every access: the first registered peripheral whose window covers the
// address wins; otherwise the access falls through to RAM. Peripheral and
// RAM never both answer the same address.
type Bus struct {
	ram         *FlatMemory
	peripherals []Peripheral
}

// NewBus creates a Bus backed by a fresh 64K RAM array and no peripherals.
func NewBus() *Bus {
	return &Bus{ram: NewFlatMemory()}
}

// RegisterPeripheral attaches a peripheral to the bus. If multiple
// peripherals claim overlapping windows, the one registered first wins
// for any address in the overlap; later registrations simply never see
// those addresses.
func (b *Bus) RegisterPeripheral(p Peripheral) {
	b.peripherals = append(b.peripherals, p)
}

// Peripherals returns the peripherals currently registered on the bus, in
// registration order.
func (b *Bus) Peripherals() []Peripheral {
	return b.peripherals
}

// find returns the peripheral covering addr, and the offset within its
// window, or (nil, 0) if no peripheral covers addr.
func (b *Bus) find(addr uint16) (Peripheral, uint8) {
	for _, p := range b.peripherals {
		start := p.Start()
		if addr >= start && int(addr) <= int(start)+windowSize-1 {
			return p, uint8(addr - start)
		}
	}
	return nil, 0
}

// LoadByte loads a single byte, routing through a covering peripheral
// first and falling back to RAM.
func (b *Bus) LoadByte(addr uint16) byte {
	if p, offset := b.find(addr); p != nil {
		return p.Read(offset)
	}
	return b.ram.LoadByte(addr)
}

// LoadBytes loads multiple bytes one at a time through LoadByte, so that
// peripheral windows crossed by a multi-byte load are honored correctly.
func (b *Bus) LoadBytes(addr uint16, buf []byte) {
	for i := range buf {
		buf[i] = b.LoadByte(addr + uint16(i))
	}
}

// LoadAddress loads a little-endian 16-bit address, reproducing the same
// page-wrap quirk as FlatMemory.LoadAddress.
func (b *Bus) LoadAddress(addr uint16) uint16 {
	if (addr & 0xff) == 0xff {
		return uint16(b.LoadByte(addr)) | uint16(b.LoadByte(addr-0xff))<<8
	}
	return uint16(b.LoadByte(addr)) | uint16(b.LoadByte(addr+1))<<8
}

// StoreByte stores a byte, routing through a covering peripheral first
// and falling back to RAM.
func (b *Bus) StoreByte(addr uint16, v byte) {
	if p, offset := b.find(addr); p != nil {
		p.Write(offset, v)
		return
	}
	b.ram.StoreByte(addr, v)
}

// StoreBytes stores multiple bytes one at a time through StoreByte.
func (b *Bus) StoreBytes(addr uint16, buf []byte) {
	for i, v := range buf {
		b.StoreByte(addr+uint16(i), v)
	}
}

// StoreAddress stores a little-endian 16-bit address, reproducing the same
// page-wrap quirk as FlatMemory.StoreAddress.
func (b *Bus) StoreAddress(addr uint16, v uint16) {
	b.StoreByte(addr, byte(v&0xff))
	if (addr & 0xff) == 0xff {
		b.StoreByte(addr-0xff, byte(v>>8))
	} else {
		b.StoreByte(addr+1, byte(v>>8))
	}
}

// Return the offset address 'addr' + 'offset'. If the offset
// crossed a page boundary, return 'pageCrossed' as true.
func offsetAddress(addr uint16, offset byte) (newAddr uint16, pageCrossed bool) {
	newAddr = addr + uint16(offset)
	pageCrossed = (newAddr & 0xff00) != (addr & 0xff00)
	return newAddr, pageCrossed
}

// Offset a zero-page address 'addr' by 'offset'. If the address
// exceeds the zero-page address space, wrap it.
func offsetZeroPage(addr uint16, offset byte) uint16 {
	addr += uint16(offset)
	if addr >= 0x100 {
		addr -= 0x100
	}
	return addr
}

// Convert a 1- or 2-byte operand into an address.
func operandToAddress(operand []byte) uint16 {
	switch {
	case len(operand) == 1:
		return uint16(operand[0])
	case len(operand) == 2:
		return uint16(operand[0]) | uint16(operand[1])<<8
	}
	return 0
}

// Given a 1-byte stack pointer register, return the stack
// corresponding memory address.
func stackAddress(offset byte) uint16 {
	return uint16(0x100) + uint16(offset)
}
