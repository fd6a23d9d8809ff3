// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cpu implements an instruction-level emulator of the MOS
// Technology 6502 (and its CMOS successor, the 65C02): the register
// file, processor status flags, the twelve addressing modes, the
// 256-entry opcode decode table, the mnemonic semantics, and reset/IRQ/NMI
// interrupt sequencing. It advances one instruction per Step call; it
// does not model cycle-accurate timing.
package cpu

import "errors"

// Architecture selects the CPU chip: 6502 or 65C02. CMOS adds a small set
// of extra opcodes (BRA, PHX/PHY/PLX/PLY, STZ, TRB/TSB) and gives
// previously-illegal NMOS opcodes defined (if useless) behavior instead of
// halting.
type Architecture byte

const (
	// NMOS is the original MOS 6502.
	NMOS Architecture = iota

	// CMOS is the 65C02.
	CMOS
)

// ErrUnknownOpcode is returned by Step when the byte at PC has no defined
// instruction mapping for the CPU's architecture. The CPU halts cleanly:
// PC and memory are left exactly as they were before the fetch.
var ErrUnknownOpcode = errors.New("unknown opcode")

// BrkHandler is implemented by types that wish to be notified when a BRK
// instruction is about to be executed, in place of the normal
// interrupt-frame push.
type BrkHandler interface {
	OnBrk(cpu *CPU)
}

// CPU represents a single 6502 (or 65C02) CPU bound to a Memory
// implementation. All register and memory mutation happens only as a
// result of calling Step, Reset, or the AssertIRQ/AssertNMI lines.
type CPU struct {
	Arch        Architecture    // CPU architecture
	Reg         Registers       // CPU registers
	Mem         Memory          // assigned memory
	Cycles      uint64          // total executed CPU cycles (statistic, not a scheduler)
	LastPC      uint16          // PC of the most recently fetched instruction
	InstSet     *InstructionSet // instruction set used by the CPU
	pendingIRQ  bool
	pendingNMI  bool
	pageCrossed bool
	deltaCycles int8
	debugger    *Debugger
	brkHandler  BrkHandler
	storeByte   func(cpu *CPU, addr uint16, v byte)
}

// Interrupt vectors
const (
	vectorNMI   = 0xfffa
	vectorReset = 0xfffc
	vectorIRQ   = 0xfffe
	vectorBRK   = 0xfffe
)

// resetSP is the stack pointer value left by Reset, matching the value
// real 6502 hardware leaves after the three implicit pushes of its reset
// sequence decrement SP without actually writing to the (still-unmapped)
// bus.
const resetSP = 0xfd

// NewCPU creates an emulated CPU bound to the specified memory, with all
// registers zeroed. Call Reset before stepping it, to load PC from the
// reset vector and put SP into its defined post-reset state.
func NewCPU(arch Architecture, m Memory) *CPU {
	c := &CPU{
		Arch:      arch,
		Mem:       m,
		InstSet:   GetInstructionSet(arch),
		storeByte: (*CPU).storeByteNormal,
	}
	c.Reg.Init()
	return c
}

// Reset performs the CPU's power-on/reset sequence: PC is loaded from the
// reset vector at $FFFC/$FFFD, SP is set to its defined post-reset value,
// and PSR is set with the interrupt-disable and reserved bits on.
func (cpu *CPU) Reset() {
	cpu.Reg.SP = resetSP
	cpu.Reg.RestorePS(InterruptDisableBit | ReservedBit)
	cpu.Reg.PC = cpu.Mem.LoadAddress(vectorReset)
}

// SetPC updates the CPU program counter to 'addr'.
func (cpu *CPU) SetPC(addr uint16) {
	cpu.Reg.PC = addr
}

// AssertIRQ raises the maskable interrupt request line. The request is
// serviced at the next instruction boundary if the interrupt-disable flag
// is clear, at which point the core clears the line.
func (cpu *CPU) AssertIRQ() {
	cpu.pendingIRQ = true
}

// ClearIRQ lowers the maskable interrupt request line without servicing
// it, for a peripheral that wants to withdraw a request it already
// asserted.
func (cpu *CPU) ClearIRQ() {
	cpu.pendingIRQ = false
}

// AssertNMI raises the non-maskable interrupt line. It is serviced at the
// next instruction boundary regardless of the interrupt-disable flag, and
// takes priority over a simultaneously pending IRQ.
func (cpu *CPU) AssertNMI() {
	cpu.pendingNMI = true
}

// GetInstruction returns the instruction at the requested address.
func (cpu *CPU) GetInstruction(addr uint16) *Instruction {
	opcode := cpu.Mem.LoadByte(addr)
	return cpu.InstSet.Lookup(opcode)
}

// NextAddr returns the address of the instruction following the
// instruction at addr.
func (cpu *CPU) NextAddr(addr uint16) uint16 {
	opcode := cpu.Mem.LoadByte(addr)
	inst := cpu.InstSet.Lookup(opcode)
	return addr + uint16(inst.Length)
}

// Step advances the CPU by one instruction, first servicing any pending
// interrupt line. It returns ErrUnknownOpcode if the opcode at PC is
// undefined for the CPU's architecture; the CPU halts without mutating
// PC, registers, or memory in that case. A panic raised by a peripheral's
// Read/Write (a *PeripheralFault) is recovered and returned as an error
// the same way.
func (cpu *CPU) Step() (err error) {
	defer func() {
		if r := recover(); r != nil {
			if fault, ok := r.(*PeripheralFault); ok {
				err = fault
				return
			}
			panic(r)
		}
	}()

	if cpu.pendingNMI {
		cpu.pendingNMI = false
		cpu.handleInterrupt(false, vectorNMI)
		return nil
	}
	if cpu.pendingIRQ && !cpu.Reg.InterruptDisable {
		cpu.pendingIRQ = false
		cpu.handleInterrupt(false, vectorIRQ)
		return nil
	}

	opcode := cpu.Mem.LoadByte(cpu.Reg.PC)
	inst := cpu.InstSet.Lookup(opcode)
	if inst.fn == nil {
		return ErrUnknownOpcode
	}

	if inst.Opcode == 0x00 && cpu.brkHandler != nil {
		cpu.brkHandler.OnBrk(cpu)
		return nil
	}

	var buf [2]byte
	operand := buf[:inst.Length-1]
	cpu.Mem.LoadBytes(cpu.Reg.PC+1, operand)
	cpu.LastPC = cpu.Reg.PC
	cpu.Reg.IR = opcode
	cpu.Reg.PC += uint16(inst.Length)

	cpu.pageCrossed = false
	cpu.deltaCycles = 0
	inst.fn(cpu, inst, operand)

	cpu.Cycles += uint64(int8(inst.Cycles) + cpu.deltaCycles)
	if cpu.pageCrossed {
		cpu.Cycles += uint64(inst.BPCycles)
	}

	if cpu.debugger != nil {
		cpu.debugger.onUpdatePC(cpu, cpu.Reg.PC)
	}
	return nil
}

// AttachBrkHandler attaches a handler called whenever the BRK instruction
// is executed, instead of the normal BRK interrupt-frame push.
func (cpu *CPU) AttachBrkHandler(handler BrkHandler) {
	cpu.brkHandler = handler
}

// AttachDebugger attaches a debugger to the CPU, which receives
// notifications whenever the CPU executes an instruction or stores a
// byte to memory.
func (cpu *CPU) AttachDebugger(debugger *Debugger) {
	cpu.debugger = debugger
	cpu.storeByte = (*CPU).storeByteDebugger
}

// DetachDebugger detaches the currently attached debugger from the CPU.
func (cpu *CPU) DetachDebugger() {
	cpu.debugger = nil
	cpu.storeByte = (*CPU).storeByteNormal
}

// load a byte value using the requested addressing mode.
func (cpu *CPU) load(mode Mode, operand []byte) byte {
	switch mode {
	case IMM:
		return operand[0]
	case ZPG:
		zpaddr := operandToAddress(operand)
		return cpu.Mem.LoadByte(zpaddr)
	case ZPX:
		zpaddr := offsetZeroPage(operandToAddress(operand), cpu.Reg.X)
		return cpu.Mem.LoadByte(zpaddr)
	case ZPY:
		zpaddr := offsetZeroPage(operandToAddress(operand), cpu.Reg.Y)
		return cpu.Mem.LoadByte(zpaddr)
	case ABS:
		return cpu.Mem.LoadByte(operandToAddress(operand))
	case ABX:
		addr, crossed := offsetAddress(operandToAddress(operand), cpu.Reg.X)
		cpu.pageCrossed = crossed
		return cpu.Mem.LoadByte(addr)
	case ABY:
		addr, crossed := offsetAddress(operandToAddress(operand), cpu.Reg.Y)
		cpu.pageCrossed = crossed
		return cpu.Mem.LoadByte(addr)
	case IDX:
		zpaddr := offsetZeroPage(operandToAddress(operand), cpu.Reg.X)
		addr := cpu.Mem.LoadAddress(zpaddr)
		return cpu.Mem.LoadByte(addr)
	case IDY:
		zpaddr := operandToAddress(operand)
		base := cpu.Mem.LoadAddress(zpaddr)
		addr, crossed := offsetAddress(base, cpu.Reg.Y)
		cpu.pageCrossed = crossed
		return cpu.Mem.LoadByte(addr)
	case IND:
		addr := cpu.Mem.LoadAddress(operandToAddress(operand))
		return cpu.Mem.LoadByte(addr)
	case ACC:
		return cpu.Reg.A
	default:
		panic("invalid addressing mode")
	}
}

// loadAddress loads a 16-bit address using the requested addressing mode.
// Used only by JMP and JSR.
func (cpu *CPU) loadAddress(mode Mode, operand []byte) uint16 {
	switch mode {
	case ABS:
		return operandToAddress(operand)
	case IND:
		return cpu.Mem.LoadAddress(operandToAddress(operand))
	case ABX:
		addr := operandToAddress(operand) + uint16(cpu.Reg.X)
		return uint16(cpu.Mem.LoadByte(addr)) | uint16(cpu.Mem.LoadByte(addr+1))<<8
	default:
		panic("invalid addressing mode")
	}
}

// store a byte value using the requested addressing mode.
func (cpu *CPU) store(mode Mode, operand []byte, v byte) {
	switch mode {
	case ZPG:
		cpu.storeByte(cpu, operandToAddress(operand), v)
	case ZPX:
		zpaddr := offsetZeroPage(operandToAddress(operand), cpu.Reg.X)
		cpu.storeByte(cpu, zpaddr, v)
	case ZPY:
		zpaddr := offsetZeroPage(operandToAddress(operand), cpu.Reg.Y)
		cpu.storeByte(cpu, zpaddr, v)
	case ABS:
		cpu.storeByte(cpu, operandToAddress(operand), v)
	case ABX:
		addr, crossed := offsetAddress(operandToAddress(operand), cpu.Reg.X)
		cpu.pageCrossed = crossed
		cpu.storeByte(cpu, addr, v)
	case ABY:
		addr, crossed := offsetAddress(operandToAddress(operand), cpu.Reg.Y)
		cpu.pageCrossed = crossed
		cpu.storeByte(cpu, addr, v)
	case IDX:
		zpaddr := offsetZeroPage(operandToAddress(operand), cpu.Reg.X)
		addr := cpu.Mem.LoadAddress(zpaddr)
		cpu.storeByte(cpu, addr, v)
	case IDY:
		base := cpu.Mem.LoadAddress(operandToAddress(operand))
		addr, crossed := offsetAddress(base, cpu.Reg.Y)
		cpu.pageCrossed = crossed
		cpu.storeByte(cpu, addr, v)
	case IND:
		addr := cpu.Mem.LoadAddress(operandToAddress(operand))
		cpu.storeByte(cpu, addr, v)
	case ACC:
		cpu.Reg.A = v
	default:
		panic("invalid addressing mode")
	}
}

// branch executes a relative branch. PC has already been advanced past
// the 2-byte branch instruction by Step; this adds the signed
// displacement on top.
func (cpu *CPU) branch(operand []byte) {
	offset := operandToAddress(operand)
	oldPC := cpu.Reg.PC
	if offset < 0x80 {
		cpu.Reg.PC += uint16(offset)
	} else {
		cpu.Reg.PC -= uint16(0x100 - offset)
	}
	cpu.deltaCycles++
	if (cpu.Reg.PC^oldPC)&0xff00 != 0 {
		cpu.deltaCycles++
	}
}

func (cpu *CPU) storeByteNormal(addr uint16, v byte) {
	cpu.Mem.StoreByte(addr, v)
}

func (cpu *CPU) storeByteDebugger(addr uint16, v byte) {
	cpu.debugger.onDataStore(cpu, addr, v)
	cpu.Mem.StoreByte(addr, v)
}

func (cpu *CPU) push(v byte) {
	cpu.storeByte(cpu, stackAddress(cpu.Reg.SP), v)
	cpu.Reg.SP--
}

func (cpu *CPU) pushAddress(addr uint16) {
	cpu.push(byte(addr >> 8))
	cpu.push(byte(addr))
}

func (cpu *CPU) pop() byte {
	cpu.Reg.SP++
	return cpu.Mem.LoadByte(stackAddress(cpu.Reg.SP))
}

func (cpu *CPU) popAddress() uint16 {
	lo := cpu.pop()
	hi := cpu.pop()
	return uint16(lo) | uint16(hi)<<8
}

func (cpu *CPU) updateNZ(v byte) {
	cpu.Reg.Zero = v == 0
	cpu.Reg.Sign = (v & 0x80) != 0
}

// handleInterrupt pushes PC and PSR onto the stack, sets the
// interrupt-disable flag, and vectors PC through addr. It is used for
// NMI, IRQ and BRK entry alike; brk controls whether the pushed PSR has
// the break bit set.
func (cpu *CPU) handleInterrupt(brk bool, addr uint16) {
	cpu.pushAddress(cpu.Reg.PC)
	cpu.push(cpu.Reg.SavePS(brk))

	cpu.Reg.InterruptDisable = true
	if cpu.Arch == CMOS {
		cpu.Reg.Decimal = false
	}

	cpu.Reg.PC = cpu.Mem.LoadAddress(addr)
}

// Add with carry (CMOS)
func (cpu *CPU) adcc(inst *Instruction, operand []byte) {
	acc := uint32(cpu.Reg.A)
	add := uint32(cpu.load(inst.Mode, operand))
	carry := boolToUint32(cpu.Reg.Carry)
	var v uint32

	cpu.Reg.Overflow = ((acc ^ add) & 0x80) == 0

	if cpu.Reg.Decimal {
		cpu.deltaCycles++

		lo := (acc & 0x0f) + (add & 0x0f) + carry
		var carrylo uint32
		if lo >= 0x0a {
			carrylo = 0x10
			lo -= 0xa
		}
		hi := (acc & 0xf0) + (add & 0xf0) + carrylo
		if hi >= 0xa0 {
			cpu.Reg.Carry = true
			if hi >= 0x180 {
				cpu.Reg.Overflow = false
			}
			hi -= 0xa0
		} else {
			cpu.Reg.Carry = false
			if hi < 0x80 {
				cpu.Reg.Overflow = false
			}
		}
		v = hi | lo
	} else {
		v = acc + add + carry
		if v >= 0x100 {
			cpu.Reg.Carry = true
			if v >= 0x180 {
				cpu.Reg.Overflow = false
			}
		} else {
			cpu.Reg.Carry = false
			if v < 0x80 {
				cpu.Reg.Overflow = false
			}
		}
	}

	cpu.Reg.A = byte(v)
	cpu.updateNZ(cpu.Reg.A)
}

// Add with carry (NMOS)
func (cpu *CPU) adcn(inst *Instruction, operand []byte) {
	acc := uint32(cpu.Reg.A)
	add := uint32(cpu.load(inst.Mode, operand))
	carry := boolToUint32(cpu.Reg.Carry)
	var v uint32

	if cpu.Reg.Decimal {
		lo := (acc & 0x0f) + (add & 0x0f) + carry
		var carrylo uint32
		if lo >= 0x0a {
			carrylo = 0x10
			lo -= 0x0a
		}
		hi := (acc & 0xf0) + (add & 0xf0) + carrylo
		if hi >= 0xa0 {
			cpu.Reg.Carry = true
			hi -= 0xa0
		} else {
			cpu.Reg.Carry = false
		}
		v = hi | lo
		cpu.Reg.Overflow = ((acc^v)&0x80) != 0 && ((acc^add)&0x80) == 0
	} else {
		v = acc + add + carry
		cpu.Reg.Carry = v >= 0x100
		cpu.Reg.Overflow = ((acc & 0x80) == (add & 0x80)) && ((acc & 0x80) != (v & 0x80))
	}

	cpu.Reg.A = byte(v)
	cpu.updateNZ(cpu.Reg.A)
}

func (cpu *CPU) and(inst *Instruction, operand []byte) {
	cpu.Reg.A &= cpu.load(inst.Mode, operand)
	cpu.updateNZ(cpu.Reg.A)
}

func (cpu *CPU) asl(inst *Instruction, operand []byte) {
	v := cpu.load(inst.Mode, operand)
	cpu.Reg.Carry = (v & 0x80) == 0x80
	v <<= 1
	cpu.updateNZ(v)
	cpu.store(inst.Mode, operand, v)
	if cpu.Arch == CMOS && inst.Mode == ABX && !cpu.pageCrossed {
		cpu.deltaCycles--
	}
}

func (cpu *CPU) bcc(inst *Instruction, operand []byte) {
	if !cpu.Reg.Carry {
		cpu.branch(operand)
	}
}

func (cpu *CPU) bcs(inst *Instruction, operand []byte) {
	if cpu.Reg.Carry {
		cpu.branch(operand)
	}
}

func (cpu *CPU) beq(inst *Instruction, operand []byte) {
	if cpu.Reg.Zero {
		cpu.branch(operand)
	}
}

func (cpu *CPU) bit(inst *Instruction, operand []byte) {
	v := cpu.load(inst.Mode, operand)
	cpu.Reg.Zero = (v & cpu.Reg.A) == 0
	cpu.Reg.Sign = (v & 0x80) != 0
	cpu.Reg.Overflow = (v & 0x40) != 0
}

func (cpu *CPU) bmi(inst *Instruction, operand []byte) {
	if cpu.Reg.Sign {
		cpu.branch(operand)
	}
}

func (cpu *CPU) bne(inst *Instruction, operand []byte) {
	if !cpu.Reg.Zero {
		cpu.branch(operand)
	}
}

func (cpu *CPU) bpl(inst *Instruction, operand []byte) {
	if !cpu.Reg.Sign {
		cpu.branch(operand)
	}
}

// BRA: branch always (65C02 only)
func (cpu *CPU) bra(inst *Instruction, operand []byte) {
	cpu.branch(operand)
}

func (cpu *CPU) brk(inst *Instruction, operand []byte) {
	cpu.Reg.PC++
	cpu.handleInterrupt(true, vectorBRK)
}

func (cpu *CPU) bvc(inst *Instruction, operand []byte) {
	if !cpu.Reg.Overflow {
		cpu.branch(operand)
	}
}

func (cpu *CPU) bvs(inst *Instruction, operand []byte) {
	if cpu.Reg.Overflow {
		cpu.branch(operand)
	}
}

func (cpu *CPU) clc(inst *Instruction, operand []byte) {
	cpu.Reg.Carry = false
}

func (cpu *CPU) cld(inst *Instruction, operand []byte) {
	cpu.Reg.Decimal = false
}

func (cpu *CPU) cli(inst *Instruction, operand []byte) {
	cpu.Reg.InterruptDisable = false
}

func (cpu *CPU) clv(inst *Instruction, operand []byte) {
	cpu.Reg.Overflow = false
}

func (cpu *CPU) cmp(inst *Instruction, operand []byte) {
	v := cpu.load(inst.Mode, operand)
	cpu.Reg.Carry = cpu.Reg.A >= v
	cpu.updateNZ(cpu.Reg.A - v)
}

func (cpu *CPU) cpx(inst *Instruction, operand []byte) {
	v := cpu.load(inst.Mode, operand)
	cpu.Reg.Carry = cpu.Reg.X >= v
	cpu.updateNZ(cpu.Reg.X - v)
}

func (cpu *CPU) cpy(inst *Instruction, operand []byte) {
	v := cpu.load(inst.Mode, operand)
	cpu.Reg.Carry = cpu.Reg.Y >= v
	cpu.updateNZ(cpu.Reg.Y - v)
}

func (cpu *CPU) dec(inst *Instruction, operand []byte) {
	v := cpu.load(inst.Mode, operand) - 1
	cpu.updateNZ(v)
	cpu.store(inst.Mode, operand, v)
}

func (cpu *CPU) dex(inst *Instruction, operand []byte) {
	cpu.Reg.X--
	cpu.updateNZ(cpu.Reg.X)
}

func (cpu *CPU) dey(inst *Instruction, operand []byte) {
	cpu.Reg.Y--
	cpu.updateNZ(cpu.Reg.Y)
}

func (cpu *CPU) eor(inst *Instruction, operand []byte) {
	cpu.Reg.A ^= cpu.load(inst.Mode, operand)
	cpu.updateNZ(cpu.Reg.A)
}

func (cpu *CPU) inc(inst *Instruction, operand []byte) {
	v := cpu.load(inst.Mode, operand) + 1
	cpu.updateNZ(v)
	cpu.store(inst.Mode, operand, v)
}

func (cpu *CPU) inx(inst *Instruction, operand []byte) {
	cpu.Reg.X++
	cpu.updateNZ(cpu.Reg.X)
}

func (cpu *CPU) iny(inst *Instruction, operand []byte) {
	cpu.Reg.Y++
	cpu.updateNZ(cpu.Reg.Y)
}

func (cpu *CPU) jmpn(inst *Instruction, operand []byte) {
	cpu.Reg.PC = cpu.loadAddress(inst.Mode, operand)
}

// jmpc fixes the NMOS indirect-JMP page boundary bug: JMP ($12FF) reads
// the low byte from $12FF and the high byte from $1300, not the
// NMOS-quirky $1200.
func (cpu *CPU) jmpc(inst *Instruction, operand []byte) {
	if inst.Mode == IND && operand[0] == 0xff {
		addr0 := uint16(operand[1])<<8 | 0xff
		addr1 := addr0 + 1
		lo := cpu.Mem.LoadByte(addr0)
		hi := cpu.Mem.LoadByte(addr1)
		cpu.Reg.PC = uint16(lo) | uint16(hi)<<8
		cpu.deltaCycles++
		return
	}
	cpu.Reg.PC = cpu.loadAddress(inst.Mode, operand)
}

func (cpu *CPU) jsr(inst *Instruction, operand []byte) {
	addr := cpu.loadAddress(inst.Mode, operand)
	cpu.pushAddress(cpu.Reg.PC - 1)
	cpu.Reg.PC = addr
}

func (cpu *CPU) lda(inst *Instruction, operand []byte) {
	cpu.Reg.A = cpu.load(inst.Mode, operand)
	cpu.updateNZ(cpu.Reg.A)
}

func (cpu *CPU) ldx(inst *Instruction, operand []byte) {
	cpu.Reg.X = cpu.load(inst.Mode, operand)
	cpu.updateNZ(cpu.Reg.X)
}

func (cpu *CPU) ldy(inst *Instruction, operand []byte) {
	cpu.Reg.Y = cpu.load(inst.Mode, operand)
	cpu.updateNZ(cpu.Reg.Y)
}

func (cpu *CPU) lsr(inst *Instruction, operand []byte) {
	v := cpu.load(inst.Mode, operand)
	cpu.Reg.Carry = (v & 1) == 1
	v >>= 1
	cpu.updateNZ(v)
	cpu.Reg.Sign = false
	cpu.store(inst.Mode, operand, v)
	if cpu.Arch == CMOS && inst.Mode == ABX && !cpu.pageCrossed {
		cpu.deltaCycles--
	}
}

func (cpu *CPU) nop(inst *Instruction, operand []byte) {
}

func (cpu *CPU) ora(inst *Instruction, operand []byte) {
	cpu.Reg.A |= cpu.load(inst.Mode, operand)
	cpu.updateNZ(cpu.Reg.A)
}

func (cpu *CPU) pha(inst *Instruction, operand []byte) {
	cpu.push(cpu.Reg.A)
}

func (cpu *CPU) php(inst *Instruction, operand []byte) {
	cpu.push(cpu.Reg.SavePS(true))
}

// PHX: push X register (65C02 only)
func (cpu *CPU) phx(inst *Instruction, operand []byte) {
	cpu.push(cpu.Reg.X)
}

// PHY: push Y register (65C02 only)
func (cpu *CPU) phy(inst *Instruction, operand []byte) {
	cpu.push(cpu.Reg.Y)
}

func (cpu *CPU) pla(inst *Instruction, operand []byte) {
	cpu.Reg.A = cpu.pop()
	cpu.updateNZ(cpu.Reg.A)
}

func (cpu *CPU) plp(inst *Instruction, operand []byte) {
	cpu.Reg.RestorePS(cpu.pop())
}

// PLX: pull X register (65C02 only)
func (cpu *CPU) plx(inst *Instruction, operand []byte) {
	cpu.Reg.X = cpu.pop()
	cpu.updateNZ(cpu.Reg.X)
}

// PLY: pull Y register (65C02 only)
func (cpu *CPU) ply(inst *Instruction, operand []byte) {
	cpu.Reg.Y = cpu.pop()
	cpu.updateNZ(cpu.Reg.Y)
}

func (cpu *CPU) rol(inst *Instruction, operand []byte) {
	tmp := cpu.load(inst.Mode, operand)
	v := (tmp << 1) | boolToByte(cpu.Reg.Carry)
	cpu.Reg.Carry = (tmp & 0x80) != 0
	cpu.updateNZ(v)
	cpu.store(inst.Mode, operand, v)
	if cpu.Arch == CMOS && inst.Mode == ABX && !cpu.pageCrossed {
		cpu.deltaCycles--
	}
}

func (cpu *CPU) ror(inst *Instruction, operand []byte) {
	tmp := cpu.load(inst.Mode, operand)
	v := (tmp >> 1) | (boolToByte(cpu.Reg.Carry) << 7)
	cpu.Reg.Carry = (tmp & 1) != 0
	cpu.updateNZ(v)
	cpu.store(inst.Mode, operand, v)
	if cpu.Arch == CMOS && inst.Mode == ABX && !cpu.pageCrossed {
		cpu.deltaCycles--
	}
}

// RTI pulls PSR then PC, with no +1 adjustment (unlike RTS, which pulls
// the address of the last byte of a JSR instruction).
func (cpu *CPU) rti(inst *Instruction, operand []byte) {
	cpu.Reg.RestorePS(cpu.pop())
	cpu.Reg.PC = cpu.popAddress()
}

func (cpu *CPU) rts(inst *Instruction, operand []byte) {
	cpu.Reg.PC = cpu.popAddress() + 1
}

// Subtract with Carry (CMOS)
func (cpu *CPU) sbcc(inst *Instruction, operand []byte) {
	acc := uint32(cpu.Reg.A)
	sub := uint32(cpu.load(inst.Mode, operand))
	carry := boolToUint32(cpu.Reg.Carry)
	cpu.Reg.Overflow = ((acc ^ sub) & 0x80) != 0
	var v uint32

	if cpu.Reg.Decimal {
		cpu.deltaCycles++

		lo := 0x0f + (acc & 0x0f) - (sub & 0x0f) + carry
		var carrylo uint32
		if lo < 0x10 {
			lo -= 0x06
			carrylo = 0
		} else {
			lo -= 0x10
			carrylo = 0x10
		}
		hi := 0xf0 + (acc & 0xf0) - (sub & 0xf0) + carrylo
		if hi < 0x100 {
			cpu.Reg.Carry = false
			if hi < 0x80 {
				cpu.Reg.Overflow = false
			}
			hi -= 0x60
		} else {
			cpu.Reg.Carry = true
			if hi >= 0x180 {
				cpu.Reg.Overflow = false
			}
			hi -= 0x100
		}
		v = hi | lo
	} else {
		v = 0xff + acc - sub + carry
		if v < 0x100 {
			cpu.Reg.Carry = false
			if v < 0x80 {
				cpu.Reg.Overflow = false
			}
		} else {
			cpu.Reg.Carry = true
			if v >= 0x180 {
				cpu.Reg.Overflow = false
			}
		}
	}

	cpu.Reg.A = byte(v)
	cpu.updateNZ(cpu.Reg.A)
}

// Subtract with Carry (NMOS)
func (cpu *CPU) sbcn(inst *Instruction, operand []byte) {
	acc := uint32(cpu.Reg.A)
	sub := uint32(cpu.load(inst.Mode, operand))
	carry := boolToUint32(cpu.Reg.Carry)
	var v uint32

	if cpu.Reg.Decimal {
		lo := 0x0f + (acc & 0x0f) - (sub & 0x0f) + carry
		var carrylo uint32
		if lo < 0x10 {
			lo -= 0x06
			carrylo = 0
		} else {
			lo -= 0x10
			carrylo = 0x10
		}
		hi := 0xf0 + (acc & 0xf0) - (sub & 0xf0) + carrylo
		if hi < 0x100 {
			cpu.Reg.Carry = false
			hi -= 0x60
		} else {
			cpu.Reg.Carry = true
			hi -= 0x100
		}
		v = hi | lo
		cpu.Reg.Overflow = ((acc^v)&0x80) != 0 && ((acc^sub)&0x80) != 0
	} else {
		v = 0xff + acc - sub + carry
		cpu.Reg.Carry = v >= 0x100
		cpu.Reg.Overflow = ((acc & 0x80) != (sub & 0x80)) && ((acc & 0x80) != (v & 0x80))
	}

	cpu.Reg.A = byte(v)
	cpu.updateNZ(byte(v))
}

func (cpu *CPU) sec(inst *Instruction, operand []byte) {
	cpu.Reg.Carry = true
}

func (cpu *CPU) sed(inst *Instruction, operand []byte) {
	cpu.Reg.Decimal = true
}

func (cpu *CPU) sei(inst *Instruction, operand []byte) {
	cpu.Reg.InterruptDisable = true
}

func (cpu *CPU) sta(inst *Instruction, operand []byte) {
	cpu.store(inst.Mode, operand, cpu.Reg.A)
}

func (cpu *CPU) stx(inst *Instruction, operand []byte) {
	cpu.store(inst.Mode, operand, cpu.Reg.X)
}

func (cpu *CPU) sty(inst *Instruction, operand []byte) {
	cpu.store(inst.Mode, operand, cpu.Reg.Y)
}

// STZ: store zero (65C02 only)
func (cpu *CPU) stz(inst *Instruction, operand []byte) {
	cpu.store(inst.Mode, operand, 0)
}

func (cpu *CPU) tax(inst *Instruction, operand []byte) {
	cpu.Reg.X = cpu.Reg.A
	cpu.updateNZ(cpu.Reg.X)
}

func (cpu *CPU) tay(inst *Instruction, operand []byte) {
	cpu.Reg.Y = cpu.Reg.A
	cpu.updateNZ(cpu.Reg.Y)
}

// TRB: test and reset bits (65C02 only)
func (cpu *CPU) trb(inst *Instruction, operand []byte) {
	v := cpu.load(inst.Mode, operand)
	cpu.Reg.Zero = (v & cpu.Reg.A) == 0
	cpu.store(inst.Mode, operand, v&(cpu.Reg.A^0xff))
}

// TSB: test and set bits (65C02 only)
func (cpu *CPU) tsb(inst *Instruction, operand []byte) {
	v := cpu.load(inst.Mode, operand)
	cpu.Reg.Zero = (v & cpu.Reg.A) == 0
	cpu.store(inst.Mode, operand, v|cpu.Reg.A)
}

func (cpu *CPU) tsx(inst *Instruction, operand []byte) {
	cpu.Reg.X = cpu.Reg.SP
	cpu.updateNZ(cpu.Reg.X)
}

func (cpu *CPU) txa(inst *Instruction, operand []byte) {
	cpu.Reg.A = cpu.Reg.X
	cpu.updateNZ(cpu.Reg.A)
}

// TXS does not affect N/Z, unlike the other register transfers.
func (cpu *CPU) txs(inst *Instruction, operand []byte) {
	cpu.Reg.SP = cpu.Reg.X
}

func (cpu *CPU) tya(inst *Instruction, operand []byte) {
	cpu.Reg.A = cpu.Reg.Y
	cpu.updateNZ(cpu.Reg.A)
}

// unusedc is the CMOS handler for opcodes that are undefined on NMOS: the
// 65C02 gives them a defined (if useless) behavior that just consumes
// cycles. This is the permissive-mode counterpart to an NMOS opcode
// mapping to a nil fn, which halts the CPU with ErrUnknownOpcode instead.
func (cpu *CPU) unusedc(inst *Instruction, operand []byte) {
}
