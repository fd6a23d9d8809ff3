// Copyright 2014 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package disasm implements a 6502/65C02 instruction set disassembler.
package disasm

import (
	"fmt"

	"github.com/mseguin/go6502emu/cpu"
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
	"%s",      // ACC
}

var hex = "0123456789ABCDEF"

// hexString returns a hexadecimal string representation of the byte
// slice, read as a little-endian value and displayed most significant
// byte first (so b[0] appears last).
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

// Disassemble decodes the instruction in mem at addr for the given
// architecture. It returns the disassembled text and the address of the
// following instruction. An opcode undefined for arch disassembles as
// "???" with its raw operand bytes, rather than erroring: a disassembly
// pass over arbitrary memory must never halt partway through.
func Disassemble(mem cpu.Memory, addr uint16, arch cpu.Architecture) (line string, next uint16) {
	opcode := mem.LoadByte(addr)
	set := cpu.GetInstructionSet(arch)
	inst := set.Lookup(opcode)

	operand := make([]byte, inst.Length-1)
	mem.LoadBytes(addr+1, operand)

	if inst.Mode == cpu.REL && len(operand) == 1 {
		braddr := int(addr) + int(inst.Length) + int(operand[0])
		if operand[0] > 0x7f {
			braddr -= 256
		}
		operand = []byte{byte(braddr & 0xff), byte(braddr >> 8)}
	}

	format := "%s " + modeFormat[inst.Mode]
	line = fmt.Sprintf(format, inst.Name, hexString(operand))
	next = addr + uint16(inst.Length)
	return line, next
}
