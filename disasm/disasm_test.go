package disasm_test

import (
	"testing"

	"github.com/mseguin/go6502emu/cpu"
	"github.com/mseguin/go6502emu/disasm"
)

func TestDisassembleImmediate(t *testing.T) {
	mem := cpu.NewFlatMemory()
	mem.StoreBytes(0x1000, []byte{0xa9, 0x5e})

	line, next := disasm.Disassemble(mem, 0x1000, cpu.NMOS)
	if line != "LDA #$5E" {
		t.Errorf("got %q", line)
	}
	if next != 0x1002 {
		t.Errorf("got next=$%04X", next)
	}
}

func TestDisassembleAbsoluteIndexed(t *testing.T) {
	mem := cpu.NewFlatMemory()
	mem.StoreBytes(0x1000, []byte{0xbd, 0x00, 0x20})

	line, _ := disasm.Disassemble(mem, 0x1000, cpu.NMOS)
	if line != "LDA $2000,X" {
		t.Errorf("got %q", line)
	}
}

func TestDisassembleRelativeBranch(t *testing.T) {
	mem := cpu.NewFlatMemory()
	mem.StoreBytes(0x1000, []byte{0xf0, 0x02}) // BEQ +2

	line, _ := disasm.Disassemble(mem, 0x1000, cpu.NMOS)
	if line != "BEQ $1004" {
		t.Errorf("got %q", line)
	}
}

func TestDisassembleUndefinedOpcode(t *testing.T) {
	mem := cpu.NewFlatMemory()
	mem.StoreBytes(0x1000, []byte{0x02})

	line, next := disasm.Disassemble(mem, 0x1000, cpu.NMOS)
	if line != "??? $00" {
		t.Errorf("got %q", line)
	}
	if next != 0x1002 {
		t.Errorf("got next=$%04X", next)
	}
}

func TestDisassembleCmosOnly(t *testing.T) {
	mem := cpu.NewFlatMemory()
	mem.StoreBytes(0x1000, []byte{0x80, 0x05}) // BRA +5

	line, _ := disasm.Disassemble(mem, 0x1000, cpu.CMOS)
	if line != "BRA $1007" {
		t.Errorf("got %q", line)
	}
}
