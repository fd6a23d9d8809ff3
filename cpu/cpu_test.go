package cpu_test

import (
	"testing"

	"github.com/mseguin/go6502emu/cpu"
)

func newCPU(arch cpu.Architecture, origin uint16, code []byte) *cpu.CPU {
	mem := cpu.NewFlatMemory()
	mem.StoreBytes(origin, code)
	c := cpu.NewCPU(arch, mem)
	c.SetPC(origin)
	return c
}

func stepN(c *cpu.CPU, n int) error {
	var err error
	for i := 0; i < n; i++ {
		if err = c.Step(); err != nil {
			return err
		}
	}
	return nil
}

func expectPC(t *testing.T, c *cpu.CPU, pc uint16) {
	t.Helper()
	if c.Reg.PC != pc {
		t.Errorf("PC incorrect. exp: $%04X, got: $%04X", pc, c.Reg.PC)
	}
}

func expectCycles(t *testing.T, c *cpu.CPU, cycles uint64) {
	t.Helper()
	if c.Cycles != cycles {
		t.Errorf("Cycles incorrect. exp: %d, got: %d", cycles, c.Cycles)
	}
}

func expectACC(t *testing.T, c *cpu.CPU, acc byte) {
	t.Helper()
	if c.Reg.A != acc {
		t.Errorf("Accumulator incorrect. exp: $%02X, got: $%02X", acc, c.Reg.A)
	}
}

func expectSP(t *testing.T, c *cpu.CPU, sp byte) {
	t.Helper()
	if c.Reg.SP != sp {
		t.Errorf("stack pointer incorrect. exp: $%02X, got: $%02X", sp, c.Reg.SP)
	}
}

func expectMem(t *testing.T, c *cpu.CPU, addr uint16, v byte) {
	t.Helper()
	got := c.Mem.LoadByte(addr)
	if got != v {
		t.Errorf("Memory at $%04X incorrect. exp: $%02X, got: $%02X", addr, v, got)
	}
}

func TestAccumulatorStores(t *testing.T) {
	code := []byte{
		0xa9, 0x5e, // LDA #$5E
		0x85, 0x15, // STA $15
		0x8d, 0x00, 0x15, // STA $1500
	}
	c := newCPU(cpu.NMOS, 0x1000, code)
	if err := stepN(c, 3); err != nil {
		t.Fatal(err)
	}

	expectPC(t, c, 0x1007)
	expectCycles(t, c, 9)
	expectACC(t, c, 0x5e)
	expectMem(t, c, 0x15, 0x5e)
	expectMem(t, c, 0x1500, 0x5e)
}

func TestStack(t *testing.T) {
	code := []byte{
		0xa9, 0x11, 0x48, // LDA #$11; PHA
		0xa9, 0x12, 0x48, // LDA #$12; PHA
		0xa9, 0x13, 0x48, // LDA #$13; PHA
		0x68, 0x8d, 0x00, 0x20, // PLA; STA $2000
		0x68, 0x8d, 0x01, 0x20, // PLA; STA $2001
		0x68, 0x8d, 0x02, 0x20, // PLA; STA $2002
	}
	c := newCPU(cpu.NMOS, 0x1000, code)

	if err := stepN(c, 6); err != nil {
		t.Fatal(err)
	}
	expectSP(t, c, 0xfc)
	expectACC(t, c, 0x13)
	expectMem(t, c, 0x1ff, 0x11)
	expectMem(t, c, 0x1fe, 0x12)
	expectMem(t, c, 0x1fd, 0x13)

	if err := stepN(c, 6); err != nil {
		t.Fatal(err)
	}
	expectACC(t, c, 0x11)
	expectSP(t, c, 0xff)
	expectMem(t, c, 0x2000, 0x13)
	expectMem(t, c, 0x2001, 0x12)
	expectMem(t, c, 0x2002, 0x11)
}

func TestIndexedIndirect(t *testing.T) {
	code := []byte{
		0xa2, 0x80, // LDX #$80
		0xa0, 0x40, // LDY #$40
		0xa9, 0xee, // LDA #$EE
		0x9d, 0x00, 0x20, // STA $2000,X
		0x99, 0x00, 0x20, // STA $2000,Y
		0xa9, 0x11, // LDA #$11
		0x85, 0x06, // STA $06
		0xa9, 0x05, // LDA #$05
		0x85, 0x07, // STA $07
		0xa2, 0x01, // LDX #$01
		0xa0, 0x01, // LDY #$01
		0xa9, 0xbb, // LDA #$BB
		0x81, 0x05, // STA ($05,X)
		0x91, 0x06, // STA ($06),Y
	}
	c := newCPU(cpu.NMOS, 0x1000, code)
	if err := stepN(c, 14); err != nil {
		t.Fatal(err)
	}

	expectMem(t, c, 0x2080, 0xee)
	expectMem(t, c, 0x2040, 0xee)
	expectMem(t, c, 0x0511, 0xbb)
	expectMem(t, c, 0x0512, 0xbb)
}

func TestPageCross(t *testing.T) {
	code := []byte{
		0xa9, 0x55, // LDA #$55     2 cycles
		0x8d, 0x01, 0x11, // STA $1101    4 cycles
		0xa9, 0x00, // LDA #$00     2 cycles
		0xa2, 0xff, // LDX #$FF     2 cycles
		0xbd, 0x02, 0x10, // LDA $1002,X  5 cycles (page cross)
	}
	c := newCPU(cpu.NMOS, 0x1000, code)
	if err := stepN(c, 5); err != nil {
		t.Fatal(err)
	}

	expectPC(t, c, 0x100c)
	expectCycles(t, c, 15)
	expectACC(t, c, 0x55)
	expectMem(t, c, 0x1101, 0x55)
}

func TestUndefinedOpcodeHaltsNMOS(t *testing.T) {
	code := []byte{0x02} // illegal on NMOS (KIL-class); a 2-byte NOP on CMOS
	c := newCPU(cpu.NMOS, 0x1000, code)

	err := c.Step()
	if err != cpu.ErrUnknownOpcode {
		t.Fatalf("expected ErrUnknownOpcode, got %v", err)
	}
	expectPC(t, c, 0x1000)
	expectMem(t, c, 0x1000, 0x02)
}

func TestUndefinedOpcodePermissiveOnCMOS(t *testing.T) {
	code := []byte{0x02, 0x00} // 2-byte NOP on 65C02
	c := newCPU(cpu.CMOS, 0x1000, code)

	if err := c.Step(); err != nil {
		t.Fatalf("unexpected error on CMOS: %v", err)
	}
	expectPC(t, c, 0x1002)
}

func TestBranchTaken(t *testing.T) {
	code := []byte{
		0xa9, 0x00, // LDA #$00
		0xf0, 0x02, // BEQ +2
		0xa9, 0xff, // LDA #$FF (skipped)
		0xa9, 0x01, // LDA #$01
	}
	c := newCPU(cpu.NMOS, 0x1000, code)
	if err := stepN(c, 3); err != nil {
		t.Fatal(err)
	}
	expectACC(t, c, 0x01)
}

func TestBranchNotTaken(t *testing.T) {
	code := []byte{
		0xa9, 0x01, // LDA #$01
		0xf0, 0x02, // BEQ +2 (not taken, Z clear)
		0xa9, 0xff, // LDA #$FF
	}
	c := newCPU(cpu.NMOS, 0x1000, code)
	if err := stepN(c, 3); err != nil {
		t.Fatal(err)
	}
	expectACC(t, c, 0xff)
}

func TestJsrRts(t *testing.T) {
	code := []byte{
		0x20, 0x06, 0x10, // JSR $1006
		0xa9, 0x01, // LDA #$01 (return target, not yet reached)
		0x00,             // BRK (unreachable in this test)
		0xa9, 0x02, 0x60, // LDA #$02; RTS  at $1006
	}
	c := newCPU(cpu.NMOS, 0x1000, code)
	if err := stepN(c, 1); err != nil { // JSR
		t.Fatal(err)
	}
	expectPC(t, c, 0x1006)
	expectSP(t, c, 0xfd)

	if err := stepN(c, 2); err != nil { // LDA #$02; RTS
		t.Fatal(err)
	}
	expectACC(t, c, 0x02)
	expectPC(t, c, 0x1003)
	expectSP(t, c, 0xff)
}

func TestPhpPlpRoundTrip(t *testing.T) {
	code := []byte{
		0x38,       // SEC
		0xa9, 0x00, // LDA #$00 (sets Z)
		0x08,       // PHP
		0x18,       // CLC
		0x28,       // PLP
	}
	c := newCPU(cpu.NMOS, 0x1000, code)
	if err := stepN(c, 5); err != nil {
		t.Fatal(err)
	}
	if !c.Reg.Carry {
		t.Error("expected Carry restored by PLP")
	}
	if !c.Reg.Zero {
		t.Error("expected Zero restored by PLP")
	}
}

func TestAdcBinary(t *testing.T) {
	code := []byte{
		0x18,       // CLC
		0xa9, 0x50, // LDA #$50
		0x69, 0x50, // ADC #$50  -> $A0, V set, C clear
	}
	c := newCPU(cpu.NMOS, 0x1000, code)
	if err := stepN(c, 3); err != nil {
		t.Fatal(err)
	}
	expectACC(t, c, 0xa0)
	if !c.Reg.Overflow {
		t.Error("expected Overflow set")
	}
	if c.Reg.Carry {
		t.Error("expected Carry clear")
	}
}

func TestAdcDecimal(t *testing.T) {
	code := []byte{
		0x18,       // CLC
		0xf8,       // SED
		0xa9, 0x58, // LDA #$58 (BCD 58)
		0x69, 0x46, // ADC #$46 (BCD 46) -> BCD 04, carry set
	}
	c := newCPU(cpu.NMOS, 0x1000, code)
	if err := stepN(c, 4); err != nil {
		t.Fatal(err)
	}
	expectACC(t, c, 0x04)
	if !c.Reg.Carry {
		t.Error("expected decimal-mode carry out")
	}
}

func TestCmpCarrySemantics(t *testing.T) {
	code := []byte{
		0xa9, 0x10, // LDA #$10
		0xc9, 0x10, // CMP #$10 -> Z set, C set
	}
	c := newCPU(cpu.NMOS, 0x1000, code)
	if err := stepN(c, 2); err != nil {
		t.Fatal(err)
	}
	if !c.Reg.Zero || !c.Reg.Carry {
		t.Error("expected Z and C set for equal CMP operands")
	}
}

func TestAdcBinaryProperty(t *testing.T) {
	mem := cpu.NewFlatMemory()
	mem.StoreBytes(0x1000, []byte{0x69, 0x00}) // ADC #$00, operand patched below
	c := cpu.NewCPU(cpu.NMOS, mem)

	for a := 0; a <= 0xff; a++ {
		for m := 0; m <= 0xff; m++ {
			for _, carryIn := range [2]bool{false, true} {
				c.Reg.A = byte(a)
				c.Reg.Carry = carryIn
				c.Reg.Decimal = false
				c.Reg.PC = 0x1000
				mem.StoreByte(0x1001, byte(m))

				if err := c.Step(); err != nil {
					t.Fatalf("ADC $%02X+$%02X+%v: %v", a, m, carryIn, err)
				}

				sum := a + m
				if carryIn {
					sum++
				}
				wantA, wantC := byte(sum), sum > 0xff
				if c.Reg.A != wantA || c.Reg.Carry != wantC {
					t.Fatalf("ADC $%02X+$%02X+%v: got A=$%02X C=%v, want A=$%02X C=%v",
						a, m, carryIn, c.Reg.A, c.Reg.Carry, wantA, wantC)
				}
			}
		}
	}
}

func TestSbcBinaryProperty(t *testing.T) {
	mem := cpu.NewFlatMemory()
	mem.StoreBytes(0x1000, []byte{0xe9, 0x00}) // SBC #$00, operand patched below
	c := cpu.NewCPU(cpu.NMOS, mem)

	for a := 0; a <= 0xff; a++ {
		for m := 0; m <= 0xff; m++ {
			for _, carryIn := range [2]bool{false, true} {
				c.Reg.A = byte(a)
				c.Reg.Carry = carryIn
				c.Reg.Decimal = false
				c.Reg.PC = 0x1000
				mem.StoreByte(0x1001, byte(m))

				if err := c.Step(); err != nil {
					t.Fatalf("SBC $%02X-$%02X-(1-%v): %v", a, m, carryIn, err)
				}

				borrowIn := 0
				if !carryIn {
					borrowIn = 1
				}
				raw := a - m - borrowIn
				wantA := byte(((raw % 256) + 256) % 256)
				wantC := raw >= 0
				if c.Reg.A != wantA || c.Reg.Carry != wantC {
					t.Fatalf("SBC $%02X-$%02X-(1-%v): got A=$%02X C=%v, want A=$%02X C=%v",
						a, m, carryIn, c.Reg.A, c.Reg.Carry, wantA, wantC)
				}
			}
		}
	}
}

func TestCmpProperty(t *testing.T) {
	mem := cpu.NewFlatMemory()
	mem.StoreBytes(0x1000, []byte{0xc9, 0x00}) // CMP #$00, operand patched below
	c := cpu.NewCPU(cpu.NMOS, mem)

	for a := 0; a <= 0xff; a++ {
		for m := 0; m <= 0xff; m++ {
			c.Reg.A = byte(a)
			c.Reg.PC = 0x1000
			mem.StoreByte(0x1001, byte(m))

			if err := c.Step(); err != nil {
				t.Fatalf("CMP $%02X,$%02X: %v", a, m, err)
			}

			wantC := a >= m
			wantZ := a == m
			diff := byte(((a - m) % 256 + 256) % 256)
			wantN := diff&0x80 != 0
			if c.Reg.Carry != wantC || c.Reg.Zero != wantZ || c.Reg.Sign != wantN {
				t.Fatalf("CMP $%02X,$%02X: got C=%v Z=%v N=%v, want C=%v Z=%v N=%v",
					a, m, c.Reg.Carry, c.Reg.Zero, c.Reg.Sign, wantC, wantZ, wantN)
			}
		}
	}
}

func TestResetVectorsPC(t *testing.T) {
	mem := cpu.NewFlatMemory()
	mem.StoreAddress(0xfffc, 0x8000)
	c := cpu.NewCPU(cpu.NMOS, mem)
	c.Reset()

	expectPC(t, c, 0x8000)
	expectSP(t, c, 0xfd)
	if !c.Reg.InterruptDisable {
		t.Error("expected InterruptDisable set after reset")
	}
}

func TestIrqIgnoredWhenDisabled(t *testing.T) {
	mem := cpu.NewFlatMemory()
	mem.StoreAddress(0xfffe, 0x9000)
	c := cpu.NewCPU(cpu.NMOS, mem)
	c.Reg.PC = 0x1000
	c.Reg.InterruptDisable = true
	c.Mem.StoreByte(0x1000, 0xea) // NOP

	c.AssertIRQ()
	if err := c.Step(); err != nil {
		t.Fatal(err)
	}
	expectPC(t, c, 0x1001)
}

func TestNmiServicedRegardlessOfI(t *testing.T) {
	mem := cpu.NewFlatMemory()
	mem.StoreAddress(0xfffa, 0x9000)
	c := cpu.NewCPU(cpu.NMOS, mem)
	c.Reg.PC = 0x1000
	c.Reg.SP = 0xff
	c.Reg.InterruptDisable = true

	c.AssertNMI()
	if err := c.Step(); err != nil {
		t.Fatal(err)
	}
	expectPC(t, c, 0x9000)
	if !c.Reg.InterruptDisable {
		t.Error("expected I set after NMI entry")
	}
}

func TestNmiWinsOverSimultaneousIRQ(t *testing.T) {
	mem := cpu.NewFlatMemory()
	mem.StoreAddress(0xfffa, 0x9000) // NMI vector
	mem.StoreAddress(0xfffe, 0xa000) // IRQ vector
	c := cpu.NewCPU(cpu.NMOS, mem)
	c.Reg.PC = 0x1000
	c.Reg.InterruptDisable = false

	c.AssertIRQ()
	c.AssertNMI()
	if err := c.Step(); err != nil {
		t.Fatal(err)
	}
	expectPC(t, c, 0x9000) // NMI vector taken, not the pending IRQ's
}
