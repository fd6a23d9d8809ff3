package peripheral_test

import (
	"bytes"
	"testing"

	"github.com/mseguin/go6502emu/cpu"
	"github.com/mseguin/go6502emu/peripheral"
)

func TestConsoleWritesToWriter(t *testing.T) {
	var buf bytes.Buffer
	con := peripheral.NewConsoleAt(0xf001, &buf)

	bus := cpu.NewBus()
	bus.RegisterPeripheral(con)

	bus.StoreByte(0xf001, 'H')
	bus.StoreByte(0xf001, 'i')

	if buf.String() != "Hi" {
		t.Errorf("expected %q, got %q", "Hi", buf.String())
	}
}

func TestConsoleReadsZero(t *testing.T) {
	var buf bytes.Buffer
	con := peripheral.NewConsoleAt(0xf001, &buf)

	bus := cpu.NewBus()
	bus.RegisterPeripheral(con)

	if v := bus.LoadByte(0xf001); v != 0 {
		t.Errorf("expected 0, got %d", v)
	}
}

func TestConsoleDoesNotClaimOtherAddresses(t *testing.T) {
	var buf bytes.Buffer
	con := peripheral.NewConsoleAt(0xf001, &buf)

	bus := cpu.NewBus()
	bus.RegisterPeripheral(con)

	bus.StoreByte(0x2000, 0x42)
	if v := bus.LoadByte(0x2000); v != 0x42 {
		t.Errorf("expected RAM fallthrough, got %d", v)
	}
}
