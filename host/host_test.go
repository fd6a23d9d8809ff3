package host_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mseguin/go6502emu/cpu"
	"github.com/mseguin/go6502emu/host"
)

func runOnce(h *host.Host, line string) string {
	var out bytes.Buffer
	h.RunCommands(strings.NewReader(line+"\n"), &out, false)
	return out.String()
}

func TestSetAndDisplayRegister(t *testing.T) {
	h := host.New(cpu.NMOS)

	out := runOnce(h, "set a $42")
	if !strings.Contains(out, "$42") {
		t.Errorf("expected register update message, got %q", out)
	}

	out = runOnce(h, "registers")
	if !strings.Contains(out, "A=42") {
		t.Errorf("expected A=42 in register display, got %q", out)
	}
}

func TestBreakpointAddListRemove(t *testing.T) {
	h := host.New(cpu.NMOS)

	runOnce(h, "breakpoint add $1000")
	out := runOnce(h, "breakpoint list")
	if !strings.Contains(out, "1000") {
		t.Errorf("expected breakpoint listed, got %q", out)
	}

	out = runOnce(h, "breakpoint remove $1000")
	if !strings.Contains(out, "removed") {
		t.Errorf("expected removal confirmation, got %q", out)
	}
}

func TestLoadCommandUsesLoader(t *testing.T) {
	h := host.New(cpu.NMOS)

	dir := t.TempDir()
	path := filepath.Join(dir, "image.bin")
	if err := os.WriteFile(path, []byte{0xa9, 0x42, 0x00}, 0o644); err != nil {
		t.Fatal(err)
	}

	out := runOnce(h, "load "+path+" $2000")
	if !strings.Contains(out, "2000") {
		t.Errorf("expected load confirmation mentioning address, got %q", out)
	}

	out = runOnce(h, "memory dump $2000 3")
	if !strings.Contains(out, "A9") {
		t.Errorf("expected loaded bytes in memory dump, got %q", out)
	}
}

func TestResetSetsProgramCounterFromVector(t *testing.T) {
	h := host.New(cpu.NMOS)

	dir := t.TempDir()
	path := filepath.Join(dir, "vec.bin")
	if err := os.WriteFile(path, []byte{0x34, 0x12}, 0o644); err != nil {
		t.Fatal(err)
	}
	runOnce(h, "load "+path+" $FFFC")

	out := runOnce(h, "reset")
	if !strings.Contains(out, "1234") {
		t.Errorf("expected PC loaded from reset vector, got %q", out)
	}
}
