package loader_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/mseguin/go6502emu/cpu"
	"github.com/mseguin/go6502emu/loader"
)

func TestLoadAtOrigin(t *testing.T) {
	mem := cpu.NewFlatMemory()
	image := []byte{0xa9, 0x01, 0x8d, 0x00, 0x20}

	n, err := loader.Load(mem, bytes.NewReader(image), 0x1000)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(image) {
		t.Errorf("expected %d bytes, got %d", len(image), n)
	}
	for i, b := range image {
		if got := mem.LoadByte(0x1000 + uint16(i)); got != b {
			t.Errorf("byte %d: expected $%02X, got $%02X", i, b, got)
		}
	}
}

func TestLoadTooLarge(t *testing.T) {
	mem := cpu.NewFlatMemory()
	image := make([]byte, 0x200)

	_, err := loader.Load(mem, bytes.NewReader(image), 0xff00)
	if err != loader.ErrTooLarge {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	// Nothing should have been written on failure.
	if mem.LoadByte(0xff00) != 0 {
		t.Error("expected memory untouched after failed load")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.bin")
	image := []byte{0xea, 0xea, 0x00}
	if err := os.WriteFile(path, image, 0o644); err != nil {
		t.Fatal(err)
	}

	mem := cpu.NewFlatMemory()
	n, err := loader.LoadFile(mem, path, 0x8000)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(image) {
		t.Errorf("expected %d bytes, got %d", len(image), n)
	}
	if mem.LoadByte(0x8000) != 0xea {
		t.Error("expected loaded byte at origin")
	}
}
