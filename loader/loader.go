// Package loader loads raw 6502 binary images into a cpu.Memory.
package loader

import (
	"errors"
	"io"
	"os"

	"github.com/mseguin/go6502emu/cpu"
)

// ErrTooLarge is returned when an image would not fit in the 16-bit
// address space starting at the requested origin.
var ErrTooLarge = errors.New("binary image too large to fit at origin")

// maxImage is the largest an image starting at origin 0 could ever be.
const maxImage = 1 << 16

// Load reads a raw, headerless binary image from r and copies it into
// mem starting at origin. It returns the number of bytes loaded. If the
// image would overflow the address space, it returns ErrTooLarge without
// loading any of it.
func Load(mem cpu.Memory, r io.Reader, origin uint16) (int, error) {
	buf, err := io.ReadAll(io.LimitReader(r, maxImage+1))
	if err != nil {
		return 0, err
	}
	if len(buf) > maxImage-int(origin) {
		return 0, ErrTooLarge
	}

	mem.StoreBytes(origin, buf)
	return len(buf), nil
}

// LoadFile opens the file at path and loads it into mem starting at
// origin.
func LoadFile(mem cpu.Memory, path string, origin uint16) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	return Load(mem, f, origin)
}
