// Command go6502 loads a raw binary image into an emulated 6502/65C02
// system and runs it to completion, or hands off to an interactive
// debugging monitor.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/mseguin/go6502emu/cpu"
	"github.com/mseguin/go6502emu/disasm"
	"github.com/mseguin/go6502emu/host"
	"github.com/mseguin/go6502emu/loader"
	"github.com/mseguin/go6502emu/peripheral"
)

func main() {
	debug := flag.Bool("debug", false, "enable a mnemonic execution trace on stdout")
	origin := flag.Uint("origin", 0, "address at which to load the binary image")
	monitor := flag.Bool("monitor", false, "launch the interactive monitor instead of free-running")
	cmos := flag.Bool("cmos", false, "emulate a 65C02 instead of a 6502")
	flag.Parse()

	args := flag.Args()
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: go6502 [flags] <image>")
		os.Exit(1)
	}

	arch := cpu.NMOS
	if *cmos {
		arch = cpu.CMOS
	}

	if *monitor {
		runMonitor(arch, args[0], uint16(*origin))
		return
	}

	os.Exit(run(arch, args[0], uint16(*origin), *debug))
}

// haltOnBrk treats BRK as a clean stop-the-run signal rather than a real
// interrupt, the convention expected by standalone test images that end
// execution with a trailing BRK.
type haltOnBrk struct {
	halted bool
}

func (h *haltOnBrk) OnBrk(c *cpu.CPU) {
	h.halted = true
}

func run(arch cpu.Architecture, path string, origin uint16, debug bool) int {
	bus := cpu.NewBus()
	bus.RegisterPeripheral(peripheral.NewConsole())

	if _, err := loader.LoadFile(bus, path, origin); err != nil {
		fmt.Fprintf(os.Stderr, "go6502: %v\n", err)
		return 1
	}

	// A loaded image is responsible for a reset vector pointing at
	// executable code; seed one pointing at the load address if the
	// image doesn't set its own, so Reset's normal lifecycle still
	// applies.
	if bus.LoadAddress(0xfffc) == 0 {
		bus.StoreAddress(0xfffc, origin)
	}

	c := cpu.NewCPU(arch, bus)
	c.Reset()

	halt := &haltOnBrk{}
	c.AttachBrkHandler(halt)

	for !halt.halted {
		if debug {
			line, _ := disasm.Disassemble(c.Mem, c.Reg.PC, c.Arch)
			fmt.Println(line)
		}
		if err := c.Step(); err != nil {
			if err == cpu.ErrUnknownOpcode {
				fmt.Fprintf(os.Stderr, "go6502: unknown opcode $%02X at $%04X\n",
					c.Mem.LoadByte(c.Reg.PC), c.Reg.PC)
			} else {
				fmt.Fprintf(os.Stderr, "go6502: %v\n", err)
			}
			return 1
		}
	}
	return 0
}

func runMonitor(arch cpu.Architecture, path string, origin uint16) {
	h := host.New(arch)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		for range sig {
			h.Break()
		}
	}()

	if path != "" {
		load := fmt.Sprintf("load %s $%04X\n", path, origin)
		h.RunCommands(strings.NewReader(load), os.Stdout, false)
	}

	h.RunCommands(os.Stdin, os.Stdout, true)
}
