// Package console wires the opcode engine, the PPU, a cartridge
// mapper and the two controller ports into a single NES machine: it
// owns the $0000-$FFFF CPU memory map, mediates OAM DMA, and presents
// an ebiten.Game for the host loop to drive.
package console

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"

	"github.com/bdwalton/gones/mappers"
	"github.com/bdwalton/gones/mos6502"
	"github.com/bdwalton/gones/ppu"
	"github.com/hajimehoshi/ebiten/v2"
)

const (
	RAM_SIZE = 0x800 // 2 KiB built-in RAM

	MAX_ADDRESS          = math.MaxUint16
	MAX_NES_BASE_RAM     = 0x1FFF
	MAX_PPU_REG_MIRRORED = 0x3FFF
	MAX_IO_REG           = 0x4020
	MAX_SRAM             = 0x6000
)

const (
	OAMDMA = 0x4014
	CTRL1  = 0x4016
	CTRL2  = 0x4017
)

// Bus is the NES machine: it owns one CPU, one PPU, the loaded
// cartridge mapper and both controller ports, and translates every
// CPU-visible address into the right collaborator. It satisfies
// mos6502.Bus and ppu.Bus for its own components, and ebiten.Game for
// the host render/input loop.
type Bus struct {
	cpu    *mos6502.CPU
	ppu    *ppu.PPU
	mapper mappers.Mapper
	ram    [RAM_SIZE]uint8

	pad1, pad2 controller

	cycles uint64
	stall  int // CPU cycles remaining in an OAM DMA stall
}

// New wires a Bus around an already-decoded cartridge mapper and
// performs the CPU's power-on reset.
func New(m mappers.Mapper) *Bus {
	b := &Bus{mapper: m}

	b.cpu = mos6502.New(b)
	b.ppu = ppu.New(b)

	w, h := b.ppu.GetResolution()
	ebiten.SetWindowSize(w*2, h*2)
	ebiten.SetWindowTitle("gones")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)

	return b
}

// Mirroring satisfies ppu.Bus by forwarding to the cartridge mapper,
// the sole authority on nametable layout (fixed for most boards,
// dynamic for MMC1).
func (b *Bus) Mirroring() uint8 {
	return b.mapper.Mirroring()
}

// PPURead and PPUWrite satisfy ppu.Bus for the $0000-$1FFF pattern
// table region, which lives on the cartridge.
func (b *Bus) PPURead(addr uint16) uint8       { return b.mapper.PPURead(addr) }
func (b *Bus) PPUWrite(addr uint16, val uint8) { b.mapper.PPUWrite(addr, val) }

// TriggerNMI satisfies ppu.Bus: the PPU calls this at the start of
// vblank when PPUCTRL.nmi-enable is set.
func (b *Bus) TriggerNMI() {
	b.cpu.NMI()
}

// Layout returns the NES's fixed resolution, part of ebiten.Game.
// Returning a constant here makes ebiten responsible for scaling the
// window instead of the core.
func (b *Bus) Layout(outsideWidth, outsideHeight int) (int, int) {
	return b.ppu.GetResolution()
}

// Draw packs the PPU's per-pixel RGBA colors into one byte buffer and
// copies it into the ebiten screen image in a single WritePixels call
// rather than per-pixel Set.
func (b *Bus) Draw(screen *ebiten.Image) {
	w, h := b.ppu.GetResolution()
	buf := make([]byte, 0, w*h*4)
	for _, px := range b.ppu.GetPixels() {
		buf = append(buf, []byte(px)...)
	}
	screen.WritePixels(buf)
}

// Update is called by ebiten roughly every 1/60s and drives one
// frame's worth of emulation: CPU instructions interleaved with PPU
// ticks, in the lockstep the core requires, until the PPU has
// advanced through a full frame of scanlines.
func (b *Bus) Update() error {
	const frameCycles = ppu.LinesPerFrame * ppu.CyclesPerLine

	for acc := 0; acc < frameCycles; {
		if b.stall > 0 {
			b.ppu.Tick(1)
			b.stall--
			b.cycles++
			acc++
			continue
		}

		n := b.cpu.Step()
		b.ppu.Tick(n)
		b.cycles += uint64(n)
		acc += n
	}

	return nil
}

// Read implements the CPU's view of the full address space.
// https://www.nesdev.org/wiki/CPU_memory_map
func (b *Bus) Read(addr uint16) uint8 {
	switch {
	case addr <= MAX_NES_BASE_RAM:
		return b.ram[addr&0x07FF]
	case addr <= MAX_PPU_REG_MIRRORED:
		return b.ppu.ReadReg(0x2000 + addr&0x0007)
	case addr < MAX_IO_REG:
		switch addr {
		case CTRL1:
			return b.pad1.read()
		case CTRL2:
			return b.pad2.read()
		default:
			return 0 // APU and unimplemented I/O: open bus
		}
	case addr < MAX_SRAM:
		return 0
	default:
		return b.mapper.CPURead(addr)
	}
}

// Write implements the CPU's view of the full address space,
// including the OAM DMA handshake and the shared controller strobe.
func (b *Bus) Write(addr uint16, val uint8) {
	switch {
	case addr <= MAX_NES_BASE_RAM:
		b.ram[addr&0x07FF] = val
	case addr <= MAX_PPU_REG_MIRRORED:
		b.ppu.WriteReg(0x2000+addr&0x0007, val)
	case addr < MAX_IO_REG:
		switch addr {
		case OAMDMA:
			b.oamDMA(val)
		case CTRL1:
			// The strobe line from $4016 is wired to both pads.
			b.pad1.write(val)
			b.pad2.write(val)
		default:
			// APU registers ($4000-$4013, $4015, $4017 frame counter):
			// not implemented by this core.
		}
	case addr < MAX_SRAM:
		// Nothing lives here on boards this core supports.
	default:
		b.mapper.CPUWrite(addr, val)
	}
}

// oamDMA copies one page of CPU memory into OAM starting at the PPU's
// current OAMADDR, then stalls the CPU for 513 cycles, or 514 if the
// DMA began on an odd CPU cycle.
func (b *Bus) oamDMA(page uint8) {
	base := uint16(page) << 8
	data := make([]uint8, 256)
	for i := range data {
		data[i] = b.Read(base + uint16(i))
	}
	b.ppu.OAMDMALoad(data)

	b.stall = 513
	if b.cycles%2 != 0 {
		b.stall++
	}
}

func readAddress(prompt string) uint16 {
	var a uint16
	fmt.Printf(prompt)
	fmt.Scanf("%04x\n", &a)
	return a
}

// BIOS is a minimal interactive debug console over the whole machine:
// breakpoints, single stepping, memory dumps. It is not part of the
// core's public contract; cmd/gones wires it up behind -debug.
func (b *Bus) BIOS(ctx context.Context) {
	sigQuit := make(chan os.Signal, 1)
	signal.Notify(sigQuit, syscall.SIGINT, syscall.SIGTERM)

	breaks := make(map[uint16]struct{})

	for {
		fmt.Printf("%s\n\n", b.cpu)
		fmt.Println("(B)reak - add breakpoint")
		fmt.Println("(C)lear - clear breakpoints")
		fmt.Println("(R)un - run to completion")
		fmt.Println("(S)tep - step the cpu one instruction")
		fmt.Println("R(e)set - hit the reset button")
		fmt.Println("(M)emory - display a memory range")
		fmt.Println("S(t)ack - show top of stack")
		fmt.Println("(P)C - set program counter")
		fmt.Println("(Q)uit - stop the debug console")
		fmt.Printf("Choice: ")

		var in rune
		fmt.Scanf("%c\n", &in)

		switch in {
		case 'b', 'B':
			breaks[readAddress("Breakpoint (eg: ff15): ")] = struct{}{}
		case 'c', 'C':
			breaks = make(map[uint16]struct{})
		case 'p', 'P':
			b.cpu.SetPC(readAddress("Set PC to what address (eg: 0400)?: "))
		case 'q', 'Q':
			return
		case 'r', 'R':
			cctx, cancel := context.WithCancel(ctx)
			go func(ctx context.Context) {
				for {
					select {
					case <-sigQuit:
						cancel()
					case <-ctx.Done():
						return
					}
				}
			}(cctx)

			for {
				select {
				case <-cctx.Done():
					return
				default:
				}
				n := b.cpu.Step()
				b.ppu.Tick(n)
				if _, ok := breaks[b.cpu.PC()]; ok {
					fmt.Printf("Hit breakpoint at 0x%04x\n", b.cpu.PC())
					return
				}
			}
		case 's', 'S':
			n := b.cpu.Step()
			b.ppu.Tick(n)
		case 't', 'T':
			fmt.Println()
			for i := 0; i < 3; i++ {
				m := b.cpu.StackAddr() + uint16(i) + 1
				if m > 0x01ff {
					break
				}
				fmt.Printf("0x%04x: 0x%02x ", m, b.Read(m))
			}
			fmt.Printf("\n\n")
		case 'e', 'E':
			b.cpu.Reset()
		case 'm', 'M':
			fmt.Println()
			low := readAddress("Low address (eg f00d): ")
			high := readAddress("High address (eg beef): ")
			fmt.Println()

			x := 1
			for i := low; ; i++ {
				fmt.Printf("0x%04x: 0x%02x ", i, b.Read(i))
				if x%5 == 0 {
					fmt.Println()
				}
				if i == high {
					break
				}
				x++
			}
			fmt.Printf("\n\n")
		}
	}
}
