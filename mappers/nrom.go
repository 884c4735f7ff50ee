package mappers

import (
	"github.com/golang/glog"

	"github.com/bdwalton/gones/nesrom"
)

func init() {
	RegisterMapper(0, newNROM)
}

// nromMapper implements iNES mapper 0 (NROM): no bank switching. A
// cartridge with a single 16 KiB PRG bank mirrors it into both
// $8000-$BFFF and $C000-$FFFF.
type nromMapper struct {
	rom    *nesrom.ROM
	prgRAM []uint8
}

func newNROM(rom *nesrom.ROM) Mapper {
	return &nromMapper{rom: rom, prgRAM: make([]uint8, PRG_RAM_SIZE)}
}

func (m *nromMapper) Name() string { return "NROM" }

func (m *nromMapper) CPURead(addr uint16) uint8 {
	switch {
	case addr >= 0x6000 && addr < 0x8000:
		return m.prgRAM[addr-0x6000]
	case addr >= 0x8000:
		off := int(addr - 0x8000)
		if m.rom.PrgSize() <= PRG_BANK_SIZE {
			off %= PRG_BANK_SIZE
		}
		return m.rom.PrgRead(off)
	}
	return 0
}

func (m *nromMapper) CPUWrite(addr uint16, val uint8) {
	if addr >= 0x6000 && addr < 0x8000 {
		m.prgRAM[addr-0x6000] = val
		return
	}
	glog.V(2).Infof("NROM: ignoring write 0x%02x to PRG ROM at 0x%04x", val, addr)
}

func (m *nromMapper) PPURead(addr uint16) uint8 {
	return m.rom.ChrRead(int(addr))
}

func (m *nromMapper) PPUWrite(addr uint16, val uint8) {
	m.rom.ChrWrite(int(addr), val)
}

func (m *nromMapper) Mirroring() MirrorMode {
	return m.rom.MirroringMode()
}
