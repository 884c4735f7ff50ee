package mappers

import (
	"github.com/bdwalton/gones/nesrom"
)

func init() {
	RegisterMapper(2, newUxROM)
}

// uxromMapper implements iNES mapper 2 (UxROM): a switchable 16 KiB
// low PRG bank and a 16 KiB high bank fixed to the last bank in the
// cartridge. CHR is not bank-switched: PPU accesses go straight to the
// ROM's CHR store (CHR ROM, or 8 KiB of CHR RAM when the header
// reports none).
type uxromMapper struct {
	rom     *nesrom.ROM
	banks   uint8
	prgBank uint8
}

func newUxROM(rom *nesrom.ROM) Mapper {
	return &uxromMapper{rom: rom, banks: uint8(rom.NumPrgBlocks())}
}

func (m *uxromMapper) Name() string { return "UxROM" }

func (m *uxromMapper) CPURead(addr uint16) uint8 {
	switch {
	case addr >= 0x8000 && addr < 0xC000:
		return m.rom.PrgRead(int(m.prgBank)*PRG_BANK_SIZE + int(addr-0x8000))
	case addr >= 0xC000:
		last := m.banks - 1
		return m.rom.PrgRead(int(last)*PRG_BANK_SIZE + int(addr-0xC000))
	}
	return 0
}

func (m *uxromMapper) CPUWrite(addr uint16, val uint8) {
	if addr < 0x8000 {
		return
	}
	// Bus conflicts aside, only as many low bits as there are banks
	// matter; canonical UxROM boards use bits 0-3 or 0-4 depending
	// on PRG size.
	m.prgBank = val % m.banks
}

func (m *uxromMapper) PPURead(addr uint16) uint8 {
	return m.rom.ChrRead(int(addr))
}

func (m *uxromMapper) PPUWrite(addr uint16, val uint8) {
	m.rom.ChrWrite(int(addr), val)
}

func (m *uxromMapper) Mirroring() MirrorMode {
	return m.rom.MirroringMode()
}
