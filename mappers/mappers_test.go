package mappers

import (
	"bytes"
	"testing"

	"github.com/bdwalton/gones/nesrom"
)

// makeROM builds a minimal iNES image in memory: prgBlocks 16 KiB PRG
// banks, chrBlocks 8 KiB CHR banks (0 means CHR RAM), mapper id split
// across flags6/flags7.
func makeROM(t *testing.T, mapperID uint8, prgBlocks, chrBlocks uint8) *nesrom.ROM {
	t.Helper()

	var buf bytes.Buffer
	buf.WriteString("NES\x1A")
	buf.WriteByte(prgBlocks)
	buf.WriteByte(chrBlocks)
	buf.WriteByte(mapperID << 4) // flags6: low nibble of mapper id
	buf.WriteByte(mapperID & 0xF0)
	for i := 0; i < 8; i++ {
		buf.WriteByte(0)
	}

	for i := uint8(0); i < prgBlocks; i++ {
		block := make([]byte, nesrom.PRG_BLOCK_SIZE)
		for j := range block {
			block[j] = byte(i)
		}
		buf.Write(block)
	}

	for i := uint8(0); i < chrBlocks; i++ {
		buf.Write(make([]byte, nesrom.CHR_BLOCK_SIZE))
	}

	rom, err := nesrom.New(&buf)
	if err != nil {
		t.Fatalf("nesrom.New: %v", err)
	}
	return rom
}

func TestGetUnsupportedMapper(t *testing.T) {
	rom := makeROM(t, 0xFF, 1, 1)
	if _, err := Get(rom); err == nil {
		t.Errorf("Get with unsupported mapper id: want error, got nil")
	}
}

func TestGetKnownMappers(t *testing.T) {
	for _, id := range []uint8{0, 1, 2} {
		rom := makeROM(t, id, 2, 1)
		m, err := Get(rom)
		if err != nil {
			t.Fatalf("Get(mapper %d): unexpected error: %v", id, err)
		}
		if m == nil {
			t.Fatalf("Get(mapper %d): nil mapper", id)
		}
	}
}

func TestNROMMirrorsSingleBank(t *testing.T) {
	rom := makeROM(t, 0, 1, 1)
	m, err := Get(rom)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	low := m.CPURead(0x8000)
	high := m.CPURead(0xC000)
	if low != high {
		t.Errorf("NROM single-bank mirroring: $8000=%d, $C000=%d, want equal", low, high)
	}
}

func TestNROMPrgRAM(t *testing.T) {
	rom := makeROM(t, 0, 1, 1)
	m, _ := Get(rom)

	m.CPUWrite(0x6000, 0x42)
	if got := m.CPURead(0x6000); got != 0x42 {
		t.Errorf("NROM PRG RAM roundtrip: got %d, want 0x42", got)
	}
}

func TestUxROMBankSwitch(t *testing.T) {
	rom := makeROM(t, 2, 4, 0)
	m, err := Get(rom)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	// High bank is always fixed to the last (4th, index 3) bank.
	if got := m.CPURead(0xC000); got != 3 {
		t.Errorf("UxROM fixed high bank: got %d, want 3", got)
	}

	m.CPUWrite(0x8000, 2)
	if got := m.CPURead(0x8000); got != 2 {
		t.Errorf("UxROM switched low bank: got %d, want 2", got)
	}
	if got := m.CPURead(0xC000); got != 3 {
		t.Errorf("UxROM fixed high bank after switch: got %d, want 3", got)
	}
}

// TestMMC1FiveWriteCommit verifies that a control-register write only
// takes effect after the fifth sequential bit-0 write, and that the
// bits are accumulated LSB-first.
func TestMMC1FiveWriteCommit(t *testing.T) {
	rom := makeROM(t, 1, 4, 2)
	mi, err := Get(rom)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	m := mi.(*mmc1Mapper)

	// Bits 1,0,1,0,0 (LSB of each write, in write order) assembles to
	// 0b00101 = 5 once shifted in over five writes.
	bits := []uint8{1, 0, 1, 0, 0}
	for i, b := range bits {
		m.CPUWrite(0x8000, b)
		if i < len(bits)-1 && m.shiftCount == 0 {
			t.Fatalf("write %d: shift register committed early", i)
		}
	}

	if m.prgMode != 1 {
		t.Errorf("control register after 5 writes: prgMode = %d, want 1 (bits 2-3 of 5)", m.prgMode)
	}
	if m.shiftCount != 0 {
		t.Errorf("shift register not reset after commit: shiftCount = %d", m.shiftCount)
	}

	// A sixth write starts a fresh sequence; it must not retroactively
	// alter the already-committed register.
	prevMode := m.prgMode
	m.CPUWrite(0x8000, 1)
	if m.prgMode != prevMode {
		t.Errorf("single write after commit altered prgMode: got %d, want unchanged %d", m.prgMode, prevMode)
	}
}

func TestMMC1ResetBit(t *testing.T) {
	rom := makeROM(t, 1, 4, 2)
	mi, _ := Get(rom)
	m := mi.(*mmc1Mapper)

	m.CPUWrite(0x8000, 1)
	m.CPUWrite(0x8000, 0x80) // bit 7 set: reset mid-sequence
	if m.shiftCount != 0 {
		t.Errorf("reset write: shiftCount = %d, want 0", m.shiftCount)
	}
	if m.prgMode != mmc1PRGFixHigh {
		t.Errorf("reset write: prgMode = %d, want fix-high (%d)", m.prgMode, mmc1PRGFixHigh)
	}
}

func TestMMC1PRGBankSelect(t *testing.T) {
	rom := makeROM(t, 1, 4, 2)
	mi, _ := Get(rom)
	m := mi.(*mmc1Mapper)

	writeMMC1 := func(addr uint16, val uint8) {
		for i := 0; i < 5; i++ {
			m.CPUWrite(addr, (val>>i)&1)
		}
	}

	// Control register: prgMode = fix-low (2), chrMode = 8K (0).
	writeMMC1(0x8000, 0x08)
	// Select PRG bank 2 via $E000.
	writeMMC1(0xE000, 0x02)

	if got := m.CPURead(0x8000); got != 0 {
		t.Errorf("fix-low mode: $8000 bank = %d, want 0", got)
	}
	if got := m.CPURead(0xC000); got != 2 {
		t.Errorf("fix-low mode: $C000 bank = %d, want 2 (selected)", got)
	}
}
