// Package mappers implements and registers the cartridge mapper
// variants referenced numerically by iNES and NES 2.0 ROM files.
//
// Each mapper is a tagged-variant implementation of the Mapper
// interface rather than a shared base class with virtual dispatch:
// NROM, MMC1-class, and UxROM-class each own their own bank-selection
// state and know nothing about each other.
package mappers

import (
	"fmt"

	"github.com/bdwalton/gones/nesrom"
)

// MirrorMode identifies how the four logical nametables alias onto
// the two physical 1 KiB nametables (or four independent ones).
type MirrorMode = uint8

const (
	MirrorHorizontal = nesrom.MIRROR_HORIZONTAL
	MirrorVertical   = nesrom.MIRROR_VERTICAL
	MirrorFourScreen = nesrom.MIRROR_FOUR_SCREEN
)

const (
	PRG_BANK_SIZE = 16384
	CHR_BANK_SIZE = 8192
	PRG_RAM_SIZE  = 8192
)

// Mapper translates CPU addresses in $6000-$FFFF and PPU addresses in
// $0000-$1FFF into cartridge ROM/RAM offsets, and reports the
// cartridge's current nametable mirroring policy.
type Mapper interface {
	CPURead(addr uint16) uint8
	CPUWrite(addr uint16, val uint8)
	PPURead(addr uint16) uint8
	PPUWrite(addr uint16, val uint8)
	Mirroring() MirrorMode
	Name() string
}

type newFunc func(rom *nesrom.ROM) Mapper

// A global registry of mapper constructors, keyed by iNES mapper id.
var registry = map[uint16]newFunc{}

// RegisterMapper makes a mapper variant available to Get. Mapper
// implementations call this from an init function.
func RegisterMapper(id uint16, f newFunc) {
	if _, ok := registry[id]; ok {
		panic(fmt.Sprintf("mappers: id %d already registered", id))
	}
	registry[id] = f
}

// Get constructs the Mapper appropriate for rom's mapper id, or
// returns an error if the id isn't supported by this runtime. Per the
// iNES loader contract, an unsupported mapper is a LoadError, not a
// panic.
func Get(rom *nesrom.ROM) (Mapper, error) {
	id := rom.MapperNum()
	f, ok := registry[id]
	if !ok {
		return nil, fmt.Errorf("mappers: unsupported mapper id %d", id)
	}
	return f(rom), nil
}
