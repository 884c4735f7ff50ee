// package nesrom implements support for the NES (iNES, NES2) ROM
// format. https://www.nesdev.org/wiki/INES
package nesrom

import (
	"fmt"
	"io"
	"strings"

	"github.com/golang/glog"
)

type PlayChoicePROM struct {
	Data       [16]byte
	CounterOut [16]byte
}

// ROM is the loaded, decoded contents of an iNES/NES 2.0 ROM image:
// PRG and CHR data plus the metadata mappers need to interpret them
// (bank counts, mirroring, save RAM, submapper). New returns one of
// these; the mappers package turns it into a running Mapper.
type ROM struct {
	h         *header
	trainer   []byte          // if present
	prg       []byte          // 16384 * x bytes; x from header
	chr       []byte          // 8192 * y bytes; y from header
	chrRAM    []byte          // allocated when the header reports no CHR ROM
	pcInstRom []byte          // if present
	pcPROM    *PlayChoicePROM // if present; often missing - see PC10 ROM-Images
}

const (
	HEADER_SIZE    = 16
	TRAINER_SIZE   = 512
	PRG_BLOCK_SIZE = 16384
	CHR_BLOCK_SIZE = 8192
	CHR_RAM_SIZE   = 8192
	PC_INST_SIZE   = 8192
	PC_PROM_SIZE   = 32
)

// New reads and parses an iNES/NES 2.0 ROM image from r.
func New(r io.Reader) (*ROM, error) {
	hbytes := make([]byte, HEADER_SIZE)
	if n, err := io.ReadFull(r, hbytes); n != HEADER_SIZE || err != nil {
		return nil, fmt.Errorf("couldn't read header: %w", err)
	}

	i := &ROM{h: parseHeader(hbytes)}
	if !i.h.isINesFormat() {
		return nil, fmt.Errorf("not an iNES/NES 2.0 image: bad magic %q", i.h.constant)
	}
	if i.h.isNES2Format() {
		glog.V(1).Infof("loading NES 2.0 image: mapper %d, submapper %d", i.h.extendedMapperNum(), i.h.submapper())
	}

	if i.h.hasTrainer() {
		i.trainer = make([]byte, TRAINER_SIZE)
		if n, err := io.ReadFull(r, i.trainer); n != TRAINER_SIZE || err != nil {
			return nil, fmt.Errorf("error reading trainer data: %w", err)
		}
	}

	s := PRG_BLOCK_SIZE * int(i.h.prgSizeBlocks())
	i.prg = make([]byte, s)
	if n, err := io.ReadFull(r, i.prg); n != s || err != nil {
		return nil, fmt.Errorf("error reading PRG ROM (read %d, wanted %d): %w", n, s, err)
	}

	if i.h.hasChrRAM() {
		glog.V(1).Infof("no CHR ROM in header, allocating %d bytes of CHR RAM", CHR_RAM_SIZE)
		i.chrRAM = make([]byte, CHR_RAM_SIZE)
	} else {
		s = CHR_BLOCK_SIZE * int(i.h.chrSizeBlocks())
		i.chr = make([]byte, s)
		if n, err := io.ReadFull(r, i.chr); n != s || err != nil {
			return nil, fmt.Errorf("error reading CHR ROM (read %d, wanted %d): %w", n, s, err)
		}
	}

	if i.h.hasPlayChoice() {
		i.pcInstRom = make([]byte, PC_INST_SIZE)
		if n, err := io.ReadFull(r, i.pcInstRom); n != PC_INST_SIZE || err != nil {
			glog.Warningf("PlayChoice header set but INST ROM missing/short (n=%d, wanted %d): %v", n, PC_INST_SIZE, err)
		} else {
			pcprom := make([]byte, PC_PROM_SIZE)
			if n, err := io.ReadFull(r, pcprom); n != PC_PROM_SIZE || err != nil {
				glog.Warningf("PlayChoice INST ROM present but PROM missing/short (n=%d, wanted %d): %v", n, PC_PROM_SIZE, err)
			}
		}
	}

	return i, nil
}

func (r *ROM) NumPrgBlocks() uint16 {
	return r.h.prgSizeBlocks()
}

func (r *ROM) NumChrBlocks() uint16 {
	return r.h.chrSizeBlocks()
}

func (r *ROM) String() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%s\n", r.h))
	if r.h.hasTrainer() {
		sb.WriteString(fmt.Sprintf("Trainer: %v\n", r.trainer))
	}

	sb.WriteString(fmt.Sprintf("PRG: %d bytes\n", len(r.prg)))
	sb.WriteString(fmt.Sprintf("CHR: %d bytes (RAM: %t)\n", len(r.chr)+len(r.chrRAM), r.HasChrRAM()))

	return sb.String()
}

// PrgSize returns the length of the PRG ROM in bytes.
func (r *ROM) PrgSize() int { return len(r.prg) }

// ChrSize returns the length of the CHR ROM or RAM in bytes.
func (r *ROM) ChrSize() int {
	if r.HasChrRAM() {
		return len(r.chrRAM)
	}
	return len(r.chr)
}

// PrgRead reads a byte at a mapper-resolved offset into PRG ROM. The
// offset is a plain int, not a uint16, because mappers like MMC1
// address up to 512 KiB of banked PRG ROM, well past the CPU's
// 16-bit address space.
func (r *ROM) PrgRead(offset int) uint8 {
	return r.prg[offset%len(r.prg)]
}

func (r *ROM) PrgWrite(offset int, val uint8) {
	r.prg[offset%len(r.prg)] = val
}

// ChrRead reads from CHR ROM or, when the cartridge has none, CHR
// RAM, at a mapper-resolved offset (see PrgRead).
func (r *ROM) ChrRead(offset int) uint8 {
	if r.HasChrRAM() {
		return r.chrRAM[offset%len(r.chrRAM)]
	}
	return r.chr[offset%len(r.chr)]
}

// ChrWrite writes to CHR RAM; it is a no-op against CHR ROM, which
// some boards wire PPU writes to regardless.
func (r *ROM) ChrWrite(offset int, val uint8) {
	if !r.HasChrRAM() {
		return
	}
	r.chrRAM[offset%len(r.chrRAM)] = val
}

// HasChrRAM reports whether this cartridge supplies CHR RAM instead
// of CHR ROM.
func (r *ROM) HasChrRAM() bool {
	return r.chrRAM != nil
}

func (r *ROM) MapperNum() uint16 {
	return r.h.extendedMapperNum()
}

// Submapper returns the NES 2.0 submapper number, or 0 for iNES 1.0
// images.
func (r *ROM) Submapper() uint8 {
	return r.h.submapper()
}

func (r *ROM) MirroringMode() uint8 {
	return r.h.mirroringMode()
}

func (r *ROM) HasSaveRAM() bool {
	return r.h.hasPrgRAM()
}

// PrgRAMSize returns the size, in 8 KB units, of battery-backed PRG
// RAM this cartridge reports.
func (r *ROM) PrgRAMSize() uint8 {
	return r.h.prgRAMSize()
}
