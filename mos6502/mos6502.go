// Package mos6502 implements the MOS Technology 6502 processor used by
// the NES.
//
// This is the pluggable "opcode engine" collaborator described by the
// core: it never touches RAM, the PPU, or the cartridge directly. Every
// memory access goes through the Bus interface supplied to New, and
// cycle bookkeeping is surfaced to the caller via Step so a host (the
// console package here) can tick the PPU in lockstep.
// https://en.wikipedia.org/wiki/MOS_Technology_6502
package mos6502

import (
	"errors"
	"fmt"
	"math/bits"
	"reflect"
	"strings"

	"github.com/golang/glog"
)

// MEM_SIZE is the size of the full 16-bit address space the CPU can
// address through its Bus.
const MEM_SIZE = 1 << 16

// 6502 interrupt vectors.
// https://en.wikipedia.org/wiki/Interrupts_in_65xx_processors
const (
	INT_NMI   = 0xFFFA
	INT_RESET = 0xFFFC
	INT_IRQ   = 0xFFFE
	INT_BRK   = INT_IRQ
)

// 6502 processor status flags.
// https://www.nesdev.org/obelisk-6502-guide/registers.html
const (
	STATUS_FLAG_CARRY             = 1 << 0 // C
	STATUS_FLAG_ZERO              = 1 << 1 // Z
	STATUS_FLAG_INTERRUPT_DISABLE = 1 << 2 // I
	STATUS_FLAG_DECIMAL           = 1 << 3 // D
	STATUS_FLAG_BREAK             = 1 << 4 // B
	UNUSED_STATUS_FLAG            = 1 << 5 // always on
	STATUS_FLAG_OVERFLOW          = 1 << 6 // V
	STATUS_FLAG_NEGATIVE          = 1 << 7 // N
)

const STACK_PAGE = 0x0100

// Bus is everything the CPU needs from its host. The console package
// implements this by decoding the full $0000-$FFFF memory map; the
// CPU itself knows nothing about RAM layout, PPU registers, or the
// cartridge.
type Bus interface {
	Read(addr uint16) uint8
	Write(addr uint16, val uint8)
}

// CPU implements all NES-visible 6502 machine state.
type CPU struct {
	acc    uint8  // accumulator
	x, y   uint8  // index registers
	status uint8  // processor status flags
	sp     uint8  // stack pointer (stack lives at $0100-$01FF)
	pc     uint16 // program counter
	cycles uint8  // cycles consumed by the instruction Step last executed

	bus Bus
}

// New returns a CPU wired to bus and performs a power-on reset,
// reading the reset vector at $FFFC/$FFFD.
func New(bus Bus) *CPU {
	c := &CPU{
		bus:    bus,
		sp:     0xFD,
		status: UNUSED_STATUS_FLAG | STATUS_FLAG_BREAK | STATUS_FLAG_INTERRUPT_DISABLE,
	}
	c.pc = c.Read16(INT_RESET)
	return c
}

func (c *CPU) String() string {
	return fmt.Sprintf("A,X,Y: %4d, %4d, %4d; PC: 0x%04x, SP: 0x%02x, P: %s", c.acc, c.x, c.y, c.pc, c.sp, statusString(c.status))
}

// Read reads a single byte through the bus.
func (c *CPU) Read(addr uint16) uint8 {
	return c.bus.Read(addr)
}

// Write writes a single byte through the bus.
func (c *CPU) Write(addr uint16, val uint8) {
	c.bus.Write(addr, val)
}

// Read16 returns the two bytes at addr, little-endian.
func (c *CPU) Read16(addr uint16) uint16 {
	lsb := uint16(c.Read(addr))
	msb := uint16(c.Read(addr + 1))
	return (msb << 8) | lsb
}

// Write16 stores val at addr, little-endian.
func (c *CPU) Write16(addr, val uint16) {
	c.Write(addr, uint8(val&0x00FF))
	c.Write(addr+1, uint8(val>>8))
}

// memRange returns the bytes from low to high, inclusive. Mostly useful
// for debugging and tests.
func (c *CPU) memRange(low, high uint16) []uint8 {
	ret := make([]uint8, 0, high-low+1)
	for i := low; i <= high; i++ {
		ret = append(ret, c.Read(i))
	}
	return ret
}

// Reset performs the 6502 reset sequence: the interrupt-disable and
// unused flags are forced on, SP drops by 3 and PC is loaded from the
// reset vector.
func (c *CPU) Reset() {
	c.flagsOn(STATUS_FLAG_INTERRUPT_DISABLE | UNUSED_STATUS_FLAG)
	c.sp -= 3
	c.pc = c.Read16(INT_RESET)
	c.cycles = 7
}

// NMI vectors through $FFFA/$FFFB after pushing PC and status, the
// way the PPU's VBlank signal drives the CPU. It is not maskable by
// STATUS_FLAG_INTERRUPT_DISABLE.
func (c *CPU) NMI() {
	c.pushAddress(c.pc)
	c.pushStack(c.status &^ STATUS_FLAG_BREAK)
	c.flagsOn(STATUS_FLAG_INTERRUPT_DISABLE)
	c.pc = c.Read16(INT_NMI)
	c.cycles += 7
}

// IRQ vectors through $FFFE/$FFFF, the same vector BRK uses, but is
// ignored while STATUS_FLAG_INTERRUPT_DISABLE is set.
func (c *CPU) IRQ() {
	if c.status&STATUS_FLAG_INTERRUPT_DISABLE != 0 {
		return
	}
	c.pushAddress(c.pc)
	c.pushStack(c.status &^ STATUS_FLAG_BREAK)
	c.flagsOn(STATUS_FLAG_INTERRUPT_DISABLE)
	c.pc = c.Read16(INT_IRQ)
	c.cycles += 7
}

// StackAddr returns the current address of the stack pointer in page
// one.
func (c *CPU) StackAddr() uint16 {
	return STACK_PAGE + uint16(c.sp)
}

// PC returns the program counter.
func (c *CPU) PC() uint16 { return c.pc }

// SetPC sets the program counter, used by test harnesses and the
// debug console to force execution to a specific entry point.
func (c *CPU) SetPC(addr uint16) { c.pc = addr }

// LoadMem copies data into the address space starting at addr,
// through the Bus, one byte at a time.
func (c *CPU) LoadMem(addr uint16, data []uint8) {
	for i, b := range data {
		c.Write(addr+uint16(i), b)
	}
}

func (c *CPU) pushStack(val uint8) {
	c.Write(c.StackAddr(), val)
	c.sp--
}

func (c *CPU) popStack() uint8 {
	c.sp++
	return c.Read(c.StackAddr())
}

func (c *CPU) pushAddress(addr uint16) {
	c.pushStack(uint8(addr >> 8))
	c.pushStack(uint8(addr & 0x00FF))
}

func (c *CPU) popAddress() uint16 {
	return uint16(c.popStack()) | (uint16(c.popStack()) << 8)
}

var invalidInstruction = errors.New("invalid instruction")

func (c *CPU) getInst() (opcode, error) {
	b := c.Read(c.pc)
	op, ok := opcodes[b]
	if !ok {
		return opcode{}, fmt.Errorf("pc: 0x%04x, inst: 0x%02x - %w", c.pc, b, invalidInstruction)
	}
	return op, nil
}

// NOPCost is the nominal cycle cost attributed to an undocumented
// opcode executed as a no-op.
const NOPCost = 2

// Step executes one instruction and returns the number of cycles it
// consumed, including any extra cycles the addressing mode or a
// taken branch accrued. Undocumented opcodes execute as a one-byte
// no-op at the nominal NOP cost rather than their (unimplemented)
// real semantics; this is logged but never halts execution, since a
// malformed ROM must not be able to abort the process.
func (c *CPU) Step() int {
	c.cycles = 0

	op, err := c.getInst()
	if err != nil {
		glog.Warningf("illegal opcode at 0x%04x: %v; executing as NOP", c.pc, err)
		c.pc++
		c.cycles = NOPCost
		return int(c.cycles)
	}

	c.pc++
	opc := c.pc

	v := reflect.ValueOf(c)
	v.MethodByName(op.name).Call([]reflect.Value{reflect.ValueOf(op.mode)})

	// If the instruction didn't redirect PC itself (branch, jump,
	// call, return, interrupt), skip over its remaining operand
	// bytes now.
	if c.pc == opc {
		c.pc += uint16(op.bytes) - 1
	}

	c.cycles += op.cycles
	return int(c.cycles)
}

func statusString(p uint8) string {
	var sb strings.Builder
	flags := []struct {
		mask uint8
		c    byte
	}{
		{STATUS_FLAG_NEGATIVE, 'N'}, {STATUS_FLAG_OVERFLOW, 'V'}, {UNUSED_STATUS_FLAG, '-'},
		{STATUS_FLAG_BREAK, 'B'}, {STATUS_FLAG_DECIMAL, 'D'}, {STATUS_FLAG_INTERRUPT_DISABLE, 'I'},
		{STATUS_FLAG_ZERO, 'Z'}, {STATUS_FLAG_CARRY, 'C'},
	}
	for _, f := range flags {
		if p&f.mask > 0 {
			sb.WriteByte(f.c)
		} else {
			sb.WriteByte('.')
		}
	}
	return sb.String()
}

// getOperandAddr resolves the effective address for mode, assuming PC
// points at the first operand byte (i.e. the opcode byte has already
// been consumed).
func (c *CPU) getOperandAddr(mode uint8) uint16 {
	var addr uint16
	switch mode {
	case ACCUMULATOR:
		panic("ACCUMULATOR addressing mode has no operand address")
	case IMPLICIT:
		panic("IMPLICIT addressing mode has no operand address")
	case IMMEDIATE:
		addr = c.pc
	case ZERO_PAGE:
		addr = uint16(c.Read(c.pc))
	case ZERO_PAGE_X:
		return uint16(c.Read(c.pc) + c.x)
	case ZERO_PAGE_Y:
		return uint16(c.Read(c.pc) + c.y)
	case ABSOLUTE:
		return c.Read16(c.pc)
	case ABSOLUTE_X:
		a := c.Read16(c.pc)
		addr = a + uint16(c.x)
		c.cycles += extraCycles(a, addr)
	case ABSOLUTE_Y:
		a := c.Read16(c.pc)
		addr = a + uint16(c.y)
		c.cycles += extraCycles(a, addr)
	case INDIRECT:
		return c.Read16(c.Read16(c.pc))
	case INDIRECT_X:
		return c.Read16(uint16(c.Read(c.pc) + c.x))
	case INDIRECT_Y:
		a := c.Read16(uint16(c.Read(c.pc)))
		addr = a + uint16(c.y)
		c.cycles += extraCycles(a, addr)
	case RELATIVE:
		// PC is already past the opcode byte; the offset is
		// relative to the address of the instruction *after*
		// this one.
		addr = (c.pc + 1) + uint16(int8(c.Read(c.pc)))
	default:
		panic("invalid addressing mode")
	}
	return addr
}

// setNegativeAndZeroFlags updates N and Z for the result n.
func (c *CPU) setNegativeAndZeroFlags(n uint8) {
	if n == 0 {
		c.flagsOn(STATUS_FLAG_ZERO)
	} else {
		c.flagsOff(STATUS_FLAG_ZERO)
	}

	if n&0b1000_0000 != 0 {
		c.flagsOn(STATUS_FLAG_NEGATIVE)
	} else {
		c.flagsOff(STATUS_FLAG_NEGATIVE)
	}
}

func (c *CPU) flagsOn(mask uint8) {
	c.status |= mask
}

func (c *CPU) flagsOff(mask uint8) {
	c.status &^= mask
}

// extraCycles returns 1 if addr1 and addr2 fall on different pages,
// 0 otherwise.
func extraCycles(addr1, addr2 uint16) uint8 {
	if addr1&0xFF00 != addr2&0xFF00 {
		return 1
	}
	return 0
}

// branch adjusts PC when (status&mask > 0) == predicate, charging the
// extra cycles a taken/page-crossing branch costs on real hardware.
func (c *CPU) branch(mask uint8, predicate bool) {
	if (c.status&mask > 0) == predicate {
		a := c.getOperandAddr(RELATIVE)
		c.cycles += extraCycles(a, c.pc-1)
		c.cycles++
		c.pc = a
	}
}

// encodeBCD packs a decimal value 0-99 into a two-nibble BCD byte.
func encodeBCD(decimal uint8) uint8 {
	return (decimal/10)<<4 | (decimal % 10)
}

// decodeBCD unpacks a two-nibble BCD byte into a decimal value 0-99.
func decodeBCD(bcd uint8) uint8 {
	return (bcd>>4)*10 + (bcd & 0x0F)
}

// addWithOverflow adds b plus the carry flag into the accumulator,
// setting carry/overflow/negative/zero. In decimal mode this performs
// BCD addition instead, per the 6502's (non-NMOS-bug) documented
// decimal-mode behavior; overflow is left clear in that case.
func (c *CPU) addWithOverflow(b uint8) {
	if c.status&STATUS_FLAG_DECIMAL != 0 {
		sum := uint16(decodeBCD(c.acc)) + uint16(decodeBCD(b)) + uint16(c.status&STATUS_FLAG_CARRY)

		c.flagsOff(STATUS_FLAG_CARRY | STATUS_FLAG_OVERFLOW)
		if sum >= 100 {
			sum -= 100
			c.flagsOn(STATUS_FLAG_CARRY)
		}

		c.acc = encodeBCD(uint8(sum))
		c.setNegativeAndZeroFlags(c.acc)
		return
	}

	res16 := uint16(c.acc) + uint16(b) + uint16(c.status&STATUS_FLAG_CARRY)
	res := uint8(res16)

	var mask uint8
	if res16&0x100 != 0 {
		mask |= STATUS_FLAG_CARRY
	}
	if (c.acc^res)&(b^res)&0x80 != 0 {
		mask |= STATUS_FLAG_OVERFLOW
	}

	c.flagsOff(STATUS_FLAG_CARRY | STATUS_FLAG_OVERFLOW | STATUS_FLAG_NEGATIVE | STATUS_FLAG_ZERO)
	c.flagsOn(mask)

	c.acc = res
	c.setNegativeAndZeroFlags(c.acc)
}

// subWithBorrow performs BCD subtraction for SBC in decimal mode.
func (c *CPU) subWithBorrow(b uint8) {
	diff := int16(decodeBCD(c.acc)) - int16(decodeBCD(b)) - int16(1-(c.status&STATUS_FLAG_CARRY))

	c.flagsOff(STATUS_FLAG_CARRY | STATUS_FLAG_OVERFLOW)
	if diff < 0 {
		diff += 100
	} else {
		c.flagsOn(STATUS_FLAG_CARRY)
	}

	c.acc = encodeBCD(uint8(diff))
	c.setNegativeAndZeroFlags(c.acc)
}

func (c *CPU) baseCMP(a, b uint8) {
	c.setNegativeAndZeroFlags(a - b)
	if a >= b {
		c.flagsOn(STATUS_FLAG_CARRY)
	} else {
		c.flagsOff(STATUS_FLAG_CARRY)
	}
}

func (c *CPU) ADC(mode uint8) { c.addWithOverflow(c.Read(c.getOperandAddr(mode))) }

func (c *CPU) AND(mode uint8) {
	c.acc &= c.Read(c.getOperandAddr(mode))
	c.setNegativeAndZeroFlags(c.acc)
}

func (c *CPU) ASL(mode uint8) {
	var ov, nv uint8
	switch mode {
	case ACCUMULATOR:
		ov = c.acc
		c.acc <<= 1
		nv = c.acc
	default:
		addr := c.getOperandAddr(mode)
		ov = c.Read(addr)
		nv = ov << 1
		c.Write(addr, nv)
	}

	c.flagsOff(STATUS_FLAG_CARRY)
	c.setNegativeAndZeroFlags(nv)
	if ov&0x80 != 0 {
		c.flagsOn(STATUS_FLAG_CARRY)
	}
}

func (c *CPU) BCC(mode uint8) { c.branch(STATUS_FLAG_CARRY, false) }
func (c *CPU) BCS(mode uint8) { c.branch(STATUS_FLAG_CARRY, true) }
func (c *CPU) BEQ(mode uint8) { c.branch(STATUS_FLAG_ZERO, true) }

func (c *CPU) BIT(mode uint8) {
	o := c.Read(c.getOperandAddr(mode))

	c.flagsOff(STATUS_FLAG_NEGATIVE | STATUS_FLAG_OVERFLOW | STATUS_FLAG_ZERO)
	var flags uint8
	if o&c.acc == 0 {
		flags |= STATUS_FLAG_ZERO
	}
	flags |= o & (STATUS_FLAG_NEGATIVE | STATUS_FLAG_OVERFLOW)
	c.flagsOn(flags)
}

func (c *CPU) BMI(mode uint8) { c.branch(STATUS_FLAG_NEGATIVE, true) }
func (c *CPU) BNE(mode uint8) { c.branch(STATUS_FLAG_ZERO, false) }
func (c *CPU) BPL(mode uint8) { c.branch(STATUS_FLAG_NEGATIVE, false) }

func (c *CPU) BRK(mode uint8) {
	c.pushAddress(c.pc + 1)
	c.pushStack(c.status | STATUS_FLAG_BREAK)
	c.flagsOn(STATUS_FLAG_INTERRUPT_DISABLE)
	c.pc = c.Read16(INT_BRK)
}

func (c *CPU) BVC(mode uint8) { c.branch(STATUS_FLAG_OVERFLOW, false) }
func (c *CPU) BVS(mode uint8) { c.branch(STATUS_FLAG_OVERFLOW, true) }

func (c *CPU) CLC(mode uint8) { c.flagsOff(STATUS_FLAG_CARRY) }
func (c *CPU) CLD(mode uint8) { c.flagsOff(STATUS_FLAG_DECIMAL) }
func (c *CPU) CLI(mode uint8) { c.flagsOff(STATUS_FLAG_INTERRUPT_DISABLE) }
func (c *CPU) CLV(mode uint8) { c.flagsOff(STATUS_FLAG_OVERFLOW) }

func (c *CPU) CMP(mode uint8) { c.baseCMP(c.acc, c.Read(c.getOperandAddr(mode))) }
func (c *CPU) CPX(mode uint8) { c.baseCMP(c.x, c.Read(c.getOperandAddr(mode))) }
func (c *CPU) CPY(mode uint8) { c.baseCMP(c.y, c.Read(c.getOperandAddr(mode))) }

func (c *CPU) DEC(mode uint8) {
	a := c.getOperandAddr(mode)
	v := c.Read(a) - 1
	c.Write(a, v)
	c.setNegativeAndZeroFlags(v)
}

func (c *CPU) DEX(mode uint8) { c.x--; c.setNegativeAndZeroFlags(c.x) }
func (c *CPU) DEY(mode uint8) { c.y--; c.setNegativeAndZeroFlags(c.y) }

func (c *CPU) EOR(mode uint8) {
	c.acc ^= c.Read(c.getOperandAddr(mode))
	c.setNegativeAndZeroFlags(c.acc)
}

func (c *CPU) INC(mode uint8) {
	a := c.getOperandAddr(mode)
	v := c.Read(a) + 1
	c.Write(a, v)
	c.setNegativeAndZeroFlags(v)
}

func (c *CPU) INX(mode uint8) { c.x++; c.setNegativeAndZeroFlags(c.x) }
func (c *CPU) INY(mode uint8) { c.y++; c.setNegativeAndZeroFlags(c.y) }

func (c *CPU) JMP(mode uint8) { c.pc = c.getOperandAddr(mode) }

func (c *CPU) JSR(mode uint8) {
	c.pushAddress(c.pc + 1)
	c.pc = c.getOperandAddr(mode)
}

func (c *CPU) LDA(mode uint8) {
	c.acc = c.Read(c.getOperandAddr(mode))
	c.setNegativeAndZeroFlags(c.acc)
}

func (c *CPU) LDX(mode uint8) {
	c.x = c.Read(c.getOperandAddr(mode))
	c.setNegativeAndZeroFlags(c.x)
}

func (c *CPU) LDY(mode uint8) {
	c.y = c.Read(c.getOperandAddr(mode))
	c.setNegativeAndZeroFlags(c.y)
}

func (c *CPU) LSR(mode uint8) {
	var ov, nv uint8
	switch mode {
	case ACCUMULATOR:
		ov = c.acc
		c.acc >>= 1
		nv = c.acc
	default:
		addr := c.getOperandAddr(mode)
		ov = c.Read(addr)
		nv = ov >> 1
		c.Write(addr, nv)
	}

	c.flagsOff(STATUS_FLAG_CARRY)
	c.setNegativeAndZeroFlags(nv)
	if ov&STATUS_FLAG_CARRY != 0 {
		c.flagsOn(STATUS_FLAG_CARRY)
	}
}

func (c *CPU) NOP(mode uint8) {}

func (c *CPU) ORA(mode uint8) {
	c.acc |= c.Read(c.getOperandAddr(mode))
	c.setNegativeAndZeroFlags(c.acc)
}

func (c *CPU) PHA(mode uint8) { c.pushStack(c.acc) }
func (c *CPU) PHP(mode uint8) { c.pushStack(c.status | STATUS_FLAG_BREAK) }

func (c *CPU) PLA(mode uint8) {
	c.acc = c.popStack()
	c.setNegativeAndZeroFlags(c.acc)
}

func (c *CPU) PLP(mode uint8) { c.status = (c.popStack() &^ STATUS_FLAG_BREAK) | UNUSED_STATUS_FLAG }

func (c *CPU) ROL(mode uint8) {
	var ov, nv uint8
	switch mode {
	case ACCUMULATOR:
		ov = c.acc
		c.acc = bits.RotateLeft8(ov, 1)&^STATUS_FLAG_CARRY | (c.status & STATUS_FLAG_CARRY)
		nv = c.acc
	default:
		addr := c.getOperandAddr(mode)
		ov = c.Read(addr)
		nv = bits.RotateLeft8(ov, 1)&^STATUS_FLAG_CARRY | (c.status & STATUS_FLAG_CARRY)
		c.Write(addr, nv)
	}

	c.flagsOff(STATUS_FLAG_CARRY)
	c.setNegativeAndZeroFlags(nv)
	if ov&0x80 != 0 {
		c.flagsOn(STATUS_FLAG_CARRY)
	}
}

func (c *CPU) ROR(mode uint8) {
	var ov, nv uint8
	switch mode {
	case ACCUMULATOR:
		ov = c.acc
		c.acc = bits.RotateLeft8(ov, -1)&^0x80 | ((c.status & STATUS_FLAG_CARRY) << 7)
		nv = c.acc
	default:
		addr := c.getOperandAddr(mode)
		ov = c.Read(addr)
		nv = bits.RotateLeft8(ov, -1)&^0x80 | ((c.status & STATUS_FLAG_CARRY) << 7)
		c.Write(addr, nv)
	}

	c.flagsOff(STATUS_FLAG_CARRY)
	c.setNegativeAndZeroFlags(nv)
	if ov&STATUS_FLAG_CARRY != 0 {
		c.flagsOn(STATUS_FLAG_CARRY)
	}
}

func (c *CPU) RTI(mode uint8) {
	c.status = (c.popStack() &^ STATUS_FLAG_BREAK) | UNUSED_STATUS_FLAG
	c.pc = c.popAddress()
}

func (c *CPU) RTS(mode uint8) { c.pc = c.popAddress() + 1 }

func (c *CPU) SBC(mode uint8) {
	b := c.Read(c.getOperandAddr(mode))
	if c.status&STATUS_FLAG_DECIMAL != 0 {
		c.subWithBorrow(b)
		return
	}
	c.addWithOverflow(^b)
}

func (c *CPU) SEC(mode uint8) { c.flagsOn(STATUS_FLAG_CARRY) }
func (c *CPU) SED(mode uint8) { c.flagsOn(STATUS_FLAG_DECIMAL) }
func (c *CPU) SEI(mode uint8) { c.flagsOn(STATUS_FLAG_INTERRUPT_DISABLE) }

func (c *CPU) STA(mode uint8) { c.Write(c.getOperandAddr(mode), c.acc) }
func (c *CPU) STX(mode uint8) { c.Write(c.getOperandAddr(mode), c.x) }
func (c *CPU) STY(mode uint8) { c.Write(c.getOperandAddr(mode), c.y) }

func (c *CPU) TAX(mode uint8) { c.x = c.acc; c.setNegativeAndZeroFlags(c.x) }
func (c *CPU) TAY(mode uint8) { c.y = c.acc; c.setNegativeAndZeroFlags(c.y) }
func (c *CPU) TSX(mode uint8) { c.x = c.sp; c.setNegativeAndZeroFlags(c.x) }
func (c *CPU) TXA(mode uint8) { c.acc = c.x; c.setNegativeAndZeroFlags(c.acc) }
func (c *CPU) TXS(mode uint8) { c.sp = c.x }
func (c *CPU) TYA(mode uint8) { c.acc = c.y; c.setNegativeAndZeroFlags(c.acc) }

