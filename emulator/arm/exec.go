package arm

import (
	"math/bits"

	"github.com/wnxd/microstub/emulator"
)

type faultKind int

const (
	faultNone faultKind = iota
	faultInsn
	faultMem
	faultIntr
)

type fault struct {
	kind faultKind
	addr uint32
}

const (
	opAND = iota
	opEOR
	opSUB
	opRSB
	opADD
	opADC
	opSBC
	opRSC
	opTST
	opTEQ
	opCMP
	opCMN
	opORR
	opMOV
	opBIC
	opMVN
)

// execute runs one instruction. Registers are only updated once the
// instruction can no longer fault.
func (e *Emulator) execute(insn uint32) fault {
	if !e.cond(insn >> 28) {
		e.regs[15] += 4
		return fault{}
	}
	switch {
	case insn&0x0FFFFFF0 == 0x012FFF10:
		return e.bx(insn)
	case insn&0x0FC000F0 == 0x00000090:
		return e.mul(insn)
	case insn&0x0FBF0FFF == 0x010F0000:
		return e.mrs(insn)
	case insn&0x0DB0F000 == 0x0120F000:
		return e.msr(insn)
	case insn&0x0C000000 == 0x00000000:
		if insn&0x02000090 == 0x00000090 {
			return fault{kind: faultInsn}
		}
		return e.dataProcessing(insn)
	case insn&0x0C000000 == 0x04000000:
		if insn&0x02000010 == 0x02000010 {
			return fault{kind: faultInsn}
		}
		return e.singleTransfer(insn)
	case insn&0x0E000000 == 0x08000000:
		return e.blockTransfer(insn)
	case insn&0x0E000000 == 0x0A000000:
		return e.branch(insn)
	case insn&0x0F000000 == 0x0F000000:
		e.regs[15] += 4
		return fault{kind: faultIntr, addr: insn & 0x00FFFFFF}
	}
	return fault{kind: faultInsn}
}

func (e *Emulator) cond(c uint32) bool {
	n := e.cpsr&CPSR_N != 0
	z := e.cpsr&CPSR_Z != 0
	cf := e.cpsr&CPSR_C != 0
	v := e.cpsr&CPSR_V != 0
	switch c {
	case 0x0:
		return z
	case 0x1:
		return !z
	case 0x2:
		return cf
	case 0x3:
		return !cf
	case 0x4:
		return n
	case 0x5:
		return !n
	case 0x6:
		return v
	case 0x7:
		return !v
	case 0x8:
		return cf && !z
	case 0x9:
		return !cf || z
	case 0xA:
		return n == v
	case 0xB:
		return n != v
	case 0xC:
		return !z && n == v
	case 0xD:
		return z || n != v
	case 0xE:
		return true
	}
	// 0xF is the unconditional space, which ARMv4 leaves undefined.
	return false
}

// reg reads a register as an operand, where pc reads 8 bytes ahead.
func (e *Emulator) reg(r uint32) uint32 {
	if r == 15 {
		return e.regs[15] + 8
	}
	return e.regs[r]
}

func (e *Emulator) carry() bool {
	return e.cpsr&CPSR_C != 0
}

func (e *Emulator) setNZ(res uint32) {
	e.cpsr &^= CPSR_N | CPSR_Z
	if res&0x80000000 != 0 {
		e.cpsr |= CPSR_N
	}
	if res == 0 {
		e.cpsr |= CPSR_Z
	}
}

func (e *Emulator) setCV(c, v bool) {
	e.cpsr &^= CPSR_C | CPSR_V
	if c {
		e.cpsr |= CPSR_C
	}
	if v {
		e.cpsr |= CPSR_V
	}
}

func (e *Emulator) setC(c bool) {
	e.cpsr &^= CPSR_C
	if c {
		e.cpsr |= CPSR_C
	}
}

// shift applies an ARM barrel shifter operation. imm selects the immediate
// encoding, where an amount of zero means 32 for LSR/ASR and RRX for ROR.
func shift(val uint32, typ uint32, amount uint32, imm bool, c bool) (uint32, bool) {
	switch typ {
	case 0: // LSL
		switch {
		case amount == 0:
			return val, c
		case amount < 32:
			return val << amount, val>>(32-amount)&1 != 0
		case amount == 32:
			return 0, val&1 != 0
		}
		return 0, false
	case 1: // LSR
		if imm && amount == 0 {
			amount = 32
		}
		switch {
		case amount == 0:
			return val, c
		case amount < 32:
			return val >> amount, val>>(amount-1)&1 != 0
		case amount == 32:
			return 0, val>>31 != 0
		}
		return 0, false
	case 2: // ASR
		if imm && amount == 0 {
			amount = 32
		}
		switch {
		case amount == 0:
			return val, c
		case amount < 32:
			return uint32(int32(val) >> amount), val>>(amount-1)&1 != 0
		}
		return uint32(int32(val) >> 31), val>>31 != 0
	default: // ROR
		if imm && amount == 0 {
			var in uint32
			if c {
				in = 1 << 31
			}
			return in | val>>1, val&1 != 0
		}
		switch {
		case amount == 0:
			return val, c
		case amount&31 == 0:
			return val, val>>31 != 0
		}
		amount &= 31
		return bits.RotateLeft32(val, -int(amount)), val>>(amount-1)&1 != 0
	}
}

func (e *Emulator) operand2(insn uint32) (uint32, bool) {
	if insn&(1<<25) != 0 {
		rot := (insn >> 8 & 0xF) * 2
		val := bits.RotateLeft32(insn&0xFF, -int(rot))
		if rot == 0 {
			return val, e.carry()
		}
		return val, val>>31 != 0
	}
	rm := insn & 0xF
	typ := insn >> 5 & 3
	if insn&0x10 != 0 {
		val := e.reg(rm)
		if rm == 15 {
			val += 4
		}
		return shift(val, typ, e.regs[insn>>8&0xF]&0xFF, false, e.carry())
	}
	return shift(e.reg(rm), typ, insn>>7&0x1F, true, e.carry())
}

func addWithCarry(a, b uint32, cin bool) (uint32, bool, bool) {
	sum := uint64(a) + uint64(b)
	if cin {
		sum++
	}
	res := uint32(sum)
	return res, sum>>32 != 0, ((a^res)&(b^res))>>31 != 0
}

func (e *Emulator) dataProcessing(insn uint32) fault {
	op := insn >> 21 & 0xF
	s := insn&(1<<20) != 0
	rn := e.reg(insn >> 16 & 0xF)
	rd := insn >> 12 & 0xF
	op2, sc := e.operand2(insn)
	if op >= opTST && op <= opCMN && !s {
		return fault{kind: faultInsn}
	}
	if rd == 15 && s {
		// Would copy SPSR into CPSR, which this core does not model.
		return fault{kind: faultInsn}
	}

	var res uint32
	var c, v bool
	arith := true
	switch op {
	case opAND, opTST:
		res, arith = rn&op2, false
	case opEOR, opTEQ:
		res, arith = rn^op2, false
	case opSUB, opCMP:
		res, c, v = addWithCarry(rn, ^op2, true)
	case opRSB:
		res, c, v = addWithCarry(op2, ^rn, true)
	case opADD, opCMN:
		res, c, v = addWithCarry(rn, op2, false)
	case opADC:
		res, c, v = addWithCarry(rn, op2, e.carry())
	case opSBC:
		res, c, v = addWithCarry(rn, ^op2, e.carry())
	case opRSC:
		res, c, v = addWithCarry(op2, ^rn, e.carry())
	case opORR:
		res, arith = rn|op2, false
	case opMOV:
		res, arith = op2, false
	case opBIC:
		res, arith = rn&^op2, false
	case opMVN:
		res, arith = ^op2, false
	}
	if s {
		e.setNZ(res)
		if arith {
			e.setCV(c, v)
		} else {
			e.setC(sc)
		}
	}
	if op >= opTST && op <= opCMN {
		e.regs[15] += 4
		return fault{}
	}
	e.writeReg(rd, res)
	return fault{}
}

// writeReg stores a result and advances pc unless the result is pc itself.
func (e *Emulator) writeReg(rd uint32, val uint32) {
	if rd == 15 {
		e.regs[15] = val &^ 3
		return
	}
	e.regs[rd] = val
	e.regs[15] += 4
}

func (e *Emulator) mul(insn uint32) fault {
	rd := insn >> 16 & 0xF
	res := e.regs[insn&0xF] * e.regs[insn>>8&0xF]
	if insn&(1<<21) != 0 {
		res += e.regs[insn>>12&0xF]
	}
	if rd == 15 {
		return fault{kind: faultInsn}
	}
	if insn&(1<<20) != 0 {
		e.setNZ(res)
	}
	e.writeReg(rd, res)
	return fault{}
}

func (e *Emulator) mrs(insn uint32) fault {
	if insn&(1<<22) != 0 {
		return fault{kind: faultInsn}
	}
	e.writeReg(insn>>12&0xF, e.cpsr)
	return fault{}
}

func (e *Emulator) msr(insn uint32) fault {
	if insn&(1<<22) != 0 {
		return fault{kind: faultInsn}
	}
	var val uint32
	if insn&(1<<25) != 0 {
		val = bits.RotateLeft32(insn&0xFF, -int((insn>>8&0xF)*2))
	} else {
		val = e.regs[insn&0xF]
	}
	var mask uint32
	if insn&(1<<19) != 0 {
		mask |= 0xFF000000
	}
	if insn&(1<<16) != 0 {
		mask |= 0x000000FF
	}
	next := e.cpsr&^mask | val&mask
	if !ValidMode(next) || next&CPSR_T != 0 {
		return fault{kind: faultInsn}
	}
	e.cpsr = next
	e.regs[15] += 4
	return fault{}
}

func (e *Emulator) bx(insn uint32) fault {
	target := e.reg(insn & 0xF)
	if target&1 != 0 {
		// Thumb state is not implemented.
		return fault{kind: faultInsn}
	}
	e.regs[15] = target &^ 3
	return fault{}
}

func (e *Emulator) branch(insn uint32) fault {
	off := int32(insn<<8) >> 6
	pc := e.regs[15]
	if insn&(1<<24) != 0 {
		e.regs[14] = pc + 4
	}
	e.regs[15] = pc + 8 + uint32(off)
	return fault{}
}

func (e *Emulator) singleTransfer(insn uint32) fault {
	p := insn&(1<<24) != 0
	u := insn&(1<<23) != 0
	b := insn&(1<<22) != 0
	w := insn&(1<<21) != 0
	l := insn&(1<<20) != 0
	rnIdx := insn >> 16 & 0xF
	rd := insn >> 12 & 0xF
	base := e.reg(rnIdx)

	var off uint32
	if insn&(1<<25) == 0 {
		off = insn & 0xFFF
	} else {
		off, _ = shift(e.reg(insn&0xF), insn>>5&3, insn>>7&0x1F, true, e.carry())
	}
	next := base + off
	if !u {
		next = base - off
	}
	addr := base
	if p {
		addr = next
	}
	writeback := (!p || w) && rnIdx != 15

	var val uint32
	switch {
	case l && b:
		mem, ok := e.guest(addr, 1, emulator.MEM_PROT_READ)
		if !ok {
			return fault{kind: faultMem, addr: addr}
		}
		val = uint32(mem[0])
	case l:
		mem, ok := e.guest(addr&^3, 4, emulator.MEM_PROT_READ)
		if !ok {
			return fault{kind: faultMem, addr: addr}
		}
		val = bits.RotateLeft32(le32(mem), -int(addr&3)*8)
	case b:
		mem, ok := e.guest(addr, 1, emulator.MEM_PROT_WRITE)
		if !ok {
			return fault{kind: faultMem, addr: addr}
		}
		mem[0] = byte(e.reg(rd))
	default:
		mem, ok := e.guest(addr&^3, 4, emulator.MEM_PROT_WRITE)
		if !ok {
			return fault{kind: faultMem, addr: addr}
		}
		put32(mem, e.reg(rd))
	}
	if writeback {
		e.regs[rnIdx] = next
	}
	if l {
		e.writeReg(rd, val)
	} else {
		e.regs[15] += 4
	}
	return fault{}
}

func (e *Emulator) blockTransfer(insn uint32) fault {
	p := insn&(1<<24) != 0
	u := insn&(1<<23) != 0
	w := insn&(1<<21) != 0
	l := insn&(1<<20) != 0
	rnIdx := insn >> 16 & 0xF
	list := insn & 0xFFFF
	if insn&(1<<22) != 0 || list == 0 || rnIdx == 15 {
		return fault{kind: faultInsn}
	}
	base := e.regs[rnIdx]
	size := uint32(bits.OnesCount32(list)) * 4

	var start, next uint32
	switch {
	case u && !p:
		start, next = base, base+size
	case u && p:
		start, next = base+4, base+size
	case !u && !p:
		start, next = base-size+4, base-size
	default:
		start, next = base-size, base-size
	}
	prot := emulator.MEM_PROT_WRITE
	if l {
		prot = emulator.MEM_PROT_READ
	}
	mem, ok := e.guest(start&^3, size, prot)
	if !ok {
		return fault{kind: faultMem, addr: start}
	}

	var vals [16]uint32
	off := 0
	for r := uint32(0); r < 16; r++ {
		if list&(1<<r) == 0 {
			continue
		}
		if l {
			vals[r] = le32(mem[off:])
		} else {
			put32(mem[off:], e.reg(r))
		}
		off += 4
	}
	if w {
		e.regs[rnIdx] = next
	}
	if !l {
		e.regs[15] += 4
		return fault{}
	}
	for r := uint32(0); r < 15; r++ {
		if list&(1<<r) != 0 {
			e.regs[r] = vals[r]
		}
	}
	if list&(1<<15) != 0 {
		e.regs[15] = vals[15] &^ 3
	} else {
		e.regs[15] += 4
	}
	return fault{}
}
