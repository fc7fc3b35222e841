package arm

import (
	"slices"
	"sync/atomic"
	"time"

	"github.com/wnxd/microstub/emulator"
)

type Emulator struct {
	regs      [16]uint32
	cpsr      uint32
	regions   []*region
	codeHooks []*hook
	intrHooks []*hook
	stop      atomic.Bool
	running   bool
	closed    bool
}

type hook struct {
	emu        *Emulator
	typ        emulator.HookType
	code       emulator.CodeCallback
	intr       emulator.InterruptCallback
	data       any
	begin, end uint64
}

func New() *Emulator {
	return &Emulator{cpsr: CPSR_RESET}
}

func (e *Emulator) Close() error {
	e.closed = true
	e.regions = nil
	e.codeHooks = nil
	e.intrHooks = nil
	return nil
}

func (e *Emulator) Arch() emulator.Arch {
	return emulator.ARCH_ARM
}

func (e *Emulator) ByteOrder() emulator.ByteOrder {
	return emulator.BO_LITTLE_ENDIAN
}

func (e *Emulator) RegRead(reg emulator.Reg) (uint64, error) {
	switch {
	case reg >= ARM_REG_R0 && reg <= ARM_REG_PC:
		return uint64(e.regs[reg-ARM_REG_R0]), nil
	case reg == ARM_REG_CPSR:
		return uint64(e.cpsr), nil
	}
	return 0, emulator.ErrRegInvalid
}

func (e *Emulator) RegWrite(reg emulator.Reg, value uint64) error {
	switch {
	case reg >= ARM_REG_R0 && reg <= ARM_REG_PC:
		e.regs[reg-ARM_REG_R0] = uint32(value)
	case reg == ARM_REG_CPSR:
		e.cpsr = uint32(value)
	default:
		return emulator.ErrRegInvalid
	}
	return nil
}

func (e *Emulator) RegReadBatch(regs ...emulator.Reg) ([]uint64, error) {
	vals := make([]uint64, len(regs))
	for i, reg := range regs {
		val, err := e.RegRead(reg)
		if err != nil {
			return nil, err
		}
		vals[i] = val
	}
	return vals, nil
}

func (e *Emulator) RegWriteBatch(regs []emulator.Reg, vals []uint64) error {
	if len(regs) != len(vals) {
		return emulator.ErrRegInvalid
	}
	for i, reg := range regs {
		if err := e.RegWrite(reg, vals[i]); err != nil {
			return err
		}
	}
	return nil
}

func (e *Emulator) Hook(typ emulator.HookType, callback any, data any, begin, end uint64) (emulator.Hook, error) {
	if e.closed {
		return nil, emulator.ErrClosed
	}
	h := &hook{emu: e, typ: typ, data: data, begin: begin, end: end}
	switch typ {
	case emulator.HOOK_TYPE_CODE:
		cb, ok := callback.(emulator.CodeCallback)
		if !ok {
			return nil, emulator.ErrHookCallback
		}
		h.code = cb
		e.codeHooks = append(e.codeHooks, h)
	case emulator.HOOK_TYPE_INTR:
		cb, ok := callback.(emulator.InterruptCallback)
		if !ok {
			return nil, emulator.ErrHookCallback
		}
		h.intr = cb
		e.intrHooks = append(e.intrHooks, h)
	default:
		return nil, emulator.ErrHookType
	}
	return h, nil
}

func (e *Emulator) Stop() error {
	e.stop.Store(true)
	return nil
}

func (e *Emulator) Start(begin, until uint64, timeout time.Duration, count uint64) (emulator.StopCause, error) {
	if e.closed {
		return emulator.StopCause{}, emulator.ErrClosed
	} else if e.running {
		return emulator.StopCause{}, emulator.ErrRunning
	}
	e.running = true
	defer func() { e.running = false }()
	e.stop.Store(false)
	e.regs[15] = uint32(begin)

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	var n uint64
	cause := func(kind emulator.StopKind, addr uint64) (emulator.StopCause, error) {
		return emulator.StopCause{Kind: kind, PC: uint64(e.regs[15]), Addr: addr, Count: n}, nil
	}
	for {
		pc := e.regs[15]
		switch {
		case until != 0 && uint64(pc) == until:
			return cause(emulator.STOP_UNTIL, 0)
		case count != 0 && n >= count:
			return cause(emulator.STOP_COUNT, 0)
		case timeout > 0 && n&0x3FF == 0 && time.Now().After(deadline):
			return cause(emulator.STOP_TIMEOUT, 0)
		}
		e.runCodeHooks(pc)
		if e.stop.Swap(false) {
			return cause(emulator.STOP_REQUESTED, 0)
		}
		word, ok := e.guest(pc, 4, emulator.MEM_PROT_EXEC)
		if !ok {
			return cause(emulator.STOP_MEM_INVALID, uint64(pc))
		}
		f := e.execute(le32(word))
		switch f.kind {
		case faultNone:
		case faultInsn:
			return cause(emulator.STOP_INSN_INVALID, 0)
		case faultMem:
			return cause(emulator.STOP_MEM_INVALID, uint64(f.addr))
		case faultIntr:
			n++
			if len(e.intrHooks) == 0 {
				return cause(emulator.STOP_INTERRUPT, uint64(f.addr))
			}
			e.runIntrHooks(uint64(f.addr))
			if e.stop.Swap(false) {
				return cause(emulator.STOP_REQUESTED, 0)
			}
			continue
		}
		n++
		if e.stop.Swap(false) {
			return cause(emulator.STOP_REQUESTED, 0)
		}
	}
}

func (e *Emulator) runCodeHooks(pc uint32) {
	for i := 0; i < len(e.codeHooks); i++ {
		h := e.codeHooks[i]
		if h.valid(uint64(pc)) {
			h.code(uint64(pc), 4, h.data)
		}
	}
}

func (e *Emulator) runIntrHooks(intno uint64) {
	for i := 0; i < len(e.intrHooks); i++ {
		h := e.intrHooks[i]
		if h.valid(uint64(e.regs[15])) {
			h.intr(intno, h.data)
		}
	}
}

func (h *hook) Close() error {
	switch h.typ {
	case emulator.HOOK_TYPE_CODE:
		h.emu.codeHooks = slices.DeleteFunc(h.emu.codeHooks, func(o *hook) bool { return o == h })
	case emulator.HOOK_TYPE_INTR:
		h.emu.intrHooks = slices.DeleteFunc(h.emu.intrHooks, func(o *hook) bool { return o == h })
	}
	return nil
}

func (h *hook) Type() emulator.HookType {
	return h.typ
}

// valid follows the begin > end means everywhere convention.
func (h *hook) valid(pc uint64) bool {
	if h.begin > h.end {
		return true
	}
	return pc >= h.begin && pc < h.end
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func put32(b []byte, v uint32) {
	b[0], b[1], b[2], b[3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
}
