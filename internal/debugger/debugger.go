package debugger

import (
	"fmt"
	"log/slog"

	"github.com/wnxd/microstub/debugger"
	"github.com/wnxd/microstub/emulator"
)

const DEFAULT_BURST = 4096

// Debugger is the architecture specific half of a target.
type Debugger interface {
	debugger.Debugger
	debugger.BaseOps
	debugger.BreakpointOps
	debugger.ResumeOps
	PC() emulator.Reg
	// RegList is the fixed order registers are transferred in.
	RegList() []emulator.Reg
	PackRegisters(vals []uint64) debugger.Registers
	UnpackRegisters(regs debugger.Registers) ([]uint64, error)
	// Syscall handles a software interrupt. A nil reason lets the program
	// continue.
	Syscall(intno uint64) (debugger.StopReason, error)
}

type Dbg struct {
	impl Debugger
	emu  emulator.Emulator
	log  *slog.Logger
	hookManger
	taskManager
}

func (dbg *Dbg) Init(impl Debugger, emu emulator.Emulator, opts ...debugger.Option) error {
	options := debugger.Options{Burst: DEFAULT_BURST}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Burst == 0 {
		options.Burst = DEFAULT_BURST
	}
	dbg.impl = impl
	dbg.emu = emu
	dbg.log = options.Logger
	if dbg.log == nil {
		dbg.log = slog.New(slog.DiscardHandler)
	}
	if err := dbg.hookManger.ctor(dbg.impl); err != nil {
		return err
	}
	if options.Entry != 0 {
		if err := emu.RegWrite(impl.PC(), options.Entry); err != nil {
			dbg.hookManger.dtor()
			return debugger.NewEngineAccessError("write", impl.PC(), err)
		}
	}
	dbg.taskManager.ctor(options.Burst)
	return nil
}

func (dbg *Dbg) Close() error {
	dbg.hookManger.dtor()
	return nil
}

func (dbg *Dbg) Emulator() emulator.Emulator {
	return dbg.emu
}

func (dbg *Dbg) Base() debugger.BaseOps {
	return dbg.impl
}

func (dbg *Dbg) SupportBreakpoints() debugger.BreakpointOps {
	return dbg.impl
}

func (dbg *Dbg) SupportResume() debugger.ResumeOps {
	return dbg.impl
}

func hex(v uint64) string {
	return fmt.Sprintf("%#08x", v)
}
