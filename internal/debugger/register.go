package debugger

import (
	"github.com/wnxd/microstub/debugger"
)

func (dbg *Dbg) ReadRegisters() (debugger.Registers, error) {
	list := dbg.impl.RegList()
	vals := make([]uint64, len(list))
	for i, reg := range list {
		val, err := dbg.emu.RegRead(reg)
		if err != nil {
			return debugger.Registers{}, debugger.NewEngineAccessError("read", reg, err)
		}
		vals[i] = val
	}
	return dbg.impl.PackRegisters(vals), nil
}

// WriteRegisters validates the whole snapshot first, so a rejected value
// never leaves a partial write behind. An engine failure midway still can.
func (dbg *Dbg) WriteRegisters(regs debugger.Registers) error {
	vals, err := dbg.impl.UnpackRegisters(regs)
	if err != nil {
		return err
	}
	for i, reg := range dbg.impl.RegList() {
		if err := dbg.emu.RegWrite(reg, vals[i]); err != nil {
			return debugger.NewEngineAccessError("write", reg, err)
		}
	}
	return nil
}
