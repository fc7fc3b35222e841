package debugger

import (
	"github.com/wnxd/microstub/debugger"
	"github.com/wnxd/microstub/emulator"
)

func (dbg *Dbg) ReadAddrs(addr uint64, data []byte) error {
	size := uint64(len(data))
	if err := dbg.checkRange("read", addr, size, emulator.MEM_PROT_READ); err != nil {
		return err
	}
	b, err := dbg.emu.MemRead(addr, size)
	if err != nil {
		return debugger.NewMemoryAccessError("read", addr, size, err)
	}
	copy(data, b)
	return nil
}

func (dbg *Dbg) WriteAddrs(addr uint64, data []byte) error {
	size := uint64(len(data))
	if err := dbg.checkRange("write", addr, size, emulator.MEM_PROT_WRITE); err != nil {
		return err
	}
	if err := dbg.emu.MemWrite(addr, data); err != nil {
		return debugger.NewMemoryAccessError("write", addr, size, err)
	}
	return nil
}

// checkRange rejects the whole access up front so nothing is transferred
// when any byte of it would fail.
func (dbg *Dbg) checkRange(op string, addr, size uint64, prot emulator.MemProt) error {
	regions, err := dbg.emu.MemRegions()
	if err != nil {
		return debugger.NewMemoryAccessError(op, addr, size, err)
	}
	if !emulator.RegionCovers(regions, addr, size, emulator.MEM_PROT_NONE) {
		return debugger.NewMemoryAccessError(op, addr, size, emulator.ErrMemUnmapped)
	}
	if !emulator.RegionCovers(regions, addr, size, prot) {
		return debugger.NewMemoryAccessError(op, addr, size, emulator.ErrMemProt)
	}
	return nil
}
