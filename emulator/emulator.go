package emulator

import (
	"io"
	"time"
)

type Emulator interface {
	io.Closer
	Arch() Arch
	ByteOrder() ByteOrder
	PageSize() uint64
	MemMap(addr, size uint64, prot MemProt) error
	MemUnmap(addr, size uint64) error
	MemProtect(addr, size uint64, prot MemProt) error
	MemRegions() ([]MemRegion, error)
	// MemRead and MemWrite are host accesses and ignore protection bits.
	MemRead(addr, size uint64) ([]byte, error)
	MemWrite(addr uint64, data []byte) error
	RegisterContext
	// Start runs from begin until pc == until (0 disables), the timeout
	// elapses (0 disables), count instructions retired (0 disables) or a
	// stop condition is hit.
	Start(begin, until uint64, timeout time.Duration, count uint64) (StopCause, error)
	Stop() error
	Hook(typ HookType, callback any, data any, begin, end uint64) (Hook, error)
}
