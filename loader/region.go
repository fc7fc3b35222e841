package loader

import (
	"io"

	"github.com/wnxd/microstub/emulator"
)

// Region is one loadable segment. Size is its extent in memory and Length
// the number of bytes ReaderAt provides from offset 0.
type Region struct {
	Addr, Size    uint64
	Length, Align uint64
	Prot          emulator.MemProt
	io.ReaderAt
}
