package arm

import (
	"slices"

	"github.com/wnxd/microstub/emulator"
)

type region struct {
	emulator.MemRegion
	data []byte
}

func (e *Emulator) PageSize() uint64 {
	return PAGE_SIZE
}

func (e *Emulator) MemMap(addr, size uint64, prot emulator.MemProt) error {
	if err := checkAlign(addr, size); err != nil {
		return err
	}
	for _, r := range e.regions {
		if addr < r.End() && r.Addr < addr+size {
			return emulator.ErrMemMapped
		}
	}
	e.regions = append(e.regions, &region{
		MemRegion: emulator.MemRegion{Addr: addr, Size: size, Prot: prot},
		data:      make([]byte, size),
	})
	slices.SortFunc(e.regions, func(a, b *region) int {
		switch {
		case a.Addr < b.Addr:
			return -1
		case a.Addr > b.Addr:
			return 1
		}
		return 0
	})
	return nil
}

func (e *Emulator) MemUnmap(addr, size uint64) error {
	if err := checkAlign(addr, size); err != nil {
		return err
	}
	inside, err := e.carve(addr, size)
	if err != nil {
		return err
	}
	e.regions = slices.DeleteFunc(e.regions, func(r *region) bool {
		return slices.Contains(inside, r)
	})
	return nil
}

func (e *Emulator) MemProtect(addr, size uint64, prot emulator.MemProt) error {
	if err := checkAlign(addr, size); err != nil {
		return err
	}
	inside, err := e.carve(addr, size)
	if err != nil {
		return err
	}
	for _, r := range inside {
		r.Prot = prot
	}
	return nil
}

func (e *Emulator) MemRegions() ([]emulator.MemRegion, error) {
	regions := make([]emulator.MemRegion, len(e.regions))
	for i, r := range e.regions {
		regions[i] = r.MemRegion
	}
	return regions, nil
}

func (e *Emulator) MemRead(addr, size uint64) ([]byte, error) {
	if !e.mapped(addr, size) {
		return nil, emulator.ErrMemUnmapped
	}
	data := make([]byte, size)
	for off := uint64(0); off < size; {
		r := e.find(addr + off)
		n := copy(data[off:], r.data[addr+off-r.Addr:])
		off += uint64(n)
	}
	return data, nil
}

func (e *Emulator) MemWrite(addr uint64, data []byte) error {
	size := uint64(len(data))
	if !e.mapped(addr, size) {
		return emulator.ErrMemUnmapped
	}
	for off := uint64(0); off < size; {
		r := e.find(addr + off)
		n := copy(r.data[addr+off-r.Addr:], data[off:])
		off += uint64(n)
	}
	return nil
}

func (e *Emulator) find(addr uint64) *region {
	i, found := slices.BinarySearchFunc(e.regions, addr, func(r *region, addr uint64) int {
		switch {
		case r.End() <= addr:
			return -1
		case r.Addr > addr:
			return 1
		}
		return 0
	})
	if !found {
		return nil
	}
	return e.regions[i]
}

func (e *Emulator) mapped(addr, size uint64) bool {
	end := addr + size
	if end < addr {
		return false
	}
	for addr < end {
		r := e.find(addr)
		if r == nil {
			return false
		}
		addr = r.End()
	}
	return true
}

// guest returns the backing bytes for a guest access of size bytes at addr.
// Guest accesses never straddle regions.
func (e *Emulator) guest(addr uint32, size uint32, prot emulator.MemProt) ([]byte, bool) {
	r := e.find(uint64(addr))
	if r == nil || r.Prot&prot != prot || uint64(addr)+uint64(size) > r.End() {
		return nil, false
	}
	off := uint64(addr) - r.Addr
	return r.data[off : off+uint64(size)], true
}

// carve splits regions at addr and addr+size and returns the pieces inside
// the range, which must be fully mapped.
func (e *Emulator) carve(addr, size uint64) ([]*region, error) {
	if !e.mapped(addr, size) {
		return nil, emulator.ErrMemUnmapped
	}
	e.split(addr)
	e.split(addr + size)
	var inside []*region
	for _, r := range e.regions {
		if r.Addr >= addr && r.End() <= addr+size {
			inside = append(inside, r)
		}
	}
	return inside, nil
}

func (e *Emulator) split(at uint64) {
	r := e.find(at)
	if r == nil || r.Addr == at {
		return
	}
	off := at - r.Addr
	tail := &region{
		MemRegion: emulator.MemRegion{Addr: at, Size: r.Size - off, Prot: r.Prot},
		data:      r.data[off:],
	}
	r.Size = off
	r.data = r.data[:off:off]
	i := slices.Index(e.regions, r)
	e.regions = slices.Insert(e.regions, i+1, tail)
}

func checkAlign(addr, size uint64) error {
	if size == 0 || addr%PAGE_SIZE != 0 || size%PAGE_SIZE != 0 {
		return emulator.ErrMemAlign
	}
	return nil
}
