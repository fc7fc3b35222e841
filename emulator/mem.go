package emulator

import "strings"

type MemProt int

const (
	MEM_PROT_NONE MemProt = 0
	MEM_PROT_READ MemProt = 1 << (iota - 1)
	MEM_PROT_WRITE
	MEM_PROT_EXEC

	MEM_PROT_ALL = MEM_PROT_READ | MEM_PROT_WRITE | MEM_PROT_EXEC
)

// ParseMemProt accepts the "rwx" notation, with '-' or omitted letters for
// missing permissions.
func ParseMemProt(s string) (MemProt, error) {
	var prot MemProt
	for _, c := range strings.ToLower(s) {
		switch c {
		case 'r':
			prot |= MEM_PROT_READ
		case 'w':
			prot |= MEM_PROT_WRITE
		case 'x':
			prot |= MEM_PROT_EXEC
		case '-':
		default:
			return MEM_PROT_NONE, ErrMemProt
		}
	}
	return prot, nil
}

func (p MemProt) String() string {
	b := []byte("---")
	if p&MEM_PROT_READ != 0 {
		b[0] = 'r'
	}
	if p&MEM_PROT_WRITE != 0 {
		b[1] = 'w'
	}
	if p&MEM_PROT_EXEC != 0 {
		b[2] = 'x'
	}
	return string(b)
}

type MemRegion struct {
	Addr, Size uint64
	Prot       MemProt
}

func (r MemRegion) End() uint64 {
	return r.Addr + r.Size
}

func (r MemRegion) Contains(addr uint64) bool {
	return addr >= r.Addr && addr < r.End()
}

// RegionCovers reports whether [addr, addr+size) lies entirely inside
// regions that all grant prot.
func RegionCovers(regions []MemRegion, addr, size uint64, prot MemProt) bool {
	end := addr + size
	if end < addr {
		return false
	}
	for addr < end {
		i := -1
		for j := range regions {
			if regions[j].Contains(addr) {
				i = j
				break
			}
		}
		if i == -1 || regions[i].Prot&prot != prot {
			return false
		}
		addr = regions[i].End()
	}
	return true
}
