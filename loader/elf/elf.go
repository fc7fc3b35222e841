// Package elf reads 32-bit little-endian ARM executables.
package elf

import (
	"debug/elf"
	"encoding/binary"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/wnxd/microstub/emulator"
	"github.com/wnxd/microstub/loader"
)

type module struct {
	name    string
	file    afero.File
	elf     *elf.File
	regions []loader.Region
}

// Open parses name from fs. Only PT_LOAD segments with file contents become
// regions; they are placed at their physical address.
func Open(fs afero.Fs, name string) (loader.Module, error) {
	file, err := fs.Open(name)
	if err != nil {
		return nil, err
	}
	f, err := elf.NewFile(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%w: %v", loader.ErrFormat, err)
	}
	if f.Class != elf.ELFCLASS32 || f.Data != elf.ELFDATA2LSB || f.Machine != elf.EM_ARM {
		file.Close()
		return nil, fmt.Errorf("%w: %s %s %s", loader.ErrFormat, f.Class, f.Data, f.Machine)
	}
	m := &module{name: filepath.Base(name), file: file, elf: f}
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD || prog.Filesz == 0 {
			continue
		}
		m.regions = append(m.regions, loader.Region{
			Addr:     prog.Paddr,
			Size:     prog.Memsz,
			Length:   prog.Filesz,
			Align:    prog.Align,
			Prot:     progProt(prog.Flags),
			ReaderAt: prog,
		})
	}
	return m, nil
}

func progProt(flags elf.ProgFlag) emulator.MemProt {
	var prot emulator.MemProt
	if flags&elf.PF_R != 0 {
		prot |= emulator.MEM_PROT_READ
	}
	if flags&elf.PF_W != 0 {
		prot |= emulator.MEM_PROT_WRITE
	}
	if flags&elf.PF_X != 0 {
		prot |= emulator.MEM_PROT_EXEC
	}
	return prot
}

func (m *module) Close() error {
	return m.file.Close()
}

func (m *module) Name() string {
	return m.name
}

func (m *module) Arch() emulator.Arch {
	return emulator.ARCH_ARM
}

func (m *module) ByteOrder() binary.ByteOrder {
	return m.elf.ByteOrder
}

func (m *module) Regions() []loader.Region {
	return m.regions
}

func (m *module) EntryAddr() uint64 {
	return m.elf.Entry
}
