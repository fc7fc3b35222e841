// Package loader describes program images and copies them into an
// emulator's address space.
package loader

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/wnxd/microstub/emulator"
)

var ErrFormat = errors.New("unsupported image format")

type Module interface {
	io.Closer
	Name() string
	Arch() emulator.Arch
	ByteOrder() binary.ByteOrder
	Regions() []Region
	EntryAddr() uint64
}

// Load writes the file-backed part of every region. The target memory must
// already be mapped; protection is not checked.
func Load(emu emulator.Emulator, module Module) error {
	if module.Arch() != emu.Arch() {
		return fmt.Errorf("load %s: %w", module.Name(), emulator.ErrArchMismatch)
	}
	regions, err := emu.MemRegions()
	if err != nil {
		return err
	}
	for _, region := range module.Regions() {
		if region.Length == 0 {
			continue
		}
		if !emulator.RegionCovers(regions, region.Addr, region.Length, emulator.MEM_PROT_NONE) {
			return fmt.Errorf("load %s at %08X: %w", module.Name(), region.Addr, emulator.ErrMemUnmapped)
		}
		data := make([]byte, region.Length)
		if _, err := region.ReadAt(data, 0); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("load %s at %08X: %w", module.Name(), region.Addr, err)
		}
		if err := emu.MemWrite(region.Addr, data); err != nil {
			return fmt.Errorf("load %s at %08X: %w", module.Name(), region.Addr, err)
		}
	}
	return nil
}
