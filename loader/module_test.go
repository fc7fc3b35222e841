package loader_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wnxd/microstub/emulator"
	"github.com/wnxd/microstub/emulator/arm"
	"github.com/wnxd/microstub/loader"
)

type fakeModule struct {
	arch    emulator.Arch
	regions []loader.Region
}

func (m *fakeModule) Close() error                { return nil }
func (m *fakeModule) Name() string                { return "fake" }
func (m *fakeModule) Arch() emulator.Arch         { return m.arch }
func (m *fakeModule) ByteOrder() binary.ByteOrder { return binary.LittleEndian }
func (m *fakeModule) Regions() []loader.Region    { return m.regions }
func (m *fakeModule) EntryAddr() uint64           { return 0 }

func region(addr uint64, data []byte, size uint64) loader.Region {
	return loader.Region{
		Addr:     addr,
		Size:     size,
		Length:   uint64(len(data)),
		Prot:     emulator.MEM_PROT_READ,
		ReaderAt: bytes.NewReader(data),
	}
}

func newEmulator(t *testing.T) emulator.Emulator {
	t.Helper()
	emu := arm.New()
	require.NoError(t, emu.MemMap(0x1000, 2*arm.PAGE_SIZE, emulator.MEM_PROT_READ|emulator.MEM_PROT_EXEC))
	return emu
}

func TestLoad(t *testing.T) {
	emu := newEmulator(t)
	module := &fakeModule{
		arch: emulator.ARCH_ARM,
		regions: []loader.Region{
			region(0x1000, []byte{1, 2, 3, 4}, 0x10),
			region(0x1ffe, []byte{5, 6, 7, 8}, 4),
			region(0x2800, nil, 0x100),
		},
	}
	require.NoError(t, loader.Load(emu, module))

	data, err := emu.MemRead(0x1000, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, data)
	data, err = emu.MemRead(0x1ffe, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{5, 6, 7, 8}, data)
}

func TestLoadErrors(t *testing.T) {
	emu := newEmulator(t)
	err := loader.Load(emu, &fakeModule{arch: emulator.ARCH_UNKNOWN})
	assert.ErrorIs(t, err, emulator.ErrArchMismatch)

	err = loader.Load(emu, &fakeModule{
		arch:    emulator.ARCH_ARM,
		regions: []loader.Region{region(0x2ffe, []byte{1, 2, 3, 4}, 4)},
	})
	assert.ErrorIs(t, err, emulator.ErrMemUnmapped)

	err = loader.Load(emu, &fakeModule{
		arch:    emulator.ARCH_ARM,
		regions: []loader.Region{region(0x8000, []byte{1}, 1)},
	})
	assert.ErrorIs(t, err, emulator.ErrMemUnmapped)
}
