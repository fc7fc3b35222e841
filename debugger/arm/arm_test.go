package arm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wnxd/microstub/debugger"
	_ "github.com/wnxd/microstub/debugger/arm"
	"github.com/wnxd/microstub/emulator"
	"github.com/wnxd/microstub/emulator/arm"
)

type noArch struct {
	emulator.Emulator
}

func (noArch) Arch() emulator.Arch {
	return emulator.ARCH_UNKNOWN
}

func TestNew(t *testing.T) {
	dbg, err := debugger.New(arm.New(), debugger.WithEntry(0x8000))
	require.NoError(t, err)
	defer dbg.Close()

	regs, err := dbg.Base().ReadRegisters()
	require.NoError(t, err)
	assert.EqualValues(t, 0x8000, regs.PC)
	assert.EqualValues(t, arm.CPSR_RESET, regs.CPSR)
}

func TestNewUnsupported(t *testing.T) {
	_, err := debugger.New(noArch{})
	assert.ErrorIs(t, err, emulator.ErrArchUnsupported)
	assert.False(t, debugger.Register(emulator.ARCH_ARM, nil))
}
