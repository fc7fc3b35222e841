package arm_test

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wnxd/microstub/debugger"
	"github.com/wnxd/microstub/emulator"
	emu_arm "github.com/wnxd/microstub/emulator/arm"
	"github.com/wnxd/microstub/internal/debugger/arm"
)

type otherArch struct {
	emulator.Emulator
}

func (otherArch) Arch() emulator.Arch {
	return emulator.ARCH_UNKNOWN
}

type idleConn struct{}

func (idleConn) PeekByte() (byte, bool, error) {
	return 0, false, nil
}

func TestArchMismatch(t *testing.T) {
	_, err := arm.NewArmDebugger(otherArch{})
	assert.ErrorIs(t, err, emulator.ErrArchMismatch)
}

func TestSyscalls(t *testing.T) {
	tests := []struct {
		name string
		code []uint32
		want debugger.StopReason
	}{
		{"exit", []uint32{0xE3A000FF, 0xE3A07001, 0xEF000000}, debugger.Exited{Code: 255}},
		{"exit_group", []uint32{0xE3A00005, 0xE3A070F8, 0xEF000000}, debugger.Exited{Code: 5}},
		{"write", []uint32{0xE3A07004, 0xEF000000}, debugger.Signal{Sig: debugger.SIGSYS}},
		{"nonzero immediate", []uint32{0xE3A07001, 0xEF000001}, debugger.Signal{Sig: debugger.SIGSYS}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emu := emu_arm.New()
			require.NoError(t, emu.MemMap(0, emu_arm.PAGE_SIZE, emulator.MEM_PROT_READ|emulator.MEM_PROT_EXEC))
			buf := make([]byte, 4*len(tt.code))
			for i, insn := range tt.code {
				binary.LittleEndian.PutUint32(buf[i*4:], insn)
			}
			require.NoError(t, emu.MemWrite(0, buf))

			dbg, err := arm.NewArmDebugger(emu)
			require.NoError(t, err)
			defer dbg.Close()

			require.NoError(t, dbg.SupportResume().Resume(debugger.ResumeMode_Continue))
			ev, err := dbg.Wait(context.Background(), idleConn{})
			require.NoError(t, err)
			assert.Equal(t, debugger.StopEvent{Reason: tt.want}, ev)
		})
	}
}
