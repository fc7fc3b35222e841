package arm_test

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wnxd/microstub/emulator"
	"github.com/wnxd/microstub/emulator/arm"
)

const (
	codeBase = 0x1000
	dataBase = 0x20000000

	insnNop  = 0xE1A00000 // mov r0, r0
	insnLoop = 0xEAFFFFFE // b .
	insnUdf  = 0xE7F000F0
)

func program(t *testing.T, code ...uint32) *arm.Emulator {
	t.Helper()
	emu := arm.New()
	require.NoError(t, emu.MemMap(codeBase, arm.PAGE_SIZE, emulator.MEM_PROT_READ|emulator.MEM_PROT_EXEC))
	require.NoError(t, emu.MemMap(dataBase, arm.PAGE_SIZE, emulator.MEM_PROT_READ|emulator.MEM_PROT_WRITE))
	buf := make([]byte, 4*len(code))
	for i, insn := range code {
		binary.LittleEndian.PutUint32(buf[i*4:], insn)
	}
	require.NoError(t, emu.MemWrite(codeBase, buf))
	return emu
}

func reg(t *testing.T, emu *arm.Emulator, r emulator.Reg) uint64 {
	t.Helper()
	val, err := emu.RegRead(r)
	require.NoError(t, err)
	return val
}

func TestMemMap(t *testing.T) {
	emu := arm.New()
	require.NoError(t, emu.MemMap(0x4000, 0x2000, emulator.MEM_PROT_READ))
	require.NoError(t, emu.MemMap(0x1000, 0x1000, emulator.MEM_PROT_ALL))

	assert.ErrorIs(t, emu.MemMap(0x5000, 0x1000, emulator.MEM_PROT_READ), emulator.ErrMemMapped)
	assert.ErrorIs(t, emu.MemMap(0x8001, 0x1000, emulator.MEM_PROT_READ), emulator.ErrMemAlign)
	assert.ErrorIs(t, emu.MemMap(0x8000, 0, emulator.MEM_PROT_READ), emulator.ErrMemAlign)

	regions, err := emu.MemRegions()
	require.NoError(t, err)
	assert.Equal(t, []emulator.MemRegion{
		{Addr: 0x1000, Size: 0x1000, Prot: emulator.MEM_PROT_ALL},
		{Addr: 0x4000, Size: 0x2000, Prot: emulator.MEM_PROT_READ},
	}, regions)
}

func TestMemProtectSplitsRegion(t *testing.T) {
	emu := arm.New()
	rw := emulator.MEM_PROT_READ | emulator.MEM_PROT_WRITE
	require.NoError(t, emu.MemMap(0x3000, 0x3000, rw))
	require.NoError(t, emu.MemWrite(0x3FFE, []byte{1, 2, 3, 4}))

	require.NoError(t, emu.MemProtect(0x4000, 0x1000, emulator.MEM_PROT_READ))
	regions, err := emu.MemRegions()
	require.NoError(t, err)
	assert.Equal(t, []emulator.MemRegion{
		{Addr: 0x3000, Size: 0x1000, Prot: rw},
		{Addr: 0x4000, Size: 0x1000, Prot: emulator.MEM_PROT_READ},
		{Addr: 0x5000, Size: 0x1000, Prot: rw},
	}, regions)

	data, err := emu.MemRead(0x3FFE, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, data)

	require.NoError(t, emu.MemUnmap(0x4000, 0x1000))
	_, err = emu.MemRead(0x3FFE, 4)
	assert.ErrorIs(t, err, emulator.ErrMemUnmapped)
	assert.ErrorIs(t, emu.MemWrite(0x4000, []byte{0}), emulator.ErrMemUnmapped)
}

func TestStartCount(t *testing.T) {
	emu := program(t, insnNop, insnNop, insnNop, insnNop)
	cause, err := emu.Start(codeBase, 0, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, emulator.StopCause{Kind: emulator.STOP_COUNT, PC: codeBase + 12, Count: 3}, cause)
}

func TestStartUntil(t *testing.T) {
	emu := program(t, insnNop, insnNop, insnNop, insnLoop)
	cause, err := emu.Start(codeBase, codeBase+8, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, emulator.STOP_UNTIL, cause.Kind)
	assert.EqualValues(t, codeBase+8, cause.PC)
}

func TestStartTimeout(t *testing.T) {
	emu := program(t, insnLoop)
	cause, err := emu.Start(codeBase, 0, 10*time.Millisecond, 0)
	require.NoError(t, err)
	assert.Equal(t, emulator.STOP_TIMEOUT, cause.Kind)
	assert.EqualValues(t, codeBase, cause.PC)
}

func TestDataProcessing(t *testing.T) {
	emu := program(t,
		0xE3A00005, // mov r0, #5
		0xE2801003, // add r1, r0, #3
		0xE2502005, // subs r2, r0, #5
		0x13A03001, // movne r3, #1
		0x03A04001, // moveq r4, #1
		0xE1A05080, // mov r5, r0, lsl #1
	)
	_, err := emu.Start(codeBase, 0, 0, 6)
	require.NoError(t, err)

	assert.EqualValues(t, 5, reg(t, emu, arm.ARM_REG_R0))
	assert.EqualValues(t, 8, reg(t, emu, arm.ARM_REG_R1))
	assert.EqualValues(t, 0, reg(t, emu, arm.ARM_REG_R2))
	assert.EqualValues(t, 0, reg(t, emu, arm.ARM_REG_R3))
	assert.EqualValues(t, 1, reg(t, emu, arm.ARM_REG_R4))
	assert.EqualValues(t, 10, reg(t, emu, arm.ARM_REG_R5))
	cpsr := reg(t, emu, arm.ARM_REG_CPSR)
	assert.NotZero(t, cpsr&arm.CPSR_Z)
	assert.NotZero(t, cpsr&arm.CPSR_C)
	assert.Zero(t, cpsr&arm.CPSR_N)
}

func TestLoadStore(t *testing.T) {
	emu := program(t,
		0xE3A01202, // mov r1, #0x20000000
		0xE3A0002A, // mov r0, #0x2a
		0xE5810004, // str r0, [r1, #4]
		0xE5912004, // ldr r2, [r1, #4]
		0xE5C10000, // strb r0, [r1]
		0xE5B13004, // ldr r3, [r1, #4]!
	)
	_, err := emu.Start(codeBase, 0, 0, 6)
	require.NoError(t, err)

	assert.EqualValues(t, 0x2A, reg(t, emu, arm.ARM_REG_R2))
	assert.EqualValues(t, 0x2A, reg(t, emu, arm.ARM_REG_R3))
	assert.EqualValues(t, dataBase+4, reg(t, emu, arm.ARM_REG_R1))
	data, err := emu.MemRead(dataBase, 8)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x2A, 0, 0, 0, 0x2A, 0, 0, 0}, data)
}

func TestBranchAndLink(t *testing.T) {
	emu := program(t,
		0xEB000001, // bl 0x100c
		0xE3A00001, // mov r0, #1
		insnLoop,
		0xE3A00002, // mov r0, #2
		0xE12FFF1E, // bx lr
	)
	cause, err := emu.Start(codeBase, 0, 0, 3)
	require.NoError(t, err)
	assert.EqualValues(t, codeBase+4, cause.PC)
	assert.EqualValues(t, codeBase+4, reg(t, emu, arm.ARM_REG_LR))
	assert.EqualValues(t, 2, reg(t, emu, arm.ARM_REG_R0))
}

func TestCodeHookStopsBeforeInstruction(t *testing.T) {
	emu := program(t,
		0xE3A00001, // mov r0, #1
		0xE3A00002, // mov r0, #2
		insnLoop,
	)
	var hits []uint64
	hook, err := emu.Hook(emulator.HOOK_TYPE_CODE, func(addr, size uint64, data any) {
		hits = append(hits, addr)
		data.(*arm.Emulator).Stop()
	}, emu, codeBase+4, codeBase+5)
	require.NoError(t, err)
	assert.Equal(t, emulator.HOOK_TYPE_CODE, hook.Type())

	cause, err := emu.Start(codeBase, 0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, emulator.STOP_REQUESTED, cause.Kind)
	assert.EqualValues(t, codeBase+4, cause.PC)
	assert.EqualValues(t, 1, reg(t, emu, arm.ARM_REG_R0))
	assert.Equal(t, []uint64{codeBase + 4}, hits)

	require.NoError(t, hook.Close())
	cause, err = emu.Start(codeBase+4, 0, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, emulator.STOP_COUNT, cause.Kind)
	assert.EqualValues(t, 2, reg(t, emu, arm.ARM_REG_R0))
}

func TestHookCallbackType(t *testing.T) {
	emu := program(t, insnNop)
	_, err := emu.Hook(emulator.HOOK_TYPE_CODE, func() {}, nil, 1, 0)
	assert.ErrorIs(t, err, emulator.ErrHookCallback)
	_, err = emu.Hook(emulator.HookType(0x100), func() {}, nil, 1, 0)
	assert.ErrorIs(t, err, emulator.ErrHookType)
}

func TestSvcWithoutHook(t *testing.T) {
	emu := program(t,
		0xE3A07001, // mov r7, #1
		0xEF000000, // svc #0
		insnLoop,
	)
	cause, err := emu.Start(codeBase, 0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, emulator.StopCause{Kind: emulator.STOP_INTERRUPT, PC: codeBase + 8, Count: 2}, cause)
}

func TestSvcHook(t *testing.T) {
	emu := program(t,
		0xEF00002A, // svc #42
		0xE3A00001, // mov r0, #1
		insnLoop,
	)
	var intnos []uint64
	_, err := emu.Hook(emulator.HOOK_TYPE_INTR, func(intno uint64, data any) {
		intnos = append(intnos, intno)
	}, nil, 1, 0)
	require.NoError(t, err)

	cause, err := emu.Start(codeBase, 0, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, emulator.STOP_COUNT, cause.Kind)
	assert.Equal(t, []uint64{42}, intnos)
	assert.EqualValues(t, 1, reg(t, emu, arm.ARM_REG_R0))
}

func TestFaults(t *testing.T) {
	t.Run("undefined instruction", func(t *testing.T) {
		emu := program(t, insnNop, insnUdf)
		cause, err := emu.Start(codeBase, 0, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, emulator.STOP_INSN_INVALID, cause.Kind)
		assert.EqualValues(t, codeBase+4, cause.PC)
	})
	t.Run("thumb interworking", func(t *testing.T) {
		emu := program(t,
			0xE3A00A01, // mov r0, #0x1000
			0xE2800001, // add r0, r0, #1
			0xE12FFF10, // bx r0
		)
		cause, err := emu.Start(codeBase, 0, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, emulator.STOP_INSN_INVALID, cause.Kind)
		assert.EqualValues(t, codeBase+8, cause.PC)
	})
	t.Run("fetch from data", func(t *testing.T) {
		emu := program(t, insnNop)
		cause, err := emu.Start(dataBase, 0, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, emulator.STOP_MEM_INVALID, cause.Kind)
		assert.EqualValues(t, dataBase, cause.Addr)
	})
	t.Run("store to code", func(t *testing.T) {
		emu := program(t,
			0xE3A01A01, // mov r1, #0x1000
			0xE5810000, // str r0, [r1]
		)
		cause, err := emu.Start(codeBase, 0, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, emulator.STOP_MEM_INVALID, cause.Kind)
		assert.EqualValues(t, codeBase, cause.Addr)
		assert.EqualValues(t, codeBase+4, cause.PC)
	})
}

func TestRegisters(t *testing.T) {
	emu := arm.New()
	assert.EqualValues(t, arm.CPSR_RESET, reg(t, emu, arm.ARM_REG_CPSR))

	regs := []emulator.Reg{arm.ARM_REG_R0, arm.ARM_REG_SP, arm.ARM_REG_PC}
	require.NoError(t, emu.RegWriteBatch(regs, []uint64{1, 2, 3}))
	vals, err := emu.RegReadBatch(regs...)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3}, vals)

	_, err = emu.RegRead(arm.ARM_REG_INVALID)
	assert.ErrorIs(t, err, emulator.ErrRegInvalid)
	assert.ErrorIs(t, emu.RegWriteBatch(regs, []uint64{1}), emulator.ErrRegInvalid)
}

func TestClosed(t *testing.T) {
	emu := program(t, insnNop)
	require.NoError(t, emu.Close())
	_, err := emu.Start(codeBase, 0, 0, 1)
	assert.ErrorIs(t, err, emulator.ErrClosed)
}
