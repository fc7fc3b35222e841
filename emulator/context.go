package emulator

type Reg int

type RegisterContext interface {
	RegRead(reg Reg) (uint64, error)
	RegWrite(reg Reg, value uint64) error
	RegReadBatch(regs ...Reg) ([]uint64, error)
	RegWriteBatch(regs []Reg, vals []uint64) error
}
