package gdb

import (
	"errors"

	"github.com/wnxd/microstub/debugger"
)

var (
	ErrMalformed = errors.New("malformed packet")
	ErrChecksum  = errors.New("checksum mismatch")
	ErrOversized = errors.New("packet exceeds PacketSize")
)

// GDB errno values carried in E replies.
const (
	EFAULT = 14
	EINVAL = 22
)

// errno maps a target error onto the errno reported to the debugger.
func errno(err error) int {
	var memErr *debugger.MemoryAccessError
	if errors.As(err, &memErr) {
		return EFAULT
	}
	return EINVAL
}
