package emulator

type Arch int

const (
	ARCH_UNKNOWN Arch = iota
	ARCH_ARM
)

func (a Arch) String() string {
	switch a {
	case ARCH_ARM:
		return "arm"
	}
	return "unknown"
}

type ByteOrder int

const (
	BO_LITTLE_ENDIAN ByteOrder = iota
	BO_BIG_ENDIAN
)
