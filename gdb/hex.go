package gdb

import (
	"fmt"
	"strconv"
	"strings"
	"unsafe"

	"golang.org/x/exp/constraints"
)

const hexDigits = "0123456789abcdef"

func parseHex[T constraints.Unsigned](s string) (T, error) {
	var zero T
	v, err := strconv.ParseUint(s, 16, int(unsafe.Sizeof(zero))*8)
	if err != nil {
		return zero, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	return T(v), nil
}

func appendHex[T constraints.Unsigned](b []byte, v T, width int) []byte {
	for i := width - 1; i >= 0; i-- {
		b = append(b, hexDigits[uint64(v>>(uint(i)*4))&0xF])
	}
	return b
}

// parseAddrLen parses the "addr,length" argument shared by m, M, X and Z.
func parseAddrLen(s string) (uint64, uint64, error) {
	a, l, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	addr, err := parseHex[uint64](a)
	if err != nil {
		return 0, 0, err
	}
	size, err := parseHex[uint64](l)
	if err != nil {
		return 0, 0, err
	}
	return addr, size, nil
}
