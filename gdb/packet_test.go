package gdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrame(t *testing.T) {
	assert.Equal(t, "$OK#9a", string(frame([]byte("OK"))))
	assert.Equal(t, "$#00", string(frame(nil)))
	assert.Equal(t, "$}\x03}\x04}]}\x0a#", string(frame([]byte("#$}*"))[:10]))
}

func TestUnescape(t *testing.T) {
	data, err := unescape([]byte("a}]b}\x03"))
	require.NoError(t, err)
	assert.Equal(t, []byte("a}b#"), data)

	_, err = unescape([]byte("ab}"))
	assert.ErrorIs(t, err, ErrMalformed)

	data, err = unescape(escape([]byte{0x00, '$', '#', '}', '*', 0xff}))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, '$', '#', '}', '*', 0xff}, data)
}

func TestParseHex(t *testing.T) {
	v, err := parseHex[uint32]("DeadBeef")
	require.NoError(t, err)
	assert.EqualValues(t, 0xdeadbeef, v)

	_, err = parseHex[uint8]("100")
	assert.ErrorIs(t, err, ErrMalformed)
	_, err = parseHex[uint32]("")
	assert.ErrorIs(t, err, ErrMalformed)

	addr, size, err := parseAddrLen("20000000,10")
	require.NoError(t, err)
	assert.EqualValues(t, 0x20000000, addr)
	assert.EqualValues(t, 0x10, size)
	_, _, err = parseAddrLen("20000000")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestAppendHex(t *testing.T) {
	assert.Equal(t, "E0e", string(appendHex([]byte("E"), uint8(EFAULT), 2)))
	assert.Equal(t, "E16", string(appendHex([]byte("E"), uint8(EINVAL), 2)))
	assert.Equal(t, "0001f", string(appendHex(nil, uint32(0x1f), 5)))
}
