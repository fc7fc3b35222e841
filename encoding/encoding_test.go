package encoding_test

import (
	"encoding/binary"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wnxd/microstub/encoding"
)

type header struct {
	Magic   uint16
	Flags   uint8
	Valid   bool
	Entry   int32
	Scratch uint64 `encoding:"ignore"`
	Words   [3]uint16
	Tail    trailer
}

type trailer struct {
	Size uint64
}

func le(buf *encoding.Buffer) encoding.Stream {
	return encoding.BufferStream(buf, binary.LittleEndian)
}

func be(buf *encoding.Buffer) encoding.Stream {
	return encoding.BufferStream(buf, binary.BigEndian)
}

func TestMarshalLayout(t *testing.T) {
	val := header{
		Magic:   0x1234,
		Flags:   0x56,
		Valid:   true,
		Entry:   -2,
		Scratch: 99,
		Words:   [3]uint16{1, 2, 0xABCD},
		Tail:    trailer{Size: 0x0102030405060708},
	}
	assert.Equal(t, 22, encoding.EncodeSize(val))
	assert.Equal(t, 22, encoding.DecodeSize(&val))

	data, err := encoding.Marshal(le, &val)
	require.NoError(t, err)
	assert.Equal(t, []byte{
		0x34, 0x12, 0x56, 0x01, 0xFE, 0xFF, 0xFF, 0xFF,
		0x01, 0x00, 0x02, 0x00, 0xCD, 0xAB,
		0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01,
	}, data)

	data, err = encoding.Marshal(be, val)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x12, 0x34, 0x56, 0x01, 0xFF, 0xFF, 0xFF, 0xFE}, data[:8])
}

func TestUnmarshal(t *testing.T) {
	val := header{Magic: 7, Valid: true, Entry: 0x7FFFFFFF, Words: [3]uint16{3, 2, 1}, Tail: trailer{Size: 42}}
	data, err := encoding.Marshal(le, &val)
	require.NoError(t, err)

	got := header{Scratch: 5}
	require.NoError(t, encoding.Unmarshal(le, data, &got))
	want := val
	want.Scratch = 5
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Unmarshal mismatch (-want +got):\n%s", diff)
	}
}

func TestUnmarshalErrors(t *testing.T) {
	var val header
	assert.ErrorIs(t, encoding.Unmarshal(le, make([]byte, 10), &val), encoding.ErrShortData)

	buf := encoding.Buffer(make([]byte, 22))
	assert.ErrorIs(t, encoding.Decode(le(&buf), val), encoding.ErrNotPointer)
	assert.ErrorIs(t, encoding.Decode(le(&buf), (*header)(nil)), encoding.ErrNotPointer)

	short := encoding.Buffer(make([]byte, 3))
	assert.Error(t, encoding.Decode(le(&short), &val))
}

func TestBufferStream(t *testing.T) {
	var buf encoding.Buffer
	stream := le(&buf)
	require.NoError(t, stream.Skip(2))
	_, err := stream.Write([]byte{1, 2})
	require.NoError(t, err)
	assert.EqualValues(t, 4, stream.Offset())
	assert.Equal(t, encoding.Buffer{0, 0, 1, 2}, buf)
}
