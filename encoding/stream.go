package encoding

import (
	"encoding/binary"
	"io"
)

type Stream interface {
	ByteOrder() binary.ByteOrder
	Offset() uint64
	Skip(int) error
	Read([]byte) (int, error)
	Write([]byte) (int, error)
}

type Buffer []byte

func (buf *Buffer) ReadAt(b []byte, off int64) (n int, err error) {
	if int(off)+len(b) > len(*buf) {
		return copy(b, (*buf)[min(int(off), len(*buf)):]), io.ErrUnexpectedEOF
	}
	return copy(b, (*buf)[off:]), nil
}

func (buf *Buffer) WriteAt(b []byte, off int64) (n int, err error) {
	if end := len(b) + int(off); end > len(*buf) {
		*buf = append(*buf, make([]byte, end-len(*buf))...)
	}
	return copy((*buf)[off:], b), nil
}

type bufferStream struct {
	buf   *Buffer
	order binary.ByteOrder
	off   int
}

// BufferStream reads and writes buf sequentially from its start.
func BufferStream(buf *Buffer, order binary.ByteOrder) Stream {
	return &bufferStream{buf: buf, order: order}
}

func (bs *bufferStream) ByteOrder() binary.ByteOrder {
	return bs.order
}

func (bs *bufferStream) Offset() uint64 {
	return uint64(bs.off)
}

func (bs *bufferStream) Skip(n int) error {
	bs.off += n
	return nil
}

func (bs *bufferStream) Read(b []byte) (int, error) {
	n, err := bs.buf.ReadAt(b, int64(bs.off))
	bs.off += n
	return n, err
}

func (bs *bufferStream) Write(b []byte) (int, error) {
	n, err := bs.buf.WriteAt(b, int64(bs.off))
	bs.off += n
	return n, err
}
