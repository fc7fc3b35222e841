package socket_test

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wnxd/microstub/socket"
)

func peekUntil(t *testing.T, conn *socket.Conn) byte {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		b, ok, err := conn.PeekByte()
		require.NoError(t, err)
		if ok {
			return b
		}
	}
	t.Fatal("no data")
	return 0
}

func TestPeekByte(t *testing.T) {
	client, server := net.Pipe()
	conn := socket.NewConn(server)
	defer conn.Close()
	defer client.Close()

	_, ok, err := conn.PeekByte()
	require.NoError(t, err)
	assert.False(t, ok)

	go client.Write([]byte{0x03, '$'})
	assert.Equal(t, byte(0x03), peekUntil(t, conn))

	b, ok, err := conn.PeekByte()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, byte(0x03), b)

	b, err = conn.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(0x03), b)
	b, err = conn.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte('$'), b)
}

func TestPeekClosedPeer(t *testing.T) {
	client, server := net.Pipe()
	conn := socket.NewConn(server)
	defer conn.Close()
	client.Close()

	_, _, err := conn.PeekByte()
	assert.Error(t, err)
}

func TestClosed(t *testing.T) {
	_, server := net.Pipe()
	conn := socket.NewConn(server)
	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())

	_, _, err := conn.PeekByte()
	assert.ErrorIs(t, err, socket.ErrClosed)
	_, err = conn.Write([]byte{'+'})
	assert.ErrorIs(t, err, socket.ErrClosed)
}

func TestListenAccept(t *testing.T) {
	ln, err := socket.Listen(socket.TCP, "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	errc := make(chan error, 1)
	go func() {
		c, err := net.Dial("tcp", ln.Addr().String())
		if err == nil {
			_, err = c.Write([]byte("+$?#3f"))
			time.Sleep(100 * time.Millisecond)
			c.Close()
		}
		errc <- err
	}()

	conn, err := ln.Accept()
	require.NoError(t, err)
	defer conn.Close()
	assert.NotNil(t, conn.RemoteAddr())

	assert.Equal(t, byte('+'), peekUntil(t, conn))
	buf := make([]byte, 6)
	n := 0
	for n < len(buf) {
		m, err := conn.Read(buf[n:])
		require.NoError(t, err)
		n += m
	}
	assert.Equal(t, "+$?#3f", string(buf))
	require.NoError(t, <-errc)
}
