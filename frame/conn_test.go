package frame

import (
	"bytes"
	"crypto/rand"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wwqgtxx/obfstunnel/obfs"
)

var secret = [obfs.SecretSize]byte{1, 2, 3, 4}

func obfsPair(t *testing.T) (client, server *obfs.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, _ := ln.Accept()
		accepted <- c
	}()
	dialed, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	srv := <-accepted
	require.NotNil(t, srv)

	client, server = obfs.New(dialed, secret, false), obfs.New(srv, secret, true)
	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})
	return
}

func TestCopyLargeStream(t *testing.T) {
	oc, os := obfsPair(t)
	client, server := New(oc), New(os)

	data := make([]byte, 256*1024+17)
	_, err := rand.Read(data)
	require.NoError(t, err)

	go func() {
		n, err := client.Write(data)
		assert.NoError(t, err)
		assert.Equal(t, len(data), n)
		assert.NoError(t, client.Close())
	}()

	var got bytes.Buffer
	_, err = io.Copy(&got, server)
	require.NoError(t, err)
	assert.Equal(t, data, got.Bytes())
}

func TestSmallReads(t *testing.T) {
	oc, os := obfsPair(t)
	client, server := New(oc), New(os)

	go func() {
		_, err := client.Write([]byte("hello world"))
		assert.NoError(t, err)
	}()

	buf := make([]byte, 4)
	var got []byte
	for len(got) < len("hello world") {
		n, err := server.Read(buf)
		require.NoError(t, err)
		got = append(got, buf[:n]...)
	}
	assert.Equal(t, "hello world", string(got))
}

func TestBothDirections(t *testing.T) {
	oc, os := obfsPair(t)
	client, server := New(oc), New(os)

	go func() {
		_, _ = io.Copy(server, server) // echo
	}()

	msg := bytes.Repeat([]byte("echo"), 1000)
	go func() {
		_, err := client.Write(msg)
		assert.NoError(t, err)
	}()
	got := make([]byte, len(msg))
	_, err := io.ReadFull(client, got)
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestEmptyRecordRejected(t *testing.T) {
	oc, os := obfsPair(t)
	server := New(os)

	require.NoError(t, oc.Write([]byte{0, 0}))
	_, err := server.Read(make([]byte, 8))
	assert.ErrorIs(t, err, ErrEmptyFrame)
}

func TestOversizedRecordRejected(t *testing.T) {
	oc, os := obfsPair(t)
	server := New(os)

	require.NoError(t, oc.Write([]byte{0xff, 0xff}))
	_, err := server.Read(make([]byte, 8))
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestTruncatedPayload(t *testing.T) {
	oc, os := obfsPair(t)
	server := New(os)

	require.NoError(t, oc.Write([]byte{0, 10, 'a', 'b'}))
	require.NoError(t, oc.Close())
	_, err := server.Read(make([]byte, 8))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestCleanEOF(t *testing.T) {
	oc, os := obfsPair(t)
	server := New(os)

	require.NoError(t, oc.Close())
	n, err := server.Read(make([]byte, 8))
	assert.Equal(t, 0, n)
	assert.Equal(t, io.EOF, err)
}

func TestUseAfterClose(t *testing.T) {
	oc, _ := obfsPair(t)
	client := New(oc)
	require.NoError(t, client.Close())

	_, err := client.Write([]byte("x"))
	assert.ErrorIs(t, err, net.ErrClosed)
	_, err = client.Read(make([]byte, 1))
	assert.ErrorIs(t, err, net.ErrClosed)
}

func TestImplementsNetConn(t *testing.T) {
	var _ net.Conn = (*Conn)(nil)
}
