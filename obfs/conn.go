// Package obfs wraps a reliable byte stream so that every byte on the wire is
// XORed with a keyed, per-direction ChaCha8 keystream.
//
// The layer adds no framing, no authentication tag and no replay protection:
// it only resists passive fingerprinting. Both peers must feed the same
// sequence of byte counts through Write and ReadExact; a lost or duplicated
// byte desynchronizes the keystreams for the rest of the session.
package obfs

import (
	"bufio"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gobwas/pool/pbufio"
)

const (
	// MaxFrameSize bounds a single Write. Both peers must agree on it.
	MaxFrameSize = 2048

	// DefaultSessionLifetime is the connection lifetime callers are expected
	// to enforce. Conn itself never expires.
	DefaultSessionLifetime = 300 * time.Second

	readBufferSize = 4096
)

// Conn is an obfuscated view of a raw stream. One Write and one ReadExact may
// run concurrently; calls in the same direction are serialized.
type Conn struct {
	raw net.Conn

	readMu sync.Mutex
	reader *bufio.Reader
	recv   *keystream

	send    *keystream // also guards scratch and writes to raw
	scratch [MaxFrameSize]byte

	closeOnce sync.Once
	closeErr  error
}

// New wraps raw using secret. isServer selects which derived keystream is
// used for sending; the two peers of a connection must pass opposite values.
func New(raw net.Conn, secret [SecretSize]byte, isServer bool) *Conn {
	send, recv := directions(secret, isServer)
	return &Conn{
		raw:    raw,
		reader: pbufio.GetReader(raw, readBufferSize),
		send:   send,
		recv:   recv,
	}
}

// NewFromBytes is like New but takes the secret as a slice. It panics if the
// secret is not SecretSize bytes long.
func NewFromBytes(raw net.Conn, secret []byte, isServer bool) *Conn {
	if len(secret) != SecretSize {
		panic("obfs: shared secret must be 32 bytes")
	}
	return New(raw, [SecretSize]byte(secret), isServer)
}

// Write obfuscates msg and writes all of it to the underlying stream.
// It panics if len(msg) > MaxFrameSize.
func (c *Conn) Write(msg []byte) error {
	if len(msg) > MaxFrameSize {
		panic("obfs: message larger than MaxFrameSize")
	}
	if len(msg) == 0 {
		return nil
	}

	c.send.Lock()
	defer c.send.Unlock()

	buf := c.scratch[:len(msg)]
	copy(buf, msg)
	c.send.apply(buf)
	if _, err := c.raw.Write(buf); err != nil {
		return &OpError{Op: "write", Err: err}
	}
	return nil
}

// ReadExact fills buf from the stream and de-obfuscates it in place.
// If the stream ends before buf is full the error wraps io.EOF (nothing read)
// or io.ErrUnexpectedEOF (partial read), and the receive keystream is left
// where it was.
func (c *Conn) ReadExact(buf []byte) error {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	if c.reader == nil {
		return &OpError{Op: "read", Err: net.ErrClosed}
	}
	if _, err := io.ReadFull(c.reader, buf); err != nil {
		return &OpError{Op: "read", Err: err}
	}

	c.recv.Lock()
	c.recv.apply(buf)
	c.recv.Unlock()
	return nil
}

// Close closes the underlying stream once and returns the read buffer to
// its pool. Later calls return the first result.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.raw.Close()

		// the raw close unblocks any pending read
		c.readMu.Lock()
		pbufio.PutReader(c.reader)
		c.reader = nil
		c.readMu.Unlock()
	})
	return c.closeErr
}

// Raw returns the wrapped stream.
func (c *Conn) Raw() net.Conn {
	return c.raw
}

func (c *Conn) LocalAddr() net.Addr {
	return c.raw.LocalAddr()
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.raw.RemoteAddr()
}

func (c *Conn) SetDeadline(t time.Time) error {
	return c.raw.SetDeadline(t)
}

func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.raw.SetReadDeadline(t)
}

func (c *Conn) SetWriteDeadline(t time.Time) error {
	return c.raw.SetWriteDeadline(t)
}
