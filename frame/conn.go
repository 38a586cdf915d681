// Package frame carries an arbitrary byte stream over an obfs.Conn by
// splitting it into length-prefixed records that each fit one obfs frame.
package frame

import (
	"encoding/binary"
	"io"
	"net"
	"sync"

	"github.com/gobwas/pool/pbytes"
	"github.com/pkg/errors"

	"github.com/wwqgtxx/obfstunnel/obfs"
)

const (
	headerSize = 2

	// MaxPayloadSize is the largest payload one record can carry.
	MaxPayloadSize = obfs.MaxFrameSize - headerSize
)

var (
	ErrEmptyFrame    = errors.New("frame: empty record")
	ErrFrameTooLarge = errors.New("frame: record larger than MaxPayloadSize")
)

// Conn implements net.Conn on top of an obfs.Conn.
type Conn struct {
	*obfs.Conn

	wmu  sync.Mutex
	wbuf []byte

	rmu     sync.Mutex
	rbuf    []byte
	pending []byte
}

func New(conn *obfs.Conn) *Conn {
	return &Conn{
		Conn: conn,
		wbuf: pbytes.GetLen(obfs.MaxFrameSize),
		rbuf: pbytes.GetLen(obfs.MaxFrameSize),
	}
}

// Write sends p as one or more records.
func (c *Conn) Write(p []byte) (n int, err error) {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.wbuf == nil {
		return 0, net.ErrClosed
	}

	for len(p) > 0 {
		chunk := p
		if len(chunk) > MaxPayloadSize {
			chunk = chunk[:MaxPayloadSize]
		}
		record := c.wbuf[:headerSize+len(chunk)]
		binary.BigEndian.PutUint16(record, uint16(len(chunk)))
		copy(record[headerSize:], chunk)
		if err = c.Conn.Write(record); err != nil {
			return
		}
		n += len(chunk)
		p = p[len(chunk):]
	}
	return
}

// Read returns payload bytes in the order they were written. A clean end of
// stream between records is reported as io.EOF.
func (c *Conn) Read(p []byte) (n int, err error) {
	c.rmu.Lock()
	defer c.rmu.Unlock()
	if c.rbuf == nil {
		return 0, net.ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}

	if len(c.pending) == 0 {
		if err = c.readRecord(); err != nil {
			return
		}
	}
	n = copy(p, c.pending)
	c.pending = c.pending[n:]
	return
}

func (c *Conn) readRecord() error {
	header := c.rbuf[:headerSize]
	if err := c.Conn.ReadExact(header); err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return errors.Wrap(err, "frame: read header")
	}
	size := int(binary.BigEndian.Uint16(header))
	switch {
	case size == 0:
		return ErrEmptyFrame
	case size > MaxPayloadSize:
		return errors.Wrapf(ErrFrameTooLarge, "frame: header announces %d bytes", size)
	}

	payload := c.rbuf[:size]
	if err := c.Conn.ReadExact(payload); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return errors.Wrap(err, "frame: read payload")
	}
	c.pending = payload
	return nil
}

// Close closes the underlying connection and releases the record buffers.
func (c *Conn) Close() error {
	err := c.Conn.Close()

	c.rmu.Lock()
	if c.rbuf != nil {
		pbytes.Put(c.rbuf)
		c.rbuf, c.pending = nil, nil
	}
	c.rmu.Unlock()

	c.wmu.Lock()
	if c.wbuf != nil {
		pbytes.Put(c.wbuf)
		c.wbuf = nil
	}
	c.wmu.Unlock()
	return err
}
