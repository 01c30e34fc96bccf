// Package wire implements the transport between the two peers: the
// bootstrap that establishes one connection per direction, and the
// length-delimited-by-convention request/reply framing carried on them.
package wire

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
)

// maxRequestFrame caps the ASCII-decimal request frame.
const maxRequestFrame = 32

// Conn carries one direction's worth of request/reply traffic: either the
// side that issues requests and reads replies (the Fault Handler's use),
// or the side that reads requests and writes replies (the Page Server's
// use). The two directions never share a net.Conn, so neither needs its
// own internal locking: each is written and read by exactly one goroutine.
type Conn struct {
	conn   net.Conn
	reader *bufio.Reader
}

// NewConn wraps an established net.Conn for framed request/reply use.
func NewConn(c net.Conn) *Conn {
	return &Conn{conn: c, reader: bufio.NewReaderSize(c, maxRequestFrame)}
}

// WriteRequest sends a page request: the page index as ASCII decimal, no
// delimiter.
func (c *Conn) WriteRequest(page int) error {
	buf := strconv.AppendInt(nil, int64(page), 10)
	if len(buf) > maxRequestFrame {
		return fmt.Errorf("wire: request frame for page %d exceeds %d bytes", page, maxRequestFrame)
	}

	if _, err := c.conn.Write(buf); err != nil {
		return fmt.Errorf("wire: write request: %w", err)
	}

	return nil
}

// ReadRequest reads up to maxRequestFrame bytes and parses them as the
// ASCII-decimal page index. A clean disconnect surfaces as io.EOF.
func (c *Conn) ReadRequest() (int, error) {
	buf := make([]byte, maxRequestFrame)

	n, err := c.reader.Read(buf)
	if n == 0 && err != nil {
		if err == io.EOF {
			return 0, io.EOF
		}

		return 0, fmt.Errorf("wire: read request: %w", err)
	}

	page, convErr := strconv.Atoi(string(buf[:n]))
	if convErr != nil {
		return 0, fmt.Errorf("wire: malformed request frame %q: %w", buf[:n], convErr)
	}

	return page, nil
}

// WriteReply sends exactly len(data) bytes as a reply frame, looping on
// short writes.
func (c *Conn) WriteReply(data []byte) error {
	written := 0
	for written < len(data) {
		n, err := c.conn.Write(data[written:])
		if err != nil {
			return fmt.Errorf("wire: write reply: %w", err)
		}

		written += n
	}

	return nil
}

// ReadReply reads exactly size bytes of reply, looping on short reads.
func (c *Conn) ReadReply(size int) ([]byte, error) {
	buf := make([]byte, size)

	read := 0
	for read < size {
		n, err := c.reader.Read(buf[read:])
		read += n

		if err != nil && read < size {
			return nil, fmt.Errorf("wire: read reply: %w", err)
		}
	}

	return buf, nil
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}
