// Package frame reads and writes length-prefixed wire frames over a stream
// connection. A frame is a one-byte flag header, a big-endian length, and an
// opaque body. Bodies at or above CompressThreshold are DEFLATE-compressed
// on the way out; inbound decompression is driven purely by the header bit.
package frame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"sync"
	"time"

	"github.com/klauspost/compress/flate"
)

// Header flag bits.
const (
	FlagEncrypted  byte = 0x40
	FlagCompressed byte = 0x20
	FlagLargeSize  byte = 0x08
)

const (
	// CompressThreshold is the body size at which outbound frames are
	// transparently DEFLATE-compressed.
	CompressThreshold = 2_000_000

	// MaxFrameSize bounds the decoded length field so a corrupt header
	// cannot trigger an arbitrary allocation.
	MaxFrameSize = 64 << 20
)

// ErrUnsupportedFeature is returned when a frame requests encryption, which
// is a reserved extension point. The connection must be failed rather than
// silently downgraded to plaintext.
var ErrUnsupportedFeature = errors.New("frame: encryption requested but not supported")

// FramingError reports a malformed header or length field. Fatal to the
// connection.
type FramingError struct {
	Reason string
	Err    error
}

func (e *FramingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("frame: %s: %v", e.Reason, e.Err)
	}
	return "frame: " + e.Reason
}

func (e *FramingError) Unwrap() error { return e.Err }

// Conn frames a stream connection. Reads and writes are independently
// lock-guarded: one goroutine may write a broadcast while another is
// mid-read without corrupting frame boundaries.
type Conn struct {
	rw io.ReadWriter

	readMu  sync.Mutex
	writeMu sync.Mutex

	readTimeout  time.Duration
	writeTimeout time.Duration
}

// NewConn wraps a stream connection for framed I/O. Deadlines are applied
// only when rw is a net.Conn.
func NewConn(rw io.ReadWriter, readTimeout, writeTimeout time.Duration) *Conn {
	return &Conn{
		rw:           rw,
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
	}
}

// ReadFrame reads the next frame body. io.EOF is returned unchanged on a
// clean close so callers can drive the disconnect path.
func (c *Conn) ReadFrame() ([]byte, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	if nc, ok := c.rw.(net.Conn); ok && c.readTimeout > 0 {
		_ = nc.SetReadDeadline(time.Now().Add(c.readTimeout))
	}

	var header [1]byte
	if _, err := io.ReadFull(c.rw, header[:]); err != nil {
		return nil, err
	}
	flags := header[0]

	if flags&FlagEncrypted != 0 {
		return nil, ErrUnsupportedFeature
	}
	if flags&^(FlagEncrypted|FlagCompressed|FlagLargeSize) != 0 {
		return nil, &FramingError{Reason: fmt.Sprintf("unknown header flags %#02x", flags)}
	}

	var length int
	if flags&FlagLargeSize != 0 {
		var b [4]byte
		if _, err := io.ReadFull(c.rw, b[:]); err != nil {
			return nil, &FramingError{Reason: "reading large length", Err: err}
		}
		length = int(int32(binary.BigEndian.Uint32(b[:])))
	} else {
		var b [2]byte
		if _, err := io.ReadFull(c.rw, b[:]); err != nil {
			return nil, &FramingError{Reason: "reading length", Err: err}
		}
		length = int(binary.BigEndian.Uint16(b[:]))
	}
	if length < 0 || length > MaxFrameSize {
		return nil, &FramingError{Reason: fmt.Sprintf("length %d out of range", length)}
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(c.rw, body); err != nil {
		return nil, &FramingError{Reason: "reading body", Err: err}
	}

	// A small compressed frame is still valid: inflate on the bit alone.
	if flags&FlagCompressed != 0 {
		inflated, err := inflate(body)
		if err != nil {
			return nil, &FramingError{Reason: "decompressing body", Err: err}
		}
		body = inflated
	}
	return body, nil
}

// WriteFrame frames and writes body. Requesting encryption fails the write
// with ErrUnsupportedFeature. The header, length, and body go out as one
// buffered write so concurrent writers never interleave frames.
func (c *Conn) WriteFrame(body []byte, encryptionRequested bool) error {
	if encryptionRequested {
		return ErrUnsupportedFeature
	}

	var flags byte
	if len(body) >= CompressThreshold {
		deflated, err := deflateBytes(body)
		if err != nil {
			return fmt.Errorf("frame: compressing body: %w", err)
		}
		body = deflated
		flags |= FlagCompressed
	}

	buf := bytes.NewBuffer(make([]byte, 0, len(body)+5))
	if len(body) > math.MaxInt16 {
		flags |= FlagLargeSize
		buf.WriteByte(flags)
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(len(body)))
		buf.Write(b[:])
	} else {
		buf.WriteByte(flags)
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], uint16(len(body)))
		buf.Write(b[:])
	}
	buf.Write(body)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if nc, ok := c.rw.(net.Conn); ok && c.writeTimeout > 0 {
		_ = nc.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	if _, err := c.rw.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("frame: writing frame: %w", err)
	}
	return nil
}

func deflateBytes(body []byte) ([]byte, error) {
	var out bytes.Buffer
	w, err := flate.NewWriter(&out, flate.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(body); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func inflate(body []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(body))
	defer r.Close()
	out, err := io.ReadAll(io.LimitReader(r, MaxFrameSize+1))
	if err != nil {
		return nil, err
	}
	if len(out) > MaxFrameSize {
		return nil, fmt.Errorf("inflated body exceeds %d bytes", MaxFrameSize)
	}
	return out, nil
}
