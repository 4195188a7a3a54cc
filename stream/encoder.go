package stream

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/xmh1011/go-pces/param"
)

// Encoder writes a stream header followed by framed records.
type Encoder struct {
	w       *bufio.Writer
	written int64
}

// NewEncoder writes the stream header to w.
func NewEncoder(w io.Writer) (*Encoder, error) {
	e := &Encoder{w: bufio.NewWriter(w)}
	var hdr [HeaderSize]byte
	binary.BigEndian.PutUint32(hdr[0:4], uint32(OuterVersion))
	binary.BigEndian.PutUint32(hdr[4:8], uint32(ObjectVersion))
	if err := e.write(hdr[:]); err != nil {
		return nil, err
	}
	return e, nil
}

// Write encodes one record.
func (e *Encoder) Write(obj Object) error {
	id, version, body, err := encodeBody(obj)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFormat, err)
	}
	if len(body) > MaxRecordSize {
		return fmt.Errorf("%w: %s record of %d bytes exceeds limit", ErrFormat, id, len(body))
	}
	var frame [frameHeaderSize]byte
	binary.BigEndian.PutUint64(frame[0:8], uint64(id))
	binary.BigEndian.PutUint32(frame[8:12], uint32(version))
	binary.BigEndian.PutUint32(frame[12:16], uint32(len(body)))
	if err := e.write(frame[:]); err != nil {
		return err
	}
	return e.write(body)
}

// WriteHash encodes a hash record.
func (e *Encoder) WriteHash(h param.Hash) error {
	return e.Write(&h)
}

// WriteEvent encodes an event record.
func (e *Encoder) WriteEvent(ev *param.PersistedEvent) error {
	return e.Write(ev)
}

// Flush writes buffered data to the underlying writer.
func (e *Encoder) Flush() error {
	if err := e.w.Flush(); err != nil {
		return fmt.Errorf("%w: flush: %w", ErrIO, err)
	}
	return nil
}

// BytesWritten returns the number of bytes accepted so far, header included.
func (e *Encoder) BytesWritten() int64 {
	return e.written
}

func (e *Encoder) write(p []byte) error {
	n, err := e.w.Write(p)
	e.written += int64(n)
	if err != nil {
		return fmt.Errorf("%w: write: %w", ErrIO, err)
	}
	return nil
}
