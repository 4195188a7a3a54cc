package stream

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// Option configures a Decoder.
type Option func(*Decoder)

// Tolerant makes the decoder treat end of input inside a record, or inside the
// header, as a clean end of stream.
func Tolerant() Option {
	return func(d *Decoder) {
		d.tolerant = true
	}
}

// WithTolerance sets tolerant mode explicitly.
func WithTolerance(tolerant bool) Option {
	return func(d *Decoder) {
		d.tolerant = tolerant
	}
}

// Decoder is a forward-only cursor over the records of one stream. It is not
// restartable and not safe for concurrent use.
type Decoder struct {
	r        *bufio.Reader
	counter  *countingReader
	closer   io.Closer
	tolerant bool

	next Object
	done bool
	err  error

	// truncated is set when tolerant mode swallowed a partial record
	truncated bool
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// NewDecoder reads and validates the stream header from r.
func NewDecoder(r io.Reader, opts ...Option) (*Decoder, error) {
	d := &Decoder{}
	for _, opt := range opts {
		opt(d)
	}
	d.counter = &countingReader{r: r}
	d.r = bufio.NewReader(d.counter)
	if c, ok := r.(io.Closer); ok {
		d.closer = c
	}
	if err := d.readHeader(); err != nil {
		return nil, err
	}
	return d, nil
}

// Open opens path and returns a decoder that owns the file handle.
func Open(path string, opts ...Option) (*Decoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	d, err := NewDecoder(f, opts...)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

func (d *Decoder) readHeader() error {
	var hdr [HeaderSize]byte
	n, err := io.ReadFull(d.r, hdr[:])
	switch {
	case err == nil:
	case errors.Is(err, io.EOF) && n == 0 && d.tolerant:
		d.done = true
		return nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		if d.tolerant {
			d.done = true
			d.truncated = true
			return nil
		}
		return fmt.Errorf("%w: header has %d of %d bytes", ErrTruncated, n, HeaderSize)
	default:
		return fmt.Errorf("%w: read header: %w", ErrIO, err)
	}

	outer := int32(binary.BigEndian.Uint32(hdr[0:4]))
	object := int32(binary.BigEndian.Uint32(hdr[4:8]))
	if outer != OuterVersion {
		return fmt.Errorf("%w: stream version %d, expected %d", ErrFormat, outer, OuterVersion)
	}
	if object != ObjectVersion {
		return fmt.Errorf("%w: object stream version %d, expected %d", ErrFormat, object, ObjectVersion)
	}
	return nil
}

// HasNext reports whether another record is available.
func (d *Decoder) HasNext() (bool, error) {
	if d.next != nil {
		return true, nil
	}
	if d.err != nil {
		return false, d.err
	}
	if d.done {
		return false, nil
	}
	obj, err := d.readRecord()
	if err != nil {
		d.err = err
		return false, err
	}
	if obj == nil {
		d.done = true
		return false, nil
	}
	d.next = obj
	return true, nil
}

// Peek returns the next record without consuming it. It returns io.EOF when
// the stream is exhausted.
func (d *Decoder) Peek() (Object, error) {
	ok, err := d.HasNext()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, io.EOF
	}
	return d.next, nil
}

// Next consumes and returns the next record. It returns io.EOF when the
// stream is exhausted.
func (d *Decoder) Next() (Object, error) {
	obj, err := d.Peek()
	if err != nil {
		return nil, err
	}
	d.next = nil
	return obj, nil
}

// BytesRead returns the number of bytes consumed from the source so far,
// including the header and any partial trailing record.
func (d *Decoder) BytesRead() int64 {
	return d.counter.n - int64(d.r.Buffered())
}

// Truncated reports whether tolerant mode ended the stream inside a record.
func (d *Decoder) Truncated() bool {
	return d.truncated
}

// Close releases the underlying source if the decoder owns it.
func (d *Decoder) Close() error {
	d.done = true
	d.next = nil
	if d.closer == nil {
		return nil
	}
	c := d.closer
	d.closer = nil
	return c.Close()
}

// readRecord returns (nil, nil) at a clean end of stream.
func (d *Decoder) readRecord() (Object, error) {
	var frame [frameHeaderSize]byte
	n, err := io.ReadFull(d.r, frame[:])
	switch {
	case err == nil:
	case errors.Is(err, io.EOF) && n == 0:
		return nil, nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return d.endMidRecord("record header", n, frameHeaderSize)
	default:
		return nil, fmt.Errorf("%w: read record header: %w", ErrIO, err)
	}

	id := ClassID(binary.BigEndian.Uint64(frame[0:8]))
	version := int32(binary.BigEndian.Uint32(frame[8:12]))
	length := int32(binary.BigEndian.Uint32(frame[12:16]))
	if length < 0 || length > MaxRecordSize {
		return nil, fmt.Errorf("%w: %s record length %d out of range", ErrFormat, id, length)
	}

	body := make([]byte, length)
	if n, err := io.ReadFull(d.r, body); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return d.endMidRecord(id.String()+" record body", n, int(length))
		}
		return nil, fmt.Errorf("%w: read %s record body: %w", ErrIO, id, err)
	}
	return decodeBody(id, version, body)
}

func (d *Decoder) endMidRecord(what string, have, want int) (Object, error) {
	if d.tolerant {
		d.truncated = true
		return nil, nil
	}
	return nil, fmt.Errorf("%w: %s has %d of %d bytes", ErrTruncated, what, have, want)
}
