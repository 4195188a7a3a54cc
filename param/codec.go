package param

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrMalformed is returned when a record body cannot be decoded.
var ErrMalformed = errors.New("malformed record body")

// bodyWriter appends big-endian primitives to a byte slice.
type bodyWriter struct {
	buf []byte
}

func (w *bodyWriter) int32(v int32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(v))
}

func (w *bodyWriter) uint32(v uint32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
}

func (w *bodyWriter) int64(v int64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, uint64(v))
}

func (w *bodyWriter) bool(v bool) {
	if v {
		w.buf = append(w.buf, 1)
	} else {
		w.buf = append(w.buf, 0)
	}
}

func (w *bodyWriter) bytes(b []byte) {
	w.int32(int32(len(b)))
	w.buf = append(w.buf, b...)
}

func (w *bodyWriter) string(s string) {
	w.int32(int32(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *bodyWriter) instant(t time.Time) {
	w.int64(t.Unix())
	w.int32(int32(t.Nanosecond()))
}

func (w *bodyWriter) hash(h Hash) {
	w.uint32(uint32(h.Type))
	w.bytes(h.Value)
}

func (w *bodyWriter) nullableHash(h *Hash) {
	if h == nil {
		w.bool(false)
		return
	}
	w.bool(true)
	w.hash(*h)
}

// bodyReader consumes big-endian primitives. The first failure sticks; later
// calls return zero values and err reports it.
type bodyReader struct {
	b   []byte
	off int
	err error
}

func (r *bodyReader) need(n int, what string) bool {
	if r.err != nil {
		return false
	}
	if n < 0 || len(r.b)-r.off < n {
		r.err = fmt.Errorf("%w: %s needs %d bytes at offset %d, have %d", ErrMalformed, what, n, r.off, len(r.b)-r.off)
		return false
	}
	return true
}

func (r *bodyReader) int32(what string) int32 {
	if !r.need(4, what) {
		return 0
	}
	v := binary.BigEndian.Uint32(r.b[r.off:])
	r.off += 4
	return int32(v)
}

func (r *bodyReader) uint32(what string) uint32 {
	return uint32(r.int32(what))
}

func (r *bodyReader) int64(what string) int64 {
	if !r.need(8, what) {
		return 0
	}
	v := binary.BigEndian.Uint64(r.b[r.off:])
	r.off += 8
	return int64(v)
}

func (r *bodyReader) bool(what string) bool {
	if !r.need(1, what) {
		return false
	}
	v := r.b[r.off]
	r.off++
	switch v {
	case 0:
		return false
	case 1:
		return true
	default:
		r.err = fmt.Errorf("%w: %s has invalid boolean byte 0x%02x", ErrMalformed, what, v)
		return false
	}
}

func (r *bodyReader) bytes(what string) []byte {
	n := int(r.int32(what + " length"))
	if !r.need(n, what) {
		return nil
	}
	out := append([]byte(nil), r.b[r.off:r.off+n]...)
	r.off += n
	return out
}

func (r *bodyReader) string(what string) string {
	return string(r.bytes(what))
}

func (r *bodyReader) instant(what string) time.Time {
	sec := r.int64(what + " seconds")
	nsec := r.int32(what + " nanos")
	if r.err != nil {
		return time.Time{}
	}
	if nsec < 0 || nsec >= 1e9 {
		r.err = fmt.Errorf("%w: %s nanos out of range: %d", ErrMalformed, what, nsec)
		return time.Time{}
	}
	return time.Unix(sec, int64(nsec)).UTC()
}

func (r *bodyReader) hash(what string) Hash {
	t := DigestType(r.uint32(what + " digest type"))
	v := r.bytes(what)
	if r.err != nil {
		return Hash{}
	}
	if size := t.Size(); size == 0 || size != len(v) {
		r.err = fmt.Errorf("%w: %s has digest type %s with %d bytes", ErrMalformed, what, t, len(v))
		return Hash{}
	}
	return Hash{Type: t, Value: v}
}

func (r *bodyReader) nullableHash(what string) *Hash {
	if !r.bool(what + " present") {
		return nil
	}
	h := r.hash(what)
	if r.err != nil {
		return nil
	}
	return &h
}

func (r *bodyReader) finish(what string) error {
	if r.err != nil {
		return r.err
	}
	if r.off != len(r.b) {
		return fmt.Errorf("%w: %d trailing bytes after %s", ErrMalformed, len(r.b)-r.off, what)
	}
	return nil
}

// MarshalBinary encodes the hash as digest type, length and digest bytes.
func (h Hash) MarshalBinary() ([]byte, error) {
	if len(h.Value) > math.MaxInt32 {
		return nil, fmt.Errorf("hash too large: %d bytes", len(h.Value))
	}
	w := &bodyWriter{buf: make([]byte, 0, 8+len(h.Value))}
	w.hash(h)
	return w.buf, nil
}

// UnmarshalBinary decodes a hash written by MarshalBinary.
func (h *Hash) UnmarshalBinary(data []byte) error {
	r := &bodyReader{b: data}
	v := r.hash("hash")
	if err := r.finish("hash"); err != nil {
		return err
	}
	*h = v
	return nil
}
