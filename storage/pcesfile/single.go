package pcesfile

import (
	"errors"
	"fmt"
	"io"

	"github.com/xmh1011/go-pces/param"
	"github.com/xmh1011/go-pces/stream"
)

type fileState int

const (
	awaitingFirstHash fileState = iota
	readingEvents
	exhausted
)

func (s fileState) String() string {
	switch s {
	case awaitingFirstHash:
		return "AwaitingFirstHash"
	case readingEvents:
		return "ReadingEvents"
	case exhausted:
		return "Exhausted"
	default:
		return "Unknown"
	}
}

// SingleFileIterator walks the events of one file, enforcing the grammar
// `Hash Event+ Hash?`.
type SingleFileIterator struct {
	name  string
	dec   *stream.Decoder
	state fileState

	startHash  param.Hash
	endHash    *param.Hash
	next       *param.PersistedEvent
	eventCount int
	inputEnded bool
	err        error
}

// OpenFile opens path and reads its seed hash. In tolerant mode an abrupt end
// of the file ends the sequence and leaves the iterator damaged.
func OpenFile(path string, tolerant bool) (*SingleFileIterator, error) {
	dec, err := stream.Open(path, stream.WithTolerance(tolerant))
	if err != nil {
		return nil, err
	}
	it, err := NewSingleFileIterator(dec, path)
	if err != nil {
		dec.Close()
		return nil, err
	}
	return it, nil
}

// NewSingleFileIterator wraps an open decoder; name is used in errors only.
// The iterator takes ownership of dec.
func NewSingleFileIterator(dec *stream.Decoder, name string) (*SingleFileIterator, error) {
	it := &SingleFileIterator{name: name, dec: dec}
	first, err := dec.Next()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: %w: missing seed hash", name, stream.ErrFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	seed, ok := first.(*param.Hash)
	if !ok {
		return nil, fmt.Errorf("%s: %w: missing seed hash, first record is %s", name, stream.ErrFormat, stream.TypeOf(first))
	}
	it.startHash = *seed
	it.state = readingEvents
	return it, nil
}

// Name returns the path or label the iterator was opened with.
func (it *SingleFileIterator) Name() string {
	return it.name
}

// StartHash returns the seed hash of the file.
func (it *SingleFileIterator) StartHash() param.Hash {
	return it.startHash
}

// EndHash returns the terminal hash, or nil until it has been read.
func (it *SingleFileIterator) EndHash() *param.Hash {
	return it.endHash
}

// IsDamaged reports whether the file ended without a terminal hash.
func (it *SingleFileIterator) IsDamaged() bool {
	return it.inputEnded && it.endHash == nil
}

// BytesRead returns the bytes consumed from the file so far.
func (it *SingleFileIterator) BytesRead() int64 {
	return it.dec.BytesRead()
}

// EventCount returns the number of events read so far, including a peeked one.
func (it *SingleFileIterator) EventCount() int {
	return it.eventCount
}

func (it *SingleFileIterator) HasNext() (bool, error) {
	if err := it.findNext(); err != nil {
		return false, err
	}
	return it.next != nil, nil
}

func (it *SingleFileIterator) Peek() (*param.PersistedEvent, error) {
	ok, err := it.HasNext()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, io.EOF
	}
	return it.next, nil
}

func (it *SingleFileIterator) Next() (*param.PersistedEvent, error) {
	ev, err := it.Peek()
	if err != nil {
		return nil, err
	}
	it.next = nil
	return ev, nil
}

// Close releases the file handle. It is safe to call more than once.
func (it *SingleFileIterator) Close() error {
	it.state = exhausted
	it.next = nil
	return it.dec.Close()
}

func (it *SingleFileIterator) findNext() error {
	if it.err != nil {
		return it.err
	}
	if it.next != nil || it.state == exhausted {
		return nil
	}

	obj, err := it.dec.Next()
	if errors.Is(err, io.EOF) {
		it.inputEnded = true
		it.state = exhausted
		return nil
	}
	if err != nil {
		return it.fail(err)
	}

	switch o := obj.(type) {
	case *param.PersistedEvent:
		it.next = o
		it.eventCount++
	case *param.Hash:
		if it.eventCount == 0 {
			return it.fail(fmt.Errorf("%w: file has no events", stream.ErrFormat))
		}
		it.endHash = o
		it.state = exhausted
	default:
		return it.fail(fmt.Errorf("%w: unexpected %s record in %s state", stream.ErrFormat, stream.TypeOf(obj), it.state))
	}
	return nil
}

func (it *SingleFileIterator) fail(err error) error {
	it.err = fmt.Errorf("%s: %w", it.name, err)
	it.state = exhausted
	return it.err
}
