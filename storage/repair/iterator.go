// Package repair restores the terminal hash of an event stream file that a
// crash left unfinished.
package repair

import (
	"errors"
	"fmt"
	"io"

	"github.com/xmh1011/go-pces/hashing"
	"github.com/xmh1011/go-pces/param"
	"github.com/xmh1011/go-pces/stream"
)

// Iterator replays every record of a stream. If the stream ends on an event,
// it yields one more record: the terminal hash, computed as the running hash
// through that event.
type Iterator struct {
	dec    *stream.Decoder
	hasher hashing.Hasher

	running    *hashing.RunningHash
	seed       *param.Hash
	last       stream.Object
	next       stream.Object
	eventCount int
	hashAdded  bool
	done       bool
	err        error
}

// NewIterator wraps dec, which should be tolerant so that a partial trailing
// record ends the replay. The iterator takes ownership of dec.
func NewIterator(dec *stream.Decoder, h hashing.Hasher) *Iterator {
	return &Iterator{dec: dec, hasher: h}
}

// FinalHashAdded reports whether a terminal hash was synthesized.
func (it *Iterator) FinalHashAdded() bool {
	return it.hashAdded
}

// EventCount returns the number of events replayed.
func (it *Iterator) EventCount() int {
	return it.eventCount
}

// SeedHash returns the first hash record, or nil if none was seen.
func (it *Iterator) SeedHash() *param.Hash {
	return it.seed
}

// TerminalHash returns the last record if it is a hash other than the seed.
func (it *Iterator) TerminalHash() *param.Hash {
	h, ok := it.last.(*param.Hash)
	if !ok || h == it.seed {
		return nil
	}
	return h
}

// Truncated reports whether the decoder dropped a partial trailing record.
func (it *Iterator) Truncated() bool {
	return it.dec.Truncated()
}

func (it *Iterator) HasNext() (bool, error) {
	if err := it.findNext(); err != nil {
		return false, err
	}
	return it.next != nil, nil
}

func (it *Iterator) Peek() (stream.Object, error) {
	ok, err := it.HasNext()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, io.EOF
	}
	return it.next, nil
}

func (it *Iterator) Next() (stream.Object, error) {
	obj, err := it.Peek()
	if err != nil {
		return nil, err
	}
	it.next = nil
	return obj, nil
}

func (it *Iterator) Close() error {
	it.done = true
	it.next = nil
	return it.dec.Close()
}

func (it *Iterator) findNext() error {
	if it.err != nil {
		return it.err
	}
	if it.next != nil || it.done {
		return nil
	}

	obj, err := it.dec.Next()
	if errors.Is(err, io.EOF) {
		it.done = true
		if _, ok := it.last.(*param.PersistedEvent); ok {
			end := it.running.Current()
			it.next = &end
			it.last = it.next
			it.hashAdded = true
		}
		return nil
	}
	if err != nil {
		it.err = err
		return err
	}

	switch o := obj.(type) {
	case *param.Hash:
		if it.running == nil {
			it.seed = o
			it.running = hashing.NewRunningHash(it.hasher, *o)
		}
	case *param.PersistedEvent:
		if it.running == nil {
			it.err = fmt.Errorf("%w: event before seed hash", stream.ErrFormat)
			return it.err
		}
		if _, err := it.running.AddEvent(o); err != nil {
			it.err = err
			return err
		}
		it.eventCount++
	default:
		it.err = fmt.Errorf("%w: cannot repair around %s record", stream.ErrFormat, stream.TypeOf(obj))
		return it.err
	}
	it.next = obj
	it.last = obj
	return nil
}
