package pcesfile

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/xmh1011/go-pces/hashing"
	"github.com/xmh1011/go-pces/param"
	"github.com/xmh1011/go-pces/stream"
)

// Writer produces a well-formed event stream file: the seed hash, the events
// in order, and on Close the terminal hash. Event stream files are normally
// written by the consensus engine; this writer serves tooling and tests.
type Writer struct {
	closer  io.Closer
	enc     *stream.Encoder
	running *hashing.RunningHash
	events  int
	done    bool
}

// CreateFile creates path (failing if it exists) and writes the seed hash.
func CreateFile(path string, h hashing.Hasher, seed param.Hash) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", stream.ErrIO, err)
	}
	w, err := NewWriter(f, h, seed)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	w.closer = f
	return w, nil
}

// NewWriter writes the stream header and seed hash to out.
func NewWriter(out io.Writer, h hashing.Hasher, seed param.Hash) (*Writer, error) {
	enc, err := stream.NewEncoder(out)
	if err != nil {
		return nil, err
	}
	if err := enc.WriteHash(seed); err != nil {
		return nil, err
	}
	return &Writer{
		enc:     enc,
		running: hashing.NewRunningHash(h, seed),
	}, nil
}

// Append writes an event and folds it into the running hash.
func (w *Writer) Append(ev *param.PersistedEvent) error {
	if w.done {
		return errors.New("pcesfile: append to closed writer")
	}
	if err := w.enc.WriteEvent(ev); err != nil {
		return err
	}
	if _, err := w.running.AddEvent(ev); err != nil {
		return err
	}
	w.events++
	return nil
}

// RunningHash returns the hash through the last appended event.
func (w *Writer) RunningHash() param.Hash {
	return w.running.Current()
}

// EventCount returns the number of events appended.
func (w *Writer) EventCount() int {
	return w.events
}

// BytesWritten returns the size of the output so far.
func (w *Writer) BytesWritten() int64 {
	return w.enc.BytesWritten()
}

// Close writes the terminal hash, flushes and closes the file. It returns the
// terminal hash, which seeds the next file of the chain.
func (w *Writer) Close() (param.Hash, error) {
	if w.done {
		return param.Hash{}, errors.New("pcesfile: writer already closed")
	}
	end := w.running.Current()
	if err := w.enc.WriteHash(end); err != nil {
		w.Abandon()
		return param.Hash{}, err
	}
	if err := w.finish(); err != nil {
		return param.Hash{}, err
	}
	return end, nil
}

// Abandon flushes and closes the file without a terminal hash, leaving it as
// a crash would.
func (w *Writer) Abandon() error {
	if w.done {
		return nil
	}
	return w.finish()
}

func (w *Writer) finish() error {
	w.done = true
	err := w.enc.Flush()
	if w.closer != nil {
		if f, ok := w.closer.(*os.File); ok && err == nil {
			if serr := f.Sync(); serr != nil {
				err = fmt.Errorf("%w: sync: %w", stream.ErrIO, serr)
			}
		}
		if cerr := w.closer.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: close: %w", stream.ErrIO, cerr)
		}
	}
	return err
}
