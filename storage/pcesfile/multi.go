package pcesfile

import (
	"context"
	"fmt"
	"io"

	"github.com/xmh1011/go-pces/param"
)

// MultiFileIterator chains the files of a directory into one sequence of
// events, checking that each file's seed hash equals the terminal hash of the
// file before it. At most one file is open at any time.
type MultiFileIterator struct {
	files []string
	bound param.LowerBound
	opts  Options

	pos     int // index in files of current
	current *SingleFileIterator

	startHash    param.Hash
	prevEndHash  *param.Hash
	skipped      []*param.PersistedEvent
	next         *param.PersistedEvent
	fileCount    int
	damagedCount int
	closedBytes  int64
	err          error
}

// NewMultiFileIterator opens the files of dir needed to read from bound
// onwards. Events before the bound are consumed up front and kept in
// SkippedEvents.
func NewMultiFileIterator(dir string, bound param.LowerBound, opts Options) (*MultiFileIterator, error) {
	opts = opts.withDefaults()
	files, err := FindFiles(dir, opts.Suffix, bound)
	if err != nil {
		return nil, err
	}
	return NewMultiFileIteratorFromFiles(files, bound, opts)
}

// NewMultiFileIteratorFromFiles iterates an explicit, ordered list of files.
func NewMultiFileIteratorFromFiles(files []string, bound param.LowerBound, opts Options) (*MultiFileIterator, error) {
	opts = opts.withDefaults()
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no files to read", ErrNotFound)
	}
	if bound == nil {
		bound = param.Unbounded{}
	}
	m := &MultiFileIterator{
		files: files,
		bound: bound,
		opts:  opts,
	}
	if err := m.openFile(0); err != nil {
		return nil, err
	}
	m.startHash = m.current.StartHash()

	if err := m.skipToBound(); err != nil {
		m.Close()
		return nil, err
	}
	return m, nil
}

// skipToBound consumes every event strictly before the bound.
func (m *MultiFileIterator) skipToBound() error {
	if param.IsUnbounded(m.bound) {
		return nil
	}
	for {
		ok, err := m.HasNext()
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: no event at or after %s in %d file(s) from %s", ErrNotFound, m.bound, m.fileCount, m.files[0])
		}
		if m.bound.Compare(m.next.Consensus) >= 0 {
			break
		}
		m.skipped = append(m.skipped, m.next)
		m.next = nil
	}
	if len(m.skipped) > 0 {
		m.opts.Logger.Debug("skipped events before lower bound",
			"bound", m.bound.String(), "skipped", len(m.skipped))
	}
	return nil
}

// StartHash returns the seed hash of the first file read.
func (m *MultiFileIterator) StartHash() param.Hash {
	return m.startHash
}

// SkippedEvents returns the events consumed before the lower bound, oldest
// first. They are never returned by Next.
func (m *MultiFileIterator) SkippedEvents() []*param.PersistedEvent {
	return m.skipped
}

// FileCount returns the number of files opened so far.
func (m *MultiFileIterator) FileCount() int {
	return m.fileCount
}

// DamagedFileCount returns the number of files found without a terminal hash.
func (m *MultiFileIterator) DamagedFileCount() int {
	return m.damagedCount
}

// BytesRead returns the bytes consumed from every file opened so far.
func (m *MultiFileIterator) BytesRead() int64 {
	if m.current != nil {
		return m.closedBytes + m.current.BytesRead()
	}
	return m.closedBytes
}

func (m *MultiFileIterator) HasNext() (bool, error) {
	if err := m.findNext(); err != nil {
		return false, err
	}
	return m.next != nil, nil
}

func (m *MultiFileIterator) Peek() (*param.PersistedEvent, error) {
	ok, err := m.HasNext()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, io.EOF
	}
	return m.next, nil
}

func (m *MultiFileIterator) Next() (*param.PersistedEvent, error) {
	ev, err := m.Peek()
	if err != nil {
		return nil, err
	}
	m.next = nil
	m.opts.Metrics.EventRead(context.Background())
	return ev, nil
}

// Close releases the open file, if any.
func (m *MultiFileIterator) Close() error {
	m.next = nil
	if m.current == nil {
		return nil
	}
	m.closedBytes += m.current.BytesRead()
	err := m.current.Close()
	m.current = nil
	return err
}

func (m *MultiFileIterator) findNext() error {
	if m.err != nil {
		return m.err
	}
	for m.next == nil && m.current != nil {
		ok, err := m.current.HasNext()
		if err != nil {
			return m.fail(err)
		}
		if ok {
			m.next, _ = m.current.Next()
			return nil
		}
		if err := m.finishFile(); err != nil {
			return m.fail(err)
		}
		if m.pos+1 < len(m.files) {
			if err := m.openFile(m.pos + 1); err != nil {
				return m.fail(err)
			}
		}
	}
	return nil
}

func (m *MultiFileIterator) finishFile() error {
	cur := m.current
	last := m.pos == len(m.files)-1
	damaged := cur.IsDamaged()
	m.opts.Metrics.FileClosed(context.Background(), cur.BytesRead(), damaged)
	m.prevEndHash = cur.EndHash()
	if err := m.Close(); err != nil {
		return fmt.Errorf("close %s: %w", cur.Name(), err)
	}

	if !damaged {
		return nil
	}
	m.damagedCount++
	if !last {
		return fmt.Errorf("%w: %s ends without a terminal hash but is followed by %s",
			ErrContinuity, cur.Name(), m.files[m.pos+1])
	}
	m.opts.Logger.Warn("last event stream file has no terminal hash",
		"file", cur.Name(), "events", cur.EventCount())
	return nil
}

func (m *MultiFileIterator) openFile(pos int) error {
	tolerant := !m.opts.StrictLastFile && pos == len(m.files)-1
	it, err := OpenFile(m.files[pos], tolerant)
	if err != nil {
		return err
	}
	if pos > 0 && m.prevEndHash != nil && !it.StartHash().Equal(*m.prevEndHash) {
		it.Close()
		return fmt.Errorf("%w: missing file before %s: seed hash %s does not match terminal hash %s of %s",
			ErrContinuity, m.files[pos], it.StartHash().Short(), m.prevEndHash.Short(), m.files[pos-1])
	}
	m.pos = pos
	m.current = it
	m.fileCount++
	m.opts.Metrics.FileOpened(context.Background(), tolerant)
	m.opts.Logger.Debug("opened event stream file", "file", m.files[pos], "tolerant", tolerant)
	return nil
}

func (m *MultiFileIterator) fail(err error) error {
	m.err = err
	m.Close()
	return err
}
