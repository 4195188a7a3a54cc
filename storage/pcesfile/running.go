package pcesfile

import (
	"fmt"

	"github.com/xmh1011/go-pces/hashing"
	"github.com/xmh1011/go-pces/param"
)

// RunningHashIterator decorates a MultiFileIterator with the running hash of
// the chain. After Next returns an event, RunningHash is the hash through that
// event. It does not compare the hash against anything.
type RunningHashIterator struct {
	inner   *MultiFileIterator
	running *hashing.RunningHash
}

// NewRunningHashIterator seeds the running hash with the chain's start hash
// and folds in the events the inner iterator skipped.
func NewRunningHashIterator(inner *MultiFileIterator, h hashing.Hasher) (*RunningHashIterator, error) {
	running := hashing.NewRunningHash(h, inner.StartHash())
	for _, ev := range inner.SkippedEvents() {
		if _, err := running.AddEvent(ev); err != nil {
			return nil, fmt.Errorf("fold skipped event: %w", err)
		}
	}
	return &RunningHashIterator{inner: inner, running: running}, nil
}

// OpenHistory opens dir from bound with a running hash.
func OpenHistory(dir string, bound param.LowerBound, h hashing.Hasher, opts Options) (*RunningHashIterator, error) {
	inner, err := NewMultiFileIterator(dir, bound, opts)
	if err != nil {
		return nil, err
	}
	it, err := NewRunningHashIterator(inner, h)
	if err != nil {
		inner.Close()
		return nil, err
	}
	return it, nil
}

// RunningHash returns the hash through the last event returned by Next.
func (r *RunningHashIterator) RunningHash() param.Hash {
	return r.running.Current()
}

func (r *RunningHashIterator) StartHash() param.Hash {
	return r.inner.StartHash()
}

func (r *RunningHashIterator) FileCount() int {
	return r.inner.FileCount()
}

func (r *RunningHashIterator) DamagedFileCount() int {
	return r.inner.DamagedFileCount()
}

func (r *RunningHashIterator) BytesRead() int64 {
	return r.inner.BytesRead()
}

func (r *RunningHashIterator) HasNext() (bool, error) {
	return r.inner.HasNext()
}

func (r *RunningHashIterator) Peek() (*param.PersistedEvent, error) {
	return r.inner.Peek()
}

func (r *RunningHashIterator) Next() (*param.PersistedEvent, error) {
	ev, err := r.inner.Next()
	if err != nil {
		return nil, err
	}
	if _, err := r.running.AddEvent(ev); err != nil {
		return nil, fmt.Errorf("fold event %s: %w", ev, err)
	}
	return ev, nil
}

func (r *RunningHashIterator) Close() error {
	return r.inner.Close()
}
