package hashing

import (
	"github.com/xmh1011/go-pces/param"
)

// RunningHash folds records into a hash chain, one at a time:
//
//	next = H(serialize(current) || serialize(H(record)))
//
// Not safe for concurrent use.
type RunningHash struct {
	hasher  Hasher
	current param.Hash
	count   int64
}

// NewRunningHash starts a chain at seed.
func NewRunningHash(h Hasher, seed param.Hash) *RunningHash {
	return &RunningHash{hasher: h, current: seed}
}

// Current returns the hash through the last folded record.
func (r *RunningHash) Current() param.Hash {
	return r.current
}

// Count returns the number of records folded since the seed.
func (r *RunningHash) Count() int64 {
	return r.count
}

// Add folds an already computed object hash into the chain.
func (r *RunningHash) Add(objectHash param.Hash) param.Hash {
	r.current = r.hasher.Sum(mustMarshal(r.current), mustMarshal(objectHash))
	r.count++
	return r.current
}

func mustMarshal(h param.Hash) []byte {
	// only fails for digests over 2 GiB
	b, err := h.MarshalBinary()
	if err != nil {
		panic(err)
	}
	return b
}

// AddEvent folds an event record into the chain.
func (r *RunningHash) AddEvent(e *param.PersistedEvent) (param.Hash, error) {
	objectHash, err := RecordHash(r.hasher, e)
	if err != nil {
		return param.Hash{}, err
	}
	return r.Add(objectHash), nil
}

// Chain computes the running hash of events starting at seed.
func Chain(h Hasher, seed param.Hash, events ...*param.PersistedEvent) (param.Hash, error) {
	r := NewRunningHash(h, seed)
	for _, e := range events {
		if _, err := r.AddEvent(e); err != nil {
			return param.Hash{}, err
		}
	}
	return r.Current(), nil
}
