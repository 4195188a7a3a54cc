// Package eventgen produces deterministic consensus histories and lays them
// out as event stream directories. It backs the gen command of pcestool and
// the tests of the storage and transport packages.
package eventgen

import (
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"time"

	"github.com/xmh1011/go-pces/hashing"
	"github.com/xmh1011/go-pces/param"
	"github.com/xmh1011/go-pces/storage/pcesfile"
)

// Generator emits events in consensus order. Not safe for concurrent use.
type Generator struct {
	rng      *rand.Rand
	hasher   hashing.Hasher
	creators int64
	perRound int
	version  string

	round   int64
	inRound int
	order   int64
	now     time.Time

	last    *param.PersistedEvent
	lastOf  map[int64]*param.PersistedEvent // latest event per creator
	hashOf  map[int64]param.Hash            // hash of lastOf[creator]
	seqOf   map[int64]int64
	created int
}

// Option configures a Generator.
type Option func(*Generator)

func WithCreators(n int) Option {
	return func(g *Generator) { g.creators = int64(max(n, 1)) }
}

func WithEventsPerRound(n int) Option {
	return func(g *Generator) { g.perRound = max(n, 1) }
}

func WithStartRound(r int64) Option {
	return func(g *Generator) { g.round = max(r, 1) }
}

func WithStartTime(t time.Time) Option {
	return func(g *Generator) { g.now = t.UTC() }
}

func WithVersion(v string) Option {
	return func(g *Generator) { g.version = v }
}

func WithHasher(h hashing.Hasher) Option {
	return func(g *Generator) { g.hasher = h }
}

// New returns a Generator whose output depends only on seed and opts.
func New(seed uint64, opts ...Option) *Generator {
	g := &Generator{
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		hasher:   hashing.Default(),
		creators: 4,
		perRound: 5,
		version:  "0.1.0",
		round:    1,
		now:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		lastOf:   make(map[int64]*param.PersistedEvent),
		hashOf:   make(map[int64]param.Hash),
		seqOf:    make(map[int64]int64),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Next returns the next event of the history.
func (g *Generator) Next() *param.PersistedEvent {
	creator := int64(g.created) % g.creators
	g.created++
	g.now = g.now.Add(time.Duration(1+g.rng.IntN(50)) * time.Millisecond)

	ev := &param.PersistedEvent{
		Hashed: param.HashedEventData{
			SoftwareVersion: g.version,
			CreatorID:       creator,
			SelfParentGen:   -1,
			OtherParentGen:  -1,
			TimeCreated:     g.now,
			Transactions:    g.transactions(),
		},
		Unhashed: param.UnhashedEventData{
			CreatorSeq: g.seqOf[creator],
			OtherID:    -1,
			OtherSeq:   -1,
			Signature:  g.bytes(64),
		},
		Consensus: param.ConsensusData{
			RoundCreated:        max(g.round-int64(g.rng.IntN(2)), 1),
			RoundReceived:       g.round,
			ConsensusOrder:      g.order,
			ConsensusTimestamp:  g.now.Add(time.Second),
			LastInRoundReceived: g.inRound == g.perRound-1,
		},
	}
	g.seqOf[creator]++

	if self := g.lastOf[creator]; self != nil {
		h := g.hashOf[creator]
		ev.Hashed.SelfParentHash = &h
		ev.Hashed.SelfParentGen = self.Hashed.Generation()
	}
	if other := g.last; other != nil && other.Hashed.CreatorID != creator {
		h := g.hashOf[other.Hashed.CreatorID]
		ev.Hashed.OtherParentHash = &h
		ev.Hashed.OtherParentGen = other.Hashed.Generation()
		ev.Unhashed.OtherID = other.Hashed.CreatorID
		ev.Unhashed.OtherSeq = other.Unhashed.CreatorSeq
	}

	hash, err := hashing.EventHash(g.hasher, &ev.Hashed)
	if err != nil {
		panic(fmt.Sprintf("eventgen: hash event: %v", err))
	}
	g.hashOf[creator] = hash
	g.lastOf[creator] = ev
	g.last = ev

	g.order++
	g.inRound++
	if g.inRound == g.perRound {
		g.inRound = 0
		g.round++
	}
	return ev
}

// Events returns the next n events.
func (g *Generator) Events(n int) []*param.PersistedEvent {
	out := make([]*param.PersistedEvent, n)
	for i := range out {
		out[i] = g.Next()
	}
	return out
}

func (g *Generator) transactions() [][]byte {
	n := g.rng.IntN(4)
	if n == 0 {
		return nil
	}
	txs := make([][]byte, n)
	for i := range txs {
		txs[i] = g.bytes(8 + g.rng.IntN(25))
	}
	return txs
}

func (g *Generator) bytes(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(g.rng.Uint32())
	}
	return b
}

// Seed derives a chain start hash from label.
func Seed(h hashing.Hasher, label string) param.Hash {
	return h.Sum([]byte(label))
}

// FileName returns the name of the index'th file of a directory. Names sort
// in write order.
func FileName(index int, firstRound int64, suffix string) string {
	if suffix == "" {
		suffix = pcesfile.DefaultSuffix
	}
	return fmt.Sprintf("%06d_r%010d%s", index, firstRound, suffix)
}

// WriteDir writes one file per element of files into dir, chaining each seed
// hash to the terminal hash of the file before. With crash set, the last
// file is left without its terminal hash. It returns the paths written and the
// running hash through the last event.
func WriteDir(dir string, h hashing.Hasher, seed param.Hash, files [][]*param.PersistedEvent, crash bool) ([]string, param.Hash, error) {
	paths := make([]string, 0, len(files))
	running := seed
	for i, events := range files {
		if len(events) == 0 {
			return nil, param.Hash{}, fmt.Errorf("eventgen: file %d has no events", i)
		}
		path := filepath.Join(dir, FileName(i, events[0].Round(), pcesfile.DefaultSuffix))
		w, err := pcesfile.CreateFile(path, h, running)
		if err != nil {
			return nil, param.Hash{}, err
		}
		for _, ev := range events {
			if err := w.Append(ev); err != nil {
				w.Abandon()
				return nil, param.Hash{}, err
			}
		}
		if crash && i == len(files)-1 {
			running = w.RunningHash()
			if err := w.Abandon(); err != nil {
				return nil, param.Hash{}, err
			}
		} else if running, err = w.Close(); err != nil {
			return nil, param.Hash{}, err
		}
		paths = append(paths, path)
	}
	return paths, running, nil
}

// Split cuts events into files of at most size events each.
func Split(events []*param.PersistedEvent, size int) [][]*param.PersistedEvent {
	size = max(size, 1)
	var out [][]*param.PersistedEvent
	for len(events) > 0 {
		n := min(size, len(events))
		out = append(out, events[:n])
		events = events[n:]
	}
	return out
}
