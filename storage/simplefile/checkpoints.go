package simplefile

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/xmh1011/go-pces/param"
)

var ErrCheckpointNotFound = errors.New("checkpoint not found")

// Checkpoint 是某一轮结束时的滚动哈希，由下游用来与事件流比对。
type Checkpoint struct {
	Round       int64
	RunningHash param.Hash
	Events      int64 // 从起始哈希到该轮结束的事件数
	RecordedAt  time.Time
}

// Checkpoints implements a simple file-based checkpoint store.
// It persists the entire set to a file on every write operation using encoding/gob.
type Checkpoints struct {
	mu       sync.RWMutex
	filePath string

	// StartHash identifies the chain the checkpoints belong to.
	startHash *param.Hash
	byRound   map[int64]Checkpoint
}

// persistentData is the structure used for serialization.
type persistentData struct {
	StartHash   *param.Hash
	Checkpoints []Checkpoint
}

// NewCheckpoints opens the checkpoint file, creating it if it does not exist.
func NewCheckpoints(filePath string) (*Checkpoints, error) {
	c := &Checkpoints{
		filePath: filePath,
		byRound:  make(map[int64]Checkpoint),
	}

	if err := c.load(); err != nil {
		// If file does not exist, initialize it
		if os.IsNotExist(err) {
			if err := c.persist(nil, c.byRound); err != nil {
				return nil, err
			}
		} else {
			return nil, err
		}
	}
	return c, nil
}

func (c *Checkpoints) load() error {
	f, err := os.Open(c.filePath)
	if err != nil {
		return err
	}
	defer f.Close()

	var data persistentData
	if err := gob.NewDecoder(f).Decode(&data); err != nil {
		return fmt.Errorf("decode checkpoints %s: %w", c.filePath, err)
	}

	c.startHash = data.StartHash
	for _, cp := range data.Checkpoints {
		c.byRound[cp.Round] = cp
	}
	return nil
}

// persist writes start and byRound to disk. Callers commit them to c only
// after persist succeeds, so memory never runs ahead of the file.
func (c *Checkpoints) persist(start *param.Hash, byRound map[int64]Checkpoint) error {
	data := persistentData{
		StartHash:   start,
		Checkpoints: sorted(byRound),
	}

	// Write to temp file and rename for atomicity
	tmpPath := c.filePath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return err
	}

	encoder := gob.NewEncoder(f)
	if err := encoder.Encode(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	return os.Rename(tmpPath, c.filePath)
}

func sorted(byRound map[int64]Checkpoint) []Checkpoint {
	out := make([]Checkpoint, 0, len(byRound))
	for _, cp := range byRound {
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Round < out[j].Round })
	return out
}

// StartHash returns the chain start hash the checkpoints were recorded
// against, or nil if none has been recorded.
func (c *Checkpoints) StartHash() *param.Hash {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.startHash
}

// Bind records the chain start hash. Binding a store that already belongs to
// a different chain fails.
func (c *Checkpoints) Bind(start param.Hash) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.startHash != nil {
		if !c.startHash.Equal(start) {
			return fmt.Errorf("checkpoints belong to chain %s, not %s", c.startHash.Short(), start.Short())
		}
		return nil
	}
	if err := c.persist(&start, c.byRound); err != nil {
		return err
	}
	c.startHash = &start
	return nil
}

// Get returns the checkpoint recorded for round.
func (c *Checkpoints) Get(round int64) (Checkpoint, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cp, ok := c.byRound[round]
	if !ok {
		return Checkpoint{}, ErrCheckpointNotFound
	}
	return cp, nil
}

// Put records checkpoints, replacing any for the same rounds.
func (c *Checkpoints) Put(cps ...Checkpoint) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := make(map[int64]Checkpoint, len(c.byRound)+len(cps))
	for round, cp := range c.byRound {
		next[round] = cp
	}
	for _, cp := range cps {
		next[cp.Round] = cp
	}
	if err := c.persist(c.startHash, next); err != nil {
		return err
	}
	c.byRound = next
	return nil
}

// All returns every checkpoint ordered by round.
func (c *Checkpoints) All() []Checkpoint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sorted(c.byRound)
}

// Len returns the number of checkpoints.
func (c *Checkpoints) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byRound)
}
