package inmemory

import (
	"fmt"
	"io"
	"sync"

	"github.com/xmh1011/go-pces/hashing"
	"github.com/xmh1011/go-pces/param"
	"github.com/xmh1011/go-pces/storage/pcesfile"
)

// History 是事件流的一个线程安全的内存实现，主要用于测试。
// 它与目录中的事件流文件遵循相同的定位和滚动哈希规则，但不涉及文件与连续性检查。
type History struct {
	mu     sync.RWMutex
	hasher hashing.Hasher
	seed   param.Hash
	events []*param.PersistedEvent
}

// NewHistory 创建一个以 seed 为起始哈希的内存事件流。
func NewHistory(hasher hashing.Hasher, seed param.Hash, events []*param.PersistedEvent) *History {
	h := &History{
		hasher: hasher,
		seed:   seed,
	}
	h.events = append(h.events, events...)
	return h
}

// Append 追加事件。已经打开的游标不会看到新事件。
func (h *History) Append(events ...*param.PersistedEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, events...)
}

// Len 返回事件数量。
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.events)
}

// Open 返回一个定位到 bound 的游标，游标的滚动哈希已经包含了被跳过的事件。
func (h *History) Open(bound param.LowerBound) (*Cursor, error) {
	h.mu.RLock()
	events := h.events[:len(h.events):len(h.events)]
	h.mu.RUnlock()

	if len(events) == 0 {
		return nil, fmt.Errorf("%w: history is empty", pcesfile.ErrNotFound)
	}
	if bound == nil {
		bound = param.Unbounded{}
	}

	running := hashing.NewRunningHash(h.hasher, h.seed)
	pos := 0
	if !param.IsUnbounded(bound) {
		for pos < len(events) && bound.Compare(events[pos].Consensus) < 0 {
			if _, err := running.AddEvent(events[pos]); err != nil {
				return nil, err
			}
			pos++
		}
		if pos == len(events) {
			return nil, fmt.Errorf("%w: no event at or after %s", pcesfile.ErrNotFound, bound)
		}
	}
	return &Cursor{
		events:  events,
		pos:     pos,
		start:   h.seed,
		running: running,
	}, nil
}

// Cursor 按顺序读取内存事件流的一个快照。
type Cursor struct {
	events  []*param.PersistedEvent
	pos     int
	start   param.Hash
	running *hashing.RunningHash
	closed  bool
}

func (c *Cursor) HasNext() (bool, error) {
	return !c.closed && c.pos < len(c.events), nil
}

func (c *Cursor) Peek() (*param.PersistedEvent, error) {
	if ok, _ := c.HasNext(); !ok {
		return nil, io.EOF
	}
	return c.events[c.pos], nil
}

func (c *Cursor) Next() (*param.PersistedEvent, error) {
	ev, err := c.Peek()
	if err != nil {
		return nil, err
	}
	if _, err := c.running.AddEvent(ev); err != nil {
		return nil, err
	}
	c.pos++
	return ev, nil
}

func (c *Cursor) RunningHash() param.Hash { return c.running.Current() }

func (c *Cursor) StartHash() param.Hash { return c.start }

func (c *Cursor) FileCount() int { return 0 }

func (c *Cursor) DamagedFileCount() int { return 0 }

func (c *Cursor) BytesRead() int64 { return 0 }

func (c *Cursor) Close() error {
	c.closed = true
	return nil
}
