package param

import (
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"
)

// NoConsensusOrder marks an event that has not reached consensus yet.
const NoConsensusOrder int64 = -1

// HashedEventData 是事件中参与哈希计算的部分，构造之后不再修改。
type HashedEventData struct {
	SoftwareVersion string    // 创建事件的软件版本 (semver)
	CreatorID       int64     // 创建者节点 ID
	SelfParentGen   int64     // self parent 的 generation，-1 表示没有
	OtherParentGen  int64     // other parent 的 generation，-1 表示没有
	SelfParentHash  *Hash     // 可以为 nil
	OtherParentHash *Hash     // 可以为 nil
	TimeCreated     time.Time // 创建者本地时间
	Transactions    [][]byte  // 按顺序排列的交易负载
}

// Generation is one more than the larger parent generation.
func (h *HashedEventData) Generation() int64 {
	return max(h.SelfParentGen, h.OtherParentGen) + 1
}

func (h *HashedEventData) marshal(w *bodyWriter) {
	w.string(h.SoftwareVersion)
	w.int64(h.CreatorID)
	w.int64(h.SelfParentGen)
	w.int64(h.OtherParentGen)
	w.nullableHash(h.SelfParentHash)
	w.nullableHash(h.OtherParentHash)
	w.instant(h.TimeCreated)
	w.int32(int32(len(h.Transactions)))
	for _, tx := range h.Transactions {
		w.bytes(tx)
	}
}

func (h *HashedEventData) unmarshal(r *bodyReader) {
	h.SoftwareVersion = r.string("software version")
	h.CreatorID = r.int64("creator id")
	h.SelfParentGen = r.int64("self parent generation")
	h.OtherParentGen = r.int64("other parent generation")
	h.SelfParentHash = r.nullableHash("self parent hash")
	h.OtherParentHash = r.nullableHash("other parent hash")
	h.TimeCreated = r.instant("time created")
	n := int(r.int32("transaction count"))
	if r.err != nil {
		return
	}
	// every transaction costs at least its 4 byte length prefix
	if n < 0 || n > (len(r.b)-r.off)/4 {
		r.err = fmt.Errorf("%w: transaction count %d exceeds body", ErrMalformed, n)
		return
	}
	if n == 0 {
		return
	}
	h.Transactions = make([][]byte, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		h.Transactions = append(h.Transactions, r.bytes("transaction"))
	}
}

// MarshalBinary encodes exactly the fields covered by the event hash.
func (h *HashedEventData) MarshalBinary() ([]byte, error) {
	w := &bodyWriter{}
	h.marshal(w)
	return w.buf, nil
}

// UnhashedEventData holds data excluded from the event hash.
type UnhashedEventData struct {
	// Deprecated: legacy sequence fields, kept for binary compatibility.
	CreatorSeq int64
	OtherID    int64
	OtherSeq   int64

	Signature []byte
}

func (u *UnhashedEventData) marshal(w *bodyWriter) {
	w.int64(u.CreatorSeq)
	w.int64(u.OtherID)
	w.int64(u.OtherSeq)
	w.bytes(u.Signature)
}

func (u *UnhashedEventData) unmarshal(r *bodyReader) {
	u.CreatorSeq = r.int64("creator sequence")
	u.OtherID = r.int64("other id")
	u.OtherSeq = r.int64("other sequence")
	u.Signature = r.bytes("signature")
}

// ConsensusData is assigned to an event once consensus is reached.
type ConsensusData struct {
	RoundCreated        int64
	RoundReceived       int64
	ConsensusOrder      int64 // NoConsensusOrder until assigned
	ConsensusTimestamp  time.Time
	Stale               bool
	LastInRoundReceived bool
}

func (c *ConsensusData) marshal(w *bodyWriter) {
	w.int64(c.RoundCreated)
	w.int64(c.RoundReceived)
	w.int64(c.ConsensusOrder)
	w.instant(c.ConsensusTimestamp)
	w.bool(c.Stale)
	w.bool(c.LastInRoundReceived)
}

func (c *ConsensusData) unmarshal(r *bodyReader) {
	c.RoundCreated = r.int64("round created")
	c.RoundReceived = r.int64("round received")
	c.ConsensusOrder = r.int64("consensus order")
	c.ConsensusTimestamp = r.instant("consensus timestamp")
	c.Stale = r.bool("stale")
	c.LastInRoundReceived = r.bool("last in round received")
}

// PersistedEvent is the unit written to and read from an event stream file.
type PersistedEvent struct {
	Hashed    HashedEventData
	Unhashed  UnhashedEventData
	Consensus ConsensusData
}

// Round returns the round in which the event was received by consensus.
func (e *PersistedEvent) Round() int64 {
	return e.Consensus.RoundReceived
}

// HasConsensus reports whether a consensus order has been assigned.
func (e *PersistedEvent) HasConsensus() bool {
	return e.Consensus.ConsensusOrder != NoConsensusOrder
}

// TransactionCount returns the number of transactions carried by the event.
func (e *PersistedEvent) TransactionCount() int {
	return len(e.Hashed.Transactions)
}

// Version parses the software version marker.
func (e *PersistedEvent) Version() (*semver.Version, error) {
	v, err := semver.NewVersion(e.Hashed.SoftwareVersion)
	if err != nil {
		return nil, fmt.Errorf("event %d has invalid software version %q: %w", e.Consensus.ConsensusOrder, e.Hashed.SoftwareVersion, err)
	}
	return v, nil
}

func (e *PersistedEvent) String() string {
	return fmt.Sprintf("Event{creator:%d gen:%d round:%d order:%d txs:%d}",
		e.Hashed.CreatorID, e.Hashed.Generation(), e.Consensus.RoundReceived, e.Consensus.ConsensusOrder, len(e.Hashed.Transactions))
}

// MarshalBinary encodes the full record body.
func (e *PersistedEvent) MarshalBinary() ([]byte, error) {
	w := &bodyWriter{}
	e.Hashed.marshal(w)
	e.Unhashed.marshal(w)
	e.Consensus.marshal(w)
	return w.buf, nil
}

// UnmarshalBinary decodes a body written by MarshalBinary.
func (e *PersistedEvent) UnmarshalBinary(data []byte) error {
	r := &bodyReader{b: data}
	var out PersistedEvent
	out.Hashed.unmarshal(r)
	out.Unhashed.unmarshal(r)
	out.Consensus.unmarshal(r)
	if err := r.finish("event"); err != nil {
		return err
	}
	*e = out
	return nil
}
