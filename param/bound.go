package param

import (
	"fmt"
	"time"
)

// LowerBound 用于定位读取的起点。
// Compare 返回值小于 0 表示该记录位于下界之前，等于 0 表示恰好位于下界，大于 0 表示位于下界之后。
type LowerBound interface {
	Compare(c ConsensusData) int
	fmt.Stringer
}

// Unbounded is at-or-before every record.
type Unbounded struct{}

func (Unbounded) Compare(ConsensusData) int { return 1 }

func (Unbounded) String() string { return "unbounded" }

// RoundBound selects records by the round in which they were received.
type RoundBound int64

func (b RoundBound) Compare(c ConsensusData) int {
	return compareInt64(c.RoundReceived, int64(b))
}

func (b RoundBound) String() string { return fmt.Sprintf("round>=%d", int64(b)) }

// TimestampBound selects records by consensus timestamp.
type TimestampBound time.Time

func (b TimestampBound) Compare(c ConsensusData) int {
	return c.ConsensusTimestamp.Compare(time.Time(b))
}

func (b TimestampBound) String() string {
	return "timestamp>=" + time.Time(b).UTC().Format(time.RFC3339Nano)
}

// IsUnbounded reports whether b places no restriction on the start.
func IsUnbounded(b LowerBound) bool {
	if b == nil {
		return true
	}
	_, ok := b.(Unbounded)
	return ok
}

// SearchBound returns the bound used to pick the first file to open. Only the
// first record of each file is inspected, so events of round r may still sit
// at the tail of the preceding file; a RoundBound is stepped back one round to
// keep them. Round 1 is never stepped below 1.
func SearchBound(b LowerBound) LowerBound {
	if rb, ok := b.(RoundBound); ok && rb > 1 {
		return rb - 1
	}
	return b
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
