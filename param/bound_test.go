package param

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLowerBounds(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	record := ConsensusData{RoundReceived: 10, ConsensusTimestamp: base}

	tests := []struct {
		name  string
		bound LowerBound
		want  int
	}{
		{"unbounded", Unbounded{}, 1},
		{"round before record", RoundBound(9), 1},
		{"round at record", RoundBound(10), 0},
		{"round after record", RoundBound(11), -1},
		{"timestamp before record", TimestampBound(base.Add(-time.Second)), 1},
		{"timestamp at record", TimestampBound(base), 0},
		{"timestamp after record", TimestampBound(base.Add(time.Nanosecond)), -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.bound.Compare(record))
		})
	}
}

func TestSearchBound(t *testing.T) {
	assert.Equal(t, RoundBound(4), SearchBound(RoundBound(5)), "round bounds step back one round")
	assert.Equal(t, RoundBound(1), SearchBound(RoundBound(1)), "round 1 is never stepped below 1")
	ts := TimestampBound(time.Unix(100, 0))
	assert.Equal(t, ts, SearchBound(ts), "timestamp bounds are unchanged")
	assert.True(t, IsUnbounded(SearchBound(Unbounded{})))
	assert.True(t, IsUnbounded(nil))
	assert.False(t, IsUnbounded(RoundBound(1)))
}
