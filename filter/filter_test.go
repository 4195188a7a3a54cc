package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xmh1011/go-pces/param"
)

func testEvent() *param.PersistedEvent {
	return &param.PersistedEvent{
		Hashed: param.HashedEventData{
			SoftwareVersion: "0.4.1",
			CreatorID:       3,
			SelfParentGen:   7,
			OtherParentGen:  9,
			TimeCreated:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			Transactions:    [][]byte{[]byte("a"), []byte("b")},
		},
		Consensus: param.ConsensusData{
			RoundCreated:        11,
			RoundReceived:       12,
			ConsensusOrder:      500,
			ConsensusTimestamp:  time.Date(2024, 1, 1, 0, 0, 1, 0, time.UTC),
			LastInRoundReceived: true,
		},
	}
}

func TestMatch(t *testing.T) {
	ev := testEvent()
	tests := []struct {
		expr string
		want bool
	}{
		{"", true},
		{"round >= 10 && creator == 3 && tx_count > 0", true},
		{"round < 12", false},
		{"generation == 10", true},
		{"version.startsWith('0.4')", true},
		{"has_consensus && last_in_round && !stale", true},
		{"order == 500 && round_created == 11", true},
		{"timestamp > time_created", true},
		{"timestamp > timestamp('2025-01-01T00:00:00Z')", false},
		{"self_parent_gen < other_parent_gen", true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			f, err := Compile(tt.expr)
			require.NoError(t, err)
			got, err := f.Match(ev)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.expr, f.String())
		})
	}
}

func TestCompileErrors(t *testing.T) {
	for _, expr := range []string{
		"round +",
		"unknown_field == 1",
		"round + 1",
	} {
		t.Run(expr, func(t *testing.T) {
			_, err := Compile(expr)
			assert.Error(t, err)
		})
	}
}

func TestZeroFilter(t *testing.T) {
	var f *Filter
	assert.False(t, f.Enabled())
	ok, err := f.Match(testEvent())
	require.NoError(t, err)
	assert.True(t, ok, "a nil filter matches everything")

	empty, err := Compile("   ")
	require.NoError(t, err)
	assert.False(t, empty.Enabled())
}
