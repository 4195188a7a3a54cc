package eventgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xmh1011/go-pces/hashing"
	"github.com/xmh1011/go-pces/param"
	"github.com/xmh1011/go-pces/storage/pcesfile"
)

func TestGeneratorIsDeterministic(t *testing.T) {
	a := New(99).Events(20)
	b := New(99).Events(20)
	c := New(100).Events(20)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestGeneratorConsensusOrder(t *testing.T) {
	events := New(1, WithCreators(3), WithEventsPerRound(4), WithStartRound(10), WithVersion("2.0.0")).Events(12)

	for i, ev := range events {
		assert.Equal(t, int64(i), ev.Consensus.ConsensusOrder)
		assert.Equal(t, int64(10+i/4), ev.Round())
		assert.Equal(t, i%4 == 3, ev.Consensus.LastInRoundReceived, "event %d", i)
		assert.Equal(t, int64(i%3), ev.Hashed.CreatorID)
		assert.Equal(t, "2.0.0", ev.Hashed.SoftwareVersion)
		if i > 0 {
			assert.True(t, ev.Consensus.ConsensusTimestamp.After(events[i-1].Consensus.ConsensusTimestamp))
		}
	}

	// 第二轮开始每个事件都有 self parent，哈希等于该创建者上一个事件的哈希
	h := hashing.Default()
	for i := 3; i < len(events); i++ {
		ev := events[i]
		require.NotNil(t, ev.Hashed.SelfParentHash)
		parent, err := hashing.EventHash(h, &events[i-3].Hashed)
		require.NoError(t, err)
		assert.True(t, parent.Equal(*ev.Hashed.SelfParentHash))
		assert.Equal(t, events[i-3].Hashed.Generation(), ev.Hashed.SelfParentGen)
	}
	assert.Nil(t, events[0].Hashed.SelfParentHash)
	assert.Nil(t, events[0].Hashed.OtherParentHash)
}

func TestSplit(t *testing.T) {
	events := New(1).Events(7)
	parts := Split(events, 3)
	require.Len(t, parts, 3)
	assert.Len(t, parts[2], 1)
	assert.Len(t, Split(events, 0), 7, "size is at least one")
	assert.Empty(t, Split(nil, 3))
}

func TestFileNameSortsInWriteOrder(t *testing.T) {
	assert.Equal(t, "000002_r0000000015.evts", FileName(2, 15, ""))
	assert.Less(t, FileName(9, 100, ".x"), FileName(10, 101, ".x"))
}

func TestWriteDir(t *testing.T) {
	dir := t.TempDir()
	h := hashing.Default()
	seed := Seed(h, "gen")
	events := New(3).Events(10)

	paths, end, err := WriteDir(dir, h, seed, Split(events, 4), false)
	require.NoError(t, err)
	require.Len(t, paths, 3)

	want, err := hashing.Chain(h, seed, events...)
	require.NoError(t, err)
	assert.True(t, end.Equal(want))

	it, err := pcesfile.OpenHistory(dir, param.Unbounded{}, h, pcesfile.Options{})
	require.NoError(t, err)
	defer it.Close()
	n := 0
	for {
		ok, err := it.HasNext()
		require.NoError(t, err)
		if !ok {
			break
		}
		_, err = it.Next()
		require.NoError(t, err)
		n++
	}
	assert.Equal(t, 10, n)

	_, _, err = WriteDir(t.TempDir(), h, seed, [][]*param.PersistedEvent{{}}, false)
	assert.Error(t, err, "files without events are rejected")
}
