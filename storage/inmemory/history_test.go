package inmemory

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xmh1011/go-pces/eventgen"
	"github.com/xmh1011/go-pces/hashing"
	"github.com/xmh1011/go-pces/param"
	"github.com/xmh1011/go-pces/storage/pcesfile"
)

func TestHistoryOpen(t *testing.T) {
	h := hashing.Default()
	seed := eventgen.Seed(h, "memory")
	events := eventgen.New(1, eventgen.WithEventsPerRound(3)).Events(12)
	history := NewHistory(h, seed, events)
	require.Equal(t, 12, history.Len())

	t.Run("Unbounded", func(t *testing.T) {
		// Arrange
		cur, err := history.Open(nil)
		require.NoError(t, err)
		defer cur.Close()

		// Act
		var got []*param.PersistedEvent
		for {
			ev, err := cur.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			require.NoError(t, err)
			got = append(got, ev)
		}

		// Assert
		assert.Equal(t, events, got)
		want, err := hashing.Chain(h, seed, events...)
		require.NoError(t, err)
		assert.True(t, cur.RunningHash().Equal(want))
		assert.True(t, cur.StartHash().Equal(seed))
	})

	t.Run("Round Bound Folds Skipped Events", func(t *testing.T) {
		cur, err := history.Open(param.RoundBound(3))
		require.NoError(t, err)
		defer cur.Close()

		ev, err := cur.Next()
		require.NoError(t, err)
		assert.Equal(t, events[6], ev)
		want, err := hashing.Chain(h, seed, events[:7]...)
		require.NoError(t, err)
		assert.True(t, cur.RunningHash().Equal(want))
	})

	t.Run("Bound Beyond History", func(t *testing.T) {
		_, err := history.Open(param.RoundBound(100))
		assert.ErrorIs(t, err, pcesfile.ErrNotFound)
	})

	t.Run("Empty History", func(t *testing.T) {
		_, err := NewHistory(h, seed, nil).Open(param.Unbounded{})
		assert.ErrorIs(t, err, pcesfile.ErrNotFound)
	})

	t.Run("Closed Cursor", func(t *testing.T) {
		cur, err := history.Open(nil)
		require.NoError(t, err)
		require.NoError(t, cur.Close())
		_, err = cur.Peek()
		assert.ErrorIs(t, err, io.EOF)
	})
}

func TestHistoryAppendDoesNotAffectOpenCursor(t *testing.T) {
	h := hashing.Default()
	gen := eventgen.New(2)
	history := NewHistory(h, eventgen.Seed(h, "append"), gen.Events(2))

	cur, err := history.Open(nil)
	require.NoError(t, err)
	history.Append(gen.Events(3)...)
	assert.Equal(t, 5, history.Len())

	n := 0
	for {
		ok, err := cur.HasNext()
		require.NoError(t, err)
		if !ok {
			break
		}
		_, err = cur.Next()
		require.NoError(t, err)
		n++
	}
	assert.Equal(t, 2, n, "a cursor reads the snapshot taken at open")
}
