package hashing

import (
	"bytes"
	"crypto/sha512"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xmh1011/go-pces/param"
)

func newEvent(order int64) *param.PersistedEvent {
	return &param.PersistedEvent{
		Hashed: param.HashedEventData{
			SoftwareVersion: "0.1.0",
			CreatorID:       order % 4,
			SelfParentGen:   -1,
			OtherParentGen:  -1,
			TimeCreated:     time.Unix(1700000000+order, 0).UTC(),
			Transactions:    [][]byte{[]byte("tx")},
		},
		Unhashed: param.UnhashedEventData{Signature: []byte("sig")},
		Consensus: param.ConsensusData{
			RoundCreated:       1,
			RoundReceived:      1,
			ConsensusOrder:     order,
			ConsensusTimestamp: time.Unix(1700000000+order, 0).UTC(),
		},
	}
}

func TestNew(t *testing.T) {
	for _, dt := range []param.DigestType{param.SHA384, param.SHA3_384, param.BLAKE2b384} {
		t.Run(dt.String(), func(t *testing.T) {
			h, err := New(dt)
			require.NoError(t, err)
			assert.Equal(t, dt, h.DigestType())

			sum := h.Sum([]byte("hello"))
			assert.Equal(t, dt, sum.Type)
			assert.Len(t, sum.Value, dt.Size())
			assert.True(t, sum.Equal(h.Sum([]byte("hel"), []byte("lo"))), "parts are concatenated")
		})
	}

	_, err := New(param.DigestType(42))
	assert.Error(t, err)
}

func TestDefaultIsSHA384(t *testing.T) {
	want := sha512.Sum384([]byte("abc"))
	got := Default().Sum([]byte("abc"))
	assert.Equal(t, param.SHA384, got.Type)
	assert.Equal(t, want[:], got.Value)
}

func TestEventHashIgnoresUnhashedData(t *testing.T) {
	h := Default()
	a := newEvent(1)
	b := newEvent(1)
	b.Unhashed.Signature = []byte("other signature")
	b.Consensus.RoundReceived = 99

	ha, err := EventHash(h, &a.Hashed)
	require.NoError(t, err)
	hb, err := EventHash(h, &b.Hashed)
	require.NoError(t, err)
	assert.True(t, ha.Equal(hb), "event identity covers hashed data only")

	ra, err := RecordHash(h, a)
	require.NoError(t, err)
	rb, err := RecordHash(h, b)
	require.NoError(t, err)
	assert.False(t, ra.Equal(rb), "record hash covers the full record")
}

func TestRunningHash(t *testing.T) {
	h := Default()
	seed := h.Sum([]byte("seed"))
	ev := newEvent(1)

	t.Run("Matches Definition", func(t *testing.T) {
		body, err := ev.MarshalBinary()
		require.NoError(t, err)
		objectHash := h.Sum(body)
		prev, err := seed.MarshalBinary()
		require.NoError(t, err)
		obj, err := objectHash.MarshalBinary()
		require.NoError(t, err)
		want := h.Sum(bytes.Clone(prev), obj)

		r := NewRunningHash(h, seed)
		assert.True(t, r.Current().Equal(seed), "a fresh chain is at its seed")
		got, err := r.AddEvent(ev)
		require.NoError(t, err)
		assert.True(t, want.Equal(got))
		assert.Equal(t, int64(1), r.Count())
	})

	t.Run("Add Folds Encoded Hashes", func(t *testing.T) {
		objectHash := h.Sum([]byte("object"))
		want := h.Sum(append(mustMarshal(seed), mustMarshal(objectHash)...))

		r := NewRunningHash(h, seed)
		assert.True(t, r.Add(objectHash).Equal(want))
		assert.Len(t, mustMarshal(seed), 4+4+48, "digest type, length and SHA-384 digest")
	})

	t.Run("Chain Equals Incremental", func(t *testing.T) {
		events := []*param.PersistedEvent{newEvent(1), newEvent(2), newEvent(3)}
		r := NewRunningHash(h, seed)
		for _, e := range events {
			_, err := r.AddEvent(e)
			require.NoError(t, err)
		}
		got, err := Chain(h, seed, events...)
		require.NoError(t, err)
		assert.True(t, r.Current().Equal(got))

		// 分两段计算：第一段的结果作为第二段的种子
		mid, err := Chain(h, seed, events[:2]...)
		require.NoError(t, err)
		end, err := Chain(h, mid, events[2:]...)
		require.NoError(t, err)
		assert.True(t, got.Equal(end), "chains compose across a split")
	})

	t.Run("Order Matters", func(t *testing.T) {
		a, err := Chain(h, seed, newEvent(1), newEvent(2))
		require.NoError(t, err)
		b, err := Chain(h, seed, newEvent(2), newEvent(1))
		require.NoError(t, err)
		assert.False(t, a.Equal(b))
	})
}
