package param

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigestType(t *testing.T) {
	tests := []struct {
		name string
		want DigestType
	}{
		{"", SHA384},
		{"sha384", SHA384},
		{"SHA-384", SHA384},
		{"sha3-384", SHA3_384},
		{"BLAKE2b-384", BLAKE2b384},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDigestType(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, 48, got.Size())
		})
	}

	_, err := ParseDigestType("md5")
	assert.Error(t, err, "unknown digest names should be rejected")
	assert.Equal(t, 0, DigestType(1).Size())
	assert.Contains(t, DigestType(1).String(), "0x00000001")
}

func TestHash(t *testing.T) {
	t.Run("String Round Trip", func(t *testing.T) {
		h := *testHash(0xab)
		parsed, err := ParseHash(h.String())
		require.NoError(t, err)
		assert.True(t, h.Equal(parsed))
		assert.Equal(t, "abababab", h.Short())
		assert.True(t, strings.HasPrefix(h.String(), "SHA-384:"))
	})

	t.Run("Bare Hex Is SHA-384", func(t *testing.T) {
		h := *testHash(0x01)
		parsed, err := ParseHash(h.Hex())
		require.NoError(t, err)
		assert.Equal(t, SHA384, parsed.Type)
	})

	t.Run("Invalid", func(t *testing.T) {
		_, err := ParseHash("SHA-384:zz")
		assert.Error(t, err)
		_, err = ParseHash("SHA-384:abcd")
		assert.Error(t, err, "short digests should be rejected")
		_, err = ParseHash("md5:abcd")
		assert.Error(t, err)
	})

	t.Run("Equal Compares Type And Value", func(t *testing.T) {
		a := *testHash(1)
		b := NewHash(SHA3_384, a.Value)
		assert.False(t, a.Equal(b))
		assert.True(t, a.Equal(NewHash(SHA384, a.Value)))
		assert.True(t, Hash{}.IsZero())
	})

	t.Run("Binary Round Trip", func(t *testing.T) {
		h := *testHash(7)
		data, err := h.MarshalBinary()
		require.NoError(t, err)
		var got Hash
		require.NoError(t, got.UnmarshalBinary(data))
		assert.True(t, h.Equal(got))

		assert.ErrorIs(t, got.UnmarshalBinary(data[:len(data)-1]), ErrMalformed)
	})
}
