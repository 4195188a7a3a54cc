package param

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

// DigestType 标识哈希算法。数值与文件中序列化的算法 ID 一致。
type DigestType uint32

const (
	SHA384     DigestType = 0x58ff811b
	SHA3_384   DigestType = 0x2a1d0a61
	BLAKE2b384 DigestType = 0x6c8a3b2f
)

// Size returns the digest length in bytes, or 0 for an unknown type.
func (d DigestType) Size() int {
	switch d {
	case SHA384, SHA3_384, BLAKE2b384:
		return 48
	default:
		return 0
	}
}

func (d DigestType) String() string {
	switch d {
	case SHA384:
		return "SHA-384"
	case SHA3_384:
		return "SHA3-384"
	case BLAKE2b384:
		return "BLAKE2b-384"
	default:
		return fmt.Sprintf("DigestType(0x%08x)", uint32(d))
	}
}

// ParseDigestType maps a config/CLI name to a DigestType.
func ParseDigestType(name string) (DigestType, error) {
	switch name {
	case "", "sha384", "SHA-384":
		return SHA384, nil
	case "sha3-384", "SHA3-384":
		return SHA3_384, nil
	case "blake2b-384", "BLAKE2b-384":
		return BLAKE2b384, nil
	default:
		return 0, fmt.Errorf("unknown digest type: %s", name)
	}
}

// Hash is a digest tagged with its algorithm. It is a plain value; two hashes
// are the same iff Equal reports true.
type Hash struct {
	Type  DigestType
	Value []byte
}

// NewHash copies value into a new Hash.
func NewHash(t DigestType, value []byte) Hash {
	return Hash{Type: t, Value: append([]byte(nil), value...)}
}

// Equal compares algorithm and digest bytes.
func (h Hash) Equal(other Hash) bool {
	return h.Type == other.Type && bytes.Equal(h.Value, other.Value)
}

// IsZero reports whether h carries no digest.
func (h Hash) IsZero() bool {
	return len(h.Value) == 0
}

// Hex returns the digest as lower-case hex.
func (h Hash) Hex() string {
	return hex.EncodeToString(h.Value)
}

// Short returns the first 8 hex characters, for logs.
func (h Hash) Short() string {
	s := h.Hex()
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

func (h Hash) String() string {
	return h.Type.String() + ":" + h.Hex()
}

// ParseHash parses the output of Hash.String, or a bare hex string which is
// taken to be SHA-384.
func ParseHash(s string) (Hash, error) {
	t := SHA384
	digest := s
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			var err error
			if t, err = ParseDigestType(s[:i]); err != nil {
				return Hash{}, err
			}
			digest = s[i+1:]
			break
		}
	}
	value, err := hex.DecodeString(digest)
	if err != nil {
		return Hash{}, fmt.Errorf("invalid hash %q: %w", s, err)
	}
	if len(value) != t.Size() {
		return Hash{}, fmt.Errorf("invalid hash %q: want %d bytes, got %d", s, t.Size(), len(value))
	}
	return Hash{Type: t, Value: value}, nil
}
