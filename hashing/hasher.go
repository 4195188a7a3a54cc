// Package hashing provides the digest service used for event identity and the
// running hash that chains every record of an event stream.
package hashing

import (
	"crypto/sha512"
	"fmt"
	"hash"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"

	"github.com/xmh1011/go-pces/param"
)

// Hasher computes digests of a single algorithm.
type Hasher interface {
	DigestType() param.DigestType
	Sum(parts ...[]byte) param.Hash
}

type digester struct {
	digestType param.DigestType
	newHash    func() hash.Hash
}

// New returns a Hasher for the given algorithm.
func New(t param.DigestType) (Hasher, error) {
	switch t {
	case param.SHA384:
		return &digester{digestType: t, newHash: sha512.New384}, nil
	case param.SHA3_384:
		return &digester{digestType: t, newHash: sha3.New384}, nil
	case param.BLAKE2b384:
		return &digester{digestType: t, newHash: newBlake2b384}, nil
	default:
		return nil, fmt.Errorf("unsupported digest type: %s", t)
	}
}

// Default returns the SHA-384 hasher.
func Default() Hasher {
	return &digester{digestType: param.SHA384, newHash: sha512.New384}
}

func newBlake2b384() hash.Hash {
	// only fails for an oversized key
	h, err := blake2b.New384(nil)
	if err != nil {
		panic(err)
	}
	return h
}

func (d *digester) DigestType() param.DigestType {
	return d.digestType
}

func (d *digester) Sum(parts ...[]byte) param.Hash {
	h := d.newHash()
	for _, p := range parts {
		h.Write(p)
	}
	return param.Hash{Type: d.digestType, Value: h.Sum(nil)}
}

// EventHash is the identity of an event: the digest of its hashed data only.
func EventHash(h Hasher, data *param.HashedEventData) (param.Hash, error) {
	b, err := data.MarshalBinary()
	if err != nil {
		return param.Hash{}, err
	}
	return h.Sum(b), nil
}

// RecordHash is the digest of a full persisted record, which is what the
// running hash folds in.
func RecordHash(h Hasher, e *param.PersistedEvent) (param.Hash, error) {
	b, err := e.MarshalBinary()
	if err != nil {
		return param.Hash{}, err
	}
	return h.Sum(b), nil
}
