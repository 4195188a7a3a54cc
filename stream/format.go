// Package stream reads and writes the framed object stream used by event
// stream files.
//
// A stream starts with an 8 byte header, two big-endian int32 values
// [OuterVersion][ObjectVersion], followed by self-typed, self-length-framed
// records:
//
//	uint64 class id | int32 class version | int32 body length | body
package stream

import (
	"errors"
	"fmt"

	"github.com/xmh1011/go-pces/param"
)

const (
	OuterVersion  int32 = 5
	ObjectVersion int32 = 1

	HeaderSize      = 8
	frameHeaderSize = 16

	// MaxRecordSize bounds a single record body.
	MaxRecordSize = 64 << 20
)

// ClassID identifies the type of a record.
type ClassID uint64

const (
	HashClassID  ClassID = 0xf422da83a251741e
	EventClassID ClassID = 0xe250a9fbdcc4b1ba
)

const (
	hashClassVersion  int32 = 1
	eventClassVersion int32 = 1
)

func (c ClassID) String() string {
	switch c {
	case HashClassID:
		return "Hash"
	case EventClassID:
		return "Event"
	default:
		return fmt.Sprintf("ClassID(0x%016x)", uint64(c))
	}
}

var (
	ErrFormat    = errors.New("stream: invalid format")
	ErrTruncated = errors.New("stream: truncated record")
	ErrIO        = errors.New("stream: i/o failure")
)

// Object is a decoded record: *param.Hash, *param.PersistedEvent or *Unknown.
type Object any

// Unknown carries a record whose class id this package does not decode.
type Unknown struct {
	ClassID ClassID
	Version int32
	Body    []byte
}

// TypeOf names the record type of obj, for error messages.
func TypeOf(obj Object) string {
	switch o := obj.(type) {
	case *param.Hash:
		return HashClassID.String()
	case *param.PersistedEvent:
		return EventClassID.String()
	case *Unknown:
		return o.ClassID.String()
	default:
		return fmt.Sprintf("%T", obj)
	}
}

func decodeBody(id ClassID, version int32, body []byte) (Object, error) {
	switch id {
	case HashClassID:
		if version != hashClassVersion {
			return nil, fmt.Errorf("%w: unsupported %s version %d", ErrFormat, id, version)
		}
		h := new(param.Hash)
		if err := h.UnmarshalBinary(body); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFormat, err)
		}
		return h, nil
	case EventClassID:
		if version != eventClassVersion {
			return nil, fmt.Errorf("%w: unsupported %s version %d", ErrFormat, id, version)
		}
		e := new(param.PersistedEvent)
		if err := e.UnmarshalBinary(body); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFormat, err)
		}
		return e, nil
	default:
		return &Unknown{ClassID: id, Version: version, Body: body}, nil
	}
}

func encodeBody(obj Object) (ClassID, int32, []byte, error) {
	switch o := obj.(type) {
	case *param.Hash:
		b, err := o.MarshalBinary()
		return HashClassID, hashClassVersion, b, err
	case param.Hash:
		b, err := o.MarshalBinary()
		return HashClassID, hashClassVersion, b, err
	case *param.PersistedEvent:
		b, err := o.MarshalBinary()
		return EventClassID, eventClassVersion, b, err
	case *Unknown:
		return o.ClassID, o.Version, o.Body, nil
	default:
		return 0, 0, nil, fmt.Errorf("cannot encode %T", obj)
	}
}
