// Package pcesfile reads directories of hash-chained event stream files.
//
// Each file follows the grammar `Hash Event+ Hash?`: a seed hash, at least one
// event, and a terminal hash that is the running hash of the file's events
// seeded by the seed hash. The seed hash of a file equals the terminal hash of
// the file before it. Only the last file of a directory may lack its terminal
// hash, which is what a crash in the middle of writing leaves behind.
package pcesfile

import (
	"errors"
	"log/slog"

	"github.com/xmh1011/go-pces/metrics"
)

// DefaultSuffix is the extension of event stream files.
const DefaultSuffix = ".evts"

var (
	ErrContinuity = errors.New("pcesfile: hash chain broken")
	ErrNotFound   = errors.New("pcesfile: lower bound not in retained history")
)

// Iterator is the cursor contract shared by every reader in this package.
// Peek and Next return io.EOF once the sequence is exhausted. Implementations
// are not safe for concurrent use.
type Iterator[T any] interface {
	HasNext() (bool, error)
	Peek() (T, error)
	Next() (T, error)
	Close() error
}

// Options configures directory iteration.
type Options struct {
	// Suffix selects event stream files in a directory.
	Suffix string
	// StrictLastFile decodes the last file in strict mode, so a crash tail
	// fails the sequence. By default the last file is read tolerantly and a
	// partial trailing record ends it.
	StrictLastFile bool

	Logger  *slog.Logger
	Metrics *metrics.Recorder
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		Suffix: DefaultSuffix,
		Logger: slog.Default(),
	}
}

func (o Options) withDefaults() Options {
	if o.Suffix == "" {
		o.Suffix = DefaultSuffix
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}
