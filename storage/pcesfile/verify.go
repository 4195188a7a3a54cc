package pcesfile

import (
	"errors"
	"fmt"
	"io"

	"github.com/Masterminds/semver/v3"

	"github.com/xmh1011/go-pces/hashing"
	"github.com/xmh1011/go-pces/param"
)

// ErrHashMismatch reports a terminal hash that is not the running hash of the
// file's events.
var ErrHashMismatch = errors.New("pcesfile: terminal hash mismatch")

// FileReport summarizes one event stream file.
type FileReport struct {
	Path       string
	StartHash  param.Hash
	EndHash    *param.Hash // nil for a damaged file
	Computed   param.Hash  // running hash of the events from StartHash
	Events     int
	FirstRound int64
	LastRound  int64
	MinVersion *semver.Version
	MaxVersion *semver.Version
	Bytes      int64
	Damaged    bool
}

// ScanFile reads every record of path and recomputes its running hash. With
// tolerant set a crash tail ends the scan instead of failing it. A terminal
// hash that differs from the computed one fails with ErrHashMismatch; the
// report is returned either way.
func ScanFile(path string, h hashing.Hasher, tolerant bool) (*FileReport, error) {
	it, err := OpenFile(path, tolerant)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	rep := &FileReport{Path: path, StartHash: it.StartHash()}
	running := hashing.NewRunningHash(h, it.StartHash())
	for {
		ev, err := it.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if _, err := running.AddEvent(ev); err != nil {
			return nil, err
		}
		if rep.Events == 0 {
			rep.FirstRound = ev.Round()
		}
		rep.Events++
		rep.LastRound = ev.Round()
		if v, err := ev.Version(); err == nil {
			if rep.MinVersion == nil || v.LessThan(rep.MinVersion) {
				rep.MinVersion = v
			}
			if rep.MaxVersion == nil || v.GreaterThan(rep.MaxVersion) {
				rep.MaxVersion = v
			}
		}
	}

	rep.EndHash = it.EndHash()
	rep.Computed = running.Current()
	rep.Bytes = it.BytesRead()
	rep.Damaged = it.IsDamaged()
	if rep.EndHash != nil && !rep.EndHash.Equal(rep.Computed) {
		return rep, fmt.Errorf("%w: %s ends with %s, events hash to %s",
			ErrHashMismatch, path, rep.EndHash.Short(), rep.Computed.Short())
	}
	return rep, nil
}
