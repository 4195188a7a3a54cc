package repair

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/xmh1011/go-pces/hashing"
	"github.com/xmh1011/go-pces/metrics"
	"github.com/xmh1011/go-pces/param"
	"github.com/xmh1011/go-pces/storage/pcesfile"
	"github.com/xmh1011/go-pces/stream"
)

const (
	TempSuffix   = ".repaired"
	BackupSuffix = ".damaged"
)

// Result describes what a repair did.
type Result struct {
	Path         string
	Repaired     bool        // a terminal hash was appended and the file replaced
	EventCount   int         // events found in the file
	TerminalHash *param.Hash // existing or synthesized terminal hash, nil if none
	BackupPath   string      // copy of the original, set only when Repaired
	Truncated    bool        // a partial trailing record was dropped
	Anomaly      string      // set when the file could not be fixed but was left alone
}

// Repairer replaces damaged files by write-temp, backup-original, swap.
// Only one repair may target a given file at a time.
type Repairer struct {
	hasher  hashing.Hasher
	logger  *slog.Logger
	metrics *metrics.Recorder
}

// Option configures a Repairer.
type Option func(*Repairer)

func WithHasher(h hashing.Hasher) Option {
	return func(r *Repairer) {
		r.hasher = h
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Repairer) {
		r.logger = l
	}
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(r *Repairer) {
		r.metrics = m
	}
}

// NewRepairer returns a Repairer using SHA-384 unless configured otherwise.
func NewRepairer(opts ...Option) *Repairer {
	r := &Repairer{
		hasher: hashing.Default(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Repair replays path and, if it ends on an event, rewrites it with the
// missing terminal hash. The original is copied to path+".damaged" before it
// is replaced. On any error the original is left unmodified.
func (r *Repairer) Repair(ctx context.Context, path string) (*Result, error) {
	res, err := r.repair(ctx, path)
	switch {
	case err != nil:
		r.metrics.Repair(ctx, metrics.OutcomeFailed)
	case res.Repaired:
		r.metrics.Repair(ctx, metrics.OutcomeRepaired)
	case res.Anomaly != "":
		r.metrics.Repair(ctx, metrics.OutcomeAnomalous)
	default:
		r.metrics.Repair(ctx, metrics.OutcomeIntact)
	}
	return res, err
}

func (r *Repairer) repair(ctx context.Context, path string) (*Result, error) {
	log := r.logger.With("file", path)

	dec, err := stream.Open(path, stream.Tolerant())
	if err != nil {
		return nil, err
	}
	it := NewIterator(dec, r.hasher)
	defer it.Close()

	tmpPath := path + TempSuffix
	defer func() {
		if err := os.Remove(tmpPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn("failed to remove temporary file", "temp", tmpPath, "error", err)
		}
	}()
	if err := writeTemp(ctx, tmpPath, it); err != nil {
		return nil, fmt.Errorf("repair %s: %w", path, err)
	}

	res := &Result{
		Path:         path,
		EventCount:   it.EventCount(),
		TerminalHash: it.TerminalHash(),
		Truncated:    it.Truncated(),
	}

	switch {
	case it.SeedHash() == nil:
		res.Anomaly = "file has no seed hash"
		log.Warn("cannot repair event stream file", "reason", res.Anomaly)
		return res, nil
	case it.EventCount() == 0:
		res.Anomaly = "file has no events"
		log.Warn("event stream file has no events, leaving it unchanged",
			"terminal_hash", res.TerminalHash != nil)
		return res, nil
	case !it.FinalHashAdded():
		log.Debug("event stream file already has a terminal hash", "events", res.EventCount)
		return res, nil
	}

	backup := path + BackupSuffix
	if err := copyFile(path, backup); err != nil {
		return nil, fmt.Errorf("back up %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return nil, fmt.Errorf("%w: replace %s: %w", stream.ErrIO, path, err)
	}
	res.Repaired = true
	res.BackupPath = backup
	log.Info("repaired event stream file",
		"events", res.EventCount,
		"terminal_hash", res.TerminalHash.Short(),
		"truncated", res.Truncated,
		"backup", backup)
	return res, nil
}

// RepairDirectory repairs the last event stream file of dir, the only file
// a crash can leave without a terminal hash.
func (r *Repairer) RepairDirectory(ctx context.Context, dir, suffix string) (*Result, error) {
	files, err := pcesfile.ListFiles(dir, suffix)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no event stream files in %s", pcesfile.ErrNotFound, dir)
	}
	return r.Repair(ctx, files[len(files)-1])
}

func writeTemp(ctx context.Context, tmpPath string, it *Iterator) (err error) {
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("%w: %w", stream.ErrIO, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: close %s: %w", stream.ErrIO, tmpPath, cerr)
		}
	}()

	enc, err := stream.NewEncoder(f)
	if err != nil {
		return err
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		obj, err := it.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if err := enc.Write(obj); err != nil {
			return err
		}
	}
	if err := enc.Flush(); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("%w: sync %s: %w", stream.ErrIO, tmpPath, err)
	}
	return nil
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("%w: %w", stream.ErrIO, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("%w: %w", stream.ErrIO, err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: close %s: %w", stream.ErrIO, dst, cerr)
		}
	}()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("%w: copy to %s: %w", stream.ErrIO, dst, err)
	}
	if err := out.Sync(); err != nil {
		return fmt.Errorf("%w: sync %s: %w", stream.ErrIO, dst, err)
	}
	return nil
}
