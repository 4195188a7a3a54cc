package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/xmh1011/go-pces/hashing"
	"github.com/xmh1011/go-pces/metrics"
	"github.com/xmh1011/go-pces/param"
	"github.com/xmh1011/go-pces/storage/inmemory"
	"github.com/xmh1011/go-pces/storage/pcesfile"
	"github.com/xmh1011/go-pces/storage/repair"
)

//go:generate mockgen -source=storage.go -destination=mock_storage.go -package=storage

// History 是按共识顺序读取事件流的游标。
// 每次 Next 返回一个事件之后，RunningHash 即为包含该事件在内的滚动哈希，
// 下游可以用它与外部提供的检查点哈希进行比较。
// 游标不是并发安全的，一个游标只应由一个 goroutine 使用。
type History interface {
	HasNext() (bool, error)
	Peek() (*param.PersistedEvent, error)
	Next() (*param.PersistedEvent, error)

	// RunningHash 返回截至上一次 Next 返回的事件的滚动哈希。
	RunningHash() param.Hash
	// StartHash 返回整条链的起始哈希（第一个文件的种子哈希）。
	StartHash() param.Hash
	// FileCount 返回目前为止打开过的文件数量。
	FileCount() int
	// DamagedFileCount 返回缺少终止哈希的文件数量。
	DamagedFileCount() int
	// BytesRead 返回目前为止读取的字节数。
	BytesRead() int64

	Close() error
}

// Opener 打开新的 History 游标。每次调用返回一个独立的游标。
type Opener interface {
	Open(bound param.LowerBound) (History, error)
}

// Config 描述一个事件流目录。
type Config struct {
	Dir                     string
	Suffix                  string
	DigestType              param.DigestType
	// StrictLastFile makes a partial record at the end of the last file an
	// error instead of the end of the history.
	StrictLastFile bool
}

// Store 是一个事件流目录的入口：读取、定位和修复。
type Store struct {
	cfg      Config
	hasher   hashing.Hasher
	opts     pcesfile.Options
	repairer *repair.Repairer
}

// NewStore validates cfg and returns a Store for its directory.
func NewStore(cfg Config, logger *slog.Logger, rec *metrics.Recorder) (*Store, error) {
	if cfg.Suffix == "" {
		cfg.Suffix = pcesfile.DefaultSuffix
	}
	if cfg.DigestType == 0 {
		cfg.DigestType = param.SHA384
	}
	if logger == nil {
		logger = slog.Default()
	}
	info, err := os.Stat(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open event stream directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("event stream path %s is not a directory", cfg.Dir)
	}
	hasher, err := hashing.New(cfg.DigestType)
	if err != nil {
		return nil, err
	}

	logger = logger.With("dir", cfg.Dir)
	return &Store{
		cfg:    cfg,
		hasher: hasher,
		opts: pcesfile.Options{
			Suffix:         cfg.Suffix,
			StrictLastFile: cfg.StrictLastFile,
			Logger:         logger,
			Metrics:        rec,
		},
		repairer: repair.NewRepairer(
			repair.WithHasher(hasher),
			repair.WithLogger(logger),
			repair.WithMetrics(rec),
		),
	}, nil
}

// Open returns a cursor positioned at bound.
func (s *Store) Open(bound param.LowerBound) (History, error) {
	return pcesfile.OpenHistory(s.cfg.Dir, bound, s.hasher, s.opts)
}

// Files lists the event stream files of the directory in order.
func (s *Store) Files() ([]string, error) {
	return pcesfile.ListFiles(s.cfg.Dir, s.cfg.Suffix)
}

// Hasher returns the digest service used for the running hash.
func (s *Store) Hasher() hashing.Hasher {
	return s.hasher
}

// Repair repairs the last file of the directory.
func (s *Store) Repair(ctx context.Context) (*repair.Result, error) {
	return s.repairer.RepairDirectory(ctx, s.cfg.Dir, s.cfg.Suffix)
}

// NewMemoryOpener serves History cursors over events held in memory.
func NewMemoryOpener(hasher hashing.Hasher, seed param.Hash, events []*param.PersistedEvent) Opener {
	return memoryOpener{history: inmemory.NewHistory(hasher, seed, events)}
}

type memoryOpener struct {
	history *inmemory.History
}

func (o memoryOpener) Open(bound param.LowerBound) (History, error) {
	return o.history.Open(bound)
}
