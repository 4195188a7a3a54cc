package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/xmh1011/go-pces/filter"
	"github.com/xmh1011/go-pces/storage"
)

// Service 基于 storage.Opener 实现 HistoryServer。
// 每次请求打开一个独立的游标，游标只在当前请求的 goroutine 中使用。
type Service struct {
	opener storage.Opener
	logger *slog.Logger
}

// NewService 创建一个新的事件流服务。
func NewService(opener storage.Opener, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{opener: opener, logger: logger}
}

// StreamHistory 从请求的下界开始按顺序发送事件。
func (s *Service) StreamHistory(ctx context.Context, req *StreamRequest, send func(*StreamedEvent) error) error {
	if err := req.Validate(); err != nil {
		return err
	}
	f, err := filter.Compile(req.Filter)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	bound := req.Bound()
	history, err := s.opener.Open(bound)
	if err != nil {
		return err
	}
	defer history.Close()

	var index int64
	sent := 0
	for req.Limit == 0 || sent < req.Limit {
		if err := ctx.Err(); err != nil {
			return err
		}
		ev, err := history.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		index++

		ok, err := f.Match(ev)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := send(&StreamedEvent{Event: ev, RunningHash: history.RunningHash(), Index: index}); err != nil {
			return err
		}
		sent++
	}

	s.logger.Debug("history stream finished",
		"bound", bound.String(),
		"filter", f.String(),
		"read", index,
		"sent", sent,
		"files", history.FileCount(),
		"bytes", history.BytesRead())
	return nil
}
