package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xmh1011/go-pces/param"
	"github.com/xmh1011/go-pces/transport"
)

// ErrHashMismatch 表示最终的滚动哈希与期望的检查点哈希不一致。
var ErrHashMismatch = errors.New("running hash mismatch")

// clientAction 定义了客户端在一次读取失败后应采取的下一步动作。
type clientAction int

const (
	actionFail  clientAction = iota // 动作：失败，应终止操作
	actionRetry                     // 动作：换下一个节点重试
)

const defaultRetryInterval = 100 * time.Millisecond

// Client 封装了从一组事件流服务读取历史的逻辑。
// 一个服务不可用时，客户端会换下一个服务并从已经收到的事件之后继续。
type Client struct {
	servers       []string            // 服务地址，按优先级排列
	trans         transport.Transport // 用于网络通信的传输层
	logger        *slog.Logger
	maxAttempts   int
	retryInterval time.Duration
}

// NewClient 创建一个新的客户端实例。
func NewClient(servers []string, trans transport.Transport) *Client {
	return &Client{
		servers:       servers,
		trans:         trans,
		logger:        slog.Default(),
		maxAttempts:   2 * len(servers),
		retryInterval: defaultRetryInterval,
	}
}

// SetLogger 设置日志记录器。
func (c *Client) SetLogger(l *slog.Logger) {
	c.logger = l
}

// Stream 按顺序把事件交给 fn。
// 每个事件最多交付一次，即使中途切换了服务节点。
func (c *Client) Stream(ctx context.Context, req *transport.StreamRequest, fn func(*transport.StreamedEvent) error) error {
	if len(c.servers) == 0 {
		return fmt.Errorf("%w: no servers configured", transport.ErrUnavailable)
	}
	if err := req.Validate(); err != nil {
		return err
	}

	var delivered int64 // Index of the last event handed to fn
	var fnErr error
	deliver := func(ev *transport.StreamedEvent) error {
		if ev.Index <= delivered {
			return nil
		}
		if err := fn(ev); err != nil {
			fnErr = err
			return err
		}
		delivered = ev.Index
		return nil
	}

	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		target := c.servers[attempt%len(c.servers)]
		err := c.trans.Stream(ctx, target, req, deliver)
		if err == nil {
			return nil
		}
		if fnErr != nil {
			return fnErr
		}
		lastErr = err
		if c.decideNextAction(target, err) == actionFail {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retryInterval):
		}
	}
	return fmt.Errorf("all %d attempts failed: %w", c.maxAttempts, lastErr)
}

// decideNextAction 根据错误类型决定是否重试。
func (c *Client) decideNextAction(target string, err error) clientAction {
	if errors.Is(err, transport.ErrUnavailable) {
		c.logger.Warn("history server unavailable, trying next", "server", target, "error", err)
		return actionRetry
	}
	c.logger.Error("history stream failed", "server", target, "error", err)
	return actionFail
}

// Collect 读取并返回全部事件。
func (c *Client) Collect(ctx context.Context, req *transport.StreamRequest) ([]*transport.StreamedEvent, error) {
	var out []*transport.StreamedEvent
	err := c.Stream(ctx, req, func(ev *transport.StreamedEvent) error {
		out = append(out, ev)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Summary 是一次完整读取的结果。
type Summary struct {
	Events      int64
	FirstRound  int64
	LastRound   int64
	RunningHash *param.Hash // 最后一个事件之后的滚动哈希，没有事件时为 nil
}

// Verify 读取请求范围内的全部事件，并在 expect 非空时比较最终的滚动哈希。
// 过滤条件会让结果不完整，所以不允许与 Verify 一起使用。
func (c *Client) Verify(ctx context.Context, req *transport.StreamRequest, expect *param.Hash) (*Summary, error) {
	if req.Filter != "" {
		return nil, fmt.Errorf("%w: verify does not accept a filter", transport.ErrInvalidRequest)
	}
	sum := &Summary{}
	err := c.Stream(ctx, req, func(ev *transport.StreamedEvent) error {
		if sum.Events == 0 {
			sum.FirstRound = ev.Event.Round()
		}
		sum.Events++
		sum.LastRound = ev.Event.Round()
		h := ev.RunningHash
		sum.RunningHash = &h
		return nil
	})
	if err != nil {
		return nil, err
	}
	if expect != nil && (sum.RunningHash == nil || !sum.RunningHash.Equal(*expect)) {
		got := "none"
		if sum.RunningHash != nil {
			got = sum.RunningHash.String()
		}
		return sum, fmt.Errorf("%w: got %s, want %s", ErrHashMismatch, got, expect)
	}
	return sum, nil
}
