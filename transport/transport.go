package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xmh1011/go-pces/param"
)

const (
	GrpcTransport     = "grpc"
	TCPTransport      = "tcp"
	InmemoryTransport = "inmemory"
)

var (
	// ErrInvalidRequest 表示请求本身不合法，重试没有意义。
	ErrInvalidRequest = errors.New("invalid stream request")
	// ErrUnavailable 表示目标服务不可达，可以换一个节点重试。
	ErrUnavailable = errors.New("history service unavailable")
	// ErrDataLoss 表示服务端的事件流文件损坏或不连续。
	ErrDataLoss = errors.New("history data loss")
)

//go:generate mockgen -source=transport.go -destination=mock_transport.go -package=transport

// StreamRequest 描述一次历史事件读取请求。
// Round 和 Since 最多只能设置一个，都不设置时从头读取。
type StreamRequest struct {
	Round  int64     // 从该共识轮次开始，0 表示不限制
	Since  time.Time // 从该共识时间开始，零值表示不限制
	Filter string    // CEL 过滤表达式，只影响返回哪些事件，不影响滚动哈希
	Limit  int       // 最多返回的事件数，0 表示不限制
}

// Validate checks that the request can be served.
func (r *StreamRequest) Validate() error {
	switch {
	case r.Round < 0:
		return fmt.Errorf("%w: negative round %d", ErrInvalidRequest, r.Round)
	case r.Round > 0 && !r.Since.IsZero():
		return fmt.Errorf("%w: round and since are mutually exclusive", ErrInvalidRequest)
	case r.Limit < 0:
		return fmt.Errorf("%w: negative limit %d", ErrInvalidRequest, r.Limit)
	}
	return nil
}

// Bound returns the lower bound selected by the request.
func (r *StreamRequest) Bound() param.LowerBound {
	switch {
	case r.Round > 0:
		return param.RoundBound(r.Round)
	case !r.Since.IsZero():
		return param.TimestampBound(r.Since)
	default:
		return param.Unbounded{}
	}
}

// StreamedEvent 是返回给客户端的一个事件。
type StreamedEvent struct {
	Event *param.PersistedEvent
	// RunningHash 是截至该事件（包含）的滚动哈希，被过滤掉的事件同样计入。
	RunningHash param.Hash
	// Index 是该事件在本次读取中的序号，从 1 开始，被过滤掉的事件同样计入。
	Index int64
}

// HistoryServer 定义了事件流服务需要暴露给 Transport 的处理方法。
// send 返回错误时，StreamHistory 必须停止并返回该错误。
type HistoryServer interface {
	StreamHistory(ctx context.Context, req *StreamRequest, send func(*StreamedEvent) error) error
}

// Transport 定义了客户端读取远端事件流所需的方法。
type Transport interface {
	// Stream 按顺序把 target 返回的事件交给 fn，fn 返回错误时停止读取。
	Stream(ctx context.Context, target string, req *StreamRequest, fn func(*StreamedEvent) error) error

	Close() error
}

// Server 是服务端 Transport 的生命周期接口。
type Server interface {
	Addr() string
	RegisterHistory(history HistoryServer)
	Start() error
	Close() error
}
