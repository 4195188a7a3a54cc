package tcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"strings"
	"sync"
	"time"

	"github.com/xmh1011/go-pces/storage/pcesfile"
	"github.com/xmh1011/go-pces/stream"
	"github.com/xmh1011/go-pces/transport"
)

// DefaultPageSize 是每次 RPC 调用返回的最大事件数。
// 服务端不保存游标，每一页都重新打开事件流并重读前面 Skip 个事件，
// 读取 n 个事件共需读取约 n²/(2·pageSize) 个事件。长历史应使用 gRPC 传输，
// 或调大 SetPageSize。
const DefaultPageSize = 256

// errPageFull 用于在一页装满后提前结束 StreamHistory。
var errPageFull = errors.New("page full")

// PageArgs 是分页读取的请求。
// 事件流不可变，所以服务端每次重新打开游标并跳过已经返回的 Skip 个事件。
type PageArgs struct {
	Request  transport.StreamRequest
	Skip     int
	PageSize int
}

// PageReply 是分页读取的响应。Done 为 true 表示没有更多事件。
type PageReply struct {
	Events []transport.StreamedEvent
	Done   bool
}

// HistoryRPC 是一个包装器，用于将事件流服务暴露给 net/rpc 包。
type HistoryRPC struct {
	history transport.HistoryServer
}

// Page 是分页读取的 RPC 处理器。
func (h *HistoryRPC) Page(args PageArgs, reply *PageReply) error {
	pageSize := args.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	seen := 0
	err := h.history.StreamHistory(context.Background(), &args.Request, func(ev *transport.StreamedEvent) error {
		seen++
		if seen <= args.Skip {
			return nil
		}
		if len(reply.Events) == pageSize {
			return errPageFull
		}
		reply.Events = append(reply.Events, *ev)
		return nil
	})
	switch {
	case errors.Is(err, errPageFull):
		return nil
	case err != nil:
		return err
	}
	reply.Done = true
	return nil
}

// Transport 实现了 transport.Transport 和 transport.Server，通过 TCP 和 net/rpc 进行通信。
type Transport struct {
	localAddr string
	listener  net.Listener
	server    *rpc.Server
	logger    *slog.Logger
	pageSize  int

	mu    sync.RWMutex
	peers map[string]*rpc.Client // 缓存 RPC 客户端连接
}

// NewTCPTransport 创建一个新的 Transport 实例。
// localAddr 为空时只作为客户端使用。
func NewTCPTransport(localAddr string, logger *slog.Logger) (*Transport, error) {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Transport{
		localAddr: localAddr,
		server:    rpc.NewServer(),
		logger:    logger,
		pageSize:  DefaultPageSize,
		peers:     make(map[string]*rpc.Client),
	}
	if localAddr == "" {
		return t, nil
	}

	listener, err := net.Listen("tcp", localAddr)
	if err != nil {
		return nil, err
	}
	t.listener = listener
	t.localAddr = listener.Addr().String()
	return t, nil
}

// SetPageSize 设置客户端每次请求的事件数。
func (t *Transport) SetPageSize(n int) {
	t.pageSize = n
}

// Addr 返回当前 Transport 监听的实际地址。
func (t *Transport) Addr() string {
	return t.localAddr
}

// RegisterHistory 注册事件流服务。
func (t *Transport) RegisterHistory(history transport.HistoryServer) {
	if err := t.server.Register(&HistoryRPC{history: history}); err != nil {
		t.logger.Error("failed to register history rpc", "error", err)
	}
}

// Start 在后台接受连接。
func (t *Transport) Start() error {
	if t.listener == nil {
		return errors.New("transport has no listener")
	}
	go t.acceptConnections()
	t.logger.Info("tcp history service started", "addr", t.localAddr)
	return nil
}

// acceptConnections 循环接受并处理新的 TCP 连接。
func (t *Transport) acceptConnections() {
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			// 如果监听器关闭了，就退出循环
			if errors.Is(err, net.ErrClosed) {
				return
			}
			t.logger.Warn("accept failed", "addr", t.localAddr, "error", err)
			continue
		}
		// 为每个连接启动一个新的 goroutine 来提供 RPC 服务
		go t.server.ServeConn(conn)
	}
}

// Close 关闭监听器和所有缓存的连接。
func (t *Transport) Close() error {
	t.mu.Lock()
	for addr, client := range t.peers {
		client.Close()
		delete(t.peers, addr)
	}
	t.mu.Unlock()

	if t.listener != nil {
		return t.listener.Close()
	}
	return nil
}

// getPeerClient 获取或创建一个到目标节点的 RPC 客户端。
func (t *Transport) getPeerClient(target string) (*rpc.Client, error) {
	t.mu.RLock()
	client, ok := t.peers[target]
	t.mu.RUnlock()
	if ok {
		return client, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// 再次检查，防止在等待锁的过程中其他 goroutine 已经创建了连接
	if client, ok := t.peers[target]; ok {
		return client, nil
	}

	conn, err := net.DialTimeout("tcp", target, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", transport.ErrUnavailable, err)
	}
	client = rpc.NewClient(conn)
	t.peers[target] = client
	return client, nil
}

// remoteCall 是一个通用的 RPC 调用函数。
func (t *Transport) remoteCall(ctx context.Context, target, method string, args any, reply any) error {
	client, err := t.getPeerClient(target)
	if err != nil {
		return err
	}

	call := client.Go(method, args, reply, make(chan *rpc.Call, 1))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-call.Done:
	}
	if call.Error == nil {
		return nil
	}
	var serverErr rpc.ServerError
	if errors.As(call.Error, &serverErr) {
		return fromServerError(call.Error)
	}
	// 不是服务端返回的错误：连接已关闭、被重置或读到一半断开，缓存的 client 失效了
	t.dropPeer(target, client)
	return fmt.Errorf("%w: %w", transport.ErrUnavailable, call.Error)
}

// dropPeer 关闭并移除失效的缓存连接。
func (t *Transport) dropPeer(target string, client *rpc.Client) {
	t.mu.Lock()
	if t.peers[target] == client {
		delete(t.peers, target)
	}
	t.mu.Unlock()
	client.Close()
}

// serverErrors 把服务端错误信息映射回客户端可以判断的哨兵错误。
var serverErrors = []struct {
	cause error
	as    error
}{
	{transport.ErrInvalidRequest, transport.ErrInvalidRequest},
	{pcesfile.ErrNotFound, pcesfile.ErrNotFound},
	{pcesfile.ErrContinuity, transport.ErrDataLoss},
	{stream.ErrFormat, transport.ErrDataLoss},
	{stream.ErrTruncated, transport.ErrDataLoss},
}

// fromServerError 恢复服务端错误对应的哨兵错误，net/rpc 只传递错误字符串。
func fromServerError(err error) error {
	var serverErr rpc.ServerError
	if !errors.As(err, &serverErr) {
		return err
	}
	for _, m := range serverErrors {
		if strings.Contains(string(serverErr), m.cause.Error()) {
			return fmt.Errorf("%w: %s", m.as, string(serverErr))
		}
	}
	return err
}

// Stream 逐页读取 target 的事件流。
func (t *Transport) Stream(ctx context.Context, target string, req *transport.StreamRequest, fn func(*transport.StreamedEvent) error) error {
	skip := 0
	for {
		args := PageArgs{Request: *req, Skip: skip, PageSize: t.pageSize}
		var reply PageReply
		if err := t.remoteCall(ctx, target, "HistoryRPC.Page", args, &reply); err != nil {
			return err
		}
		for i := range reply.Events {
			if err := fn(&reply.Events[i]); err != nil {
				return err
			}
		}
		skip += len(reply.Events)
		if reply.Done || len(reply.Events) == 0 {
			return nil
		}
	}
}
