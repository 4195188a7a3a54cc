package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/xmh1011/go-pces/transport"
)

// Transport 是一个基于内存的 Transport 实现，用于在单个进程内模拟客户端与服务端的通信。
type Transport struct {
	mu        sync.RWMutex
	localAddr string                             // 本地服务的地址
	peers     map[string]transport.HistoryServer // 已连接的服务端
	history   transport.HistoryServer
}

// NewInMemoryTransport 创建一个新的 Transport 实例。
// addr 是当前使用此 transport 的服务的地址。
func NewInMemoryTransport(addr string) *Transport {
	return &Transport{
		localAddr: addr,
		peers:     make(map[string]transport.HistoryServer),
	}
}

// Addr 返回当前 Transport 的地址。
func (t *Transport) Addr() string {
	return t.localAddr
}

// RegisterHistory 注册本地的事件流服务，本地地址也可以作为 Stream 的目标。
func (t *Transport) RegisterHistory(history transport.HistoryServer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.history = history
	t.peers[t.localAddr] = history
}

// Start 启动 Transport。
func (t *Transport) Start() error {
	return nil
}

// Close 关闭 Transport。
func (t *Transport) Close() error {
	return nil
}

// Connect 将一个服务端添加到 transport 的注册表中。
func (t *Transport) Connect(peerAddr string, server transport.HistoryServer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.peers[peerAddr] = server
}

// Disconnect 从 transport 的注册表中移除一个服务端。
func (t *Transport) Disconnect(peerAddr string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.peers, peerAddr)
}

// getPeer 根据目标地址查找对应的服务端。
func (t *Transport) getPeer(target string) (transport.HistoryServer, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	peer, ok := t.peers[target]
	if !ok {
		return nil, fmt.Errorf("%w: could not connect to peer: %s", transport.ErrUnavailable, target)
	}
	return peer, nil
}

// Stream 直接调用目标服务端的 StreamHistory。
// 每个事件都会被复制一份，调用方修改事件不会影响服务端。
func (t *Transport) Stream(ctx context.Context, target string, req *transport.StreamRequest, fn func(*transport.StreamedEvent) error) error {
	peer, err := t.getPeer(target)
	if err != nil {
		return err
	}
	r := *req
	return peer.StreamHistory(ctx, &r, func(ev *transport.StreamedEvent) error {
		out := *ev
		if ev.Event != nil {
			e := *ev.Event
			out.Event = &e
		}
		return fn(&out)
	})
}
