package grpc

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/xmh1011/go-pces/storage/pcesfile"
	"github.com/xmh1011/go-pces/stream"
	"github.com/xmh1011/go-pces/transport"
)

const streamMethod = "/pces.v1.History/Stream"

// historyService is the handler type of the History service.
type historyService interface {
	serveStream(req *wrapperspb.BytesValue, ss grpc.ServerStream) error
}

// Request and response messages are protobuf BytesValue envelopes around
// gob-encoded transport types.
var historyServiceDesc = grpc.ServiceDesc{
	ServiceName: "pces.v1.History",
	HandlerType: (*historyService)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Stream",
			Handler:       streamHandler,
			ServerStreams: true,
		},
	},
	Metadata: "pces/v1/history.proto",
}

func streamHandler(srv any, ss grpc.ServerStream) error {
	in := new(wrapperspb.BytesValue)
	if err := ss.RecvMsg(in); err != nil {
		return err
	}
	return srv.(historyService).serveStream(in, ss)
}

// Transport implements transport.Transport and transport.Server using gRPC.
type Transport struct {
	listener  net.Listener
	localAddr string
	logger    *slog.Logger

	history    transport.HistoryServer
	grpcServer *grpc.Server
	limit      rate.Limit
	burst      int

	mu    sync.RWMutex
	conns map[string]*grpc.ClientConn
}

// Option configures a Transport.
type Option func(*Transport)

// WithRateLimit paces every served stream to eventsPerSecond.
func WithRateLimit(eventsPerSecond float64, burst int) Option {
	return func(t *Transport) {
		t.limit = rate.Limit(eventsPerSecond)
		t.burst = max(burst, 1)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Transport) {
		t.logger = l
	}
}

// NewTransport creates a gRPC Transport listening on listenAddr.
func NewTransport(listenAddr string, opts ...Option) (*Transport, error) {
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, err
	}
	t := newTransport(opts)
	t.listener = listener
	t.localAddr = listener.Addr().String()
	return t, nil
}

// NewClientTransport creates a Transport that only dials.
func NewClientTransport(opts ...Option) *Transport {
	return newTransport(opts)
}

func newTransport(opts []Option) *Transport {
	t := &Transport{
		logger:     slog.Default(),
		conns:      make(map[string]*grpc.ClientConn),
		grpcServer: grpc.NewServer(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Addr returns the local address.
func (t *Transport) Addr() string {
	return t.localAddr
}

// RegisterHistory registers the service that answers stream requests.
func (t *Transport) RegisterHistory(history transport.HistoryServer) {
	t.history = history
}

// Start starts the gRPC server.
func (t *Transport) Start() error {
	if t.listener == nil {
		return errors.New("transport has no listener")
	}
	if t.history == nil {
		return errors.New("history service not registered")
	}

	t.grpcServer.RegisterService(&historyServiceDesc, t)

	go func() {
		if err := t.grpcServer.Serve(t.listener); err != nil {
			t.logger.Error("grpc server stopped", "addr", t.localAddr, "error", err)
		}
	}()

	t.logger.Info("grpc history service started", "addr", t.localAddr)
	return nil
}

// Close stops the gRPC server and closes all connections.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.grpcServer.Stop()
	if t.listener != nil {
		t.listener.Close()
	}

	for _, conn := range t.conns {
		conn.Close()
	}
	t.conns = make(map[string]*grpc.ClientConn)
	return nil
}

func (t *Transport) getConn(target string) (*grpc.ClientConn, error) {
	t.mu.RLock()
	conn, ok := t.conns[target]
	t.mu.RUnlock()
	if ok {
		return conn, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if conn, ok := t.conns[target]; ok {
		return conn, nil
	}

	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", transport.ErrUnavailable, target, err)
	}
	t.conns[target] = conn
	return conn, nil
}

// --- Helper functions for encoding/decoding ---

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

// toStatus maps service errors to gRPC status codes.
func toStatus(err error) error {
	var code codes.Code
	switch {
	case err == nil:
		return nil
	case errors.Is(err, transport.ErrInvalidRequest):
		code = codes.InvalidArgument
	case errors.Is(err, pcesfile.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, pcesfile.ErrContinuity), errors.Is(err, stream.ErrFormat), errors.Is(err, stream.ErrTruncated):
		code = codes.DataLoss
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	default:
		if _, ok := status.FromError(err); ok {
			return err
		}
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}

// fromStatus maps gRPC status codes back to sentinel errors.
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", transport.ErrInvalidRequest, st.Message())
	case codes.NotFound:
		return fmt.Errorf("%w: %s", pcesfile.ErrNotFound, st.Message())
	case codes.DataLoss:
		return fmt.Errorf("%w: %s", transport.ErrDataLoss, st.Message())
	case codes.Unavailable:
		return fmt.Errorf("%w: %s", transport.ErrUnavailable, st.Message())
	case codes.Canceled:
		return fmt.Errorf("%w: %s", context.Canceled, st.Message())
	case codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s", context.DeadlineExceeded, st.Message())
	default:
		return err
	}
}

// --- Client side implementation ---

func (t *Transport) Stream(ctx context.Context, target string, req *transport.StreamRequest, fn func(*transport.StreamedEvent) error) error {
	conn, err := t.getConn(target)
	if err != nil {
		return err
	}
	data, err := encode(req)
	if err != nil {
		return fmt.Errorf("encode stream request: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cs, err := conn.NewStream(ctx, &historyServiceDesc.Streams[0], streamMethod)
	if err != nil {
		return fromStatus(err)
	}
	// io.EOF means the stream already ended; RecvMsg reports the status
	if err := cs.SendMsg(wrapperspb.Bytes(data)); err != nil && !errors.Is(err, io.EOF) {
		return fromStatus(err)
	}
	if err := cs.CloseSend(); err != nil {
		return fromStatus(err)
	}

	for {
		out := new(wrapperspb.BytesValue)
		if err := cs.RecvMsg(out); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fromStatus(err)
		}
		var ev transport.StreamedEvent
		if err := decode(out.GetValue(), &ev); err != nil {
			return fmt.Errorf("decode streamed event: %w", err)
		}
		if err := fn(&ev); err != nil {
			return err
		}
	}
}

// --- Server side implementation ---

func (t *Transport) serveStream(in *wrapperspb.BytesValue, ss grpc.ServerStream) error {
	var req transport.StreamRequest
	if err := decode(in.GetValue(), &req); err != nil {
		return status.Errorf(codes.InvalidArgument, "decode stream request: %v", err)
	}

	ctx := ss.Context()
	var limiter *rate.Limiter
	if t.limit > 0 {
		limiter = rate.NewLimiter(t.limit, t.burst)
	}

	err := t.history.StreamHistory(ctx, &req, func(ev *transport.StreamedEvent) error {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
		}
		data, err := encode(ev)
		if err != nil {
			return fmt.Errorf("encode streamed event: %w", err)
		}
		return ss.SendMsg(wrapperspb.Bytes(data))
	})
	if err != nil {
		t.logger.Warn("history stream failed", "round", req.Round, "since", req.Since, "error", err)
	}
	return toStatus(err)
}
