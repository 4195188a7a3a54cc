package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xmh1011/go-pces/client"
	"github.com/xmh1011/go-pces/config"
	"github.com/xmh1011/go-pces/eventgen"
	"github.com/xmh1011/go-pces/hashing"
	"github.com/xmh1011/go-pces/transport"
	"github.com/xmh1011/go-pces/transport/grpc"
	"github.com/xmh1011/go-pces/transport/tcp"
)

func TestServerServesDirectory(t *testing.T) {
	h := hashing.Default()
	events := eventgen.New(1).Events(30)

	for _, kind := range []string{transport.GrpcTransport, transport.TCPTransport} {
		t.Run(kind, func(t *testing.T) {
			// Arrange
			dir := t.TempDir()
			_, final, err := eventgen.WriteDir(dir, h, eventgen.Seed(h, "server"), eventgen.Split(events, 12), true)
			require.NoError(t, err)

			cfg := config.Default()
			cfg.Dir = dir
			cfg.Log.Level = "error"
			cfg.Server.Listen = "127.0.0.1:0"
			cfg.Server.Transport = kind

			repairFirst = true
			defer func() { repairFirst = false }()

			srv, err := NewServer(context.Background(), cfg)
			require.NoError(t, err)
			require.NoError(t, srv.Start())
			defer srv.Stop()

			var trans transport.Transport
			if kind == transport.GrpcTransport {
				trans = grpc.NewClientTransport()
			} else {
				trans, err = tcp.NewTCPTransport("", nil)
				require.NoError(t, err)
			}
			defer trans.Close()

			// Act
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			sum, err := client.NewClient([]string{srv.transport.Addr()}, trans).
				Verify(ctx, &transport.StreamRequest{}, &final)

			// Assert
			require.NoError(t, err)
			assert.Equal(t, int64(len(events)), sum.Events)
		})
	}
}

func TestNewServerRejectsInmemoryTransport(t *testing.T) {
	cfg := config.Default()
	cfg.Dir = t.TempDir()
	cfg.Server.Transport = transport.InmemoryTransport
	_, err := NewServer(context.Background(), cfg)
	assert.Error(t, err)
}
