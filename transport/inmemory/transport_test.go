package inmemory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xmh1011/go-pces/eventgen"
	"github.com/xmh1011/go-pces/hashing"
	"github.com/xmh1011/go-pces/storage"
	"github.com/xmh1011/go-pces/transport"
)

func TestInMemoryTransport(t *testing.T) {
	h := hashing.Default()
	events := eventgen.New(1).Events(6)
	service := transport.NewService(storage.NewMemoryOpener(h, eventgen.Seed(h, "mem"), events), nil)

	server := NewInMemoryTransport("server")
	server.RegisterHistory(service)
	require.NoError(t, server.Start())
	defer server.Close()
	assert.Equal(t, "server", server.Addr())

	client := NewInMemoryTransport("client")
	client.Connect("node1", service)

	t.Run("Stream Copies Events", func(t *testing.T) {
		var got []*transport.StreamedEvent
		err := client.Stream(context.Background(), "node1", &transport.StreamRequest{}, func(ev *transport.StreamedEvent) error {
			got = append(got, ev)
			ev.Event.Hashed.CreatorID = -100
			return nil
		})
		require.NoError(t, err)
		assert.Len(t, got, len(events))
		for _, ev := range events {
			assert.NotEqual(t, int64(-100), ev.Hashed.CreatorID, "server events are not modified by the client")
		}
	})

	t.Run("Local Address", func(t *testing.T) {
		n := 0
		err := server.Stream(context.Background(), "server", &transport.StreamRequest{Limit: 2}, func(*transport.StreamedEvent) error {
			n++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("Disconnected Peer", func(t *testing.T) {
		client.Disconnect("node1")
		err := client.Stream(context.Background(), "node1", &transport.StreamRequest{}, func(*transport.StreamedEvent) error { return nil })
		assert.ErrorIs(t, err, transport.ErrUnavailable)
	})
}
