package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/xmh1011/go-pces/client"
	"github.com/xmh1011/go-pces/param"
	"github.com/xmh1011/go-pces/transport"
	"github.com/xmh1011/go-pces/transport/grpc"
	"github.com/xmh1011/go-pces/transport/tcp"
)

var (
	serversStr    string
	transportType string
	round         int64
	since         string
	filterExpr    string
	limit         int
	verify        bool
	expect        string
	output        string
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "pces-client",
		Short: "Read consensus events from a history server",
		RunE:  runClient,
	}

	rootCmd.Flags().StringVar(&serversStr, "servers", "127.0.0.1:7070", "Comma-separated list of server addresses, tried in order")
	rootCmd.Flags().StringVar(&transportType, "transport", transport.GrpcTransport, "Transport type: grpc, tcp")
	rootCmd.Flags().Int64Var(&round, "round", 0, "Start at this round")
	rootCmd.Flags().StringVar(&since, "since", "", "Start at this consensus time (RFC 3339)")
	rootCmd.Flags().StringVar(&filterExpr, "filter", "", "CEL expression selecting events to print")
	rootCmd.Flags().IntVar(&limit, "limit", 0, "Stop after this many events")
	rootCmd.Flags().BoolVar(&verify, "verify", false, "Only print the final running hash")
	rootCmd.Flags().StringVar(&expect, "expect", "", "Checkpoint hash the final running hash must match (implies --verify)")
	rootCmd.Flags().StringVarP(&output, "output", "o", "text", "Output format: text, json")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runClient(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	req := &transport.StreamRequest{Round: round, Filter: filterExpr, Limit: limit}
	if since != "" {
		t, err := time.Parse(time.RFC3339Nano, since)
		if err != nil {
			return fmt.Errorf("invalid --since: %w", err)
		}
		req.Since = t
	}

	trans, err := newTransport(transportType)
	if err != nil {
		return err
	}
	defer trans.Close()

	c := client.NewClient(strings.Split(serversStr, ","), trans)
	c.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if verify || expect != "" {
		return runVerify(ctx, c, req)
	}

	enc := json.NewEncoder(os.Stdout)
	return c.Stream(ctx, req, func(ev *transport.StreamedEvent) error {
		if output == "json" {
			return enc.Encode(map[string]any{
				"index":        ev.Index,
				"creator":      ev.Event.Hashed.CreatorID,
				"generation":   ev.Event.Hashed.Generation(),
				"round":        ev.Event.Round(),
				"order":        ev.Event.Consensus.ConsensusOrder,
				"timestamp":    ev.Event.Consensus.ConsensusTimestamp,
				"transactions": ev.Event.TransactionCount(),
				"running_hash": ev.RunningHash.Hex(),
			})
		}
		fmt.Printf("%6d %s %s\n", ev.Index, ev.Event, ev.RunningHash.Short())
		return nil
	})
}

func runVerify(ctx context.Context, c *client.Client, req *transport.StreamRequest) error {
	var want *param.Hash
	if expect != "" {
		h, err := param.ParseHash(expect)
		if err != nil {
			return fmt.Errorf("invalid --expect: %w", err)
		}
		want = &h
	}
	sum, err := c.Verify(ctx, req, want)
	if sum != nil {
		fmt.Printf("events: %d rounds: %d-%d\n", sum.Events, sum.FirstRound, sum.LastRound)
		if sum.RunningHash != nil {
			fmt.Printf("running hash: %s\n", sum.RunningHash)
		}
	}
	return err
}

func newTransport(kind string) (transport.Transport, error) {
	switch kind {
	case transport.GrpcTransport:
		return grpc.NewClientTransport(), nil
	case transport.TCPTransport:
		return tcp.NewTCPTransport("", nil)
	default:
		return nil, fmt.Errorf("unsupported transport: %s", kind)
	}
}
