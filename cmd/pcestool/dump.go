package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/xmh1011/go-pces/filter"
	"github.com/xmh1011/go-pces/param"
	"github.com/xmh1011/go-pces/transport"
)

type dumpFlags struct {
	round  int64
	since  string
	filter string
	limit  int
	output string
}

// eventView is the JSON form of a dumped event.
type eventView struct {
	Creator      int64     `json:"creator"`
	Generation   int64     `json:"generation"`
	Version      string    `json:"version"`
	TimeCreated  time.Time `json:"time_created"`
	Round        int64     `json:"round"`
	RoundCreated int64     `json:"round_created"`
	Order        int64     `json:"order"`
	Timestamp    time.Time `json:"timestamp"`
	Stale        bool      `json:"stale,omitempty"`
	Transactions int       `json:"transactions"`
	RunningHash  string    `json:"running_hash"`
}

func newDumpCmd(g *globalFlags) *cobra.Command {
	f := &dumpFlags{}
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print events in consensus order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDump(cmd, g, f)
		},
	}
	cmd.Flags().Int64Var(&f.round, "round", 0, "Start at this round")
	cmd.Flags().StringVar(&f.since, "since", "", "Start at this consensus time (RFC 3339)")
	cmd.Flags().StringVar(&f.filter, "filter", "", "CEL expression selecting events to print")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "Stop after printing this many events")
	cmd.Flags().StringVarP(&f.output, "output", "o", "text", "Output format: text, json")
	return cmd
}

func runDump(cmd *cobra.Command, g *globalFlags, f *dumpFlags) error {
	req := &transport.StreamRequest{Round: f.round, Filter: f.filter, Limit: f.limit}
	if f.since != "" {
		t, err := time.Parse(time.RFC3339Nano, f.since)
		if err != nil {
			return fmt.Errorf("invalid --since: %w", err)
		}
		req.Since = t
	}
	if err := req.Validate(); err != nil {
		return err
	}
	if f.output != "text" && f.output != "json" {
		return fmt.Errorf("unknown output format %q", f.output)
	}
	sel, err := filter.Compile(f.filter)
	if err != nil {
		return err
	}

	store, _, err := g.open(cmd)
	if err != nil {
		return err
	}
	history, err := store.Open(req.Bound())
	if err != nil {
		return err
	}
	defer history.Close()

	out := cmd.OutOrStdout()
	enc := json.NewEncoder(out)
	printed := 0
	for f.limit == 0 || printed < f.limit {
		ev, err := history.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		ok, err := sel.Match(ev)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		printed++
		if f.output == "json" {
			if err := enc.Encode(newEventView(ev, history.RunningHash())); err != nil {
				return err
			}
			continue
		}
		fmt.Fprintf(out, "%s %s %s\n",
			ev.Consensus.ConsensusTimestamp.Format(time.RFC3339Nano), ev, history.RunningHash().Short())
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "printed %d event(s) from %d file(s), running hash %s\n",
		printed, history.FileCount(), history.RunningHash())
	return nil
}

func newEventView(ev *param.PersistedEvent, running param.Hash) eventView {
	return eventView{
		Creator:      ev.Hashed.CreatorID,
		Generation:   ev.Hashed.Generation(),
		Version:      ev.Hashed.SoftwareVersion,
		TimeCreated:  ev.Hashed.TimeCreated,
		Round:        ev.Consensus.RoundReceived,
		RoundCreated: ev.Consensus.RoundCreated,
		Order:        ev.Consensus.ConsensusOrder,
		Timestamp:    ev.Consensus.ConsensusTimestamp,
		Stale:        ev.Consensus.Stale,
		Transactions: ev.TransactionCount(),
		RunningHash:  running.Hex(),
	}
}
