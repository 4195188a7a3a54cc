package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/xmh1011/go-pces/param"
	"github.com/xmh1011/go-pces/storage/pcesfile"
	"github.com/xmh1011/go-pces/storage/simplefile"
)

// errVerifyFailed is returned after every problem has been reported.
var errVerifyFailed = errors.New("verification failed")

type verifyFlags struct {
	expect      string
	checkpoints string
	record      bool
}

func newVerifyCmd(g *globalFlags) *cobra.Command {
	f := &verifyFlags{}
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check terminal hashes and chain continuity, print the final running hash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runVerify(cmd, g, f)
		},
	}
	cmd.Flags().StringVar(&f.expect, "expect", "", "Checkpoint hash the final running hash must match")
	cmd.Flags().StringVar(&f.checkpoints, "checkpoints", "", "File of per-round checkpoints to compare against")
	cmd.Flags().BoolVar(&f.record, "record", false, "Record rounds missing from --checkpoints")
	return cmd
}

func runVerify(cmd *cobra.Command, g *globalFlags, f *verifyFlags) error {
	var want *param.Hash
	if f.expect != "" {
		h, err := param.ParseHash(f.expect)
		if err != nil {
			return fmt.Errorf("invalid --expect: %w", err)
		}
		want = &h
	}
	if f.record && f.checkpoints == "" {
		return errors.New("--record requires --checkpoints")
	}

	store, logger, err := g.open(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	files, err := store.Files()
	if err != nil {
		return err
	}
	failed := false
	for i, path := range files {
		rep, err := pcesfile.ScanFile(path, store.Hasher(), i == len(files)-1)
		if err != nil {
			logger.Error("file failed verification", "file", path, "error", err)
			failed = true
			continue
		}
		if rep.Damaged {
			logger.Warn("file has no terminal hash", "file", path, "events", rep.Events)
		}
	}

	history, err := store.Open(param.Unbounded{})
	if err != nil {
		return err
	}
	defer history.Close()

	var (
		events int64
		rounds []simplefile.Checkpoint
		cur    *simplefile.Checkpoint
	)
	for {
		ev, err := history.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		events++
		if cur != nil && cur.Round != ev.Round() {
			rounds = append(rounds, *cur)
		}
		cur = &simplefile.Checkpoint{Round: ev.Round(), RunningHash: history.RunningHash(), Events: events}
		if ev.Consensus.LastInRoundReceived {
			rounds = append(rounds, *cur)
			cur = nil
		}
	}

	final := history.RunningHash()
	fmt.Fprintf(out, "files: %d damaged: %d events: %d complete rounds: %d\n",
		history.FileCount(), history.DamagedFileCount(), events, len(rounds))
	fmt.Fprintf(out, "start hash:   %s\n", history.StartHash())
	fmt.Fprintf(out, "running hash: %s\n", final)

	if want != nil && !final.Equal(*want) {
		logger.Error("running hash does not match checkpoint", "want", want.String(), "got", final.String())
		failed = true
	}
	if f.checkpoints != "" {
		ok, err := checkRounds(cmd, logger, f, history.StartHash(), rounds)
		if err != nil {
			return err
		}
		failed = failed || !ok
	}
	if failed {
		return errVerifyFailed
	}
	return nil
}

// checkRounds compares complete rounds with the checkpoint file and, when
// recording, stores the rounds it does not know yet.
func checkRounds(cmd *cobra.Command, logger *slog.Logger, f *verifyFlags, start param.Hash, rounds []simplefile.Checkpoint) (bool, error) {
	store, err := simplefile.NewCheckpoints(f.checkpoints)
	if err != nil {
		return false, err
	}
	if err := store.Bind(start); err != nil {
		return false, err
	}

	ok := true
	matched := 0
	var missing []simplefile.Checkpoint
	for _, r := range rounds {
		cp, err := store.Get(r.Round)
		if errors.Is(err, simplefile.ErrCheckpointNotFound) {
			r.RecordedAt = time.Now().UTC()
			missing = append(missing, r)
			continue
		}
		if !cp.RunningHash.Equal(r.RunningHash) || cp.Events != r.Events {
			logger.Error("round does not match checkpoint",
				"round", r.Round,
				"want", cp.RunningHash.String(),
				"got", r.RunningHash.String(),
				"want_events", cp.Events,
				"got_events", r.Events)
			ok = false
			continue
		}
		matched++
	}

	recorded := 0
	if f.record && len(missing) > 0 {
		if err := store.Put(missing...); err != nil {
			return false, err
		}
		recorded = len(missing)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "checkpoints: %d matched, %d unknown, %d recorded\n",
		matched, len(missing), recorded)
	return ok, nil
}
