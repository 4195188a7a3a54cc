package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xmh1011/go-pces/eventgen"
	"github.com/xmh1011/go-pces/hashing"
	"github.com/xmh1011/go-pces/param"
)

type genFlags struct {
	files    int
	events   int
	perRound int
	creators int
	seed     uint64
	version  string
	crash    bool
}

func newGenCmd(g *globalFlags) *cobra.Command {
	f := &genFlags{}
	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Write a synthetic event stream directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGen(cmd, g, f)
		},
	}
	cmd.Flags().IntVar(&f.files, "files", 3, "Number of files")
	cmd.Flags().IntVar(&f.events, "events", 100, "Events per file")
	cmd.Flags().IntVar(&f.perRound, "per-round", 5, "Events per round")
	cmd.Flags().IntVar(&f.creators, "creators", 4, "Number of event creators")
	cmd.Flags().Uint64Var(&f.seed, "seed", 1, "Random seed")
	cmd.Flags().StringVar(&f.version, "software-version", "0.1.0", "Software version stamped on events")
	cmd.Flags().BoolVar(&f.crash, "crash", false, "Leave the last file without a terminal hash")
	return cmd
}

func runGen(cmd *cobra.Command, g *globalFlags, f *genFlags) error {
	if f.files < 1 || f.events < 1 {
		return fmt.Errorf("--files and --events must be positive")
	}
	cfg, err := g.load(cmd)
	if err != nil {
		return err
	}
	digest, err := param.ParseDigestType(cfg.Digest)
	if err != nil {
		return err
	}
	hasher, err := hashing.New(digest)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return err
	}

	gen := eventgen.New(f.seed,
		eventgen.WithHasher(hasher),
		eventgen.WithCreators(f.creators),
		eventgen.WithEventsPerRound(f.perRound),
		eventgen.WithVersion(f.version),
	)
	files := eventgen.Split(gen.Events(f.files*f.events), f.events)
	seed := eventgen.Seed(hasher, fmt.Sprintf("pcestool gen %d", f.seed))
	paths, final, err := eventgen.WriteDir(cfg.Dir, hasher, seed, files, f.crash)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d file(s) to %s, running hash %s\n", len(paths), cfg.Dir, final)
	return nil
}
