package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xmh1011/go-pces/hashing"
	"github.com/xmh1011/go-pces/metrics"
	"github.com/xmh1011/go-pces/param"
	"github.com/xmh1011/go-pces/storage/repair"
)

func newRepairCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "repair [file]",
		Short: "Append the missing terminal hash to a damaged file",
		Long: "Repair the given file, or the last file of --dir when no file is given. " +
			"The original is kept next to it with a .damaged suffix.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				res *repair.Result
				err error
			)
			if len(args) == 1 {
				res, err = repairFile(cmd, g, args[0])
			} else {
				res, err = repairDir(cmd, g)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case res.Anomaly != "":
				return errors.New(res.Path + ": " + res.Anomaly)
			case res.Repaired:
				fmt.Fprintf(out, "%s: repaired, %d event(s), terminal hash %s, backup %s\n",
					res.Path, res.EventCount, res.TerminalHash, res.BackupPath)
			default:
				fmt.Fprintf(out, "%s: already complete, %d event(s)\n", res.Path, res.EventCount)
			}
			return nil
		},
	}
}

// repairFile repairs a file that need not live in the configured directory.
func repairFile(cmd *cobra.Command, g *globalFlags, path string) (*repair.Result, error) {
	cfg, err := g.load(cmd)
	if err != nil {
		return nil, err
	}
	digest, err := param.ParseDigestType(cfg.Digest)
	if err != nil {
		return nil, err
	}
	hasher, err := hashing.New(digest)
	if err != nil {
		return nil, err
	}
	rec, err := metrics.Default()
	if err != nil {
		return nil, err
	}
	r := repair.NewRepairer(
		repair.WithHasher(hasher),
		repair.WithLogger(cfg.NewLogger(cmd.ErrOrStderr())),
		repair.WithMetrics(rec),
	)
	return r.Repair(cmd.Context(), path)
}

func repairDir(cmd *cobra.Command, g *globalFlags) (*repair.Result, error) {
	store, _, err := g.open(cmd)
	if err != nil {
		return nil, err
	}
	return store.Repair(cmd.Context())
}
