package main

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/xmh1011/go-pces/storage/pcesfile"
)

func newLsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List event stream files with their rounds and versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, logger, err := g.open(cmd)
			if err != nil {
				return err
			}
			files, err := store.Files()
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "FILE\tEVENTS\tROUNDS\tVERSIONS\tBYTES\tSTATE")
			for i, path := range files {
				rep, err := pcesfile.ScanFile(path, store.Hasher(), i == len(files)-1)
				if rep == nil {
					logger.Error("failed to scan file", "file", path, "error", err)
					fmt.Fprintf(tw, "%s\t-\t-\t-\t-\tunreadable\n", filepath.Base(path))
					continue
				}
				state := "ok"
				switch {
				case err != nil:
					state = "hash mismatch"
				case rep.Damaged:
					state = "damaged"
				}
				versions := "-"
				if rep.MinVersion != nil {
					versions = rep.MinVersion.String()
					if !rep.MaxVersion.Equal(rep.MinVersion) {
						versions += ".." + rep.MaxVersion.String()
					}
				}
				fmt.Fprintf(tw, "%s\t%d\t%d-%d\t%s\t%d\t%s\n",
					filepath.Base(path), rep.Events, rep.FirstRound, rep.LastRound, versions, rep.Bytes, state)
			}
			return tw.Flush()
		},
	}
}
