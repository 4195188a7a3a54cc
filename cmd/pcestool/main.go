// Command pcestool inspects, verifies and repairs event stream directories.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/xmh1011/go-pces/config"
	"github.com/xmh1011/go-pces/metrics"
	"github.com/xmh1011/go-pces/storage"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	dir        string
	suffix     string
	digest     string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "pcestool",
		Short:         "Inspect, verify and repair consensus event stream files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "Path to a YAML config file")
	root.PersistentFlags().StringVarP(&g.dir, "dir", "d", "", "Event stream directory (overrides config)")
	root.PersistentFlags().StringVar(&g.suffix, "suffix", "", "Event stream file suffix (overrides config)")
	root.PersistentFlags().StringVar(&g.digest, "digest", "", "Digest algorithm: SHA-384, SHA3-384, BLAKE2b-384 (overrides config)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level (overrides config)")

	root.AddCommand(
		newLsCmd(g),
		newDumpCmd(g),
		newVerifyCmd(g),
		newRepairCmd(g),
		newGenCmd(g),
	)
	return root
}

// load resolves the configuration for cmd.
func (g *globalFlags) load(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return config.Config{}, err
	}
	flags := cmd.Flags()
	if flags.Changed("dir") {
		cfg.Dir = g.dir
	}
	if flags.Changed("suffix") {
		cfg.Suffix = g.suffix
	}
	if flags.Changed("digest") {
		cfg.Digest = g.digest
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = g.logLevel
	}
	return cfg, cfg.Validate()
}

// open builds a Store together with the logger it uses.
func (g *globalFlags) open(cmd *cobra.Command) (*storage.Store, *slog.Logger, error) {
	cfg, err := g.load(cmd)
	if err != nil {
		return nil, nil, err
	}
	logger := cfg.NewLogger(cmd.ErrOrStderr())
	rec, err := metrics.Default()
	if err != nil {
		return nil, nil, err
	}
	storeCfg, err := cfg.StorageConfig()
	if err != nil {
		return nil, nil, err
	}
	store, err := storage.NewStore(storeCfg, logger, rec)
	if err != nil {
		return nil, nil, err
	}
	return store, logger, nil
}
