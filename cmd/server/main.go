package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/xmh1011/go-pces/config"
	"github.com/xmh1011/go-pces/metrics"
	"github.com/xmh1011/go-pces/storage"
	"github.com/xmh1011/go-pces/transport"
	"github.com/xmh1011/go-pces/transport/grpc"
	"github.com/xmh1011/go-pces/transport/tcp"
)

var (
	configPath  string
	dir         string
	listen      string
	transType   string
	rateLimit   float64
	repairFirst bool
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "pces-server",
		Short: "Serve an event stream directory over the network",
		RunE:  runServer,
	}

	rootCmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	rootCmd.Flags().StringVar(&dir, "dir", "", "Event stream directory (overrides config)")
	rootCmd.Flags().StringVar(&listen, "listen", "", "Listen address (overrides config)")
	rootCmd.Flags().StringVar(&transType, "transport", "", "Transport type: grpc, tcp (overrides config)")
	rootCmd.Flags().Float64Var(&rateLimit, "rate-limit", 0, "Events per second per stream, 0 keeps the config value")
	rootCmd.Flags().BoolVar(&repairFirst, "repair", false, "Repair the last file of the directory before serving")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	srv, err := NewServer(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	if err := srv.Start(); err != nil {
		srv.Stop()
		return fmt.Errorf("failed to start server: %w", err)
	}

	waitForSignal(srv)
	return nil
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if cmd.Flags().Changed("dir") {
		cfg.Dir = dir
	}
	if cmd.Flags().Changed("listen") {
		cfg.Server.Listen = listen
	}
	if cmd.Flags().Changed("transport") {
		cfg.Server.Transport = transType
	}
	if cmd.Flags().Changed("rate-limit") {
		cfg.Server.RateLimit = rateLimit
	}
	return cfg, cfg.Validate()
}

// Server owns the store and the network transport.
type Server struct {
	config    config.Config
	logger    *slog.Logger
	store     *storage.Store
	transport transport.Server
	shutdown  func(context.Context) error
}

// NewServer creates a new Server instance
func NewServer(ctx context.Context, cfg config.Config) (*Server, error) {
	logger := cfg.NewLogger(os.Stderr)
	if ctx == nil {
		ctx = context.Background()
	}

	// 1. Initialize metrics
	rec, shutdown, err := metrics.Setup(ctx, cfg.ExportConfig("pces-server"))
	if err != nil {
		return nil, err
	}

	// 2. Initialize storage
	storeCfg, err := cfg.StorageConfig()
	if err != nil {
		shutdown(ctx)
		return nil, err
	}
	store, err := storage.NewStore(storeCfg, logger, rec)
	if err != nil {
		shutdown(ctx)
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if repairFirst {
		res, err := store.Repair(ctx)
		if err != nil {
			shutdown(ctx)
			return nil, fmt.Errorf("failed to repair %s: %w", cfg.Dir, err)
		}
		logger.Info("startup repair finished", "file", res.Path, "repaired", res.Repaired, "events", res.EventCount)
	}

	// 3. Initialize transport
	trans, err := newTransport(cfg, logger)
	if err != nil {
		shutdown(ctx)
		return nil, fmt.Errorf("failed to initialize transport: %w", err)
	}
	trans.RegisterHistory(transport.NewService(store, logger))

	return &Server{
		config:    cfg,
		logger:    logger,
		store:     store,
		transport: trans,
		shutdown:  shutdown,
	}, nil
}

func newTransport(cfg config.Config, logger *slog.Logger) (transport.Server, error) {
	switch cfg.Server.Transport {
	case transport.GrpcTransport:
		opts := []grpc.Option{grpc.WithLogger(logger)}
		if cfg.Server.RateLimit > 0 {
			opts = append(opts, grpc.WithRateLimit(cfg.Server.RateLimit, cfg.Server.Burst))
		}
		return grpc.NewTransport(cfg.Server.Listen, opts...)
	case transport.TCPTransport:
		if cfg.Server.RateLimit > 0 {
			logger.Warn("rate limit is only applied by the grpc transport")
		}
		return tcp.NewTCPTransport(cfg.Server.Listen, logger)
	default:
		return nil, fmt.Errorf("transport %q cannot serve across processes", cfg.Server.Transport)
	}
}

// Start starts serving.
func (s *Server) Start() error {
	if err := s.transport.Start(); err != nil {
		return err
	}
	s.logger.Info("history server started",
		"dir", s.config.Dir,
		"transport", s.config.Server.Transport,
		"addr", s.transport.Addr())
	return nil
}

// Stop stops the server
func (s *Server) Stop() {
	s.logger.Info("shutting down")
	if err := s.transport.Close(); err != nil {
		s.logger.Error("failed to close transport", "error", err)
	}
	if err := s.shutdown(context.Background()); err != nil {
		s.logger.Error("failed to flush metrics", "error", err)
	}
	s.logger.Info("server stopped")
}

func waitForSignal(srv *Server) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	srv.Stop()
}
