package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/regalign/internal/framework"
	"github.com/dshills/regalign/internal/render"
	"github.com/dshills/regalign/internal/server"
	"github.com/dshills/regalign/internal/store"
)

func newServeCmd(g *globalFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve assessments over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), g, addr, cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}

func runServe(ctx context.Context, g *globalFlags, addr string, stderr io.Writer) error {
	cfg, log, err := setup(g, stderr)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	if addr != "" {
		cfg.Server.Addr = addr
	}

	defaults, err := framework.ParseCodes(cfg.Pipeline.Frameworks)
	if err != nil {
		return badInput(err)
	}
	engine, err := newEngine(cfg, log, render.PDF{}, nil)
	if err != nil {
		return err
	}
	jobs, err := store.Open(cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		if err := jobs.Close(); err != nil {
			log.Warn("close job store", zap.Error(err))
		}
	}()
	log.Info("job store ready",
		zap.String("driver", cfg.Store.Driver),
		zap.Stringer("ttl", cfg.Store.TTL),
		zap.Int("max_entries", cfg.Store.MaxEntries),
	)

	srv := server.New(engine, jobs, server.Options{
		MaxUploadBytes:    cfg.Server.MaxUploadBytes(),
		DefaultFrameworks: defaults,
		Logger:            log,
	})
	return srv.ListenAndServe(ctx, cfg.Server.Addr, cfg.Server.ShutdownTimeoutDuration())
}
