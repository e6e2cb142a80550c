package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/regalign/internal/analysis"
	"github.com/dshills/regalign/internal/config"
	"github.com/dshills/regalign/internal/extract"
	"github.com/dshills/regalign/internal/llm"
	"github.com/dshills/regalign/internal/logging"
	"github.com/dshills/regalign/internal/pipeline"
)

// Exit codes.
const (
	exitCodeOK       = 0
	exitCodeRuntime  = 1
	exitCodeBadInput = 3
)

// exitError carries a process exit code alongside the error.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func badInput(err error) error { return &exitError{code: exitCodeBadInput, err: err} }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(os.Stdout, os.Stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "regalign:", err)
		stop()
		os.Exit(exitCodeOf(err))
	}
}

func exitCodeOf(err error) int {
	if err == nil {
		return exitCodeOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitCodeRuntime
}

type globalFlags struct {
	configPath string
	verbose    bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "regalign",
		Short:         "AI governance compliance assessment against UK and EU frameworks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "path to regalign.toml (default ./regalign.toml if present)")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(newAssessCmd(g), newFrameworksCmd(), newServeCmd(g))
	return root
}

// setup loads configuration and builds the logger.
func setup(g *globalFlags, logOut io.Writer) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, nil, err
	}
	level := cfg.Log.Level
	if g.verbose {
		level = "debug"
	}
	log, err := logging.New(level, cfg.Log.Format, logOut)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// newEngine wires model clients, extraction and analysis into a pipeline.
func newEngine(cfg *config.Config, log *zap.Logger, renderer pipeline.Renderer, observer pipeline.Observer) (*pipeline.Engine, error) {
	classify, err := llm.New(cfg.Models.Classify, log)
	if err != nil {
		return nil, err
	}
	analyze, err := llm.New(cfg.Models.Analysis, log)
	if err != nil {
		return nil, err
	}
	return pipeline.New(
		extract.New(classify, log),
		analysis.NewRunner(analyze, log),
		pipeline.Options{
			Concurrency: cfg.Pipeline.Concurrency,
			Renderer:    renderer,
			Observer:    observer,
			Logger:      log,
		},
	), nil
}
