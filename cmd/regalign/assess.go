package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/regalign/internal/extract"
	"github.com/dshills/regalign/internal/framework"
	"github.com/dshills/regalign/internal/pipeline"
	"github.com/dshills/regalign/internal/render"
)

type assessFlags struct {
	document    string
	frameworks  []string
	format      string
	out         string
	report      string
	concurrency int
	quiet       bool
}

func newAssessCmd(g *globalFlags) *cobra.Command {
	f := assessFlags{}
	cmd := &cobra.Command{
		Use:   "assess <document>",
		Short: "Assess a policy, guidance or system document",
		Long: `Assess a document against the selected frameworks. With no --framework flags
the router picks frameworks from the document itself.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f.document = args[0]
			return runAssess(cmd.Context(), g, f, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringSliceVarP(&f.frameworks, "framework", "f", nil, "framework code (ICO, EU_AI_ACT, DPA, ISO_42001); repeatable")
	cmd.Flags().StringVar(&f.format, "format", "json", "output format: json, markdown or yaml")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "write the analysis here instead of stdout")
	cmd.Flags().StringVar(&f.report, "report", "", "also write the PDF report to this path")
	cmd.Flags().IntVar(&f.concurrency, "concurrency", 0, "parallel framework analyses (overrides config)")
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "suppress progress output")
	return cmd
}

func runAssess(ctx context.Context, g *globalFlags, f assessFlags, stdout, stderr io.Writer) error {
	format, err := render.ParseFormat(f.format)
	if err != nil {
		return badInput(err)
	}
	if _, err := os.Stat(f.document); err != nil {
		return badInput(fmt.Errorf("document: %w", err))
	}

	cfg, log, err := setup(g, stderr)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	codes := f.frameworks
	if len(codes) == 0 {
		codes = cfg.Pipeline.Frameworks
	}
	selected, err := framework.ParseCodes(codes)
	if err != nil {
		return badInput(err)
	}
	if f.concurrency > 0 {
		cfg.Pipeline.Concurrency = f.concurrency
	}

	var renderer pipeline.Renderer
	if f.report != "" {
		renderer = render.PDF{}
	}
	var observer pipeline.Observer
	if !f.quiet {
		observer = newProgress(stderr).Line
	}

	engine, err := newEngine(cfg, log, renderer, observer)
	if err != nil {
		return err
	}
	state, err := engine.Run(ctx, f.document, selected)
	if err != nil {
		if errors.Is(err, pipeline.ErrNoFrameworks) || errors.Is(err, extract.ErrUnsupported) {
			return badInput(err)
		}
		return err
	}

	a := state.Analysis()
	body, err := render.Render(format, &a)
	if err != nil {
		return err
	}
	if err := writeOutput(f.out, stdout, body); err != nil {
		return err
	}
	if f.report != "" {
		if err := os.WriteFile(f.report, state.Report, 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		log.Info("report written", zap.String("path", f.report), zap.Int("bytes", len(state.Report)))
	}
	return nil
}

func writeOutput(path string, stdout io.Writer, body []byte) error {
	if len(body) > 0 && body[len(body)-1] != '\n' {
		body = append(body, '\n')
	}
	if path == "" {
		_, err := stdout.Write(body)
		return err
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
