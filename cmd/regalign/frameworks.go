package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/dshills/regalign/internal/framework"
)

func newFrameworksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "frameworks",
		Short: "List the supported frameworks and their alignment weights",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listFrameworks(cmd.OutOrStdout())
		},
	}
}

func listFrameworks(w io.Writer) error {
	r := lipgloss.NewRenderer(w)
	code := r.NewStyle().Bold(true).Width(11)
	name := r.NewStyle().Width(16)
	muted := r.NewStyle().Foreground(lipgloss.Color("241"))
	for _, def := range framework.All() {
		if _, err := fmt.Fprintf(w, "%s%s%3.0f%%  %s\n",
			code.Render(string(def.Code)), name.Render(def.Name), def.Weight*100, muted.Render(def.Description)); err != nil {
			return err
		}
	}
	return nil
}
