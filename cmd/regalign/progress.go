package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// progress prints pipeline log lines with the actor highlighted.
type progress struct {
	mu    sync.Mutex
	w     io.Writer
	actor lipgloss.Style
	msg   lipgloss.Style
	score lipgloss.Style
}

func newProgress(w io.Writer) *progress {
	r := lipgloss.NewRenderer(w)
	return &progress{
		w:     w,
		actor: r.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		msg:   r.NewStyle().Foreground(lipgloss.Color("252")),
		score: r.NewStyle().Bold(true).Foreground(lipgloss.Color("214")),
	}
}

// Line implements pipeline.Observer.
func (p *progress) Line(l string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	actor, msg, ok := strings.Cut(l, ": ")
	if !ok {
		fmt.Fprintln(p.w, p.msg.Render(l))
		return
	}
	style := p.msg
	if strings.Contains(msg, "%") || strings.Contains(msg, "risk,") {
		style = p.score
	}
	fmt.Fprintln(p.w, p.actor.Render(actor+":"), style.Render(msg))
}
