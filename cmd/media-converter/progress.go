package main

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/term"
)

var termIsTerminal = term.IsTerminal

const progressWidth = 30

// progress draws a single-line bar on a terminal and stays silent
// otherwise.
type progress struct {
	out     io.Writer
	enabled bool
	drawn   bool
}

func newProgress(out io.Writer) *progress {
	return &progress{out: out, enabled: isTerminal(out)}
}

func (p *progress) update(done, total int) {
	if !p.enabled || total == 0 {
		return
	}
	p.drawn = true
	fmt.Fprintf(p.out, "\r%s", renderBar(done, total, progressWidth))
}

func (p *progress) finish() {
	if p.drawn {
		fmt.Fprintln(p.out)
	}
}

func renderBar(done, total, width int) string {
	if total <= 0 {
		return ""
	}
	if done > total {
		done = total
	}
	filled := done * width / total
	return fmt.Sprintf("[%s%s] %d/%d", strings.Repeat("=", filled), strings.Repeat(" ", width-filled), done, total)
}
