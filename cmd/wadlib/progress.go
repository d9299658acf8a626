package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"golang.org/x/term"

	"wadlib/internal/model"
)

const defaultWidth = 80

// progressPrinter renders concurrent transfers on one status line when the
// writer is a terminal, and prints nothing until completion otherwise.
type progressPrinter struct {
	w     io.Writer
	tty   bool
	width int

	mu    sync.Mutex
	state map[string]model.TransferProgress
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	p := &progressPrinter{w: w, width: defaultWidth, state: map[string]model.TransferProgress{}}
	if f, ok := w.(*os.File); ok {
		fd := f.Fd()
		p.tty = isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
		if width, _, err := term.GetSize(int(fd)); err == nil && width > 0 {
			p.width = width
		}
	}
	return p
}

// Update records a progress report and redraws the status line.
func (p *progressPrinter) Update(tp model.TransferProgress) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.state[tp.Slug] = tp
	if p.tty {
		fmt.Fprintf(p.w, "\r%-*s", p.width-1, truncate(p.line(), p.width-1))
	}
}

// Finish clears the status line and reports one finished install.
func (p *progressPrinter) Finish(slug, result string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.state, slug)
	if p.tty {
		fmt.Fprintf(p.w, "\r%-*s\r", p.width-1, "")
	}
	fmt.Fprintf(p.w, "%s: %s\n", slug, result)
}

func (p *progressPrinter) line() string {
	slugs := make([]string, 0, len(p.state))
	for slug := range p.state {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)

	parts := make([]string, 0, len(slugs))
	for _, slug := range slugs {
		parts = append(parts, formatProgress(p.state[slug]))
	}
	return strings.Join(parts, "  ")
}

func formatProgress(tp model.TransferProgress) string {
	done := humanize.Bytes(uint64(tp.BytesTransferred))
	if tp.TotalBytes <= 0 {
		return fmt.Sprintf("%s %s", tp.Slug, done)
	}
	pct := float64(tp.BytesTransferred) * 100 / float64(tp.TotalBytes)
	return fmt.Sprintf("%s %s/%s (%.0f%%)", tp.Slug, done, humanize.Bytes(uint64(tp.TotalBytes)), pct)
}

func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(r[:width-1]) + "…"
}
