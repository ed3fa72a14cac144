package console

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Printer writes the supervisor's own status lines. The supervised tool
// writes to the same terminal, so every line is written in one call.
type Printer struct {
	mu          sync.Mutex
	out         io.Writer
	quiet       bool
	interactive bool
}

// NewPrinter creates a Printer writing to out. Quiet suppresses registry
// command output and the status spinner.
func NewPrinter(out io.Writer, quiet bool) *Printer {
	return &Printer{
		out:         out,
		quiet:       quiet,
		interactive: !quiet && isTerminal(out),
	}
}

// Discard returns a quiet Printer that drops everything
func Discard() *Printer {
	return NewPrinter(io.Discard, true)
}

// Quiet reports whether registry command output is suppressed
func (p *Printer) Quiet() bool {
	return p.quiet
}

// Lifecycle prints process lifecycle lines such as "<cmd>:<pid> started"
func (p *Printer) Lifecycle(format string, args ...any) {
	p.println(lifecycleStyle.Render(fmt.Sprintf(format, args...)))
}

// Notice prints update and shutdown lines
func (p *Printer) Notice(format string, args ...any) {
	p.println(noticeStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints a failure
func (p *Printer) Error(format string, args ...any) {
	p.println(errorStyle.Render(fmt.Sprintf(format, args...)))
}

// Output prints captured registry command output unless quiet
func (p *Printer) Output(text string) {
	if p.quiet {
		return
	}
	text = strings.TrimRight(text, "\r\n")
	if text == "" {
		return
	}
	p.println(outputStyle.Render(text))
}

func (p *Printer) println(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, line)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
