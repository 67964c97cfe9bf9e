// Package console renders the decorated, human-readable output of the
// portal-setup CLI: progress lines, success and failure markers, section
// rules, and a spinner for long-running child processes.
//
// Colours come from github.com/fatih/color, which disables itself when
// stdout is not a terminal or NO_COLOR is set. Diagnostic logging is not
// handled here; that goes through github.com/apex/log on stderr.
package console

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// ruleWidth is the width of the "=" separator around the completion banner.
const ruleWidth = 60

var (
	colorOk   = color.New(color.FgGreen)
	colorErr  = color.New(color.FgRed)
	colorWarn = color.New(color.FgYellow)
	colorHead = color.New(color.FgCyan, color.Bold)

	spinnerPicture    = spinner.CharSets[9]
	spinnerUpdateTime = 100 * time.Millisecond
)

// Printer writes decorated progress output to a single writer.
// A nil-safe zero value is not provided; use New or Discard.
type Printer struct {
	out   io.Writer
	quiet bool
}

// New creates a Printer writing to out.
func New(out io.Writer) *Printer {
	return &Printer{out: out}
}

// Discard returns a Printer that drops everything. Used by --json mode,
// where the only stdout content is the final report.
func Discard() *Printer {
	return &Printer{out: io.Discard, quiet: true}
}

// Writer exposes the underlying writer for callers that print
// pre-formatted blocks (e.g. captured subprocess output).
func (p *Printer) Writer() io.Writer {
	return p.out
}

// Println prints a plain line.
func (p *Printer) Println(format string, args ...interface{}) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

// Blank prints an empty line.
func (p *Printer) Blank() {
	fmt.Fprintln(p.out)
}

// Heading prints a top-level step announcement such as
// "📦 Installing Node.js dependencies...".
func (p *Printer) Heading(icon, format string, args ...interface{}) {
	fmt.Fprintf(p.out, "%s %s\n", icon, fmt.Sprintf(format, args...))
}

// Success prints an indented green check line.
func (p *Printer) Success(format string, args ...interface{}) {
	colorOk.Fprintf(p.out, "   ✅ %s\n", fmt.Sprintf(format, args...))
}

// Failure prints an indented red cross line.
func (p *Printer) Failure(format string, args ...interface{}) {
	colorErr.Fprintf(p.out, "   ❌ %s\n", fmt.Sprintf(format, args...))
}

// Warning prints a yellow warning line.
func (p *Printer) Warning(format string, args ...interface{}) {
	colorWarn.Fprintf(p.out, "⚠️  %s\n", fmt.Sprintf(format, args...))
}

// Fatal prints an unindented red cross line used for run-ending conditions.
func (p *Printer) Fatal(format string, args ...interface{}) {
	colorErr.Fprintf(p.out, "❌ %s\n", fmt.Sprintf(format, args...))
}

// Indented prints every line of block indented by three spaces.
// Trailing whitespace is dropped so empty output prints nothing.
func (p *Printer) Indented(block string) {
	block = strings.TrimRight(block, " \t\r\n")
	if block == "" {
		return
	}
	for _, line := range strings.Split(block, "\n") {
		fmt.Fprintf(p.out, "   %s\n", line)
	}
}

// Rule prints a full-width "=" separator.
func (p *Printer) Rule() {
	fmt.Fprintln(p.out, strings.Repeat("=", ruleWidth))
}

// Title prints a bold cyan title line.
func (p *Printer) Title(format string, args ...interface{}) {
	colorHead.Fprintf(p.out, "%s\n", fmt.Sprintf(format, args...))
}

// isTerminal reports whether the printer writes to an interactive terminal.
func (p *Printer) isTerminal() bool {
	f, ok := p.out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// RunWithSpinner executes f and shows a spinner with the given prefix
// until it returns. The spinner only runs on an interactive terminal,
// so piped output and tests see nothing extra.
func (p *Printer) RunWithSpinner(prefix string, f func() error) error {
	if p.quiet || !p.isTerminal() {
		return f()
	}

	s := spinner.New(spinnerPicture, spinnerUpdateTime)
	s.Writer = p.out
	if prefix != "" {
		s.Prefix = fmt.Sprintf("   %s ", strings.TrimSpace(prefix))
	}

	var wg sync.WaitGroup
	done := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.Start()
		<-done
		s.Stop()
	}()

	err := f()
	close(done)
	wg.Wait()

	return err
}
