package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"equivcheck/pkg/equivalence"
)

// printer 终端输出;仅在终端上着色
type printer struct {
	w     io.Writer
	color bool
}

func newPrinter(f *os.File) *printer {
	color := isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	if os.Getenv("NO_COLOR") != "" {
		color = false
	}
	return &printer{w: f, color: color}
}

func (p *printer) paint(code, s string) string {
	if !p.color {
		return s
	}
	return "\x1b[" + code + "m" + s + "\x1b[0m"
}

func (p *printer) red(s string) string    { return p.paint("31", s) }
func (p *printer) green(s string) string  { return p.paint("32", s) }
func (p *printer) yellow(s string) string { return p.paint("33", s) }
func (p *printer) blue(s string) string   { return p.paint("34", s) }
func (p *printer) cyan(s string) string   { return p.paint("36", s) }
func (p *printer) bold(s string) string   { return p.paint("1", s) }

func (p *printer) rule() {
	fmt.Fprintln(p.w, p.blue(strings.Repeat("═", 60)))
}

func (p *printer) banner() {
	fmt.Fprintln(p.w, p.blue("╔══════════════════════════════════════════════════════╗"))
	fmt.Fprintln(p.w, p.blue("║   Path Summary Equivalence Checker                   ║"))
	fmt.Fprintln(p.w, p.blue("║   Cross-Language Behavioural Verification            ║"))
	fmt.Fprintln(p.w, p.blue("╚══════════════════════════════════════════════════════╝"))
	fmt.Fprintln(p.w)
}

func (p *printer) step(n int, msg string) {
	fmt.Fprintf(p.w, "\n%s\n", p.bold(fmt.Sprintf("[ Step %d/3 ] %s", n, msg)))
}

func (p *printer) ok(msg string) {
	fmt.Fprintf(p.w, "  %s %s\n", p.green("✓"), msg)
}

func (p *printer) fail(msg string) {
	fmt.Fprintf(p.w, "  %s %s\n", p.red("✗"), msg)
}

func (p *printer) progress(ev equivalence.Progress) {
	switch ev.Stage {
	case "preflight":
		p.ok(ev.Message)
	case "region":
		fmt.Fprintf(p.w, "  [%d/%d] %s\n", ev.Done, ev.Total, ev.Message)
	}
}

// verdict 打印判定,不等价时附带反例
func (p *printer) verdict(r *equivalence.EquivalenceResult) {
	fmt.Fprintln(p.w)
	p.rule()
	switch r.Verdict {
	case equivalence.Equivalent:
		fmt.Fprintf(p.w, "  %s Programs are SEMANTICALLY EQUIVALENT\n", p.bold(p.green("✓")))
	case equivalence.NotEquivalent:
		fmt.Fprintf(p.w, "  %s Programs are NOT EQUIVALENT\n", p.bold(p.red("✗")))
		if cex := r.Counterexample; cex != nil {
			fmt.Fprintf(p.w, "  %s Counterexample (%s vs %s):\n", p.yellow("→"), cex.FirstPath, cex.SecondPath)
			for _, name := range cex.InputNames() {
				fmt.Fprintf(p.w, "      %s = %d\n", p.cyan(name), cex.Inputs[name])
			}
			for _, d := range cex.Differences {
				fmt.Fprintf(p.w, "      %s\n", d)
			}
		}
	case equivalence.Unknown:
		fmt.Fprintf(p.w, "  %s Could not determine equivalence (%s)\n", p.bold(p.yellow("?")), r.Reason)
	}
	fmt.Fprintf(p.w, "  Regions compared: %d, time: %.3fs\n", r.PathsCompared, r.TimeTaken)
	p.rule()
}
