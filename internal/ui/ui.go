package ui

import (
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

var (
	HeaderColor  = color.New(color.FgBlue, color.Bold)
	InfoColor    = color.New(color.FgCyan)
	SuccessColor = color.New(color.FgGreen)
	WarningColor = color.New(color.FgYellow)
	ErrorColor   = color.New(color.FgRed)
	PathColor    = color.New(color.FgYellow)
)

var out io.Writer = os.Stderr

// SetOutput redirects all status output. Color is turned off unless w is
// a terminal.
func SetOutput(w io.Writer) {
	out = w
	if f, ok := w.(*os.File); ok && isTerminal(f) {
		return
	}
	color.NoColor = true
}

// Output returns the writer status lines go to.
func Output() io.Writer {
	return out
}

// DisableColor turns off ANSI colors for every helper.
func DisableColor() {
	color.NoColor = true
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func Header(format string, a ...interface{}) {
	HeaderColor.Fprintf(out, format+"\n", a...)
}

func Info(format string, a ...interface{}) {
	InfoColor.Fprintf(out, format+"\n", a...)
}

func Success(format string, a ...interface{}) {
	SuccessColor.Fprintf(out, format+"\n", a...)
}

func Warning(format string, a ...interface{}) {
	WarningColor.Fprintf(out, format+"\n", a...)
}

func Error(format string, a ...interface{}) {
	ErrorColor.Fprintf(out, format+"\n", a...)
}

func Path(format string, a ...interface{}) {
	PathColor.Fprintf(out, "  "+format+"\n", a...)
}
