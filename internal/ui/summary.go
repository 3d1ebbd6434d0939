package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sokinpui/patchdir/model"
)

// RenderSummary formats a summary block. Styles degrade to plain text when
// the output is not a terminal.
func RenderSummary(s model.Summary) string {
	r := lipgloss.NewRenderer(out)
	headerStyle := r.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	successStyle := r.NewStyle().Foreground(lipgloss.Color("78"))
	errorStyle := r.NewStyle().Foreground(lipgloss.Color("197"))
	faintStyle := r.NewStyle().Faint(true)

	var b strings.Builder
	section := func(title string, style lipgloss.Style, files []string) {
		if len(files) == 0 {
			return
		}
		b.WriteString(style.Render(fmt.Sprintf("%s (%d):", title, len(files))))
		b.WriteString("\n")
		for _, f := range files {
			b.WriteString(fmt.Sprintf("  - %s\n", f))
		}
	}

	b.WriteString(headerStyle.Render("--- Summary ---"))
	b.WriteString("\n")
	section("Created", successStyle, s.Created)
	section("Modified", successStyle, s.Modified)
	section("Removed", successStyle, s.Removed)
	section("Failed", errorStyle, s.Failed)

	if len(s.Created)+len(s.Modified)+len(s.Removed)+len(s.Failed) == 0 {
		b.WriteString(faintStyle.Render("Nothing to do."))
		b.WriteString("\n")
	}
	if s.Message != "" {
		style := successStyle
		if len(s.Failed) > 0 {
			style = errorStyle
		}
		b.WriteString(style.Render(s.Message))
		b.WriteString("\n")
	}
	return b.String()
}

// PrintSummary writes the rendered summary to the status output.
func PrintSummary(s model.Summary) {
	fmt.Fprint(out, RenderSummary(s))
}
