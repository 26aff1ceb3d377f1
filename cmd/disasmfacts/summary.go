package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"disasmfacts/internal/decoder"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	countStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Align(lipgloss.Right)
	emptyStyle = lipgloss.NewStyle().Faint(true).Align(lipgloss.Right)
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// renderSummary formats a decode result as a boxed relation/count table.
func renderSummary(res *decoder.Result) string {
	relations := res.Facts.SortedRelations()

	width := 0
	for _, rel := range relations {
		if len(rel) > width {
			width = len(rel)
		}
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(res.Module))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("backend:"), res.Backend.Name())
	fmt.Fprintf(&b, "%s %d\n", labelStyle.Render("facts:  "), res.Facts.Total())
	fmt.Fprintf(&b, "%s %s\n\n", labelStyle.Render("time:   "), res.Duration.Round(time.Microsecond))

	for i, rel := range relations {
		n := res.Facts.Len(rel)
		style := countStyle
		if n == 0 {
			style = emptyStyle
		}
		b.WriteString(fmt.Sprintf("%-*s ", width, rel))
		b.WriteString(style.Width(8).Render(fmt.Sprint(n)))
		if i < len(relations)-1 {
			b.WriteString("\n")
		}
	}
	return boxStyle.Render(b.String())
}
