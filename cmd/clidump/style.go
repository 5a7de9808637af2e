package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	styled bool

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	tokenStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

func setStyled(on bool) { styled = on }

func render(s lipgloss.Style, text string) string {
	if !styled {
		return text
	}
	return s.Render(text)
}

func printHeader(title string) {
	if styled {
		fmt.Fprintln(output, headerStyle.Render(title))
		return
	}
	fmt.Fprintln(output, title)
	fmt.Fprintln(output, strings.Repeat("=", len(title)))
}

// printField prints an aligned "Label: value" line.
func printField(label string, value any) {
	fmt.Fprintf(output, "%s %v\n", render(labelStyle, fmt.Sprintf("%-18s", label+":")), value)
}

func printRule(width int) {
	fmt.Fprintln(output, render(dimStyle, strings.Repeat("-", width)))
}
