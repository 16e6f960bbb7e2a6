package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Terminal palette. ANSI-256 values chosen to stay readable on light and
// dark backgrounds.
var (
	colorCyan   = lipgloss.Color("36")
	colorGreen  = lipgloss.Color("35")
	colorYellow = lipgloss.Color("220")
	colorRed    = lipgloss.Color("167")
	colorWhite  = lipgloss.Color("255")
	colorGray   = lipgloss.Color("245")
	colorDim    = lipgloss.Color("240")
)

// Styles shared across commands and the plan browser.
var (
	StyleTitle     = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	StyleHighlight = lipgloss.NewStyle().Foreground(colorCyan)
	StyleDim       = lipgloss.NewStyle().Foreground(colorDim)
	StyleValue     = lipgloss.NewStyle().Foreground(colorWhite)
	StyleSuccess   = lipgloss.NewStyle().Foreground(colorGreen)
	StyleWarning   = lipgloss.NewStyle().Foreground(colorYellow)
)

var styleIconSpinner = StyleHighlight

// iconLine renders "<styled icon> <message>" to stdout.
func iconLine(style lipgloss.Style, icon, format string, args ...any) {
	fmt.Println(style.Render(icon) + " " + fmt.Sprintf(format, args...))
}

func printSuccess(format string, args ...any) {
	iconLine(StyleSuccess, "✓", format, args...)
}

func printError(format string, args ...any) {
	iconLine(lipgloss.NewStyle().Foreground(colorRed), "✗", format, args...)
}

func printWarning(format string, args ...any) {
	iconLine(StyleWarning, "!", "%s", StyleWarning.Render(fmt.Sprintf(format, args...)))
}

func printInfo(format string, args ...any) {
	iconLine(lipgloss.NewStyle().Foreground(colorGray), "›", format, args...)
}

// printDetail prints an indented secondary line.
func printDetail(format string, args ...any) {
	fmt.Println("  " + StyleDim.Render(fmt.Sprintf(format, args...)))
}

// printFile prints an output-file line.
func printFile(path string) {
	fmt.Println("  " + StyleDim.Render("→") + " " + StyleValue.Render(path))
}

// printKeyValue prints a gray label column next to its value.
func printKeyValue(key, value string) {
	label := lipgloss.NewStyle().Foreground(colorGray).Width(12)
	fmt.Println(label.Render(key) + " " + StyleValue.Render(value))
}

// printStats prints resolution statistics on a single dim line.
func printStats(packages, lookups, cycles int) {
	line := fmt.Sprintf("%d packages · %d lookups", packages, lookups)
	if cycles > 0 {
		line += fmt.Sprintf(" · %d cycles broken", cycles)
	}
	fmt.Println("  " + StyleDim.Render(line))
}
