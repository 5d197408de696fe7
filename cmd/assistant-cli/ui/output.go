// Package ui provides terminal output helpers for the assistant CLI.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
)

var (
	// Out and Err are the destinations for normal and error output.
	Out io.Writer = os.Stdout
	Err io.Writer = os.Stderr

	verboseFlag bool

	successColor = color.New(color.FgGreen)
	errorColor   = color.New(color.FgRed)
	warningColor = color.New(color.FgYellow)
	infoColor    = color.New(color.FgCyan)
	headerColor  = color.New(color.Bold)
)

// Init applies the color and verbosity flags.
func Init(noColor, verbose bool) {
	verboseFlag = verbose
	if noColor {
		color.NoColor = true
	}
}

// Verbose reports whether verbose output was requested.
func Verbose() bool {
	return verboseFlag
}

// Success displays a success message.
func Success(format string, args ...interface{}) {
	successColor.Fprintf(Out, "✓ %s\n", fmt.Sprintf(format, args...))
}

// Error displays an error message.
func Error(format string, args ...interface{}) {
	errorColor.Fprintf(Err, "✗ %s\n", fmt.Sprintf(format, args...))
}

// Warning displays a warning message.
func Warning(format string, args ...interface{}) {
	warningColor.Fprintf(Out, "⚠ %s\n", fmt.Sprintf(format, args...))
}

// Info displays an informational message.
func Info(format string, args ...interface{}) {
	infoColor.Fprintf(Out, "ℹ %s\n", fmt.Sprintf(format, args...))
}

// Newline prints a newline.
func Newline() {
	fmt.Fprintln(Out)
}

// Section displays a section header.
func Section(title string) {
	headerColor.Fprintf(Out, "\n%s\n", title)
	fmt.Fprintf(Out, "%s\n\n", strings.Repeat("=", len(title)))
}

// KeyValue displays a key-value pair.
func KeyValue(key, value string) {
	fmt.Fprintf(Out, "  %s: %s\n", key, value)
}

// Table displays rows aligned under headers.
func Table(headers []string, rows [][]string) {
	w := tabwriter.NewWriter(Out, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, strings.Join(headers, "\t"))
	separator := make([]string, len(headers))
	for i := range separator {
		separator[i] = strings.Repeat("-", len(headers[i]))
	}
	fmt.Fprintln(w, strings.Join(separator, "\t"))

	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	_ = w.Flush()
}

// Box displays text inside a border, wrapping long lines.
func Box(title, content string) {
	const width = 72

	var lines []string
	for _, para := range strings.Split(content, "\n") {
		lines = append(lines, wrap(para, width)...)
	}

	horizontal := strings.Repeat("─", width+2)
	fmt.Fprintf(Out, "┌%s┐\n", horizontal)
	if title != "" {
		fmt.Fprintf(Out, "│ %s │\n", pad(title, width))
		fmt.Fprintf(Out, "├%s┤\n", horizontal)
	}
	for _, line := range lines {
		fmt.Fprintf(Out, "│ %s │\n", pad(line, width))
	}
	fmt.Fprintf(Out, "└%s┘\n", horizontal)
}

// FormatDuration formats a duration for display.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Round(10 * time.Millisecond).String()
}

func wrap(s string, width int) []string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return []string{""}
	}

	var lines []string
	var current []rune
	for _, w := range words {
		word := []rune(w)
		if len(current) > 0 && len(current)+1+len(word) > width {
			lines = append(lines, string(current))
			current = current[:0]
		}
		if len(current) > 0 {
			current = append(current, ' ')
		}
		current = append(current, word...)
	}
	return append(lines, string(current))
}

func pad(s string, width int) string {
	n := len([]rune(s))
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}
