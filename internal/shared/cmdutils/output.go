package cmdutils

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

const Logo = "⚡"

var (
	green = color.New(color.FgGreen)
	red   = color.New(color.FgRed)
	gray  = color.New(color.FgHiBlack)
	cyan  = color.New(color.FgCyan, color.Bold)
)

// Mark renders a check or a cross.
func Mark(ok bool) string {
	if ok {
		return green.Sprint("✓")
	}
	return red.Sprint("✗")
}

// TokenHint shows enough of a secret to recognise it.
func TokenHint(s string) string {
	if s == "" {
		return gray.Sprint("(not configured)")
	}
	if len(s) > 10 {
		return s[:10] + "..."
	}
	return s
}

// Dim renders s in gray.
func Dim(s string) string { return gray.Sprint(s) }

// Heading prints a bold title line prefixed with the logo.
func Heading(w io.Writer, title string) {
	fmt.Fprintf(w, "%s %s\n\n", Logo, cyan.Sprint(title))
}

// Row prints one aligned "label: value" line.
func Row(w io.Writer, label, value string) {
	fmt.Fprintf(w, "  %-12s %s\n", label+":", value)
}

// Rule prints a horizontal separator n cells wide.
func Rule(w io.Writer, n int) {
	fmt.Fprintln(w, strings.Repeat("-", n))
}
