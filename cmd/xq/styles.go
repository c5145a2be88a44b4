package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"charm.land/lipgloss/v2"
	"github.com/midbel/xquery/xdm"
	"github.com/midbel/xquery/xpath"
)

var (
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#e53935")).Bold(true)
	codeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#fb8c00")).Bold(true)
	fileStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#1e88e5")).Bold(true)
	typeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#43a047"))
	infoStyle  = lipgloss.NewStyle().Faint(true)
)

var traceLogger = slog.New(slog.NewTextHandler(os.Stderr, nil))

func printError(err error) {
	var (
		xe *xdm.Error
		se *xpath.StackError
	)
	if errors.As(err, &xe) {
		lipgloss.Fprintln(os.Stderr, codeStyle.Render(xe.Code), errorStyle.Render(err.Error()))
	} else {
		lipgloss.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
	}
	if errors.As(err, &se) {
		for _, f := range se.Frames {
			lipgloss.Fprintln(os.Stderr, infoStyle.Render(fmt.Sprintf("  at %s (%s)", f.Kind, f.Span)))
		}
	}
}
