package main

import (
	"fmt"
	"io"
	"strings"

	"dubber/internal/presenter"
	"dubber/internal/services/dubbing"
	"dubber/internal/shell"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 12
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func renderField(label, value string) string {
	return fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", value)
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

// jobStatusKind maps a backend status onto the status line colour.
func jobStatusKind(status string) statusKind {
	switch status {
	case dubbing.StatusCompleted:
		return statusOK
	case dubbing.StatusCancelled:
		return statusWarn
	case dubbing.StatusFailed:
		return statusError
	default:
		return statusInfo
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func viewTitle(v shell.View) string {
	switch v {
	case shell.Upload:
		return "Upload"
	case shell.Processing:
		return "Processing"
	case shell.Results:
		return "Results"
	default:
		return v.String()
	}
}

// sectionViewer prints a header whenever the shell switches views.
func sectionViewer(w io.Writer, colorize bool) shell.Viewer {
	return shell.ViewerFunc(func(v shell.View) {
		for _, line := range renderSectionHeader(viewTitle(v), colorize) {
			fmt.Fprintln(w, line)
		}
	})
}

func shouldColorize(writer io.Writer) bool {
	return presenter.IsTerminal(writer)
}
