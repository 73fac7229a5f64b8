package presenter

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"

	"dubber/internal/stages"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiDim    = "\x1b[2m"
)

// Terminal renders one line per visible change:
//
//	[ 45%] ✔ Transcribing  ✔ Translating  ▶ Generating  · Merging  Generating speech
//
// Updates that leave the rendered line unchanged print nothing.
type Terminal struct {
	mu       sync.Mutex
	w        io.Writer
	colorize bool
	state    UIState
	last     string
}

// NewTerminal renders to w, colouring output when w is a terminal.
func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w, colorize: IsTerminal(w), state: Initial()}
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func (t *Terminal) UpdateStage(name stages.Name, status StageStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	found := false
	for i := range t.state.Stages {
		if t.state.Stages[i].Name == name {
			t.state.Stages[i].Status = status
			found = true
		}
	}
	if !found {
		t.state.Stages = append(t.state.Stages, StageState{Name: name, Status: status})
	}
	t.renderLocked()
}

func (t *Terminal) UpdateProgress(percent int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.Progress = percent
	t.renderLocked()
}

func (t *Terminal) UpdateMessage(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.Message = message
	t.renderLocked()
}

// ApplyState replaces the whole state and renders at most one line.
func (t *Terminal) ApplyState(state UIState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = state
	t.state.Stages = append([]StageState(nil), state.Stages...)
	t.renderLocked()
}

// Reset clears state without printing; the next visible update renders.
func (t *Terminal) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = Initial()
	t.last = ""
}

func (t *Terminal) renderLocked() {
	line := RenderLine(t.state, t.colorize)
	if line == t.last {
		return
	}
	t.last = line
	fmt.Fprintln(t.w, line)
}

// RenderLine formats a UIState as a single status line.
func RenderLine(state UIState, colorize bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%3d%%]", state.Progress)
	for _, st := range state.Stages {
		b.WriteString(" ")
		cell := stageSymbol(st.Status) + " " + st.Name.Label()
		if colorize {
			if color := stageColor(st.Status); color != "" {
				cell = color + cell + ansiReset
			}
		}
		b.WriteString(cell)
		b.WriteString(" ")
	}
	if msg := strings.TrimSpace(state.Message); msg != "" {
		b.WriteString(" ")
		b.WriteString(msg)
	}
	return strings.TrimRight(b.String(), " ")
}

func stageSymbol(status StageStatus) string {
	switch status {
	case StageCompleted:
		return "✔"
	case StageActive:
		return "▶"
	case StageFailed:
		return "✖"
	default:
		return "·"
	}
}

func stageColor(status StageStatus) string {
	switch status {
	case StageCompleted:
		return ansiGreen
	case StageActive:
		return ansiYellow
	case StageFailed:
		return ansiRed
	default:
		return ansiDim
	}
}
