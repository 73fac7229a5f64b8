// Package shell routes between the upload, processing, and results views.
// Exactly one view is active at a time.
package shell

import (
	"fmt"
	"sync"

	"dubber/internal/presenter"
)

// View names one top-level screen.
type View string

const (
	Upload     View = "upload"
	Processing View = "processing"
	Results    View = "results"
)

// StartingMessage is shown when processing begins, before any status arrives.
const StartingMessage = "Starting processing..."

// Valid reports whether v is a known view.
func (v View) Valid() bool {
	switch v {
	case Upload, Processing, Results:
		return true
	default:
		return false
	}
}

func (v View) String() string { return string(v) }

// Viewer displays the active view. Implementations decide how (a section
// header in the terminal, nothing at all in tests).
type Viewer interface {
	ShowView(v View)
}

// ViewerFunc adapts a function to Viewer.
type ViewerFunc func(View)

func (f ViewerFunc) ShowView(v View) { f(v) }

// Shell owns the active view and the per-view presenter reset.
type Shell struct {
	mu        sync.Mutex
	presenter presenter.Presenter
	viewer    Viewer
	view      View
}

// New returns a shell showing the upload view. A nil presenter or viewer is
// replaced with a no-op.
func New(p presenter.Presenter, viewer Viewer) *Shell {
	if p == nil {
		p = presenter.Nop{}
	}
	if viewer == nil {
		viewer = ViewerFunc(func(View) {})
	}
	return &Shell{presenter: p, viewer: viewer, view: Upload}
}

// Show activates v. Entering upload clears all per-job presentation;
// entering processing also returns every stage indicator to idle and shows
// the starting message. Showing the active view again re-applies its reset.
func (s *Shell) Show(v View) error {
	if !v.Valid() {
		return fmt.Errorf("shell: unknown view %q", v)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch v {
	case Upload:
		s.presenter.Reset()
	case Processing:
		state := presenter.Initial()
		state.Message = StartingMessage
		s.presenter.Reset()
		presenter.Apply(s.presenter, state)
	}
	s.view = v
	s.viewer.ShowView(v)
	return nil
}

// View returns the active view.
func (s *Shell) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}
