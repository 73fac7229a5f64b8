package presenter

import (
	"sync"

	"dubber/internal/stages"
)

// Presenter renders stage indicators, progress, and the status message.
// Implementations must be idempotent: applying the same value twice has no
// visible effect.
type Presenter interface {
	UpdateStage(name stages.Name, status StageStatus)
	UpdateProgress(percent int)
	UpdateMessage(message string)
	// Reset returns every indicator to idle, progress to zero, and clears
	// the message.
	Reset()
}

// StateApplier is implemented by presenters that render a whole UIState
// at once rather than field by field.
type StateApplier interface {
	ApplyState(state UIState)
}

// Apply pushes a full UIState through p.
func Apply(p Presenter, state UIState) {
	if p == nil {
		return
	}
	if sa, ok := p.(StateApplier); ok {
		sa.ApplyState(state)
		return
	}
	for _, st := range state.Stages {
		p.UpdateStage(st.Name, st.Status)
	}
	p.UpdateProgress(state.Progress)
	p.UpdateMessage(state.Message)
}

// Nop discards all updates.
type Nop struct{}

func (Nop) UpdateStage(stages.Name, StageStatus) {}
func (Nop) UpdateProgress(int)                   {}
func (Nop) UpdateMessage(string)                 {}
func (Nop) Reset()                               {}

// Memory keeps the latest UIState in memory. It backs tests and the
// non-interactive CLI paths.
type Memory struct {
	mu      sync.Mutex
	state   UIState
	changes int
	resets  int
}

// NewMemory returns a Memory presenter in the initial state.
func NewMemory() *Memory {
	return &Memory{state: Initial()}
}

func (m *Memory) UpdateStage(name stages.Name, status StageStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.state.Stages {
		if m.state.Stages[i].Name == name {
			if m.state.Stages[i].Status != status {
				m.state.Stages[i].Status = status
				m.changes++
			}
			return
		}
	}
	m.state.Stages = append(m.state.Stages, StageState{Name: name, Status: status})
	m.changes++
}

func (m *Memory) UpdateProgress(percent int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Progress != percent {
		m.state.Progress = percent
		m.changes++
	}
}

func (m *Memory) UpdateMessage(message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Message != message {
		m.state.Message = message
		m.changes++
	}
}

func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets++
	if !m.state.Equal(Initial()) {
		m.state = Initial()
		m.changes++
	}
}

// State returns a copy of the current state.
func (m *Memory) State() UIState {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.state
	out.Stages = append([]StageState(nil), m.state.Stages...)
	return out
}

// Changes counts updates that altered the state.
func (m *Memory) Changes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.changes
}

// Resets counts Reset calls.
func (m *Memory) Resets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resets
}
