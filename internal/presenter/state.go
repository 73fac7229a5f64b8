package presenter

import "dubber/internal/stages"

// StageStatus is the visual state of one stage indicator.
type StageStatus string

const (
	StageIdle      StageStatus = "idle"
	StageActive    StageStatus = "active"
	StageCompleted StageStatus = "completed"
	StageFailed    StageStatus = "failed"
)

// StageState pairs a stage with its indicator status.
type StageState struct {
	Name   stages.Name
	Status StageStatus
}

// UIState is the presentational projection of a job.
type UIState struct {
	Stages   []StageState
	Progress int
	Message  string
}

// Equal reports whether two states render identically.
func (s UIState) Equal(other UIState) bool {
	if s.Progress != other.Progress || s.Message != other.Message || len(s.Stages) != len(other.Stages) {
		return false
	}
	for i := range s.Stages {
		if s.Stages[i] != other.Stages[i] {
			return false
		}
	}
	return true
}

// StatusOf returns the indicator status for name, or StageIdle if unknown.
func (s UIState) StatusOf(name stages.Name) StageStatus {
	for _, st := range s.Stages {
		if st.Name == name {
			return st.Status
		}
	}
	return StageIdle
}

// Outcome is the coarse lifecycle position of a job as far as rendering is
// concerned.
type Outcome int

const (
	// OutcomeRunning covers pending and running jobs.
	OutcomeRunning Outcome = iota
	// OutcomeCompleted marks every stage completed.
	OutcomeCompleted
	// OutcomeFailed covers failed, cancelled, and timed out jobs.
	OutcomeFailed
)

// Snapshot is the subset of a job that drives rendering.
type Snapshot struct {
	Outcome  Outcome
	Progress int
	Message  string
}

// Initial returns the state every view starts from: all stages idle,
// progress zero, empty message.
func Initial() UIState {
	return InitialWith(stages.Default)
}

// InitialWith is Initial for a custom registry.
func InitialWith(r *stages.Registry) UIState {
	all := r.All()
	state := UIState{Stages: make([]StageState, len(all))}
	for i, name := range all {
		state.Stages[i] = StageState{Name: name, Status: StageIdle}
	}
	return state
}

// Project maps a job snapshot onto the default stage pipeline.
func Project(s Snapshot) UIState {
	return ProjectWith(stages.Default, s)
}

// ProjectWith maps a job snapshot onto r. Stages before the one implied by
// progress are completed; the implied stage is active, or failed when the
// job failed; later stages stay idle. A completed job shows every stage
// completed.
func ProjectWith(r *stages.Registry, s Snapshot) UIState {
	progress := stages.Clamp(s.Progress)
	current := r.Index(r.For(progress))
	all := r.All()
	state := UIState{
		Stages:   make([]StageState, len(all)),
		Progress: progress,
		Message:  s.Message,
	}
	for i, name := range all {
		status := StageIdle
		switch {
		case s.Outcome == OutcomeCompleted:
			status = StageCompleted
		case i < current:
			status = StageCompleted
		case i == current && s.Outcome == OutcomeFailed:
			status = StageFailed
		case i == current:
			status = StageActive
		}
		state.Stages[i] = StageState{Name: name, Status: status}
	}
	return state
}
