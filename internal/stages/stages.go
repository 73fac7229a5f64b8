package stages

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Name identifies a pipeline stage.
type Name string

const (
	Transcribing Name = "transcribing"
	Translating  Name = "translating"
	Generating   Name = "generating"
	Merging      Name = "merging"
)

const (
	MinProgress = 0
	MaxProgress = 100
)

// Threshold pairs a stage with the lowest progress value that selects it.
type Threshold struct {
	Stage Name
	From  int
}

// Registry maps progress percentages onto an ordered stage table.
type Registry struct {
	table []Threshold
	index map[Name]int
}

// Default is the registry used by the dubbing client.
var Default = MustRegistry(
	Threshold{Stage: Transcribing, From: 0},
	Threshold{Stage: Translating, From: 30},
	Threshold{Stage: Generating, From: 50},
	Threshold{Stage: Merging, From: 70},
)

// NewRegistry validates the threshold table. The first threshold must be 0 and
// thresholds must be strictly increasing so every progress value in range maps
// to exactly one stage.
func NewRegistry(thresholds ...Threshold) (*Registry, error) {
	if len(thresholds) == 0 {
		return nil, errors.New("stage registry: at least one stage required")
	}
	if thresholds[0].From != MinProgress {
		return nil, fmt.Errorf("stage registry: first threshold must be %d, got %d", MinProgress, thresholds[0].From)
	}
	index := make(map[Name]int, len(thresholds))
	for i, th := range thresholds {
		name := Name(strings.TrimSpace(string(th.Stage)))
		if name == "" {
			return nil, fmt.Errorf("stage registry: stage %d has no name", i)
		}
		if _, dup := index[name]; dup {
			return nil, fmt.Errorf("stage registry: duplicate stage %q", name)
		}
		if th.From > MaxProgress {
			return nil, fmt.Errorf("stage registry: threshold for %q exceeds %d", name, MaxProgress)
		}
		if i > 0 && th.From <= thresholds[i-1].From {
			return nil, fmt.Errorf("stage registry: threshold for %q (%d) must be greater than %d", name, th.From, thresholds[i-1].From)
		}
		index[name] = i
	}
	table := make([]Threshold, len(thresholds))
	copy(table, thresholds)
	return &Registry{table: table, index: index}, nil
}

// MustRegistry is NewRegistry for static tables.
func MustRegistry(thresholds ...Threshold) *Registry {
	r, err := NewRegistry(thresholds...)
	if err != nil {
		panic(err)
	}
	return r
}

// For returns the stage with the largest threshold not above progress.
// Progress outside [0,100] is clamped first.
func (r *Registry) For(progress int) Name {
	progress = Clamp(progress)
	for i := len(r.table) - 1; i >= 0; i-- {
		if progress >= r.table[i].From {
			return r.table[i].Stage
		}
	}
	return r.table[0].Stage
}

// All returns the stages in pipeline order.
func (r *Registry) All() []Name {
	names := make([]Name, len(r.table))
	for i, th := range r.table {
		names[i] = th.Stage
	}
	return names
}

// Thresholds returns a copy of the threshold table.
func (r *Registry) Thresholds() []Threshold {
	out := make([]Threshold, len(r.table))
	copy(out, r.table)
	return out
}

// Index reports the pipeline position of name, or -1 when unknown.
func (r *Registry) Index(name Name) int {
	if i, ok := r.index[name]; ok {
		return i
	}
	return -1
}

// For maps progress using the Default registry.
func For(progress int) Name {
	return Default.For(progress)
}

// All lists the Default registry stages in order.
func All() []Name {
	return Default.All()
}

// Clamp bounds progress to [0,100].
func Clamp(progress int) int {
	if progress < MinProgress {
		return MinProgress
	}
	if progress > MaxProgress {
		return MaxProgress
	}
	return progress
}

// Label returns the display form of a stage name ("Transcribing"). A
// cases.Caser is not safe for concurrent use, so each call builds its own.
func (n Name) Label() string {
	return cases.Title(language.English).String(string(n))
}

func (n Name) String() string {
	return string(n)
}
