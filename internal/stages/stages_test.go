package stages

import (
	"sync"
	"testing"
)

func TestForBoundaries(t *testing.T) {
	tests := []struct {
		progress int
		want     Name
	}{
		{0, Transcribing},
		{29, Transcribing},
		{30, Translating},
		{49, Translating},
		{50, Generating},
		{69, Generating},
		{70, Merging},
		{100, Merging},
	}
	for _, tt := range tests {
		if got := For(tt.progress); got != tt.want {
			t.Errorf("For(%d) = %q, want %q", tt.progress, got, tt.want)
		}
	}
}

func TestForClampsOutOfRange(t *testing.T) {
	if got := For(-15); got != Transcribing {
		t.Fatalf("For(-15) = %q, want %q", got, Transcribing)
	}
	if got := For(250); got != Merging {
		t.Fatalf("For(250) = %q, want %q", got, Merging)
	}
}

func TestForIsTotalAndMonotonic(t *testing.T) {
	prev := -1
	for p := MinProgress; p <= MaxProgress; p++ {
		idx := Default.Index(For(p))
		if idx < 0 {
			t.Fatalf("For(%d) returned unknown stage", p)
		}
		if idx < prev {
			t.Fatalf("stage index regressed at progress %d: %d < %d", p, idx, prev)
		}
		prev = idx
	}
}

func TestNewRegistryRejectsBadTables(t *testing.T) {
	tests := []struct {
		name  string
		table []Threshold
	}{
		{"empty", nil},
		{"first not zero", []Threshold{{Transcribing, 10}}},
		{"not increasing", []Threshold{{Transcribing, 0}, {Translating, 30}, {Generating, 30}}},
		{"duplicate", []Threshold{{Transcribing, 0}, {Transcribing, 40}}},
		{"above max", []Threshold{{Transcribing, 0}, {Merging, 101}}},
		{"unnamed", []Threshold{{"", 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRegistry(tt.table...); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestCustomRegistryLastMatchWins(t *testing.T) {
	r := MustRegistry(Threshold{"a", 0}, Threshold{"b", 1}, Threshold{"c", 99})
	if got := r.For(0); got != "a" {
		t.Fatalf("For(0) = %q", got)
	}
	if got := r.For(98); got != "b" {
		t.Fatalf("For(98) = %q", got)
	}
	if got := r.For(99); got != "c" {
		t.Fatalf("For(99) = %q", got)
	}
}

func TestAllOrderAndLabel(t *testing.T) {
	all := All()
	want := []Name{Transcribing, Translating, Generating, Merging}
	if len(all) != len(want) {
		t.Fatalf("All() = %v", all)
	}
	for i := range want {
		if all[i] != want[i] {
			t.Fatalf("All()[%d] = %q, want %q", i, all[i], want[i])
		}
	}
	if got := Translating.Label(); got != "Translating" {
		t.Fatalf("Label() = %q", got)
	}
	if Default.Index("unknown") != -1 {
		t.Fatal("expected -1 for unknown stage")
	}
}

func TestLabelConcurrentCallers(t *testing.T) {
	want := map[Name]string{
		Transcribing: "Transcribing",
		Translating:  "Translating",
		Generating:   "Generating",
		Merging:      "Merging",
	}
	var wg sync.WaitGroup
	errs := make(chan string, 64)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				for name, label := range want {
					if got := name.Label(); got != label {
						errs <- string(name) + " -> " + got
						return
					}
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Errorf("Label() mismatch: %s", msg)
	}
}
