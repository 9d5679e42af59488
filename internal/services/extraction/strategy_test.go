package extraction

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRoundRobinStrategy(t *testing.T) {
	t.Parallel()

	next := RoundRobinStrategy([]string{"fast", "smart"})
	var got []string
	for i := 0; i < 5; i++ {
		got = append(got, next())
	}
	if diff := cmp.Diff([]string{"fast", "smart", "fast", "smart", "fast"}, got); diff != "" {
		t.Errorf("RoundRobin mismatch (-want +got):\n%s", diff)
	}
}

func TestRandomStrategy_StaysInLabels(t *testing.T) {
	t.Parallel()

	labels := []string{"a", "b", "c"}
	next := RandomStrategy(labels)
	for i := 0; i < 50; i++ {
		label := next()
		if label != "a" && label != "b" && label != "c" {
			t.Fatalf("Unexpected label %q", label)
		}
	}
}

func TestNewStrategySelector(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		strategy string
		labels   []string
		want     string
	}{
		{"fixed uses first label", "fixed", []string{"default", "smart"}, "default"},
		{"unknown falls back to fixed", "weird", []string{"smart"}, "smart"},
		{"round robin starts at first", "round_robin", []string{"x", "y"}, "x"},
		{"no labels", "random", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := NewStrategySelector(tt.strategy, tt.labels)(); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}
