package extraction

import (
	"math/rand/v2"
	"sync/atomic"
)

// StrategySelector picks the model label a new session will use for its
// whole lifetime.
type StrategySelector func() string

// FixedStrategy always picks label.
func FixedStrategy(label string) StrategySelector {
	return func() string { return label }
}

// RoundRobinStrategy cycles through labels in order.
func RoundRobinStrategy(labels []string) StrategySelector {
	if len(labels) == 0 {
		return FixedStrategy("")
	}
	var next atomic.Uint64
	return func() string {
		n := next.Add(1) - 1
		return labels[n%uint64(len(labels))]
	}
}

// RandomStrategy picks uniformly among labels.
func RandomStrategy(labels []string) StrategySelector {
	if len(labels) == 0 {
		return FixedStrategy("")
	}
	return func() string {
		return labels[rand.IntN(len(labels))]
	}
}

// NewStrategySelector builds the selector named by strategy ("fixed",
// "round_robin" or "random"). Unknown names fall back to fixed on the first
// label.
func NewStrategySelector(strategy string, labels []string) StrategySelector {
	switch strategy {
	case "round_robin":
		return RoundRobinStrategy(labels)
	case "random":
		return RandomStrategy(labels)
	}
	if len(labels) == 0 {
		return FixedStrategy("")
	}
	return FixedStrategy(labels[0])
}
