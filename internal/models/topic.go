package models

import (
	"encoding/json"
	"strings"
)

// Topic is a conversational theme used to vary the wording of questions.
type Topic uint8

const (
	TopicBudget Topic = iota
	TopicPerformance
	TopicFamily
	TopicEfficiency
	TopicReliability
	TopicDriving
	topicCount
)

var topicNames = [topicCount]string{
	TopicBudget:      "discussing_budget",
	TopicPerformance: "discussing_performance",
	TopicFamily:      "discussing_family",
	TopicEfficiency:  "discussing_efficiency",
	TopicReliability: "discussing_reliability",
	TopicDriving:     "discussing_driving",
}

func (t Topic) String() string {
	if t >= topicCount {
		return "unknown"
	}
	return topicNames[t]
}

// TopicFlags is a fixed set of Topic bits. The zero value has no topics.
type TopicFlags uint16

// Has reports whether t is set.
func (f TopicFlags) Has(t Topic) bool {
	return t < topicCount && f&(1<<t) != 0
}

// With returns f with t set.
func (f TopicFlags) With(t Topic) TopicFlags {
	if t >= topicCount {
		return f
	}
	return f | 1<<t
}

// Merge returns the union of f and other.
func (f TopicFlags) Merge(other TopicFlags) TopicFlags {
	return f | other
}

// Topics lists the set topics in declaration order.
func (f TopicFlags) Topics() []Topic {
	var out []Topic
	for t := Topic(0); t < topicCount; t++ {
		if f.Has(t) {
			out = append(out, t)
		}
	}
	return out
}

// MarshalJSON encodes the flags as a list of topic names.
func (f TopicFlags) MarshalJSON() ([]byte, error) {
	names := make([]string, 0, topicCount)
	for _, t := range f.Topics() {
		names = append(names, t.String())
	}
	return json.Marshal(names)
}

// UnmarshalJSON accepts a list of topic names. Unknown names are ignored so
// that contexts written by a newer release still load.
func (f *TopicFlags) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	var flags TopicFlags
	for _, n := range names {
		for t := Topic(0); t < topicCount; t++ {
			if strings.EqualFold(topicNames[t], n) {
				flags = flags.With(t)
			}
		}
	}
	*f = flags
	return nil
}
