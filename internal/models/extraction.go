package models

import "strings"

// Intent is the extractor's classification of how a turn combines with
// prior state.
type Intent string

const (
	IntentNewQuery        Intent = "new_query"
	IntentRefineCriteria  Intent = "refine_criteria"
	IntentAddCriteria     Intent = "add_criteria"
	IntentReplaceCriteria Intent = "replace_criteria"
	IntentClarify         Intent = "clarify"
)

// ParseIntent maps an intent name onto an Intent. Anything unrecognised is
// treated as a new query.
func ParseIntent(s string) Intent {
	switch i := Intent(strings.ToLower(strings.TrimSpace(s))); i {
	case IntentNewQuery, IntentRefineCriteria, IntentAddCriteria, IntentReplaceCriteria, IntentClarify:
		return i
	}
	return IntentNewQuery
}

// ExtractionResult is the normalised output of one extractor call
type ExtractionResult struct {
	Criteria            Criteria   `json:"criteria"`
	Negated             Rejections `json:"negated"`
	Intent              Intent     `json:"intent"`
	ClarificationNeeded bool       `json:"clarification_needed"`
	// ClarificationNeededFor is nil when the extractor did not send the
	// list and empty (non-nil) when it explicitly sent [].
	ClarificationNeededFor []string `json:"clarification_needed_for"`
	IsOffTopic             bool     `json:"is_off_topic"`
	OffTopicResponse       string   `json:"off_topic_response,omitempty"`
	RetrieverSuggestion    string   `json:"retriever_suggestion,omitempty"`
	TextPrompt             string   `json:"text_prompt"`
	// Degraded marks a result synthesised because the payload was unusable.
	Degraded bool `json:"degraded"`
}

// DegradedResult is the minimal well-formed result for an unusable payload.
func DegradedResult(utterance string) ExtractionResult {
	return ExtractionResult{Intent: IntentNewQuery, TextPrompt: utterance, Degraded: true}
}

// ExplicitlyNoClarification reports whether the extractor sent an empty
// clarification list.
func (r ExtractionResult) ExplicitlyNoClarification() bool {
	return r.ClarificationNeededFor != nil && len(r.ClarificationNeededFor) == 0
}
