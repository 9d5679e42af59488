// Package clarify decides whether a turn has enough criteria to search and,
// when it does not, which questions to ask.
package clarify

import (
	"strings"

	"github.com/benvon/smart-autotrader/internal/models"
)

// State is the outcome of the readiness check for one turn.
type State string

const (
	NeedsMoreInfo State = "NEEDS_MORE_INFO"
	ReadyToSearch State = "READY_TO_SEARCH"
)

// StuckMessage replaces a clarification question that would repeat the
// previous one word for word.
const StuckMessage = "I seem to be stuck, please rephrase with specific details"

// MissingThreshold is the weighted missing score at which clarification is
// required.
const MissingThreshold = 3.0

// MaxQuestions bounds the questions asked in a single turn.
const MaxQuestions = 3

// Reasons reported by NeedsClarification.
const (
	ReasonClarifyIntent      = "clarify_intent"
	ReasonExtractorDeclined  = "extractor_declined"
	ReasonMinimalSearch      = "minimal_search"
	ReasonMissingCriteria    = "missing_criteria"
	ReasonSufficientCriteria = "sufficient_criteria"
)

var hardFields = []models.Field{
	models.FieldPrice, models.FieldVehicleType, models.FieldMakes,
	models.FieldYear, models.FieldMileage, models.FieldFuelType,
}

var softFields = []models.Field{
	models.FieldTransmission, models.FieldEngineSize, models.FieldHorsepower,
}

// MissingScore weighs the unset criteria: one point for each unset core
// field and half a point for each unset soft field.
func MissingScore(c models.Criteria) float64 {
	var score float64
	for _, f := range hardFields {
		if !c.Has(f) {
			score++
		}
	}
	for _, f := range softFields {
		if !c.Has(f) {
			score += 0.5
		}
	}
	return score
}

// NeedsClarification applies the readiness rules in precedence order. An
// explicit clarify intent always wins, even over an explicit empty
// ClarificationNeededFor list.
func NeedsClarification(c models.Criteria, r models.ExtractionResult) (bool, string) {
	switch {
	case r.Intent == models.IntentClarify:
		return true, ReasonClarifyIntent
	case r.ExplicitlyNoClarification():
		return false, ReasonExtractorDeclined
	case c.Has(models.FieldVehicleType) && (c.HasPrice() || c.Has(models.FieldMakes)):
		return false, ReasonMinimalSearch
	case MissingScore(c) >= MissingThreshold:
		return true, ReasonMissingCriteria
	default:
		return false, ReasonSufficientCriteria
	}
}

// Question is one clarification question about a field.
type Question struct {
	Field models.Field `json:"field"`
	Text  string       `json:"text"`
}

// Decision is the policy outcome for one turn.
type Decision struct {
	State        State
	Message      string
	Questions    []Question
	Fields       []models.Field
	LoopDetected bool
	Reason       string
}

// Policy turns a reconciled context into a Decision.
type Policy struct {
	catalog *Catalog
}

// NewPolicy creates a policy. A nil catalog uses the built-in wording.
func NewPolicy(catalog *Catalog) *Policy {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Policy{catalog: catalog}
}

// Decide evaluates the reconciled context for this turn. It never mutates
// cc; the caller records Message as the new LastQuestionAskedByAI.
func (p *Policy) Decide(cc *models.ConversationContext, r models.ExtractionResult) Decision {
	need, reason := NeedsClarification(cc.CurrentParameters, r)
	if !need {
		return Decision{State: ReadyToSearch, Reason: reason}
	}

	questions := p.Questions(cc.CurrentParameters, cc.TopicContext, r.ClarificationNeededFor)
	d := Decision{
		State:     NeedsMoreInfo,
		Message:   compose(questions),
		Questions: questions,
		Fields:    fieldsOf(questions),
		Reason:    reason,
	}
	if d.Message == cc.LastQuestionAskedByAI {
		d.Message = StuckMessage
		d.LoopDetected = true
	}
	return d
}

// Questions picks up to MaxQuestions questions in priority order: vehicle
// type, then price (or makes when price is known), then any remaining core
// field, then soft fields the conversation makes relevant. When every field
// is already set the extractor's needFor list is used, and failing that a
// generic question.
func (p *Policy) Questions(c models.Criteria, flags models.TopicFlags, needFor []string) []Question {
	fields := priorityFields(c, flags)
	if len(fields) == 0 {
		fields = models.ParseFields(needFor)
	}
	if len(fields) > MaxQuestions {
		fields = fields[:MaxQuestions]
	}
	if len(fields) == 0 {
		return []Question{{Text: p.catalog.Generic}}
	}

	out := make([]Question, 0, len(fields))
	for _, f := range fields {
		out = append(out, Question{Field: f, Text: p.catalog.Question(f, flags)})
	}
	return out
}

func priorityFields(c models.Criteria, flags models.TopicFlags) []models.Field {
	var fields []models.Field
	ask := func(f models.Field) {
		if !c.Has(f) {
			fields = models.AppendUnique(fields, f)
		}
	}

	ask(models.FieldVehicleType)
	if !c.HasPrice() {
		ask(models.FieldPrice)
	} else {
		ask(models.FieldMakes)
	}
	for _, f := range []models.Field{models.FieldYear, models.FieldFuelType, models.FieldMakes, models.FieldPrice, models.FieldMileage} {
		ask(f)
	}

	performance := flags.Has(models.TopicPerformance)
	if performance || hasLargeBody(c) {
		ask(models.FieldEngineSize)
	}
	if performance {
		ask(models.FieldHorsepower)
	}
	if flags.Has(models.TopicDriving) {
		ask(models.FieldTransmission)
	}
	return fields
}

func hasLargeBody(c models.Criteria) bool {
	for _, vt := range []models.VehicleType{models.VehicleTypeSUV, models.VehicleTypeTruck, models.VehicleTypePickup} {
		if models.ContainsValue(c.VehicleTypes, vt) {
			return true
		}
	}
	return false
}

func compose(questions []Question) string {
	texts := make([]string, len(questions))
	for i, q := range questions {
		texts[i] = q.Text
	}
	return strings.Join(texts, " ")
}

func fieldsOf(questions []Question) []models.Field {
	var out []models.Field
	for _, q := range questions {
		if q.Field != "" {
			out = append(out, q.Field)
		}
	}
	return out
}
