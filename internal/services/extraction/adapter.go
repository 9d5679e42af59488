package extraction

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/benvon/smart-autotrader/internal/models"
	"github.com/benvon/smart-autotrader/internal/validation"
)

// payload is the extractor's flat key/value object. Each key is decoded on
// its own so one malformed field never spoils the rest.
type payload map[string]json.RawMessage

// Adapt normalises a raw extractor payload into an ExtractionResult. It never
// fails: an unusable payload yields models.DegradedResult(utterance).
func Adapt(raw []byte, utterance string) models.ExtractionResult {
	var p payload
	if err := decodeLenient(raw, &p); err != nil || p == nil {
		return models.DegradedResult(utterance)
	}

	r := models.ExtractionResult{
		Intent:              models.ParseIntent(p.str("intent")),
		ClarificationNeeded: p.boolean("clarificationNeeded", "clarification_needed"),
		IsOffTopic:          p.boolean("isOffTopic", "is_off_topic"),
		OffTopicResponse:    p.str("offTopicResponse", "off_topic_response"),
		RetrieverSuggestion: p.str("retrieverSuggestion", "retriever_suggestion"),
		TextPrompt:          utterance,
	}
	if fields, ok := p.stringList("clarificationNeededFor", "clarification_needed_for"); ok {
		r.ClarificationNeededFor = fields
		if r.ClarificationNeededFor == nil {
			r.ClarificationNeededFor = []string{}
		}
	}

	c := &r.Criteria
	c.MinPrice = p.float(validation.PriceTag, "minPrice")
	c.MaxPrice = p.float(validation.PriceTag, "maxPrice")
	c.MinYear = p.integer(validation.YearTag, "minYear")
	c.MaxYear = p.integer(validation.YearTag, "maxYear")
	c.MaxMileage = p.integer(validation.MileageTag, "maxMileage")
	c.MinEngineSize = p.float(validation.EngineSizeTag, "minEngineSize")
	c.MaxEngineSize = p.float(validation.EngineSizeTag, "maxEngineSize")
	c.MinHorsepower = p.integer(validation.HorsepowerTag, "minHorsepower")
	c.MaxHorsepower = p.integer(validation.HorsepowerTag, "maxHorsepower")
	c.MinPrice, c.MaxPrice = ordered(c.MinPrice, c.MaxPrice)
	c.MinYear, c.MaxYear = ordered(c.MinYear, c.MaxYear)
	c.MinEngineSize, c.MaxEngineSize = ordered(c.MinEngineSize, c.MaxEngineSize)
	c.MinHorsepower, c.MaxHorsepower = ordered(c.MinHorsepower, c.MaxHorsepower)

	if t, ok := models.ParseTransmission(p.str("transmission")); ok {
		c.Transmission = &t
	}
	c.Makes = p.makes("preferredMakes", "manufacturers")
	c.VehicleTypes = parseAll(p, models.ParseVehicleType, "preferredVehicleTypes", "bodyType")
	c.FuelTypes = parseAll(p, models.ParseFuelType, "preferredFuelTypes", "fuelType")
	c.Features = p.features("desiredFeatures")

	n := &r.Negated
	n.Makes = p.makes("explicitly_negated_makes")
	n.VehicleTypes = parseAll(p, models.ParseVehicleType, "explicitly_negated_vehicle_types")
	n.FuelTypes = parseAll(p, models.ParseFuelType, "explicitly_negated_fuel_types")
	n.Features = p.features("explicitly_negated_features")
	n.Transmission = p.negatedTransmission("explicitly_negated_transmission")

	return r
}

// lookup returns the first key present with a non-null value.
func (p payload) lookup(keys ...string) (json.RawMessage, bool) {
	for _, k := range keys {
		raw, ok := p[k]
		if !ok || strings.TrimSpace(string(raw)) == "null" {
			continue
		}
		return raw, true
	}
	return nil, false
}

func (p payload) str(keys ...string) string {
	raw, ok := p.lookup(keys...)
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func (p payload) boolean(keys ...string) bool {
	raw, ok := p.lookup(keys...)
	if !ok {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return false
	}
	return b
}

// number only accepts JSON numbers; "cheap" or "20k" are unset, never zero.
func (p payload) number(keys ...string) (float64, bool) {
	raw, ok := p.lookup(keys...)
	if !ok {
		return 0, false
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

func (p payload) float(tag string, keys ...string) *float64 {
	v, ok := p.number(keys...)
	if !ok || !validation.InRange(v, tag) {
		return nil
	}
	return &v
}

func (p payload) integer(tag string, keys ...string) *int {
	v, ok := p.number(keys...)
	if !ok || v != math.Trunc(v) || !validation.InRange(v, tag) {
		return nil
	}
	i := int(v)
	return &i
}

// stringList decodes a list of strings. Non-string members are skipped; a
// value that is not a list reports ok=false.
func (p payload) stringList(keys ...string) ([]string, bool) {
	raw, ok := p.lookup(keys...)
	if !ok {
		return nil, false
	}
	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out, true
}

func (p payload) makes(keys ...string) []string {
	names, _ := p.stringList(keys...)
	var out []string
	for _, n := range names {
		if m, ok := models.ParseMake(n); ok {
			out = models.AppendUnique(out, m)
		}
	}
	return out
}

func (p payload) features(keys ...string) []string {
	names, _ := p.stringList(keys...)
	var out []string
	for _, n := range names {
		out = models.AppendUnique(out, n)
	}
	return out
}

// negatedTransmission accepts a single name or a list; the first valid
// entry wins.
func (p payload) negatedTransmission(key string) *models.Transmission {
	if t, ok := models.ParseTransmission(p.str(key)); ok {
		return &t
	}
	names, _ := p.stringList(key)
	for _, n := range names {
		if t, ok := models.ParseTransmission(n); ok {
			return &t
		}
	}
	return nil
}

func parseAll[T ~string](p payload, parse func(string) (T, bool), keys ...string) []T {
	names, _ := p.stringList(keys...)
	var out []T
	for _, n := range names {
		if v, ok := parse(n); ok {
			out = models.AppendUnique(out, v)
		}
	}
	return out
}

func ordered[T int | float64](lo, hi *T) (*T, *T) {
	if lo != nil && hi != nil && *lo > *hi {
		return hi, lo
	}
	return lo, hi
}
