package extraction

import (
	"strings"
	"unicode"

	"github.com/benvon/smart-autotrader/internal/models"
)

// negationWindow is how many tokens after a cue may still be negated.
const negationWindow = 6

var negationCues = map[string]bool{
	"no": true, "not": true, "don't": true, "dont": true, "without": true, "except": true,
	"avoid": true, "never": true, "hate": true, "exclude": true, "excluding": true, "nothing": true,
}

// acceptanceWords turn a following cue into acceptance: "don't mind",
// "not fussy about", "never say no to", "no problem with".
var acceptanceWords = map[string]bool{
	"mind": true, "fussy": true, "fussed": true, "bothered": true, "picky": true, "sure": true,
	"against": true, "opposed": true, "problem": true, "issue": true, "preference": true,
	"say": true, "object": true, "rule": true,
}

// cueFillers may sit between a cue and an acceptance word ("don't really mind").
var cueFillers = map[string]bool{
	"really": true, "too": true, "that": true, "very": true, "overly": true, "particularly": true, "much": true,
}

// clauseBreaks end a negation window.
var clauseBreaks = map[string]bool{
	"but": true, ".": true, ",": true, ";": true, "!": true, "?": true,
}

// vocabulary is the set of catalog terms found in an utterance.
type vocabulary struct {
	makes         []string
	vehicleTypes  []models.VehicleType
	fuelTypes     []models.FuelType
	transmissions []models.Transmission
}

func (v *vocabulary) add(token string) {
	if m, ok := models.ParseMake(token); ok {
		v.makes = models.AppendUnique(v.makes, m)
		return
	}
	if f, ok := models.ParseFuelType(token); ok {
		v.fuelTypes = models.AppendUnique(v.fuelTypes, f)
		return
	}
	if t, ok := models.ParseTransmission(token); ok {
		v.transmissions = models.AppendUnique(v.transmissions, t)
		return
	}
	if vt, ok := models.ParseVehicleType(token); ok {
		v.vehicleTypes = models.AppendUnique(v.vehicleTypes, vt)
		return
	}
	if vt, ok := models.ParseVehicleType(strings.TrimSuffix(token, "s")); ok {
		v.vehicleTypes = models.AppendUnique(v.vehicleTypes, vt)
	}
}

// tokenize lowercases s and splits it into words and clause punctuation.
func tokenize(s string) []string {
	s = strings.ToLower(strings.ReplaceAll(s, "’", "'"))
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '\'':
			cur.WriteRune(r)
		case strings.ContainsRune(".,;!?", r):
			flush()
			tokens = append(tokens, string(r))
		default:
			flush()
		}
	}
	flush()
	return tokens
}

// scan returns the terms mentioned anywhere in the utterance and those
// falling inside a negation window.
func scan(utterance string) (mentioned, negated vocabulary) {
	tokens := tokenize(utterance)
	remaining := 0
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if tok == "anything" && i+1 < len(tokens) && tokens[i+1] == "but" {
			remaining = negationWindow
			i++
			continue
		}
		if negationCues[tok] {
			if !acceptsAfter(tokens, i) && !(tok == "no" && i > 0 && (tokens[i-1] == "say" || tokens[i-1] == "saying")) {
				remaining = negationWindow
			}
			continue
		}
		if clauseBreaks[tok] {
			remaining = 0
			continue
		}
		mentioned.add(tok)
		if remaining > 0 {
			negated.add(tok)
			remaining--
		}
	}
	return mentioned, negated
}

// acceptsAfter reports whether the cue at tokens[i] introduces acceptance
// rather than exclusion.
func acceptsAfter(tokens []string, i int) bool {
	for j := i + 1; j < len(tokens) && j <= i+3; j++ {
		if acceptanceWords[tokens[j]] {
			return true
		}
		if !cueFillers[tokens[j]] {
			return false
		}
	}
	return false
}

// DetectNegations returns the catalog values the utterance explicitly
// excludes, e.g. "no toyota or honda" or "I want an SUV, but not diesel".
func DetectNegations(utterance string) models.Rejections {
	_, neg := scan(utterance)
	r := models.Rejections{
		Makes:        neg.makes,
		VehicleTypes: neg.vehicleTypes,
		FuelTypes:    neg.fuelTypes,
	}
	if len(neg.transmissions) > 0 {
		t := neg.transmissions[0]
		r.Transmission = &t
	}
	return r
}

// ApplyNegations folds negations found in the utterance into r and removes
// negated values from its positives. Makes are additionally limited to those
// actually named in the utterance, since models tend to carry earlier makes
// over into a negation turn. Any negation turns a new query into a
// refinement.
func ApplyNegations(r models.ExtractionResult, utterance string) models.ExtractionResult {
	mentioned, neg := scan(utterance)
	if len(neg.makes)+len(neg.vehicleTypes)+len(neg.fuelTypes)+len(neg.transmissions) == 0 &&
		r.Negated.IsEmpty() {
		return r
	}

	out := r
	out.Criteria = r.Criteria.Clone()
	out.Negated = r.Negated.Clone()

	out.Negated.Makes = models.AppendUnique(out.Negated.Makes, neg.makes...)
	out.Negated.VehicleTypes = models.AppendUnique(out.Negated.VehicleTypes, neg.vehicleTypes...)
	out.Negated.FuelTypes = models.AppendUnique(out.Negated.FuelTypes, neg.fuelTypes...)
	if out.Negated.Transmission == nil && len(neg.transmissions) > 0 {
		t := neg.transmissions[0]
		out.Negated.Transmission = &t
	}

	if len(out.Negated.Makes) > 0 {
		out.Criteria.Makes = models.Subtract(models.Intersect(out.Criteria.Makes, mentioned.makes), out.Negated.Makes)
	}
	out.Criteria.VehicleTypes = models.Subtract(out.Criteria.VehicleTypes, out.Negated.VehicleTypes)
	out.Criteria.FuelTypes = models.Subtract(out.Criteria.FuelTypes, out.Negated.FuelTypes)
	out.Criteria.Features = models.Subtract(out.Criteria.Features, out.Negated.Features)
	if out.Negated.Transmission != nil && out.Criteria.Transmission != nil &&
		*out.Negated.Transmission == *out.Criteria.Transmission {
		out.Criteria.Transmission = nil
	}

	if out.Intent == models.IntentNewQuery {
		out.Intent = models.IntentRefineCriteria
	}
	return out
}
