// Package reconcile merges extraction results into a conversation context.
//
// Every function here is total and pure: inputs are never mutated and the
// same inputs always produce the same output, slice order included.
package reconcile

import (
	"fmt"

	"github.com/benvon/smart-autotrader/internal/models"
)

// Apply merges one turn's extraction result into cc and returns the updated
// copy. Confirmed and rejected values accumulate across turns while
// CurrentParameters is rederived from them according to the turn's intent.
func Apply(cc *models.ConversationContext, r models.ExtractionResult) *models.ConversationContext {
	out := cc.Clone()
	if out == nil {
		out = &models.ConversationContext{}
	}

	if r.Intent == models.IntentClarify {
		out.CurrentParameters = Resync(out)
		return out
	}

	proposed, negated := tieBreak(r.Criteria, r.Negated)
	confirmed, rejected := absorbNegations(out.Confirmed, out.Rejected, negated)
	confirmed, rejected = absorbPositives(confirmed, rejected, proposed, r.Intent)

	out.Confirmed = confirmed
	out.Rejected = rejected
	out.CurrentParameters = Derive(cc.CurrentParameters, confirmed, rejected, r.Intent, proposed)
	return out
}

// Resync recomputes CurrentParameters for an unchanged context.
func Resync(cc *models.ConversationContext) models.Criteria {
	return Derive(cc.CurrentParameters, cc.Confirmed, cc.Rejected, models.IntentRefineCriteria, models.Criteria{})
}

// tieBreak drops positives that the same turn also negates; a value is never
// confirmed and rejected by one turn.
func tieBreak(pos models.Criteria, neg models.Rejections) (models.Criteria, models.Rejections) {
	pos = pos.Clone()
	pos.Makes = models.Subtract(pos.Makes, neg.Makes)
	pos.VehicleTypes = models.Subtract(pos.VehicleTypes, neg.VehicleTypes)
	pos.FuelTypes = models.Subtract(pos.FuelTypes, neg.FuelTypes)
	pos.Features = models.Subtract(pos.Features, neg.Features)
	if sameTransmission(pos.Transmission, neg.Transmission) {
		pos.Transmission = nil
	}
	return pos, neg.Clone()
}

func absorbNegations(conf models.Criteria, rej models.Rejections, neg models.Rejections) (models.Criteria, models.Rejections) {
	conf = conf.Clone()
	rej = rej.Clone()

	conf.Makes, rej.Makes = reject(conf.Makes, rej.Makes, neg.Makes)
	conf.VehicleTypes, rej.VehicleTypes = reject(conf.VehicleTypes, rej.VehicleTypes, neg.VehicleTypes)
	conf.FuelTypes, rej.FuelTypes = reject(conf.FuelTypes, rej.FuelTypes, neg.FuelTypes)
	conf.Features, rej.Features = reject(conf.Features, rej.Features, neg.Features)

	if neg.Transmission != nil {
		if sameTransmission(conf.Transmission, neg.Transmission) {
			conf.Transmission = nil
		}
		t := *neg.Transmission
		rej.Transmission = &t
	}
	return conf, rej
}

func absorbPositives(conf models.Criteria, rej models.Rejections, pos models.Criteria, intent models.Intent) (models.Criteria, models.Rejections) {
	rej.Makes, conf.Makes = reject(rej.Makes, conf.Makes, pos.Makes)
	rej.VehicleTypes, conf.VehicleTypes = reject(rej.VehicleTypes, conf.VehicleTypes, pos.VehicleTypes)
	rej.FuelTypes, conf.FuelTypes = reject(rej.FuelTypes, conf.FuelTypes, pos.FuelTypes)
	rej.Features, conf.Features = reject(rej.Features, conf.Features, pos.Features)

	if pos.Transmission != nil {
		if sameTransmission(rej.Transmission, pos.Transmission) {
			rej.Transmission = nil
		}
	}

	fill := intent == models.IntentAddCriteria
	conf.Transmission = mergeScalar(conf.Transmission, pos.Transmission, fill)

	conf.MinPrice, conf.MaxPrice = mergeRange(conf.MinPrice, conf.MaxPrice, pos.MinPrice, pos.MaxPrice, fill)
	conf.MinYear, conf.MaxYear = mergeRange(conf.MinYear, conf.MaxYear, pos.MinYear, pos.MaxYear, fill)
	conf.MaxMileage = mergeScalar(conf.MaxMileage, pos.MaxMileage, fill)
	conf.MinEngineSize, conf.MaxEngineSize = mergeRange(conf.MinEngineSize, conf.MaxEngineSize, pos.MinEngineSize, pos.MaxEngineSize, fill)
	conf.MinHorsepower, conf.MaxHorsepower = mergeRange(conf.MinHorsepower, conf.MaxHorsepower, pos.MinHorsepower, pos.MaxHorsepower, fill)
	return conf, rej
}

// reject moves every value from the "from" list to the "to" list. It is used
// in both directions: confirmed to rejected for negations and back again for
// explicit positive mentions.
func reject[T ~string](from, to, values []T) ([]T, []T) {
	for _, v := range values {
		from = models.RemoveValue(from, v)
		to = models.AppendUnique(to, v)
	}
	return from, to
}

// mergeScalar overwrites current with proposed, or only fills an unset
// current when fill is true.
func mergeScalar[T any](current, proposed *T, fill bool) *T {
	if proposed == nil {
		return current
	}
	if fill && current != nil {
		return current
	}
	v := *proposed
	return &v
}

// mergeRange merges both bounds and, when the result is inverted, keeps the
// bound that was written this turn.
func mergeRange[T int | float64](lo, hi, newLo, newHi *T, fill bool) (*T, *T) {
	mergedLo := mergeScalar(lo, newLo, fill)
	mergedHi := mergeScalar(hi, newHi, fill)
	if mergedLo == nil || mergedHi == nil || *mergedLo <= *mergedHi {
		return mergedLo, mergedHi
	}
	loFresh := newLo != nil && (!fill || lo == nil)
	if loFresh {
		return mergedLo, nil
	}
	return nil, mergedHi
}

func sameTransmission(a, b *models.Transmission) bool {
	return a != nil && b != nil && *a == *b
}

// Derive computes the search snapshot from confirmed and rejected values.
//
// add_criteria uses every confirmed value. The other intents let a field
// named this turn replace that field's contribution, while fields absent
// from the turn keep the prior snapshot (or the confirmed values when the
// prior snapshot had none). Rejected values are always excluded.
func Derive(prior, confirmed models.Criteria, rejected models.Rejections, intent models.Intent, proposed models.Criteria) models.Criteria {
	add := intent == models.IntentAddCriteria

	// Scalars carry over from confirmed; the set fields are rebuilt below.
	cur := confirmed.Clone()
	if sameTransmission(cur.Transmission, rejected.Transmission) {
		cur.Transmission = nil
	}

	cur.Makes = deriveSet(prior.Makes, confirmed.Makes, rejected.Makes, proposed.Makes, add)
	cur.VehicleTypes = deriveSet(prior.VehicleTypes, confirmed.VehicleTypes, rejected.VehicleTypes, proposed.VehicleTypes, add)
	cur.FuelTypes = deriveSet(prior.FuelTypes, confirmed.FuelTypes, rejected.FuelTypes, proposed.FuelTypes, add)
	cur.Features = deriveSet(prior.Features, confirmed.Features, rejected.Features, proposed.Features, add)
	return cur
}

func deriveSet[T ~string](prior, confirmed, rejected, proposed []T, add bool) []T {
	switch {
	case add:
		return models.Subtract(confirmed, rejected)
	case len(proposed) > 0:
		return models.Subtract(proposed, rejected)
	case len(prior) > 0:
		return models.Subtract(prior, rejected)
	default:
		return models.Subtract(confirmed, rejected)
	}
}

// Overlaps lists every value present in both the confirmed and rejected
// side of a field. It is always empty for contexts produced by Apply.
func Overlaps(confirmed models.Criteria, rejected models.Rejections) []string {
	var out []string
	collect := func(field string, vs []string) {
		for _, v := range vs {
			out = append(out, fmt.Sprintf("%s:%s", field, v))
		}
	}
	collect("makes", models.Intersect(confirmed.Makes, rejected.Makes))
	collect("vehicleTypes", toStrings(models.Intersect(confirmed.VehicleTypes, rejected.VehicleTypes)))
	collect("fuelTypes", toStrings(models.Intersect(confirmed.FuelTypes, rejected.FuelTypes)))
	collect("features", models.Intersect(confirmed.Features, rejected.Features))
	if sameTransmission(confirmed.Transmission, rejected.Transmission) {
		collect("transmission", []string{string(*confirmed.Transmission)})
	}
	return out
}

func toStrings[T ~string](vs []T) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = string(v)
	}
	return out
}
