package models

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseEnums(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		parse func(string) (string, bool)
		input string
		want  string
		ok    bool
	}{
		{"transmission canonical", parseT, "Manual", "Manual", true},
		{"transmission alias", parseT, " auto ", "Automatic", true},
		{"transmission semi", parseT, "semi-automatic", "SemiAutomatic", true},
		{"transmission unknown", parseT, "CVT", "", false},
		{"vehicle type lower", parseV, "suv", "SUV", true},
		{"vehicle type pickup", parseV, "pick-up", "Pickup", true},
		{"vehicle type unknown", parseV, "spaceship", "", false},
		{"fuel gas", parseF, "gasoline", "Petrol", true},
		{"fuel ev", parseF, "EV", "Electric", true},
		{"fuel unknown", parseF, "hydrogen", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := tt.parse(tt.input)
			if ok != tt.ok {
				t.Fatalf("Expected ok=%v, got %v", tt.ok, ok)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func parseT(s string) (string, bool) { v, ok := ParseTransmission(s); return string(v), ok }
func parseV(s string) (string, bool) { v, ok := ParseVehicleType(s); return string(v), ok }
func parseF(s string) (string, bool) { v, ok := ParseFuelType(s); return string(v), ok }

func TestParseMake(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{"bmw", "BMW", true},
		{"  toyota ", "Toyota", true},
		{"Mercedes-Benz", "Mercedes", true},
		{"vw", "Volkswagen", true},
		{"InvalidMake", "", false},
		{"   ", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseMake(tt.input)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseMake(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}

func TestCriteria_HasAndIsEmpty(t *testing.T) {
	t.Parallel()

	var c Criteria
	if !c.IsEmpty() {
		t.Error("Expected zero Criteria to be empty")
	}

	c.MaxPrice = Ptr(20000.0)
	c.VehicleTypes = []VehicleType{VehicleTypeSUV}
	if c.IsEmpty() {
		t.Error("Expected Criteria with price to be non-empty")
	}
	if !c.Has(FieldPrice) || !c.Has(FieldVehicleType) {
		t.Error("Expected price and vehicle type to be set")
	}
	if c.Has(FieldMakes) || c.Has(FieldYear) || c.Has(FieldTransmission) {
		t.Error("Expected makes, year and transmission to be unset")
	}
}

func TestCriteria_CloneIsDeep(t *testing.T) {
	t.Parallel()

	orig := Criteria{
		MinYear:      Ptr(2018),
		Transmission: Ptr(TransmissionManual),
		Makes:        []string{"BMW"},
	}
	cp := orig.Clone()
	*cp.MinYear = 1999
	*cp.Transmission = TransmissionAutomatic
	cp.Makes[0] = "Audi"

	if *orig.MinYear != 2018 {
		t.Errorf("Expected original MinYear to stay 2018, got %d", *orig.MinYear)
	}
	if *orig.Transmission != TransmissionManual {
		t.Errorf("Expected original transmission to stay Manual, got %s", *orig.Transmission)
	}
	if orig.Makes[0] != "BMW" {
		t.Errorf("Expected original makes to stay BMW, got %s", orig.Makes[0])
	}
}

func TestCriteria_JSONOmitsUnset(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(Criteria{MaxMileage: Ptr(0), FuelTypes: []FuelType{FuelTypeHybrid}})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := `{"maxMileage":0,"preferredFuelTypes":["Hybrid"]}`
	if string(data) != want {
		t.Errorf("Expected %s, got %s", want, data)
	}
}

func TestCriteria_Summary(t *testing.T) {
	t.Parallel()

	c := Criteria{
		VehicleTypes: []VehicleType{VehicleTypeSUV},
		Makes:        []string{"Toyota", "Honda"},
		MaxPrice:     Ptr(25000.0),
		MinYear:      Ptr(2019),
	}
	want := "SUV, Toyota/Honda, under 25000, 2019 or newer"
	if got := c.Summary(); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestSetHelpers(t *testing.T) {
	t.Parallel()

	list := []string{"BMW", "Audi"}

	got := AppendUnique(list, "bmw", "Toyota")
	if diff := cmp.Diff([]string{"BMW", "Audi", "Toyota"}, got); diff != "" {
		t.Errorf("AppendUnique mismatch (-want +got):\n%s", diff)
	}
	if len(list) != 2 {
		t.Errorf("Expected input slice untouched, got %v", list)
	}

	if diff := cmp.Diff([]string{"Audi"}, RemoveValue(list, "BMW")); diff != "" {
		t.Errorf("RemoveValue mismatch (-want +got):\n%s", diff)
	}
	if RemoveValue([]string{"BMW"}, "bmw") != nil {
		t.Error("Expected RemoveValue of the only member to return nil")
	}
	if diff := cmp.Diff([]string{"Audi"}, Subtract(list, []string{"BMW", "Kia"})); diff != "" {
		t.Errorf("Subtract mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"BMW"}, Intersect(list, []string{"Kia", "bmw"})); diff != "" {
		t.Errorf("Intersect mismatch (-want +got):\n%s", diff)
	}
}

func TestParseFields(t *testing.T) {
	t.Parallel()

	got := ParseFields([]string{"maxPrice", "min_price", "preferredMakes", "body type", "warp drive", "HP"})
	want := []Field{FieldPrice, FieldMakes, FieldVehicleType, FieldHorsepower}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseFields mismatch (-want +got):\n%s", diff)
	}
}

func TestParseIntent(t *testing.T) {
	t.Parallel()

	tests := map[string]Intent{
		"refine_criteria": IntentRefineCriteria,
		" ADD_CRITERIA ":  IntentAddCriteria,
		"clarify":         IntentClarify,
		"":                IntentNewQuery,
		"chit_chat":       IntentNewQuery,
	}
	for in, want := range tests {
		if got := ParseIntent(in); got != want {
			t.Errorf("ParseIntent(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExtractionResult_ExplicitlyNoClarification(t *testing.T) {
	t.Parallel()

	if (ExtractionResult{}).ExplicitlyNoClarification() {
		t.Error("Expected absent list to not count as explicit")
	}
	if !(ExtractionResult{ClarificationNeededFor: []string{}}).ExplicitlyNoClarification() {
		t.Error("Expected empty list to count as explicit")
	}
	if (ExtractionResult{ClarificationNeededFor: []string{"price"}}).ExplicitlyNoClarification() {
		t.Error("Expected non-empty list to not count as explicit")
	}
}
