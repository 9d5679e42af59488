package clarify

import (
	"strings"
	"testing"

	"github.com/benvon/smart-autotrader/internal/models"
	"github.com/google/go-cmp/cmp"
)

func TestMissingScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		criteria models.Criteria
		want     float64
	}{
		{"empty", models.Criteria{}, 7.5},
		{"only soft fields missing", models.Criteria{
			MaxPrice: models.Ptr(20000.0), VehicleTypes: []models.VehicleType{models.VehicleTypeSUV},
			Makes: []string{"Kia"}, MinYear: models.Ptr(2018), MaxMileage: models.Ptr(50000),
			FuelTypes: []models.FuelType{models.FuelTypeHybrid},
		}, 1.5},
		{"vehicle type only", models.Criteria{VehicleTypes: []models.VehicleType{models.VehicleTypeSUV}}, 6.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := MissingScore(tt.criteria); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestNeedsClarification(t *testing.T) {
	t.Parallel()

	suv := []models.VehicleType{models.VehicleTypeSUV}
	tests := []struct {
		name       string
		criteria   models.Criteria
		result     models.ExtractionResult
		want       bool
		wantReason string
	}{
		{
			name:       "vehicle type alone is not enough",
			criteria:   models.Criteria{VehicleTypes: suv},
			result:     models.ExtractionResult{Intent: models.IntentNewQuery},
			want:       true,
			wantReason: ReasonMissingCriteria,
		},
		{
			name:       "vehicle type and price is a minimal search",
			criteria:   models.Criteria{VehicleTypes: suv, MaxPrice: models.Ptr(1.0)},
			result:     models.ExtractionResult{Intent: models.IntentNewQuery},
			want:       false,
			wantReason: ReasonMinimalSearch,
		},
		{
			name:       "vehicle type and makes is a minimal search",
			criteria:   models.Criteria{VehicleTypes: suv, Makes: []string{"Toyota"}},
			result:     models.ExtractionResult{Intent: models.IntentNewQuery},
			want:       false,
			wantReason: ReasonMinimalSearch,
		},
		{
			name:       "clarify intent always wins",
			criteria:   models.Criteria{VehicleTypes: suv, Makes: []string{"Toyota"}},
			result:     models.ExtractionResult{Intent: models.IntentClarify, ClarificationNeededFor: []string{}},
			want:       true,
			wantReason: ReasonClarifyIntent,
		},
		{
			name:       "explicit empty needed-for skips the heuristic",
			criteria:   models.Criteria{},
			result:     models.ExtractionResult{Intent: models.IntentNewQuery, ClarificationNeededFor: []string{}},
			want:       false,
			wantReason: ReasonExtractorDeclined,
		},
		{
			name:       "absent needed-for keeps the heuristic",
			criteria:   models.Criteria{},
			result:     models.ExtractionResult{Intent: models.IntentNewQuery},
			want:       true,
			wantReason: ReasonMissingCriteria,
		},
		{
			name: "only soft fields missing is sufficient",
			criteria: models.Criteria{
				MaxPrice: models.Ptr(20000.0), Makes: []string{"Kia"}, MinYear: models.Ptr(2018),
				MaxMileage: models.Ptr(50000), FuelTypes: []models.FuelType{models.FuelTypeHybrid},
			},
			result:     models.ExtractionResult{Intent: models.IntentNewQuery},
			want:       false,
			wantReason: ReasonSufficientCriteria,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, reason := NeedsClarification(tt.criteria, tt.result)
			if got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
			if reason != tt.wantReason {
				t.Errorf("Expected reason %q, got %q", tt.wantReason, reason)
			}
		})
	}
}

func TestPolicy_Questions(t *testing.T) {
	t.Parallel()

	p := NewPolicy(nil)
	tests := []struct {
		name     string
		criteria models.Criteria
		flags    models.TopicFlags
		needFor  []string
		want     []models.Field
	}{
		{
			name: "empty context asks type, price, year",
			want: []models.Field{models.FieldVehicleType, models.FieldPrice, models.FieldYear},
		},
		{
			name:     "vehicle type set prioritizes price",
			criteria: models.Criteria{VehicleTypes: []models.VehicleType{models.VehicleTypeSedan}},
			want:     []models.Field{models.FieldPrice, models.FieldYear, models.FieldFuelType},
		},
		{
			name:     "price set asks makes second",
			criteria: models.Criteria{MaxPrice: models.Ptr(20000.0)},
			want:     []models.Field{models.FieldVehicleType, models.FieldMakes, models.FieldYear},
		},
		{
			name: "engine size only for large bodies",
			criteria: models.Criteria{
				VehicleTypes: []models.VehicleType{models.VehicleTypePickup}, MaxPrice: models.Ptr(1.0),
				Makes: []string{"Ford"}, MinYear: models.Ptr(2018), MaxMileage: models.Ptr(1),
				FuelTypes: []models.FuelType{models.FuelTypeDiesel},
			},
			want: []models.Field{models.FieldEngineSize},
		},
		{
			name: "performance talk adds engine and horsepower",
			criteria: models.Criteria{
				VehicleTypes: []models.VehicleType{models.VehicleTypeCoupe}, MaxPrice: models.Ptr(1.0),
				Makes: []string{"BMW"}, MinYear: models.Ptr(2018), MaxMileage: models.Ptr(1),
				FuelTypes: []models.FuelType{models.FuelTypePetrol},
			},
			flags: models.TopicFlags(0).With(models.TopicPerformance).With(models.TopicDriving),
			want:  []models.Field{models.FieldEngineSize, models.FieldHorsepower, models.FieldTransmission},
		},
		{
			name: "soft fields are not asked without a signal",
			criteria: models.Criteria{
				VehicleTypes: []models.VehicleType{models.VehicleTypeSedan}, MaxPrice: models.Ptr(1.0),
				Makes: []string{"Kia"}, MinYear: models.Ptr(2018), MaxMileage: models.Ptr(1),
				FuelTypes: []models.FuelType{models.FuelTypePetrol},
			},
			needFor: []string{"transmission", "bogus"},
			want:    []models.Field{models.FieldTransmission},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := fieldsOf(p.Questions(tt.criteria, tt.flags, tt.needFor))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Fields mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPolicy_Questions_Generic(t *testing.T) {
	t.Parallel()

	full := models.Criteria{
		VehicleTypes: []models.VehicleType{models.VehicleTypeSedan}, MaxPrice: models.Ptr(1.0),
		Makes: []string{"Kia"}, MinYear: models.Ptr(2018), MaxMileage: models.Ptr(1),
		FuelTypes: []models.FuelType{models.FuelTypePetrol},
	}
	qs := NewPolicy(nil).Questions(full, 0, nil)
	if len(qs) != 1 || qs[0].Field != "" || qs[0].Text != DefaultCatalog().Generic {
		t.Errorf("Expected the generic question, got %+v", qs)
	}
}

func TestPolicy_Decide(t *testing.T) {
	t.Parallel()

	p := NewPolicy(nil)

	t.Run("scenario A asks about price", func(t *testing.T) {
		t.Parallel()
		cc := &models.ConversationContext{CurrentParameters: models.Criteria{VehicleTypes: []models.VehicleType{models.VehicleTypeSUV}}}
		d := p.Decide(cc, models.ExtractionResult{Intent: models.IntentNewQuery})
		if d.State != NeedsMoreInfo {
			t.Fatalf("Expected %s, got %s", NeedsMoreInfo, d.State)
		}
		if len(d.Fields) == 0 || d.Fields[0] != models.FieldPrice {
			t.Errorf("Expected price asked first, got %v", d.Fields)
		}
	})

	t.Run("scenario B is ready", func(t *testing.T) {
		t.Parallel()
		cc := &models.ConversationContext{CurrentParameters: models.Criteria{
			VehicleTypes: []models.VehicleType{models.VehicleTypeSUV}, Makes: []string{"Toyota"},
		}}
		d := p.Decide(cc, models.ExtractionResult{Intent: models.IntentNewQuery})
		if d.State != ReadyToSearch || d.Message != "" {
			t.Errorf("Expected ready with no message, got %+v", d)
		}
	})

	t.Run("repeated question becomes the stuck message", func(t *testing.T) {
		t.Parallel()
		cc := &models.ConversationContext{}
		first := p.Decide(cc, models.ExtractionResult{Intent: models.IntentNewQuery})
		if first.LoopDetected {
			t.Fatal("Expected no loop on the first question")
		}

		cc.LastQuestionAskedByAI = first.Message
		second := p.Decide(cc, models.ExtractionResult{Intent: models.IntentNewQuery})
		if !second.LoopDetected || second.Message != StuckMessage {
			t.Errorf("Expected stuck message, got %+v", second)
		}
		if second.State != NeedsMoreInfo {
			t.Errorf("Expected %s, got %s", NeedsMoreInfo, second.State)
		}
	})

	t.Run("topic varies wording", func(t *testing.T) {
		t.Parallel()
		cc := &models.ConversationContext{
			CurrentParameters: models.Criteria{VehicleTypes: []models.VehicleType{models.VehicleTypeSUV}},
			TopicContext:      models.TopicFlags(0).With(models.TopicBudget),
		}
		d := p.Decide(cc, models.ExtractionResult{Intent: models.IntentNewQuery})
		if !strings.HasPrefix(d.Message, "You mentioned budget") {
			t.Errorf("Expected budget wording, got %q", d.Message)
		}
	})
}

func TestLoadCatalog(t *testing.T) {
	t.Parallel()

	if _, err := LoadCatalog([]byte("generic: hi\nfields: {}\n")); err == nil {
		t.Error("Expected error for a catalog missing field defaults")
	}
	if _, err := LoadCatalog([]byte("::")); err == nil {
		t.Error("Expected error for malformed YAML")
	}
	if _, err := LoadCatalog(embeddedPhrasing); err != nil {
		t.Errorf("Expected embedded catalog to load, got %v", err)
	}
}

func TestDetectTopics(t *testing.T) {
	t.Parallel()

	tests := []struct {
		utterance string
		want      []models.Topic
	}{
		{"Something cheap for the kids", []models.Topic{models.TopicBudget, models.TopicFamily}},
		{"I want a fast car with good mpg", []models.Topic{models.TopicPerformance, models.TopicEfficiency}},
		{"an SUV please", nil},
	}
	for _, tt := range tests {
		t.Run(tt.utterance, func(t *testing.T) {
			t.Parallel()
			if diff := cmp.Diff(tt.want, DetectTopics(tt.utterance).Topics()); diff != "" {
				t.Errorf("Topics mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
