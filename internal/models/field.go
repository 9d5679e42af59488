package models

import "strings"

// Field names one criterion category.
type Field string

const (
	FieldPrice        Field = "price"
	FieldVehicleType  Field = "vehicleType"
	FieldMakes        Field = "makes"
	FieldYear         Field = "year"
	FieldMileage      Field = "mileage"
	FieldFuelType     Field = "fuelType"
	FieldTransmission Field = "transmission"
	FieldEngineSize   Field = "engineSize"
	FieldHorsepower   Field = "horsepower"
	FieldFeatures     Field = "features"
)

// AllFields lists every criterion category.
var AllFields = []Field{
	FieldPrice, FieldVehicleType, FieldMakes, FieldYear, FieldMileage, FieldFuelType,
	FieldTransmission, FieldEngineSize, FieldHorsepower, FieldFeatures,
}

var fieldAliases = map[string]Field{
	"price":                 FieldPrice,
	"budget":                FieldPrice,
	"minprice":              FieldPrice,
	"maxprice":              FieldPrice,
	"vehicletype":           FieldVehicleType,
	"vehicletypes":          FieldVehicleType,
	"preferredvehicletypes": FieldVehicleType,
	"bodytype":              FieldVehicleType,
	"type":                  FieldVehicleType,
	"make":                  FieldMakes,
	"makes":                 FieldMakes,
	"preferredmakes":        FieldMakes,
	"manufacturers":         FieldMakes,
	"brand":                 FieldMakes,
	"year":                  FieldYear,
	"minyear":               FieldYear,
	"maxyear":               FieldYear,
	"age":                   FieldYear,
	"mileage":               FieldMileage,
	"maxmileage":            FieldMileage,
	"fueltype":              FieldFuelType,
	"fueltypes":             FieldFuelType,
	"preferredfueltypes":    FieldFuelType,
	"fuel":                  FieldFuelType,
	"transmission":          FieldTransmission,
	"gearbox":               FieldTransmission,
	"enginesize":            FieldEngineSize,
	"minenginesize":         FieldEngineSize,
	"maxenginesize":         FieldEngineSize,
	"engine":                FieldEngineSize,
	"horsepower":            FieldHorsepower,
	"minhorsepower":         FieldHorsepower,
	"maxhorsepower":         FieldHorsepower,
	"hp":                    FieldHorsepower,
	"power":                 FieldHorsepower,
	"features":              FieldFeatures,
	"desiredfeatures":       FieldFeatures,
}

// ParseField maps an extractor field name (camelCase, snake_case or a
// plain word) onto a Field.
func ParseField(s string) (Field, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("_", "", "-", "", " ", "").Replace(key)
	f, ok := fieldAliases[key]
	return f, ok
}

// ParseFields parses names, dropping unknown ones and duplicates.
func ParseFields(names []string) []Field {
	var out []Field
	for _, n := range names {
		if f, ok := ParseField(n); ok {
			out = AppendUnique(out, f)
		}
	}
	return out
}
