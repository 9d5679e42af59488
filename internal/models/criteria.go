package models

import (
	"fmt"
	"strings"
)

// Transmission is the gearbox type of a vehicle
type Transmission string

const (
	TransmissionManual        Transmission = "Manual"
	TransmissionAutomatic     Transmission = "Automatic"
	TransmissionSemiAutomatic Transmission = "SemiAutomatic"
)

// VehicleType is the body style of a vehicle
type VehicleType string

const (
	VehicleTypeSedan       VehicleType = "Sedan"
	VehicleTypeSUV         VehicleType = "SUV"
	VehicleTypeHatchback   VehicleType = "Hatchback"
	VehicleTypeCoupe       VehicleType = "Coupe"
	VehicleTypeConvertible VehicleType = "Convertible"
	VehicleTypeWagon       VehicleType = "Wagon"
	VehicleTypeVan         VehicleType = "Van"
	VehicleTypeTruck       VehicleType = "Truck"
	VehicleTypePickup      VehicleType = "Pickup"
)

// FuelType is the energy source of a vehicle
type FuelType string

const (
	FuelTypePetrol   FuelType = "Petrol"
	FuelTypeDiesel   FuelType = "Diesel"
	FuelTypeElectric FuelType = "Electric"
	FuelTypeHybrid   FuelType = "Hybrid"
)

// AllTransmissions lists every accepted transmission in display order.
var AllTransmissions = []Transmission{TransmissionManual, TransmissionAutomatic, TransmissionSemiAutomatic}

// AllVehicleTypes lists every accepted vehicle type in display order.
var AllVehicleTypes = []VehicleType{
	VehicleTypeSedan, VehicleTypeSUV, VehicleTypeHatchback, VehicleTypeCoupe, VehicleTypeConvertible,
	VehicleTypeWagon, VehicleTypeVan, VehicleTypeTruck, VehicleTypePickup,
}

// AllFuelTypes lists every accepted fuel type in display order.
var AllFuelTypes = []FuelType{FuelTypePetrol, FuelTypeDiesel, FuelTypeElectric, FuelTypeHybrid}

// KnownMakes are the manufacturers the catalog is guaranteed to carry.
var KnownMakes = []string{
	"BMW", "Audi", "Mercedes", "Toyota", "Honda", "Ford", "Volkswagen",
	"Nissan", "Hyundai", "Kia", "Tesla", "Volvo", "Mazda",
}

var transmissionAliases = map[string]Transmission{
	"manual":         TransmissionManual,
	"stick":          TransmissionManual,
	"stick shift":    TransmissionManual,
	"automatic":      TransmissionAutomatic,
	"auto":           TransmissionAutomatic,
	"semiautomatic":  TransmissionSemiAutomatic,
	"semi-automatic": TransmissionSemiAutomatic,
	"semi automatic": TransmissionSemiAutomatic,
}

var vehicleTypeAliases = map[string]VehicleType{
	"sedan":       VehicleTypeSedan,
	"saloon":      VehicleTypeSedan,
	"suv":         VehicleTypeSUV,
	"crossover":   VehicleTypeSUV,
	"hatchback":   VehicleTypeHatchback,
	"hatch":       VehicleTypeHatchback,
	"coupe":       VehicleTypeCoupe,
	"convertible": VehicleTypeConvertible,
	"cabriolet":   VehicleTypeConvertible,
	"wagon":       VehicleTypeWagon,
	"estate":      VehicleTypeWagon,
	"van":         VehicleTypeVan,
	"minivan":     VehicleTypeVan,
	"truck":       VehicleTypeTruck,
	"pickup":      VehicleTypePickup,
	"pick-up":     VehicleTypePickup,
}

var fuelTypeAliases = map[string]FuelType{
	"petrol":   FuelTypePetrol,
	"gas":      FuelTypePetrol,
	"gasoline": FuelTypePetrol,
	"diesel":   FuelTypeDiesel,
	"electric": FuelTypeElectric,
	"ev":       FuelTypeElectric,
	"hybrid":   FuelTypeHybrid,
}

func normalizeEnum(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ParseTransmission maps a free-form name onto a Transmission.
func ParseTransmission(s string) (Transmission, bool) {
	t, ok := transmissionAliases[normalizeEnum(s)]
	return t, ok
}

// ParseVehicleType maps a free-form name onto a VehicleType.
func ParseVehicleType(s string) (VehicleType, bool) {
	v, ok := vehicleTypeAliases[normalizeEnum(s)]
	return v, ok
}

// ParseFuelType maps a free-form name onto a FuelType.
func ParseFuelType(s string) (FuelType, bool) {
	f, ok := fuelTypeAliases[normalizeEnum(s)]
	return f, ok
}

// ParseMake maps a manufacturer name onto its catalog spelling. Makes outside
// KnownMakes are rejected.
func ParseMake(s string) (string, bool) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "mercedes-benz", "benz":
		return "Mercedes", true
	case "vw":
		return "Volkswagen", true
	}
	for _, m := range KnownMakes {
		if strings.EqualFold(m, s) {
			return m, true
		}
	}
	return "", false
}

// Criteria is one value of every search attribute. Nil scalars and empty
// sets mean "unset"; zero is never used as a sentinel.
type Criteria struct {
	MinPrice      *float64      `json:"minPrice,omitempty"`
	MaxPrice      *float64      `json:"maxPrice,omitempty"`
	MinYear       *int          `json:"minYear,omitempty"`
	MaxYear       *int          `json:"maxYear,omitempty"`
	MaxMileage    *int          `json:"maxMileage,omitempty"`
	Transmission  *Transmission `json:"transmission,omitempty"`
	MinEngineSize *float64      `json:"minEngineSize,omitempty"`
	MaxEngineSize *float64      `json:"maxEngineSize,omitempty"`
	MinHorsepower *int          `json:"minHorsepower,omitempty"`
	MaxHorsepower *int          `json:"maxHorsepower,omitempty"`
	Makes         []string      `json:"preferredMakes,omitempty"`
	VehicleTypes  []VehicleType `json:"preferredVehicleTypes,omitempty"`
	FuelTypes     []FuelType    `json:"preferredFuelTypes,omitempty"`
	Features      []string      `json:"desiredFeatures,omitempty"`
}

func (c Criteria) HasPrice() bool        { return c.MinPrice != nil || c.MaxPrice != nil }
func (c Criteria) HasYear() bool         { return c.MinYear != nil || c.MaxYear != nil }
func (c Criteria) HasMileage() bool      { return c.MaxMileage != nil }
func (c Criteria) HasTransmission() bool { return c.Transmission != nil }
func (c Criteria) HasEngineSize() bool   { return c.MinEngineSize != nil || c.MaxEngineSize != nil }
func (c Criteria) HasHorsepower() bool   { return c.MinHorsepower != nil || c.MaxHorsepower != nil }

// Has reports whether the given field carries a value.
func (c Criteria) Has(f Field) bool {
	switch f {
	case FieldPrice:
		return c.HasPrice()
	case FieldYear:
		return c.HasYear()
	case FieldMileage:
		return c.HasMileage()
	case FieldTransmission:
		return c.HasTransmission()
	case FieldEngineSize:
		return c.HasEngineSize()
	case FieldHorsepower:
		return c.HasHorsepower()
	case FieldMakes:
		return len(c.Makes) > 0
	case FieldVehicleType:
		return len(c.VehicleTypes) > 0
	case FieldFuelType:
		return len(c.FuelTypes) > 0
	case FieldFeatures:
		return len(c.Features) > 0
	}
	return false
}

// IsEmpty reports whether no field is set.
func (c Criteria) IsEmpty() bool {
	for _, f := range AllFields {
		if c.Has(f) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy; the result shares no memory with c.
func (c Criteria) Clone() Criteria {
	return Criteria{
		MinPrice:      clonePtr(c.MinPrice),
		MaxPrice:      clonePtr(c.MaxPrice),
		MinYear:       clonePtr(c.MinYear),
		MaxYear:       clonePtr(c.MaxYear),
		MaxMileage:    clonePtr(c.MaxMileage),
		Transmission:  clonePtr(c.Transmission),
		MinEngineSize: clonePtr(c.MinEngineSize),
		MaxEngineSize: clonePtr(c.MaxEngineSize),
		MinHorsepower: clonePtr(c.MinHorsepower),
		MaxHorsepower: clonePtr(c.MaxHorsepower),
		Makes:         cloneSlice(c.Makes),
		VehicleTypes:  cloneSlice(c.VehicleTypes),
		FuelTypes:     cloneSlice(c.FuelTypes),
		Features:      cloneSlice(c.Features),
	}
}

// Summary renders the set fields as a short human readable phrase, used in
// replies and logs.
func (c Criteria) Summary() string {
	var parts []string
	if len(c.VehicleTypes) > 0 {
		parts = append(parts, joinValues(c.VehicleTypes))
	}
	if len(c.Makes) > 0 {
		parts = append(parts, joinValues(c.Makes))
	}
	if len(c.FuelTypes) > 0 {
		parts = append(parts, joinValues(c.FuelTypes))
	}
	if c.Transmission != nil {
		parts = append(parts, string(*c.Transmission))
	}
	switch {
	case c.MinPrice != nil && c.MaxPrice != nil:
		parts = append(parts, fmt.Sprintf("%.0f-%.0f", *c.MinPrice, *c.MaxPrice))
	case c.MaxPrice != nil:
		parts = append(parts, fmt.Sprintf("under %.0f", *c.MaxPrice))
	case c.MinPrice != nil:
		parts = append(parts, fmt.Sprintf("over %.0f", *c.MinPrice))
	}
	switch {
	case c.MinYear != nil && c.MaxYear != nil:
		parts = append(parts, fmt.Sprintf("%d-%d", *c.MinYear, *c.MaxYear))
	case c.MinYear != nil:
		parts = append(parts, fmt.Sprintf("%d or newer", *c.MinYear))
	case c.MaxYear != nil:
		parts = append(parts, fmt.Sprintf("%d or older", *c.MaxYear))
	}
	if c.MaxMileage != nil {
		parts = append(parts, fmt.Sprintf("under %d miles", *c.MaxMileage))
	}
	if len(c.Features) > 0 {
		parts = append(parts, "with "+joinValues(c.Features))
	}
	return strings.Join(parts, ", ")
}

func joinValues[T ~string](vs []T) string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = string(v)
	}
	return strings.Join(out, "/")
}

// Rejections holds the values a user has explicitly excluded. Scalar ranges
// have no rejected twin; they are only ever replaced.
type Rejections struct {
	Makes        []string      `json:"rejectedMakes,omitempty"`
	VehicleTypes []VehicleType `json:"rejectedVehicleTypes,omitempty"`
	FuelTypes    []FuelType    `json:"rejectedFuelTypes,omitempty"`
	Features     []string      `json:"rejectedFeatures,omitempty"`
	Transmission *Transmission `json:"rejectedTransmission,omitempty"`
}

// IsEmpty reports whether nothing is rejected.
func (r Rejections) IsEmpty() bool {
	return len(r.Makes) == 0 && len(r.VehicleTypes) == 0 && len(r.FuelTypes) == 0 &&
		len(r.Features) == 0 && r.Transmission == nil
}

// Clone returns a deep copy.
func (r Rejections) Clone() Rejections {
	return Rejections{
		Makes:        cloneSlice(r.Makes),
		VehicleTypes: cloneSlice(r.VehicleTypes),
		FuelTypes:    cloneSlice(r.FuelTypes),
		Features:     cloneSlice(r.Features),
		Transmission: clonePtr(r.Transmission),
	}
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
