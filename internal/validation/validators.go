package validation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

// Range tags for numeric criteria accepted from the extractor.
const (
	PriceTag      = "gte=0,lte=10000000"
	YearTag       = "gte=1900,lte=2100"
	MileageTag    = "gte=0,lte=2000000"
	EngineSizeTag = "gt=0,lte=10"
	HorsepowerTag = "gte=1,lte=2000"
)

func init() {
	Validate = validator.New()

	if err := Validate.RegisterValidation("printable", validatePrintable); err != nil {
		panic(fmt.Sprintf("failed to register printable validator: %v", err))
	}
}

// validatePrintable rejects strings carrying control characters other than
// newline and tab.
func validatePrintable(fl validator.FieldLevel) bool {
	for _, r := range fl.Field().String() {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return false
		}
	}
	return true
}

// SanitizeText sanitizes text input by trimming whitespace and removing control characters
func SanitizeText(text string) string {
	// Trim whitespace
	text = strings.TrimSpace(text)

	// Remove control characters except newline and tab
	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// InRange reports whether v satisfies a numeric range tag.
func InRange(v any, tag string) bool {
	return Validate.Var(v, tag) == nil
}
