package ingest

import "fmt"

// Numeric encoding for the gender channel, matching what the classification
// engine and reporting layers expect on disk.
const (
	GenderMale   = 0
	GenderFemale = 1
)

// NormalizeGender maps the uploaded sex literal to its stored encoding,
// case-insensitively. Anything other than M or F is a row-level validation
// failure.
func NormalizeGender(raw string) (float64, error) {
	switch raw {
	case "M", "m":
		return GenderMale, nil
	case "F", "f":
		return GenderFemale, nil
	default:
		return 0, fmt.Errorf("invalid gender value %q", raw)
	}
}

// GenderLiteral renders the stored encoding back to the engine's literal.
func GenderLiteral(v float64) string {
	if v == GenderMale {
		return "M"
	}
	return "F"
}
