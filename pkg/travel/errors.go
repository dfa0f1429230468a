package travel

import "fmt"

// ValidationError reports an enum field outside its documented range.
type ValidationError struct {
	Abbreviation string
	Field        string
	Value        int
}

func (e *ValidationError) Error() string {
	if e.Abbreviation == "" {
		return fmt.Sprintf("invalid %s value %d", e.Field, e.Value)
	}
	return fmt.Sprintf("%s: invalid %s value %d", e.Abbreviation, e.Field, e.Value)
}

// Validate checks the enum ranges of a feed record. Missing optional fields
// are never an error.
func (r CountryRecord) Validate() error {
	if !r.Classification.Valid() {
		return &ValidationError{Abbreviation: r.Abbreviation, Field: "classification", Value: int(r.Classification)}
	}
	if !r.QuarantineRequired.Valid() {
		return &ValidationError{Abbreviation: r.Abbreviation, Field: "quarantine_required", Value: int(r.QuarantineRequired)}
	}
	if !r.TestRequired.Valid() {
		return &ValidationError{Abbreviation: r.Abbreviation, Field: "test_required", Value: int(r.TestRequired)}
	}
	return nil
}
