package storage

import (
	"errors"
	"time"

	"github.com/opencountrieslist/opencountries/pkg/travel"
)

// ErrAbortingWipe is returned when a sync would remove most of the stored
// countries, which almost always means the directory page changed layout.
var ErrAbortingWipe = errors.New("refusing to remove all countries")

// Change types.
const (
	ChangeAdded   = "added"
	ChangeUpdated = "updated"
	ChangeRemoved = "removed"
)

// Policy fields tracked for changes.
const (
	FieldCountry            = "country"
	FieldClassification     = "classification"
	FieldQuarantineRequired = "quarantine_required"
	FieldTestRequired       = "test_required"
)

// Change captures a single change event for auditing or printing.
type Change struct {
	OccurredAt time.Time
	RunID      string

	Abbreviation string
	Name         string

	Field      string
	OldValue   int
	NewValue   int
	ChangeType string // added | updated | removed
}

// ClassificationStats is the number of stored countries per classification.
type ClassificationStats struct {
	Classification travel.Classification
	Count          int
}
