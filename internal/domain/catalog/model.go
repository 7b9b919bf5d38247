// Package catalog holds the test-template and measurement-type registry that
// uploaded lab rows are reconciled against.
package catalog

import (
	"time"

	"github.com/google/uuid"
)

// GenderTypeName is the display name of the reserved gender channel. Its
// values are sex literals rather than numeric measurements and it is handled
// specially throughout ingestion and reporting.
const GenderTypeName = "Gender"

// TestTemplate maps to the test_templates table. A template names a panel
// and, through template_measurements, the set of measurement types a test
// instance must collect before it can be classified.
type TestTemplate struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// MeasurementType maps to the measurement_types table.
type MeasurementType struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Unit      *string   `db:"unit" json:"unit,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// IsGender reports whether this type is the reserved gender channel.
func (m *MeasurementType) IsGender() bool { return m.Name == GenderTypeName }
