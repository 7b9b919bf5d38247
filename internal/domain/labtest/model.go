// Package labtest holds test instances and their measurement results.
package labtest

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

// TestInstance maps to the test_instances table. One instance is one
// collection event for one patient under one template; it stays pending
// until every required measurement has been recorded and classified.
type TestInstance struct {
	ID          uuid.UUID `db:"id" json:"id"`
	HN          string    `db:"hn_number" json:"hn_number"`
	TemplateID  uuid.UUID `db:"template_id" json:"template_id"`
	Status      string    `db:"status" json:"status"`
	CollectedAt time.Time `db:"collected_at" json:"collected_at"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// MeasurementResult maps to the measurement_results table. At most one row
// exists per (test_instance_id, measurement_type_id); a re-upload overwrites
// the value. Status is the classification label, nil until the engine has
// run. Gender rows carry the sex literal encoded as 0 or 1 in Value.
// NamedResult is a measurement result joined with its type's display name,
// the shape the classification engine is fed.
type NamedResult struct {
	TypeID uuid.UUID
	Name   string
	Value  float64
}

type MeasurementResult struct {
	ID                uuid.UUID `db:"id" json:"id"`
	TestInstanceID    uuid.UUID `db:"test_instance_id" json:"test_instance_id"`
	MeasurementTypeID uuid.UUID `db:"measurement_type_id" json:"measurement_type_id"`
	Value             float64   `db:"value" json:"value"`
	Status            *string   `db:"status" json:"status,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}
