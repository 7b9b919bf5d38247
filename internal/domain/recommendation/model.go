// Package recommendation generates and stores narrative clinical
// recommendations for completed test instances.
package recommendation

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusPending  = "pending"
	StatusSent     = "sent"
	StatusApproved = "approved"
)

// Recommendation maps to the recommendations table. Rows start pending and
// move to sent/approved through the clinician review flow.
type Recommendation struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	TestInstanceID uuid.UUID  `db:"test_instance_id" json:"test_instance_id"`
	DoctorID       *uuid.UUID `db:"doctor_id" json:"doctor_id,omitempty"`
	GeneratedText  string     `db:"generated_text" json:"generated_text"`
	Status         string     `db:"status" json:"status"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// SummaryItem is one classified measurement joined with its type metadata.
type SummaryItem struct {
	Name   string
	Unit   *string
	Value  float64
	Status *string
}

// InstanceSummary is everything the prompt needs for one test instance.
type InstanceSummary struct {
	PatientName string
	DoctorID    *uuid.UUID
	Items       []SummaryItem
}
