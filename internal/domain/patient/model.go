// Package patient holds the patient registry keyed by hospital number.
package patient

import (
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patients table. HN is the hospital number, the natural
// key uploaded files refer patients by. Password is a bcrypt hash; the
// patient portal seeds it from the citizen ID at enrollment.
type Patient struct {
	HN            string     `db:"hn_number" json:"hn_number"`
	Name          string     `db:"name" json:"name"`
	CitizenID     string     `db:"citizen_id" json:"citizen_id"`
	PhoneNo       *string    `db:"phone_no" json:"phone_no,omitempty"`
	Password      string     `db:"password" json:"-"`
	LabDataStatus bool       `db:"lab_data_status" json:"lab_data_status"`
	AccountStatus bool       `db:"account_status" json:"account_status"`
	DoctorID      *uuid.UUID `db:"doctor_id" json:"doctor_id,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}
