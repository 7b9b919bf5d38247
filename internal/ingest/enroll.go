package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/siss-hmue/labflow/internal/domain/catalog"
	"github.com/siss-hmue/labflow/internal/domain/labtest"
	"github.com/siss-hmue/labflow/internal/domain/patient"
)

// Column names expected in an enrollment upload. A single file can carry
// patient rows and test-instance rows; each row contributes whatever
// columns it fills in.
const (
	ColName      = "name"
	ColCitizenID = "citizen_id"
	ColPhone     = "phone_no"
	ColDoctorID  = "doctor_id"
	ColTestName  = "lab_test_name"
	ColTestDate  = "lab_test_date"
)

const testDateLayout = "2006-01-02"

// Enroller creates patients and pending test instances from an enrollment
// upload. The lab-results pipeline later fills the instances it opens here.
type Enroller struct {
	catalog  catalog.Repository
	patients patient.Repository
	labtests labtest.Repository
	log      zerolog.Logger
}

func NewEnroller(cat catalog.Repository, pat patient.Repository, lab labtest.Repository, log zerolog.Logger) *Enroller {
	return &Enroller{catalog: cat, patients: pat, labtests: lab, log: log}
}

type EnrollSummary struct {
	PatientsCreated  int `json:"patients_created"`
	InstancesCreated int `json:"instances_created"`
	Skipped          int `json:"skipped"`
}

// Process enrolls patients first, then opens test instances, so an instance
// row can refer to a patient created earlier in the same file. The initial
// portal password is the bcrypt hash of the citizen ID.
func (e *Enroller) Process(ctx context.Context, rows []Row) (*EnrollSummary, error) {
	sum := &EnrollSummary{}

	for _, row := range rows {
		hn := row[ColHN]
		name := row[ColName]
		citizenID := row[ColCitizenID]
		if hn == "" || name == "" || citizenID == "" || row[ColPhone] == "" || row[ColDoctorID] == "" {
			continue
		}

		exists, err := e.patients.ExistsByHN(ctx, hn)
		if err != nil {
			return nil, err
		}
		if exists {
			continue
		}

		claimedBy, err := e.patients.HNByCitizenID(ctx, citizenID)
		if err != nil {
			return nil, err
		}
		if claimedBy != "" {
			e.log.Warn().Str("hn", hn).Str("conflicting_hn", claimedBy).
				Msg("skipping patient: citizen id already registered")
			sum.Skipped++
			continue
		}

		doctorID, err := uuid.Parse(row[ColDoctorID])
		if err != nil {
			e.log.Warn().Str("hn", hn).Str("doctor_id", row[ColDoctorID]).
				Msg("skipping patient: invalid doctor id")
			sum.Skipped++
			continue
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(citizenID), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}

		phone := row[ColPhone]
		p := &patient.Patient{
			HN:            hn,
			Name:          name,
			CitizenID:     citizenID,
			PhoneNo:       &phone,
			Password:      string(hash),
			LabDataStatus: false,
			AccountStatus: true,
			DoctorID:      &doctorID,
		}
		if err := e.patients.Create(ctx, p); err != nil {
			return nil, err
		}
		sum.PatientsCreated++
	}

	for _, row := range rows {
		hn := row[ColHN]
		testName := row[ColTestName]
		if hn == "" || testName == "" {
			continue
		}

		exists, err := e.patients.ExistsByHN(ctx, hn)
		if err != nil {
			return nil, err
		}
		if !exists {
			e.log.Warn().Str("hn", hn).Msg("skipping test instance: patient not enrolled")
			sum.Skipped++
			continue
		}

		tpl, err := e.catalog.TemplateByName(ctx, testName)
		if err != nil {
			return nil, err
		}
		if tpl == nil {
			e.log.Warn().Str("test_name", testName).Msg("skipping test instance: unknown template")
			sum.Skipped++
			continue
		}

		collectedAt := time.Now()
		if raw := row[ColTestDate]; raw != "" {
			if parsed, err := time.Parse(testDateLayout, raw); err == nil {
				collectedAt = parsed
			}
		}

		ti := &labtest.TestInstance{
			HN:          hn,
			TemplateID:  tpl.ID,
			Status:      labtest.StatusPending,
			CollectedAt: collectedAt,
		}
		if err := e.labtests.CreateInstance(ctx, ti); err != nil {
			return nil, err
		}
		sum.InstancesCreated++
	}

	return sum, nil
}
