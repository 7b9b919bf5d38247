package patient

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/siss-hmue/labflow/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Queryable {
	return db.Resolve(ctx, r.pool)
}

const patientCols = `hn_number, name, citizen_id, phone_no, password,
	lab_data_status, account_status, doctor_id, created_at`

func (r *repoPG) GetByHN(ctx context.Context, hn string) (*Patient, error) {
	var p Patient
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT `+patientCols+` FROM patients WHERE hn_number = $1`, hn).
		Scan(&p.HN, &p.Name, &p.CitizenID, &p.PhoneNo, &p.Password,
			&p.LabDataStatus, &p.AccountStatus, &p.DoctorID, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) ExistsByHN(ctx context.Context, hn string) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM patients WHERE hn_number = $1)`, hn).Scan(&exists)
	return exists, err
}

// HNByCitizenID returns the hospital number already holding this citizen ID,
// or "" when the citizen ID is unclaimed.
func (r *repoPG) HNByCitizenID(ctx context.Context, citizenID string) (string, error) {
	var hn string
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT hn_number FROM patients WHERE citizen_id = $1`, citizenID).Scan(&hn)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return hn, nil
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patients (hn_number, name, citizen_id, phone_no, password,
			lab_data_status, account_status, doctor_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		p.HN, p.Name, p.CitizenID, p.PhoneNo, p.Password,
		p.LabDataStatus, p.AccountStatus, p.DoctorID)
	return err
}

func (r *repoPG) SetLabDataFlag(ctx context.Context, hn string, ready bool) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE patients SET lab_data_status = $2 WHERE hn_number = $1`, hn, ready)
	return err
}
