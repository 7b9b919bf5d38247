package recommendation

import (
	"context"

	"github.com/google/uuid"
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

func (r *repoPG) InstanceSummary(ctx context.Context, instanceID uuid.UUID) (*InstanceSummary, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT p.name, p.doctor_id, mt.name, mt.unit, mr.value, mr.status
		FROM measurement_results mr
		JOIN measurement_types mt ON mt.id = mr.measurement_type_id
		JOIN test_instances ti ON ti.id = mr.test_instance_id
		JOIN patients p ON p.hn_number = ti.hn_number
		WHERE mr.test_instance_id = $1
		ORDER BY mt.name`, instanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summary *InstanceSummary
	for rows.Next() {
		var (
			patientName string
			doctorID    *uuid.UUID
			item        SummaryItem
		)
		if err := rows.Scan(&patientName, &doctorID, &item.Name, &item.Unit, &item.Value, &item.Status); err != nil {
			return nil, err
		}
		if summary == nil {
			summary = &InstanceSummary{PatientName: patientName, DoctorID: doctorID}
		}
		summary.Items = append(summary.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return summary, nil
}

func (r *repoPG) Create(ctx context.Context, rec *Recommendation) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.Status == "" {
		rec.Status = StatusPending
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO recommendations (id, test_instance_id, doctor_id, generated_text, status)
		VALUES ($1,$2,$3,$4,$5)`,
		rec.ID, rec.TestInstanceID, rec.DoctorID, rec.GeneratedText, rec.Status)
	return err
}
