package labtest

import (
	"context"
	"errors"

	"github.com/google/uuid"
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

const instanceCols = `id, hn_number, template_id, status, collected_at, created_at`

func (r *repoPG) scanInstance(row pgx.Row) (*TestInstance, error) {
	var ti TestInstance
	err := row.Scan(&ti.ID, &ti.HN, &ti.TemplateID, &ti.Status, &ti.CollectedAt, &ti.CreatedAt)
	return &ti, err
}

func (r *repoPG) CreateInstance(ctx context.Context, ti *TestInstance) error {
	if ti.ID == uuid.Nil {
		ti.ID = uuid.New()
	}
	if ti.Status == "" {
		ti.Status = StatusPending
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO test_instances (id, hn_number, template_id, status, collected_at)
		VALUES ($1,$2,$3,$4,$5)`,
		ti.ID, ti.HN, ti.TemplateID, ti.Status, ti.CollectedAt)
	return err
}

func (r *repoPG) GetInstance(ctx context.Context, id uuid.UUID) (*TestInstance, error) {
	ti, err := r.scanInstance(r.conn(ctx).QueryRow(ctx, `
		SELECT `+instanceCols+` FROM test_instances WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ti, nil
}

// LatestPending picks the most recent open instance when a patient has more
// than one for the same template.
func (r *repoPG) LatestPending(ctx context.Context, hn string, templateID uuid.UUID) (*TestInstance, error) {
	ti, err := r.scanInstance(r.conn(ctx).QueryRow(ctx, `
		SELECT `+instanceCols+` FROM test_instances
		WHERE hn_number = $1 AND template_id = $2 AND status = $3
		ORDER BY collected_at DESC
		LIMIT 1`, hn, templateID, StatusPending))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ti, nil
}

func (r *repoPG) MarkCompleted(ctx context.Context, instanceID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE test_instances SET status = $2 WHERE id = $1`, instanceID, StatusCompleted)
	return err
}

// UpsertResult overwrites the value on conflict and leaves any previously
// written classification status untouched.
func (r *repoPG) UpsertResult(ctx context.Context, instanceID, typeID uuid.UUID, value float64) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO measurement_results (id, test_instance_id, measurement_type_id, value)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (test_instance_id, measurement_type_id)
		DO UPDATE SET value = EXCLUDED.value`,
		uuid.New(), instanceID, typeID, value)
	return err
}

func (r *repoPG) TypesPresent(ctx context.Context, instanceID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT measurement_type_id FROM measurement_results WHERE test_instance_id = $1`, instanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *repoPG) ResultsNamed(ctx context.Context, instanceID uuid.UUID) ([]NamedResult, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT mr.measurement_type_id, mt.name, mr.value
		FROM measurement_results mr
		JOIN measurement_types mt ON mt.id = mr.measurement_type_id
		WHERE mr.test_instance_id = $1
		ORDER BY mt.name`, instanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []NamedResult
	for rows.Next() {
		var nr NamedResult
		if err := rows.Scan(&nr.TypeID, &nr.Name, &nr.Value); err != nil {
			return nil, err
		}
		results = append(results, nr)
	}
	return results, rows.Err()
}

func (r *repoPG) SetResultStatus(ctx context.Context, instanceID, typeID uuid.UUID, status string) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE measurement_results SET status = $3
		WHERE test_instance_id = $1 AND measurement_type_id = $2`,
		instanceID, typeID, status)
	return err
}
