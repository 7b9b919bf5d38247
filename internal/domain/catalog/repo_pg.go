package catalog

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

func (r *repoPG) GetTemplate(ctx context.Context, id uuid.UUID) (*TestTemplate, error) {
	var t TestTemplate
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, name, created_at FROM test_templates WHERE id = $1`, id).
		Scan(&t.ID, &t.Name, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *repoPG) TemplateByName(ctx context.Context, name string) (*TestTemplate, error) {
	var t TestTemplate
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, name, created_at FROM test_templates WHERE name = $1`, name).
		Scan(&t.ID, &t.Name, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *repoPG) MeasurementTypeByName(ctx context.Context, name string) (*MeasurementType, error) {
	var m MeasurementType
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, name, unit, created_at FROM measurement_types WHERE name = $1`, name).
		Scan(&m.ID, &m.Name, &m.Unit, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *repoPG) RequiredTypes(ctx context.Context, templateID uuid.UUID) ([]*MeasurementType, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT mt.id, mt.name, mt.unit, mt.created_at
		FROM template_measurements tm
		JOIN measurement_types mt ON mt.id = tm.measurement_type_id
		WHERE tm.template_id = $1
		ORDER BY mt.name`, templateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var types []*MeasurementType
	for rows.Next() {
		var m MeasurementType
		if err := rows.Scan(&m.ID, &m.Name, &m.Unit, &m.CreatedAt); err != nil {
			return nil, err
		}
		types = append(types, &m)
	}
	return types, rows.Err()
}

func (r *repoPG) RequiredTypeIDs(ctx context.Context, templateID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT measurement_type_id FROM template_measurements WHERE template_id = $1`, templateID)
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

func (r *repoPG) TemplateRequires(ctx context.Context, templateID, typeID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM template_measurements
			WHERE template_id = $1 AND measurement_type_id = $2)`,
		templateID, typeID).Scan(&exists)
	return exists, err
}

func (r *repoPG) TemplatesRequiring(ctx context.Context, typeID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT template_id FROM template_measurements WHERE measurement_type_id = $1`, typeID)
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
