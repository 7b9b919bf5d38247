package catalog

import (
	"context"

	"github.com/google/uuid"
)

// Repository reads the template and measurement-type registry. Lookups that
// miss return (nil, nil) so that ingestion can skip the row instead of
// treating an unknown name as a failure.
type Repository interface {
	GetTemplate(ctx context.Context, id uuid.UUID) (*TestTemplate, error)
	TemplateByName(ctx context.Context, name string) (*TestTemplate, error)
	MeasurementTypeByName(ctx context.Context, name string) (*MeasurementType, error)
	RequiredTypes(ctx context.Context, templateID uuid.UUID) ([]*MeasurementType, error)
	RequiredTypeIDs(ctx context.Context, templateID uuid.UUID) ([]uuid.UUID, error)
	TemplateRequires(ctx context.Context, templateID, typeID uuid.UUID) (bool, error)
	TemplatesRequiring(ctx context.Context, typeID uuid.UUID) ([]uuid.UUID, error)
}
